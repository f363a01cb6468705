package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	authdomain "github.com/njaeplume/plume/internal/auth/domain"
	authservice "github.com/njaeplume/plume/internal/auth/service"
	"github.com/njaeplume/plume/internal/auth/session"
	"github.com/njaeplume/plume/internal/authorization"
	catalogdomain "github.com/njaeplume/plume/internal/catalog/domain"
	checkoutdomain "github.com/njaeplume/plume/internal/checkout/domain"
	"github.com/njaeplume/plume/internal/clock"
	"github.com/njaeplume/plume/internal/config"
	downloaddomain "github.com/njaeplume/plume/internal/download/domain"
	identitydomain "github.com/njaeplume/plume/internal/identity/domain"
	notificationdomain "github.com/njaeplume/plume/internal/notification/domain"
	"github.com/njaeplume/plume/internal/observability"
	orderdomain "github.com/njaeplume/plume/internal/order/domain"
	paymentdomain "github.com/njaeplume/plume/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type fakeAuthz struct{}

func (fakeAuthz) Authorize(_ context.Context, actor authorization.Actor, _ string, _ string) error {
	if actor.Role == authdomain.RoleAdmin {
		return nil
	}
	return authorization.ErrForbidden
}

type fakeIdentity struct {
	synced []identitydomain.SyncRequest
}

func (f *fakeIdentity) Sync(_ context.Context, req identitydomain.SyncRequest) error {
	f.synced = append(f.synced, req)
	return nil
}

func (f *fakeIdentity) Lookup(context.Context, string) (*identitydomain.User, error) {
	return nil, identitydomain.ErrNotFound
}

type fakeCatalog struct{}

func (fakeCatalog) Create(_ context.Context, req catalogdomain.CreateRequest) (*catalogdomain.Response, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, catalogdomain.ErrInvalidName
	}
	return &catalogdomain.Response{ID: "prod_1", Name: req.Name}, nil
}

func (fakeCatalog) List(context.Context, catalogdomain.ListRequest) ([]catalogdomain.Response, error) {
	return []catalogdomain.Response{{ID: "prod_1", Slug: "watercolor"}}, nil
}

func (fakeCatalog) GetBySlug(_ context.Context, slug string) (*catalogdomain.Response, error) {
	if slug != "watercolor" {
		return nil, catalogdomain.ErrNotFound
	}
	return &catalogdomain.Response{ID: "prod_1", Slug: slug}, nil
}

func (fakeCatalog) FindByIDs(context.Context, []string) (map[string]catalogdomain.Product, error) {
	return map[string]catalogdomain.Product{}, nil
}

type fakeCheckout struct {
	caller checkoutdomain.Caller
}

func (f *fakeCheckout) CreateSession(_ context.Context, caller checkoutdomain.Caller, req checkoutdomain.Request) (*checkoutdomain.Response, error) {
	f.caller = caller
	if len(req.Items) == 0 {
		return nil, checkoutdomain.ErrEmptyCart
	}
	return &checkoutdomain.Response{URL: "https://checkout.stripe.test/cs_1"}, nil
}

type fakePayments struct{}

func (fakePayments) IngestWebhook(_ context.Context, provider string, _ []byte, _ http.Header) error {
	switch provider {
	case "stripe":
		return nil
	case "forged":
		return paymentdomain.ErrInvalidSignature
	case "replayed":
		return paymentdomain.ErrEventAlreadyProcessed
	case "ignored":
		return paymentdomain.ErrEventIgnored
	case "unknown":
		return paymentdomain.ErrProviderNotFound
	default:
		return errors.New("database is down")
	}
}

type fakeOrders struct{}

func (fakeOrders) UpsertIfAbsent(context.Context, orderdomain.UpsertRequest) (*orderdomain.Order, bool, error) {
	return nil, false, errors.New("not used")
}

func (fakeOrders) ListForUser(_ context.Context, userID string) ([]orderdomain.Order, error) {
	return []orderdomain.Order{{DisplayID: "PL-260101-AAAAAA", UserID: userID}}, nil
}

func (fakeOrders) List(context.Context, orderdomain.ListRequest) (*orderdomain.ListResponse, error) {
	return &orderdomain.ListResponse{Orders: []orderdomain.Order{}}, nil
}

func (fakeOrders) GetByDisplayID(_ context.Context, displayID string) (*orderdomain.Order, error) {
	if displayID != "PL-260101-AAAAAA" {
		return nil, orderdomain.ErrNotFound
	}
	return &orderdomain.Order{DisplayID: displayID}, nil
}

func (fakeOrders) GetItem(context.Context, snowflake.ID) (*orderdomain.ItemOwnership, error) {
	return nil, orderdomain.ErrItemNotFound
}

func (fakeOrders) MarkItemDownloaded(context.Context, snowflake.ID) (*orderdomain.OrderItem, bool, error) {
	return nil, false, orderdomain.ErrItemNotFound
}

type fakeDownloads struct{}

func (fakeDownloads) RequestDownload(_ context.Context, itemID snowflake.ID, userID string) (*downloaddomain.Result, error) {
	switch itemID {
	case 1:
		return &downloaddomain.Result{URL: "https://cdn.test/a.zip?token=x", ExpiresAt: time.Now().Add(5 * time.Minute), FirstDownload: true}, nil
	case 2:
		return nil, downloaddomain.ErrForbidden
	case 3:
		return nil, downloaddomain.ErrObjectNotFound
	case 4:
		return nil, downloaddomain.ErrNotEligible
	default:
		return nil, downloaddomain.ErrNotFound
	}
}

type fakeNotifier struct {
	contacts int
}

func (f *fakeNotifier) OrderConfirmed(context.Context, notificationdomain.OrderConfirmation) error {
	return nil
}

func (f *fakeNotifier) PaymentFailed(context.Context, notificationdomain.PaymentFailure) error {
	return nil
}

func (f *fakeNotifier) ContactMessage(context.Context, notificationdomain.ContactMessage) error {
	f.contacts++
	return nil
}

type testServer struct {
	engine   *gin.Engine
	verifier authdomain.Verifier
	identity *fakeIdentity
	checkout *fakeCheckout
	notifier *fakeNotifier
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Config{Auth: config.AuthConfig{JWTSecret: testSecret}}
	verifier, err := authservice.New(authservice.Params{Config: cfg, Clock: clock.NewFakeClock(time.Now())})
	require.NoError(t, err)

	ts := &testServer{
		engine:   NewEngine(observability.Config{}, nil),
		verifier: verifier,
		identity: &fakeIdentity{},
		checkout: &fakeCheckout{},
		notifier: &fakeNotifier{},
	}
	NewServer(ServerParams{
		Gin:             ts.engine,
		Cfg:             cfg,
		Log:             zap.NewNop(),
		Sessions:        session.NewManager(cfg),
		Verifier:        verifier,
		AuthzSvc:        fakeAuthz{},
		IdentitySvc:     ts.identity,
		CatalogSvc:      fakeCatalog{},
		CheckoutSvc:     ts.checkout,
		PaymentSvc:      fakePayments{},
		OrderSvc:        fakeOrders{},
		DownloadSvc:     fakeDownloads{},
		NotificationSvc: ts.notifier,
	})
	return ts
}

func (ts *testServer) token(t *testing.T, role string) string {
	t.Helper()
	token, _, err := ts.verifier.Issue(authdomain.IssueRequest{
		UserID: "user_1",
		Email:  "ada@example.com",
		Name:   "Ada",
		Role:   role,
		TTL:    time.Hour,
	})
	require.NoError(t, err)
	return token
}

func (ts *testServer) do(method, path, token string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	return rec
}

func errorType(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error.Type
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodGet, "/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckoutRequiresSession(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/checkout", "", `{"items":[]}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(http.MethodPost, "/api/checkout", "garbage", `{"items":[]}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCheckoutCookieSession(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/checkout", bytes.NewBufferString(`{"items":[{"id":"x"}]}`))
	req.AddCookie(&http.Cookie{Name: session.DefaultCookieName, Value: ts.token(t, "")})
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp checkoutdomain.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "https://checkout.stripe.test/cs_1", resp.URL)
	assert.Equal(t, checkoutdomain.Caller{UserID: "user_1", Email: "ada@example.com"}, ts.checkout.caller)
	require.Len(t, ts.identity.synced, 1)
	assert.Equal(t, "Ada", ts.identity.synced[0].FullName)
}

func TestCheckoutEmptyCart(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(http.MethodPost, "/api/checkout", ts.token(t, ""), `{"items":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "empty_cart", errorType(t, rec))

	rec = ts.do(http.MethodPost, "/api/checkout", ts.token(t, ""), `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookStatusCodes(t *testing.T) {
	ts := newTestServer(t)
	cases := map[string]int{
		"stripe":   http.StatusOK,
		"replayed": http.StatusOK,
		"ignored":  http.StatusOK,
		"forged":   http.StatusBadRequest,
		"unknown":  http.StatusNotFound,
		"broken":   http.StatusInternalServerError,
	}
	for provider, want := range cases {
		t.Run(provider, func(t *testing.T) {
			rec := ts.do(http.MethodPost, "/api/webhooks/"+provider, "", `{"id":"evt_1"}`)
			assert.Equal(t, want, rec.Code)
		})
	}
}

func TestAccountDownloads(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, "")

	rec := ts.do(http.MethodPost, "/api/account/downloads/1", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Contains(t, rec.Body.String(), "https://cdn.test/a.zip")

	cases := map[string]int{
		"2":    http.StatusForbidden,
		"3":    http.StatusServiceUnavailable,
		"4":    http.StatusConflict,
		"9":    http.StatusNotFound,
		"abc":  http.StatusBadRequest,
		"-100": http.StatusBadRequest,
	}
	for id, want := range cases {
		t.Run(id, func(t *testing.T) {
			rec := ts.do(http.MethodPost, "/api/account/downloads/"+id, token, "")
			assert.Equal(t, want, rec.Code)
			assert.NotContains(t, rec.Body.String(), ".zip")
		})
	}

	rec = ts.do(http.MethodPost, "/api/account/downloads/1", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAccountOrders(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(http.MethodGet, "/api/account/orders", ts.token(t, ""), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "PL-260101-AAAAAA")
}

func TestCastleRequiresAdmin(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/castle/orders", ts.token(t, authdomain.RoleCustomer), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	admin := ts.token(t, authdomain.RoleAdmin)
	rec = ts.do(http.MethodGet, "/api/castle/orders", admin, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodGet, "/api/castle/orders/PL-260101-AAAAAA", admin, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodGet, "/api/castle/orders/PL-000000-ZZZZZZ", admin, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodPost, "/api/castle/products", admin, `{"name":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodPost, "/api/castle/products", admin, `{"name":"Brushes"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestPublicCatalog(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(http.MethodGet, "/api/products", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodGet, "/api/products/watercolor", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodGet, "/api/products/missing", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestContactForm(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/contact", "", `{"name":"Grace","email":"not-an-email","message":"hello there friend"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, ts.notifier.contacts)

	rec = ts.do(http.MethodPost, "/api/contact", "", `{"name":"Grace","email":"grace@example.com","message":"hello there friend"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, ts.notifier.contacts)
}

func TestMapErrorHidesInternals(t *testing.T) {
	status, payload := mapError(errors.New("pq: relation orders does not exist"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "internal server error", payload.Message)

	kind, code := classifyErrorForLog(orderdomain.ErrInvalidStatus)
	assert.Equal(t, "validation_error", kind)
	assert.Equal(t, "invalid_status", code)
}
