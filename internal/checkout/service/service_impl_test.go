package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	catalogdomain "github.com/njaeplume/plume/internal/catalog/domain"
	catalogrepository "github.com/njaeplume/plume/internal/catalog/repository"
	catalogservice "github.com/njaeplume/plume/internal/catalog/service"
	"github.com/njaeplume/plume/internal/checkout/domain"
	"github.com/njaeplume/plume/internal/checkout/service"
	"github.com/njaeplume/plume/internal/clock"
	"github.com/njaeplume/plume/internal/config"
	paymentdomain "github.com/njaeplume/plume/internal/payment/domain"
	"github.com/njaeplume/plume/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type sessionsMock struct {
	mock.Mock
}

func (m *sessionsMock) CreateCheckoutSession(ctx context.Context, req paymentdomain.CheckoutSessionRequest) (*paymentdomain.CheckoutSession, error) {
	args := m.Called(ctx, req)
	session, _ := args.Get(0).(*paymentdomain.CheckoutSession)
	return session, args.Error(1)
}

type harness struct {
	checkout domain.Service
	catalog  catalogdomain.Service
	sessions *sessionsMock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.OpenDB(t)
	clk := clock.NewFakeClock(time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC))
	cfg := config.Config{
		Checkout: config.CheckoutConfig{
			Currency:   config.CurrencyCAD,
			SuccessURL: "https://njaeplume.test/checkout/success?session_id={CHECKOUT_SESSION_ID}",
			CancelURL:  "https://njaeplume.test/cart",
		},
	}
	catalog := catalogservice.New(catalogservice.Params{
		DB:     db,
		Log:    zap.NewNop(),
		Clock:  clk,
		Config: cfg,
		Repo:   catalogrepository.Provide(),
	})
	sessions := &sessionsMock{}
	checkout := service.New(service.Params{
		Log:        zap.NewNop(),
		Config:     cfg,
		Clock:      clk,
		CatalogSvc: catalog,
		Sessions:   sessions,
	})
	return &harness{checkout: checkout, catalog: catalog, sessions: sessions}
}

func (h *harness) product(t *testing.T, name, price string) *catalogdomain.Response {
	t.Helper()
	resp, err := h.catalog.Create(context.Background(), catalogdomain.CreateRequest{
		Name:        name,
		Category:    "brushes",
		Price:       price,
		ZipFileName: "brushes/" + name + ".zip",
		Images:      []catalogdomain.Image{{URL: "https://cdn.example.com/a.png"}},
	})
	require.NoError(t, err)
	return resp
}

func cartLine(p *catalogdomain.Response, price string) domain.CartLineDTO {
	return domain.CartLineDTO{
		ID:          p.ID,
		Name:        p.Name,
		Price:       decimal.RequireFromString(price),
		Category:    "brushes",
		Description: "Soft watercolor textures",
		Images:      []domain.ImageDTO{{URL: "https://cdn.example.com/a.png", Alt: "preview"}},
		Tags:        []string{"procreate"},
	}
}

var caller = domain.Caller{UserID: "user_1", Email: "ada@example.com"}

func TestCreateSessionUsesCatalogPrices(t *testing.T) {
	h := newHarness(t)
	p := h.product(t, "watercolor", "19.99")

	var captured paymentdomain.CheckoutSessionRequest
	h.sessions.On("CreateCheckoutSession", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { captured = args.Get(1).(paymentdomain.CheckoutSessionRequest) }).
		Return(&paymentdomain.CheckoutSession{ID: "cs_1", URL: "https://checkout.stripe.test/cs_1"}, nil).Once()

	// The client claims a lower price; the catalog wins.
	resp, err := h.checkout.CreateSession(context.Background(), caller, domain.Request{
		Items: []domain.CartLineDTO{cartLine(p, "1.00")},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.stripe.test/cs_1", resp.URL)

	require.Len(t, captured.LineItems, 1)
	assert.Equal(t, int64(1999), captured.LineItems[0].UnitAmount)
	assert.Equal(t, int64(1), captured.LineItems[0].Quantity)
	assert.Equal(t, config.CurrencyCAD, captured.Currency)
	assert.Equal(t, "ada@example.com", captured.CustomerEmail)
	assert.NotEmpty(t, captured.IdempotencyKey)

	userID, items, err := paymentdomain.DecodeCartMetadata(captured.Metadata)
	require.NoError(t, err)
	assert.Equal(t, "user_1", userID)
	assert.Equal(t, []paymentdomain.CartItem{{ID: p.ID, Price: 1999}}, items)
}

func TestCreateSessionRejectsOversizedMetadataWithoutProviderCall(t *testing.T) {
	h := newHarness(t)
	var lines []domain.CartLineDTO
	for i := 0; i < 10; i++ {
		p := h.product(t, fmt.Sprintf("pack-%d", i), "5.00")
		lines = append(lines, cartLine(p, "5.00"))
	}

	_, err := h.checkout.CreateSession(context.Background(), caller, domain.Request{Items: lines})
	require.ErrorIs(t, err, domain.ErrMetadataTooLarge)
	h.sessions.AssertNotCalled(t, "CreateCheckoutSession", mock.Anything, mock.Anything)
}

func TestCreateSessionValidation(t *testing.T) {
	h := newHarness(t)
	p := h.product(t, "stamps", "4.00")
	ctx := context.Background()

	_, err := h.checkout.CreateSession(ctx, domain.Caller{}, domain.Request{Items: []domain.CartLineDTO{cartLine(p, "4.00")}})
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = h.checkout.CreateSession(ctx, domain.Caller{UserID: "user_1"}, domain.Request{Items: []domain.CartLineDTO{cartLine(p, "4.00")}})
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = h.checkout.CreateSession(ctx, caller, domain.Request{})
	require.ErrorIs(t, err, domain.ErrEmptyCart)

	cases := map[string]func(*domain.CartLineDTO){
		"bad category": func(l *domain.CartLineDTO) { l.Category = "stickers" },
		"no images":    func(l *domain.CartLineDTO) { l.Images = nil },
		"bad image":    func(l *domain.CartLineDTO) { l.Images = []domain.ImageDTO{{URL: "not a url"}} },
		"empty tag":    func(l *domain.CartLineDTO) { l.Tags = []string{""} },
		"zero price":   func(l *domain.CartLineDTO) { l.Price = decimal.Zero },
		"bad id":       func(l *domain.CartLineDTO) { l.ID = "p1" },
		"no name":      func(l *domain.CartLineDTO) { l.Name = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			line := cartLine(p, "4.00")
			mutate(&line)
			_, err := h.checkout.CreateSession(ctx, caller, domain.Request{Items: []domain.CartLineDTO{line}})
			require.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
	h.sessions.AssertNotCalled(t, "CreateCheckoutSession", mock.Anything, mock.Anything)
}

func TestCreateSessionRejectsUnknownAndDuplicateItems(t *testing.T) {
	h := newHarness(t)
	p := h.product(t, "fonts", "12.00")
	ctx := context.Background()

	_, err := h.checkout.CreateSession(ctx, caller, domain.Request{
		Items: []domain.CartLineDTO{cartLine(p, "12.00"), cartLine(p, "12.00")},
	})
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	ghost := cartLine(p, "12.00")
	ghost.ID = "8f14e45f-ceea-467f-a0e6-a5f6f2f1c0de"
	_, err = h.checkout.CreateSession(ctx, caller, domain.Request{Items: []domain.CartLineDTO{ghost}})
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	inactive := false
	hidden, err := h.catalog.Create(ctx, catalogdomain.CreateRequest{
		Name:        "retired",
		Category:    "fonts",
		Price:       "3.00",
		ZipFileName: "fonts/retired.zip",
		Images:      []catalogdomain.Image{{URL: "https://cdn.example.com/r.png"}},
		Active:      &inactive,
	})
	require.NoError(t, err)
	_, err = h.checkout.CreateSession(ctx, caller, domain.Request{Items: []domain.CartLineDTO{cartLine(hidden, "3.00")}})
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	h.sessions.AssertNotCalled(t, "CreateCheckoutSession", mock.Anything, mock.Anything)
}

func TestCreateSessionProviderFailure(t *testing.T) {
	h := newHarness(t)
	p := h.product(t, "templates", "8.50")
	h.sessions.On("CreateCheckoutSession", mock.Anything, mock.Anything).
		Return(nil, errors.New("stripe down")).Once()

	_, err := h.checkout.CreateSession(context.Background(), caller, domain.Request{
		Items: []domain.CartLineDTO{cartLine(p, "8.50")},
	})
	require.ErrorIs(t, err, domain.ErrUnavailable)
}
