package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/njaeplume/plume/internal/catalog/domain"
	catalogrepo "github.com/njaeplume/plume/internal/catalog/repository"
	catalogservice "github.com/njaeplume/plume/internal/catalog/service"
	"github.com/njaeplume/plume/internal/clock"
	"github.com/njaeplume/plume/internal/config"
	notificationdomain "github.com/njaeplume/plume/internal/notification/domain"
	orderdomain "github.com/njaeplume/plume/internal/order/domain"
	orderrepo "github.com/njaeplume/plume/internal/order/repository"
	orderservice "github.com/njaeplume/plume/internal/order/service"
	"github.com/njaeplume/plume/internal/payment/adapters"
	"github.com/njaeplume/plume/internal/payment/adapters/stripe"
	paymentdomain "github.com/njaeplume/plume/internal/payment/domain"
	paymentrepo "github.com/njaeplume/plume/internal/payment/repository"
	paymentservice "github.com/njaeplume/plume/internal/payment/service"
	paymentwebhook "github.com/njaeplume/plume/internal/payment/webhook"
	"github.com/njaeplume/plume/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

const webhookSecret = "whsec_test"

var now = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

type notifierMock struct {
	mock.Mock
}

func (m *notifierMock) OrderConfirmed(ctx context.Context, req notificationdomain.OrderConfirmation) error {
	return m.Called(ctx, req).Error(0)
}

func (m *notifierMock) PaymentFailed(ctx context.Context, req notificationdomain.PaymentFailure) error {
	return m.Called(ctx, req).Error(0)
}

func (m *notifierMock) ContactMessage(ctx context.Context, req notificationdomain.ContactMessage) error {
	return m.Called(ctx, req).Error(0)
}

type harness struct {
	db       *gorm.DB
	webhook  paymentdomain.Service
	orders   orderdomain.Service
	notifier *notifierMock
	product  *catalogdomain.Response
	logs     *observer.ObservedLogs
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.OpenDB(t)
	clk := clock.NewFakeClock(now)
	node, err := snowflake.NewNode(10)
	require.NoError(t, err)

	cfg := config.Config{
		Checkout: config.CheckoutConfig{Currency: config.CurrencyCAD},
		Stripe: config.StripeConfig{
			WebhookSecret:    webhookSecret,
			WebhookTolerance: 5 * time.Minute,
		},
	}

	catalogSvc := catalogservice.New(catalogservice.Params{
		DB: db, Log: zap.NewNop(), Clock: clk, Config: cfg, Repo: catalogrepo.Provide(),
	})
	product, err := catalogSvc.Create(context.Background(), catalogdomain.CreateRequest{
		Name:        "Watercolor Brushes",
		Category:    "brushes",
		Price:       "19.99",
		ZipFileName: "brushes/watercolor.zip",
	})
	require.NoError(t, err)

	orderSvc := orderservice.New(orderservice.Params{
		DB: db, Log: zap.NewNop(), Clock: clk, GenID: node, Repo: orderrepo.Provide(),
	})

	notifier := &notifierMock{}
	core, logs := observer.New(zapcore.InfoLevel)
	paymentSvc := paymentservice.NewService(paymentservice.Params{
		DB:              db,
		Log:             zap.New(core),
		Clock:           clk,
		GenID:           node,
		Repo:            paymentrepo.Provide(),
		CatalogSvc:      catalogSvc,
		OrderSvc:        orderSvc,
		NotificationSvc: notifier,
	})

	adapter, err := stripe.NewAdapter(cfg, clk)
	require.NoError(t, err)

	webhookSvc := paymentwebhook.NewService(paymentwebhook.Params{
		Log:        zap.NewNop(),
		PaymentSvc: paymentSvc,
		Adapters:   adapters.NewRegistry(adapter),
	})

	return &harness{db: db, webhook: webhookSvc, orders: orderSvc, notifier: notifier, product: product, logs: logs}
}

func (h *harness) completedPayload(t *testing.T, eventID string, sessionID string) []byte {
	t.Helper()
	cart, err := json.Marshal([]paymentdomain.CartItem{{ID: h.product.ID, Price: 1999}})
	require.NoError(t, err)
	payload, err := json.Marshal(map[string]any{
		"id":      eventID,
		"object":  "event",
		"type":    "checkout.session.completed",
		"created": now.Unix(),
		"data": map[string]any{
			"object": map[string]any{
				"id":             sessionID,
				"object":         "checkout.session",
				"amount_total":   1999,
				"currency":       "cad",
				"payment_status": "paid",
				"payment_intent": "pi_" + sessionID,
				"customer_details": map[string]any{
					"email": "buyer@example.com",
					"name":  "Ada Buyer",
				},
				"metadata": map[string]any{
					"userId":    "user_1",
					"cartItems": string(cart),
				},
			},
		},
	})
	require.NoError(t, err)
	return payload
}

func signed(payload []byte) http.Header {
	headers := http.Header{}
	headers.Set(stripe.SignatureHeader, stripe.BuildSignatureHeader(webhookSecret, payload, now.Unix()))
	return headers
}

func TestCheckoutCompletedCreatesOrder(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.notifier.On("OrderConfirmed", mock.Anything, mock.Anything).Return(nil).Once()

	payload := h.completedPayload(t, "evt_1", "cs_test_a")
	require.NoError(t, h.webhook.IngestWebhook(ctx, "stripe", payload, signed(payload)))

	orders, err := h.orders.ListForUser(ctx, "user_1")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	order := orders[0]
	assert.Equal(t, orderdomain.StatusCompleted, order.Status)
	assert.Equal(t, int64(1999), order.AmountCents)
	assert.Equal(t, "CAD", order.Currency)
	assert.Equal(t, "buyer@example.com", order.CustomerEmail)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "Watercolor Brushes", order.Items[0].ProductName)
	assert.Equal(t, "brushes/watercolor.zip", order.Items[0].ZipFileName)
	assert.Equal(t, int64(1999), order.Items[0].PriceCents)
	assert.Equal(t, 0, order.Items[0].DownloadCount)

	h.notifier.AssertExpectations(t)
	h.notifier.AssertCalled(t, "OrderConfirmed", mock.Anything, mock.MatchedBy(func(req notificationdomain.OrderConfirmation) bool {
		return req.Order != nil && req.Recipient.Email == "buyer@example.com"
	}))
	testutil.AssertCount(t, h.db, "payment_events", 1)
}

func TestDuplicateDeliveryCreatesSingleOrder(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.notifier.On("OrderConfirmed", mock.Anything, mock.Anything).Return(nil).Once()

	payload := h.completedPayload(t, "evt_dup", "cs_test_b")
	require.NoError(t, h.webhook.IngestWebhook(ctx, "stripe", payload, signed(payload)))

	for i := 0; i < 3; i++ {
		err := h.webhook.IngestWebhook(ctx, "stripe", payload, signed(payload))
		require.ErrorIs(t, err, paymentdomain.ErrEventAlreadyProcessed)
	}

	testutil.AssertCount(t, h.db, "orders", 1)
	testutil.AssertCount(t, h.db, "order_items", 1)
	testutil.AssertCount(t, h.db, "payment_events", 1)
	h.notifier.AssertNumberOfCalls(t, "OrderConfirmed", 1)
}

func TestDistinctEventsForSameSessionCreateSingleOrder(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.notifier.On("OrderConfirmed", mock.Anything, mock.Anything).Return(nil).Once()

	first := h.completedPayload(t, "evt_a", "cs_same")
	second := h.completedPayload(t, "evt_b", "cs_same")
	require.NoError(t, h.webhook.IngestWebhook(ctx, "stripe", first, signed(first)))
	require.NoError(t, h.webhook.IngestWebhook(ctx, "stripe", second, signed(second)))

	testutil.AssertCount(t, h.db, "orders", 1)
	testutil.AssertCount(t, h.db, "payment_events", 2)
	h.notifier.AssertNumberOfCalls(t, "OrderConfirmed", 1)
}

func TestNotificationFailureDoesNotFailWebhook(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.notifier.On("OrderConfirmed", mock.Anything, mock.Anything).Return(errors.New("smtp: connection refused")).Once()

	payload := h.completedPayload(t, "evt_mail", "cs_test_d")
	require.NoError(t, h.webhook.IngestWebhook(ctx, "stripe", payload, signed(payload)))

	orders, err := h.orders.ListForUser(ctx, "user_1")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, orderdomain.StatusCompleted, orders[0].Status)

	var processed int64
	require.NoError(t, h.db.Table("payment_events").Where("processed_at IS NOT NULL").Count(&processed).Error)
	assert.Equal(t, int64(1), processed)
}

func TestOwnerNoticeFailureLoggedWhenCustomerUnreachable(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	ownerErr := fmt.Errorf("%w: new_sale: smtp: connection refused", notificationdomain.ErrDeliveryFailed)
	h.notifier.On("OrderConfirmed", mock.Anything, mock.Anything).
		Return(errors.Join(notificationdomain.ErrNoRecipient, ownerErr)).Once()

	payload := h.completedPayload(t, "evt_owner", "cs_test_owner")
	require.NoError(t, h.webhook.IngestWebhook(ctx, "stripe", payload, signed(payload)))

	assert.Equal(t, 1, h.logs.FilterMessage("notification skipped, no contact details").Len())
	failed := h.logs.FilterMessage("notification failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, zapcore.ErrorLevel, failed[0].Level)
	assert.Contains(t, failed[0].ContextMap()["error"], "new_sale")
}

func TestInvalidSignatureNeverCreatesOrder(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	payload := h.completedPayload(t, "evt_forged", "cs_forged")
	forged := http.Header{}
	forged.Set(stripe.SignatureHeader, stripe.BuildSignatureHeader("whsec_attacker", payload, now.Unix()))

	err := h.webhook.IngestWebhook(ctx, "stripe", payload, forged)
	require.ErrorIs(t, err, paymentdomain.ErrInvalidSignature)
	err = h.webhook.IngestWebhook(ctx, "stripe", payload, http.Header{})
	require.ErrorIs(t, err, paymentdomain.ErrInvalidSignature)

	testutil.AssertCount(t, h.db, "orders", 0)
	testutil.AssertCount(t, h.db, "payment_events", 0)
	h.notifier.AssertNotCalled(t, "OrderConfirmed", mock.Anything, mock.Anything)
}

func TestPaymentFailedNotifiesWithoutOrder(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.notifier.On("PaymentFailed", mock.Anything, mock.MatchedBy(func(req notificationdomain.PaymentFailure) bool {
		return req.UserID == "user_1" && req.Reason == "Your card was declined."
	})).Return(errors.New("provider down")).Once()

	payload, err := json.Marshal(map[string]any{
		"id":   "evt_fail",
		"type": "payment_intent.payment_failed",
		"data": map[string]any{
			"object": map[string]any{
				"id":                 "pi_fail",
				"object":             "payment_intent",
				"amount":             1999,
				"currency":           "cad",
				"metadata":           map[string]any{"userId": "user_1"},
				"last_payment_error": map[string]any{"message": "Your card was declined."},
			},
		},
	})
	require.NoError(t, err)

	require.NoError(t, h.webhook.IngestWebhook(ctx, "stripe", payload, signed(payload)))
	testutil.AssertCount(t, h.db, "orders", 0)
	h.notifier.AssertExpectations(t)
}

func TestUnknownEventAndProviderAreRejectedOrIgnored(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	payload := []byte(`{"id":"evt_other","type":"invoice.paid","data":{"object":{"id":"in_1"}}}`)
	err := h.webhook.IngestWebhook(ctx, "stripe", payload, signed(payload))
	require.ErrorIs(t, err, paymentdomain.ErrEventIgnored)

	err = h.webhook.IngestWebhook(ctx, "paypal", payload, signed(payload))
	require.ErrorIs(t, err, paymentdomain.ErrProviderNotFound)
	testutil.AssertCount(t, h.db, "payment_events", 0)
}

func TestReceivedButUnprocessedEventIsRetried(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.notifier.On("OrderConfirmed", mock.Anything, mock.Anything).Return(nil).Once()

	payload := h.completedPayload(t, "evt_retry", "cs_retry")
	// A previous delivery recorded the receipt and then failed before commit.
	require.NoError(t, h.db.Exec(
		`INSERT INTO payment_events (id, provider, provider_event_id, event_type, payload, received_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		1, "stripe", "evt_retry", "checkout.session.completed", string(payload), now,
	).Error)

	require.NoError(t, h.webhook.IngestWebhook(ctx, "stripe", payload, signed(payload)))
	testutil.AssertCount(t, h.db, "orders", 1)
	testutil.AssertCount(t, h.db, "payment_events", 1)
}

func TestMissingCatalogProductStillRecordsPaidOrder(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.notifier.On("OrderConfirmed", mock.Anything, mock.Anything).Return(nil).Once()
	h.product.ID = "00000000-0000-0000-0000-000000000000"

	payload := h.completedPayload(t, "evt_gone", "cs_gone")
	require.NoError(t, h.webhook.IngestWebhook(ctx, "stripe", payload, signed(payload)))

	orders, err := h.orders.ListForUser(ctx, "user_1")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "", orders[0].Items[0].ZipFileName)
	assert.Equal(t, int64(1999), orders[0].Items[0].PriceCents)
}
