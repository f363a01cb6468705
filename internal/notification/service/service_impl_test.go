package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/njaeplume/plume/internal/clock"
	"github.com/njaeplume/plume/internal/config"
	identitydomain "github.com/njaeplume/plume/internal/identity/domain"
	identityrepository "github.com/njaeplume/plume/internal/identity/repository"
	identityservice "github.com/njaeplume/plume/internal/identity/service"
	"github.com/njaeplume/plume/internal/notification/domain"
	"github.com/njaeplume/plume/internal/notification/service"
	orderdomain "github.com/njaeplume/plume/internal/order/domain"
	"github.com/njaeplume/plume/internal/providers/email"
	"github.com/njaeplume/plume/internal/testutil"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type emailMock struct {
	mock.Mock
}

func (m *emailMock) Name() string { return "mock" }

func (m *emailMock) Send(ctx context.Context, msg email.Message) error {
	return m.Called(ctx, msg).Error(0)
}

func newService(t *testing.T, owner string) (domain.Service, *emailMock, identitydomain.Service) {
	t.Helper()
	db := testutil.OpenDB(t)
	identity := identityservice.New(identityservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		Clock: clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
		Repo:  identityrepository.Provide(),
	})
	provider := &emailMock{}
	svc := service.New(service.Params{
		Log: zap.NewNop(),
		Config: config.Config{
			BaseURL: "https://njaeplume.test",
			Email:   config.EmailConfig{To: owner},
		},
		Email:       provider,
		IdentitySvc: identity,
	})
	return svc, provider, identity
}

func sampleOrder() *orderdomain.Order {
	return &orderdomain.Order{
		DisplayID:   "PL-260301-ABC123",
		UserID:      "user_1",
		Status:      orderdomain.StatusCompleted,
		AmountCents: 2499,
		Currency:    "CAD",
		Items: []orderdomain.OrderItem{
			{ProductID: "p1", ProductName: "Autumn Lace Pattern", PriceCents: 1500, Quantity: 1},
			{ProductID: "p2", ProductName: "Cable Knit Hat", PriceCents: 999, Quantity: 1},
		},
	}
}

func TestOrderConfirmedSendsCustomerAndOwnerMail(t *testing.T) {
	ctx := context.Background()
	svc, provider, _ := newService(t, "owner@njaeplume.test")

	var sent []email.Message
	provider.On("Send", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { sent = append(sent, args.Get(1).(email.Message)) }).
		Return(nil)

	err := svc.OrderConfirmed(ctx, domain.OrderConfirmation{
		Order:     sampleOrder(),
		Recipient: domain.Recipient{Email: "ada@example.com", Name: "Ada"},
	})
	require.NoError(t, err)
	require.Len(t, sent, 2)

	customer := sent[0]
	require.Equal(t, []string{"ada@example.com"}, customer.To)
	require.Contains(t, customer.Subject, "PL-260301-ABC123")
	require.Contains(t, customer.HTML, "Autumn Lace Pattern")
	require.Contains(t, customer.HTML, "$24.99 CAD")
	require.Contains(t, customer.HTML, "https://njaeplume.test/account/orders")

	owner := sent[1]
	require.Equal(t, []string{"owner@njaeplume.test"}, owner.To)
	require.Equal(t, "ada@example.com", owner.ReplyTo)
	require.Contains(t, owner.HTML, "Cable Knit Hat")
}

func TestOrderConfirmedFallsBackToIdentity(t *testing.T) {
	ctx := context.Background()
	svc, provider, identity := newService(t, "")
	require.NoError(t, identity.Sync(ctx, identitydomain.SyncRequest{UserID: "user_1", Email: "ada@example.com", FullName: "Ada Lovelace"}))

	provider.On("Send", mock.Anything, mock.MatchedBy(func(msg email.Message) bool {
		return len(msg.To) == 1 && msg.To[0] == "ada@example.com"
	})).Return(nil).Once()

	require.NoError(t, svc.OrderConfirmed(ctx, domain.OrderConfirmation{Order: sampleOrder()}))
	provider.AssertExpectations(t)
}

func TestOrderConfirmedWithoutRecipient(t *testing.T) {
	ctx := context.Background()
	svc, provider, _ := newService(t, "owner@njaeplume.test")
	provider.On("Send", mock.Anything, mock.Anything).Return(nil).Once()

	err := svc.OrderConfirmed(ctx, domain.OrderConfirmation{Order: sampleOrder()})
	require.ErrorIs(t, err, domain.ErrNoRecipient)
	// The owner still hears about the sale.
	provider.AssertNumberOfCalls(t, "Send", 1)
}

func TestOrderConfirmedDeliveryFailure(t *testing.T) {
	ctx := context.Background()
	svc, provider, _ := newService(t, "")
	provider.On("Send", mock.Anything, mock.Anything).Return(errors.New("smtp down"))

	err := svc.OrderConfirmed(ctx, domain.OrderConfirmation{
		Order:     sampleOrder(),
		Recipient: domain.Recipient{Email: "ada@example.com"},
	})
	require.ErrorIs(t, err, domain.ErrDeliveryFailed)
}

func TestPaymentFailed(t *testing.T) {
	ctx := context.Background()
	svc, provider, _ := newService(t, "")

	var sent email.Message
	provider.On("Send", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(1).(email.Message) }).
		Return(nil).Once()

	err := svc.PaymentFailed(ctx, domain.PaymentFailure{
		Recipient:   domain.Recipient{Email: "ada@example.com", Name: "Ada"},
		AmountCents: 1500,
		Currency:    "cad",
		Reason:      "Your card was declined.",
	})
	require.NoError(t, err)
	require.Equal(t, []string{"ada@example.com"}, sent.To)
	require.Contains(t, sent.HTML, "Your card was declined.")
	require.Contains(t, sent.HTML, "https://njaeplume.test/cart")

	require.ErrorIs(t, svc.PaymentFailed(ctx, domain.PaymentFailure{UserID: "ghost"}), domain.ErrNoRecipient)
}

func TestContactMessage(t *testing.T) {
	ctx := context.Background()
	svc, provider, _ := newService(t, "owner@njaeplume.test")

	var sent email.Message
	provider.On("Send", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(1).(email.Message) }).
		Return(nil).Once()

	err := svc.ContactMessage(ctx, domain.ContactMessage{
		Name:    "Grace",
		Email:   "grace@example.com",
		Subject: "Custom\r\norder",
		Message: "Do you take commissions for baby blankets?",
	})
	require.NoError(t, err)
	require.Equal(t, []string{"owner@njaeplume.test"}, sent.To)
	require.Equal(t, "grace@example.com", sent.ReplyTo)
	require.Equal(t, "Contact form: Custom order", sent.Subject)
	require.Contains(t, sent.HTML, "baby blankets")

	require.ErrorIs(t, svc.ContactMessage(ctx, domain.ContactMessage{Name: "x"}), domain.ErrInvalidMessage)
}

func TestContactMessageWithoutInbox(t *testing.T) {
	svc, _, _ := newService(t, "")
	err := svc.ContactMessage(context.Background(), domain.ContactMessage{
		Name:    "Grace",
		Email:   "grace@example.com",
		Message: "Hello there, lovely patterns.",
	})
	require.ErrorIs(t, err, domain.ErrNoRecipient)
}
