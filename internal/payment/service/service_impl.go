package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/njaeplume/plume/internal/catalog/domain"
	"github.com/njaeplume/plume/internal/clock"
	notificationdomain "github.com/njaeplume/plume/internal/notification/domain"
	obsmetrics "github.com/njaeplume/plume/internal/observability/metrics"
	orderdomain "github.com/njaeplume/plume/internal/order/domain"
	paymentdomain "github.com/njaeplume/plume/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB              *gorm.DB
	Log             *zap.Logger
	Clock           clock.Clock
	GenID           *snowflake.Node
	Repo            paymentdomain.Repository
	CatalogSvc      catalogdomain.Service
	OrderSvc        orderdomain.Service
	NotificationSvc notificationdomain.Service
	ObsMetrics      *obsmetrics.Metrics `optional:"true"`
}

// Service applies verified provider events to the order store.
type Service struct {
	db              *gorm.DB
	log             *zap.Logger
	clock           clock.Clock
	genID           *snowflake.Node
	repo            paymentdomain.Repository
	catalogSvc      catalogdomain.Service
	orderSvc        orderdomain.Service
	notificationSvc notificationdomain.Service
	obsMetrics      *obsmetrics.Metrics
}

func NewService(p Params) *Service {
	return &Service{
		db:              p.DB,
		log:             p.Log.Named("payment.service"),
		clock:           p.Clock,
		genID:           p.GenID,
		repo:            p.Repo,
		catalogSvc:      p.CatalogSvc,
		orderSvc:        p.OrderSvc,
		notificationSvc: p.NotificationSvc,
		obsMetrics:      p.ObsMetrics,
	}
}

// ProcessEvent records the event receipt and applies it at most once.
// Errors returned before the order commits ask the provider to retry.
func (s *Service) ProcessEvent(ctx context.Context, event *paymentdomain.Event) error {
	if err := validateEvent(event); err != nil {
		return err
	}

	payload := event.RawPayload
	if !json.Valid(payload) {
		return paymentdomain.ErrInvalidPayload
	}

	now := s.clock.Now()
	received := paymentdomain.EventRecord{
		ID:              s.genID.Generate(),
		Provider:        event.Provider,
		ProviderEventID: event.ProviderEventID,
		EventType:       event.Type,
		Payload:         datatypes.JSON(payload),
		ReceivedAt:      now,
	}

	inserted, err := s.repo.InsertEvent(ctx, s.db, &received)
	if err != nil {
		return err
	}
	stored := &received
	if !inserted {
		stored, err = s.repo.FindEvent(ctx, s.db, event.Provider, event.ProviderEventID)
		if err != nil {
			return err
		}
		if stored == nil {
			return paymentdomain.ErrInvalidEvent
		}
		if stored.ProcessedAt != nil {
			s.obsMetrics.RecordPaymentEvent(ctx, event.Provider, event.Type, "duplicate")
			return paymentdomain.ErrEventAlreadyProcessed
		}
	}

	switch event.Kind {
	case paymentdomain.EventKindCheckoutCompleted:
		err = s.completeCheckout(ctx, event)
	case paymentdomain.EventKindPaymentFailed:
		s.notifyPaymentFailed(ctx, event)
	default:
		err = paymentdomain.ErrInvalidEvent
	}
	if err != nil {
		s.obsMetrics.RecordPaymentEvent(ctx, event.Provider, event.Type, "failed")
		return err
	}

	// Reprocessing is idempotent, so a lost marker only costs a replay.
	if err := s.repo.MarkProcessed(ctx, s.db, stored.ID, s.clock.Now()); err != nil {
		s.log.Warn("failed to mark payment event processed",
			zap.String("provider_event_id", event.ProviderEventID),
			zap.Error(err),
		)
	}

	s.obsMetrics.RecordPaymentEvent(ctx, event.Provider, event.Type, "processed")
	return nil
}

func validateEvent(event *paymentdomain.Event) error {
	if event == nil {
		return paymentdomain.ErrInvalidEvent
	}
	event.Provider = strings.ToLower(strings.TrimSpace(event.Provider))
	if event.Provider == "" {
		return paymentdomain.ErrInvalidProvider
	}
	event.ProviderEventID = strings.TrimSpace(event.ProviderEventID)
	if event.ProviderEventID == "" {
		return paymentdomain.ErrInvalidEvent
	}
	event.Type = strings.TrimSpace(event.Type)
	if event.Type == "" {
		return paymentdomain.ErrInvalidEvent
	}

	switch event.Kind {
	case paymentdomain.EventKindCheckoutCompleted:
		if strings.TrimSpace(event.CheckoutSessionID) == "" || strings.TrimSpace(event.UserID) == "" {
			return paymentdomain.ErrInvalidEvent
		}
		if len(event.CartItems) == 0 {
			return paymentdomain.ErrInvalidMetadata
		}
		currency := strings.ToUpper(strings.TrimSpace(event.Currency))
		if len(currency) != 3 {
			return paymentdomain.ErrInvalidCurrency
		}
		event.Currency = currency
	case paymentdomain.EventKindPaymentFailed:
	default:
		return paymentdomain.ErrInvalidEvent
	}
	return nil
}

func (s *Service) completeCheckout(ctx context.Context, event *paymentdomain.Event) error {
	ids := make([]string, 0, len(event.CartItems))
	for _, item := range event.CartItems {
		ids = append(ids, item.ID)
	}

	// Delivery fields come from the catalog; the price stays the one locked
	// into the session.
	products, err := s.catalogSvc.FindByIDs(ctx, ids)
	if err != nil {
		return err
	}

	items := make([]orderdomain.ItemInput, 0, len(event.CartItems))
	for _, cartItem := range event.CartItems {
		input := orderdomain.ItemInput{
			ProductID:  cartItem.ID,
			PriceCents: cartItem.Price,
		}
		if product, ok := products[cartItem.ID]; ok {
			input.ProductName = product.Name
			input.Category = string(product.Category)
			input.ZipFileName = product.ZipFileName
		} else {
			s.log.Warn("paid product missing from catalog",
				zap.String("product_id", cartItem.ID),
				zap.String("checkout_session_id", event.CheckoutSessionID),
			)
		}
		items = append(items, input)
	}

	order, created, err := s.orderSvc.UpsertIfAbsent(ctx, orderdomain.UpsertRequest{
		SessionID:       event.CheckoutSessionID,
		PaymentIntentID: event.PaymentIntentID,
		CustomerID:      event.ProviderCustomerID,
		UserID:          event.UserID,
		AmountCents:     event.AmountTotal,
		Currency:        event.Currency,
		CustomerEmail:   event.Contact.Email,
		CustomerName:    event.Contact.Name,
		Items:           items,
	})
	if err != nil {
		return err
	}
	if !created {
		s.log.Info("order already recorded for checkout session",
			zap.String("checkout_session_id", event.CheckoutSessionID),
			zap.String("display_id", order.DisplayID),
		)
		return nil
	}

	// The order is durable from here on; notification errors stay in the logs.
	err = s.notificationSvc.OrderConfirmed(ctx, notificationdomain.OrderConfirmation{
		Order: order,
		Recipient: notificationdomain.Recipient{
			Email: event.Contact.Email,
			Name:  event.Contact.Name,
		},
	})
	s.logNotificationError("order confirmation", event, err)
	return nil
}

func (s *Service) notifyPaymentFailed(ctx context.Context, event *paymentdomain.Event) {
	err := s.notificationSvc.PaymentFailed(ctx, notificationdomain.PaymentFailure{
		UserID: event.UserID,
		Recipient: notificationdomain.Recipient{
			Email: event.Contact.Email,
			Name:  event.Contact.Name,
		},
		AmountCents: event.AmountTotal,
		Currency:    event.Currency,
		Reason:      event.FailureMessage,
	})
	s.logNotificationError("payment failure", event, err)
}

// logNotificationError logs joined errors one by one so a missing customer
// address does not hide a failed store owner notice.
func (s *Service) logNotificationError(kind string, event *paymentdomain.Event, err error) {
	if err == nil {
		return
	}
	errs := []error{err}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	}
	for _, e := range errs {
		if errors.Is(e, notificationdomain.ErrNoRecipient) {
			s.log.Info("notification skipped, no contact details",
				zap.String("kind", kind),
				zap.String("provider_event_id", event.ProviderEventID),
			)
			continue
		}
		s.log.Error("notification failed",
			zap.String("kind", kind),
			zap.String("provider_event_id", event.ProviderEventID),
			zap.Error(e),
		)
	}
}
