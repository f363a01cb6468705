package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/njaeplume/plume/internal/config"
	identitydomain "github.com/njaeplume/plume/internal/identity/domain"
	"github.com/njaeplume/plume/internal/notification/domain"
	obsmetrics "github.com/njaeplume/plume/internal/observability/metrics"
	orderdomain "github.com/njaeplume/plume/internal/order/domain"
	"github.com/njaeplume/plume/internal/providers/email"
	"github.com/njaeplume/plume/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	kindOrderConfirmed = "order_confirmed"
	kindPaymentFailed  = "payment_failed"
	kindNewSale        = "new_sale"
	kindContact        = "contact"
)

type Params struct {
	fx.In

	Log         *zap.Logger
	Config      config.Config
	Email       email.Provider
	IdentitySvc identitydomain.Service
	ObsMetrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log         *zap.Logger
	baseURL     string
	ownerInbox  string
	email       email.Provider
	identitySvc identitydomain.Service
	obsMetrics  *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		log:         p.Log.Named("notification.service"),
		baseURL:     strings.TrimRight(p.Config.BaseURL, "/"),
		ownerInbox:  strings.TrimSpace(p.Config.Email.To),
		email:       p.Email,
		identitySvc: p.IdentitySvc,
		obsMetrics:  p.ObsMetrics,
	}
}

func (s *Service) OrderConfirmed(ctx context.Context, req domain.OrderConfirmation) error {
	order := req.Order
	if order == nil {
		return domain.ErrInvalidMessage
	}

	recipient, resolved := s.resolveRecipient(ctx, req.Recipient, order.UserID)
	view := orderView{
		BaseURL:    s.baseURL,
		Name:       recipient.Name,
		Email:      recipient.Email,
		DisplayID:  order.DisplayID,
		Items:      itemViews(order),
		Total:      formatAmount(order.AmountCents, order.Currency),
		AccountURL: s.baseURL + "/account/orders",
	}

	var errs []error
	if resolved {
		errs = append(errs, s.deliver(ctx, kindOrderConfirmed, templateOrderConfirmed, view, email.Message{
			To:      []string{recipient.Email},
			Subject: fmt.Sprintf("Your NJAE Plume order %s", order.DisplayID),
		}))
	} else {
		s.obsMetrics.RecordNotification(ctx, kindOrderConfirmed, "skipped")
		errs = append(errs, domain.ErrNoRecipient)
	}

	if s.ownerInbox != "" {
		errs = append(errs, s.deliver(ctx, kindNewSale, templateNewSale, view, email.Message{
			To:      []string{s.ownerInbox},
			ReplyTo: recipient.Email,
			Subject: fmt.Sprintf("New sale %s (%s)", order.DisplayID, view.Total),
		}))
	}
	return errors.Join(errs...)
}

func (s *Service) PaymentFailed(ctx context.Context, req domain.PaymentFailure) error {
	recipient, resolved := s.resolveRecipient(ctx, req.Recipient, req.UserID)
	if !resolved {
		s.obsMetrics.RecordNotification(ctx, kindPaymentFailed, "skipped")
		return domain.ErrNoRecipient
	}

	view := failureView{
		BaseURL: s.baseURL,
		Name:    recipient.Name,
		Reason:  strings.TrimSpace(req.Reason),
		CartURL: s.baseURL + "/cart",
	}
	if req.AmountCents > 0 {
		view.Amount = formatAmount(req.AmountCents, req.Currency)
	}
	return s.deliver(ctx, kindPaymentFailed, templatePaymentFailed, view, email.Message{
		To:      []string{recipient.Email},
		Subject: "Your NJAE Plume payment did not go through",
	})
}

func (s *Service) ContactMessage(ctx context.Context, req domain.ContactMessage) error {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Message = strings.TrimSpace(req.Message)
	if req.Name == "" || req.Email == "" || req.Message == "" || strings.ContainsAny(req.Email, "\r\n") {
		return domain.ErrInvalidMessage
	}
	if s.ownerInbox == "" {
		s.obsMetrics.RecordNotification(ctx, kindContact, "skipped")
		return domain.ErrNoRecipient
	}

	subject := "Contact form"
	if trimmed := strings.Join(strings.Fields(req.Subject), " "); trimmed != "" {
		subject = "Contact form: " + trimmed
	}
	return s.deliver(ctx, kindContact, templateContact, contactView{
		BaseURL: s.baseURL,
		Name:    req.Name,
		Email:   req.Email,
		Subject: strings.TrimSpace(req.Subject),
		Message: req.Message,
	}, email.Message{
		To:      []string{s.ownerInbox},
		ReplyTo: req.Email,
		Subject: subject,
	})
}

// resolveRecipient prefers provider supplied details and falls back to the
// identity directory for userID.
func (s *Service) resolveRecipient(ctx context.Context, provided domain.Recipient, userID string) (domain.Recipient, bool) {
	recipient := domain.Recipient{
		Email: strings.TrimSpace(provided.Email),
		Name:  strings.TrimSpace(provided.Name),
	}
	if recipient.Email != "" && recipient.Name != "" {
		return recipient, true
	}
	if strings.TrimSpace(userID) == "" || s.identitySvc == nil {
		return recipient, recipient.Email != ""
	}

	user, err := s.identitySvc.Lookup(ctx, userID)
	if err != nil {
		if !errors.Is(err, identitydomain.ErrNotFound) {
			s.log.Warn("identity lookup failed", zap.String("user_id", userID), zap.Error(err))
		}
		return recipient, recipient.Email != ""
	}
	if recipient.Email == "" {
		recipient.Email = strings.TrimSpace(user.Email)
	}
	if recipient.Name == "" {
		recipient.Name = strings.TrimSpace(user.FullName)
	}
	return recipient, recipient.Email != ""
}

func (s *Service) deliver(ctx context.Context, kind, templateName string, data any, msg email.Message) error {
	body, err := render(templateName, data)
	if err != nil {
		s.obsMetrics.RecordNotification(ctx, kind, "failed")
		return err
	}
	msg.HTML = body

	if err := s.email.Send(ctx, msg); err != nil {
		s.obsMetrics.RecordNotification(ctx, kind, "failed")
		s.log.Warn("email send failed",
			zap.String("kind", kind),
			zap.String("provider", s.email.Name()),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %s: %v", domain.ErrDeliveryFailed, kind, err)
	}
	s.obsMetrics.RecordNotification(ctx, kind, "sent")
	return nil
}

func itemViews(order *orderdomain.Order) []itemView {
	views := make([]itemView, 0, len(order.Items))
	for _, item := range order.Items {
		name := item.ProductName
		if name == "" {
			name = item.ProductID
		}
		views = append(views, itemView{Name: name, Price: formatAmount(item.PriceCents, order.Currency)})
	}
	return views
}

func formatAmount(cents int64, currency string) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return "$" + money.Format(cents)
	}
	return "$" + money.Format(cents) + " " + currency
}
