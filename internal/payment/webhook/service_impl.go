package webhook

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/njaeplume/plume/internal/payment/adapters"
	paymentdomain "github.com/njaeplume/plume/internal/payment/domain"
	paymentservice "github.com/njaeplume/plume/internal/payment/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log        *zap.Logger
	PaymentSvc *paymentservice.Service
	Adapters   *adapters.Registry
}

type Service struct {
	log        *zap.Logger
	paymentSvc *paymentservice.Service
	adapters   *adapters.Registry
}

func NewService(p Params) paymentdomain.Service {
	return &Service{
		log:        p.Log.Named("payment.webhook"),
		paymentSvc: p.PaymentSvc,
		adapters:   p.Adapters,
	}
}

// IngestWebhook verifies the payload before anything is parsed or stored.
// ErrEventIgnored and ErrEventAlreadyProcessed are benign outcomes.
func (s *Service) IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return paymentdomain.ErrInvalidProvider
	}
	adapter, err := s.adapters.Adapter(provider)
	if err != nil {
		return err
	}

	if err := adapter.Verify(ctx, payload, headers); err != nil {
		s.log.Warn("webhook signature rejected", zap.String("provider", provider), zap.Error(err))
		return err
	}

	event, err := adapter.Parse(ctx, payload)
	if err != nil {
		if errors.Is(err, paymentdomain.ErrEventIgnored) {
			s.log.Debug("webhook event ignored", zap.String("provider", provider))
		} else {
			s.log.Error("webhook payload rejected", zap.String("provider", provider), zap.Error(err))
		}
		return err
	}
	if event.RawPayload == nil {
		event.RawPayload = payload
	}
	if s.paymentSvc == nil {
		return errors.New("payment_service_unavailable")
	}

	if err := s.paymentSvc.ProcessEvent(ctx, event); err != nil {
		if !errors.Is(err, paymentdomain.ErrEventAlreadyProcessed) {
			s.log.Error("webhook processing failed",
				zap.String("provider", provider),
				zap.String("provider_event_id", event.ProviderEventID),
				zap.String("event_type", event.Type),
				zap.Error(err),
			)
		}
		return err
	}
	return nil
}
