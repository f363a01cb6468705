package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	catalogdomain "github.com/njaeplume/plume/internal/catalog/domain"
	checkoutdomain "github.com/njaeplume/plume/internal/checkout/domain"
	"github.com/njaeplume/plume/internal/clock"
	"github.com/njaeplume/plume/internal/config"
	identitydomain "github.com/njaeplume/plume/internal/identity/domain"
	obsmetrics "github.com/njaeplume/plume/internal/observability/metrics"
	paymentdomain "github.com/njaeplume/plume/internal/payment/domain"
	"github.com/njaeplume/plume/pkg/money"
	"github.com/oklog/ulid/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const maxCartLines = 50

type Params struct {
	fx.In

	Log         *zap.Logger
	Config      config.Config
	Clock       clock.Clock
	CatalogSvc  catalogdomain.Service
	IdentitySvc identitydomain.Service `optional:"true"`
	Sessions    paymentdomain.SessionCreator
	ObsMetrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log         *zap.Logger
	clock       clock.Clock
	currency    string
	successURL  string
	cancelURL   string
	catalogSvc  catalogdomain.Service
	identitySvc identitydomain.Service
	sessions    paymentdomain.SessionCreator
	validate    *validator.Validate
	obsMetrics  *obsmetrics.Metrics
}

func New(p Params) checkoutdomain.Service {
	return &Service{
		log:         p.Log.Named("checkout.service"),
		clock:       p.Clock,
		currency:    p.Config.Checkout.Currency,
		successURL:  p.Config.Checkout.SuccessURL,
		cancelURL:   p.Config.Checkout.CancelURL,
		catalogSvc:  p.CatalogSvc,
		identitySvc: p.IdentitySvc,
		sessions:    p.Sessions,
		validate:    newValidator(),
		obsMetrics:  p.ObsMetrics,
	}
}

func (s *Service) CreateSession(ctx context.Context, caller checkoutdomain.Caller, req checkoutdomain.Request) (*checkoutdomain.Response, error) {
	userID := strings.TrimSpace(caller.UserID)
	if userID == "" {
		s.obsMetrics.RecordCheckoutSession(ctx, "unauthorized")
		return nil, checkoutdomain.ErrUnauthorized
	}
	customerEmail := s.resolveEmail(ctx, userID, caller.Email)
	if customerEmail == "" {
		s.obsMetrics.RecordCheckoutSession(ctx, "unauthorized")
		return nil, checkoutdomain.ErrUnauthorized
	}

	if len(req.Items) == 0 {
		s.obsMetrics.RecordCheckoutSession(ctx, "empty_cart")
		return nil, checkoutdomain.ErrEmptyCart
	}
	if len(req.Items) > maxCartLines {
		s.obsMetrics.RecordCheckoutSession(ctx, "invalid")
		return nil, fmt.Errorf("%w: too many items", checkoutdomain.ErrInvalidInput)
	}
	if err := s.validate.Struct(req); err != nil {
		s.obsMetrics.RecordCheckoutSession(ctx, "invalid")
		return nil, fmt.Errorf("%w: %s", checkoutdomain.ErrInvalidInput, describeValidation(err))
	}

	lineItems, manifest, err := s.reprice(ctx, req.Items)
	if err != nil {
		s.obsMetrics.RecordCheckoutSession(ctx, "invalid")
		return nil, err
	}

	metadata, err := paymentdomain.EncodeCartMetadata(userID, manifest)
	if err != nil {
		if errors.Is(err, paymentdomain.ErrMetadataTooLarge) {
			s.obsMetrics.RecordCheckoutSession(ctx, "metadata_too_large")
			s.log.Warn("checkout metadata too large",
				zap.String("user_id", userID),
				zap.Int("items", len(manifest)),
			)
			return nil, checkoutdomain.ErrMetadataTooLarge
		}
		return nil, err
	}

	session, err := s.sessions.CreateCheckoutSession(ctx, paymentdomain.CheckoutSessionRequest{
		CustomerEmail:  customerEmail,
		Currency:       s.currency,
		LineItems:      lineItems,
		Metadata:       metadata,
		SuccessURL:     s.successURL,
		CancelURL:      s.cancelURL,
		IdempotencyKey: "checkout_" + ulid.MustNew(ulid.Timestamp(s.clock.Now()), ulid.DefaultEntropy()).String(),
	})
	if err != nil {
		s.obsMetrics.RecordCheckoutSession(ctx, "failed")
		s.log.Error("create checkout session failed", zap.String("user_id", userID), zap.Error(err))
		return nil, checkoutdomain.ErrUnavailable
	}

	s.obsMetrics.RecordCheckoutSession(ctx, "created")
	s.log.Info("checkout session created",
		zap.String("user_id", userID),
		zap.String("session_id", session.ID),
		zap.Int("items", len(lineItems)),
	)
	return &checkoutdomain.Response{URL: session.URL}, nil
}

// reprice replaces client prices with catalog prices. The returned manifest
// is what the webhook later trusts.
func (s *Service) reprice(ctx context.Context, lines []checkoutdomain.CartLineDTO) ([]paymentdomain.LineItem, []paymentdomain.CartItem, error) {
	ids := make([]string, 0, len(lines))
	seen := make(map[string]struct{}, len(lines))
	for _, line := range lines {
		id := strings.ToLower(strings.TrimSpace(line.ID))
		if _, dup := seen[id]; dup {
			return nil, nil, fmt.Errorf("%w: duplicate item %s", checkoutdomain.ErrInvalidInput, id)
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	products, err := s.catalogSvc.FindByIDs(ctx, ids)
	if err != nil {
		return nil, nil, err
	}

	lineItems := make([]paymentdomain.LineItem, 0, len(lines))
	manifest := make([]paymentdomain.CartItem, 0, len(lines))
	for i, line := range lines {
		product, ok := products[ids[i]]
		if !ok || !product.Active {
			return nil, nil, fmt.Errorf("%w: unknown item %s", checkoutdomain.ErrInvalidInput, ids[i])
		}
		if !strings.EqualFold(product.Currency, s.currency) {
			return nil, nil, fmt.Errorf("%w: item %s is not sold in %s", checkoutdomain.ErrInvalidInput, ids[i], s.currency)
		}

		if submitted, err := money.ToCents(line.Price); err != nil || submitted != product.PriceCents {
			s.log.Warn("cart price differs from catalog",
				zap.String("product_id", product.ID),
				zap.String("submitted", line.Price.String()),
				zap.Int64("catalog_cents", product.PriceCents),
			)
		}

		lineItems = append(lineItems, paymentdomain.LineItem{
			Name:       product.Name,
			UnitAmount: product.PriceCents,
			Quantity:   1,
		})
		manifest = append(manifest, paymentdomain.CartItem{ID: product.ID, Price: product.PriceCents})
	}
	return lineItems, manifest, nil
}

func (s *Service) resolveEmail(ctx context.Context, userID, provided string) string {
	if email := strings.TrimSpace(provided); email != "" {
		return email
	}
	if s.identitySvc == nil {
		return ""
	}
	user, err := s.identitySvc.Lookup(ctx, userID)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(user.Email)
}
