package stripe

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/njaeplume/plume/internal/config"
	paymentdomain "github.com/njaeplume/plume/internal/payment/domain"
	stripego "github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/checkout/session"
	"go.uber.org/zap"
)

// SessionClient creates hosted checkout sessions through the Stripe API.
type SessionClient struct {
	client *session.Client
	log    *zap.Logger
}

func NewSessionClient(cfg config.Config, log *zap.Logger) (*SessionClient, error) {
	return newSessionClient(cfg.Stripe.SecretKey, cfg.Stripe.Timeout, "", log)
}

func newSessionClient(secretKey string, timeout time.Duration, baseURL string, log *zap.Logger) (*SessionClient, error) {
	secretKey = strings.TrimSpace(secretKey)
	if secretKey == "" {
		return nil, paymentdomain.ErrMisconfigured
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	backendCfg := &stripego.BackendConfig{
		HTTPClient:        &http.Client{Timeout: timeout},
		MaxNetworkRetries: stripego.Int64(1),
	}
	if baseURL != "" {
		backendCfg.URL = stripego.String(baseURL)
	}

	return &SessionClient{
		client: &session.Client{
			B:   stripego.GetBackendWithConfig(stripego.APIBackend, backendCfg),
			Key: secretKey,
		},
		log: log.Named("payment.stripe"),
	}, nil
}

func (c *SessionClient) CreateCheckoutSession(ctx context.Context, req paymentdomain.CheckoutSessionRequest) (*paymentdomain.CheckoutSession, error) {
	currency := strings.ToLower(strings.TrimSpace(req.Currency))

	params := &stripego.CheckoutSessionParams{
		Mode:       stripego.String(string(stripego.CheckoutSessionModePayment)),
		SuccessURL: stripego.String(req.SuccessURL),
		CancelURL:  stripego.String(req.CancelURL),
		PaymentIntentData: &stripego.CheckoutSessionPaymentIntentDataParams{
			Metadata: req.Metadata,
		},
	}
	params.Context = ctx
	if email := strings.TrimSpace(req.CustomerEmail); email != "" {
		params.CustomerEmail = stripego.String(email)
	}
	for key, value := range req.Metadata {
		params.AddMetadata(key, value)
	}
	for _, item := range req.LineItems {
		quantity := item.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		params.LineItems = append(params.LineItems, &stripego.CheckoutSessionLineItemParams{
			PriceData: &stripego.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripego.String(currency),
				UnitAmount: stripego.Int64(item.UnitAmount),
				ProductData: &stripego.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripego.String(item.Name),
				},
			},
			Quantity: stripego.Int64(quantity),
		})
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	created, err := c.client.New(params)
	if err != nil {
		c.log.Error("create checkout session failed", zap.Error(err))
		return nil, paymentdomain.ErrSessionCreateFailed
	}
	if strings.TrimSpace(created.URL) == "" {
		c.log.Error("checkout session without url", zap.String("session_id", created.ID))
		return nil, paymentdomain.ErrSessionCreateFailed
	}

	out := &paymentdomain.CheckoutSession{
		ID:  created.ID,
		URL: created.URL,
	}
	if created.ExpiresAt > 0 {
		out.ExpiresAt = time.Unix(created.ExpiresAt, 0).UTC()
	}
	return out, nil
}
