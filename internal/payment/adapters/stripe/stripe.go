package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/njaeplume/plume/internal/clock"
	"github.com/njaeplume/plume/internal/config"
	paymentdomain "github.com/njaeplume/plume/internal/payment/domain"
	stripego "github.com/stripe/stripe-go/v81"
)

const (
	ProviderName = "stripe"

	SignatureHeader = "Stripe-Signature"

	eventCheckoutCompleted           = "checkout.session.completed"
	eventCheckoutAsyncPaymentSuccess = "checkout.session.async_payment_succeeded"
	eventCheckoutAsyncPaymentFailed  = "checkout.session.async_payment_failed"
	eventPaymentIntentFailed         = "payment_intent.payment_failed"
)

type Adapter struct {
	webhookSecret string
	tolerance     time.Duration
	clock         clock.Clock
}

// NewAdapter fails when the webhook signing secret is absent so a
// misconfigured deployment never starts.
func NewAdapter(cfg config.Config, clk clock.Clock) (*Adapter, error) {
	secret := strings.TrimSpace(cfg.Stripe.WebhookSecret)
	if secret == "" {
		return nil, paymentdomain.ErrMisconfigured
	}
	return &Adapter{
		webhookSecret: secret,
		tolerance:     cfg.Stripe.WebhookTolerance,
		clock:         clk,
	}, nil
}

func (a *Adapter) Provider() string {
	return ProviderName
}

func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	sigHeader := strings.TrimSpace(headers.Get(SignatureHeader))
	if sigHeader == "" {
		return paymentdomain.ErrInvalidSignature
	}

	timestamp, signatures, err := parseStripeSignature(sigHeader)
	if err != nil {
		return paymentdomain.ErrInvalidSignature
	}

	if a.tolerance > 0 {
		seconds, err := strconv.ParseInt(timestamp, 10, 64)
		if err != nil {
			return paymentdomain.ErrInvalidSignature
		}
		skew := a.clock.Now().Sub(time.Unix(seconds, 0))
		if skew > a.tolerance || skew < -a.tolerance {
			return paymentdomain.ErrInvalidSignature
		}
	}

	signedPayload := fmt.Sprintf("%s.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(a.webhookSecret))
	_, _ = mac.Write([]byte(signedPayload))
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			return nil
		}
	}

	return paymentdomain.ErrInvalidSignature
}

func (a *Adapter) Parse(ctx context.Context, payload []byte) (*paymentdomain.Event, error) {
	var event stripego.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.ID) == "" || event.Data == nil || len(event.Data.Raw) == 0 {
		return nil, paymentdomain.ErrInvalidEvent
	}

	switch eventType := strings.TrimSpace(string(event.Type)); eventType {
	case eventCheckoutCompleted, eventCheckoutAsyncPaymentSuccess:
		return a.parseCheckoutSession(event, payload, paymentdomain.EventKindCheckoutCompleted)
	case eventCheckoutAsyncPaymentFailed:
		return a.parseCheckoutSession(event, payload, paymentdomain.EventKindPaymentFailed)
	case eventPaymentIntentFailed:
		return a.parsePaymentIntentFailed(event, payload)
	default:
		return nil, paymentdomain.ErrEventIgnored
	}
}

func (a *Adapter) parseCheckoutSession(event stripego.Event, payload []byte, kind paymentdomain.EventKind) (*paymentdomain.Event, error) {
	var session stripego.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(session.ID) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	// checkout.session.completed also fires for delayed payment methods
	// before funds arrive; the async success event follows.
	if kind == paymentdomain.EventKindCheckoutCompleted {
		switch session.PaymentStatus {
		case stripego.CheckoutSessionPaymentStatusPaid, stripego.CheckoutSessionPaymentStatusNoPaymentRequired:
		default:
			return nil, paymentdomain.ErrEventIgnored
		}
	}

	out := &paymentdomain.Event{
		Provider:          ProviderName,
		ProviderEventID:   event.ID,
		Type:              string(event.Type),
		Kind:              kind,
		CheckoutSessionID: session.ID,
		AmountTotal:       session.AmountTotal,
		Currency:          strings.ToUpper(strings.TrimSpace(string(session.Currency))),
		Contact:           sessionContact(&session),
		OccurredAt:        timestamp(session.Created, event.Created),
		RawPayload:        payload,
	}
	if session.PaymentIntent != nil {
		out.PaymentIntentID = session.PaymentIntent.ID
	}
	if session.Customer != nil {
		out.ProviderCustomerID = session.Customer.ID
	}

	if kind == paymentdomain.EventKindCheckoutCompleted {
		userID, items, err := paymentdomain.DecodeCartMetadata(session.Metadata)
		if err != nil {
			return nil, err
		}
		out.UserID = userID
		out.CartItems = items
	} else {
		out.UserID = strings.TrimSpace(session.Metadata[paymentdomain.MetadataUserID])
	}
	return out, nil
}

func (a *Adapter) parsePaymentIntentFailed(event stripego.Event, payload []byte) (*paymentdomain.Event, error) {
	var intent stripego.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(intent.ID) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	out := &paymentdomain.Event{
		Provider:        ProviderName,
		ProviderEventID: event.ID,
		Type:            string(event.Type),
		Kind:            paymentdomain.EventKindPaymentFailed,
		PaymentIntentID: intent.ID,
		UserID:          strings.TrimSpace(intent.Metadata[paymentdomain.MetadataUserID]),
		AmountTotal:     intent.Amount,
		Currency:        strings.ToUpper(strings.TrimSpace(string(intent.Currency))),
		Contact:         paymentdomain.Contact{Email: strings.TrimSpace(intent.ReceiptEmail)},
		OccurredAt:      timestamp(intent.Created, event.Created),
		RawPayload:      payload,
	}
	if intent.Customer != nil {
		out.ProviderCustomerID = intent.Customer.ID
	}
	if failure := intent.LastPaymentError; failure != nil {
		out.FailureMessage = strings.TrimSpace(failure.Msg)
		if pm := failure.PaymentMethod; pm != nil && pm.BillingDetails != nil {
			if out.Contact.Email == "" {
				out.Contact.Email = strings.TrimSpace(pm.BillingDetails.Email)
			}
			out.Contact.Name = strings.TrimSpace(pm.BillingDetails.Name)
		}
	}
	return out, nil
}

func sessionContact(session *stripego.CheckoutSession) paymentdomain.Contact {
	contact := paymentdomain.Contact{Email: strings.TrimSpace(session.CustomerEmail)}
	if details := session.CustomerDetails; details != nil {
		if email := strings.TrimSpace(details.Email); email != "" {
			contact.Email = email
		}
		contact.Name = strings.TrimSpace(details.Name)
	}
	return contact
}

func parseStripeSignature(header string) (string, []string, error) {
	var timestamp string
	signatures := []string{}
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "t":
			timestamp = strings.TrimSpace(value)
		case "v1":
			signatures = append(signatures, strings.TrimSpace(value))
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return "", nil, errors.New("invalid_signature")
	}
	return timestamp, signatures, nil
}

func timestamp(primary int64, fallback int64) time.Time {
	value := primary
	if value == 0 {
		value = fallback
	}
	if value == 0 {
		return time.Now().UTC()
	}
	return time.Unix(value, 0).UTC()
}

// BuildSignatureHeader signs payload the way Stripe does, for replaying
// captured events against a local instance.
func BuildSignatureHeader(secret string, payload []byte, timestamp int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(fmt.Sprintf("%d.%s", timestamp, string(payload))))
	return fmt.Sprintf("t=%d,v1=%s", timestamp, hex.EncodeToString(mac.Sum(nil)))
}
