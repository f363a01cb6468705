package domain

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Adapter verifies and decodes webhooks for one provider.
type Adapter interface {
	Provider() string
	Verify(ctx context.Context, payload []byte, headers http.Header) error
	Parse(ctx context.Context, payload []byte) (*Event, error)
}

// SessionCreator opens hosted checkout sessions with the provider.
type SessionCreator interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error)
}

type CheckoutSessionRequest struct {
	CustomerEmail  string
	Currency       string
	LineItems      []LineItem
	Metadata       map[string]string
	SuccessURL     string
	CancelURL      string
	IdempotencyKey string
}

type LineItem struct {
	Name       string
	UnitAmount int64
	Quantity   int64
}

type CheckoutSession struct {
	ID        string
	URL       string
	ExpiresAt time.Time
}

type Repository interface {
	InsertEvent(ctx context.Context, db *gorm.DB, event *EventRecord) (bool, error)
	FindEvent(ctx context.Context, db *gorm.DB, provider string, providerEventID string) (*EventRecord, error)
	MarkProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, processedAt time.Time) error
}

// Service ingests raw provider webhooks.
type Service interface {
	IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) error
}

var (
	ErrInvalidProvider       = errors.New("invalid_provider")
	ErrProviderNotFound      = errors.New("provider_not_found")
	ErrInvalidSignature      = errors.New("invalid_signature")
	ErrInvalidPayload        = errors.New("invalid_payload")
	ErrInvalidEvent          = errors.New("invalid_event")
	ErrInvalidMetadata       = errors.New("invalid_metadata")
	ErrInvalidCurrency       = errors.New("invalid_currency")
	ErrEventIgnored          = errors.New("event_ignored")
	ErrEventAlreadyProcessed = errors.New("event_already_processed")
	ErrMisconfigured         = errors.New("payment_provider_misconfigured")
	ErrSessionCreateFailed   = errors.New("checkout_session_create_failed")
)
