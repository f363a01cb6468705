package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// EventRecord is the receipt log row for a verified provider event.
type EventRecord struct {
	ID              snowflake.ID   `json:"id" gorm:"primaryKey"`
	Provider        string         `json:"provider" gorm:"type:text;not null"`
	ProviderEventID string         `json:"provider_event_id" gorm:"type:text;not null"`
	EventType       string         `json:"event_type" gorm:"type:text;not null"`
	Payload         datatypes.JSON `json:"payload" gorm:"type:jsonb;not null"`
	ReceivedAt      time.Time      `json:"received_at" gorm:"not null"`
	ProcessedAt     *time.Time     `json:"processed_at"`
}

func (EventRecord) TableName() string { return "payment_events" }

// EventKind is the closed set of provider events the service acts on.
type EventKind string

const (
	EventKindCheckoutCompleted EventKind = "checkout_completed"
	EventKindPaymentFailed     EventKind = "payment_failed"
)

type Contact struct {
	Email string
	Name  string
}

func (c Contact) Empty() bool {
	return c.Email == ""
}

// Event is the canonical payment event parsed by adapters.
type Event struct {
	Provider        string
	ProviderEventID string
	// Type is the provider's own event name, kept for the receipt log.
	Type string
	Kind EventKind

	CheckoutSessionID  string
	PaymentIntentID    string
	ProviderCustomerID string
	UserID             string
	CartItems          []CartItem
	AmountTotal        int64
	Currency           string
	Contact            Contact
	FailureMessage     string

	OccurredAt time.Time
	RawPayload []byte
}
