package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// Order is created once per completed checkout session and is immutable
// apart from status and item download markers.
type Order struct {
	ID                      snowflake.ID `gorm:"primaryKey" json:"id"`
	DisplayID               string       `gorm:"type:text;not null;uniqueIndex" json:"display_id"`
	UserID                  string       `gorm:"type:text;not null;index" json:"user_id"`
	StripeCheckoutSessionID string       `gorm:"type:text;not null;uniqueIndex" json:"stripe_checkout_session_id"`
	StripePaymentIntentID   *string      `gorm:"type:text" json:"stripe_payment_intent_id,omitempty"`
	StripeCustomerID        *string      `gorm:"type:text" json:"stripe_customer_id,omitempty"`
	Status                  Status       `gorm:"type:text;not null" json:"status"`
	AmountCents             int64        `gorm:"not null" json:"amount_cents"`
	Currency                string       `gorm:"type:char(3);not null" json:"currency"`
	CustomerEmail           string       `gorm:"type:text;not null" json:"customer_email"`
	CustomerName            string       `gorm:"type:text;not null" json:"customer_name"`
	CreatedAt               time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt               time.Time    `gorm:"not null" json:"updated_at"`

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items"`
}

func (Order) TableName() string { return "orders" }

// OrderItem snapshots the purchased product. DownloadCount > 0 holds
// exactly when DownloadedAt is set.
type OrderItem struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	OrderID       snowflake.ID `gorm:"not null;index" json:"order_id"`
	ProductID     string       `gorm:"type:text;not null" json:"product_id"`
	ProductName   string       `gorm:"type:text;not null" json:"product_name"`
	Category      string       `gorm:"type:text;not null" json:"category"`
	ZipFileName   string       `gorm:"type:text;not null" json:"-"`
	PriceCents    int64        `gorm:"not null" json:"price_cents"`
	Quantity      int          `gorm:"not null;default:1" json:"quantity"`
	DownloadCount int          `gorm:"not null;default:0" json:"download_count"`
	DownloadedAt  *time.Time   `json:"downloaded_at,omitempty"`
	CreatedAt     time.Time    `gorm:"not null" json:"created_at"`
}

func (OrderItem) TableName() string { return "order_items" }

func (i OrderItem) Downloaded() bool {
	return i.DownloadCount > 0 && i.DownloadedAt != nil
}

// ItemOwnership is an order item joined with the fields of its parent order
// that gate delivery.
type ItemOwnership struct {
	Item        OrderItem
	OrderID     snowflake.ID
	DisplayID   string
	UserID      string
	OrderStatus Status
}
