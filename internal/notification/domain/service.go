package domain

import (
	"context"
	"errors"

	orderdomain "github.com/njaeplume/plume/internal/order/domain"
)

type Recipient struct {
	Email string
	Name  string
}

type OrderConfirmation struct {
	Order *orderdomain.Order
	// Recipient carries contact details supplied by the payment provider.
	// When empty the identity directory is consulted for Order.UserID.
	Recipient Recipient
}

type PaymentFailure struct {
	UserID      string
	Recipient   Recipient
	AmountCents int64
	Currency    string
	Reason      string
}

type ContactMessage struct {
	Name    string `json:"name" binding:"required,max=120"`
	Email   string `json:"email" binding:"required,email,max=254"`
	Subject string `json:"subject" binding:"max=200"`
	Message string `json:"message" binding:"required,min=10,max=5000"`
}

// Service sends transactional email. Callers treat every error as non-fatal.
type Service interface {
	OrderConfirmed(ctx context.Context, req OrderConfirmation) error
	PaymentFailed(ctx context.Context, req PaymentFailure) error
	ContactMessage(ctx context.Context, req ContactMessage) error
}

var (
	ErrNoRecipient    = errors.New("notification_recipient_missing")
	ErrInvalidMessage = errors.New("invalid_contact_message")
	ErrDeliveryFailed = errors.New("notification_delivery_failed")
)
