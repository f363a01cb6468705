package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/njaeplume/plume/pkg/db/pagination"
)

type Service interface {
	// UpsertIfAbsent records the order for a checkout session exactly once.
	// Replays return the stored order with created == false.
	UpsertIfAbsent(ctx context.Context, req UpsertRequest) (order *Order, created bool, err error)
	ListForUser(ctx context.Context, userID string) ([]Order, error)
	List(ctx context.Context, req ListRequest) (*ListResponse, error)
	GetByDisplayID(ctx context.Context, displayID string) (*Order, error)
	GetItem(ctx context.Context, itemID snowflake.ID) (*ItemOwnership, error)
	// MarkItemDownloaded applies the single atomic first-download transition
	// and returns the item as stored afterwards.
	MarkItemDownloaded(ctx context.Context, itemID snowflake.ID) (item *OrderItem, won bool, err error)
}

type UpsertRequest struct {
	SessionID       string
	PaymentIntentID string
	CustomerID      string
	UserID          string
	AmountCents     int64
	Currency        string
	CustomerEmail   string
	CustomerName    string
	Items           []ItemInput
}

type ItemInput struct {
	ProductID   string
	ProductName string
	Category    string
	ZipFileName string
	PriceCents  int64
}

type ListRequest struct {
	pagination.Pagination
	Status string `form:"status"`
	UserID string `form:"user_id"`
}

type ListResponse struct {
	Orders   []Order             `json:"orders"`
	PageInfo pagination.PageInfo `json:"page_info"`
}

var (
	ErrInvalidSession     = errors.New("invalid_checkout_session")
	ErrInvalidUser        = errors.New("invalid_user")
	ErrInvalidAmount      = errors.New("invalid_amount")
	ErrInvalidCurrency    = errors.New("invalid_currency")
	ErrEmptyOrder         = errors.New("empty_order")
	ErrInvalidStatus      = errors.New("invalid_status")
	ErrNotFound           = errors.New("order_not_found")
	ErrItemNotFound       = errors.New("order_item_not_found")
	ErrDisplayIDExhausted = errors.New("display_id_exhausted")
)
