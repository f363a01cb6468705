package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// CartLineDTO is the client-held cart snapshot. Only ID survives into the
// session; price and name are taken from the catalog.
type CartLineDTO struct {
	ID          string          `json:"id" validate:"required,uuid"`
	Name        string          `json:"name" validate:"required,max=200"`
	Price       decimal.Decimal `json:"price" validate:"required,gt=0"`
	Category    string          `json:"category" validate:"required,oneof=brushes stamps fonts templates bundles"`
	Description string          `json:"description" validate:"required,max=5000"`
	Images      []ImageDTO      `json:"images" validate:"required,min=1,max=20,dive"`
	Tags        []string        `json:"tags" validate:"required,max=30,dive,required,max=40"`
}

type ImageDTO struct {
	URL string `json:"url" validate:"required,url,max=2048"`
	Alt string `json:"alt" validate:"max=200"`
}

type Request struct {
	Items []CartLineDTO `json:"items" validate:"dive"`
}

// Caller is the authenticated storefront user starting checkout.
type Caller struct {
	UserID string
	Email  string
}

type Response struct {
	URL string `json:"url"`
}

type Service interface {
	CreateSession(ctx context.Context, caller Caller, req Request) (*Response, error)
}

var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrEmptyCart        = errors.New("empty_cart")
	ErrInvalidInput     = errors.New("invalid_input")
	ErrMetadataTooLarge = errors.New("metadata_too_large")
	ErrUnavailable      = errors.New("checkout_unavailable")
)
