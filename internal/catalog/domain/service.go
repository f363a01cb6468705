package domain

import (
	"context"
	"errors"
	"time"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	List(ctx context.Context, req ListRequest) ([]Response, error)
	GetBySlug(ctx context.Context, slug string) (*Response, error)
	// FindByIDs returns every known product for ids keyed by id, inactive ones included.
	FindByIDs(ctx context.Context, ids []string) (map[string]Product, error)
}

type ListRequest struct {
	Category string
}

type CreateRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Price       string   `json:"price"`
	Currency    string   `json:"currency"`
	ZipFileName string   `json:"zip_file_name"`
	Images      []Image  `json:"images"`
	Tags        []string `json:"tags"`
	Active      *bool    `json:"active"`
}

type Response struct {
	ID          string    `json:"id"`
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Category    Category  `json:"category"`
	Price       string    `json:"price"`
	PriceCents  int64     `json:"price_cents"`
	Currency    string    `json:"currency"`
	Images      []Image   `json:"images"`
	Tags        []string  `json:"tags"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

var (
	ErrInvalidName     = errors.New("invalid_name")
	ErrInvalidCategory = errors.New("invalid_category")
	ErrInvalidPrice    = errors.New("invalid_price")
	ErrInvalidCurrency = errors.New("invalid_currency")
	ErrInvalidFile     = errors.New("invalid_zip_file_name")
	ErrNotFound        = errors.New("product_not_found")
)
