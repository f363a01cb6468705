package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, product *Product) error
	FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*Product, error)
	FindByIDs(ctx context.Context, db *gorm.DB, ids []string) ([]Product, error)
	ListActive(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Product, error)
}

type ListFilter struct {
	Category Category
}
