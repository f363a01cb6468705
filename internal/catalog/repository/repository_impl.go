package repository

import (
	"context"

	"github.com/njaeplume/plume/internal/catalog/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, product *domain.Product) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO products (id, slug, name, description, category, price_cents, currency, zip_file_name, images, tags, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		product.ID,
		product.Slug,
		product.Name,
		product.Description,
		product.Category,
		product.PriceCents,
		product.Currency,
		product.ZipFileName,
		product.Images,
		product.Tags,
		product.Active,
		product.CreatedAt,
		product.UpdatedAt,
	).Error
}

func (r *repo) FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.Product, error) {
	var products []domain.Product
	err := db.WithContext(ctx).
		Where("slug = ? AND active = ?", slug, true).
		Limit(1).
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, nil
	}
	return &products[0], nil
}

func (r *repo) FindByIDs(ctx context.Context, db *gorm.DB, ids []string) ([]domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var products []domain.Product
	err := db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}

func (r *repo) ListActive(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.Product, error) {
	var products []domain.Product
	stmt := db.WithContext(ctx).
		Model(&domain.Product{}).
		Where("active = ?", true)
	if filter.Category != "" {
		stmt = stmt.Where("category = ?", filter.Category)
	}
	err := stmt.Order("created_at desc, id desc").Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}
