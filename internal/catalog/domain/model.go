package domain

import (
	"time"

	"gorm.io/datatypes"
)

type Category string

const (
	CategoryBrushes   Category = "brushes"
	CategoryStamps    Category = "stamps"
	CategoryFonts     Category = "fonts"
	CategoryTemplates Category = "templates"
	CategoryBundles   Category = "bundles"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryBrushes, CategoryStamps, CategoryFonts, CategoryTemplates, CategoryBundles:
		return true
	default:
		return false
	}
}

type Image struct {
	URL string `json:"url"`
	Alt string `json:"alt,omitempty"`
}

type Product struct {
	ID          string                      `gorm:"primaryKey;type:uuid" json:"id"`
	Slug        string                      `gorm:"type:text;not null;uniqueIndex" json:"slug"`
	Name        string                      `gorm:"type:text;not null" json:"name"`
	Description string                      `gorm:"type:text;not null" json:"description"`
	Category    Category                    `gorm:"type:text;not null" json:"category"`
	PriceCents  int64                       `gorm:"not null" json:"price_cents"`
	Currency    string                      `gorm:"type:char(3);not null" json:"currency"`
	ZipFileName string                      `gorm:"type:text;not null" json:"-"`
	Images      datatypes.JSONSlice[Image]  `gorm:"type:jsonb;not null" json:"images"`
	Tags        datatypes.JSONSlice[string] `gorm:"type:jsonb;not null" json:"tags"`
	Active      bool                        `gorm:"not null;default:true" json:"active"`
	CreatedAt   time.Time                   `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time                   `gorm:"not null" json:"updated_at"`
}

func (Product) TableName() string { return "products" }
