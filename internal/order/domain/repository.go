package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// InsertIfAbsent inserts order unless its checkout session already has one.
	// It reports false when the unique session constraint suppressed the insert.
	InsertIfAbsent(ctx context.Context, db *gorm.DB, order *Order) (bool, error)
	InsertItems(ctx context.Context, db *gorm.DB, items []OrderItem) error
	FindBySessionID(ctx context.Context, db *gorm.DB, sessionID string) (*Order, error)
	FindByDisplayID(ctx context.Context, db *gorm.DB, displayID string) (*Order, error)
	ListByUser(ctx context.Context, db *gorm.DB, userID string) ([]Order, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Order, error)
	FindItem(ctx context.Context, db *gorm.DB, itemID snowflake.ID) (*ItemOwnership, error)
	// MarkItemDownloaded flips an undownloaded item to downloaded. It reports
	// false when another writer already did.
	MarkItemDownloaded(ctx context.Context, db *gorm.DB, itemID snowflake.ID, at time.Time) (bool, error)
}

type ListFilter struct {
	Status          Status
	UserID          string
	Limit           int
	CursorID        snowflake.ID
	CursorCreatedAt *time.Time
}
