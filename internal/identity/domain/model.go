package domain

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// User mirrors the identity provider's profile for a storefront account.
type User struct {
	ID        string    `gorm:"primaryKey;type:text" json:"id"`
	Email     string    `gorm:"type:text;not null" json:"email"`
	FullName  string    `gorm:"type:text;not null" json:"full_name"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (User) TableName() string { return "users" }

type Repository interface {
	Upsert(ctx context.Context, db *gorm.DB, user *User) error
	FindByID(ctx context.Context, db *gorm.DB, id string) (*User, error)
}

type SyncRequest struct {
	UserID   string
	Email    string
	FullName string
}

// Service is the customer directory consulted when provider data lacks contact details.
type Service interface {
	Sync(ctx context.Context, req SyncRequest) error
	Lookup(ctx context.Context, userID string) (*User, error)
}

var (
	ErrInvalidUser = errors.New("invalid_user")
	ErrNotFound    = errors.New("user_not_found")
)
