package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/njaeplume/plume/internal/order/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertIfAbsent(ctx context.Context, db *gorm.DB, order *domain.Order) (bool, error) {
	res := db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "stripe_checkout_session_id"}},
			DoNothing: true,
		}).
		Create(order)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) InsertItems(ctx context.Context, db *gorm.DB, items []domain.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&items).Error
}

func (r *repo) FindBySessionID(ctx context.Context, db *gorm.DB, sessionID string) (*domain.Order, error) {
	return r.findOne(ctx, db, "stripe_checkout_session_id = ?", sessionID)
}

func (r *repo) FindByDisplayID(ctx context.Context, db *gorm.DB, displayID string) (*domain.Order, error) {
	return r.findOne(ctx, db, "display_id = ?", displayID)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, arg any) (*domain.Order, error) {
	var orders []domain.Order
	err := db.WithContext(ctx).
		Preload("Items", func(tx *gorm.DB) *gorm.DB { return tx.Order("id asc") }).
		Where(query, arg).
		Limit(1).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, nil
	}
	return &orders[0], nil
}

func (r *repo) ListByUser(ctx context.Context, db *gorm.DB, userID string) ([]domain.Order, error) {
	var orders []domain.Order
	err := db.WithContext(ctx).
		Preload("Items", func(tx *gorm.DB) *gorm.DB { return tx.Order("id asc") }).
		Where("user_id = ?", userID).
		Order("created_at desc, id desc").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.Order, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.Order{}).
		Preload("Items", func(tx *gorm.DB) *gorm.DB { return tx.Order("id asc") })
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.UserID != "" {
		stmt = stmt.Where("user_id = ?", filter.UserID)
	}
	if filter.CursorCreatedAt != nil {
		stmt = stmt.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			*filter.CursorCreatedAt,
			*filter.CursorCreatedAt,
			filter.CursorID,
		)
	}
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit)
	}

	var orders []domain.Order
	if err := stmt.Order("created_at desc, id desc").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repo) FindItem(ctx context.Context, db *gorm.DB, itemID snowflake.ID) (*domain.ItemOwnership, error) {
	var items []domain.OrderItem
	if err := db.WithContext(ctx).Where("id = ?", itemID).Limit(1).Find(&items).Error; err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}

	var parent struct {
		ID        snowflake.ID
		DisplayID string
		UserID    string
		Status    domain.Status
	}
	err := db.WithContext(ctx).Raw(
		`SELECT id, display_id, user_id, status
		 FROM orders
		 WHERE id = ?`,
		items[0].OrderID,
	).Scan(&parent).Error
	if err != nil {
		return nil, err
	}
	if parent.ID == 0 {
		return nil, nil
	}

	return &domain.ItemOwnership{
		Item:        items[0],
		OrderID:     parent.ID,
		DisplayID:   parent.DisplayID,
		UserID:      parent.UserID,
		OrderStatus: parent.Status,
	}, nil
}

func (r *repo) MarkItemDownloaded(ctx context.Context, db *gorm.DB, itemID snowflake.ID, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE order_items
		 SET download_count = download_count + 1, downloaded_at = ?
		 WHERE id = ? AND download_count = 0`,
		at,
		itemID,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
