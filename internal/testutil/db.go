// Package testutil opens throwaway SQLite databases carrying the service schema.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

var schema = []string{
	`CREATE TABLE products (
		id TEXT PRIMARY KEY,
		slug TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL,
		price_cents BIGINT NOT NULL,
		currency TEXT NOT NULL,
		zip_file_name TEXT NOT NULL DEFAULT '',
		images TEXT NOT NULL DEFAULT '[]',
		tags TEXT NOT NULL DEFAULT '[]',
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE UNIQUE INDEX ux_products_slug ON products(slug)`,
	`CREATE TABLE users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL DEFAULT '',
		full_name TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE orders (
		id BIGINT PRIMARY KEY,
		display_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		stripe_checkout_session_id TEXT NOT NULL,
		stripe_payment_intent_id TEXT,
		stripe_customer_id TEXT,
		status TEXT NOT NULL,
		amount_cents BIGINT NOT NULL,
		currency TEXT NOT NULL,
		customer_email TEXT NOT NULL DEFAULT '',
		customer_name TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE UNIQUE INDEX ux_orders_stripe_checkout_session_id ON orders(stripe_checkout_session_id)`,
	`CREATE UNIQUE INDEX ux_orders_display_id ON orders(display_id)`,
	`CREATE TABLE order_items (
		id BIGINT PRIMARY KEY,
		order_id BIGINT NOT NULL REFERENCES orders(id),
		product_id TEXT NOT NULL,
		product_name TEXT NOT NULL,
		category TEXT NOT NULL,
		zip_file_name TEXT NOT NULL DEFAULT '',
		price_cents BIGINT NOT NULL,
		quantity INTEGER NOT NULL DEFAULT 1,
		download_count INTEGER NOT NULL DEFAULT 0,
		downloaded_at DATETIME,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE payment_events (
		id BIGINT PRIMARY KEY,
		provider TEXT NOT NULL,
		provider_event_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		payload TEXT NOT NULL,
		received_at DATETIME NOT NULL,
		processed_at DATETIME
	)`,
	`CREATE UNIQUE INDEX ux_payment_events_provider_event ON payment_events(provider, provider_event_id)`,
}

// OpenDB returns an isolated in-memory database with the full schema.
// A single connection keeps concurrent tests serialised on one SQLite handle.
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d_%d?mode=memory&cache=shared", time.Now().UnixNano(), dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}
	return db
}

// AssertCount fails the test when table does not hold exactly want rows.
func AssertCount(t *testing.T, db *gorm.DB, table string, want int64) {
	t.Helper()

	var got int64
	if err := db.Table(table).Count(&got).Error; err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	if got != want {
		t.Fatalf("expected %d rows in %s, got %d", want, table, got)
	}
}
