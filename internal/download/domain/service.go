package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/njaeplume/plume/internal/config"
)

// Repeat download policies. Under allow every authorised request receives a
// fresh link and only the first is counted. Under block an item already
// marked downloaded is refused.
const (
	RepeatPolicyAllow = config.RepeatPolicyAllow
	RepeatPolicyBlock = config.RepeatPolicyBlock
)

type Result struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
	// FirstDownload reports whether this request recorded the item's first download.
	FirstDownload bool `json:"firstDownload"`
}

type Service interface {
	RequestDownload(ctx context.Context, itemID snowflake.ID, userID string) (*Result, error)
}

var (
	ErrNotFound          = errors.New("download_item_not_found")
	ErrForbidden         = errors.New("download_forbidden")
	ErrNotEligible       = errors.New("order_not_completed")
	ErrAlreadyDownloaded = errors.New("already_downloaded")
	ErrObjectNotFound    = errors.New("object_not_found")
	ErrSigningFailed     = errors.New("signing_failed")
)
