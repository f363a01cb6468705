package domain

import (
	"encoding/json"
	"errors"
	"strings"
)

const (
	MetadataUserID    = "userId"
	MetadataCartItems = "cartItems"

	// MaxMetadataLength keeps the manifest under the provider's 500 character
	// value limit with room to spare.
	MaxMetadataLength = 450
)

var ErrMetadataTooLarge = errors.New("metadata_too_large")

// CartItem is one entry of the manifest echoed back by the provider. Price is
// the catalog price in minor units locked in at session creation.
type CartItem struct {
	ID    string `json:"id"`
	Price int64  `json:"price"`
}

// EncodeCartMetadata builds the session metadata and enforces MaxMetadataLength
// on the serialized manifest.
func EncodeCartMetadata(userID string, items []CartItem) (map[string]string, error) {
	raw, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	metadata := map[string]string{
		MetadataUserID:    userID,
		MetadataCartItems: string(raw),
	}
	if MetadataSize(metadata) > MaxMetadataLength {
		return nil, ErrMetadataTooLarge
	}
	return metadata, nil
}

// MetadataSize is the length of the metadata serialized as a JSON object.
func MetadataSize(metadata map[string]string) int {
	raw, err := json.Marshal(metadata)
	if err != nil {
		return 0
	}
	return len(raw)
}

// DecodeCartMetadata reads the manifest written by EncodeCartMetadata.
func DecodeCartMetadata(metadata map[string]string) (string, []CartItem, error) {
	userID := strings.TrimSpace(metadata[MetadataUserID])
	if userID == "" {
		return "", nil, ErrInvalidMetadata
	}
	raw := strings.TrimSpace(metadata[MetadataCartItems])
	if raw == "" {
		return "", nil, ErrInvalidMetadata
	}

	var items []CartItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return "", nil, ErrInvalidMetadata
	}
	if len(items) == 0 {
		return "", nil, ErrInvalidMetadata
	}
	for _, item := range items {
		if strings.TrimSpace(item.ID) == "" || item.Price < 0 {
			return "", nil, ErrInvalidMetadata
		}
	}
	return userID, items, nil
}
