package db

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// IsDuplicateKeyErr reports whether err is a unique constraint violation
// on any of the supported dialects.
func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "duplicate key value violates unique constraint"), strings.Contains(msg, "SQLSTATE 23505"):
		return true
	case strings.Contains(msg, "Error 1062"):
		return true
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return true
	}
	return false
}

// IsConstraintOn reports whether a duplicate key error names the given
// constraint, index or column.
func IsConstraintOn(err error, name string) bool {
	if !IsDuplicateKeyErr(err) {
		return false
	}
	return strings.Contains(err.Error(), name)
}
