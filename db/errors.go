package db

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// IsUniqueViolation detects duplicate-key errors. Drivers opened by this
// package translate them to gorm.ErrDuplicatedKey; the message check covers
// errors that reach us untranslated.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") ||
		strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "already exists")
}
