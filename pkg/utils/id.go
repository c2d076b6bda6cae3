package utils

import (
	"github.com/google/uuid"
)

// NewSessionID returns a time-ordered UUIDv7 string. Lexical order of the
// returned IDs follows creation order.
func NewSessionID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to a random UUID
		return uuid.NewString()
	}
	return id.String()
}

// IsSessionID reports whether s is a well-formed session ID
func IsSessionID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil && len(s) == 36
}
