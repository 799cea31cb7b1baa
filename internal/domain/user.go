package domain

import (
	"strings"
	"time"
)

// User is the principal record held by the credential store. Email is the
// credential name used at login.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NormalizeEmail folds a credential name for case-insensitive lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
