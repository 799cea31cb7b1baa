package service

import (
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/spec-kit/task-service/pkg/util/errorutil"
)

const (
	maxUsernameLength = 50
	maxTitleLength    = 100
	minPasswordLength = 6
	// bcrypt only accepts up to 72 bytes of input.
	maxPasswordLength = 72
)

// validID rejects identifiers the stores could never match. Both stores key
// records by UUID, so anything else is reported as not found.
func validID(resource, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperrors.NewNotFound(resource, map[string]any{"id": id})
	}
	return nil
}

type fieldErrors map[string]any

func (f fieldErrors) require(field, value string) {
	if strings.TrimSpace(value) == "" {
		f[field] = "is required"
	}
}

func (f fieldErrors) maxLen(field, value string, max int) {
	if len(value) > max {
		f[field] = "is too long"
	}
}

func (f fieldErrors) email(field, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		f[field] = "is required"
		return
	}
	at := strings.Index(value, "@")
	if at <= 0 || at == len(value)-1 || strings.ContainsAny(value, " \t") {
		f[field] = "is not a valid email"
	}
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return apperrors.NewValidationError("validation failed", f)
}
