package repository

import (
	"strings"

	apperrors "github.com/welldanyogia/webrana-cms-backend/internal/errors"
)

// Common repository errors
var (
	ErrNotFound       = apperrors.NewNotFoundError("record not found")
	ErrDuplicateEntry = apperrors.NewConflictError("duplicate entry")
	ErrInvalidInput   = apperrors.NewValidationError("invalid input")
)

// isDuplicateKeyError checks if the error is a duplicate key violation
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "duplicate key") ||
		strings.Contains(errStr, "UNIQUE constraint") ||
		strings.Contains(errStr, "23505") // PostgreSQL unique violation code
}
