package repository

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/ledgerline/propops/internal/errors"
)

// Not-found sentinels. Each wraps errors.ErrNotFound so callers outside this
// package can match the category without knowing the entity.
var (
	ErrSettingNotFound        = fmt.Errorf("setting %w", errors.ErrNotFound)
	ErrUtilityTypeNotFound    = fmt.Errorf("utility type %w", errors.ErrNotFound)
	ErrUtilityAccountNotFound = fmt.Errorf("utility account %w", errors.ErrNotFound)
	ErrFormattingRuleNotFound = fmt.Errorf("formatting rule %w", errors.ErrNotFound)
	ErrExpenseNotFound        = fmt.Errorf("expense %w", errors.ErrNotFound)
	ErrAlertRuleNotFound      = fmt.Errorf("alert rule %w", errors.ErrNotFound)
	ErrJobNotFound            = fmt.Errorf("job %w", errors.ErrNotFound)
)

// ErrUniqueViolation marks an insert or update rejected by a unique index.
var ErrUniqueViolation = errors.New("unique constraint violation")

// isUniqueViolation recognises duplicate-key failures from every supported
// dialect. gorm.ErrDuplicatedKey is only produced when TranslateError is on,
// so the driver messages are checked as well.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || // sqlite
		strings.Contains(msg, "Duplicate entry") || // mysql
		strings.Contains(msg, "duplicate key value") // postgres
}

// wrapWrite wraps a write error, tagging unique violations with ErrUniqueViolation.
func wrapWrite(op string, err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("failed to %s: %w: %w", op, ErrUniqueViolation, err)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
