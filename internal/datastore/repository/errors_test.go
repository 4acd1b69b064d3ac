package repository

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/ledgerline/propops/internal/errors"
)

func TestNotFoundSentinelsMatchCategory(t *testing.T) {
	t.Parallel()

	for _, sentinel := range []error{
		ErrSettingNotFound, ErrUtilityTypeNotFound, ErrUtilityAccountNotFound,
		ErrFormattingRuleNotFound, ErrExpenseNotFound, ErrAlertRuleNotFound, ErrJobNotFound,
	} {
		wrapped := fmt.Errorf("lookup: %w", sentinel)
		assert.ErrorIs(t, wrapped, errors.ErrNotFound)
		assert.ErrorIs(t, wrapped, sentinel)
	}
	assert.NotErrorIs(t, ErrJobNotFound, ErrSettingNotFound)
}

func TestWrapWrite(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		unique bool
	}{
		{"translated", gorm.ErrDuplicatedKey, true},
		{"sqlite", errors.New("UNIQUE constraint failed: settings.category, settings.key"), true},
		{"mysql", errors.New("Error 1062 (23000): Duplicate entry 'sync-batch_size' for key"), true},
		{"postgres", errors.New(`ERROR: duplicate key value violates unique constraint "idx_settings_category_key"`), true},
		{"other", errors.New("database is locked"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := wrapWrite("create setting", tt.err)
			assert.Equal(t, tt.unique, errors.Is(err, ErrUniqueViolation))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}
