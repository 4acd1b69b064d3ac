package repository

import (
	"context"

	"github.com/ledgerline/propops/internal/datastore/entities"
)

// SettingRepository persists category-scoped settings.
type SettingRepository interface {
	Get(ctx context.Context, category, key string) (*entities.Setting, error)
	ListByCategory(ctx context.Context, category string) ([]entities.Setting, error)
	ListAll(ctx context.Context) ([]entities.Setting, error)

	// Create inserts a new row. A concurrent insert of the same
	// (category, key) fails with ErrUniqueViolation.
	Create(ctx context.Context, setting *entities.Setting) error
	// CreateIfAbsent inserts the row unless (category, key) already exists.
	// It never touches an existing row and reports whether it inserted.
	CreateIfAbsent(ctx context.Context, setting *entities.Setting) (bool, error)
	// Update overwrites value, encrypted and description of an existing row.
	Update(ctx context.Context, setting *entities.Setting) error
}
