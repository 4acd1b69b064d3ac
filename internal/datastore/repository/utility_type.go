package repository

import (
	"context"

	"github.com/ledgerline/propops/internal/datastore/entities"
)

// UtilityTypeRepository persists the utility type taxonomy.
type UtilityTypeRepository interface {
	List(ctx context.Context) ([]entities.UtilityType, error)
	Get(ctx context.Context, id uint) (*entities.UtilityType, error)
	GetByKey(ctx context.Context, key string) (*entities.UtilityType, error)
	Create(ctx context.Context, t *entities.UtilityType) error
	UpdateLabel(ctx context.Context, id uint, label string) error
	// Delete removes the type together with its formatting rules.
	Delete(ctx context.Context, id uint) error

	// Usage counts account mappings and classified expenses referencing id.
	Usage(ctx context.Context, id uint) (UtilityTypeUsage, error)
	// DeleteUnusedCustom removes every non-system type with zero usage and
	// returns how many were removed.
	DeleteUnusedCustom(ctx context.Context) (int64, error)
}

// UtilityTypeUsage reports references that block deletion.
type UtilityTypeUsage struct {
	Accounts int64 `json:"accounts_count"`
	Expenses int64 `json:"expenses_count"`
}

// InUse reports whether anything references the type.
func (u UtilityTypeUsage) InUse() bool { return u.Accounts > 0 || u.Expenses > 0 }
