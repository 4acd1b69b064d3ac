package repository

import (
	"context"

	"github.com/ledgerline/propops/internal/datastore/entities"
)

// UtilityAccountRepository persists GL account to utility type mappings.
type UtilityAccountRepository interface {
	List(ctx context.Context, filter UtilityAccountFilter) ([]entities.UtilityAccount, error)
	Get(ctx context.Context, id uint) (*entities.UtilityAccount, error)
	GetByNumber(ctx context.Context, number string) (*entities.UtilityAccount, error)
	Create(ctx context.Context, account *entities.UtilityAccount) error
	Update(ctx context.Context, account *entities.UtilityAccount) error
	Delete(ctx context.Context, id uint) error

	// ActiveMappings returns gl_account_number → utility_type_id for every
	// active mapping.
	ActiveMappings(ctx context.Context) (map[string]uint, error)
}

// UtilityAccountFilter controls account listing queries.
type UtilityAccountFilter struct {
	UtilityTypeID uint
	Active        *bool
}
