package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/ledgerline/propops/internal/datastore/entities"
	"github.com/ledgerline/propops/internal/errors"
)

type utilityAccountRepository struct {
	db *gorm.DB
}

// NewUtilityAccountRepository creates a new UtilityAccountRepository.
func NewUtilityAccountRepository(db *gorm.DB) UtilityAccountRepository {
	return &utilityAccountRepository{db: db}
}

func (r *utilityAccountRepository) List(ctx context.Context, filter UtilityAccountFilter) ([]entities.UtilityAccount, error) {
	var out []entities.UtilityAccount
	query := r.db.WithContext(ctx).Preload("UtilityType")
	if filter.UtilityTypeID > 0 {
		query = query.Where("utility_type_id = ?", filter.UtilityTypeID)
	}
	if filter.Active != nil {
		query = query.Where("is_active = ?", *filter.Active)
	}
	if err := query.Order("gl_account_number ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list utility accounts: %w", err)
	}
	return out, nil
}

func (r *utilityAccountRepository) Get(ctx context.Context, id uint) (*entities.UtilityAccount, error) {
	var a entities.UtilityAccount
	if err := r.db.WithContext(ctx).Preload("UtilityType").First(&a, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUtilityAccountNotFound
		}
		return nil, fmt.Errorf("failed to get utility account %d: %w", id, err)
	}
	return &a, nil
}

func (r *utilityAccountRepository) GetByNumber(ctx context.Context, number string) (*entities.UtilityAccount, error) {
	var a entities.UtilityAccount
	if err := r.db.WithContext(ctx).Where("gl_account_number = ?", number).First(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUtilityAccountNotFound
		}
		return nil, fmt.Errorf("failed to get utility account %s: %w", number, err)
	}
	return &a, nil
}

func (r *utilityAccountRepository) Create(ctx context.Context, account *entities.UtilityAccount) error {
	if err := r.db.WithContext(ctx).Omit("UtilityType").Create(account).Error; err != nil {
		return wrapWrite("create utility account", err)
	}
	return nil
}

// Update saves name, type and active flag. The account number is immutable.
func (r *utilityAccountRepository) Update(ctx context.Context, account *entities.UtilityAccount) error {
	if account.ID == 0 {
		return fmt.Errorf("failed to update utility account: missing ID")
	}
	result := r.db.WithContext(ctx).Model(&entities.UtilityAccount{}).Where("id = ?", account.ID).
		Updates(map[string]any{
			"gl_account_name": account.GLAccountName,
			"utility_type_id": account.UtilityTypeID,
			"is_active":       account.IsActive,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update utility account %d: %w", account.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrUtilityAccountNotFound
	}
	return nil
}

func (r *utilityAccountRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&entities.UtilityAccount{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete utility account %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrUtilityAccountNotFound
	}
	return nil
}

func (r *utilityAccountRepository) ActiveMappings(ctx context.Context) (map[string]uint, error) {
	var rows []entities.UtilityAccount
	err := r.db.WithContext(ctx).
		Select("gl_account_number", "utility_type_id").
		Where("is_active = ?", true).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load active utility mappings: %w", err)
	}
	out := make(map[string]uint, len(rows))
	for i := range rows {
		out[rows[i].GLAccountNumber] = rows[i].UtilityTypeID
	}
	return out, nil
}
