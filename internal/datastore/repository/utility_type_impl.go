package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/ledgerline/propops/internal/datastore/entities"
	"github.com/ledgerline/propops/internal/errors"
)

type utilityTypeRepository struct {
	db *gorm.DB
}

// NewUtilityTypeRepository creates a new UtilityTypeRepository.
func NewUtilityTypeRepository(db *gorm.DB) UtilityTypeRepository {
	return &utilityTypeRepository{db: db}
}

// List returns system types first, then custom types, each in creation order.
func (r *utilityTypeRepository) List(ctx context.Context) ([]entities.UtilityType, error) {
	var out []entities.UtilityType
	if err := r.db.WithContext(ctx).Order("is_system DESC").Order("id ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list utility types: %w", err)
	}
	return out, nil
}

func (r *utilityTypeRepository) Get(ctx context.Context, id uint) (*entities.UtilityType, error) {
	var t entities.UtilityType
	if err := r.db.WithContext(ctx).First(&t, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUtilityTypeNotFound
		}
		return nil, fmt.Errorf("failed to get utility type %d: %w", id, err)
	}
	return &t, nil
}

func (r *utilityTypeRepository) GetByKey(ctx context.Context, key string) (*entities.UtilityType, error) {
	var t entities.UtilityType
	if err := r.db.WithContext(ctx).Where(map[string]any{"key": key}).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUtilityTypeNotFound
		}
		return nil, fmt.Errorf("failed to get utility type %q: %w", key, err)
	}
	return &t, nil
}

func (r *utilityTypeRepository) Create(ctx context.Context, t *entities.UtilityType) error {
	if err := r.db.WithContext(ctx).Create(t).Error; err != nil {
		return wrapWrite("create utility type", err)
	}
	return nil
}

func (r *utilityTypeRepository) UpdateLabel(ctx context.Context, id uint, label string) error {
	result := r.db.WithContext(ctx).Model(&entities.UtilityType{}).Where("id = ?", id).Update("label", label)
	if result.Error != nil {
		return fmt.Errorf("failed to rename utility type %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrUtilityTypeNotFound
	}
	return nil
}

func (r *utilityTypeRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("utility_type_id = ?", id).Delete(&entities.FormattingRule{}).Error; err != nil {
			return fmt.Errorf("failed to delete formatting rules of utility type %d: %w", id, err)
		}
		result := tx.Delete(&entities.UtilityType{}, id)
		if result.Error != nil {
			return fmt.Errorf("failed to delete utility type %d: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrUtilityTypeNotFound
		}
		return nil
	})
}

func (r *utilityTypeRepository) Usage(ctx context.Context, id uint) (UtilityTypeUsage, error) {
	var u UtilityTypeUsage
	db := r.db.WithContext(ctx)
	if err := db.Model(&entities.UtilityAccount{}).Where("utility_type_id = ?", id).Count(&u.Accounts).Error; err != nil {
		return u, fmt.Errorf("failed to count accounts for utility type %d: %w", id, err)
	}
	if err := db.Model(&entities.Expense{}).Where("utility_type_id = ?", id).Count(&u.Expenses).Error; err != nil {
		return u, fmt.Errorf("failed to count expenses for utility type %d: %w", id, err)
	}
	return u, nil
}

func (r *utilityTypeRepository) DeleteUnusedCustom(ctx context.Context) (int64, error) {
	var removed int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []uint
		err := tx.Model(&entities.UtilityType{}).
			Where("is_system = ?", false).
			Where("id NOT IN (?)", tx.Model(&entities.UtilityAccount{}).Select("utility_type_id")).
			Where("id NOT IN (?)", tx.Model(&entities.Expense{}).Select("utility_type_id").Where("utility_type_id IS NOT NULL")).
			Pluck("id", &ids).Error
		if err != nil {
			return fmt.Errorf("failed to find unused utility types: %w", err)
		}
		if len(ids) == 0 {
			return nil
		}
		if err := tx.Where("utility_type_id IN ?", ids).Delete(&entities.FormattingRule{}).Error; err != nil {
			return fmt.Errorf("failed to delete formatting rules of unused utility types: %w", err)
		}
		result := tx.Where("id IN ?", ids).Delete(&entities.UtilityType{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete unused utility types: %w", result.Error)
		}
		removed = result.RowsAffected
		return nil
	})
	return removed, err
}
