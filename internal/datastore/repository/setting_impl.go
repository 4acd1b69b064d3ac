package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ledgerline/propops/internal/datastore/entities"
	"github.com/ledgerline/propops/internal/errors"
)

type settingRepository struct {
	db *gorm.DB
}

// NewSettingRepository creates a new SettingRepository.
func NewSettingRepository(db *gorm.DB) SettingRepository {
	return &settingRepository{db: db}
}

func (r *settingRepository) Get(ctx context.Context, category, key string) (*entities.Setting, error) {
	var s entities.Setting
	err := r.db.WithContext(ctx).
		Where(map[string]any{"category": category, "key": key}).
		First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSettingNotFound
		}
		return nil, fmt.Errorf("failed to get setting %s.%s: %w", category, key, err)
	}
	return &s, nil
}

func (r *settingRepository) ListByCategory(ctx context.Context, category string) ([]entities.Setting, error) {
	var out []entities.Setting
	if err := r.db.WithContext(ctx).Where("category = ?", category).Order("id ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list settings for %s: %w", category, err)
	}
	return out, nil
}

func (r *settingRepository) ListAll(ctx context.Context) ([]entities.Setting, error) {
	var out []entities.Setting
	if err := r.db.WithContext(ctx).Order("category ASC").Order("id ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	return out, nil
}

func (r *settingRepository) Create(ctx context.Context, setting *entities.Setting) error {
	if err := r.db.WithContext(ctx).Create(setting).Error; err != nil {
		return wrapWrite("create setting", err)
	}
	return nil
}

func (r *settingRepository) CreateIfAbsent(ctx context.Context, setting *entities.Setting) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "category"}, {Name: "key"}},
			DoNothing: true,
		}).
		Create(setting)
	if result.Error != nil {
		return false, wrapWrite("seed setting", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *settingRepository) Update(ctx context.Context, setting *entities.Setting) error {
	result := r.db.WithContext(ctx).Model(&entities.Setting{}).
		Where(map[string]any{"category": setting.Category, "key": setting.Key}).
		Updates(map[string]any{
			"value":       setting.Value,
			"encrypted":   setting.Encrypted,
			"description": setting.Description,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update setting %s.%s: %w", setting.Category, setting.Key, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrSettingNotFound
	}
	return nil
}
