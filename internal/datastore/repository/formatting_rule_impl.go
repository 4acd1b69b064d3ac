package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/ledgerline/propops/internal/datastore/entities"
	"github.com/ledgerline/propops/internal/errors"
)

type formattingRuleRepository struct {
	db *gorm.DB
}

// NewFormattingRuleRepository creates a new FormattingRuleRepository.
func NewFormattingRuleRepository(db *gorm.DB) FormattingRuleRepository {
	return &formattingRuleRepository{db: db}
}

func (r *formattingRuleRepository) List(ctx context.Context, filter FormattingRuleFilter) ([]entities.FormattingRule, error) {
	var out []entities.FormattingRule
	query := r.db.WithContext(ctx)
	if filter.UtilityTypeID > 0 {
		query = query.Where("utility_type_id = ?", filter.UtilityTypeID)
	}
	if filter.Enabled != nil {
		query = query.Where("enabled = ?", *filter.Enabled)
	}
	if err := query.Order("priority DESC").Order("id ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list formatting rules: %w", err)
	}
	return out, nil
}

func (r *formattingRuleRepository) Get(ctx context.Context, id uint) (*entities.FormattingRule, error) {
	var rule entities.FormattingRule
	if err := r.db.WithContext(ctx).First(&rule, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFormattingRuleNotFound
		}
		return nil, fmt.Errorf("failed to get formatting rule %d: %w", id, err)
	}
	return &rule, nil
}

func (r *formattingRuleRepository) Create(ctx context.Context, rule *entities.FormattingRule) error {
	if err := r.db.WithContext(ctx).Omit("UtilityType").Create(rule).Error; err != nil {
		return fmt.Errorf("failed to create formatting rule: %w", err)
	}
	return nil
}

func (r *formattingRuleRepository) Update(ctx context.Context, rule *entities.FormattingRule) error {
	if rule.ID == 0 {
		return fmt.Errorf("failed to update formatting rule: missing rule ID")
	}
	result := r.db.WithContext(ctx).Model(&entities.FormattingRule{}).Where("id = ?", rule.ID).
		Updates(map[string]any{
			"utility_type_id":  rule.UtilityTypeID,
			"name":             rule.Name,
			"operator":         rule.Operator,
			"threshold":        rule.Threshold,
			"color":            rule.Color,
			"background_color": rule.BackgroundColor,
			"priority":         rule.Priority,
			"enabled":          rule.Enabled,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update formatting rule %d: %w", rule.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrFormattingRuleNotFound
	}
	return nil
}

func (r *formattingRuleRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&entities.FormattingRule{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete formatting rule %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrFormattingRuleNotFound
	}
	return nil
}
