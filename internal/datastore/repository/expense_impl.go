package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ledgerline/propops/internal/datastore/entities"
	"github.com/ledgerline/propops/internal/errors"
)

type expenseRepository struct {
	db *gorm.DB
}

// NewExpenseRepository creates a new ExpenseRepository.
func NewExpenseRepository(db *gorm.DB) ExpenseRepository {
	return &expenseRepository{db: db}
}

func (r *expenseRepository) Upsert(ctx context.Context, expense *entities.Expense) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "source_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"property_id", "gl_account_number", "gl_account_name", "amount",
				"posted_on", "utility_type_id", "classified_at", "updated_at",
			}),
		}).
		Omit("UtilityType").
		Create(expense).Error
	if err != nil {
		return fmt.Errorf("failed to upsert expense %s: %w", expense.SourceID, err)
	}
	return nil
}

func (r *expenseRepository) Get(ctx context.Context, id uint) (*entities.Expense, error) {
	var e entities.Expense
	if err := r.db.WithContext(ctx).First(&e, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrExpenseNotFound
		}
		return nil, fmt.Errorf("failed to get expense %d: %w", id, err)
	}
	return &e, nil
}

func (r *expenseRepository) UnmappedSince(ctx context.Context, since time.Time, limit int) ([]UnmappedAccount, error) {
	var out []UnmappedAccount
	active := r.db.Model(&entities.UtilityAccount{}).
		Select("gl_account_number").
		Where("is_active = ?", true)
	query := r.db.WithContext(ctx).Model(&entities.Expense{}).
		Select("gl_account_number, MAX(gl_account_name) AS gl_account_name, COUNT(*) AS occurrences").
		Where("posted_on >= ?", since).
		Where("gl_account_number <> ?", "").
		Where("gl_account_number NOT IN (?)", active).
		Group("gl_account_number").
		Order("occurrences DESC").
		Order("gl_account_number ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Scan(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list unmapped accounts: %w", err)
	}
	return out, nil
}

func (r *expenseRepository) ForEachBatch(ctx context.Context, size int, fn func(batch []entities.Expense) error) error {
	var batch []entities.Expense
	result := r.db.WithContext(ctx).FindInBatches(&batch, size, func(_ *gorm.DB, _ int) error {
		return fn(batch)
	})
	if result.Error != nil {
		return fmt.Errorf("failed to walk expenses: %w", result.Error)
	}
	return nil
}

func (r *expenseRepository) SetClassification(ctx context.Context, id uint, typeID *uint, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&entities.Expense{}).Where("id = ?", id).
		Updates(map[string]any{
			"utility_type_id": typeID,
			"classified_at":   at,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to classify expense %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrExpenseNotFound
	}
	return nil
}

func (r *expenseRepository) ListClassified(ctx context.Context, from, to time.Time) ([]entities.Expense, error) {
	var out []entities.Expense
	err := r.db.WithContext(ctx).
		Where("utility_type_id IS NOT NULL").
		Where("posted_on >= ? AND posted_on < ?", from, to).
		Order("property_id ASC").Order("posted_on ASC").Order("id ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list classified expenses: %w", err)
	}
	return out, nil
}
