package repository

import (
	"context"
	"time"

	"github.com/ledgerline/propops/internal/datastore/entities"
)

// ExpenseRepository reads and tags synchronized expense records.
type ExpenseRepository interface {
	// Upsert inserts the expense or replaces the row with the same SourceID.
	Upsert(ctx context.Context, expense *entities.Expense) error
	Get(ctx context.Context, id uint) (*entities.Expense, error)

	// UnmappedSince groups expenses posted on or after since whose account
	// has no active mapping, ordered by occurrences desc then number asc.
	UnmappedSince(ctx context.Context, since time.Time, limit int) ([]UnmappedAccount, error)

	// ForEachBatch walks every expense in id order.
	ForEachBatch(ctx context.Context, size int, fn func(batch []entities.Expense) error) error
	// SetClassification stores the derived tag; typeID nil clears it.
	SetClassification(ctx context.Context, id uint, typeID *uint, at time.Time) error

	// ListClassified returns utility-tagged expenses posted in [from, to).
	ListClassified(ctx context.Context, from, to time.Time) ([]entities.Expense, error)
}

// UnmappedAccount is one GL account seen in expenses without an active mapping.
type UnmappedAccount struct {
	GLAccountNumber string `gorm:"column:gl_account_number" json:"gl_account_number"`
	GLAccountName   string `gorm:"column:gl_account_name" json:"gl_account_name"`
	Occurrences     int64  `gorm:"column:occurrences" json:"occurrences"`
}
