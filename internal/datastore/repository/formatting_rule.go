package repository

import (
	"context"

	"github.com/ledgerline/propops/internal/datastore/entities"
)

// FormattingRuleRepository persists conditional formatting rules.
type FormattingRuleRepository interface {
	// List returns rules ordered by priority desc, then id asc.
	List(ctx context.Context, filter FormattingRuleFilter) ([]entities.FormattingRule, error)
	Get(ctx context.Context, id uint) (*entities.FormattingRule, error)
	Create(ctx context.Context, rule *entities.FormattingRule) error
	Update(ctx context.Context, rule *entities.FormattingRule) error
	Delete(ctx context.Context, id uint) error
}

// FormattingRuleFilter controls rule listing queries.
type FormattingRuleFilter struct {
	UtilityTypeID uint
	Enabled       *bool
}
