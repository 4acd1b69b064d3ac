// Package report builds the monthly utility cost report. Each cell is the
// month's total for one property and utility type, annotated by the first
// formatting rule that matches against the trailing 12-month average.
package report

import (
	"cmp"
	"context"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/ledgerline/propops/internal/datastore/entities"
	"github.com/ledgerline/propops/internal/datastore/repository"
	"github.com/ledgerline/propops/internal/errors"
	"github.com/ledgerline/propops/internal/formatting"
	"github.com/ledgerline/propops/internal/logger"
)

// MaxMonths bounds the width of one report.
const MaxMonths = 36

// Range is an inclusive span of months.
type Range struct {
	From formatting.Month
	To   formatting.Month
}

// Validate rejects reversed and oversized ranges.
func (r Range) Validate() error {
	if r.To.Before(r.From) {
		return errors.NewValidation("to", "must not be before from")
	}
	if n := len(r.Months()); n > MaxMonths {
		return errors.NewValidation("to", "range spans %d months, at most %d allowed", n, MaxMonths)
	}
	return nil
}

// Months lists every month in the range in order.
func (r Range) Months() []formatting.Month {
	var out []formatting.Month
	for m := r.From; !r.To.Before(m); m = m.Add(1) {
		out = append(out, m)
		if len(out) > MaxMonths {
			break
		}
	}
	return out
}

// Cell is one month of one row.
type Cell struct {
	Month      formatting.Month       `json:"month"`
	Amount     decimal.Decimal        `json:"amount"`
	HasData    bool                   `json:"has_data"`
	Average    decimal.Decimal        `json:"average"`
	HasAverage bool                   `json:"has_average"`
	Annotation *formatting.Annotation `json:"annotation,omitempty"`
}

// Row is one property and utility type across the reported months.
type Row struct {
	PropertyID string          `json:"property_id"`
	TypeID     uint            `json:"utility_type_id"`
	TypeLabel  string          `json:"utility_type"`
	Cells      []Cell          `json:"cells"`
	Total      decimal.Decimal `json:"total"`
}

type rowKey struct {
	property string
	typeID   uint
}

// UtilityCosts assembles report rows from classified expenses.
type UtilityCosts struct {
	expenses repository.ExpenseRepository
	types    repository.UtilityTypeRepository
	rules    repository.FormattingRuleRepository
	log      logger.Logger
}

func NewUtilityCosts(expenses repository.ExpenseRepository, types repository.UtilityTypeRepository,
	rules repository.FormattingRuleRepository, log logger.Logger) *UtilityCosts {
	if log == nil {
		log = logger.Discard()
	}
	return &UtilityCosts{expenses: expenses, types: types, rules: rules, log: log}
}

// Rows returns one row per property and utility type with spending inside
// rng, ordered by property then type label. Expenses from the twelve months
// before rng feed the averages but do not create rows.
func (u *UtilityCosts) Rows(ctx context.Context, rng Range) ([]Row, error) {
	if err := rng.Validate(); err != nil {
		return nil, err
	}
	expenses, err := u.expenses.ListClassified(ctx,
		rng.From.Add(-formatting.TrailingMonths).Start(), rng.To.Add(1).Start())
	if err != nil {
		return nil, err
	}
	types, err := u.types.List(ctx)
	if err != nil {
		return nil, err
	}
	enabled := true
	rules, err := u.rules.List(ctx, repository.FormattingRuleFilter{Enabled: &enabled})
	if err != nil {
		return nil, err
	}

	labels := make(map[uint]string, len(types))
	for _, t := range types {
		labels[t.ID] = t.Label
	}

	totals, inRange := monthlyTotals(expenses, rng)

	rows := make([]Row, 0, len(inRange))
	for key := range inRange {
		rows = append(rows, buildRow(key, labels[key.typeID], totals[key], rng, rules))
	}
	slices.SortFunc(rows, func(a, b Row) int {
		if c := cmp.Compare(a.PropertyID, b.PropertyID); c != 0 {
			return c
		}
		if c := cmp.Compare(a.TypeLabel, b.TypeLabel); c != 0 {
			return c
		}
		return cmp.Compare(a.TypeID, b.TypeID)
	})

	u.log.Debug("utility cost report built",
		logger.String("from", rng.From.String()),
		logger.String("to", rng.To.String()),
		logger.Int("rows", len(rows)),
		logger.Int("expenses", len(expenses)))
	return rows, nil
}

func monthlyTotals(expenses []entities.Expense, rng Range) (map[rowKey]map[formatting.Month]decimal.Decimal, map[rowKey]struct{}) {
	totals := make(map[rowKey]map[formatting.Month]decimal.Decimal)
	inRange := make(map[rowKey]struct{})
	for i := range expenses {
		e := &expenses[i]
		if e.UtilityTypeID == nil {
			continue
		}
		key := rowKey{property: e.PropertyID, typeID: *e.UtilityTypeID}
		month := formatting.MonthOf(e.PostedOn.UTC())
		if totals[key] == nil {
			totals[key] = make(map[formatting.Month]decimal.Decimal)
		}
		totals[key][month] = totals[key][month].Add(e.Amount)
		if !month.Before(rng.From) && !rng.To.Before(month) {
			inRange[key] = struct{}{}
		}
	}
	return totals, inRange
}

func buildRow(key rowKey, label string, totals map[formatting.Month]decimal.Decimal, rng Range, rules []entities.FormattingRule) Row {
	row := Row{PropertyID: key.property, TypeID: key.typeID, TypeLabel: label, Total: decimal.Zero}
	for _, m := range rng.Months() {
		cell := Cell{Month: m}
		cell.Amount, cell.HasData = totals[m]
		cell.Average, cell.HasAverage = formatting.TrailingAverage(totals, m)
		if cell.HasData {
			row.Total = row.Total.Add(cell.Amount)
			if cell.HasAverage {
				if a, ok := formatting.Evaluate(rules, key.typeID, cell.Amount, cell.Average); ok {
					cell.Annotation = &a
				}
			}
		}
		row.Cells = append(row.Cells, cell)
	}
	return row
}
