// Package formatting evaluates conditional formatting rules that color a
// utility cost by how far it sits from its trailing average.
package formatting

import (
	"cmp"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/ledgerline/propops/internal/datastore/entities"
)

var hundred = decimal.NewFromInt(100)

// Annotation is the visual treatment chosen for one value.
type Annotation struct {
	RuleID          uint            `json:"rule_id"`
	RuleName        string          `json:"rule_name"`
	Color           string          `json:"color"`
	BackgroundColor string          `json:"background_color"`
	DeltaPercent    decimal.Decimal `json:"delta_percent"`
}

// DeltaPercent returns (current-average)/average*100. It reports false when
// average is zero.
func DeltaPercent(current, average decimal.Decimal) (decimal.Decimal, bool) {
	if average.IsZero() {
		return decimal.Zero, false
	}
	return current.Sub(average).Div(average).Mul(hundred), true
}

// Evaluate picks the first matching enabled rule of the utility type, ordered
// by priority desc then id asc. It never modifies rules.
func Evaluate(rules []entities.FormattingRule, utilityTypeID uint, current, average decimal.Decimal) (Annotation, bool) {
	delta, ok := DeltaPercent(current, average)
	if !ok {
		return Annotation{}, false
	}
	for _, r := range Ordered(rules, utilityTypeID) {
		if matches(r, delta) {
			return Annotation{
				RuleID:          r.ID,
				RuleName:        r.Name,
				Color:           r.Color,
				BackgroundColor: r.BackgroundColor,
				DeltaPercent:    delta.Round(2),
			}, true
		}
	}
	return Annotation{}, false
}

// Ordered returns the enabled rules of one utility type in evaluation order.
func Ordered(rules []entities.FormattingRule, utilityTypeID uint) []entities.FormattingRule {
	out := make([]entities.FormattingRule, 0, len(rules))
	for _, r := range rules {
		if r.Enabled && r.UtilityTypeID == utilityTypeID {
			out = append(out, r)
		}
	}
	slices.SortStableFunc(out, func(a, b entities.FormattingRule) int {
		if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func matches(r entities.FormattingRule, delta decimal.Decimal) bool {
	switch r.Operator {
	case entities.OperatorIncreaseOverAverage:
		return delta.GreaterThanOrEqual(r.Threshold)
	case entities.OperatorDecreaseUnderAverage:
		return delta.LessThanOrEqual(r.Threshold.Neg())
	default:
		return false
	}
}
