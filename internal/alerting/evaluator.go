package alerting

import (
	"fmt"
	"math"
	"net/mail"
	"slices"
	"strconv"
	"strings"

	"github.com/ledgerline/propops/internal/datastore/entities"
	"github.com/ledgerline/propops/internal/errors"
)

// Snapshot maps metric names to their values at one point in time.
type Snapshot map[string]float64

// Merge copies other into s, overwriting shared metrics.
func (s Snapshot) Merge(other Snapshot) {
	for k, v := range other {
		s[k] = v
	}
}

// Firing is a rule whose comparison held for a snapshot.
type Firing struct {
	Rule  entities.AlertRule
	Value float64
}

// Compare applies operator to value and threshold. Unknown operators never match.
func Compare(operator string, value, threshold float64) bool {
	switch operator {
	case OperatorGT:
		return value > threshold
	case OperatorGTE:
		return value >= threshold
	case OperatorLT:
		return value < threshold
	case OperatorLTE:
		return value <= threshold
	case OperatorEQ:
		return value == threshold
	case OperatorNEQ:
		return value != threshold
	default:
		return false
	}
}

// Evaluate returns the enabled rules whose metric is present in snapshot and
// whose comparison holds, in rule order. It does not consult cooldowns.
func Evaluate(rules []entities.AlertRule, snapshot Snapshot) []Firing {
	var out []Firing
	for i := range rules {
		rule := &rules[i]
		if !rule.Enabled {
			continue
		}
		value, ok := snapshot[rule.Metric]
		if !ok {
			continue
		}
		if Compare(rule.Operator, value, rule.Threshold) {
			out = append(out, Firing{Rule: *rule, Value: value})
		}
	}
	return out
}

// SnapshotFromMap converts decoded JSON into a Snapshot. Numeric strings are
// accepted; anything else is a validation error naming the metric.
func SnapshotFromMap(raw map[string]any) (Snapshot, error) {
	out := make(Snapshot, len(raw))
	for name, val := range raw {
		if strings.TrimSpace(name) == "" {
			return nil, errors.NewValidation("metrics", "metric name must not be empty")
		}
		f, err := toFloat64(val)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, errors.NewValidation("metrics."+name, "must be a finite number")
		}
		out[name] = f
	}
	return out, nil
}

// ValidateRule checks a rule before it is stored.
func ValidateRule(rule *entities.AlertRule) error {
	rule.Name = strings.TrimSpace(rule.Name)
	rule.Metric = strings.TrimSpace(rule.Metric)
	if rule.Name == "" {
		return errors.NewValidation("name", "is required")
	}
	if len(rule.Name) > 255 {
		return errors.NewValidation("name", "must be at most 255 characters")
	}
	if rule.Metric == "" {
		return errors.NewValidation("metric", "is required")
	}
	if !slices.Contains(Operators, rule.Operator) {
		return errors.NewValidation("operator", "must be one of %s", strings.Join(Operators, ", "))
	}
	if math.IsNaN(rule.Threshold) || math.IsInf(rule.Threshold, 0) {
		return errors.NewValidation("threshold", "must be a finite number")
	}
	if rule.CooldownSec < 0 {
		return errors.NewValidation("cooldown_sec", "must not be negative")
	}
	for i, r := range rule.Recipients {
		addr, err := mail.ParseAddress(strings.TrimSpace(r))
		if err != nil {
			return errors.NewValidation(fmt.Sprintf("recipients[%d]", i), "%q is not a valid address", r)
		}
		rule.Recipients[i] = addr.Address
	}
	return nil
}

func toFloat64(val any) (float64, error) {
	switch v := val.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case uint:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case interface{ Float64() (float64, error) }:
		return v.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	default:
		return 0, fmt.Errorf("cannot convert %T to float64", val)
	}
}
