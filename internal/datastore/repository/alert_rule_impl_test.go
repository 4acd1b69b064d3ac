package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/propops/internal/datastore/entities"
	"github.com/ledgerline/propops/internal/testutil"
)

// createTestRule creates an enabled custom alert rule on metric.
func createTestRule(t *testing.T, repo AlertRuleRepository, name, metric string) *entities.AlertRule {
	t.Helper()
	rule := &entities.AlertRule{
		Name:        name,
		Description: "test rule",
		Metric:      metric,
		Operator:    "gt",
		Threshold:   3,
		Enabled:     true,
		CooldownSec: 300,
		Recipients:  []string{"ops@example.com"},
	}
	require.NoError(t, repo.CreateRule(t.Context(), rule))
	return rule
}

func TestAlertRuleRepository_CreateAndGet(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewAlertRuleRepository(db)
	ctx := t.Context()

	rule := &entities.AlertRule{
		Name:        "High vacancy",
		Description: "Too many vacant units",
		Metric:      "vacancy_count",
		Operator:    "gte",
		Threshold:   5,
		Enabled:     true,
		BuiltIn:     true,
		CooldownSec: 86400,
		Recipients:  []string{"pm@example.com", "owner@example.com"},
	}
	require.NoError(t, repo.CreateRule(ctx, rule))
	assert.NotZero(t, rule.ID)

	got, err := repo.GetRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, "High vacancy", got.Name)
	assert.Equal(t, "vacancy_count", got.Metric)
	assert.Equal(t, "gte", got.Operator)
	assert.InDelta(t, 5.0, got.Threshold, 0.0001)
	assert.True(t, got.BuiltIn)
	assert.Equal(t, 86400, got.CooldownSec)
	assert.Equal(t, []string{"pm@example.com", "owner@example.com"}, got.Recipients)
}

func TestAlertRuleRepository_DuplicateName(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewAlertRuleRepository(db)

	createTestRule(t, repo, "Sync failures", "sync_failure_count")
	err := repo.CreateRule(t.Context(), &entities.AlertRule{Name: "Sync failures", Metric: "x", Operator: "gt"})
	require.ErrorIs(t, err, ErrUniqueViolation)
}

func TestAlertRuleRepository_ListRules(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewAlertRuleRepository(db)
	ctx := t.Context()

	rule1 := &entities.AlertRule{Name: "Vacancy", Enabled: true, BuiltIn: true, Metric: "vacancy_count", Operator: "gt", CooldownSec: 300}
	rule2 := &entities.AlertRule{Name: "Delinquency", Enabled: true, BuiltIn: false, Metric: "delinquent_tenants", Operator: "gt", CooldownSec: 60}
	rule3 := &entities.AlertRule{Name: "Disabled", Enabled: false, BuiltIn: true, Metric: "sync_failure_count", Operator: "gte", CooldownSec: 900}
	for _, r := range []*entities.AlertRule{rule1, rule2, rule3} {
		require.NoError(t, repo.CreateRule(ctx, r))
	}

	t.Run("no filter returns all", func(t *testing.T) {
		rules, err := repo.ListRules(ctx, AlertRuleFilter{})
		require.NoError(t, err)
		assert.Len(t, rules, 3)
	})

	t.Run("filter by metric", func(t *testing.T) {
		rules, err := repo.ListRules(ctx, AlertRuleFilter{Metric: "vacancy_count"})
		require.NoError(t, err)
		require.Len(t, rules, 1)
		assert.Equal(t, "Vacancy", rules[0].Name)
	})

	t.Run("filter by enabled", func(t *testing.T) {
		enabled := true
		rules, err := repo.ListRules(ctx, AlertRuleFilter{Enabled: &enabled})
		require.NoError(t, err)
		assert.Len(t, rules, 2)
	})

	t.Run("filter by built-in", func(t *testing.T) {
		builtIn := true
		rules, err := repo.ListRules(ctx, AlertRuleFilter{BuiltIn: &builtIn})
		require.NoError(t, err)
		assert.Len(t, rules, 2)
	})
}

func TestAlertRuleRepository_UpdateRule(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewAlertRuleRepository(db)
	ctx := t.Context()

	rule := createTestRule(t, repo, "Original", "vacancy_count")
	rule.Name = "Updated"
	rule.Threshold = 7.5
	rule.Recipients = []string{"a@example.com"}
	require.NoError(t, repo.UpdateRule(ctx, rule))

	got, err := repo.GetRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, "Updated", got.Name)
	assert.InDelta(t, 7.5, got.Threshold, 0.0001)
	assert.Equal(t, []string{"a@example.com"}, got.Recipients)

	require.Error(t, repo.UpdateRule(ctx, &entities.AlertRule{Name: "no id"}))
}

func TestAlertRuleRepository_DeleteRule(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewAlertRuleRepository(db)
	ctx := t.Context()

	rule := createTestRule(t, repo, "ToDelete", "vacancy_count")
	require.NoError(t, repo.SaveHistory(ctx, &entities.AlertHistory{RuleID: rule.ID, FiredAt: time.Now(), MetricValue: 9}))

	require.NoError(t, repo.DeleteRule(ctx, rule.ID))

	_, err := repo.GetRule(ctx, rule.ID)
	require.ErrorIs(t, err, ErrAlertRuleNotFound)

	var historyCount int64
	require.NoError(t, db.Model(&entities.AlertHistory{}).Where("rule_id = ?", rule.ID).Count(&historyCount).Error)
	assert.Equal(t, int64(0), historyCount)

	require.ErrorIs(t, repo.DeleteRule(ctx, rule.ID), ErrAlertRuleNotFound)
}

func TestAlertRuleRepository_ToggleRule(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewAlertRuleRepository(db)
	ctx := t.Context()

	rule := createTestRule(t, repo, "Toggle", "vacancy_count")
	assert.True(t, rule.Enabled)

	require.NoError(t, repo.ToggleRule(ctx, rule.ID, false))
	got, err := repo.GetRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.False(t, got.Enabled)

	require.NoError(t, repo.ToggleRule(ctx, rule.ID, true))
	got, err = repo.GetRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.True(t, got.Enabled)

	require.ErrorIs(t, repo.ToggleRule(ctx, 9999, true), ErrAlertRuleNotFound)
}

func TestAlertRuleRepository_History(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewAlertRuleRepository(db)
	ctx := t.Context()

	rule := createTestRule(t, repo, "HistRule", "vacancy_count")

	now := time.Now()
	for i := range 5 {
		h := &entities.AlertHistory{
			RuleID:      rule.ID,
			FiredAt:     now.Add(time.Duration(-i) * time.Hour),
			MetricValue: float64(10 + i),
			Recipients:  []string{"ops@example.com"},
			Delivered:   1,
		}
		require.NoError(t, repo.SaveHistory(ctx, h))
	}

	t.Run("list all history", func(t *testing.T) {
		items, total, err := repo.ListHistory(ctx, AlertHistoryFilter{})
		require.NoError(t, err)
		assert.Equal(t, int64(5), total)
		require.Len(t, items, 5)
		assert.True(t, items[0].FiredAt.After(items[1].FiredAt))
		assert.Equal(t, "HistRule", items[0].Rule.Name, "rule should be preloaded")
	})

	t.Run("list with pagination", func(t *testing.T) {
		items, total, err := repo.ListHistory(ctx, AlertHistoryFilter{Limit: 2, Offset: 1})
		require.NoError(t, err)
		assert.Equal(t, int64(5), total)
		assert.Len(t, items, 2)
	})

	t.Run("delete history before timestamp", func(t *testing.T) {
		cutoff := now.Add(-150 * time.Minute)
		deleted, err := repo.DeleteHistoryBefore(ctx, cutoff)
		require.NoError(t, err)
		assert.Equal(t, int64(2), deleted)

		_, remaining, err := repo.ListHistory(ctx, AlertHistoryFilter{})
		require.NoError(t, err)
		assert.Equal(t, int64(3), remaining)
	})
}

func TestAlertRuleRepository_GetEnabledRules(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewAlertRuleRepository(db)
	ctx := t.Context()

	r1 := &entities.AlertRule{Name: "Enabled1", Enabled: true, Metric: "vacancy_count", Operator: "gt"}
	r2 := &entities.AlertRule{Name: "Disabled1", Enabled: false, Metric: "vacancy_count", Operator: "gt"}
	r3 := &entities.AlertRule{Name: "Enabled2", Enabled: true, Metric: "sync_failure_count", Operator: "gte"}
	for _, r := range []*entities.AlertRule{r1, r2, r3} {
		require.NoError(t, repo.CreateRule(ctx, r))
	}

	rules, err := repo.GetEnabledRules(ctx)
	require.NoError(t, err)
	assert.Len(t, rules, 2)
	for _, r := range rules {
		assert.True(t, r.Enabled)
	}
}

func TestAlertRuleRepository_DeleteBuiltInRules(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewAlertRuleRepository(db)
	ctx := t.Context()

	r1 := &entities.AlertRule{Name: "BuiltIn1", Enabled: true, BuiltIn: true, Metric: "vacancy_count", Operator: "gt"}
	r2 := &entities.AlertRule{Name: "Custom1", Enabled: true, BuiltIn: false, Metric: "vacancy_count", Operator: "gt"}
	r3 := &entities.AlertRule{Name: "BuiltIn2", Enabled: true, BuiltIn: true, Metric: "sync_failure_count", Operator: "gte"}
	for _, r := range []*entities.AlertRule{r1, r2, r3} {
		require.NoError(t, repo.CreateRule(ctx, r))
	}
	require.NoError(t, repo.SaveHistory(ctx, &entities.AlertHistory{RuleID: r1.ID, FiredAt: time.Now(), MetricValue: 1}))

	deleted, err := repo.DeleteBuiltInRules(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	remaining, err := repo.ListRules(ctx, AlertRuleFilter{})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "Custom1", remaining[0].Name)
}

func TestAlertRuleRepository_CountRulesByName(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewAlertRuleRepository(db)
	ctx := t.Context()

	createTestRule(t, repo, "Unique Rule", "vacancy_count")

	count, err := repo.CountRulesByName(ctx, "Unique Rule")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = repo.CountRulesByName(ctx, "Nonexistent")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}
