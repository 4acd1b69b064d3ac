package alerting

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/propops/internal/datastore/entities"
	"github.com/ledgerline/propops/internal/datastore/repository"
	"github.com/ledgerline/propops/internal/logger"
	"github.com/ledgerline/propops/internal/observability"
	"github.com/ledgerline/propops/internal/settings"
)

// mockAlertRuleRepo is a minimal in-memory mock of AlertRuleRepository.
type mockAlertRuleRepo struct {
	rules   []entities.AlertRule
	history []*entities.AlertHistory
	cutoffs []time.Time
	mu      sync.Mutex
}

func newMockRepo(rules ...entities.AlertRule) *mockAlertRuleRepo {
	return &mockAlertRuleRepo{rules: rules}
}

func (m *mockAlertRuleRepo) GetEnabledRules(_ context.Context) ([]entities.AlertRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entities.AlertRule
	for i := range m.rules {
		if m.rules[i].Enabled {
			out = append(out, m.rules[i])
		}
	}
	return out, nil
}

func (m *mockAlertRuleRepo) SaveHistory(_ context.Context, h *entities.AlertHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, h)
	return nil
}

func (m *mockAlertRuleRepo) DeleteHistoryBefore(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cutoffs = append(m.cutoffs, before)
	return 2, nil
}

func (m *mockAlertRuleRepo) historyLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.history)
}

// Unused methods, present to satisfy the interface.
func (m *mockAlertRuleRepo) ListRules(_ context.Context, _ repository.AlertRuleFilter) ([]entities.AlertRule, error) {
	return []entities.AlertRule{}, nil
}
func (m *mockAlertRuleRepo) GetRule(_ context.Context, _ uint) (*entities.AlertRule, error) {
	return &entities.AlertRule{}, nil
}
func (m *mockAlertRuleRepo) CreateRule(_ context.Context, _ *entities.AlertRule) error { return nil }
func (m *mockAlertRuleRepo) UpdateRule(_ context.Context, _ *entities.AlertRule) error { return nil }
func (m *mockAlertRuleRepo) DeleteRule(_ context.Context, _ uint) error                { return nil }
func (m *mockAlertRuleRepo) ToggleRule(_ context.Context, _ uint, _ bool) error        { return nil }
func (m *mockAlertRuleRepo) DeleteBuiltInRules(_ context.Context) (int64, error)       { return 0, nil }
func (m *mockAlertRuleRepo) ListHistory(_ context.Context, _ repository.AlertHistoryFilter) ([]entities.AlertHistory, int64, error) {
	return nil, 0, nil
}
func (m *mockAlertRuleRepo) CountRulesByName(_ context.Context, _ string) (int64, error) {
	return 0, nil
}

// fakeReader serves settings from a map; absent keys return the default.
type fakeReader struct {
	bools map[string]bool
	lists map[string][]string
	ints  map[string]int
}

func (f fakeReader) Get(_ context.Context, _, _ string, def settings.Value) settings.Value { return def }
func (f fakeReader) GetString(_ context.Context, _, _, def string) (string, error)         { return def, nil }
func (f fakeReader) GetFloat(_ context.Context, _, _ string, def float64) (float64, error) { return def, nil }

func (f fakeReader) GetInt(_ context.Context, category, key string, def int) (int, error) {
	if v, ok := f.ints[category+"."+key]; ok {
		return v, nil
	}
	return def, nil
}

func (f fakeReader) GetBool(_ context.Context, category, key string, def bool) (bool, error) {
	if v, ok := f.bools[category+"."+key]; ok {
		return v, nil
	}
	return def, nil
}

func (f fakeReader) GetList(_ context.Context, category, key string, def []string) ([]string, error) {
	if v, ok := f.lists[category+"."+key]; ok {
		return v, nil
	}
	return def, nil
}

func testLogger() logger.Logger {
	return logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil)
}

type firedCall struct {
	rule       string
	value      float64
	recipients []string
}

type recorder struct {
	mu    sync.Mutex
	calls []firedCall
}

func (r *recorder) action(_ context.Context, rule *entities.AlertRule, value float64, recipients []string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, firedCall{rule.Name, value, recipients})
	return len(recipients)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func vacancyRuleEntity() entities.AlertRule {
	return entities.AlertRule{
		ID:          1,
		Name:        "High vacancy count",
		Metric:      MetricVacancyCount,
		Operator:    OperatorGT,
		Threshold:   10,
		Enabled:     true,
		CooldownSec: 3600,
		Recipients:  []string{"leasing@example.com"},
	}
}

func TestEngine_FiresAndRecordsHistory(t *testing.T) {
	repo := newMockRepo(vacancyRuleEntity())
	rec := &recorder{}
	metrics, err := observability.NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	engine := NewEngine(repo, rec.action, nil, metrics, testLogger())
	require.NoError(t, engine.RefreshRules(t.Context()))
	assert.Equal(t, 1, engine.RuleCount())

	fired := engine.EvaluateSnapshot(t.Context(), Snapshot{MetricVacancyCount: 12})
	require.Len(t, fired, 1)

	require.Len(t, rec.calls, 1)
	assert.Equal(t, firedCall{"High vacancy count", 12, []string{"leasing@example.com"}}, rec.calls[0])

	require.Len(t, repo.history, 1)
	h := repo.history[0]
	assert.Equal(t, uint(1), h.RuleID)
	assert.InDelta(t, 12.0, h.MetricValue, 1e-9)
	assert.Equal(t, []string{"leasing@example.com"}, h.Recipients)
	assert.Equal(t, 1, h.Delivered)
	assert.False(t, h.FiredAt.IsZero())

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rr.Body.String(), `propops_alerts_fired_total{metric="vacancy_count"} 1`)
}

func TestEngine_NoMatch(t *testing.T) {
	repo := newMockRepo(vacancyRuleEntity())
	rec := &recorder{}
	engine := NewEngine(repo, rec.action, nil, nil, testLogger())
	require.NoError(t, engine.RefreshRules(t.Context()))

	assert.Empty(t, engine.EvaluateSnapshot(t.Context(), Snapshot{MetricVacancyCount: 10}))
	assert.Empty(t, engine.EvaluateSnapshot(t.Context(), Snapshot{MetricFailedJobs: 50}))
	assert.Zero(t, rec.count())
	assert.Zero(t, repo.historyLen())
}

func TestEngine_DisabledRuleNeverFires(t *testing.T) {
	rule := vacancyRuleEntity()
	rule.Enabled = false
	repo := newMockRepo(rule)
	rec := &recorder{}
	engine := NewEngine(repo, rec.action, nil, nil, testLogger())
	require.NoError(t, engine.RefreshRules(t.Context()))

	assert.Empty(t, engine.EvaluateSnapshot(t.Context(), Snapshot{MetricVacancyCount: 1000}))
	assert.Zero(t, rec.count())
}

func TestEngine_Cooldown(t *testing.T) {
	repo := newMockRepo(vacancyRuleEntity())
	rec := &recorder{}
	engine := NewEngine(repo, rec.action, nil, nil, testLogger())
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	engine.now = func() time.Time { return now }
	require.NoError(t, engine.RefreshRules(t.Context()))

	snap := Snapshot{MetricVacancyCount: 15}
	assert.Len(t, engine.EvaluateSnapshot(t.Context(), snap), 1)
	assert.Empty(t, engine.EvaluateSnapshot(t.Context(), snap), "second firing inside cooldown")

	now = now.Add(59 * time.Minute)
	assert.Empty(t, engine.EvaluateSnapshot(t.Context(), snap))

	now = now.Add(time.Minute)
	assert.Len(t, engine.EvaluateSnapshot(t.Context(), snap), 1, "cooldown elapsed")
	assert.Equal(t, 2, rec.count())
}

func TestEngine_ZeroCooldownAlwaysFires(t *testing.T) {
	rule := vacancyRuleEntity()
	rule.CooldownSec = 0
	repo := newMockRepo(rule)
	rec := &recorder{}
	engine := NewEngine(repo, rec.action, nil, nil, testLogger())
	require.NoError(t, engine.RefreshRules(t.Context()))

	for range 3 {
		engine.EvaluateSnapshot(t.Context(), Snapshot{MetricVacancyCount: 11})
	}
	assert.Equal(t, 3, rec.count())
}

func TestEngine_DefaultRecipientsFromSettings(t *testing.T) {
	rule := vacancyRuleEntity()
	rule.Recipients = nil
	repo := newMockRepo(rule)
	rec := &recorder{}
	reader := fakeReader{lists: map[string][]string{"alerts.notification_emails": {"ops@example.com"}}}
	engine := NewEngine(repo, rec.action, reader, nil, testLogger())
	require.NoError(t, engine.RefreshRules(t.Context()))

	engine.EvaluateSnapshot(t.Context(), Snapshot{MetricVacancyCount: 11})
	require.Len(t, rec.calls, 1)
	assert.Equal(t, []string{"ops@example.com"}, rec.calls[0].recipients)
	assert.Equal(t, []string{"ops@example.com"}, repo.history[0].Recipients)
}

func TestEngine_SwitchedOffBySettings(t *testing.T) {
	for _, key := range []string{"alerts.enabled", "features.alert_rules"} {
		t.Run(key, func(t *testing.T) {
			repo := newMockRepo(vacancyRuleEntity())
			rec := &recorder{}
			engine := NewEngine(repo, rec.action, fakeReader{bools: map[string]bool{key: false}}, nil, testLogger())
			require.NoError(t, engine.RefreshRules(t.Context()))

			assert.False(t, engine.Active(t.Context()))
			assert.Empty(t, engine.EvaluateSnapshot(t.Context(), Snapshot{MetricVacancyCount: 100}))
			assert.Zero(t, rec.count())
		})
	}
}

func TestEngine_RefreshPicksUpChanges(t *testing.T) {
	repo := newMockRepo()
	rec := &recorder{}
	engine := NewEngine(repo, rec.action, nil, nil, testLogger())
	require.NoError(t, engine.RefreshRules(t.Context()))
	assert.Empty(t, engine.EvaluateSnapshot(t.Context(), Snapshot{MetricVacancyCount: 100}))

	repo.mu.Lock()
	repo.rules = append(repo.rules, vacancyRuleEntity())
	repo.mu.Unlock()
	require.NoError(t, engine.RefreshRules(t.Context()))
	assert.Len(t, engine.EvaluateSnapshot(t.Context(), Snapshot{MetricVacancyCount: 100}), 1)
}

func TestEngine_TestFireRule(t *testing.T) {
	repo := newMockRepo()
	rec := &recorder{}
	engine := NewEngine(repo, rec.action, nil, nil, testLogger())

	rule := vacancyRuleEntity()
	engine.TestFireRule(t.Context(), &rule)
	require.Len(t, rec.calls, 1)
	assert.InDelta(t, 10.0, rec.calls[0].value, 1e-9)
	assert.Equal(t, 1, repo.historyLen())
}

type staticSource struct {
	mu    sync.Mutex
	snap  Snapshot
	calls int
}

func (s *staticSource) Collect(context.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.snap, nil
}

func TestEngine_Run(t *testing.T) {
	rule := vacancyRuleEntity()
	rule.CooldownSec = 0
	repo := newMockRepo(rule)
	rec := &recorder{}
	engine := NewEngine(repo, rec.action, nil, nil, testLogger())
	src := &staticSource{snap: Snapshot{MetricVacancyCount: 20}}

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- engine.Run(ctx, 10*time.Millisecond, src) }()

	require.Eventually(t, func() bool { return rec.count() >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestEngine_HistoryCleanup(t *testing.T) {
	repo := newMockRepo()
	engine := NewEngine(repo, nil, nil, nil, testLogger())
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	engine.now = func() time.Time { return now }

	engine.cleanupHistory(30)
	require.Len(t, repo.cutoffs, 1)
	assert.Equal(t, now.AddDate(0, 0, -30), repo.cutoffs[0])

	// Start and stop repeatedly without panicking on double close.
	engine.StartHistoryCleanup(30)
	engine.StartHistoryCleanup(30)
	engine.Stop()
	engine.Stop()
	engine.StartHistoryCleanup(0)
}
