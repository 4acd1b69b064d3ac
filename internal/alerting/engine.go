package alerting

import (
	"context"
	"sync"
	"time"

	"github.com/ledgerline/propops/internal/datastore/entities"
	"github.com/ledgerline/propops/internal/datastore/repository"
	"github.com/ledgerline/propops/internal/logger"
	"github.com/ledgerline/propops/internal/observability"
	"github.com/ledgerline/propops/internal/settings"
)

const (
	// saveHistoryTimeout is the context deadline for persisting alert history.
	saveHistoryTimeout = 3 * time.Second
	// cleanupTimeout is the context deadline for the periodic history deletion.
	cleanupTimeout = 5 * time.Second
	// cleanupInterval is how often the history cleanup goroutine runs.
	cleanupInterval = 1 * time.Hour
	// collectTimeout bounds one snapshot collection in Run.
	collectTimeout = 30 * time.Second
)

// ActionFunc delivers a fired rule to its recipients and returns how many
// deliveries succeeded.
type ActionFunc func(ctx context.Context, rule *entities.AlertRule, value float64, recipients []string) int

// Engine evaluates metric snapshots against the enabled alert rules.
type Engine struct {
	repo       repository.AlertRuleRepository
	actionFunc ActionFunc
	settings   settings.Reader
	metrics    *observability.Metrics
	log        logger.Logger
	now        func() time.Time

	// Cooldown tracking (in-memory, resets on restart)
	cooldowns   map[uint]time.Time // rule ID → last fired time
	cooldownsMu sync.RWMutex

	// Cached rules, reloaded by RefreshRules
	rules   []entities.AlertRule
	rulesMu sync.RWMutex

	cleanupStop chan struct{}
}

// NewEngine creates an alerting engine. reader and metrics may be nil; without
// a reader the engine is always active and rules without recipients notify nobody.
func NewEngine(repo repository.AlertRuleRepository, actionFunc ActionFunc, reader settings.Reader,
	metrics *observability.Metrics, log logger.Logger) *Engine {
	if log == nil {
		log = logger.Discard()
	}
	return &Engine{
		repo:       repo,
		actionFunc: actionFunc,
		settings:   reader,
		metrics:    metrics,
		log:        log,
		now:        time.Now,
		cooldowns:  make(map[uint]time.Time),
	}
}

// RefreshRules reloads enabled rules from the database.
// Call this on startup and whenever rules are modified via API.
func (e *Engine) RefreshRules(ctx context.Context) error {
	rules, err := e.repo.GetEnabledRules(ctx)
	if err != nil {
		return err
	}
	e.rulesMu.Lock()
	e.rules = rules
	e.rulesMu.Unlock()
	return nil
}

// RuleCount reports how many enabled rules are cached.
func (e *Engine) RuleCount() int {
	e.rulesMu.RLock()
	defer e.rulesMu.RUnlock()
	return len(e.rules)
}

// Active reports whether alerting is switched on by both alerts.enabled and
// features.alert_rules. Unreadable settings count as on.
func (e *Engine) Active(ctx context.Context) bool {
	if e.settings == nil {
		return true
	}
	for _, k := range [][2]string{{settingsCategory, settingEnabled}, {featuresCategory, featureAlertRules}} {
		on, err := e.settings.GetBool(ctx, k[0], k[1], true)
		if err != nil {
			e.log.Warn("alerting switch unreadable, assuming on",
				logger.String("setting", k[0]+"."+k[1]), logger.Error(err))
			continue
		}
		if !on {
			return false
		}
	}
	return true
}

// EvaluateSnapshot fires every cached rule whose comparison holds and which
// is outside its cooldown. It returns the rules that fired.
func (e *Engine) EvaluateSnapshot(ctx context.Context, snapshot Snapshot) []Firing {
	if !e.Active(ctx) {
		e.log.Debug("alerting disabled, snapshot ignored")
		return nil
	}

	e.rulesMu.RLock()
	rules := make([]entities.AlertRule, len(e.rules))
	copy(rules, e.rules)
	e.rulesMu.RUnlock()
	e.applyLiveThresholds(ctx, rules)

	var fired []Firing
	for _, f := range Evaluate(rules, snapshot) {
		if e.isInCooldown(f.Rule.ID, f.Rule.CooldownSec) {
			continue
		}
		e.fireRule(ctx, &f.Rule, f.Value)
		fired = append(fired, f)
	}
	return fired
}

// applyLiveThresholds points the built-in sync failure rule at the current
// alerts.failure_threshold, so changing the setting takes effect on the next
// evaluation. The stored threshold is kept when the setting is unreadable.
func (e *Engine) applyLiveThresholds(ctx context.Context, rules []entities.AlertRule) {
	if e.settings == nil {
		return
	}
	for i := range rules {
		if !rules[i].BuiltIn || rules[i].Metric != MetricSyncConsecutiveFailures {
			continue
		}
		n, err := e.settings.GetInt(ctx, settingsCategory, settingThreshold, defaultFailureTrigger)
		if err != nil {
			e.log.Warn("alerts.failure_threshold unreadable, using stored rule threshold", logger.Error(err))
			return
		}
		if n > 0 {
			rules[i].Threshold = float64(n)
		}
	}
}

func (e *Engine) isInCooldown(ruleID uint, cooldownSec int) bool {
	if cooldownSec <= 0 {
		return false
	}
	e.cooldownsMu.RLock()
	lastFired, exists := e.cooldowns[ruleID]
	e.cooldownsMu.RUnlock()
	if !exists {
		return false
	}
	return e.now().Sub(lastFired) < time.Duration(cooldownSec)*time.Second
}

// recipients falls back to alerts.notification_emails for rules without their own.
func (e *Engine) recipients(ctx context.Context, rule *entities.AlertRule) []string {
	if len(rule.Recipients) > 0 {
		return rule.Recipients
	}
	if e.settings == nil {
		return nil
	}
	list, err := e.settings.GetList(ctx, settingsCategory, settingRecipients, nil)
	if err != nil {
		e.log.Warn("default alert recipients unreadable", logger.Error(err))
		return nil
	}
	return list
}

func (e *Engine) fireRule(ctx context.Context, rule *entities.AlertRule, value float64) {
	firedAt := e.now()
	e.cooldownsMu.Lock()
	e.cooldowns[rule.ID] = firedAt
	e.cooldownsMu.Unlock()

	to := e.recipients(ctx, rule)
	var delivered int
	if e.actionFunc != nil {
		delivered = e.actionFunc(ctx, rule, value, to)
	}

	history := &entities.AlertHistory{
		RuleID:      rule.ID,
		FiredAt:     firedAt,
		MetricValue: value,
		Recipients:  to,
		Delivered:   delivered,
	}
	saveCtx, saveCancel := context.WithTimeout(context.WithoutCancel(ctx), saveHistoryTimeout)
	defer saveCancel()
	if err := e.repo.SaveHistory(saveCtx, history); err != nil {
		e.log.Error("failed to save alert history",
			logger.Uint64("rule_id", uint64(rule.ID)),
			logger.Error(err))
	}

	e.metrics.AlertFired(rule.Metric)
	e.log.Info("alert rule fired",
		logger.String("rule", rule.Name),
		logger.String("metric", rule.Metric),
		logger.Float64("value", value),
		logger.Int("recipients", len(to)),
		logger.Int("delivered", delivered))
}

// TestFireRule fires a rule's notifications directly with the threshold as
// the metric value, bypassing comparison and cooldown. Used by the test endpoint.
func (e *Engine) TestFireRule(ctx context.Context, rule *entities.AlertRule) {
	e.fireRule(ctx, rule, rule.Threshold)
}

// Run evaluates a freshly collected snapshot every interval until ctx ends.
// Rules are reloaded before each pass so API edits take effect.
func (e *Engine) Run(ctx context.Context, interval time.Duration, source Source) error {
	if interval <= 0 || source == nil {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			e.evaluateOnce(ctx, source)
		}
	}
}

func (e *Engine) evaluateOnce(ctx context.Context, source Source) {
	if !e.Active(ctx) {
		return
	}
	passCtx, cancel := context.WithTimeout(ctx, collectTimeout)
	defer cancel()
	if err := e.RefreshRules(passCtx); err != nil {
		e.log.Error("failed to refresh alert rules", logger.Error(err))
		return
	}
	snapshot, err := source.Collect(passCtx)
	if err != nil {
		e.log.Error("failed to collect alert metrics", logger.Error(err))
		return
	}
	e.EvaluateSnapshot(ctx, snapshot)
}

// StartHistoryCleanup starts a background goroutine that periodically deletes
// alert history entries older than retentionDays. A value of 0 disables cleanup.
func (e *Engine) StartHistoryCleanup(retentionDays int) {
	if retentionDays <= 0 {
		return
	}
	// Stop any existing cleanup goroutine before starting a new one.
	e.stopCleanup()
	e.rulesMu.Lock()
	e.cleanupStop = make(chan struct{})
	stopCh := e.cleanupStop
	e.rulesMu.Unlock()
	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				e.cleanupHistory(retentionDays)
			case <-stopCh:
				return
			}
		}
	}()
}

func (e *Engine) cleanupHistory(retentionDays int) {
	cutoff := e.now().AddDate(0, 0, -retentionDays)
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()
	deleted, err := e.repo.DeleteHistoryBefore(ctx, cutoff)
	if err != nil {
		e.log.Error("alert history cleanup failed", logger.Error(err))
		return
	}
	if deleted > 0 {
		e.log.Info("alert history cleanup completed",
			logger.Int64("deleted", deleted),
			logger.Int("retention_days", retentionDays))
	}
}

// stopCleanup signals the cleanup goroutine to exit. The nil-check-then-close
// happens under rulesMu so Stop and StartHistoryCleanup cannot double-close.
func (e *Engine) stopCleanup() {
	e.rulesMu.Lock()
	ch := e.cleanupStop
	e.cleanupStop = nil
	e.rulesMu.Unlock()
	if ch != nil {
		close(ch)
	}
}

// Stop shuts down the history cleanup goroutine.
func (e *Engine) Stop() {
	e.stopCleanup()
}
