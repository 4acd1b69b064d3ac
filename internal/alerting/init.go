package alerting

import (
	"context"
	"fmt"

	"github.com/ledgerline/propops/internal/conf"
	"github.com/ledgerline/propops/internal/datastore/entities"
	"github.com/ledgerline/propops/internal/datastore/repository"
	"github.com/ledgerline/propops/internal/errors"
	"github.com/ledgerline/propops/internal/logger"
	"github.com/ledgerline/propops/internal/observability"
	"github.com/ledgerline/propops/internal/settings"
)

// Initialize seeds missing built-in rules, builds the engine with a shoutrrr
// dispatcher, loads rules and starts history cleanup. Stop the engine on shutdown.
func Initialize(
	ctx context.Context,
	cfg conf.AlertingConfig,
	repo repository.AlertRuleRepository,
	reader settings.Reader,
	metrics *observability.Metrics,
	log logger.Logger,
) (*Engine, error) {
	if log == nil {
		log = logger.Discard()
	}
	if _, err := SeedDefaultRules(ctx, repo, reader, log); err != nil {
		return nil, err
	}

	dispatcher := NewActionDispatcher(cfg.NotifyURL, log)
	engine := NewEngine(repo, dispatcher.Dispatch, reader, metrics, log)

	if err := engine.RefreshRules(ctx); err != nil {
		return nil, err
	}
	engine.StartHistoryCleanup(cfg.HistoryRetentionDays)

	log.Info("alerting engine initialized", logger.Int("rules_loaded", engine.RuleCount()))
	return engine, nil
}

// SeedDefaultRules ensures all built-in rules exist. It checks by name so
// partial seeds self-heal on restart and admin edits to a seeded rule survive.
func SeedDefaultRules(ctx context.Context, repo repository.AlertRuleRepository, reader settings.Reader, log logger.Logger) (int, error) {
	existing, err := repo.ListRules(ctx, repository.AlertRuleFilter{})
	if err != nil {
		return 0, err
	}

	existingNames := make(map[string]struct{}, len(existing))
	for i := range existing {
		existingNames[existing[i].Name] = struct{}{}
	}

	defaults := defaultsFromSettings(ctx, reader, log)
	var created int
	for i := range defaults {
		if _, exists := existingNames[defaults[i].Name]; exists {
			continue
		}
		if err := repo.CreateRule(ctx, &defaults[i]); err != nil {
			// Another process seeded the same name first.
			if errors.Is(err, repository.ErrUniqueViolation) {
				continue
			}
			return created, fmt.Errorf("failed to seed alert rule %q: %w", defaults[i].Name, err)
		}
		created++
	}
	if created > 0 {
		log.Info("seeded default alert rules", logger.Int("created", created))
	}
	return created, nil
}

// ResetDefaults deletes every built-in rule, including admin edits to them,
// and seeds the shipped versions again. Custom rules are untouched.
func ResetDefaults(ctx context.Context, repo repository.AlertRuleRepository, reader settings.Reader, log logger.Logger) (int, error) {
	deleted, err := repo.DeleteBuiltInRules(ctx)
	if err != nil {
		return 0, err
	}
	created, err := SeedDefaultRules(ctx, repo, reader, log)
	if err != nil {
		return created, err
	}
	log.Info("alert rules reset to defaults",
		logger.Int64("deleted", deleted),
		logger.Int("created", created))
	return created, nil
}

func defaultsFromSettings(ctx context.Context, reader settings.Reader, log logger.Logger) []entities.AlertRule {
	if reader == nil {
		return DefaultRules(0)
	}
	threshold, err := reader.GetInt(ctx, settingsCategory, settingThreshold, defaultFailureTrigger)
	if err != nil {
		log.Warn("alerts.failure_threshold unreadable, using default", logger.Error(err))
		threshold = defaultFailureTrigger
	}
	return DefaultRules(float64(threshold))
}
