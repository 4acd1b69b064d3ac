// Package app wires configuration, storage and services into one graph shared
// by the CLI commands.
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ledgerline/propops/internal/alerting"
	"github.com/ledgerline/propops/internal/conf"
	"github.com/ledgerline/propops/internal/datastore"
	"github.com/ledgerline/propops/internal/datastore/repository"
	"github.com/ledgerline/propops/internal/errors"
	"github.com/ledgerline/propops/internal/formatting"
	"github.com/ledgerline/propops/internal/jobs"
	"github.com/ledgerline/propops/internal/logger"
	"github.com/ledgerline/propops/internal/observability"
	"github.com/ledgerline/propops/internal/report"
	"github.com/ledgerline/propops/internal/secrets"
	"github.com/ledgerline/propops/internal/settings"
	"github.com/ledgerline/propops/internal/utilities"
)

// App holds every long-lived component.
type App struct {
	Config   *conf.Settings
	Log      logger.Logger
	DB       *datastore.Manager
	Metrics  *observability.Metrics
	Reporter *observability.Reporter

	Settings   *settings.Store
	Types      *utilities.Registry
	Accounts   *utilities.Mapper
	Rules      *formatting.Service
	AlertRules repository.AlertRuleRepository
	JobRepo    repository.JobRepository
	Runner     *jobs.Runner
	Report     *report.UtilityCosts

	closers []func() error
}

// NewLogger builds the process logger from the logging config.
func NewLogger(cfg conf.LoggingConfig) logger.Logger {
	return logger.NewSlogLogger(os.Stderr, logger.ParseLevel(cfg.Level), &logger.Options{JSON: cfg.Format == "json"})
}

// New opens the database and cache and constructs the services. It does not
// migrate or start background work.
func New(ctx context.Context, cfg *conf.Settings, log logger.Logger, version string) (*App, error) {
	a := &App{Config: cfg, Log: log}

	reporter, err := observability.InitSentry(cfg.Sentry, version)
	if err != nil {
		return nil, err
	}
	a.Reporter = reporter
	a.closers = append(a.closers, func() error {
		reporter.Flush(2 * time.Second)
		return nil
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if a.Metrics, err = observability.NewMetrics(reg); err != nil {
		return nil, err
	}

	if a.DB, err = datastore.Open(cfg.Database, log.Module("datastore")); err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.DB.Close)

	cipher, err := secrets.NewCipher(cfg.Security.EncryptionKey)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	if !cipher.Enabled() {
		log.Warn("security.encryption_key is not set; secret settings cannot be written")
	}

	cache, closeCache, err := settings.NewCache(ctx, cfg.Cache, log.Module("settings"))
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.closers = append(a.closers, closeCache)

	db := a.DB.DB()
	typeRepo := repository.NewUtilityTypeRepository(db)
	expenseRepo := repository.NewExpenseRepository(db)
	ruleRepo := repository.NewFormattingRuleRepository(db)

	a.Settings = settings.NewStore(repository.NewSettingRepository(db), cipher, cache, a.Metrics, log.Module("settings"))
	a.Types = utilities.NewRegistry(typeRepo, log.Module("utilities"))
	a.Accounts = utilities.NewMapper(repository.NewUtilityAccountRepository(db), typeRepo, expenseRepo, log.Module("utilities"))
	a.Rules = formatting.NewService(ruleRepo, typeRepo, log.Module("formatting"))
	a.AlertRules = repository.NewAlertRuleRepository(db)
	a.JobRepo = repository.NewJobRepository(db)
	a.Report = report.NewUtilityCosts(expenseRepo, typeRepo, ruleRepo, log.Module("report"))

	a.Runner = jobs.NewRunner(a.JobRepo, cfg.Jobs, a.Reporter, a.Metrics, log.Module("jobs"))
	jobs.RegisterUtilities(a.Runner, a.Accounts, a.Types)

	return a, nil
}

// Migrate creates or updates the schema.
func (a *App) Migrate(ctx context.Context) error {
	return a.DB.Migrate(ctx)
}

// SeedResult counts what Seed created.
type SeedResult struct {
	Settings   settings.SeedResult
	Types      int
	AlertRules int
}

// Seed creates missing default settings, system utility types and built-in
// alert rules. Existing rows are never overwritten.
func (a *App) Seed(ctx context.Context) (SeedResult, error) {
	var res SeedResult
	var err error
	if res.Settings, err = a.Settings.SeedDefaults(ctx, settings.DefaultSettings()); err != nil {
		return res, fmt.Errorf("failed to seed settings: %w", err)
	}
	if res.Types, err = a.Types.SeedSystemTypes(ctx); err != nil {
		return res, fmt.Errorf("failed to seed utility types: %w", err)
	}
	if res.AlertRules, err = alerting.SeedDefaultRules(ctx, a.AlertRules, a.Settings, a.Log.Module("alerting")); err != nil {
		return res, fmt.Errorf("failed to seed alert rules: %w", err)
	}
	return res, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
