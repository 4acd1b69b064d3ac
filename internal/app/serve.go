package app

import (
	"context"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ledgerline/propops/internal/alerting"
	api "github.com/ledgerline/propops/internal/api/v1"
	"github.com/ledgerline/propops/internal/errors"
	"github.com/ledgerline/propops/internal/logger"
)

const shutdownTimeout = 30 * time.Second

// Serve runs the admin API, the job runner and the alert engine until ctx is
// cancelled or one of them fails, then shuts all of them down. If ln is nil
// the configured listen address is used.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	if err := a.Runner.Start(ctx); err != nil {
		return err
	}

	alertLog := a.Log.Module("alerting")
	engine, err := alerting.Initialize(ctx, a.Config.Alerting, a.AlertRules, a.Settings, a.Metrics, alertLog)
	if err != nil {
		a.stopRunner()
		return err
	}
	pushed := alerting.NewPushedSource()
	source := alerting.Sources{
		pushed,
		alerting.NewLocalSource(a.Accounts, a.JobRepo, a.Config.Utilities.SuggestionWindowDays),
	}

	ctrl := api.New(*a.Config, api.Deps{
		Settings:   a.Settings,
		Types:      a.Types,
		Accounts:   a.Accounts,
		Rules:      a.Rules,
		AlertRules: a.AlertRules,
		Alerts:     engine,
		Pushed:     pushed,
		Jobs:       a.Runner,
		Report:     a.Report,
		DB:         a.DB,
		Metrics:    a.Metrics,
		Logger:     a.Log,
	})
	srv := ctrl.Server(a.Config.Server)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Log.Info("admin API listening", logger.String("addr", srv.Addr))
		var err error
		if ln != nil {
			err = srv.Serve(ln)
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		return engine.Run(gctx, a.Config.Alerting.EvaluationInterval.Std(), source)
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		engine.Stop()
		if err := a.Runner.Stop(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		a.Log.Info("shutdown complete")
		return errors.Join(errs...)
	})

	return g.Wait()
}

func (a *App) stopRunner() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.Runner.Stop(ctx); err != nil {
		a.Log.Warn("job runner did not stop cleanly", logger.Error(err))
	}
}
