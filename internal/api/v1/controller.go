// Package api implements the /api/v1 admin HTTP API on echo.
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ledgerline/propops/internal/alerting"
	"github.com/ledgerline/propops/internal/conf"
	"github.com/ledgerline/propops/internal/datastore/repository"
	"github.com/ledgerline/propops/internal/errors"
	"github.com/ledgerline/propops/internal/formatting"
	"github.com/ledgerline/propops/internal/jobs"
	"github.com/ledgerline/propops/internal/logger"
	"github.com/ledgerline/propops/internal/observability"
	"github.com/ledgerline/propops/internal/report"
	"github.com/ledgerline/propops/internal/settings"
	"github.com/ledgerline/propops/internal/utilities"
)

// QueryValueTrue is the literal accepted for boolean query filters.
const QueryValueTrue = "true"

// Pinger reports database reachability for /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps carries the services the controller serves. Alerts and Pushed may be
// nil when alerting is not running.
type Deps struct {
	Settings   *settings.Store
	Types      *utilities.Registry
	Accounts   *utilities.Mapper
	Rules      *formatting.Service
	AlertRules repository.AlertRuleRepository
	Alerts     *alerting.Engine
	Pushed     *alerting.PushedSource
	Jobs       *jobs.Runner
	Report     *report.UtilityCosts
	DB         Pinger
	Metrics    *observability.Metrics
	Logger     logger.Logger
}

// Controller owns the echo instance and every route handler.
type Controller struct {
	Echo  *echo.Echo
	Group *echo.Group

	settings         *settings.Store
	types            *utilities.Registry
	accounts         *utilities.Mapper
	rules            *formatting.Service
	alertRuleRepo    repository.AlertRuleRepository
	alertEngine      *alerting.Engine
	pushed           *alerting.PushedSource
	jobs             *jobs.Runner
	report           *report.UtilityCosts
	db               Pinger
	metrics          *observability.Metrics
	logger           logger.Logger
	suggestionWindow int
}

// New builds the echo server, installs middleware and registers every route.
func New(cfg conf.Settings, deps Deps) *Controller {
	log := deps.Logger
	if log == nil {
		log = logger.Discard()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	c := &Controller{
		Echo:             e,
		settings:         deps.Settings,
		types:            deps.Types,
		accounts:         deps.Accounts,
		rules:            deps.Rules,
		alertRuleRepo:    deps.AlertRules,
		alertEngine:      deps.Alerts,
		pushed:           deps.Pushed,
		jobs:             deps.Jobs,
		report:           deps.Report,
		db:               deps.DB,
		metrics:          deps.Metrics,
		logger:           log.Module("api"),
		suggestionWindow: cfg.Utilities.SuggestionWindowDays,
	}
	if c.suggestionWindow <= 0 {
		c.suggestionWindow = utilities.DefaultSuggestionWindowDays
	}

	c.installMiddleware(cfg.Server)

	e.GET("/healthz", c.Health)
	e.GET("/metrics", echo.WrapHandler(c.metrics.Handler()))

	c.Group = e.Group("/api/v1")
	c.initSettingsRoutes()
	c.initUtilityTypeRoutes()
	c.initUtilityAccountRoutes()
	c.initFormattingRuleRoutes()
	c.initAlertRoutes()
	c.initJobRoutes()
	c.initReportRoutes()

	return c
}

// Server wraps the echo handler with the configured timeouts.
func (c *Controller) Server(cfg conf.ServerConfig) *http.Server {
	return &http.Server{
		Addr:              cfg.Listen,
		Handler:           c.Echo,
		ReadTimeout:       cfg.ReadTimeout.Std(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.WriteTimeout.Std(),
	}
}

// Health reports liveness and database reachability.
func (c *Controller) Health(ctx echo.Context) error {
	status := map[string]any{"status": "ok"}
	if c.db != nil {
		pingCtx, cancel := context.WithTimeout(ctx.Request().Context(), 2*time.Second)
		defer cancel()
		if err := c.db.Ping(pingCtx); err != nil {
			c.logger.Warn("health check failed", logger.Error(err))
			return ctx.JSON(http.StatusServiceUnavailable, map[string]any{
				"status":   "unavailable",
				"database": err.Error(),
			})
		}
		status["database"] = "ok"
	}
	if c.alertEngine != nil {
		status["alert_rules"] = c.alertEngine.RuleCount()
	}
	return ctx.JSON(http.StatusOK, status)
}

// ErrorResponse is the body of every non-2xx response. Field names the input
// that was rejected; Details carries entity specific context.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Field   string         `json:"field,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// HandleError maps a service error to a status code and JSON body. message is
// used for unexpected failures, whose cause is logged but never returned.
func (c *Controller) HandleError(ctx echo.Context, err error, message string) error {
	var (
		validation *errors.ValidationError
		keyFormat  *errors.InvalidKeyFormatError
		dupKey     *errors.DuplicateKeyError
		dupAccount *errors.DuplicateAccountError
		inUse      *errors.InUseError
		notFound   *errors.NotFoundError
	)
	switch {
	case errors.As(err, &validation):
		return ctx.JSON(http.StatusBadRequest, ErrorResponse{Error: validation.Message, Field: validation.Field})
	case errors.As(err, &keyFormat):
		return ctx.JSON(http.StatusBadRequest, ErrorResponse{Error: keyFormat.Error(), Field: "key"})
	case errors.As(err, &dupKey):
		return ctx.JSON(http.StatusConflict, ErrorResponse{
			Error:   dupKey.Error(),
			Field:   "key",
			Details: map[string]any{"entity": dupKey.Entity, "key": dupKey.Key},
		})
	case errors.As(err, &dupAccount):
		return ctx.JSON(http.StatusConflict, ErrorResponse{
			Error: dupAccount.Error(),
			Field: "gl_account_number",
		})
	case errors.As(err, &inUse):
		return ctx.JSON(http.StatusConflict, ErrorResponse{
			Error: inUse.Error(),
			Details: map[string]any{
				"accounts_count": inUse.Accounts,
				"expenses_count": inUse.Expenses,
			},
		})
	case errors.As(err, &notFound):
		return ctx.JSON(http.StatusNotFound, ErrorResponse{Error: notFound.Error()})
	case errors.Is(err, errors.ErrNotFound):
		return ctx.JSON(http.StatusNotFound, ErrorResponse{Error: "not found"})
	case errors.Is(err, jobs.ErrQueueFull), errors.Is(err, jobs.ErrStopped):
		ctx.Response().Header().Set("Retry-After", "30")
		return ctx.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error()})
	}

	c.logger.Error(message,
		logger.String("path", ctx.Path()),
		logger.Error(err))
	return ctx.JSON(http.StatusInternalServerError, ErrorResponse{Error: message})
}

func badRequest(ctx echo.Context, field, message string) error {
	return ctx.JSON(http.StatusBadRequest, ErrorResponse{Error: message, Field: field})
}

// parseUintParam parses a uint route parameter.
func parseUintParam(ctx echo.Context, name string) (uint, error) {
	v, err := strconv.ParseUint(ctx.Param(name), 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(v), nil
}

// parseBoolQuery returns nil when the parameter is absent.
func parseBoolQuery(ctx echo.Context, name string) *bool {
	raw := ctx.QueryParam(name)
	if raw == "" {
		return nil
	}
	v := raw == QueryValueTrue
	return &v
}

// jobAccepted answers an enqueue with 202 and a poll location.
func jobAccepted(ctx echo.Context, id string) error {
	ctx.Response().Header().Set(echo.HeaderLocation, "/api/v1/jobs/"+id)
	return ctx.JSON(http.StatusAccepted, map[string]string{
		"job_id": id,
		"status": "queued",
	})
}
