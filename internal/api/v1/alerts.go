package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ledgerline/propops/internal/alerting"
	"github.com/ledgerline/propops/internal/datastore/entities"
	"github.com/ledgerline/propops/internal/datastore/repository"
	"github.com/ledgerline/propops/internal/errors"
	"github.com/ledgerline/propops/internal/logger"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// initAlertRoutes registers alert rule API endpoints.
func (c *Controller) initAlertRoutes() {
	if c.alertRuleRepo == nil {
		return
	}

	alerts := c.Group.Group("/alerts")
	alerts.GET("/rules", c.ListAlertRules)
	alerts.GET("/rules/export", c.ExportAlertRules)
	alerts.GET("/rules/:id", c.GetAlertRule)
	alerts.POST("/rules", c.CreateAlertRule)
	alerts.PUT("/rules/:id", c.UpdateAlertRule)
	alerts.PATCH("/rules/:id/toggle", c.ToggleAlertRule)
	alerts.DELETE("/rules/:id", c.DeleteAlertRule)
	alerts.POST("/rules/:id/test", c.TestAlertRule)
	alerts.POST("/rules/reset-defaults", c.ResetDefaultAlertRules)
	alerts.POST("/rules/import", c.ImportAlertRules)
	alerts.GET("/history", c.ListAlertHistory)
	alerts.DELETE("/history", c.ClearAlertHistory)
	alerts.POST("/metrics", c.PushAlertMetrics)
}

// AlertRuleInput is the admin form for an alert rule. Enabled defaults to
// true and CooldownSec to alerting.DefaultCooldownSec when omitted.
type AlertRuleInput struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Metric      string   `json:"metric"`
	Operator    string   `json:"operator"`
	Threshold   *float64 `json:"threshold"`
	Enabled     *bool    `json:"enabled"`
	CooldownSec *int     `json:"cooldown_sec"`
	Recipients  []string `json:"recipients"`
}

func (in *AlertRuleInput) rule() (*entities.AlertRule, error) {
	if in.Threshold == nil {
		return nil, errors.NewValidation("threshold", "is required")
	}
	rule := &entities.AlertRule{
		Name:        in.Name,
		Description: in.Description,
		Metric:      in.Metric,
		Operator:    in.Operator,
		Threshold:   *in.Threshold,
		Enabled:     true,
		CooldownSec: alerting.DefaultCooldownSec,
		Recipients:  in.Recipients,
	}
	if in.Enabled != nil {
		rule.Enabled = *in.Enabled
	}
	if in.CooldownSec != nil {
		rule.CooldownSec = *in.CooldownSec
	}
	if err := alerting.ValidateRule(rule); err != nil {
		return nil, err
	}
	return rule, nil
}

// ListAlertRules returns all alert rules, optionally filtered.
func (c *Controller) ListAlertRules(ctx echo.Context) error {
	filter := repository.AlertRuleFilter{
		Metric:  ctx.QueryParam("metric"),
		Enabled: parseBoolQuery(ctx, "enabled"),
		BuiltIn: parseBoolQuery(ctx, "built_in"),
	}

	rules, err := c.alertRuleRepo.ListRules(ctx.Request().Context(), filter)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list alert rules")
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"rules": rules,
		"count": len(rules),
	})
}

// GetAlertRule returns a single alert rule by ID.
func (c *Controller) GetAlertRule(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "id", "Invalid rule ID")
	}

	rule, err := c.alertRuleRepo.GetRule(ctx.Request().Context(), id)
	if err != nil {
		return c.HandleError(ctx, alertRuleNotFound(err, id), "Failed to get alert rule")
	}

	return ctx.JSON(http.StatusOK, rule)
}

// CreateAlertRule creates a new alert rule.
func (c *Controller) CreateAlertRule(ctx echo.Context) error {
	var in AlertRuleInput
	if err := ctx.Bind(&in); err != nil {
		return badRequest(ctx, "", "Invalid request body")
	}
	rule, err := in.rule()
	if err != nil {
		return c.HandleError(ctx, err, "Failed to create alert rule")
	}

	reqCtx := ctx.Request().Context()
	if err := c.checkRuleName(ctx, rule.Name); err != nil {
		return c.HandleError(ctx, err, "Failed to create alert rule")
	}
	if err := c.alertRuleRepo.CreateRule(reqCtx, rule); err != nil {
		return c.HandleError(ctx, duplicateRuleName(err, rule.Name), "Failed to create alert rule")
	}

	c.refreshAlertEngine(ctx)

	c.logger.Info("alert rule created",
		logger.String("name", rule.Name),
		logger.Uint64("id", uint64(rule.ID)))

	return ctx.JSON(http.StatusCreated, rule)
}

// UpdateAlertRule replaces an existing alert rule. The built-in flag and
// creation time are kept.
func (c *Controller) UpdateAlertRule(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "id", "Invalid rule ID")
	}

	reqCtx := ctx.Request().Context()
	existing, err := c.alertRuleRepo.GetRule(reqCtx, id)
	if err != nil {
		return c.HandleError(ctx, alertRuleNotFound(err, id), "Failed to get alert rule")
	}

	var in AlertRuleInput
	if err := ctx.Bind(&in); err != nil {
		return badRequest(ctx, "", "Invalid request body")
	}
	rule, err := in.rule()
	if err != nil {
		return c.HandleError(ctx, err, "Failed to update alert rule")
	}
	if rule.Name != existing.Name {
		if err := c.checkRuleName(ctx, rule.Name); err != nil {
			return c.HandleError(ctx, err, "Failed to update alert rule")
		}
	}

	rule.ID = existing.ID
	rule.BuiltIn = existing.BuiltIn
	rule.CreatedAt = existing.CreatedAt

	if err := c.alertRuleRepo.UpdateRule(reqCtx, rule); err != nil {
		return c.HandleError(ctx, duplicateRuleName(alertRuleNotFound(err, id), rule.Name), "Failed to update alert rule")
	}

	c.refreshAlertEngine(ctx)

	return ctx.JSON(http.StatusOK, rule)
}

// ToggleAlertRule enables or disables an alert rule.
func (c *Controller) ToggleAlertRule(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "id", "Invalid rule ID")
	}

	var body struct {
		Enabled *bool `json:"enabled"`
	}
	if err := ctx.Bind(&body); err != nil {
		return badRequest(ctx, "", "Invalid request body")
	}
	if body.Enabled == nil {
		return badRequest(ctx, "enabled", "is required")
	}

	if err := c.alertRuleRepo.ToggleRule(ctx.Request().Context(), id, *body.Enabled); err != nil {
		return c.HandleError(ctx, alertRuleNotFound(err, id), "Failed to toggle alert rule")
	}

	c.refreshAlertEngine(ctx)

	return ctx.JSON(http.StatusOK, map[string]any{"id": id, "enabled": *body.Enabled})
}

// DeleteAlertRule deletes an alert rule and its history.
func (c *Controller) DeleteAlertRule(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "id", "Invalid rule ID")
	}

	if err := c.alertRuleRepo.DeleteRule(ctx.Request().Context(), id); err != nil {
		return c.HandleError(ctx, alertRuleNotFound(err, id), "Failed to delete alert rule")
	}

	c.refreshAlertEngine(ctx)

	return ctx.NoContent(http.StatusNoContent)
}

// TestAlertRule fires a rule's notification once, bypassing evaluation and
// cooldown.
func (c *Controller) TestAlertRule(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "id", "Invalid rule ID")
	}

	rule, err := c.alertRuleRepo.GetRule(ctx.Request().Context(), id)
	if err != nil {
		return c.HandleError(ctx, alertRuleNotFound(err, id), "Failed to get alert rule")
	}

	if c.alertEngine == nil {
		return ctx.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "Alert engine is not running"})
	}
	c.alertEngine.TestFireRule(ctx.Request().Context(), rule)

	return ctx.JSON(http.StatusOK, map[string]string{"status": "test fired"})
}

// ResetDefaultAlertRules deletes all built-in rules and re-seeds them.
// Custom rules are untouched.
func (c *Controller) ResetDefaultAlertRules(ctx echo.Context) error {
	created, err := alerting.ResetDefaults(ctx.Request().Context(), c.alertRuleRepo, c.settings, c.logger)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to reset default rules")
	}

	c.refreshAlertEngine(ctx)

	return ctx.JSON(http.StatusOK, map[string]any{"status": "defaults reset", "created": created})
}

// ListAlertHistory returns paginated alert firing history.
func (c *Controller) ListAlertHistory(ctx echo.Context) error {
	filter := repository.AlertHistoryFilter{Limit: defaultHistoryLimit}

	if ruleIDParam := ctx.QueryParam("rule_id"); ruleIDParam != "" {
		v, err := strconv.ParseUint(ruleIDParam, 10, 64)
		if err != nil {
			return badRequest(ctx, "rule_id", "Invalid rule_id")
		}
		filter.RuleID = uint(v)
	}
	if limitParam := ctx.QueryParam("limit"); limitParam != "" {
		if v, err := strconv.Atoi(limitParam); err == nil && v > 0 {
			filter.Limit = min(v, maxHistoryLimit)
		}
	}
	if offsetParam := ctx.QueryParam("offset"); offsetParam != "" {
		if v, err := strconv.Atoi(offsetParam); err == nil && v >= 0 {
			filter.Offset = v
		}
	}

	items, total, err := c.alertRuleRepo.ListHistory(ctx.Request().Context(), filter)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list alert history")
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"history": items,
		"total":   total,
		"limit":   filter.Limit,
		"offset":  filter.Offset,
	})
}

// ClearAlertHistory deletes all alert history records.
func (c *Controller) ClearAlertHistory(ctx echo.Context) error {
	deleted, err := c.alertRuleRepo.DeleteHistoryBefore(ctx.Request().Context(), time.Now().Add(time.Second))
	if err != nil {
		return c.HandleError(ctx, err, "Failed to clear alert history")
	}

	return ctx.JSON(http.StatusOK, map[string]any{"deleted": deleted})
}

// ExportAlertRules exports all rules as JSON.
func (c *Controller) ExportAlertRules(ctx echo.Context) error {
	rules, err := c.alertRuleRepo.ListRules(ctx.Request().Context(), repository.AlertRuleFilter{})
	if err != nil {
		return c.HandleError(ctx, err, "Failed to export alert rules")
	}

	ctx.Response().Header().Set(echo.HeaderContentDisposition, "attachment; filename=alert-rules.json")
	return ctx.JSON(http.StatusOK, map[string]any{
		"rules":   rules,
		"version": 1,
	})
}

// ImportAlertRules creates rules from an export. Invalid rules and names that
// already exist are reported per item and skipped.
func (c *Controller) ImportAlertRules(ctx echo.Context) error {
	var payload struct {
		Rules   []AlertRuleInput `json:"rules"`
		Version int              `json:"version"`
	}
	if err := json.NewDecoder(ctx.Request().Body).Decode(&payload); err != nil {
		return badRequest(ctx, "", "Invalid JSON")
	}

	reqCtx := ctx.Request().Context()
	var (
		imported int
		itemErrs []errors.ItemError
	)
	for i := range payload.Rules {
		in := &payload.Rules[i]
		rule, err := in.rule()
		if err == nil {
			err = duplicateRuleName(c.alertRuleRepo.CreateRule(reqCtx, rule), in.Name)
		}
		if err != nil {
			c.logger.Warn("failed to import rule",
				logger.String("name", in.Name), logger.Error(err))
			itemErrs = append(itemErrs, errors.ItemError{Item: strings.TrimSpace(in.Name), Message: err.Error()})
			continue
		}
		imported++
	}

	c.refreshAlertEngine(ctx)

	return ctx.JSON(http.StatusOK, map[string]any{
		"imported": imported,
		"total":    len(payload.Rules),
		"errors":   itemErrs,
	})
}

// FiredAlert describes one rule fired by a pushed snapshot.
type FiredAlert struct {
	RuleID   uint    `json:"rule_id"`
	RuleName string  `json:"rule_name"`
	Metric   string  `json:"metric"`
	Value    float64 `json:"value"`
}

// PushAlertMetrics records externally measured metric values, such as sync
// failures, for the next evaluation. With evaluate=true the snapshot is
// evaluated immediately.
func (c *Controller) PushAlertMetrics(ctx echo.Context) error {
	if c.pushed == nil {
		return ctx.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "Alert engine is not running"})
	}

	var raw map[string]any
	if err := json.NewDecoder(ctx.Request().Body).Decode(&raw); err != nil {
		return badRequest(ctx, "", "Invalid JSON")
	}
	snapshot, err := alerting.SnapshotFromMap(raw)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to accept metrics")
	}
	c.pushed.Push(snapshot)

	resp := map[string]any{"accepted": len(snapshot)}
	if ctx.QueryParam("evaluate") == QueryValueTrue && c.alertEngine != nil {
		fired := []FiredAlert{}
		for _, f := range c.alertEngine.EvaluateSnapshot(ctx.Request().Context(), snapshot) {
			fired = append(fired, FiredAlert{RuleID: f.Rule.ID, RuleName: f.Rule.Name, Metric: f.Rule.Metric, Value: f.Value})
		}
		resp["fired"] = fired
	}
	return ctx.JSON(http.StatusAccepted, resp)
}

// checkRuleName rejects a name another rule already uses.
func (c *Controller) checkRuleName(ctx echo.Context, name string) error {
	count, err := c.alertRuleRepo.CountRulesByName(ctx.Request().Context(), name)
	if err != nil {
		return err
	}
	if count > 0 {
		return &errors.DuplicateKeyError{Entity: "alert rule", Key: name}
	}
	return nil
}

// refreshAlertEngine refreshes the engine's rule cache if the engine is set.
func (c *Controller) refreshAlertEngine(ctx echo.Context) {
	if c.alertEngine != nil {
		if err := c.alertEngine.RefreshRules(ctx.Request().Context()); err != nil {
			c.logger.Error("failed to refresh alert engine rules", logger.Error(err))
		}
	}
}

func alertRuleNotFound(err error, id uint) error {
	if errors.Is(err, repository.ErrAlertRuleNotFound) {
		return &errors.NotFoundError{Entity: "alert rule", ID: strconv.FormatUint(uint64(id), 10)}
	}
	return err
}

func duplicateRuleName(err error, name string) error {
	if errors.Is(err, repository.ErrUniqueViolation) {
		return &errors.DuplicateKeyError{Entity: "alert rule", Key: strings.TrimSpace(name)}
	}
	return err
}
