package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/ledgerline/propops/internal/formatting"
)

func (c *Controller) initFormattingRuleRoutes() {
	g := c.Group.Group("/formatting-rules")
	g.GET("", c.ListFormattingRules)
	g.POST("", c.CreateFormattingRule)
	g.POST("/evaluate", c.EvaluateFormattingRules)
	g.GET("/:id", c.GetFormattingRule)
	g.PUT("/:id", c.UpdateFormattingRule)
	g.DELETE("/:id", c.DeleteFormattingRule)
}

// EvaluateRequest asks which rule, if any, annotates a value.
type EvaluateRequest struct {
	UtilityTypeID uint            `json:"utility_type_id"`
	Current       decimal.Decimal `json:"current"`
	Average       decimal.Decimal `json:"average"`
}

// ListFormattingRules returns rules in evaluation order, optionally for one type.
func (c *Controller) ListFormattingRules(ctx echo.Context) error {
	var typeID uint
	if raw := ctx.QueryParam("utility_type_id"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return badRequest(ctx, "utility_type_id", "Invalid utility_type_id")
		}
		typeID = uint(v)
	}
	rules, err := c.rules.List(ctx.Request().Context(), typeID)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list formatting rules")
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"rules": rules,
		"count": len(rules),
	})
}

// GetFormattingRule returns one rule.
func (c *Controller) GetFormattingRule(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "id", "Invalid rule ID")
	}
	rule, err := c.rules.Get(ctx.Request().Context(), id)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to get formatting rule")
	}
	return ctx.JSON(http.StatusOK, rule)
}

// CreateFormattingRule validates and stores a rule.
func (c *Controller) CreateFormattingRule(ctx echo.Context) error {
	var in formatting.RuleInput
	if err := ctx.Bind(&in); err != nil {
		return badRequest(ctx, "", "Invalid request body")
	}
	rule, err := c.rules.Create(ctx.Request().Context(), in)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to create formatting rule")
	}
	return ctx.JSON(http.StatusCreated, rule)
}

// UpdateFormattingRule replaces a rule.
func (c *Controller) UpdateFormattingRule(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "id", "Invalid rule ID")
	}
	var in formatting.RuleInput
	if err := ctx.Bind(&in); err != nil {
		return badRequest(ctx, "", "Invalid request body")
	}
	rule, err := c.rules.Update(ctx.Request().Context(), id, in)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to update formatting rule")
	}
	return ctx.JSON(http.StatusOK, rule)
}

// DeleteFormattingRule removes a rule.
func (c *Controller) DeleteFormattingRule(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "id", "Invalid rule ID")
	}
	if err := c.rules.Delete(ctx.Request().Context(), id); err != nil {
		return c.HandleError(ctx, err, "Failed to delete formatting rule")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// EvaluateFormattingRules reports the annotation the stored rules give a value.
func (c *Controller) EvaluateFormattingRules(ctx echo.Context) error {
	var req EvaluateRequest
	if err := ctx.Bind(&req); err != nil {
		return badRequest(ctx, "", "Invalid request body")
	}
	if req.UtilityTypeID == 0 {
		return badRequest(ctx, "utility_type_id", "is required")
	}
	annotation, ok, err := c.rules.Annotate(ctx.Request().Context(), req.UtilityTypeID, req.Current, req.Average)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to evaluate formatting rules")
	}
	resp := map[string]any{"matched": ok}
	if ok {
		resp["annotation"] = annotation
	}
	if delta, defined := formatting.DeltaPercent(req.Current, req.Average); defined {
		resp["delta_percent"] = delta
	}
	return ctx.JSON(http.StatusOK, resp)
}
