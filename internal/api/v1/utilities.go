package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ledgerline/propops/internal/datastore/entities"
	"github.com/ledgerline/propops/internal/datastore/repository"
	"github.com/ledgerline/propops/internal/jobs"
	"github.com/ledgerline/propops/internal/logger"
	"github.com/ledgerline/propops/internal/utilities"
)

// maxSuggestionWindow caps the suggestions look-back in days.
const maxSuggestionWindow = 730

func (c *Controller) initUtilityTypeRoutes() {
	g := c.Group.Group("/utility-types")
	g.GET("", c.ListUtilityTypes)
	g.POST("", c.CreateUtilityType)
	g.POST("/reset", c.ResetUtilityTypes)
	g.GET("/:id", c.GetUtilityType)
	g.PATCH("/:id", c.RenameUtilityType)
	g.DELETE("/:id", c.DeleteUtilityType)
}

func (c *Controller) initUtilityAccountRoutes() {
	g := c.Group.Group("/utility-accounts")
	g.GET("", c.ListUtilityAccounts)
	g.POST("", c.MapUtilityAccount)
	g.GET("/suggestions", c.SuggestUtilityAccounts)
	g.POST("/reprocess", c.ReprocessUtilityAccounts)
	g.GET("/:id", c.GetUtilityAccount)
	g.PUT("/:id", c.UpdateUtilityAccount)
	g.DELETE("/:id", c.DeleteUtilityAccount)

	c.Group.POST("/expenses", c.IngestExpenses)
}

// UtilityTypeView is a type together with what references it.
type UtilityTypeView struct {
	entities.UtilityType
	Usage repository.UtilityTypeUsage `json:"usage"`
}

// ListUtilityTypes returns every type ordered for display.
func (c *Controller) ListUtilityTypes(ctx echo.Context) error {
	types, err := c.types.List(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list utility types")
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"types": types,
		"count": len(types),
	})
}

// GetUtilityType returns a type with its usage counts.
func (c *Controller) GetUtilityType(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "id", "Invalid utility type ID")
	}
	reqCtx := ctx.Request().Context()
	t, err := c.types.Get(reqCtx, id)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to get utility type")
	}
	usage, err := c.types.Usage(reqCtx, id)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to get utility type usage")
	}
	return ctx.JSON(http.StatusOK, UtilityTypeView{UtilityType: *t, Usage: usage})
}

// CreateUtilityType adds a custom type.
func (c *Controller) CreateUtilityType(ctx echo.Context) error {
	var in utilities.TypeInput
	if err := ctx.Bind(&in); err != nil {
		return badRequest(ctx, "", "Invalid request body")
	}
	t, err := c.types.Create(ctx.Request().Context(), in)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to create utility type")
	}
	return ctx.JSON(http.StatusCreated, t)
}

// RenameUtilityType changes a type's label.
func (c *Controller) RenameUtilityType(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "id", "Invalid utility type ID")
	}
	var body struct {
		Label string `json:"label"`
	}
	if err := ctx.Bind(&body); err != nil {
		return badRequest(ctx, "", "Invalid request body")
	}
	t, err := c.types.Rename(ctx.Request().Context(), id, body.Label)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to rename utility type")
	}
	return ctx.JSON(http.StatusOK, t)
}

// DeleteUtilityType removes an unreferenced custom type.
func (c *Controller) DeleteUtilityType(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "id", "Invalid utility type ID")
	}
	if err := c.types.Delete(ctx.Request().Context(), id); err != nil {
		return c.HandleError(ctx, err, "Failed to delete utility type")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// ResetUtilityTypes queues removal of unused custom types.
func (c *Controller) ResetUtilityTypes(ctx echo.Context) error {
	return c.enqueue(ctx, jobs.KindResetTypes)
}

// ListUtilityAccounts returns mappings, optionally filtered by type or state.
func (c *Controller) ListUtilityAccounts(ctx echo.Context) error {
	filter := repository.UtilityAccountFilter{Active: parseBoolQuery(ctx, "active")}
	if raw := ctx.QueryParam("utility_type_id"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return badRequest(ctx, "utility_type_id", "Invalid utility_type_id")
		}
		filter.UtilityTypeID = uint(v)
	}
	accounts, err := c.accounts.List(ctx.Request().Context(), filter)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list utility accounts")
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"accounts": accounts,
		"count":    len(accounts),
	})
}

// GetUtilityAccount returns one mapping.
func (c *Controller) GetUtilityAccount(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "id", "Invalid utility account ID")
	}
	a, err := c.accounts.Get(ctx.Request().Context(), id)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to get utility account")
	}
	return ctx.JSON(http.StatusOK, a)
}

// MapUtilityAccount maps a GL account to a utility type.
func (c *Controller) MapUtilityAccount(ctx echo.Context) error {
	var in utilities.AccountInput
	if err := ctx.Bind(&in); err != nil {
		return badRequest(ctx, "", "Invalid request body")
	}
	a, err := c.accounts.Map(ctx.Request().Context(), in)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to map utility account")
	}
	return ctx.JSON(http.StatusCreated, a)
}

// UpdateUtilityAccount edits a mapping's name, type or active flag.
func (c *Controller) UpdateUtilityAccount(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "id", "Invalid utility account ID")
	}
	var in utilities.AccountInput
	if err := ctx.Bind(&in); err != nil {
		return badRequest(ctx, "", "Invalid request body")
	}
	a, err := c.accounts.Update(ctx.Request().Context(), id, in)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to update utility account")
	}
	return ctx.JSON(http.StatusOK, a)
}

// DeleteUtilityAccount removes a mapping. Classified expenses keep their tag
// until the next reprocess.
func (c *Controller) DeleteUtilityAccount(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "id", "Invalid utility account ID")
	}
	if err := c.accounts.Delete(ctx.Request().Context(), id); err != nil {
		return c.HandleError(ctx, err, "Failed to delete utility account")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// SuggestUtilityAccounts lists frequent unmapped GL accounts.
func (c *Controller) SuggestUtilityAccounts(ctx echo.Context) error {
	window := c.suggestionWindow
	if raw := ctx.QueryParam("window_days"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			return badRequest(ctx, "window_days", "must be a positive integer")
		}
		window = min(v, maxSuggestionWindow)
	}
	suggestions, err := c.accounts.SuggestUnmapped(ctx.Request().Context(), window)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to suggest utility accounts")
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"suggestions": suggestions,
		"count":       len(suggestions),
		"window_days": window,
	})
}

// ReprocessUtilityAccounts queues reclassification of every expense.
func (c *Controller) ReprocessUtilityAccounts(ctx echo.Context) error {
	return c.enqueue(ctx, jobs.KindReprocess)
}

// ExpenseBatch is the ingestion body.
type ExpenseBatch struct {
	Expenses []entities.Expense `json:"expenses"`
}

// IngestExpenses classifies and upserts a batch of synchronized expenses.
// Invalid records are reported per item and do not fail the batch.
func (c *Controller) IngestExpenses(ctx echo.Context) error {
	var body ExpenseBatch
	if err := ctx.Bind(&body); err != nil {
		return badRequest(ctx, "", "Invalid request body")
	}
	if len(body.Expenses) == 0 {
		return badRequest(ctx, "expenses", "at least one expense is required")
	}
	saved, itemErrs, err := c.accounts.Ingest(ctx.Request().Context(), body.Expenses)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to ingest expenses")
	}
	if len(itemErrs) > 0 {
		c.logger.Warn("expense batch had rejected records",
			logger.Int("saved", saved),
			logger.Int("rejected", len(itemErrs)))
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"saved":  saved,
		"errors": itemErrs,
	})
}
