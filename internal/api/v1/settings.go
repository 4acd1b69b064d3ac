package api

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ledgerline/propops/internal/errors"
	"github.com/ledgerline/propops/internal/logger"
	"github.com/ledgerline/propops/internal/settings"
)

func (c *Controller) initSettingsRoutes() {
	g := c.Group.Group("/settings")
	g.GET("", c.ListSettingCategories)
	g.GET("/:category", c.GetSettingsCategory)
	g.GET("/:category/:key", c.GetSetting)
	g.PUT("/:category/:key", c.PutSetting)
}

// SettingUpdate is the PUT body. Value is required but may be null.
type SettingUpdate struct {
	Value       json.RawMessage `json:"value"`
	Encrypted   bool            `json:"encrypted"`
	Description string          `json:"description"`
}

// ListSettingCategories returns the known category names.
func (c *Controller) ListSettingCategories(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]any{"categories": settings.Categories()})
}

// GetSettingsCategory returns every stored key of a category. Secret values
// are never returned, only whether one is set.
func (c *Controller) GetSettingsCategory(ctx echo.Context) error {
	category := ctx.Param("category")
	entries, err := c.settings.Entries(ctx.Request().Context(), category)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to read settings")
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"category": category,
		"settings": entries,
		"count":    len(entries),
	})
}

// GetSetting returns a single setting entry.
func (c *Controller) GetSetting(ctx echo.Context) error {
	category, key := ctx.Param("category"), ctx.Param("key")
	entries, err := c.settings.Entries(ctx.Request().Context(), category)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to read setting")
	}
	for i := range entries {
		if entries[i].Key == key {
			return ctx.JSON(http.StatusOK, entries[i])
		}
	}
	return c.HandleError(ctx, &errors.NotFoundError{Entity: "setting", ID: category + "." + key}, "Failed to read setting")
}

// PutSetting creates or replaces a setting after schema validation.
func (c *Controller) PutSetting(ctx echo.Context) error {
	category, key := ctx.Param("category"), ctx.Param("key")

	var body SettingUpdate
	if err := json.NewDecoder(ctx.Request().Body).Decode(&body); err != nil {
		return badRequest(ctx, "", "Invalid request body")
	}
	if len(body.Value) == 0 {
		return badRequest(ctx, "value", "is required")
	}
	var v settings.Value
	if err := json.Unmarshal(body.Value, &v); err != nil {
		return badRequest(ctx, "value", err.Error())
	}

	reqCtx := ctx.Request().Context()
	if err := c.settings.Set(reqCtx, category, key, v, body.Encrypted, body.Description); err != nil {
		return c.HandleError(ctx, err, "Failed to save setting")
	}

	c.logger.Info("setting updated",
		logger.String("category", category),
		logger.String("key", key))

	return c.GetSetting(ctx)
}
