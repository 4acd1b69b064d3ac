package api

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ledgerline/propops/internal/formatting"
	"github.com/ledgerline/propops/internal/logger"
	"github.com/ledgerline/propops/internal/report"
)

const mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (c *Controller) initJobRoutes() {
	c.Group.GET("/jobs/:id", c.GetJob)
}

func (c *Controller) initReportRoutes() {
	c.Group.GET("/reports/utilities.xlsx", c.UtilityReport)
}

// GetJob returns the current state of a background job.
func (c *Controller) GetJob(ctx echo.Context) error {
	job, err := c.jobs.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return c.HandleError(ctx, err, "Failed to get job")
	}
	return ctx.JSON(http.StatusOK, job)
}

func (c *Controller) enqueue(ctx echo.Context, kind string) error {
	job, err := c.jobs.Enqueue(ctx.Request().Context(), kind)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to queue job")
	}
	return jobAccepted(ctx, job.ID)
}

// UtilityReport renders the utility cost workbook. from and to are YYYY-MM;
// the default is the twelve months ending with the current one.
func (c *Controller) UtilityReport(ctx echo.Context) error {
	to := formatting.MonthOf(time.Now().UTC())
	if raw := ctx.QueryParam("to"); raw != "" {
		m, err := formatting.ParseMonth(raw)
		if err != nil {
			return badRequest(ctx, "to", "must be YYYY-MM")
		}
		to = m
	}
	from := to.Add(-11)
	if raw := ctx.QueryParam("from"); raw != "" {
		m, err := formatting.ParseMonth(raw)
		if err != nil {
			return badRequest(ctx, "from", "must be YYYY-MM")
		}
		from = m
	}
	rng := report.Range{From: from, To: to}
	if err := rng.Validate(); err != nil {
		return c.HandleError(ctx, err, "Invalid report range")
	}

	var buf bytes.Buffer
	if err := c.report.WriteXLSX(ctx.Request().Context(), &buf, rng); err != nil {
		return c.HandleError(ctx, err, "Failed to build utility report")
	}

	c.logger.Info("utility report generated",
		logger.String("from", from.String()),
		logger.String("to", to.String()),
		logger.Int("bytes", buf.Len()))

	ctx.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=utility-costs-%s-%s.xlsx", from, to))
	return ctx.Blob(http.StatusOK, mimeXLSX, buf.Bytes())
}
