package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/ledgerline/propops/internal/conf"
	"github.com/ledgerline/propops/internal/logger"
)

const (
	rateLimitWindow = 3 * time.Minute
	bodyLimit       = "10M"
)

func (c *Controller) installMiddleware(cfg conf.ServerConfig) {
	c.Echo.Use(middleware.Recover())
	c.Echo.Use(middleware.BodyLimit(bodyLimit))
	c.Echo.Use(c.observeRequests)
	c.Echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURIPath:  true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		Skipper: func(ctx echo.Context) bool {
			return ctx.Path() == "/healthz" || ctx.Path() == "/metrics"
		},
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			fields := []logger.Field{
				logger.String("method", v.Method),
				logger.String("path", v.URIPath),
				logger.Int("status", v.Status),
				logger.Duration("latency", v.Latency),
				logger.String("remote_ip", v.RemoteIP),
			}
			if v.Error != nil {
				fields = append(fields, logger.Error(v.Error))
			}
			c.logger.Debug("request", fields...)
			return nil
		},
	}))

	if len(cfg.CORSOrigins) > 0 {
		c.Echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: cfg.CORSOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
			AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization},
		}))
	}

	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit * 2)
		if burst < 1 {
			burst = 1
		}
		c.Echo.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
			Skipper: func(ctx echo.Context) bool {
				return ctx.Path() == "/healthz" || ctx.Path() == "/metrics"
			},
			Store: middleware.NewRateLimiterMemoryStoreWithConfig(
				middleware.RateLimiterMemoryStoreConfig{
					Rate:      rate.Limit(cfg.RateLimit),
					Burst:     burst,
					ExpiresIn: rateLimitWindow,
				},
			),
			IdentifierExtractor: func(ctx echo.Context) (string, error) {
				return ctx.RealIP(), nil
			},
			ErrorHandler: func(ctx echo.Context, err error) error {
				return ctx.JSON(http.StatusForbidden, ErrorResponse{Error: "unable to identify client"})
			},
			DenyHandler: func(ctx echo.Context, identifier string, err error) error {
				return ctx.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "too many requests, please slow down"})
			},
		}))
	}
}

// observeRequests feeds the HTTP request metrics, labelled by route pattern so
// ids do not explode the series count.
func (c *Controller) observeRequests(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		start := time.Now()
		err := next(ctx)
		if err != nil {
			ctx.Error(err)
		}
		route := ctx.Path()
		if route == "" {
			route = "unmatched"
		}
		c.metrics.ObserveHTTP(ctx.Request().Method, route, ctx.Response().Status, time.Since(start))
		return nil
	}
}
