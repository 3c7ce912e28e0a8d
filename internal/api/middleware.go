package api

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/avhost/av/internal/logger"
)

// requestMetrics records method, route template, status and latency.
// The route template keeps label cardinality bounded.
func (c *Controller) requestMetrics(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if c.metrics == nil {
			return next(ctx)
		}
		start := time.Now()
		err := next(ctx)
		if err != nil {
			ctx.Error(err)
		}
		path := ctx.Path()
		if path == "" {
			path = "unmatched"
		}
		c.metrics.HTTP.RecordHTTPRequest(ctx.Request().Method, path, ctx.Response().Status, time.Since(start))
		return nil
	}
}

// requestLogger logs every request at debug level
func (c *Controller) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		start := time.Now()
		err := next(ctx)
		c.log.Debug("HTTP request",
			logger.String("method", ctx.Request().Method),
			logger.String("path", ctx.Request().URL.Path),
			logger.Int("status", ctx.Response().Status),
			logger.Duration("latency", time.Since(start)),
			logger.String("ip", ctx.RealIP()))
		return err
	}
}
