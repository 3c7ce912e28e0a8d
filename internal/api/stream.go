package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/avhost/av/internal/audiocore"
	"github.com/avhost/av/internal/logger"
)

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status    string    `json:"status"`
	Stream    string    `json:"stream"`
	Backend   string    `json:"backend"`
	Uptime    string    `json:"uptime"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthCheck handles GET /health
func (c *Controller) HealthCheck(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Stream:    c.Engine.State().String(),
		Backend:   c.Engine.Backend().Name(),
		Uptime:    time.Since(c.startTime).Round(time.Second).String(),
		Timestamp: time.Now(),
	})
}

// GetDevices handles GET /api/v1/devices. ?refresh=true drops the cached
// enumeration first.
func (c *Controller) GetDevices(ctx echo.Context) error {
	if refresh, _ := strconv.ParseBool(ctx.QueryParam("refresh")); refresh {
		c.Engine.Catalog().Refresh()
	}
	devices, err := c.Engine.Catalog().Devices()
	if err != nil {
		return c.HandleError(ctx, err, "Failed to enumerate audio devices", statusFor(err))
	}
	return ctx.JSON(http.StatusOK, devices)
}

// StreamResponse combines stream description and counters
type StreamResponse struct {
	audiocore.StreamInfo
	Stats audiocore.Stats `json:"stats"`
}

// GetStream handles GET /api/v1/stream
func (c *Controller) GetStream(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, c.streamResponse())
}

func (c *Controller) streamResponse() StreamResponse {
	return StreamResponse{StreamInfo: c.Engine.Info(), Stats: c.Engine.Stats()}
}

// ConfigureStream handles POST /api/v1/stream/configure. Fields left out of
// the body keep the engine's current configuration.
func (c *Controller) ConfigureStream(ctx echo.Context) error {
	cfg := c.Engine.Config()
	if err := ctx.Bind(&cfg); err != nil {
		return c.HandleError(ctx, err, "Invalid stream configuration body", http.StatusBadRequest)
	}
	if err := c.Engine.Configure(cfg); err != nil {
		return c.HandleError(ctx, err, "Failed to configure stream", statusFor(err))
	}
	c.log.Info("stream configured via API",
		logger.Float64("sample_rate", cfg.SampleRate),
		logger.Int("block_size", cfg.BlockSize),
		logger.Int("output_device", cfg.OutputDevice))
	return ctx.JSON(http.StatusOK, c.streamResponse())
}

// StartStream handles POST /api/v1/stream/start. A closed stream is opened
// with the current configuration first.
func (c *Controller) StartStream(ctx echo.Context) error {
	switch c.Engine.State() {
	case audiocore.StateRunning:
		return ctx.JSON(http.StatusOK, c.streamResponse())
	case audiocore.StateOpened:
	default:
		if err := c.Engine.Open(); err != nil {
			return c.HandleError(ctx, err, "Failed to open stream", statusFor(err))
		}
	}
	if err := c.Engine.Start(); err != nil {
		return c.HandleError(ctx, err, "Failed to start stream", statusFor(err))
	}
	c.log.Info("stream started via API", logger.String("ip", ctx.RealIP()))
	return ctx.JSON(http.StatusOK, c.streamResponse())
}

// StopStream handles POST /api/v1/stream/stop. The stream stays open.
func (c *Controller) StopStream(ctx echo.Context) error {
	if err := c.Engine.Stop(); err != nil {
		return c.HandleError(ctx, err, "Failed to stop stream", statusFor(err))
	}
	c.log.Info("stream stopped via API", logger.String("ip", ctx.RealIP()))
	return ctx.JSON(http.StatusOK, c.streamResponse())
}

// CloseStream handles POST /api/v1/stream/close
func (c *Controller) CloseStream(ctx echo.Context) error {
	if err := c.Engine.Close(); err != nil {
		return c.HandleError(ctx, err, "Failed to close stream", statusFor(err))
	}
	c.log.Info("stream closed via API", logger.String("ip", ctx.RealIP()))
	return ctx.JSON(http.StatusOK, c.streamResponse())
}
