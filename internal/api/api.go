// Package api serves the HTTP control API of the audio host.
package api

import (
	"context"
	"crypto/rand"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/avhost/av/internal/audiocore"
	"github.com/avhost/av/internal/conf"
	"github.com/avhost/av/internal/datastore"
	"github.com/avhost/av/internal/errors"
	"github.com/avhost/av/internal/logger"
	"github.com/avhost/av/internal/observability"
)

// APIPrefix is the base path of all versioned routes
const APIPrefix = "/api/v1"

// SessionStore is the read side of the session journal
type SessionStore interface {
	ListSessions(ctx context.Context, limit int) ([]datastore.Session, error)
	GetSession(ctx context.Context, id string) (*datastore.Session, error)
}

// Controller manages the API routes and handlers
type Controller struct {
	Echo     *echo.Echo
	Group    *echo.Group
	Engine   *audiocore.Engine
	Settings *conf.Settings

	metrics   *observability.Metrics
	journal   SessionStore
	startTime time.Time
	log       logger.Logger
}

// Option is a functional option for configuring the Controller.
type Option func(*Controller)

// WithMetrics exposes /metrics and records request metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// WithJournal enables the session routes.
func WithJournal(store SessionStore) Option {
	return func(c *Controller) {
		c.journal = store
	}
}

// GetLogger returns the api module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("api")
}

// New creates a controller and registers its routes on e.
func New(e *echo.Echo, engine *audiocore.Engine, settings *conf.Settings, opts ...Option) *Controller {
	c := &Controller{
		Echo:      e,
		Engine:    engine,
		Settings:  settings,
		startTime: time.Now(),
		log:       GetLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.configureMiddleware()
	c.initRoutes()
	return c
}

func (c *Controller) configureMiddleware() {
	c.Echo.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(ctx echo.Context, err error, stack []byte) error {
			c.log.Error("recovered from handler panic",
				logger.String("path", ctx.Path()),
				logger.Error(err),
				logger.String("stack", string(stack)))
			return err
		},
	}))
	c.Echo.Use(middleware.BodyLimit("64K"))
	c.Echo.Use(c.requestMetrics)
	c.Echo.Use(c.requestLogger)
}

func (c *Controller) initRoutes() {
	c.Echo.GET("/health", c.HealthCheck)
	if c.metrics != nil {
		c.Echo.GET("/metrics", echo.WrapHandler(c.metrics.Handler()))
	}

	c.Group = c.Echo.Group(APIPrefix)

	c.Group.GET("/devices", c.GetDevices)

	c.Group.GET("/stream", c.GetStream)
	c.Group.POST("/stream/configure", c.ConfigureStream)
	c.Group.POST("/stream/start", c.StartStream)
	c.Group.POST("/stream/stop", c.StopStream)
	c.Group.POST("/stream/close", c.CloseStream)

	c.Group.POST("/commands", c.PostCommand)
	c.Group.POST("/voices", c.PostVoice)
	c.Group.DELETE("/voices/:id", c.DeleteVoice)

	c.Group.GET("/system", c.GetSystemInfo)

	if c.journal != nil {
		c.Group.GET("/sessions", c.ListSessions)
		c.Group.GET("/sessions/:id", c.GetSession)
	}
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// NewErrorResponse creates a new API error response
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}
	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: generateCorrelationID(),
	}
}

// generateCorrelationID returns an 8 character id that ties a response to
// its log line
func generateCorrelationID() string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 8

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "ERR-RAND"
	}
	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}
	return string(b)
}

// HandleError logs err and writes an ErrorResponse with code
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	resp := NewErrorResponse(err, message, code)

	fields := []logger.Field{
		logger.String("correlation_id", resp.CorrelationID),
		logger.String("message", message),
		logger.Int("code", code),
		logger.String("path", ctx.Request().URL.Path),
		logger.String("method", ctx.Request().Method),
		logger.String("ip", ctx.RealIP()),
	}
	if err != nil {
		fields = append(fields, logger.Error(err))
	}
	if code >= http.StatusInternalServerError {
		c.log.Error("API error", fields...)
	} else {
		c.log.Warn("API request rejected", fields...)
	}

	return ctx.JSON(code, resp)
}

// statusFor maps engine and validation errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, audiocore.ErrChannelFull), errors.Is(err, audiocore.ErrVoiceLimit):
		return http.StatusServiceUnavailable
	case errors.Is(err, audiocore.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, audiocore.ErrInvalidDevice), errors.Is(err, audiocore.ErrInvalidConfig):
		return http.StatusBadRequest
	case errors.Is(err, audiocore.ErrNoDevice), errors.Is(err, audiocore.ErrDeviceOpen):
		return http.StatusServiceUnavailable
	case errors.Is(err, audiocore.ErrNoDefaultDevice), errors.IsNotFound(err):
		return http.StatusNotFound
	case errors.IsCategory(err, errors.CategoryValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
