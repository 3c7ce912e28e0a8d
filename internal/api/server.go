package api

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/avhost/av/internal/audiocore"
	"github.com/avhost/av/internal/conf"
	"github.com/avhost/av/internal/errors"
	"github.com/avhost/av/internal/logger"
)

// shutdownTimeout bounds graceful shutdown of in-flight requests
const shutdownTimeout = 5 * time.Second

// Server runs the control API on its own echo instance
type Server struct {
	Echo       *echo.Echo
	Controller *Controller
	addr       string
}

// NewServer builds the echo instance and registers the routes
func NewServer(settings *conf.Settings, engine *audiocore.Engine, opts ...Option) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	return &Server{
		Echo:       e,
		Controller: New(e, engine, settings, opts...),
		addr:       settings.API.Address(),
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return errors.New(err).
			Component("api").
			Category(errors.CategoryNetwork).
			Context("address", s.addr).
			Context("operation", "listen").
			Build()
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.Echo.Listener = ln
	log := GetLogger()

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Echo.Start("")
	}()
	log.Info("HTTP API listening", logger.String("address", ln.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.New(err).
			Component("api").
			Category(errors.CategoryHTTP).
			Context("operation", "serve").
			Build()
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Echo.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP API shutdown incomplete", logger.Error(err))
		return err
	}
	<-errCh
	log.Info("HTTP API stopped")
	return nil
}
