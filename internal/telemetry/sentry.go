// Package telemetry provides opt-in, privacy-filtered error reporting
package telemetry

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/avhost/av/internal/conf"
	"github.com/avhost/av/internal/errors"
	"github.com/avhost/av/internal/logger"
)

// initialized is set once the Sentry client is live
var initialized atomic.Bool

// GetLogger returns the telemetry module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("telemetry")
}

// InitSentry initializes Sentry if the user enabled it and installs the
// errors package reporter. systemID tags events from the same host.
func InitSentry(settings *conf.SentrySettings, version, systemID string) error {
	if !settings.Enabled {
		GetLogger().Debug("Sentry telemetry is disabled (opt-in required)")
		return nil
	}
	if settings.DSN == "" {
		return errors.Newf("sentry enabled without a DSN").
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}

	environment := settings.Environment
	if environment == "" {
		environment = "production"
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              settings.DSN,
		SampleRate:       1.0,
		Debug:            settings.Debug,
		AttachStacktrace: false,
		Environment:      environment,
		ServerName:       "",
		Release:          fmt.Sprintf("av@%s", version),
		BeforeSend:       beforeSend,
	})
	if err != nil {
		return errors.New(fmt.Errorf("sentry initialization failed: %w", err)).
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}

	configureScope(version, systemID)
	errors.SetTelemetryReporter(errors.NewSentryReporter(true))
	initialized.Store(true)

	platform := Platform()
	GetLogger().Info("Sentry telemetry initialized",
		logger.String("system_id", systemID),
		logger.String("version", version),
		logger.String("os", platform.OS),
		logger.String("arch", platform.Architecture))
	return nil
}

// beforeSend strips fields that could identify the host or its user
func beforeSend(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	event.ServerName = ""
	event.User = sentry.User{}
	if event.Request != nil {
		event.Request.Cookies = ""
		event.Request.Headers = nil
		event.Request.QueryString = ""
	}
	for _, key := range []string{"device", "os", "culture"} {
		delete(event.Contexts, key)
	}
	return event
}

func configureScope(version, systemID string) {
	platform := Platform()

	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("system_id", systemID)
		scope.SetTag("os", platform.OS)
		scope.SetTag("arch", platform.Architecture)
		if platform.CPUVendor != "" {
			scope.SetTag("cpu_vendor", platform.CPUVendor)
		}

		scope.SetContext("application", map[string]any{
			"name":      "av",
			"version":   version,
			"system_id": systemID,
		})
		scope.SetContext("platform", map[string]any{
			"os":             platform.OS,
			"architecture":   platform.Architecture,
			"num_cpu":        platform.NumCPU,
			"go_version":     platform.GoVersion,
			"cpu_brand":      platform.CPUBrand,
			"physical_cores": platform.PhysicalCores,
			"simd":           platform.SIMD,
		})
	})
}

// CaptureError reports err directly. Enhanced errors are reported on Build
// and are skipped here.
func CaptureError(err error, component string) {
	if err == nil || !initialized.Load() {
		return
	}
	var ee *errors.EnhancedError
	if errors.As(err, &ee) && ee.IsReported() {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", component)
		sentry.CaptureException(err)
	})
}

// Flush waits for buffered events. It returns at once when Sentry is off.
func Flush(timeout time.Duration) {
	if !initialized.Load() {
		return
	}
	sentry.Flush(timeout)
}

// Shutdown flushes events and uninstalls the error reporter
func Shutdown(timeout time.Duration) {
	Flush(timeout)
	errors.SetTelemetryReporter(nil)
	initialized.Store(false)
}
