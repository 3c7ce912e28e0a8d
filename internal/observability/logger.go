// Package observability provides Prometheus metrics for the av host.
package observability

import "github.com/avhost/av/internal/logger"

// Package-level cached logger instance.
var log = logger.Global().Module("metrics")
