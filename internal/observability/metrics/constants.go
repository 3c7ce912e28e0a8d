// Package metrics provides constants used across metric definitions.
package metrics

import "time"

// Operation names recorded by the session journal.
const (
	// OpSessionOpen is the insert of a new session row.
	OpSessionOpen = "session_open"
	// OpSessionClose is the update written when a stream closes.
	OpSessionClose = "session_close"
	// OpSessionList is the session listing query.
	OpSessionList = "session_list"
	// OpMigrate is the schema migration at startup.
	OpMigrate = "migrate"
)

// Label values.
const (
	// StatusSuccess marks a successful operation.
	StatusSuccess = "success"
	// StatusError marks a failed operation.
	StatusError = "error"
)

// Histogram bucket constants.
const (
	// BucketStart1ms is the starting bucket value of 1 millisecond.
	BucketStart1ms = 0.001
	// BucketStart100us is the starting bucket value of 100 microseconds.
	BucketStart100us = 0.0001
	// BucketStart64B is the starting bucket value of 64 bytes.
	BucketStart64B = 64
	// BucketFactor2 is the exponential growth factor of 2.
	BucketFactor2 = 2
	// BucketCount10 defines 10 exponential buckets.
	BucketCount10 = 10
	// BucketCount12 defines 12 exponential buckets.
	BucketCount12 = 12
)

// ShutdownTimeout bounds graceful shutdown of metric consumers.
const ShutdownTimeout = 5 * time.Second
