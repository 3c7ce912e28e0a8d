// Package conf provides configuration management for av.
package conf

import "github.com/avhost/av/internal/logger"

// GetLogger returns the config package logger scoped to the config module.
// It is fetched on every call so it follows a later SetGlobal.
func GetLogger() logger.Logger {
	return logger.Global().Module("config")
}
