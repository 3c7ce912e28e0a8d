package audiocore

import "github.com/avhost/av/internal/logger"

// GetLogger returns the audiocore logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("audio")
}
