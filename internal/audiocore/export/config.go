package export

import (
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/avhost/av/internal/errors"
)

// Supported PCM bit depths
var validBitDepths = []int{16, 24, 32}

// Config describes an export target
type Config struct {
	OutputPath       string // directory for generated files
	FileNameTemplate string // placeholders: {prefix} {date} {time} {timestamp}
	BitDepth         int
}

// DefaultConfig returns a default export configuration
func DefaultConfig() *Config {
	return &Config{
		OutputPath:       "renders/",
		FileNameTemplate: "{prefix}_{timestamp}",
		BitDepth:         16,
	}
}

// ValidateConfig validates an export configuration
func ValidateConfig(config *Config) error {
	if config == nil {
		return errors.Newf("export config is nil").
			Component("export").
			Category(errors.CategoryValidation).
			Build()
	}

	if config.OutputPath == "" {
		return errors.Newf("export output path is empty").
			Component("export").
			Category(errors.CategoryValidation).
			Build()
	}

	if config.FileNameTemplate == "" {
		return errors.Newf("export file name template is empty").
			Component("export").
			Category(errors.CategoryValidation).
			Build()
	}

	if !slices.Contains(validBitDepths, config.BitDepth) {
		return errors.Newf("unsupported bit depth: %d", config.BitDepth).
			Component("export").
			Category(errors.CategoryValidation).
			Context("bit_depth", config.BitDepth).
			Build()
	}

	return nil
}

// GenerateFileName expands the template into a .wav path under OutputPath
func (c *Config) GenerateFileName(prefix string, timestamp time.Time) string {
	fileName := c.FileNameTemplate

	fileName = strings.ReplaceAll(fileName, "{prefix}", prefix)
	fileName = strings.ReplaceAll(fileName, "{date}", timestamp.Format("2006-01-02"))
	fileName = strings.ReplaceAll(fileName, "{time}", timestamp.Format("15-04-05"))
	fileName = strings.ReplaceAll(fileName, "{timestamp}", timestamp.Format("20060102_150405"))

	return filepath.Join(c.OutputPath, filepath.Clean(fileName)+".wav")
}
