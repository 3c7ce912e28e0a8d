// Package secrets resolves credentials in settings from environment
// variables or mounted secret files. Values are never logged.
package secrets

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/avhost/av/internal/errors"
	"github.com/avhost/av/internal/logger"
)

// maxFileSize bounds secret file reads; secrets are tokens, not documents
const maxFileSize = 64 * 1024

// Expand replaces ${VAR} and ${VAR:-fallback} references in s. A variable
// that is unset or empty without a fallback is an error.
func Expand(s string) (string, error) {
	if s == "" {
		return "", nil
	}

	var missing []string
	out := os.Expand(s, func(key string) string {
		name, fallback, hasFallback := strings.Cut(key, ":-")
		if v := os.Getenv(name); v != "" {
			return v
		}
		if hasFallback {
			return fallback
		}
		missing = append(missing, name)
		return ""
	})

	if len(missing) > 0 {
		return "", errors.Newf("missing environment variable(s): %s", strings.Join(missing, ", ")).
			Component("secrets").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return out, nil
}

// ReadFile returns the contents of a secret file without trailing newlines.
// Files readable by group or others are accepted with a warning.
func ReadFile(path string) (string, error) {
	clean := filepath.Clean(path)
	fail := func(msg string, err error) error {
		b := errors.Newf("%s", msg)
		if err != nil {
			b = errors.New(err)
		}
		return b.Component("secrets").
			Category(errors.CategoryFileIO).
			Context("path", clean).
			Build()
	}

	info, err := os.Stat(clean)
	switch {
	case err != nil:
		return "", fail("", err)
	case !info.Mode().IsRegular():
		return "", fail("secret path is not a regular file", nil)
	case info.Size() > maxFileSize:
		return "", fail("secret file too large", nil)
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		logger.Global().Module("secrets").Warn("secret file is readable by group or others",
			logger.String("path", clean),
			logger.String("mode", perm.String()))
	}

	data, err := os.ReadFile(clean)
	if err != nil {
		return "", fail("", err)
	}
	secret := strings.TrimRight(string(data), "\r\n")
	if secret == "" {
		return "", fail("secret file is empty", nil)
	}
	return secret, nil
}

// Resolve returns the secret from file when set, otherwise value with
// environment references expanded
func Resolve(file, value string) (string, error) {
	if file != "" {
		return ReadFile(file)
	}
	return Expand(value)
}
