package env

import (
	"os"
	"strings"
)

// Get reads an environment variable, falling back when it is unset or blank.
// Structured configuration goes through envconfig; this covers the handful of
// reads that happen before config is loaded.
func Get(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}
