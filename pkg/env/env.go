// Package env reads process environment variables with defaults.
package env

import "os"

// Get looks up key in the process environment. An unset or empty variable
// yields fallback.
func Get(key, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
