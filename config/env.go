package config

import "os"

// EnvOr returns the value of an environment variable or the given fallback.
func EnvOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
