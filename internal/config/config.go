// Package config reads the relay's environment configuration.
package config

import "os"

// Config holds everything the relay needs at startup.
type Config struct {
	ListenAddr    string
	DatabaseURL   string
	ExecuteAPIURL string
	AllowedOrigin string
}

// Load reads the environment with defaults. DatabaseURL may be empty, in
// which case workspace persistence is disabled.
func Load() Config {
	return Config{
		ListenAddr:    getEnv("LISTEN_ADDR", ":8080"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		ExecuteAPIURL: getEnv("EXECUTE_API_URL", "https://emkc.org/api/v2/piston/execute"),
		AllowedOrigin: getEnv("ALLOWED_ORIGIN", "http://localhost:5173"),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
