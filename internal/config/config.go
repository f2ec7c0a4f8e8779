package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	GeminiAPIKey string // passed through to the genai client
	HTTPPort     string
	JWTSecret    string // session routing token secret, not a security boundary
	DataDir      string // file-backed record store location
	DatabaseDSN  string // optional SQLite DSN; when set it replaces the file store
}

// Load reads configuration from the environment, with .env support.
// In production the variables are usually set directly, so a missing .env
// file is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	return &Config{
		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		HTTPPort:     getEnv("HTTP_PORT", "8080"),
		JWTSecret:    getEnv("JWT_SECRET", "dev_secret"),
		DataDir:      getEnv("DATA_DIR", "data"),
		DatabaseDSN:  getEnv("DATABASE_DSN", ""),
	}, nil
}

// getEnv returns the env var value or the default when unset.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
