package config

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

// Config holds environment configuration for the chat commands.
type Config struct {
	// BackendBaseURL is the REST base of the chat backend.
	BackendBaseURL string

	// WSEndpoint is the backend's SockJS endpoint.
	WSEndpoint string

	// AccessToken is the bearer credential issued by the auth subsystem.
	AccessToken string

	// UserID is the current user id; derived from the token when empty.
	UserID string

	// Port is the chatproxy listen port.
	Port string

	// CORSOrigin is the origin allowed by the chatproxy.
	CORSOrigin string
}

// Load reads a .env file when present, then the environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file, using environment only")
	}

	return &Config{
		BackendBaseURL: getEnv("BACKEND_BASE_URL", "http://localhost:8080"),
		WSEndpoint:     getEnv("WS_ENDPOINT", "http://localhost:8080/ws"),
		AccessToken:    getEnv("ACCESS_TOKEN", ""),
		UserID:         getEnv("USER_ID", ""),
		Port:           getEnv("PORT", "3000"),
		CORSOrigin:     getEnv("CORS_ORIGIN", "*"),
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
