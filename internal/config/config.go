package config

import (
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort string
	AppEnv  string // "development" or "production"
	AppURL  string // frontend to send the user back to after linking

	Auth0Domain   string
	Auth0Audience string

	// Dedicated application used for the step-up re-authentication leg.
	LinkClientID     string
	LinkClientSecret string
	LinkServerURL    string // public base URL of this service; the callback redirect URI is derived from it

	// Machine-to-machine credentials for the Management API.
	ManagementClientID     string
	ManagementClientSecret string

	ContinuationSecret string

	SessionBackend string // "postgres", "redis" or "memory"
	DatabaseDSN    string
	RedisAddr      string
	RedisPassword  string
}

func Load() Config {

	// In production env vars come from the platform dashboard.
	if os.Getenv("APP_ENV") != "production" {
		_ = godotenv.Load(".env.local")
	}

	cfg := Config{

		AppPort: getenv("APP_PORT", "3002"),
		AppEnv:  getenv("APP_ENV", "development"),
		AppURL:  getenv("APP_URL", "http://localhost:5173"),

		Auth0Domain:   os.Getenv("AUTH0_DOMAIN"),
		Auth0Audience: os.Getenv("AUTH0_AUDIENCE"),

		LinkClientID:     os.Getenv("AUTH0_LINK_CLIENT_ID"),
		LinkClientSecret: os.Getenv("AUTH0_LINK_CLIENT_SECRET"),
		LinkServerURL:    getenv("LINK_SERVER_URL", "http://localhost:3002"),

		ManagementClientID:     os.Getenv("AUTH0_MANAGEMENT_CLIENT_ID"),
		ManagementClientSecret: os.Getenv("AUTH0_MANAGEMENT_CLIENT_SECRET"),

		ContinuationSecret: os.Getenv("CONTINUATION_TOKEN_SECRET"),

		SessionBackend: getenv("SESSION_BACKEND", "postgres"),
		DatabaseDSN:    os.Getenv("DATABASE_DSN"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
	}

	return cfg

}

func (c Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// CallbackURL is the redirect URI registered with Auth0. It is static per
// deployment and must never be derived from request input.
func (c Config) CallbackURL() string {
	return c.LinkServerURL + "/link/callback"
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
