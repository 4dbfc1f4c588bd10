// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strings"
)

// Config is the full runtime configuration. Values come from environment
// variables, with a .env file honored in development.
type Config struct {
	Port        string
	AppURL      string
	AppName     string
	FrontendURL string

	MongoURI      string
	MongoDatabase string

	// RedisAddr enables the Redis handshake store when set; empty keeps
	// handshakes in process memory.
	RedisAddr     string
	RedisPassword string

	// CredentialsKey is the base64-encoded 32-byte primary encryption key,
	// tagged with CredentialsKeyID. Fallbacks holds retired generations as
	// "id:base64key" pairs so old records stay readable.
	CredentialsKey          string
	CredentialsKeyID        string
	CredentialsKeyFallbacks map[string]string

	ShopifyAPIKey    string
	ShopifyAPISecret string

	WebhookSecret string
}

// Load reads configuration from the environment. The encryption key pair is
// mandatory; everything else has a development default.
func Load() (*Config, error) {
	cfg := &Config{
		Port:          getenv("PORT", "8080"),
		AppURL:        getenv("APP_URL", "http://localhost:8080"),
		AppName:       getenv("APP_NAME", "Scenergy Commerce"),
		FrontendURL:   getenv("FRONTEND_URL", "http://localhost:5173"),
		MongoURI:      getenv("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDatabase: getenv("MONGODB_DATABASE", "scenergy_commerce"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		CredentialsKey:   os.Getenv("CREDENTIALS_KEY"),
		CredentialsKeyID: getenv("CREDENTIALS_KEY_ID", "v1"),

		ShopifyAPIKey:    os.Getenv("SHOPIFY_API_KEY"),
		ShopifyAPISecret: os.Getenv("SHOPIFY_API_SECRET"),

		WebhookSecret: os.Getenv("WEBHOOK_SECRET"),
	}

	if cfg.CredentialsKey == "" {
		return nil, fmt.Errorf("CREDENTIALS_KEY environment variable is required")
	}

	fallbacks, err := parseKeyFallbacks(os.Getenv("CREDENTIALS_KEY_FALLBACKS"))
	if err != nil {
		return nil, err
	}
	cfg.CredentialsKeyFallbacks = fallbacks

	return cfg, nil
}

// parseKeyFallbacks parses "id:base64key,id:base64key" into a map. Key
// material itself is validated by the keyring, not here.
func parseKeyFallbacks(raw string) (map[string]string, error) {
	fallbacks := make(map[string]string)
	if raw == "" {
		return fallbacks, nil
	}

	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		id, key, ok := strings.Cut(pair, ":")
		if !ok || id == "" || key == "" {
			return nil, fmt.Errorf("invalid CREDENTIALS_KEY_FALLBACKS entry %q: expected id:base64key", pair)
		}
		fallbacks[id] = key
	}
	return fallbacks, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
