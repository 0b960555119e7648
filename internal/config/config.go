package config

import (
	"fmt"
	"os"
	"time"
)

type Config struct {
	DBFile  string
	APIAddr string

	// FCM HTTP v1 credentials. Empty project ID disables the channel.
	FCMProjectID        string
	FCMCredentialsFile  string
	FCMTokenLifetime    time.Duration
	FCMTokenRefreshSkew time.Duration

	// OneSignal REST credentials. Empty app ID disables the channel.
	OneSignalAppID  string
	OneSignalAPIKey string

	// Shared secret for TURN REST credentials. Empty disables the endpoint.
	TurnSecret string

	// How long a ring push stays deliverable before the provider drops it.
	PushTTL time.Duration
}

func Load() (*Config, error) {
	pushTTL, err := time.ParseDuration(getEnv("PUSH_TTL", "60s"))
	if err != nil {
		return nil, fmt.Errorf("invalid PUSH_TTL: %w", err)
	}

	cfg := &Config{
		DBFile:              getEnv("RINGLINK_DB", "ringlink.db"),
		APIAddr:             getEnv("API_ADDR", ":8080"),
		FCMProjectID:        os.Getenv("FCM_PROJECT_ID"),
		FCMCredentialsFile:  os.Getenv("FCM_CREDENTIALS_FILE"),
		FCMTokenLifetime:    time.Hour,
		FCMTokenRefreshSkew: 5 * time.Minute,
		OneSignalAppID:      os.Getenv("ONESIGNAL_APP_ID"),
		OneSignalAPIKey:     os.Getenv("ONESIGNAL_API_KEY"),
		TurnSecret:          os.Getenv("TURN_SECRET"),
		PushTTL:             pushTTL,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.PushTTL <= 0 {
		return fmt.Errorf("PUSH_TTL must be greater than 0")
	}

	if c.FCMProjectID != "" && c.FCMCredentialsFile == "" {
		return fmt.Errorf("FCM_CREDENTIALS_FILE is required when FCM_PROJECT_ID is set")
	}

	if c.OneSignalAppID != "" && c.OneSignalAPIKey == "" {
		return fmt.Errorf("ONESIGNAL_API_KEY is required when ONESIGNAL_APP_ID is set")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
