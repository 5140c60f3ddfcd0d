// Package config reads the client's environment. A single base URL
// selects the backend host for both REST and WebSocket-upgrade traffic.
package config

import (
	"fmt"
	"os"
	"strings"
)

type Config struct {
	BaseURL  string // http(s) host serving REST and the /ws upgrade
	Email    string
	Password string
}

func FromEnv() Config {
	cfg := Config{
		BaseURL:  envOr("HIRECHAT_URL", "http://localhost:8080"),
		Email:    os.Getenv("HIRECHAT_EMAIL"),
		Password: os.Getenv("HIRECHAT_PASSWORD"),
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return cfg
}

func (c Config) Validate() error {
	if c.Email == "" {
		return fmt.Errorf("config: HIRECHAT_EMAIL is not set")
	}
	if c.Password == "" {
		return fmt.Errorf("config: HIRECHAT_PASSWORD is not set")
	}
	return nil
}

// WebSocketURL derives the upgrade endpoint from the base URL.
func (c Config) WebSocketURL() string {
	ws := c.BaseURL
	switch {
	case strings.HasPrefix(ws, "https://"):
		ws = "wss://" + strings.TrimPrefix(ws, "https://")
	case strings.HasPrefix(ws, "http://"):
		ws = "ws://" + strings.TrimPrefix(ws, "http://")
	}
	return ws + "/ws"
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
