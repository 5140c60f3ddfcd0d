package config

import "testing"

func TestWebSocketURL(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"http://localhost:8080", "ws://localhost:8080/ws"},
		{"https://chat.hire.example", "wss://chat.hire.example/ws"},
	}
	for _, tt := range tests {
		cfg := Config{BaseURL: tt.base}
		if got := cfg.WebSocketURL(); got != tt.want {
			t.Errorf("WebSocketURL(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}
}

func TestFromEnvTrimsTrailingSlash(t *testing.T) {
	t.Setenv("HIRECHAT_URL", "http://localhost:9090/")
	cfg := FromEnv()
	if cfg.BaseURL != "http://localhost:9090" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
}

func TestValidate(t *testing.T) {
	cfg := Config{BaseURL: "http://x"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error with no credentials")
	}
	cfg.Email, cfg.Password = "me@hire.chat", "pw"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}
