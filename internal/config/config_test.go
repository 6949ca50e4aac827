package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "JWT_EXPIRATION", "DEFAULT_MODEL", "COMPLETION_MAX_TOKENS", "COMPLETION_TEMPERATURE", "APP_ENV"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.JWTExpiration != 7*24*time.Hour {
		t.Fatalf("expected 7 day token expiry, got %s", cfg.JWTExpiration)
	}
	if cfg.DefaultModel != "gpt-3.5-turbo" {
		t.Fatalf("unexpected default model %q", cfg.DefaultModel)
	}
	if cfg.CompletionMaxTokens != 1000 || cfg.CompletionTemperature != 0.7 {
		t.Fatalf("unexpected completion settings: %d %v", cfg.CompletionMaxTokens, cfg.CompletionTemperature)
	}
	if cfg.IsDevelopment() {
		t.Fatalf("expected production mode by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("COMPLETION_TEMPERATURE", "0.2")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("RATE_LIMIT_WINDOW", "not-a-duration")

	cfg := Load()

	if !cfg.IsDevelopment() {
		t.Fatalf("expected development mode")
	}
	if cfg.CompletionTemperature != 0.2 {
		t.Fatalf("expected temperature override, got %v", cfg.CompletionTemperature)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins %v", cfg.CORSAllowedOrigins)
	}
	if cfg.RateLimitWindow != time.Minute {
		t.Fatalf("invalid duration should fall back to default, got %s", cfg.RateLimitWindow)
	}
}
