package config

import (
	"testing"
	"time"
)

func TestLoad_Success(t *testing.T) {
	setMinimalEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}

	if cfg.App.Env != "prod" {
		t.Fatalf("expected App.Env to be prod, got %q", cfg.App.Env)
	}
	if !cfg.App.IsProd() {
		t.Fatalf("expected IsProd to be true")
	}
	if cfg.API.BaseURL != "https://api.discotek.example" {
		t.Fatalf("unexpected base url %q", cfg.API.BaseURL)
	}
	if got := cfg.API.RequestTimeout; got != 10*time.Second {
		t.Fatalf("expected default request timeout 10s, got %v", got)
	}
	if got := cfg.Checkout.RedirectDelay; got != 3*time.Second {
		t.Fatalf("expected default redirect delay 3s, got %v", got)
	}
}

func TestLoad_MissingBaseURL(t *testing.T) {
	t.Setenv("DISCOTEK_APP_ENV", "dev")

	if _, err := Load(); err == nil {
		t.Fatal("expected missing base url to return an error")
	}
}

func TestLoad_RejectsNonHTTPBaseURL(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv("DISCOTEK_API_BASE_URL", "ftp://api.discotek.example")

	if _, err := Load(); err == nil {
		t.Fatal("expected non-http base url to return an error")
	}
}

func setMinimalEnv(t *testing.T) {
	t.Helper()

	t.Setenv("DISCOTEK_APP_ENV", "prod")
	t.Setenv("DISCOTEK_API_BASE_URL", "https://api.discotek.example")
	t.Setenv("DISCOTEK_API_TOKEN", "bearer-token")
}
