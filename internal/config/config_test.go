package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ETL_ENV", "test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.MinStars != 10 {
		t.Errorf("expected MIN_STARS default 10, got %d", cfg.MinStars)
	}
	if cfg.GitHub.APIURL != "https://api.github.com" {
		t.Errorf("unexpected GitHub URL %s", cfg.GitHub.APIURL)
	}
	if cfg.GitHub.Timeout != 30*time.Second {
		t.Errorf("expected 30s timeout, got %v", cfg.GitHub.Timeout)
	}
	if cfg.Notify.Policy != NotifyPolicyWarn {
		t.Errorf("default notify policy should be warn, got %s", cfg.Notify.Policy)
	}
	if cfg.SMTP.Enabled() || cfg.Notify.Enabled() {
		t.Error("email should be disabled without SMTP_HOST and recipients")
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("ETL_ENV", "test")
	t.Setenv("MIN_STARS", "500")
	t.Setenv("NOTIFY_TO", "a@example.com, b@example.com,,")
	t.Setenv("NOTIFY_FROM", "etl@example.com")
	t.Setenv("NOTIFY_POLICY", "FAIL")
	t.Setenv("FLOW_UI_URL", "https://ui.example.com/")
	t.Setenv("SMTP_PORT", "2525")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.MinStars != 500 {
		t.Errorf("expected 500, got %d", cfg.MinStars)
	}
	if len(cfg.Notify.To) != 2 || cfg.Notify.To[1] != "b@example.com" {
		t.Errorf("unexpected recipients %v", cfg.Notify.To)
	}
	if cfg.Notify.Policy != NotifyPolicyFail {
		t.Error("expected fail policy")
	}
	if cfg.Notify.FlowUIURL != "https://ui.example.com" {
		t.Errorf("trailing slash should be trimmed, got %s", cfg.Notify.FlowUIURL)
	}
	if cfg.SMTP.Port != 2525 {
		t.Errorf("expected port 2525, got %d", cfg.SMTP.Port)
	}
}

func TestLoad_InvalidPolicy(t *testing.T) {
	t.Setenv("ETL_ENV", "test")
	t.Setenv("NOTIFY_POLICY", "ignore")

	_, err := Load()
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestLoad_DotEnvInDevelopment(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("WORK_POOL=from-dotenv\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	wd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		os.Chdir(wd)
		os.Unsetenv("WORK_POOL")
	})

	t.Setenv("ETL_ENV", "development")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.WorkPool != "from-dotenv" {
		t.Errorf("expected WORK_POOL from .env, got %s", cfg.WorkPool)
	}
}

func TestLoad_FailureRate(t *testing.T) {
	t.Setenv("ETL_ENV", "test")
	t.Setenv("PROCESSING_FAILURE_RATE", "0.25")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.FailureRate != 0.25 {
		t.Errorf("expected failure rate 0.25, got %v", cfg.FailureRate)
	}

	t.Setenv("PROCESSING_FAILURE_RATE", "1.5")
	if _, err := Load(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for rate > 1, got %v", err)
	}
}
