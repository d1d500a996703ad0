package config

import (
	"errors"
	"testing"
	"time"

	"github.com/spf13/afero"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.API.Model != "Hermes-3-Llama-3.1-405B" {
		t.Errorf("expected default model, got %s", cfg.API.Model)
	}
	if cfg.Timing.MinInterval != 1 || cfg.Timing.MaxInterval != 7 {
		t.Errorf("expected 1-7 minute interval, got %v-%v", cfg.Timing.MinInterval, cfg.Timing.MaxInterval)
	}
	if cfg.RequestLimits.Min != 50 || cfg.RequestLimits.Max != 100 {
		t.Errorf("expected 50-100 limit, got %d-%d", cfg.RequestLimits.Min, cfg.RequestLimits.Max)
	}
	if cfg.Telemetry.Period != time.Hour {
		t.Errorf("expected 1h telemetry, got %v", cfg.Telemetry.Period)
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("TEST_API_KEY", "sk-test-123")

	content := `
api:
  base_url: https://inference.example.com
  key: ${TEST_API_KEY}
  timeout: 10s
timing:
  min_interval: 0.5
  max_interval: 2.5
request_limits:
  min: 3
  max: 3
telemetry:
  period: 30m
prompt:
  exit_on_failure: true
`
	fsys := afero.NewMemMapFs()
	if err := afero.WriteFile(fsys, "/etc/drip.yaml", []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(fsys, "/etc/drip.yaml")
	if err != nil {
		t.Fatal(err)
	}

	if cfg.API.Key != "sk-test-123" {
		t.Errorf("env var not expanded: got %s", cfg.API.Key)
	}
	if cfg.API.Timeout != 10*time.Second {
		t.Errorf("expected 10s timeout, got %v", cfg.API.Timeout)
	}
	if cfg.Timing.MinInterval != 0.5 || cfg.Timing.MaxInterval != 2.5 {
		t.Errorf("unexpected timing %+v", cfg.Timing)
	}
	if cfg.RequestLimits.Min != 3 || cfg.RequestLimits.Max != 3 {
		t.Errorf("unexpected limits %+v", cfg.RequestLimits)
	}
	if cfg.Telemetry.Period != 30*time.Minute {
		t.Errorf("expected 30m telemetry, got %v", cfg.Telemetry.Period)
	}
	if !cfg.Prompt.ExitOnFailure {
		t.Error("expected exit_on_failure")
	}
	// untouched sections keep their defaults
	if cfg.API.Model != "Hermes-3-Llama-3.1-405B" {
		t.Errorf("expected default model, got %s", cfg.API.Model)
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(afero.NewMemMapFs(), "/nonexistent/config.yaml")
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadOptionalMissing(t *testing.T) {
	cfg, err := LoadOptional(afero.NewMemMapFs(), "drip.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.History.DBPath != "drip.db" {
		t.Errorf("expected defaults, got %+v", cfg.History)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"NOUS_API_KEY":         "sk-env",
		"NOUS_API_BASE_URL":    "https://env.example.com",
		"MODEL_NAME":           "Hermes-4",
		"GEMINI_API_KEY":       "g-env",
		"REQUEST_INTERVAL_MIN": "2",
		"REQUEST_INTERVAL_MAX": "4.5",
		"REQUEST_LIMIT_MIN":    "10",
		"REQUEST_LIMIT_MAX":    "20",
		"LOG_LEVEL":            "debug",
	}
	lookup := func(k string) (string, bool) { v, ok := env[k]; return v, ok }

	cfg := Default()
	if err := cfg.ApplyEnv(lookup); err != nil {
		t.Fatal(err)
	}
	if cfg.API.Key != "sk-env" || cfg.API.BaseURL != "https://env.example.com" || cfg.API.Model != "Hermes-4" {
		t.Errorf("unexpected api %+v", cfg.API)
	}
	if cfg.Prompt.APIKey != "g-env" {
		t.Errorf("expected gemini key from env, got %q", cfg.Prompt.APIKey)
	}
	if cfg.Timing.MinInterval != 2 || cfg.Timing.MaxInterval != 4.5 {
		t.Errorf("unexpected timing %+v", cfg.Timing)
	}
	if cfg.RequestLimits.Min != 10 || cfg.RequestLimits.Max != 20 {
		t.Errorf("unexpected limits %+v", cfg.RequestLimits)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected debug level, got %s", cfg.Log.Level)
	}
}

func TestApplyEnvBadNumber(t *testing.T) {
	lookup := func(k string) (string, bool) {
		if k == "REQUEST_LIMIT_MAX" {
			return "lots", true
		}
		return "", false
	}
	err := Default().ApplyEnv(lookup)
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}
}

func TestResolveSecrets(t *testing.T) {
	store := map[string]string{"nous": "sk-ring", "gemini": "g-ring"}
	get := func(name string) (string, error) { return store[name], nil }

	cfg := Default()
	cfg.Prompt.APIKey = "g-explicit"
	if err := cfg.ResolveSecrets(get, "nous", "gemini"); err != nil {
		t.Fatal(err)
	}
	if cfg.API.Key != "sk-ring" {
		t.Errorf("expected key from keyring, got %q", cfg.API.Key)
	}
	if cfg.Prompt.APIKey != "g-explicit" {
		t.Errorf("explicit key should win over keyring, got %q", cfg.Prompt.APIKey)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	err := cfg.Validate()
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for missing base URL and keys, got %v", err)
	}

	cfg.API.BaseURL = "https://inference.example.com"
	cfg.API.Key = "sk"
	cfg.Prompt.APIKey = "g"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	cfg.Timing.MinInterval = 8
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for min interval above max")
	}

	cfg.Timing.MinInterval = 1
	cfg.RequestLimits.Min = 200
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for min limit above max")
	}
}
