package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/pario-ai/drip/pkg/prompt"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config holds all drip configuration.
type Config struct {
	API           APIConfig        `yaml:"api"`
	Completion    CompletionConfig `yaml:"completion"`
	Prompt        PromptConfig     `yaml:"prompt"`
	Timing        TimingConfig     `yaml:"timing"`
	RequestLimits LimitsConfig     `yaml:"request_limits"`
	Telemetry     TelemetryConfig  `yaml:"telemetry"`
	History       HistoryConfig    `yaml:"history"`
	Log           LogConfig        `yaml:"log"`
}

// APIConfig defines the chat-completion endpoint.
type APIConfig struct {
	Key     string        `yaml:"key"`
	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// CompletionConfig holds per-request generation defaults.
type CompletionConfig struct {
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// PromptConfig defines the Gemini prompt generator.
type PromptConfig struct {
	APIKey          string  `yaml:"api_key"`
	BaseURL         string  `yaml:"base_url"`
	Model           string  `yaml:"model"`
	Instruction     string  `yaml:"instruction"`
	MaxOutputTokens int     `yaml:"max_output_tokens"`
	Temperature     float64 `yaml:"temperature"`
	// ExitOnFailure stops the daemon on the first prompt failure instead of
	// skipping that request.
	ExitOnFailure bool `yaml:"exit_on_failure"`
}

// TimingConfig bounds the random wait between requests, in minutes.
type TimingConfig struct {
	MinInterval float64 `yaml:"min_interval"`
	MaxInterval float64 `yaml:"max_interval"`
}

// LimitsConfig bounds the random daily quota (inclusive).
type LimitsConfig struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// TelemetryConfig controls the periodic statistics log. Zero disables it.
type TelemetryConfig struct {
	Period time.Duration `yaml:"period"`
}

// HistoryConfig controls the SQLite request history.
type HistoryConfig struct {
	Enabled       bool   `yaml:"enabled"`
	DBPath        string `yaml:"db_path"`
	RetentionDays int    `yaml:"retention_days"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		API: APIConfig{
			Model:   "Hermes-3-Llama-3.1-405B",
			Timeout: 30 * time.Second,
		},
		Completion: CompletionConfig{
			MaxTokens:   150,
			Temperature: 0.7,
		},
		Prompt: PromptConfig{
			BaseURL:         prompt.DefaultGeminiURL,
			Model:           prompt.DefaultGeminiModel,
			Instruction:     prompt.DefaultInstruction,
			MaxOutputTokens: 50,
			Temperature:     0.7,
		},
		Timing: TimingConfig{
			MinInterval: 1,
			MaxInterval: 7,
		},
		RequestLimits: LimitsConfig{
			Min: 50,
			Max: 100,
		},
		Telemetry: TelemetryConfig{
			Period: time.Hour,
		},
		History: HistoryConfig{
			Enabled:       true,
			DBPath:        "drip.db",
			RetentionDays: 30,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads a YAML config file and expands environment variables.
func Load(fsys afero.Fs, path string) (*Config, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}

// LoadOptional is Load, except that a missing file yields Default().
func LoadOptional(fsys afero.Fs, path string) (*Config, error) {
	cfg, err := Load(fsys, path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// ApplyEnv overrides fields from the process environment. lookup is
// usually os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}
	float := func(name string, dst *float64) error {
		v, ok := lookup(name)
		if !ok || v == "" {
			return nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not a number", ErrInvalid, name, v)
		}
		*dst = f
		return nil
	}
	integer := func(name string, dst *int) error {
		v, ok := lookup(name)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not an integer", ErrInvalid, name, v)
		}
		*dst = n
		return nil
	}

	str("NOUS_API_KEY", &c.API.Key)
	str("NOUS_API_BASE_URL", &c.API.BaseURL)
	str("MODEL_NAME", &c.API.Model)
	str("GEMINI_API_KEY", &c.Prompt.APIKey)
	str("LOG_LEVEL", &c.Log.Level)
	str("DRIP_DB_PATH", &c.History.DBPath)

	return errors.Join(
		float("REQUEST_INTERVAL_MIN", &c.Timing.MinInterval),
		float("REQUEST_INTERVAL_MAX", &c.Timing.MaxInterval),
		integer("REQUEST_LIMIT_MIN", &c.RequestLimits.Min),
		integer("REQUEST_LIMIT_MAX", &c.RequestLimits.Max),
	)
}

// ResolveSecrets fills empty API keys from a secret store. get returns ""
// when nothing is stored.
func (c *Config) ResolveSecrets(get func(name string) (string, error), completionName, promptName string) error {
	if c.API.Key == "" {
		v, err := get(completionName)
		if err != nil {
			return err
		}
		c.API.Key = v
	}
	if c.Prompt.APIKey == "" {
		v, err := get(promptName)
		if err != nil {
			return err
		}
		c.Prompt.APIKey = v
	}
	return nil
}

// Validate reports every problem that would stop the daemon from running.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if c.API.BaseURL == "" {
		fail("NOUS_API_BASE_URL (api.base_url) is required")
	}
	if c.API.Key == "" {
		fail("NOUS_API_KEY (api.key) is required")
	}
	if c.Prompt.APIKey == "" {
		fail("GEMINI_API_KEY (prompt.api_key) is required")
	}
	if c.Timing.MinInterval < 0 || c.Timing.MaxInterval < c.Timing.MinInterval {
		fail("interval bounds must satisfy 0 <= min (%v) <= max (%v)", c.Timing.MinInterval, c.Timing.MaxInterval)
	}
	if c.RequestLimits.Min < 0 || c.RequestLimits.Max < c.RequestLimits.Min {
		fail("request limits must satisfy 0 <= min (%d) <= max (%d)", c.RequestLimits.Min, c.RequestLimits.Max)
	}
	if c.Telemetry.Period < 0 {
		fail("telemetry.period must not be negative")
	}
	return errors.Join(errs...)
}
