package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/pario-ai/drip/pkg/completion"
	"github.com/pario-ai/drip/pkg/config"
	"github.com/pario-ai/drip/pkg/interval"
	"github.com/pario-ai/drip/pkg/prompt"
	"github.com/pario-ai/drip/pkg/scheduler"
	"github.com/pario-ai/drip/pkg/secrets"
)

// loadConfig reads the config file, if any, and applies the environment.
func loadConfig(fsys afero.Fs, path string, lookup func(string) (string, bool)) (*config.Config, error) {
	cfg, err := config.LoadOptional(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ApplyEnv(lookup); err != nil {
		return nil, err
	}
	return cfg, nil
}

// keyLookup reads API keys from the keyring. An unreachable keyring reads
// as "nothing stored" so that Validate names the missing key; the skipped
// errors are kept for logging once a logger exists.
type keyLookup struct {
	get     func(name string) (string, error)
	skipped []error
}

func newKeyLookup() *keyLookup {
	return &keyLookup{get: secrets.Get}
}

func (k *keyLookup) lookup(name string) (string, error) {
	v, err := k.get(name)
	if errors.Is(err, secrets.ErrUnavailable) {
		k.skipped = append(k.skipped, err)
		return "", nil
	}
	return v, err
}

func (k *keyLookup) logSkipped(log *zap.Logger) {
	for _, err := range k.skipped {
		log.Debug("keyring unavailable, key not loaded", zap.Error(err))
	}
}

// resolveKeys fills API keys missing from the file and environment.
func resolveKeys(cfg *config.Config, keys *keyLookup) error {
	if err := cfg.ResolveSecrets(keys.lookup, secrets.CompletionKey, secrets.PromptKey); err != nil {
		return fmt.Errorf("resolve api keys: %w", err)
	}
	return nil
}

// loadConfigWithKeys is loadConfig plus API keys from the keyring.
func loadConfigWithKeys(path string) (*config.Config, *keyLookup, error) {
	cfg, err := loadConfig(afero.NewOsFs(), path, os.LookupEnv)
	if err != nil {
		return nil, nil, err
	}
	keys := newKeyLookup()
	if err := resolveKeys(cfg, keys); err != nil {
		return nil, nil, err
	}
	return cfg, keys, nil
}

func completionConfig(cfg *config.Config) completion.Config {
	return completion.Config{
		BaseURL: cfg.API.BaseURL,
		APIKey:  cfg.API.Key,
		Model:   cfg.API.Model,
		Timeout: cfg.API.Timeout,
		Defaults: completion.Options{
			MaxTokens:   cfg.Completion.MaxTokens,
			Temperature: cfg.Completion.Temperature,
		},
	}
}

func geminiConfig(cfg *config.Config) prompt.GeminiConfig {
	return prompt.GeminiConfig{
		BaseURL:         cfg.Prompt.BaseURL,
		APIKey:          cfg.Prompt.APIKey,
		Model:           cfg.Prompt.Model,
		Instruction:     cfg.Prompt.Instruction,
		MaxOutputTokens: cfg.Prompt.MaxOutputTokens,
		Temperature:     cfg.Prompt.Temperature,
		Timeout:         cfg.API.Timeout,
	}
}

func schedulerConfig(cfg *config.Config) scheduler.Config {
	sc := scheduler.Config{
		Interval: interval.Config{
			MinMinutes: cfg.Timing.MinInterval,
			MaxMinutes: cfg.Timing.MaxInterval,
		},
		QuotaMin:            cfg.RequestLimits.Min,
		QuotaMax:            cfg.RequestLimits.Max,
		Model:               cfg.API.Model,
		TelemetryPeriod:     cfg.Telemetry.Period,
		ExitOnPromptFailure: cfg.Prompt.ExitOnFailure,
	}
	if cfg.History.Enabled && cfg.History.RetentionDays > 0 {
		sc.Retention = time.Duration(cfg.History.RetentionDays) * 24 * time.Hour
	}
	return sc
}
