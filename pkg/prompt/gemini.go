// Package prompt supplies the prompts that drip sends upstream.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pario-ai/drip/pkg/httpx"
	"github.com/pario-ai/drip/pkg/models"
	"go.uber.org/zap"
)

// DefaultInstruction asks the generator for a single self-contained prompt.
const DefaultInstruction = "Generate an interesting and thought-provoking prompt to give to human-centric " +
	"language models and simulators, but keep it simple and easy to understand. Just give the prompt " +
	"itself, don't give additional instructions, and don't give the previous prompt."

const (
	DefaultGeminiURL   = "https://generativelanguage.googleapis.com"
	DefaultGeminiModel = "gemini-2.0-flash"
)

// ErrEmptyPrompt is returned when the generator answers with no text.
var ErrEmptyPrompt = errors.New("prompt: generator returned an empty prompt")

// Source produces the next prompt.
type Source interface {
	Fetch(ctx context.Context) (string, error)
}

// SourceFunc adapts a plain function to Source.
type SourceFunc func(ctx context.Context) (string, error)

// Fetch calls f.
func (f SourceFunc) Fetch(ctx context.Context) (string, error) { return f(ctx) }

// GeminiConfig configures the Gemini generateContent source.
type GeminiConfig struct {
	BaseURL         string
	APIKey          string
	Model           string
	Instruction     string
	MaxOutputTokens int
	Temperature     float64
	Timeout         time.Duration
}

// Gemini asks a Gemini model to write a prompt.
type Gemini struct {
	cfg  GeminiConfig
	http *http.Client
	log  *zap.Logger
}

// NewGemini returns a Gemini source. The API key is required.
func NewGemini(cfg GeminiConfig, log *zap.Logger) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("prompt: Gemini API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultGeminiURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	if cfg.Instruction == "" {
		cfg.Instruction = DefaultInstruction
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Gemini{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log.With(zap.String("component", "prompt")),
	}, nil
}

// Fetch generates one prompt.
func (g *Gemini) Fetch(ctx context.Context) (string, error) {
	req := models.GeminiRequest{
		Contents: []models.GeminiContent{
			{Role: "user", Parts: []models.GeminiPart{{Text: g.cfg.Instruction}}},
		},
		GenerationConfig: &models.GeminiGenerationConfig{
			MaxOutputTokens: g.cfg.MaxOutputTokens,
			Temperature:     g.cfg.Temperature,
		},
	}
	headers := map[string]string{
		"X-goog-api-key": g.cfg.APIKey,
	}
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.cfg.BaseURL, url.PathEscape(g.cfg.Model))

	var resp models.GeminiResponse
	if err := httpx.PostJSON(ctx, g.http, endpoint, headers, req, &resp); err != nil {
		return "", fmt.Errorf("generate prompt: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyPrompt
	}
	g.log.Debug("prompt generated", zap.String("prompt", text))
	return text, nil
}
