// Package completion is a minimal client for OpenAI-compatible
// /v1/chat/completions endpoints.
package completion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pario-ai/drip/pkg/httpx"
	"github.com/pario-ai/drip/pkg/models"
	"go.uber.org/zap"
)

const (
	completionsPath = "/v1/chat/completions"
	pingPrompt      = "Hello! This is a test request. Please respond briefly."
)

// Options tunes a single completion request. Zero fields fall back to the
// client's defaults.
type Options struct {
	MaxTokens   int
	Temperature float64
}

// Config describes the upstream endpoint.
type Config struct {
	BaseURL  string
	APIKey   string
	Model    string
	Timeout  time.Duration
	Defaults Options
}

// Client sends chat completion requests.
type Client struct {
	cfg  Config
	http *http.Client
	log  *zap.Logger
}

// New validates cfg and returns a Client. A missing base URL or key is a
// configuration error.
func New(cfg Config, log *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("completion: base URL is required")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("completion: API key is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Defaults.MaxTokens <= 0 {
		cfg.Defaults.MaxTokens = 150
	}
	if cfg.Defaults.Temperature == 0 {
		cfg.Defaults.Temperature = 0.7
	}
	if log == nil {
		log = zap.NewNop()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log.With(zap.String("component", "completion")),
	}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.cfg.Model }

// Complete sends prompt as a single user message.
func (c *Client) Complete(ctx context.Context, prompt string, opts *Options) (*models.ChatCompletionResponse, error) {
	o := c.cfg.Defaults
	if opts != nil {
		if opts.MaxTokens > 0 {
			o.MaxTokens = opts.MaxTokens
		}
		if opts.Temperature != 0 {
			o.Temperature = opts.Temperature
		}
	}

	resp, err := c.do(ctx, prompt, o)
	if err != nil {
		c.log.Error("completion request failed",
			zap.Error(err),
			zap.String("prompt", preview(prompt, 50)),
		)
		return nil, err
	}

	c.log.Info("completion request completed",
		zap.String("prompt", prompt),
		zap.Int("tokens_used", resp.TotalTokens()),
	)
	return resp, nil
}

// Ping sends a short fixed prompt to verify connectivity and credentials.
func (c *Client) Ping(ctx context.Context) (*models.ChatCompletionResponse, error) {
	resp, err := c.do(ctx, pingPrompt, Options{MaxTokens: 100, Temperature: 0.7})
	if err != nil {
		return nil, err
	}
	c.log.Info("ping succeeded",
		zap.String("model", c.cfg.Model),
		zap.Int("tokens_used", resp.TotalTokens()),
		zap.Int("response_length", len(resp.Content())),
	)
	return resp, nil
}

func (c *Client) do(ctx context.Context, prompt string, o Options) (*models.ChatCompletionResponse, error) {
	req := models.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    []models.ChatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   &o.MaxTokens,
		Temperature: &o.Temperature,
	}
	headers := map[string]string{
		"Authorization": "Bearer " + c.cfg.APIKey,
	}

	start := time.Now()
	c.log.Debug("making API request", zap.String("url", c.cfg.BaseURL+completionsPath))

	var resp models.ChatCompletionResponse
	if err := httpx.PostJSON(ctx, c.http, c.cfg.BaseURL+completionsPath, headers, req, &resp); err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}

	c.log.Debug("API response received", zap.Duration("latency", time.Since(start)))
	return &resp, nil
}

// preview cuts s to at most n bytes on a rune boundary.
func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
