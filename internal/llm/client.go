// Package llm implements the generation collaborator: an Ollama HTTP client
// that turns structured classroom prompts into utterance text. It is treated
// as a latent, occasionally slow or failing oracle; every failure path
// degrades to a pre-authored default line rather than surfacing an error.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// generateMode selects sampling limits per caller role.
type generateMode int

const (
	modeStudent generateMode = iota
	modeTeacher
	modeLong
)

// Config holds collaborator connection settings.
type Config struct {
	BaseURL     string
	Model       string
	Timeout     time.Duration
	LongTimeout time.Duration
}

// DefaultConfig returns the default Ollama connection settings.
func DefaultConfig() Config {
	return Config{
		BaseURL:     "http://localhost:11434",
		Model:       "gemma3",
		Timeout:     25 * time.Second,
		LongTimeout: 45 * time.Second,
	}
}

// Client calls the Ollama /api/generate endpoint.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates a generation client. A nil logger falls back to the
// default slog logger.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultConfig().BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultConfig().Model
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.LongTimeout <= 0 {
		cfg.LongTimeout = DefaultConfig().LongTimeout
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{},
		logger: logger,
	}
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// generate performs one prompt round-trip with a bounded timeout and a single
// retry at 1.5x the timeout when the first attempt times out. Failures return
// an empty string; callers substitute their default lines.
func (c *Client) generate(ctx context.Context, prompt string, mode generateMode) string {
	numPredict := 180
	temperature := 0.8
	baseTimeout := c.cfg.Timeout
	switch mode {
	case modeTeacher:
		numPredict = 520
	case modeLong:
		numPredict = 900
		temperature = 0.7
		baseTimeout = c.cfg.LongTimeout
	}

	for attempt := 0; attempt < 2; attempt++ {
		timeout := baseTimeout
		if attempt > 0 {
			timeout = baseTimeout * 3 / 2
		}

		text, err := c.generateOnce(ctx, prompt, numPredict, temperature, timeout)
		if err == nil {
			switch mode {
			case modeTeacher:
				return collectSentences(text, 8)
			case modeLong:
				return normalizeLongText(text)
			default:
				return collectSentences(text, 1)
			}
		}

		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil && attempt == 0 {
			c.logger.Warn("generation request timed out, retrying once", "timeout", timeout)
			continue
		}

		c.logger.Error("generation failed", "error", err)
		return ""
	}

	return ""
}

func (c *Client) generateOnce(ctx context.Context, prompt string, numPredict int, temperature float64, timeout time.Duration) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(generateRequest{
		Model:  c.cfg.Model,
		Prompt: prompt,
		Stream: false,
		Options: generateOptions{
			Temperature: temperature,
			NumPredict:  numPredict,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.cfg.BaseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("generate request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Debug("failed to close generate response body", "error", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("generate request: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read generate response: %w", err)
	}

	var parsed generateResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("decode generate response: %w", err)
	}

	return parsed.Response, nil
}
