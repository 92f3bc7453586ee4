// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	DBPath      string
	Ollama      OllamaConfig
	Playback    PlaybackConfig
	Transcript  TranscriptConfig
}

// OllamaConfig locates the local generation backend.
type OllamaConfig struct {
	BaseURL     string
	Model       string
	Timeout     time.Duration
	LongTimeout time.Duration
}

// PlaybackConfig controls the simulation clock.
type PlaybackConfig struct {
	TickInterval time.Duration
	OpeningDelay time.Duration
}

// TranscriptConfig controls the on-disk transcript log.
type TranscriptConfig struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		DBPath:      getEnv("DB_PATH", "./data/classim.db"),
		Ollama: OllamaConfig{
			BaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			Model:       getEnv("OLLAMA_MODEL", "gemma3"),
			Timeout:     getEnvDuration("OLLAMA_TIMEOUT", 25*time.Second),
			LongTimeout: getEnvDuration("OLLAMA_LONG_TIMEOUT", 45*time.Second),
		},
		Playback: PlaybackConfig{
			TickInterval: getEnvDuration("TICK_INTERVAL", 2*time.Second),
			OpeningDelay: getEnvDuration("OPENING_DELAY", time.Second),
		},
		Transcript: TranscriptConfig{
			Enabled:   getEnvBool("TRANSCRIPT_LOG_ENABLED", false),
			Dir:       getEnv("TRANSCRIPT_LOG_DIR", "./data/transcripts"),
			QueueSize: getEnvInt("TRANSCRIPT_LOG_QUEUE_SIZE", 256),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.Ollama.BaseURL == "" {
		return fmt.Errorf("OLLAMA_BASE_URL cannot be empty")
	}
	if c.Ollama.Model == "" {
		return fmt.Errorf("OLLAMA_MODEL cannot be empty")
	}
	if c.Ollama.Timeout <= 0 || c.Ollama.LongTimeout <= 0 {
		return fmt.Errorf("OLLAMA timeouts must be > 0")
	}
	if c.Playback.TickInterval <= 0 {
		return fmt.Errorf("TICK_INTERVAL must be > 0")
	}
	if c.Playback.OpeningDelay <= 0 {
		return fmt.Errorf("OPENING_DELAY must be > 0")
	}
	if c.Transcript.Enabled {
		if c.Transcript.Dir == "" {
			return fmt.Errorf("TRANSCRIPT_LOG_DIR cannot be empty when transcript logging is enabled")
		}
		if c.Transcript.QueueSize <= 0 {
			return fmt.Errorf("TRANSCRIPT_LOG_QUEUE_SIZE must be > 0")
		}
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return b
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	trimmed := strings.TrimSpace(value)
	if d, err := time.ParseDuration(trimmed); err == nil {
		return d
	}
	// Bare numbers are read as seconds.
	if n, err := strconv.Atoi(trimmed); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return fallback
}
