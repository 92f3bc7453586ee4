// Package translog appends lesson transcripts to per-session NDJSON files.
// Writes go through a bounded queue so a slow disk never stalls the
// simulation loop.
package translog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"classim/internal/domain"
)

// Config controls transcript file logging.
type Config struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// TranscriptLogger writes utterances to <dir>/<sessionID>.ndjson, one JSON
// object per line.
type TranscriptLogger struct {
	dir    string
	logger *slog.Logger

	queue chan domain.Utterance
	done  chan struct{}

	mu     sync.Mutex
	closed bool
}

// New creates a transcript logger. Returns nil (and no error) when logging
// is disabled; callers treat a nil logger as a no-op.
func New(cfg Config, logger *slog.Logger) (*TranscriptLogger, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create transcript log directory: %w", err)
	}

	t := &TranscriptLogger{
		dir:    cfg.Dir,
		logger: logger,
		queue:  make(chan domain.Utterance, cfg.QueueSize),
		done:   make(chan struct{}),
	}
	go t.writeLoop()
	return t, nil
}

// Log enqueues one utterance. Drops the entry when the queue is full.
func (t *TranscriptLogger) Log(u domain.Utterance) {
	if t == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	select {
	case t.queue <- u:
	default:
		t.logger.Warn("Transcript log queue full, dropping entry",
			"session_id", u.SessionID, "utterance_id", u.ID)
	}
}

// Close drains the queue and stops the writer.
func (t *TranscriptLogger) Close() error {
	if t == nil {
		return nil
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	close(t.queue)
	t.mu.Unlock()

	<-t.done
	return nil
}

func (t *TranscriptLogger) writeLoop() {
	defer close(t.done)
	for u := range t.queue {
		if err := t.append(u); err != nil {
			t.logger.Warn("Failed to write transcript entry",
				"error", err, "session_id", u.SessionID)
		}
	}
}

func (t *TranscriptLogger) append(u domain.Utterance) error {
	line, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("marshal utterance: %w", err)
	}

	path := filepath.Join(t.dir, u.SessionID+".ndjson")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open transcript log: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			t.logger.Debug("Failed to close transcript log", "error", closeErr)
		}
	}()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append transcript line: %w", err)
	}
	return nil
}
