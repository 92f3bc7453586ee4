// Package live streams running lesson simulations over WebSocket and relays
// playback control back into the engine.
package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"classim/internal/domain"
	"classim/internal/shared"
	"classim/internal/sim"
	"classim/internal/store"
	"classim/internal/translog"
)

const (
	subscriberBuffer = 64
	persistQueueSize = 256
	persistTimeout   = 5 * time.Second
)

// Registry keeps at most one running simulation per session.
type Registry struct {
	repo         store.Repository
	generator    sim.Generator
	translog     *translog.TranscriptLogger
	tickInterval time.Duration
	openingDelay time.Duration

	mu   sync.Mutex
	runs map[string]*run
}

// NewRegistry creates a simulation registry. transcripts may be nil.
func NewRegistry(repo store.Repository, generator sim.Generator, transcripts *translog.TranscriptLogger, tickInterval, openingDelay time.Duration) *Registry {
	return &Registry{
		repo:         repo,
		generator:    generator,
		translog:     transcripts,
		tickInterval: tickInterval,
		openingDelay: openingDelay,
		runs:         make(map[string]*run),
	}
}

// acquire returns the run for a session, creating it on first use.
func (r *Registry) acquire(session *domain.Session) *run {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.runs[session.ID]; ok {
		return existing
	}

	rn := &run{
		sessionID:   session.ID,
		repo:        r.repo,
		transcripts: r.translog,
		subs:        make(map[chan []byte]struct{}),
		persistQ:    make(chan *domain.Utterance, persistQueueSize),
	}
	// A finished lesson leaves the registry so the next viewer gets a fresh
	// simulation instead of a dead one.
	rn.onEnd = func() { r.Drop(session.ID) }
	rn.sim = sim.New(sim.Config{
		Session:      *session,
		Generator:    r.generator,
		Events:       rn,
		TickInterval: r.tickInterval,
		OpeningDelay: r.openingDelay,
	})
	go rn.persistLoop()

	r.runs[session.ID] = rn
	return rn
}

// Drop stops and removes a session's run, if any. Called when the session is
// deleted and when its lesson ends.
func (r *Registry) Drop(sessionID string) {
	r.mu.Lock()
	rn, ok := r.runs[sessionID]
	if ok {
		delete(r.runs, sessionID)
	}
	r.mu.Unlock()

	if ok {
		rn.close()
	}
}

// Close stops every running simulation. Called on shutdown.
func (r *Registry) Close() {
	r.mu.Lock()
	runs := make([]*run, 0, len(r.runs))
	for _, rn := range r.runs {
		runs = append(runs, rn)
	}
	r.runs = make(map[string]*run)
	r.mu.Unlock()

	for _, rn := range runs {
		rn.close()
	}
}

// run is one live simulation: the engine, its viewers, and a persistence
// queue that writes utterances to the store in emission order.
type run struct {
	sessionID   string
	repo        store.Repository
	transcripts *translog.TranscriptLogger
	sim         *sim.Simulator
	onEnd       func()

	mu      sync.Mutex
	started bool
	closed  bool
	subs    map[chan []byte]struct{}

	persistQ chan *domain.Utterance
}

func (rn *run) start() {
	rn.mu.Lock()
	defer rn.mu.Unlock()
	if rn.closed {
		return
	}
	if rn.started {
		// A returning viewer picks the clock back up where it paused.
		rn.sim.Resume()
		return
	}
	rn.started = true
	rn.sim.Start()
}

func (rn *run) close() {
	rn.mu.Lock()
	if rn.closed {
		rn.mu.Unlock()
		return
	}
	rn.closed = true
	close(rn.persistQ)
	rn.mu.Unlock()

	rn.sim.Close()
}

func (rn *run) subscribe() chan []byte {
	ch := make(chan []byte, subscriberBuffer)
	rn.mu.Lock()
	rn.subs[ch] = struct{}{}
	rn.mu.Unlock()
	return ch
}

func (rn *run) unsubscribe(ch chan []byte) {
	rn.mu.Lock()
	delete(rn.subs, ch)
	idle := len(rn.subs) == 0 && rn.started && !rn.closed
	rn.mu.Unlock()

	// The clock pauses when the last viewer leaves so a headless simulation
	// does not keep calling the generation backend.
	if idle {
		rn.sim.Stop()
	}
}

// broadcast fans a frame out to every viewer. Slow viewers lose frames rather
// than stalling the simulation.
func (rn *run) broadcast(frame map[string]interface{}) {
	data, err := json.Marshal(frame)
	if err != nil {
		slog.Error("Failed to marshal frame", "error", err, "session_id", rn.sessionID)
		return
	}

	rn.mu.Lock()
	defer rn.mu.Unlock()
	for ch := range rn.subs {
		select {
		case ch <- data:
		default:
			slog.Debug("Dropping frame for slow viewer", "session_id", rn.sessionID)
		}
	}
}

// Utterance implements sim.Events.
func (rn *run) Utterance(u domain.Utterance) {
	rn.broadcast(map[string]interface{}{"type": "utterance", "utterance": u})
	rn.transcripts.Log(u)

	// The enqueue shares the run lock with close() so the queue is never
	// written after it is closed.
	rn.mu.Lock()
	defer rn.mu.Unlock()
	if rn.closed {
		return
	}
	select {
	case rn.persistQ <- &u:
	default:
		slog.Warn("Persist queue full, dropping utterance",
			"session_id", rn.sessionID, "utterance_id", u.ID)
	}
}

// PhaseChanged implements sim.Events.
func (rn *run) PhaseChanged(phase domain.Phase) {
	rn.broadcast(map[string]interface{}{"type": "phase_change", "phase": phase})
}

// TimeUpdated implements sim.Events.
func (rn *run) TimeUpdated(elapsed float64) {
	rn.broadcast(map[string]interface{}{"type": "time_update", "elapsedMinutes": elapsed})
}

// LessonEnded implements sim.Events.
func (rn *run) LessonEnded() {
	rn.broadcast(map[string]interface{}{"type": "lesson_end"})
	if rn.onEnd != nil {
		rn.onEnd()
	}
}

func (rn *run) persistLoop() {
	for u := range rn.persistQ {
		if err := rn.save(u); err != nil {
			slog.Warn("Failed to persist utterance",
				"error", err, "session_id", rn.sessionID, "utterance_id", u.ID)
		}
	}
}

// save retries writes that hit SQLite concurrency errors with backoff.
func (rn *run) save(u *domain.Utterance) error {
	const maxRetries = 3
	baseDelay := 100 * time.Millisecond

	var err error
	for i := 0; i < maxRetries; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		err = rn.repo.SaveUtterance(ctx, u)
		cancel()
		if err == nil {
			return nil
		}
		if !shared.IsSQLiteConflictError(err) {
			return err
		}
		if i < maxRetries-1 {
			delay := baseDelay * time.Duration(1<<i)
			slog.Debug("SaveUtterance hit a busy database, retrying",
				"session_id", rn.sessionID, "attempt", i+1, "delay", delay)
			time.Sleep(delay)
		}
	}
	return err
}
