package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
)

// WebSocketHandler serves one lesson playback connection per viewer.
type WebSocketHandler struct {
	registry      *Registry
	allowedOrigin string
	isDev         bool
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(registry *Registry, allowedOrigin string, isDev bool) *WebSocketHandler {
	return &WebSocketHandler{
		registry:      registry,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// wsMessage represents a playback control message from the viewer.
type wsMessage struct {
	Type      string  `json:"type"`
	IsPlaying bool    `json:"isPlaying,omitempty"`
	Speed     float64 `json:"speed,omitempty"`
	Minutes   float64 `json:"minutes,omitempty"`
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	slog.Info("WebSocket connection request", "session_id", sessionID, "ip", r.RemoteAddr)

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "session_id", sessionID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "session_id", sessionID)
		}
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	session, err := h.registry.repo.GetSession(ctx, sessionID)
	if err != nil || session == nil {
		slog.Warn("Session not found for playback", "session_id", sessionID, "error", err)
		if err := h.writeJSON(ws, map[string]string{"error": "session_not_found"}); err != nil {
			slog.Debug("Failed to send session_not_found error", "error", err)
		}
		return
	}

	rn := h.registry.acquire(session)
	frames := rn.subscribe()
	defer rn.unsubscribe(frames)

	// Current snapshot first so a late viewer catches up before live frames.
	state := rn.sim.State()
	if err := h.writeJSON(ws, map[string]interface{}{"type": "state", "state": state}); err != nil {
		slog.Debug("Failed to send state snapshot", "error", err, "session_id", sessionID)
		return
	}

	var wg sync.WaitGroup
	wg.Add(2)

	// Control loop: viewer -> engine.
	go func() {
		defer wg.Done()
		defer cancel()
		h.controlLoop(ctx, ws, rn, sessionID)
	}()

	// Frame loop: engine -> viewer.
	go func() {
		defer wg.Done()
		defer cancel()
		h.frameLoop(ctx, ws, frames, sessionID)
	}()

	wg.Wait()
	slog.Info("Playback connection ended", "session_id", sessionID)
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *WebSocketHandler) controlLoop(ctx context.Context, ws *websocket.Conn, rn *run, sessionID string) {
	for {
		_, message, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "session_id", sessionID)
			} else {
				slog.Warn("WebSocket read error", "error", err, "session_id", sessionID)
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			slog.Warn("Malformed control message ignored", "error", err, "session_id", sessionID)
			continue
		}

		switch msg.Type {
		case "start":
			rn.start()
		case "playback":
			rn.sim.SetPlayback(msg.IsPlaying, msg.Speed)
		case "seek":
			rn.sim.Seek(msg.Minutes)
		case "ping":
			if err := h.writeJSON(ws, map[string]string{"type": "pong"}); err != nil {
				slog.Debug("Failed to send pong", "error", err)
			}
		default:
			slog.Debug("Unknown control message ignored", "type", msg.Type, "session_id", sessionID)
		}
	}
}

func (h *WebSocketHandler) frameLoop(ctx context.Context, ws *websocket.Conn, frames <-chan []byte, sessionID string) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			if err := ws.Write(ctx, websocket.MessageText, frame); err != nil {
				slog.Debug("WebSocket write error", "error", err, "session_id", sessionID)
				return
			}
		}
	}
}

func (h *WebSocketHandler) writeJSON(ws *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return ws.Write(context.Background(), websocket.MessageText, data)
}
