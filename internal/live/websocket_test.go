package live

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"

	"classim/internal/domain"
)

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ws, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = ws.Close(websocket.StatusNormalClosure, "test done") })
	return ws
}

func readFrame(t *testing.T, ws *websocket.Conn) map[string]json.RawMessage {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, data, err := ws.Read(ctx)
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var frame map[string]json.RawMessage
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("unmarshal frame %q: %v", data, err)
	}
	return frame
}

func frameType(t *testing.T, frame map[string]json.RawMessage) string {
	t.Helper()
	var typ string
	if raw, ok := frame["type"]; ok {
		if err := json.Unmarshal(raw, &typ); err != nil {
			t.Fatalf("unmarshal frame type: %v", err)
		}
	}
	return typ
}

func TestWebSocketUnknownSession(t *testing.T) {
	repo := newMemRepo()
	registry := NewRegistry(repo, &stubGenerator{}, nil, time.Hour, time.Millisecond)
	defer registry.Close()

	srv := httptest.NewServer(NewWebSocketHandler(registry, "", true))
	defer srv.Close()

	ws := dial(t, "ws"+srv.URL[4:]+"/?sessionId=missing")

	frame := readFrame(t, ws)
	raw, ok := frame["error"]
	if !ok {
		t.Fatalf("expected error frame, got %v", frame)
	}
	var msg string
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("unmarshal error field: %v", err)
	}
	if msg != "session_not_found" {
		t.Errorf("error = %q, want session_not_found", msg)
	}
}

func TestWebSocketPlayback(t *testing.T) {
	repo := newMemRepo()
	session := testSession("session-1")
	if err := repo.CreateSession(context.Background(), session); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	registry := NewRegistry(repo, &stubGenerator{}, nil, 5*time.Millisecond, time.Millisecond)
	defer registry.Close()

	srv := httptest.NewServer(NewWebSocketHandler(registry, "", true))
	defer srv.Close()

	ws := dial(t, "ws"+srv.URL[4:]+"/?sessionId=session-1")

	// Snapshot arrives before anything else.
	first := readFrame(t, ws)
	if got := frameType(t, first); got != "state" {
		t.Fatalf("first frame type = %q, want state", got)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ws.Write(ctx, websocket.MessageText, []byte(`{"type":"start"}`)); err != nil {
		t.Fatalf("send start: %v", err)
	}

	// The scripted opening must be the first utterance on the wire.
	for {
		frame := readFrame(t, ws)
		if frameType(t, frame) != "utterance" {
			continue
		}
		var u domain.Utterance
		if err := json.Unmarshal(frame["utterance"], &u); err != nil {
			t.Fatalf("unmarshal utterance: %v", err)
		}
		if u.Content != "起立！" {
			t.Errorf("first utterance = %q, want 起立！", u.Content)
		}
		break
	}

	// Malformed control input is ignored, the connection stays usable.
	if err := ws.Write(ctx, websocket.MessageText, []byte(`{not json`)); err != nil {
		t.Fatalf("send malformed: %v", err)
	}
	if err := ws.Write(ctx, websocket.MessageText, []byte(`{"type":"ping"}`)); err != nil {
		t.Fatalf("send ping: %v", err)
	}
	for {
		frame := readFrame(t, ws)
		if frameType(t, frame) == "pong" {
			break
		}
	}
}
