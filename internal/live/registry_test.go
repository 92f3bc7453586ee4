package live

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"classim/internal/domain"
	"classim/internal/llm"
	"classim/internal/store"
)

// memRepo is an in-memory store.Repository for handler tests.
type memRepo struct {
	mu         sync.Mutex
	sessions   map[string]*domain.Session
	utterances map[string][]*domain.Utterance
}

func newMemRepo() *memRepo {
	return &memRepo{
		sessions:   make(map[string]*domain.Session),
		utterances: make(map[string][]*domain.Utterance),
	}
}

func (m *memRepo) CreateSession(_ context.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

func (m *memRepo) GetSession(_ context.Context, id string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id], nil
}

func (m *memRepo) ListSessions(context.Context) ([]*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out, nil
}

func (m *memRepo) DeleteSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	delete(m.utterances, id)
	return nil
}

func (m *memRepo) SaveUtterance(_ context.Context, u *domain.Utterance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.utterances[u.SessionID] = append(m.utterances[u.SessionID], u)
	return nil
}

func (m *memRepo) ListUtterances(_ context.Context, id string) ([]*domain.Utterance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.Utterance(nil), m.utterances[id]...), nil
}

func (m *memRepo) Ping(context.Context) error { return nil }
func (m *memRepo) Close() error               { return nil }

var _ store.Repository = (*memRepo)(nil)

// stubGenerator emits unique lines so the repetition guard stays quiet.
type stubGenerator struct {
	mu sync.Mutex
	n  int
}

func (g *stubGenerator) next() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return g.n
}

func (g *stubGenerator) TeacherUtterance(context.Context, llm.TeacherTurnRequest) string {
	return fmt.Sprintf("ここが説明ポイントその%dです。順番に確認していきましょう。", g.next())
}

func (g *stubGenerator) StudentUtterance(context.Context, llm.StudentTurnRequest) string {
	return fmt.Sprintf("なるほど、ポイント%dは理解できたと思います。", g.next())
}

func testSession(id string) *domain.Session {
	students := make([]domain.Student, 0, 6)
	for i, p := range []domain.StudentPersonality{
		domain.StudentActive, domain.StudentPassive, domain.StudentTalkative,
		domain.StudentSerious, domain.StudentEasygoing, domain.StudentRebellious,
	} {
		students = append(students, domain.Student{
			ID:            fmt.Sprintf("s-%d", i+1),
			Name:          string(p),
			Personality:   p,
			AcademicLevel: 3,
		})
	}
	return &domain.Session{
		ID:         id,
		SchoolType: domain.SchoolMiddle,
		Grade:      1,
		Subject:    domain.SubjectScience,
		TopicName:  "光の性質",
		LessonGoal: "光の反射と屈折を説明できる",
		Teacher:    domain.Teacher{ID: "t-1", Name: "山田", Age: 45},
		Students:   students,
		CreatedAt:  time.Now(),
	}
}

func TestRegistryOneRunPerSession(t *testing.T) {
	repo := newMemRepo()
	registry := NewRegistry(repo, &stubGenerator{}, nil, time.Hour, time.Millisecond)
	defer registry.Close()

	session := testSession("session-1")
	first := registry.acquire(session)
	second := registry.acquire(session)
	if first != second {
		t.Error("acquire created a second run for the same session")
	}

	other := registry.acquire(testSession("session-2"))
	if other == first {
		t.Error("separate sessions share a run")
	}
}

func TestRegistryDrop(t *testing.T) {
	repo := newMemRepo()
	registry := NewRegistry(repo, &stubGenerator{}, nil, time.Hour, time.Millisecond)
	defer registry.Close()

	session := testSession("session-1")
	first := registry.acquire(session)
	registry.Drop("session-1")

	second := registry.acquire(session)
	if second == first {
		t.Error("dropped run was reused")
	}
}

func TestRunBroadcastsAndPersistsInOrder(t *testing.T) {
	repo := newMemRepo()
	registry := NewRegistry(repo, &stubGenerator{}, nil, time.Hour, time.Millisecond)
	defer registry.Close()

	rn := registry.acquire(testSession("session-1"))
	frames := rn.subscribe()
	defer rn.unsubscribe(frames)

	const count = 5
	for i := 0; i < count; i++ {
		rn.Utterance(domain.Utterance{
			ID:        fmt.Sprintf("u-%d", i),
			SessionID: "session-1",
			Content:   fmt.Sprintf("発言その%d", i),
		})
	}

	for i := 0; i < count; i++ {
		select {
		case data := <-frames:
			var frame struct {
				Type      string           `json:"type"`
				Utterance domain.Utterance `json:"utterance"`
			}
			if err := json.Unmarshal(data, &frame); err != nil {
				t.Fatalf("unmarshal frame: %v", err)
			}
			if frame.Type != "utterance" {
				t.Fatalf("frame type = %q, want utterance", frame.Type)
			}
			if want := fmt.Sprintf("u-%d", i); frame.Utterance.ID != want {
				t.Errorf("frame %d = %q, want %q", i, frame.Utterance.ID, want)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for frame")
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		stored, _ := repo.ListUtterances(context.Background(), "session-1")
		if len(stored) == count {
			for i, u := range stored {
				if want := fmt.Sprintf("u-%d", i); u.ID != want {
					t.Errorf("persisted order broken at %d: got %q, want %q", i, u.ID, want)
				}
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("persisted %d utterances, want %d", len(stored), count)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRunPausesWhenLastViewerLeaves(t *testing.T) {
	repo := newMemRepo()
	registry := NewRegistry(repo, &stubGenerator{}, nil, 2*time.Millisecond, time.Millisecond)
	defer registry.Close()

	session := testSession("session-1")
	rn := registry.acquire(session)
	frames := rn.subscribe()
	rn.start()

	deadline := time.Now().Add(2 * time.Second)
	for rn.sim.State().ElapsedMinutes < 1 {
		if time.Now().After(deadline) {
			t.Fatal("simulation never advanced")
		}
		time.Sleep(2 * time.Millisecond)
	}

	rn.unsubscribe(frames)
	time.Sleep(10 * time.Millisecond) // let any in-flight tick drain
	settled := rn.sim.State().ElapsedMinutes
	time.Sleep(30 * time.Millisecond)
	if got := rn.sim.State().ElapsedMinutes; got != settled {
		t.Errorf("simulation still advancing with zero viewers: %v -> %v simulated minutes", settled, got)
	}

	// A returning viewer resumes the same run from where it paused.
	frames = rn.subscribe()
	defer rn.unsubscribe(frames)
	if again := registry.acquire(session); again != rn {
		t.Fatal("paused run was replaced")
	}
	rn.start()

	deadline = time.Now().Add(2 * time.Second)
	for rn.sim.State().ElapsedMinutes <= settled {
		if time.Now().After(deadline) {
			t.Fatal("simulation did not resume for the returning viewer")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestLessonEndRemovesRun(t *testing.T) {
	repo := newMemRepo()
	registry := NewRegistry(repo, &stubGenerator{}, nil, 2*time.Millisecond, time.Millisecond)
	defer registry.Close()

	session := testSession("session-1")
	rn := registry.acquire(session)
	frames := rn.subscribe()
	defer rn.unsubscribe(frames)
	rn.start()

	deadline := time.Now().Add(10 * time.Second)
	for {
		registry.mu.Lock()
		_, present := registry.runs[session.ID]
		registry.mu.Unlock()
		if !present {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("finished run was never removed from the registry")
		}
		time.Sleep(5 * time.Millisecond)
	}

	fresh := registry.acquire(session)
	if fresh == rn {
		t.Fatal("acquire returned the finished run")
	}
	if got := fresh.sim.State().ElapsedMinutes; got != 0 {
		t.Errorf("replacement run starts at %v minutes, want 0", got)
	}
}

func TestBroadcastDropsForSlowViewer(t *testing.T) {
	repo := newMemRepo()
	registry := NewRegistry(repo, &stubGenerator{}, nil, time.Hour, time.Millisecond)
	defer registry.Close()

	rn := registry.acquire(testSession("session-1"))
	frames := rn.subscribe()
	defer rn.unsubscribe(frames)

	// Never drained: the buffer fills and extra frames must be discarded
	// without blocking.
	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*2; i++ {
			rn.TimeUpdated(float64(i))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked on a slow viewer")
	}
}
