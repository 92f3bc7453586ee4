package sim

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"classim/internal/domain"
	"classim/internal/llm"
)

// stubGenerator returns deterministic unique lines, or a fixed line when set.
type stubGenerator struct {
	mu    sync.Mutex
	n     int
	fixed string
}

func (g *stubGenerator) next() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return g.n
}

func (g *stubGenerator) TeacherUtterance(_ context.Context, _ llm.TeacherTurnRequest) string {
	if g.fixed != "" {
		return g.fixed
	}
	return fmt.Sprintf("ここが今日の説明ポイントその%dです。順番に確認していきましょう。", g.next())
}

func (g *stubGenerator) StudentUtterance(_ context.Context, _ llm.StudentTurnRequest) string {
	if g.fixed != "" {
		return g.fixed
	}
	return fmt.Sprintf("なるほど、ポイント%dは理解できたと思います。", g.next())
}

type eventRecorder struct {
	mu         sync.Mutex
	utterances []domain.Utterance
	phases     []domain.Phase
	times      []float64
	ended      int
	endedCh    chan struct{}
}

func newEventRecorder() *eventRecorder {
	return &eventRecorder{endedCh: make(chan struct{})}
}

func (r *eventRecorder) Utterance(u domain.Utterance) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.utterances = append(r.utterances, u)
}

func (r *eventRecorder) PhaseChanged(phase domain.Phase) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phases = append(r.phases, phase)
}

func (r *eventRecorder) TimeUpdated(elapsed float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.times = append(r.times, elapsed)
}

func (r *eventRecorder) LessonEnded() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ended++
	if r.ended == 1 {
		close(r.endedCh)
	}
}

func (r *eventRecorder) utteranceCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.utterances)
}

func (r *eventRecorder) timeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.times)
}

func testSession() domain.Session {
	return domain.Session{
		ID:         "session-1",
		SchoolType: domain.SchoolMiddle,
		Grade:      2,
		Subject:    domain.SubjectMath,
		TopicName:  "連立方程式",
		LessonGoal: "連立方程式を解けるようになる",
		Teacher: domain.Teacher{
			ID:          "teacher-1",
			Name:        "田中",
			Age:         40,
			Personality: domain.TeacherCalm,
		},
		Students: testStudents(),
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestSimulatorOpeningSequence(t *testing.T) {
	t.Parallel()

	rec := newEventRecorder()
	s := New(Config{
		Session:      testSession(),
		Generator:    &stubGenerator{},
		Events:       rec,
		Rand:         testRand(),
		TickInterval: time.Hour, // keep ticks out of the way
		OpeningDelay: time.Millisecond,
	})
	defer s.Close()

	s.Start()
	waitFor(t, 2*time.Second, func() bool { return rec.utteranceCount() >= 4 })

	transcript := s.Transcript()
	wantLines := []string{"起立！", "礼！", "着席！", "今日の目標は「連立方程式を解けるようになる」です。"}
	for i, want := range wantLines {
		if transcript[i].Content != want {
			t.Errorf("opening line %d = %q, want %q", i, transcript[i].Content, want)
		}
	}

	for i := 0; i < 3; i++ {
		if transcript[i].SpeakerType != domain.SpeakerStudent {
			t.Errorf("opening line %d spoken by %q, want student", i, transcript[i].SpeakerType)
		}
		if transcript[i].SpeakerID != "active" {
			t.Errorf("opening line %d spoken by %q, want the active student", i, transcript[i].SpeakerID)
		}
	}
	if transcript[3].SpeakerType != domain.SpeakerTeacher {
		t.Errorf("goal line spoken by %q, want teacher", transcript[3].SpeakerType)
	}
}

func TestSimulatorRunsToLessonEnd(t *testing.T) {
	t.Parallel()

	rec := newEventRecorder()
	s := New(Config{
		Session:      testSession(),
		Generator:    &stubGenerator{},
		Events:       rec,
		Rand:         testRand(),
		TickInterval: 2 * time.Millisecond,
		OpeningDelay: time.Millisecond,
	})
	defer s.Close()

	s.Start()

	select {
	case <-rec.endedCh:
	case <-time.After(10 * time.Second):
		t.Fatal("lesson never ended")
	}

	// The clock must stop at the end of the lesson.
	settled := rec.timeCount()
	time.Sleep(20 * time.Millisecond)
	if got := rec.timeCount(); got != settled {
		t.Errorf("time kept advancing after lesson end: %d -> %d updates", settled, got)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.ended != 1 {
		t.Errorf("lesson ended %d times, want exactly once", rec.ended)
	}

	for i, tm := range rec.times {
		want := 0.5 * float64(i+1)
		if tm != want {
			t.Fatalf("time update %d = %v, want %v", i, tm, want)
		}
	}
	if last := rec.times[len(rec.times)-1]; last != sessionLengthMinutes {
		t.Errorf("final time update = %v, want %v", last, sessionLengthMinutes)
	}

	wantPhases := []domain.Phase{
		domain.PhaseIntro, domain.PhaseDevelopment1, domain.PhaseDevelopment2,
		domain.PhaseSummary, domain.PhaseEnd,
	}
	if len(rec.phases) != len(wantPhases) {
		t.Fatalf("phase changes = %v, want %v", rec.phases, wantPhases)
	}
	for i, want := range wantPhases {
		if rec.phases[i] != want {
			t.Errorf("phase change %d = %q, want %q", i, rec.phases[i], want)
		}
	}

	state := s.State()
	if state.ElapsedMinutes != sessionLengthMinutes {
		t.Errorf("final elapsed = %v, want %v", state.ElapsedMinutes, sessionLengthMinutes)
	}
	if state.Phase != domain.PhaseEnd {
		t.Errorf("final phase = %q, want end", state.Phase)
	}

	foundTransition := false
	for _, u := range state.Utterances {
		if strings.HasPrefix(u.Content, "展開に入ります。") {
			foundTransition = true
			break
		}
	}
	if !foundTransition {
		t.Error("no phase transition line in transcript")
	}
}

func TestSimulatorSeek(t *testing.T) {
	t.Parallel()

	rec := newEventRecorder()
	s := New(Config{
		Session:   testSession(),
		Generator: &stubGenerator{},
		Events:    rec,
		Rand:      testRand(),
	})
	defer s.Close()

	s.Seek(30)

	rec.mu.Lock()
	if len(rec.times) != 1 || rec.times[0] != 30 {
		t.Errorf("time updates = %v, want [30]", rec.times)
	}
	if len(rec.phases) != 1 || rec.phases[0] != domain.PhaseDevelopment2 {
		t.Errorf("phase changes = %v, want [development2]", rec.phases)
	}
	rec.mu.Unlock()

	if got := len(s.Transcript()); got != 0 {
		t.Errorf("seek added %d transcript entries", got)
	}

	state := s.State()
	if state.ElapsedMinutes != 30 || state.Phase != domain.PhaseDevelopment2 {
		t.Errorf("state after seek = %v min / %q, want 30 / development2", state.ElapsedMinutes, state.Phase)
	}
}

func TestSimulatorPauseStopsClock(t *testing.T) {
	t.Parallel()

	rec := newEventRecorder()
	s := New(Config{
		Session:      testSession(),
		Generator:    &stubGenerator{},
		Events:       rec,
		Rand:         testRand(),
		TickInterval: 2 * time.Millisecond,
		OpeningDelay: time.Millisecond,
	})
	defer s.Close()

	s.Start()
	waitFor(t, 2*time.Second, func() bool { return rec.timeCount() >= 4 })

	s.SetPlayback(false, 1)
	time.Sleep(10 * time.Millisecond) // let any in-flight tick drain
	settled := rec.timeCount()
	time.Sleep(20 * time.Millisecond)
	if got := rec.timeCount(); got != settled {
		t.Errorf("time kept advancing while paused: %d -> %d updates", settled, got)
	}

	s.SetPlayback(true, 2)
	waitFor(t, 2*time.Second, func() bool { return rec.timeCount() > settled })
}

// silentGenerator models a backend that never produces usable content.
type silentGenerator struct{}

func (silentGenerator) TeacherUtterance(context.Context, llm.TeacherTurnRequest) string { return "" }
func (silentGenerator) StudentUtterance(context.Context, llm.StudentTurnRequest) string { return "" }

// trackingGenerator records which utterance type each student turn asked for.
type trackingGenerator struct {
	stub     stubGenerator
	mu       sync.Mutex
	requests []llm.StudentUtteranceType
}

func (g *trackingGenerator) TeacherUtterance(ctx context.Context, req llm.TeacherTurnRequest) string {
	return g.stub.TeacherUtterance(ctx, req)
}

func (g *trackingGenerator) StudentUtterance(ctx context.Context, req llm.StudentTurnRequest) string {
	g.mu.Lock()
	g.requests = append(g.requests, req.Utterance)
	g.mu.Unlock()
	return g.stub.StudentUtterance(ctx, req)
}

func TestTickPhaseChangeResetsConversation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		conv    conversationState
		pending pendingResponder
	}{
		{"student answer owed", stateTeacherAskedQuestion, pendingStudent},
		{"teacher answer owed", stateStudentAskedQuestion, pendingTeacher},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			rec := newEventRecorder()
			s := New(Config{
				Session:      testSession(),
				Generator:    silentGenerator{},
				Events:       rec,
				Rand:         testRand(),
				TickInterval: time.Hour,
			})
			defer s.Close()

			s.mu.Lock()
			s.rt.playing = true
			s.rt.elapsedMinutes = 24.5
			s.rt.phase = domain.PhaseDevelopment1
			s.rt.conv = tc.conv
			s.rt.pending = tc.pending
			s.mu.Unlock()

			s.tick()

			rec.mu.Lock()
			phases := append([]domain.Phase(nil), rec.phases...)
			rec.mu.Unlock()
			if len(phases) != 1 || phases[0] != domain.PhaseDevelopment2 {
				t.Fatalf("phase changes = %v, want [development2]", phases)
			}

			transcript := s.Transcript()
			if len(transcript) != 1 || !strings.HasPrefix(transcript[0].Content, "次は演習です。") {
				t.Errorf("transition line missing, transcript = %v", transcript)
			}

			s.mu.Lock()
			defer s.mu.Unlock()
			if s.rt.conv != stateIdle {
				t.Errorf("conversation state after phase change = %v, want idle", s.rt.conv)
			}
			if s.rt.pending != pendingNone {
				t.Errorf("pending responder after phase change = %v, want none", s.rt.pending)
			}
		})
	}
}

func TestTeacherQuestionLeavesStudentResponseOwed(t *testing.T) {
	t.Parallel()

	s := New(Config{
		Session:      testSession(),
		Generator:    &stubGenerator{},
		Events:       newEventRecorder(),
		Rand:         testRand(),
		TickInterval: time.Hour,
	})
	defer s.Close()

	s.mu.Lock()
	s.rt.phase = domain.PhaseDevelopment1
	s.mu.Unlock()

	questions := 0
	for i := 0; i < 300; i++ {
		s.mu.Lock()
		s.rt.resetConversation()
		s.rt.explainsSinceQuestion = explainsBeforeQuestion
		s.transcript = nil
		s.mu.Unlock()

		s.teacherLedTurn()

		s.mu.Lock()
		conv, pending, explains := s.rt.conv, s.rt.pending, s.rt.explainsSinceQuestion
		s.mu.Unlock()

		if conv != stateTeacherAskedQuestion {
			continue
		}
		questions++
		if pending != pendingStudent {
			t.Fatalf("question %d left pending responder %v, want student", questions, pending)
		}
		if explains != 0 {
			t.Fatalf("question %d left explanation count %d, want 0", questions, explains)
		}
	}
	if questions == 0 {
		t.Fatal("no questions asked in 300 teacher turns")
	}
}

func TestStudentAnswersOpenQuestion(t *testing.T) {
	t.Parallel()

	gen := &trackingGenerator{}
	s := New(Config{
		Session:      testSession(),
		Generator:    gen,
		Events:       newEventRecorder(),
		Rand:         testRand(),
		TickInterval: time.Hour,
	})
	defer s.Close()

	for i := 0; i < 50; i++ {
		s.mu.Lock()
		s.rt.phase = domain.PhaseDevelopment1
		s.rt.conv = stateTeacherAskedQuestion
		s.rt.pending = pendingStudent
		s.transcript = nil
		s.mu.Unlock()

		s.generateTurn()

		s.mu.Lock()
		conv, pending := s.rt.conv, s.rt.pending
		s.mu.Unlock()

		if conv != stateStudentAnswered {
			t.Fatalf("turn %d: conversation state = %v, want student answered", i, conv)
		}
		if pending == pendingStudent {
			t.Fatalf("turn %d: another student response owed after an answer", i)
		}
	}

	gen.mu.Lock()
	defer gen.mu.Unlock()
	for i, u := range gen.requests {
		if u != llm.UtteranceAnswer {
			t.Errorf("student turn %d generated %q, want answer", i, u)
		}
	}
}

func TestTeacherResponseClearsConversation(t *testing.T) {
	t.Parallel()

	s := New(Config{
		Session:      testSession(),
		Generator:    &stubGenerator{},
		Events:       newEventRecorder(),
		Rand:         testRand(),
		TickInterval: time.Hour,
	})
	defer s.Close()

	s.mu.Lock()
	s.rt.phase = domain.PhaseDevelopment1
	s.rt.conv = stateStudentAskedQuestion
	s.rt.pending = pendingTeacher
	s.mu.Unlock()

	s.generateTurn()

	transcript := s.Transcript()
	if len(transcript) != 1 || transcript[0].SpeakerType != domain.SpeakerTeacher {
		t.Fatalf("transcript = %v, want a single teacher reply", transcript)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rt.conv != stateIdle {
		t.Errorf("conversation state after teacher reply = %v, want idle", s.rt.conv)
	}
	if s.rt.pending != pendingNone {
		t.Errorf("pending responder after teacher reply = %v, want none", s.rt.pending)
	}
}

func TestSimulatorSuppressesRepeatedContent(t *testing.T) {
	t.Parallel()

	rec := newEventRecorder()
	s := New(Config{
		Session:      testSession(),
		Generator:    &stubGenerator{fixed: "今日はずっと同じ話をします。大事なことなので繰り返します。"},
		Events:       rec,
		Rand:         testRand(),
		TickInterval: 2 * time.Millisecond,
		OpeningDelay: time.Millisecond,
	})
	defer s.Close()

	s.Start()
	waitFor(t, 2*time.Second, func() bool { return rec.utteranceCount() >= 10 })
	s.Stop()

	transcript := s.Transcript()
	for i := range transcript {
		start := i - duplicateWindow
		if start < 0 {
			start = 0
		}
		for j := start; j < i; j++ {
			if normalizeUtterance(transcript[i].Content) == normalizeUtterance(transcript[j].Content) {
				t.Fatalf("duplicate within window: %q at %d and %d", transcript[i].Content, j, i)
			}
		}
	}
}
