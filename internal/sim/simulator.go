package sim

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"classim/internal/domain"
	"classim/internal/llm"
)

const (
	sessionLengthMinutes = 45.0
	tickStepMinutes      = 0.5

	defaultTickInterval = 2 * time.Second
	defaultOpeningDelay = time.Second

	// Non-question teacher turns may regenerate this many times before the
	// tick gives up; questions get a single attempt.
	teacherRetryAttempts = 3

	teacherHistoryWindow = 12
	studentHistoryWindow = 10
)

// Generator is the external generation collaborator. Implementations return
// an empty string to signal failure; the engine recovers locally.
type Generator interface {
	TeacherUtterance(ctx context.Context, req llm.TeacherTurnRequest) string
	StudentUtterance(ctx context.Context, req llm.StudentTurnRequest) string
}

// Events receives engine notifications. Implementations must not block the
// simulation loop; failures are theirs to handle.
type Events interface {
	Utterance(u domain.Utterance)
	PhaseChanged(phase domain.Phase)
	TimeUpdated(elapsedMinutes float64)
	LessonEnded()
}

// Config assembles a Simulator.
type Config struct {
	Session   domain.Session
	Generator Generator
	Events    Events

	// Rand seeds all probabilistic decisions; nil uses a fresh PCG source.
	Rand   *rand.Rand
	Logger *slog.Logger

	// TickInterval is divided by the playback speed; zero means 2s.
	TickInterval time.Duration
	// OpeningDelay paces the scripted opening lines; zero means 1s.
	OpeningDelay time.Duration
}

// Simulator drives one lesson session: a periodic tick advances simulated
// time by half a minute and produces at most one conversational turn. One
// Simulator per session; instances share no state.
type Simulator struct {
	session      domain.Session
	generator    Generator
	events       Events
	logger       *slog.Logger
	tickInterval time.Duration
	openingDelay time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	rng        *rand.Rand
	rt         runtime
	guard      repetitionGuard
	transcript []domain.Utterance
	cancelTick chan struct{}
}

// New creates a Simulator for a session. Call Start to begin ticking.
func New(cfg Config) *Simulator {
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tickInterval := cfg.TickInterval
	if tickInterval <= 0 {
		tickInterval = defaultTickInterval
	}
	openingDelay := cfg.OpeningDelay
	if openingDelay <= 0 {
		openingDelay = defaultOpeningDelay
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Simulator{
		session:      cfg.Session,
		generator:    cfg.Generator,
		events:       cfg.Events,
		logger:       logger,
		tickInterval: tickInterval,
		openingDelay: openingDelay,
		ctx:          ctx,
		cancel:       cancel,
		rng:          rng,
		rt:           newRuntime(),
	}
}

// Start begins the scripted opening sequence and schedules the clock loop.
// Ticks are held back until the opening finishes so its lines always come
// first.
func (s *Simulator) Start() {
	s.mu.Lock()
	s.rt.playing = true
	s.rt.generating = true
	s.rescheduleLocked()
	s.mu.Unlock()

	go s.runOpening()
}

// SetPlayback pauses/resumes the clock and changes its speed. The tick timer
// is rebuilt so at most one tick is ever pending.
func (s *Simulator) SetPlayback(isPlaying bool, speed float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if speed <= 0 {
		speed = 1
	}
	s.rt.playing = isPlaying
	s.rt.speed = speed
	s.rescheduleLocked()
}

// Seek jumps simulated time, recomputes the phase and re-emits time/phase
// notifications. The transcript is untouched.
func (s *Simulator) Seek(minutes float64) {
	s.mu.Lock()
	s.rt.elapsedMinutes = minutes
	s.rt.phase = PhaseFor(minutes)
	phase := s.rt.phase
	s.mu.Unlock()

	s.events.TimeUpdated(minutes)
	s.events.PhaseChanged(phase)
}

// Stop halts ticking. Idempotent; the transcript stays readable.
func (s *Simulator) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rt.playing = false
	if s.cancelTick != nil {
		close(s.cancelTick)
		s.cancelTick = nil
	}
}

// Resume restarts the clock after Stop, keeping the current speed. No-op
// while already playing.
func (s *Simulator) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rt.playing {
		return
	}
	s.rt.playing = true
	s.rescheduleLocked()
}

// Close stops the simulator and aborts any in-flight generation call.
func (s *Simulator) Close() {
	s.Stop()
	s.cancel()
}

// Transcript returns a copy of the accepted utterances in emission order.
func (s *Simulator) Transcript() []domain.Utterance {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Utterance, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// State returns a point-in-time snapshot of the simulation.
func (s *Simulator) State() domain.LessonState {
	s.mu.Lock()
	defer s.mu.Unlock()
	utterances := make([]domain.Utterance, len(s.transcript))
	copy(utterances, s.transcript)
	return domain.LessonState{
		Phase:          s.rt.phase,
		ElapsedMinutes: s.rt.elapsedMinutes,
		Utterances:     utterances,
	}
}

// rescheduleLocked rebuilds the tick timer for the current speed. Must be
// called with mu held.
func (s *Simulator) rescheduleLocked() {
	if s.cancelTick != nil {
		close(s.cancelTick)
		s.cancelTick = nil
	}

	cancel := make(chan struct{})
	s.cancelTick = cancel
	interval := time.Duration(float64(s.tickInterval) / s.rt.speed)
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.tick()
			case <-cancel:
				return
			}
		}
	}()
}

func (s *Simulator) runOpening() {
	rep := s.classRepresentative()
	for _, line := range []string{"起立！", "礼！", "着席！"} {
		s.addUtterance(rep.ID, domain.SpeakerStudent, rep.Name, line, domain.PhaseStart)
		s.pause()
	}

	goal := fmt.Sprintf("今日の目標は「%s」です。", s.session.LessonGoal)
	s.addUtterance(s.session.Teacher.ID, domain.SpeakerTeacher, s.session.Teacher.Name, goal, domain.PhaseStart)
	s.pause()

	s.mu.Lock()
	s.rt.resetConversation()
	s.rt.generating = false
	s.mu.Unlock()
}

// classRepresentative gives the opening commands; the active student by
// convention, else the first seat.
func (s *Simulator) classRepresentative() domain.Student {
	for _, st := range s.session.Students {
		if st.Personality == domain.StudentActive {
			return st
		}
	}
	return s.session.Students[0]
}

func (s *Simulator) pause() {
	s.mu.Lock()
	speed := s.rt.speed
	s.mu.Unlock()
	time.Sleep(time.Duration(float64(s.openingDelay) / speed))
}

// tick advances simulated time by half a minute and produces at most one
// turn. The generating flag keeps ticks from overlapping a slow generation
// call.
func (s *Simulator) tick() {
	s.mu.Lock()
	if !s.rt.playing || s.rt.generating {
		s.mu.Unlock()
		return
	}
	s.rt.generating = true
	s.rt.elapsedMinutes += tickStepMinutes
	elapsed := s.rt.elapsedMinutes
	newPhase := PhaseFor(elapsed)
	phaseChanged := newPhase != s.rt.phase
	if phaseChanged {
		s.rt.phase = newPhase
	}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.rt.generating = false
		s.mu.Unlock()
	}()

	s.events.TimeUpdated(elapsed)

	if phaseChanged {
		s.events.PhaseChanged(newPhase)
		s.addUtterance(s.session.Teacher.ID, domain.SpeakerTeacher, s.session.Teacher.Name,
			s.phaseTransitionMessage(newPhase), newPhase)
		s.mu.Lock()
		s.rt.resetConversation()
		s.mu.Unlock()
	}

	if elapsed >= sessionLengthMinutes {
		s.Stop()
		s.events.LessonEnded()
		return
	}

	s.generateTurn()
}

// generateTurn resolves who owes a response, or probabilistically hands the
// free turn to the teacher or a student.
func (s *Simulator) generateTurn() {
	s.mu.Lock()
	pending := s.rt.pending
	s.mu.Unlock()

	switch pending {
	case pendingTeacher:
		s.teacherResponseTurn()
	case pendingStudent:
		s.studentResponseTurn()
	default:
		s.mu.Lock()
		force := s.lastTwoTurnsByStudentsLocked()
		lead := teacherLeadProbability(s.rt.phase)
		r := s.rng.Float64()
		s.mu.Unlock()

		if force || r < lead {
			s.teacherLedTurn()
		} else {
			s.studentLedTurn()
		}
	}
}

// lastTwoTurnsByStudentsLocked reports whether the last two transcript
// entries are both student turns; if so, the next turn is forced to the
// teacher to prevent student-only runs.
func (s *Simulator) lastTwoTurnsByStudentsLocked() bool {
	n := len(s.transcript)
	if n < 2 {
		return false
	}
	return s.transcript[n-1].SpeakerType == domain.SpeakerStudent &&
		s.transcript[n-2].SpeakerType == domain.SpeakerStudent
}

func (s *Simulator) teacherLedTurn() {
	s.mu.Lock()
	action := selectTeacherAction(s.rng, s.rt.phase, s.rt.explainsSinceQuestion)
	s.mu.Unlock()

	content := s.teacherContentWithRetry(action)
	if content == "" {
		return
	}

	if !s.addUtterance(s.session.Teacher.ID, domain.SpeakerTeacher, s.session.Teacher.Name, content, s.currentPhase()) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if action == llm.ActionAskQuestion {
		s.rt.conv = stateTeacherAskedQuestion
		s.rt.pending = pendingStudent
		s.rt.explainsSinceQuestion = 0
		return
	}

	s.rt.conv = stateTeacherExplaining
	s.rt.explainsSinceQuestion++
	// Occasionally a student reacts to the explanation.
	if s.rng.Float64() < 0.15 {
		s.rt.pending = pendingStudent
	}
}

func (s *Simulator) teacherResponseTurn() {
	content := s.teacherContentWithRetry(llm.ActionRespondToStudent)
	if content == "" {
		return
	}

	if !s.addUtterance(s.session.Teacher.ID, domain.SpeakerTeacher, s.session.Teacher.Name, content, s.currentPhase()) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rt.resetConversation()
}

// teacherContentWithRetry regenerates non-question teacher content when it
// echoes recent explanations. Questions get a single attempt.
func (s *Simulator) teacherContentWithRetry(action llm.TeacherAction) string {
	maxAttempts := teacherRetryAttempts
	if action == llm.ActionAskQuestion {
		maxAttempts = 1
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		content := s.generator.TeacherUtterance(s.ctx, s.teacherRequest(action))
		if content == "" {
			continue
		}
		if action != llm.ActionAskQuestion && s.teacherRepeated(content) {
			continue
		}
		return content
	}
	return ""
}

func (s *Simulator) teacherRepeated(content string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.guard.isTeacherRepeated(content, s.transcript)
}

func (s *Simulator) studentLedTurn() {
	s.mu.Lock()
	student := weightedPick(s.rng, s.session.Students, func(st domain.Student) float64 {
		return spontaneousWeight(st, s.rt.lastSpeakerID)
	})

	var utterance llm.StudentUtteranceType
	if s.rt.conv == stateStudentReacted {
		// After another student's reaction, agreement is the likeliest move.
		if s.rng.Float64() < 0.6 {
			utterance = llm.UtteranceAgree
		} else {
			utterance = llm.UtteranceMumble
		}
	} else {
		utterance = selectStudentUtterance(s.rng, s.rt.phase, student.Personality)
	}
	s.mu.Unlock()

	content := s.generator.StudentUtterance(s.ctx, s.studentRequest(student, utterance))
	if content == "" {
		return
	}

	if !s.addUtterance(student.ID, domain.SpeakerStudent, student.Name, content, s.currentPhase()) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	switch utterance {
	case llm.UtteranceQuestion:
		s.rt.conv = stateStudentAskedQuestion
		s.rt.pending = pendingTeacher
	case llm.UtteranceReaction, llm.UtteranceAgree:
		s.rt.conv = stateStudentReacted
		// A chain of reactions is possible but the teacher's turn is favored.
		if s.rng.Float64() < 0.15 {
			s.rt.pending = pendingStudent
		} else {
			s.rt.pending = pendingNone
		}
	default:
		s.rt.conv = stateIdle
		s.rt.pending = pendingNone
	}
}

func (s *Simulator) studentResponseTurn() {
	s.mu.Lock()
	student := weightedPick(s.rng, s.session.Students, func(st domain.Student) float64 {
		return answerWeight(st, s.rt.lastSpeakerID)
	})

	var utterance llm.StudentUtteranceType
	switch s.rt.conv {
	case stateTeacherAskedQuestion:
		utterance = llm.UtteranceAnswer
	case stateStudentReacted:
		if s.rng.Float64() < 0.5 {
			utterance = llm.UtteranceAgree
		} else {
			utterance = llm.UtteranceReaction
		}
	default:
		utterance = llm.UtteranceReaction
	}
	s.mu.Unlock()

	content := s.generator.StudentUtterance(s.ctx, s.studentRequest(student, utterance))
	if content == "" {
		return
	}

	if !s.addUtterance(student.ID, domain.SpeakerStudent, student.Name, content, s.currentPhase()) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if utterance == llm.UtteranceAnswer {
		s.rt.conv = stateStudentAnswered
		// The teacher sometimes follows up before returning to explanation.
		if s.rng.Float64() < 0.25 {
			s.rt.pending = pendingTeacher
		} else {
			s.rt.pending = pendingNone
		}
		return
	}
	s.rt.conv = stateStudentReacted
	s.rt.pending = pendingNone
}

// addUtterance runs the candidate through the repetition guard, appends it to
// the transcript and notifies listeners. Returns false when the turn was
// dropped as an unrecoverable duplicate.
func (s *Simulator) addUtterance(speakerID string, speakerType domain.SpeakerType, speakerName, content string, phase domain.Phase) bool {
	s.mu.Lock()
	final, ok := s.guard.review(content, speakerType, phase, s.transcript)
	if !ok {
		s.mu.Unlock()
		s.logger.Debug("utterance dropped as duplicate",
			"session_id", s.session.ID, "speaker", speakerName)
		return false
	}

	u := domain.Utterance{
		ID:          uuid.NewString(),
		SessionID:   s.session.ID,
		SpeakerID:   speakerID,
		SpeakerType: speakerType,
		SpeakerName: speakerName,
		Content:     final,
		Timestamp:   s.rt.elapsedMinutes,
		Phase:       phase,
	}
	s.transcript = append(s.transcript, u)
	s.rt.lastSpeakerID = speakerID
	s.mu.Unlock()

	s.events.Utterance(u)
	return true
}

func (s *Simulator) currentPhase() domain.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rt.phase
}

func (s *Simulator) teacherRequest(action llm.TeacherAction) llm.TeacherTurnRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return llm.TeacherTurnRequest{
		Teacher:          s.session.Teacher,
		Subject:          s.session.Subject,
		LessonGoal:       s.session.LessonGoal,
		PhaseCurriculum:  s.phaseCurriculumPromptLocked(),
		Grade:            s.session.Grade,
		SchoolType:       s.session.SchoolType,
		Phase:            s.rt.phase,
		ElapsedMinutes:   s.rt.elapsedMinutes,
		History:          s.historyLocked(teacherHistoryWindow),
		LatestUtterance:  s.latestUtteranceLocked(),
		ExpectedResponse: expectedTeacherResponse(action),
		Action:           action,
	}
}

func (s *Simulator) studentRequest(student domain.Student, utterance llm.StudentUtteranceType) llm.StudentTurnRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return llm.StudentTurnRequest{
		Student:          student,
		Subject:          s.session.Subject,
		Grade:            s.session.Grade,
		SchoolType:       s.session.SchoolType,
		Phase:            s.rt.phase,
		ElapsedMinutes:   s.rt.elapsedMinutes,
		History:          s.historyLocked(studentHistoryWindow),
		LatestUtterance:  s.latestUtteranceLocked(),
		ExpectedResponse: expectedStudentResponse(utterance),
		Utterance:        utterance,
	}
}

// historyLocked renders the recent transcript window for prompts.
func (s *Simulator) historyLocked(count int) string {
	start := len(s.transcript) - count
	if start < 0 {
		start = 0
	}

	var b strings.Builder
	for i, u := range s.transcript[start:] {
		if i > 0 {
			b.WriteByte('\n')
		}
		minutes := int(u.Timestamp)
		seconds := int((u.Timestamp - float64(minutes)) * 60)
		b.WriteString(fmt.Sprintf("[%02d:%02d](%s) %s %s: %s",
			minutes, seconds, u.Phase, speakerLabel(u.SpeakerType), u.SpeakerName, u.Content))
	}
	return b.String()
}

func (s *Simulator) latestUtteranceLocked() string {
	if len(s.transcript) == 0 {
		return ""
	}
	last := s.transcript[len(s.transcript)-1]
	return fmt.Sprintf("%s %s: %s", speakerLabel(last.SpeakerType), last.SpeakerName, last.Content)
}

func speakerLabel(t domain.SpeakerType) string {
	if t == domain.SpeakerTeacher {
		return "教員"
	}
	return "生徒"
}

func (s *Simulator) phaseCurriculumPromptLocked() string {
	plan := s.session.Curriculum.PlanFor(s.rt.phase)
	if plan == nil {
		return "このフェーズで必要な学習活動を進め、目標達成につなげる。"
	}

	return strings.Join([]string{
		"本時目標の詳細説明: " + s.session.Curriculum.GoalExplanation,
		"フェーズ名: " + plan.Title,
		"到達目標: " + plan.Objective,
		"教員の活動: " + strings.Join(plan.TeacherActions, " / "),
		"生徒の活動: " + strings.Join(plan.StudentActions, " / "),
		"具体的な問題・課題: " + strings.Join(plan.Tasks, " / "),
		"確認観点: " + plan.Checkpoint,
	}, "\n")
}

// phaseTransitionMessage is the scripted teacher line emitted when the
// timeline crosses into a new phase.
func (s *Simulator) phaseTransitionMessage(phase domain.Phase) string {
	plan := s.session.Curriculum.PlanFor(phase)
	objective := ""
	checkpoint := ""
	if plan != nil {
		objective = plan.Objective
		checkpoint = plan.Checkpoint
	}

	switch phase {
	case domain.PhaseStart:
		return fmt.Sprintf("それでは始めます。今日の目標は「%s」です。", s.session.LessonGoal)
	case domain.PhaseIntro:
		if objective == "" {
			objective = "前提となる内容を確認してから本題に入ります。"
		}
		return "導入に入ります。" + objective
	case domain.PhaseDevelopment1:
		if objective == "" {
			objective = "大事なポイントを順番に説明します。"
		}
		return "展開に入ります。" + objective
	case domain.PhaseDevelopment2:
		if objective == "" {
			objective = "今学んだ内容を使って考えてみましょう。"
		}
		return "次は演習です。" + objective
	case domain.PhaseSummary:
		if checkpoint == "" {
			checkpoint = "今日の目標に対して何ができるようになったか確認します。"
		}
		return "最後にまとめです。" + checkpoint
	default:
		if checkpoint == "" {
			checkpoint = "学んだことを振り返って次につなげましょう。"
		}
		return "授業を終えます。" + checkpoint
	}
}
