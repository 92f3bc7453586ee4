package sim

import "classim/internal/domain"

// conversationState tracks the current conversational flow.
type conversationState string

const (
	stateIdle                 conversationState = "idle"
	stateTeacherExplaining    conversationState = "teacher_explaining"
	stateTeacherAskedQuestion conversationState = "teacher_asked_question"
	stateStudentAskedQuestion conversationState = "student_asked_question"
	stateStudentAnswered      conversationState = "student_answered"
	stateStudentReacted       conversationState = "student_reacted"
)

// pendingResponder names who owes the next contextually-relevant utterance.
// At most one responder is pending at a time.
type pendingResponder string

const (
	pendingNone    pendingResponder = "none"
	pendingTeacher pendingResponder = "teacher"
	pendingStudent pendingResponder = "student"
)

// runtime is the engine's mutable state, kept in one value so each step of
// the state machine can be exercised in isolation.
type runtime struct {
	elapsedMinutes float64
	phase          domain.Phase
	playing        bool
	speed          float64
	generating     bool

	conv          conversationState
	pending       pendingResponder
	lastSpeakerID string

	explainsSinceQuestion int
}

func newRuntime() runtime {
	return runtime{
		phase:   domain.PhaseStart,
		speed:   1,
		conv:    stateIdle,
		pending: pendingNone,
	}
}

// resetConversation clears the conversational flow; called on every phase
// transition.
func (rt *runtime) resetConversation() {
	rt.conv = stateIdle
	rt.pending = pendingNone
}
