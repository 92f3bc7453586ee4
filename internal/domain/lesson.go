package domain

import "time"

// Phase is one of the six ordered segments of the 45-minute lesson timeline.
type Phase string

const (
	PhaseStart        Phase = "start"
	PhaseIntro        Phase = "intro"
	PhaseDevelopment1 Phase = "development1"
	PhaseDevelopment2 Phase = "development2"
	PhaseSummary      Phase = "summary"
	PhaseEnd          Phase = "end"
)

// Label returns the Japanese display name for the phase.
func (p Phase) Label() string {
	switch p {
	case PhaseStart:
		return "開始"
	case PhaseIntro:
		return "導入"
	case PhaseDevelopment1:
		return "展開1"
	case PhaseDevelopment2:
		return "展開2"
	case PhaseSummary:
		return "まとめ"
	default:
		return "終了"
	}
}

// SpeakerType distinguishes who produced an utterance.
type SpeakerType string

const (
	SpeakerTeacher SpeakerType = "teacher"
	SpeakerStudent SpeakerType = "student"
)

// Utterance is one emitted line of classroom dialogue. The ordered sequence of
// accepted utterances is the session transcript.
type Utterance struct {
	ID          string      `json:"id"`
	SessionID   string      `json:"sessionId"`
	SpeakerID   string      `json:"speakerId"`
	SpeakerType SpeakerType `json:"speakerType"`
	SpeakerName string      `json:"speakerName"`
	Content     string      `json:"content"`
	Timestamp   float64     `json:"timestamp"` // elapsed minutes at emission
	Phase       Phase       `json:"phase"`
}

// LessonTopic is one entry of the curriculum catalog.
type LessonTopic struct {
	ID                string     `json:"id"`
	Subject           Subject    `json:"subject"`
	SchoolType        SchoolType `json:"schoolType"`
	Grade             int        `json:"grade"`
	TopicName         string     `json:"topicName"`
	LessonGoal        string     `json:"lessonGoal"`
	IntroTask         string     `json:"introTask"`
	Development1Tasks []string   `json:"development1Tasks"`
	Development2Tasks []string   `json:"development2Tasks"`
	SummaryTask       string     `json:"summaryTask"`
}

// Session aggregates everything a simulation run needs.
type Session struct {
	ID              string     `json:"id"`
	SchoolType      SchoolType `json:"schoolType"`
	Grade           int        `json:"grade"`
	Subject         Subject    `json:"subject"`
	TopicName       string     `json:"topicName"`
	LessonGoal      string     `json:"lessonGoal"`
	Curriculum      Curriculum `json:"curriculum"`
	Teacher         Teacher    `json:"teacher"`
	Students        []Student  `json:"students"`
	GoalExplanation string     `json:"-"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// LessonState is a point-in-time snapshot of a running simulation.
type LessonState struct {
	Phase          Phase       `json:"phase"`
	ElapsedMinutes float64     `json:"elapsedMinutes"`
	Utterances     []Utterance `json:"utterances"`
}
