// Package domain defines the core types of the classroom simulation.
package domain

// SchoolType identifies the school level a session is set in.
type SchoolType string

const (
	SchoolElementary SchoolType = "elementary"
	SchoolMiddle     SchoolType = "middle"
	SchoolHigh       SchoolType = "high"
)

// Label returns the Japanese display name for the school type.
func (s SchoolType) Label() string {
	switch s {
	case SchoolElementary:
		return "小学校"
	case SchoolMiddle:
		return "中学校"
	default:
		return "高校"
	}
}

// Subject identifies a taught subject.
type Subject string

const (
	SubjectEnglish   Subject = "english"
	SubjectJapanese  Subject = "japanese"
	SubjectMath      Subject = "math"
	SubjectHistory   Subject = "history"
	SubjectScience   Subject = "science"
	SubjectGeography Subject = "geography"
)

// AllSubjects lists every subject in catalog order.
var AllSubjects = []Subject{
	SubjectEnglish, SubjectJapanese, SubjectMath,
	SubjectHistory, SubjectScience, SubjectGeography,
}

// Label returns the Japanese display name for the subject.
func (s Subject) Label() string {
	switch s {
	case SubjectEnglish:
		return "英語"
	case SubjectJapanese:
		return "国語"
	case SubjectMath:
		return "数学"
	case SubjectHistory:
		return "歴史"
	case SubjectScience:
		return "理科"
	default:
		return "地理"
	}
}

// TeacherPersonality is one of the five teacher trait archetypes.
type TeacherPersonality string

const (
	TeacherStrict     TeacherPersonality = "strict"
	TeacherGentle     TeacherPersonality = "gentle"
	TeacherPassionate TeacherPersonality = "passionate"
	TeacherCalm       TeacherPersonality = "calm"
	TeacherHumorous   TeacherPersonality = "humorous"
)

// TeachingStyle describes how a teacher runs the room.
type TeachingStyle string

const (
	StyleLecture   TeachingStyle = "lecture"
	StyleDialogue  TeachingStyle = "dialogue"
	StylePractical TeachingStyle = "practical"
)

// StudentPersonality is one of the six student trait archetypes. A session
// roster carries one student of each trait by construction convention.
type StudentPersonality string

const (
	StudentActive     StudentPersonality = "active"
	StudentPassive    StudentPersonality = "passive"
	StudentTalkative  StudentPersonality = "talkative"
	StudentSerious    StudentPersonality = "serious"
	StudentEasygoing  StudentPersonality = "easygoing"
	StudentRebellious StudentPersonality = "rebellious"
)

// ConcentrationLevel is a student's baseline attention.
type ConcentrationLevel string

const (
	ConcentrationLow    ConcentrationLevel = "low"
	ConcentrationMedium ConcentrationLevel = "medium"
	ConcentrationHigh   ConcentrationLevel = "high"
)

// FamilyEnvironment describes a character's home background.
type FamilyEnvironment string

const (
	FamilyBothParents  FamilyEnvironment = "both_parents"
	FamilySingleParent FamilyEnvironment = "single_parent"
	FamilyGrandparents FamilyEnvironment = "grandparents"
	FamilyAlone        FamilyEnvironment = "alone"
)

// PersonalityLabel returns the Japanese display name for any teacher or
// student personality value.
func PersonalityLabel(p string) string {
	labels := map[string]string{
		"strict":     "厳格",
		"gentle":     "温厚",
		"passionate": "情熱的",
		"calm":       "冷静",
		"humorous":   "ユーモラス",
		"active":     "積極的",
		"passive":    "消極的",
		"talkative":  "おしゃべり",
		"serious":    "真面目",
		"easygoing":  "マイペース",
		"rebellious": "反抗的",
	}
	return labels[p]
}

// Teacher is the session's teacher. Immutable for the session.
type Teacher struct {
	ID                string             `json:"id"`
	Name              string             `json:"name"`
	Age               int                `json:"age"`
	Gender            string             `json:"gender"`
	Personality       TeacherPersonality `json:"personality"`
	TeachingStyle     TeachingStyle      `json:"teachingStyle"`
	FamilyEnvironment FamilyEnvironment  `json:"familyEnvironment"`
	YearsOfExperience int                `json:"yearsOfExperience"`
}

// SeatPosition locates a student in the classroom grid.
type SeatPosition struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Student is one member of the session roster. Immutable for the session.
type Student struct {
	ID                string             `json:"id"`
	Name              string             `json:"name"`
	Gender            string             `json:"gender"`
	Personality       StudentPersonality `json:"personality"`
	AcademicLevel     int                `json:"academicLevel"`
	Concentration     ConcentrationLevel `json:"concentration"`
	Hobbies           []string           `json:"hobbies"`
	FavoriteSubjects  []Subject          `json:"favoriteSubjects"`
	WeakSubjects      []Subject          `json:"weakSubjects"`
	FamilyEnvironment FamilyEnvironment  `json:"familyEnvironment"`
	SeatPosition      SeatPosition       `json:"seatPosition"`
}
