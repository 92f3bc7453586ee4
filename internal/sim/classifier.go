package sim

import (
	"math/rand/v2"

	"classim/internal/domain"
	"classim/internal/llm"
)

// Explanations that must occur since the previous question before the teacher
// may ask another one.
const explainsBeforeQuestion = 2

// selectTeacherAction picks the rhetorical role of a teacher-led turn from
// per-phase probability tables. Questions are gated on enough explanations
// having happened since the last one.
func selectTeacherAction(rng *rand.Rand, phase domain.Phase, explainsSinceQuestion int) llm.TeacherAction {
	r := rng.Float64()
	canAskQuestion := explainsSinceQuestion >= explainsBeforeQuestion

	switch phase {
	case domain.PhaseStart:
		return llm.ActionExplain
	case domain.PhaseIntro:
		if canAskQuestion && r < 0.15 {
			return llm.ActionAskQuestion
		}
		return llm.ActionExplain
	case domain.PhaseDevelopment1:
		if canAskQuestion && r < 0.20 {
			return llm.ActionAskQuestion
		}
		if r < 0.35 {
			return llm.ActionRespondToClass
		}
		return llm.ActionExplain
	case domain.PhaseDevelopment2:
		if canAskQuestion && r < 0.25 {
			return llm.ActionAskQuestion
		}
		if r < 0.40 {
			return llm.ActionRespondToClass
		}
		return llm.ActionExplain
	case domain.PhaseSummary, domain.PhaseEnd:
		if r < 0.35 {
			return llm.ActionRespondToClass
		}
		return llm.ActionExplain
	default:
		return llm.ActionExplain
	}
}

// selectStudentUtterance picks the rhetorical role of a spontaneous student
// turn. Development phases suppress questions to preserve teacher airtime;
// the closing phases bias toward reactions and agreement.
func selectStudentUtterance(rng *rand.Rand, phase domain.Phase, personality domain.StudentPersonality) llm.StudentUtteranceType {
	r := rng.Float64()

	switch phase {
	case domain.PhaseDevelopment1, domain.PhaseDevelopment2:
		if personality == domain.StudentActive && r < 0.15 {
			return llm.UtteranceQuestion
		}
		if r < 0.08 {
			return llm.UtteranceQuestion
		}
		if r < 0.55 {
			return llm.UtteranceMumble
		}
		return llm.UtteranceReaction
	case domain.PhaseSummary, domain.PhaseEnd:
		if r < 0.1 {
			return llm.UtteranceQuestion
		}
		if r < 0.7 {
			return llm.UtteranceReaction
		}
		return llm.UtteranceAgree
	default:
		if r < 0.05 {
			return llm.UtteranceQuestion
		}
		if r < 0.45 {
			return llm.UtteranceMumble
		}
		return llm.UtteranceReaction
	}
}

// teacherLeadProbability is the chance that a free turn (no pending
// obligation) goes to the teacher.
func teacherLeadProbability(phase domain.Phase) float64 {
	switch phase {
	case domain.PhaseStart, domain.PhaseIntro, domain.PhaseSummary, domain.PhaseEnd:
		return 0.9
	case domain.PhaseDevelopment1:
		return 0.8
	case domain.PhaseDevelopment2:
		return 0.75
	default:
		return 0.8
	}
}

// expectedTeacherResponse describes the expected shape of a teacher turn for
// the generation prompt.
func expectedTeacherResponse(action llm.TeacherAction) string {
	switch action {
	case llm.ActionAskQuestion:
		return "直前説明に関連する確認質問を1つ出し、生徒の応答を引き出す"
	case llm.ActionRespondToStudent:
		return "生徒の直前発言に具体的に返答し、次の学習行動につなげる"
	case llm.ActionRespondToClass:
		return "生徒の反応を拾って補足し、次の活動へつなげる"
	default:
		return "前の流れを受けて説明を前進させ、授業目標に近づける"
	}
}

// expectedStudentResponse describes the expected shape of a student turn for
// the generation prompt.
func expectedStudentResponse(utterance llm.StudentUtteranceType) string {
	switch utterance {
	case llm.UtteranceAnswer:
		return "教員の直前質問に短く具体的に答える"
	case llm.UtteranceQuestion:
		return "直前説明の不明点を1点だけ質問する"
	case llm.UtteranceAgree:
		return "直前発話に短く同調する"
	case llm.UtteranceReaction:
		return "直前発話への短い反応を返す"
	default:
		return "授業内容に関連する独り言を短く述べる"
	}
}
