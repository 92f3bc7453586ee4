package llm

import "classim/internal/domain"

// defaultTeacherUtterance is spoken when generation fails for a teacher turn.
func defaultTeacherUtterance(phase domain.Phase, action TeacherAction) string {
	if action == ActionAskQuestion {
		return "この問題、分かる人いますか？"
	}
	if action == ActionRespondToStudent {
		return "いい質問ですね。それについて説明しましょう。"
	}

	switch phase {
	case domain.PhaseStart:
		return "はい、それでは授業を始めましょう。"
	case domain.PhaseIntro:
		return "今日は新しい内容を学んでいきます。"
	case domain.PhaseDevelopment1:
		return "ここが重要なポイントです。"
	case domain.PhaseDevelopment2:
		return "では、練習問題をやってみましょう。"
	case domain.PhaseSummary:
		return "今日学んだことをまとめると..."
	default:
		return "今日はここまでです。お疲れ様でした。"
	}
}

// defaultStudentUtterance is spoken when generation fails for a student turn
// or when the model output sounds like the teacher. Personality defaults take
// precedence; the rest fall back to grade-appropriate lines.
func defaultStudentUtterance(utterance StudentUtteranceType, schoolType domain.SchoolType, grade int, personality domain.StudentPersonality) string {
	byPersonality := map[domain.StudentPersonality]map[StudentUtteranceType]string{
		domain.StudentActive: {
			UtteranceQuestion: "はい！先生、質問です！",
			UtteranceAnswer:   "はい！分かります！",
			UtteranceMumble:   "よし、分かった！",
			UtteranceReaction: "はい！",
			UtteranceAgree:    "うん、そうそう！",
		},
		domain.StudentPassive: {
			UtteranceQuestion: "あの...ここが...",
			UtteranceAnswer:   "...たぶん、そうだと思います...",
			UtteranceMumble:   "...難しい...",
			UtteranceReaction: "...はい。",
			UtteranceAgree:    "...うん...",
		},
		domain.StudentTalkative: {
			UtteranceQuestion: "ねえ先生、これってさ、どういうこと？",
			UtteranceAnswer:   "あ、それ知ってる！えっとね...",
			UtteranceMumble:   "へぇ〜、そうなんだ〜",
			UtteranceReaction: "えー、まじで？",
			UtteranceAgree:    "わかるわかる！私もそう思った！",
		},
		domain.StudentSerious: {
			UtteranceQuestion: "先生、一つ確認させてください。",
			UtteranceAnswer:   "はい、〜だと思います。",
			UtteranceMumble:   "なるほど、そういうことか。",
			UtteranceReaction: "はい、理解しました。",
			UtteranceAgree:    "私もそう考えます。",
		},
		domain.StudentEasygoing: {
			UtteranceQuestion: "えーと、先生、ここって...",
			UtteranceAnswer:   "うーん、たぶん...これかな？",
			UtteranceMumble:   "ふーん...",
			UtteranceReaction: "あー、うん。",
			UtteranceAgree:    "まあ、そうだね〜",
		},
		domain.StudentRebellious: {
			UtteranceQuestion: "なんでそうなるの？",
			UtteranceAnswer:   "別に...知らない。",
			UtteranceMumble:   "めんどくさ...",
			UtteranceReaction: "ふーん。",
			UtteranceAgree:    "まあね。",
		},
	}

	if defaults, ok := byPersonality[personality]; ok {
		if line, ok := defaults[utterance]; ok {
			return line
		}
	}

	if utterance == UtteranceAgree {
		switch {
		case schoolType == domain.SchoolElementary && grade <= 2:
			return "うん、そうだよね！"
		case schoolType == domain.SchoolElementary:
			return "わたしもそう思う！"
		case schoolType == domain.SchoolMiddle:
			return "それな"
		default:
			return "たしかに"
		}
	}

	gradeDefaults := map[StudentUtteranceType]string{
		UtteranceQuestion: "先生、質問いいですか？",
		UtteranceAnswer:   "はい、そうだと思います。",
		UtteranceMumble:   "なるほど...",
		UtteranceReaction: "はい。",
	}
	if schoolType == domain.SchoolElementary && grade <= 2 {
		gradeDefaults = map[StudentUtteranceType]string{
			UtteranceQuestion: "せんせい、これなあに？",
			UtteranceAnswer:   "うん、わかった！",
			UtteranceMumble:   "むずかしいなぁ...",
			UtteranceReaction: "はーい！",
		}
	} else if schoolType == domain.SchoolElementary {
		gradeDefaults = map[StudentUtteranceType]string{
			UtteranceQuestion: "先生、ここがわかりません。",
			UtteranceAnswer:   "はい、わかりました。",
			UtteranceMumble:   "えーと...",
			UtteranceReaction: "はい！",
		}
	} else if schoolType == domain.SchoolHigh {
		gradeDefaults = map[StudentUtteranceType]string{
			UtteranceQuestion: "先生、質問があるのですが。",
			UtteranceAnswer:   "はい、理解しました。",
			UtteranceMumble:   "そういうことか...",
			UtteranceReaction: "はい。",
		}
	}

	if line, ok := gradeDefaults[utterance]; ok {
		return line
	}
	return "はい。"
}
