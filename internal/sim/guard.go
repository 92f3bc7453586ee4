package sim

import (
	"strings"
	"unicode"

	"classim/internal/domain"
)

const (
	// Candidate content is compared against this many recent transcript
	// entries for exact duplicates.
	duplicateWindow = 8
	// Teacher candidates are additionally compared against this many recent
	// teacher utterances for near-duplicates.
	teacherRepeatWindow = 6
	// Near-duplicate threshold on 3-gram Jaccard similarity.
	similarityThreshold = 0.82
	// Strings shorter than this (normalized) are exempt from the similarity
	// rule so greetings and short acknowledgements are not over-rejected.
	similarityMinLength = 14
	ngramSize           = 3
)

// repetitionGuard keeps generated content novel: it rejects exact duplicates
// of recent transcript entries and near-duplicate teacher explanations, and
// substitutes rotating fallback phrases when a candidate is rejected.
type repetitionGuard struct {
	teacherCursor int
	studentCursor int
}

// review validates candidate content against the transcript. It returns the
// content to emit (possibly a fallback substitute) and whether the turn may
// be emitted at all; false means the turn is discarded for this tick.
func (g *repetitionGuard) review(content string, speakerType domain.SpeakerType, phase domain.Phase, transcript []domain.Utterance) (string, bool) {
	teacherRepeated := speakerType == domain.SpeakerTeacher && g.isTeacherRepeated(content, transcript)
	if g.isRecentDuplicate(content, transcript) || teacherRepeated {
		content = g.alternative(speakerType, phase, content, transcript)
	}

	// The rotated fallback may itself still collide; in that case the turn is
	// dropped and the orchestrator retries next tick.
	if g.isRecentDuplicate(content, transcript) {
		return "", false
	}
	if speakerType == domain.SpeakerTeacher && g.isTeacherRepeated(content, transcript) {
		return "", false
	}
	return content, true
}

// normalizeUtterance strips quotation marks, punctuation and whitespace and
// case-folds, so comparisons ignore surface formatting.
func normalizeUtterance(text string) string {
	var b strings.Builder
	for _, r := range text {
		switch r {
		case '「', '」', '"', '\'', '`',
			'。', '！', '？', '!', '?', '、', ',', '.':
			continue
		}
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// isRecentDuplicate reports whether the normalized content matches any of the
// last duplicateWindow transcript entries. Content that normalizes to nothing
// is treated as a duplicate so blank turns never reach the transcript.
func (g *repetitionGuard) isRecentDuplicate(content string, transcript []domain.Utterance) bool {
	normalized := normalizeUtterance(content)
	if normalized == "" {
		return true
	}

	start := len(transcript) - duplicateWindow
	if start < 0 {
		start = 0
	}
	for _, u := range transcript[start:] {
		if normalizeUtterance(u.Content) == normalized {
			return true
		}
	}
	return false
}

// isTeacherRepeated reports whether content echoes one of the teacher's last
// teacherRepeatWindow utterances, either exactly or by n-gram similarity.
func (g *repetitionGuard) isTeacherRepeated(content string, transcript []domain.Utterance) bool {
	normalized := normalizeUtterance(content)
	if normalized == "" {
		return true
	}

	var recent []string
	for i := len(transcript) - 1; i >= 0 && len(recent) < teacherRepeatWindow; i-- {
		if transcript[i].SpeakerType == domain.SpeakerTeacher {
			recent = append(recent, normalizeUtterance(transcript[i].Content))
		}
	}

	for _, previous := range recent {
		if previous == normalized {
			return true
		}
		if len([]rune(normalized)) < similarityMinLength || len([]rune(previous)) < similarityMinLength {
			continue
		}
		if ngramJaccard(normalized, previous, ngramSize) >= similarityThreshold {
			return true
		}
	}
	return false
}

// ngramJaccard computes Jaccard similarity between the character n-gram sets
// of a and b.
func ngramJaccard(a, b string, n int) float64 {
	aGrams := ngramSet(a, n)
	bGrams := ngramSet(b, n)
	if len(aGrams) == 0 || len(bGrams) == 0 {
		return 0
	}

	intersection := 0
	for gram := range aGrams {
		if _, ok := bGrams[gram]; ok {
			intersection++
		}
	}

	union := len(aGrams) + len(bGrams) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func ngramSet(text string, n int) map[string]struct{} {
	grams := make(map[string]struct{})
	runes := []rune(text)
	if len(runes) < n {
		grams[text] = struct{}{}
		return grams
	}
	for i := 0; i+n <= len(runes); i++ {
		grams[string(runes[i:i+n])] = struct{}{}
	}
	return grams
}

var teacherFallbacks = map[domain.Phase][]string{
	domain.PhaseStart: {
		"では、今日の授業を始めます。",
		"それでは準備ができたので始めましょう。",
		"みなさん、今日もよろしくお願いします。",
	},
	domain.PhaseIntro: {
		"まずは今日の学習内容を確認しましょう。",
		"導入として前回のポイントを振り返ります。",
		"今日のテーマを最初に押さえましょう。",
	},
	domain.PhaseDevelopment1: {
		"ここは特に大事なので丁寧に確認します。",
		"今の説明をもとに次の例を見ていきます。",
		"この考え方を使って別の問題にも挑戦しましょう。",
	},
	domain.PhaseDevelopment2: {
		"それでは練習問題に取り組みましょう。",
		"今の内容を使って自分で解いてみてください。",
		"手順を意識してもう一問やってみましょう。",
	},
	domain.PhaseSummary: {
		"最後に今日のポイントを整理します。",
		"まとめとして重要語句を確認しましょう。",
		"今日学んだ内容を一度振り返ります。",
	},
	domain.PhaseEnd: {
		"今日の授業はここまでです。",
		"本日の学習は以上です。お疲れさまでした。",
		"次回までに今日の内容を復習しておいてください。",
	},
}

var studentFallbacks = []string{
	"なるほど、少し分かってきた。",
	"えっと、もう一度考えてみます。",
	"今の説明でイメージできました。",
	"ここ、ちょっと難しいです。",
	"分かった気がします。",
	"もう少しで解けそうです。",
	"はい、考えてみます。",
	"ありがとうございます、理解できました。",
}

// alternative picks a fallback phrase for rejected content, rotating a cursor
// per speaker type so consecutive substitutions differ. When every phrase in
// the pool also collides, the original content is returned unchanged (and the
// caller's re-check drops the turn).
func (g *repetitionGuard) alternative(speakerType domain.SpeakerType, phase domain.Phase, original string, transcript []domain.Utterance) string {
	pool := studentFallbacks
	cursor := g.studentCursor
	if speakerType == domain.SpeakerTeacher {
		pool = teacherFallbacks[phase]
		cursor = g.teacherCursor
	}

	originalNorm := normalizeUtterance(original)
	for i := 0; i < len(pool); i++ {
		candidate := pool[(cursor+i)%len(pool)]
		if g.isRecentDuplicate(candidate, transcript) || normalizeUtterance(candidate) == originalNorm {
			continue
		}
		if speakerType == domain.SpeakerTeacher {
			g.teacherCursor = cursor + i + 1
		} else {
			g.studentCursor = cursor + i + 1
		}
		return candidate
	}

	return original
}
