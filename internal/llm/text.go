package llm

import (
	"regexp"
	"strings"
)

var (
	sentencePattern = regexp.MustCompile(`[^。！？!?]+[。！？!?]?`)
	terminatorEnd   = regexp.MustCompile(`[。！？!?]$`)
	newlineRuns     = regexp.MustCompile(`[\r\n]+`)
	quoteChars      = strings.NewReplacer("「", "", "」", "", `"`, "")
)

// collectSentences cleans raw model output and keeps at most maxSentences
// sentences, ensuring the result ends with terminal punctuation.
func collectSentences(text string, maxSentences int) string {
	cleaned := strings.TrimSpace(quoteChars.Replace(newlineRuns.ReplaceAllString(text, " ")))
	if cleaned == "" {
		return ""
	}

	var sentences []string
	for _, s := range sentencePattern.FindAllString(cleaned, -1) {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		sentences = append(sentences, s)
		if len(sentences) == maxSentences {
			break
		}
	}
	if len(sentences) == 0 {
		return ""
	}

	joined := strings.Join(sentences, " ")
	if terminatorEnd.MatchString(joined) {
		return joined
	}
	return joined + "。"
}

// normalizeLongText cleans multi-paragraph output without truncating it.
func normalizeLongText(text string) string {
	return strings.TrimSpace(quoteChars.Replace(strings.ReplaceAll(text, "\r", "")))
}

// Students must not sound like the teacher. Model output matching any of
// these patterns is replaced with a personality default.
var teacherLikePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^はい、?それでは`),
	regexp.MustCompile(`^それでは`),
	regexp.MustCompile(`^では、?`),
	regexp.MustCompile(`^みなさん`),
	regexp.MustCompile(`^皆さん`),
	regexp.MustCompile(`説明しましょう`),
	regexp.MustCompile(`考えてみましょう`),
	regexp.MustCompile(`やってみましょう`),
	regexp.MustCompile(`確認しましょう`),
	regexp.MustCompile(`まとめると`),
	regexp.MustCompile(`宿題`),
	regexp.MustCompile(`この問題`),
	regexp.MustCompile(`分かる人`),
	regexp.MustCompile(`いい質問ですね`),
	regexp.MustCompile(`授業`),
	regexp.MustCompile(`先生は`),
}

func isTeacherLikeUtterance(text string) bool {
	for _, p := range teacherLikePatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
