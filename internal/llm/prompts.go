package llm

import (
	"context"
	"fmt"
	"strings"

	"classim/internal/domain"
)

// TeacherAction is the rhetorical role chosen for a teacher turn.
type TeacherAction string

const (
	ActionExplain          TeacherAction = "explain"
	ActionAskQuestion      TeacherAction = "ask_question"
	ActionRespondToClass   TeacherAction = "respond_to_class"
	ActionRespondToStudent TeacherAction = "respond_to_student"
)

// StudentUtteranceType is the rhetorical role chosen for a student turn.
type StudentUtteranceType string

const (
	UtteranceQuestion StudentUtteranceType = "question"
	UtteranceAnswer   StudentUtteranceType = "answer"
	UtteranceMumble   StudentUtteranceType = "mumble"
	UtteranceReaction StudentUtteranceType = "reaction"
	UtteranceAgree    StudentUtteranceType = "agree"
)

// TeacherTurnRequest carries everything needed to prompt one teacher turn.
type TeacherTurnRequest struct {
	Teacher          domain.Teacher
	Subject          domain.Subject
	LessonGoal       string
	PhaseCurriculum  string
	Grade            int
	SchoolType       domain.SchoolType
	Phase            domain.Phase
	ElapsedMinutes   float64
	History          string
	LatestUtterance  string
	ExpectedResponse string
	Action           TeacherAction
}

// StudentTurnRequest carries everything needed to prompt one student turn.
type StudentTurnRequest struct {
	Student          domain.Student
	Subject          domain.Subject
	Grade            int
	SchoolType       domain.SchoolType
	Phase            domain.Phase
	ElapsedMinutes   float64
	History          string
	LatestUtterance  string
	ExpectedResponse string
	Utterance        StudentUtteranceType
}

// TeacherUtterance generates one teacher line. Never returns an empty string:
// generation failure falls back to a phase/action default.
func (c *Client) TeacherUtterance(ctx context.Context, req TeacherTurnRequest) string {
	prompt := buildTeacherPrompt(req)
	if out := c.generate(ctx, prompt, modeTeacher); out != "" {
		return out
	}
	return defaultTeacherUtterance(req.Phase, req.Action)
}

// StudentUtterance generates one student line. Output that reads like the
// teacher speaking, or a failed generation, is replaced with a personality
// default so the turn still lands.
func (c *Client) StudentUtterance(ctx context.Context, req StudentTurnRequest) string {
	prompt := buildStudentPrompt(req)
	out := c.generate(ctx, prompt, modeStudent)
	if out == "" || isTeacherLikeUtterance(out) {
		return defaultStudentUtterance(req.Utterance, req.SchoolType, req.Grade, req.Student.Personality)
	}
	return out
}

// GoalExplanation generates the long-form explanation of a lesson goal used
// to seed the curriculum. Returns an empty string on failure; the caller
// stores a static fallback.
func (c *Client) GoalExplanation(ctx context.Context, subject domain.Subject, schoolType domain.SchoolType, grade int, topicName, lessonGoal string) string {
	prompt := fmt.Sprintf(`あなたは%s%d年の%sを担当する教員です。
次の依頼に答えてください。

「%s」について説明する文章を生成して下さい。

【条件】
- テーマ: %s
- 目的: 生徒が授業の45分で理解できるようにする
- 内容は具体的にする（定義、仕組み、手順、よくある誤解、確認問題の観点を含める）
- 抽象的な説明だけで終わらせない
- 端的すぎる説明にしない。丁寧に筋道立てて説明する
- 2〜5段落で出力する
- 見出しは不要
- 日本語で出力する`,
		schoolType.Label(), grade, subject.Label(), lessonGoal, topicName)

	return c.generate(ctx, prompt, modeLong)
}

func buildTeacherPrompt(req TeacherTurnRequest) string {
	actionInstructions := map[TeacherAction]string{
		ActionExplain: fmt.Sprintf(`あなたは教員として、下記カリキュラムの「具体的な問題・課題」に基づいて%sの知識を教えてください。
- 概念・用語・手順・公式などの具体的な知識を提示すること
- 「〜とは○○のことです」「ポイントは○○です」のように明確に教えること
- 前の発言と重複しない新しい知識・視点を提供すること
- 抽象的な語りではなく、生徒が理解できる具体例や説明を含めること
- 端的に終わらせず、根拠や手順を含めて3〜7文で丁寧に説明すること`, req.Subject.Label()),
		ActionAskQuestion: `直前までの説明内容を踏まえ、生徒の理解を確認する質問を1つしてください。
- 今説明した内容の確認質問にすること
- 「〜は何でしたか？」「〜の場合はどうなりますか？」など具体的に聞くこと`,
		ActionRespondToClass: `クラス全体の反応を受けて、授業内容の理解を深めるコメントをしてください。
- 生徒の反応を短く拾いつつ、カリキュラムの「具体的な問題・課題」に関連する知識を補足すること
- 単なるリアクション（「いいですね」だけ）で終わらず、必ず学習内容を含めること`,
		ActionRespondToStudent: `直前の生徒の発言に簡潔に応答した上で、カリキュラムの内容に話を戻してください。
- 回答には短い評価（「そうですね」「いいところに気づきました」等）を付けた上で、授業内容の説明を続けること
- 脱線した話題には深入りせず、本題に戻すこと`,
	}

	history := req.History
	if history == "" {
		history = "（授業開始）"
	}
	latest := req.LatestUtterance
	if latest == "" {
		latest = "（まだ発話なし）"
	}

	return fmt.Sprintf(`あなたは%s%d年生の%sの授業を担当する%d歳の%sな教員「%s」です。

【会話ログ（直近）】
%s

【直前の発話】
%s

【現在の状況】
- 経過時間: %.1f分 / 45分
- フェーズ: %s
- 本時の目標: %s
- このフェーズのカリキュラム:
%s

【指示】
%s
このターンで期待される応答: %s

【重要】
- 発言は本時の目標達成につながる内容にすること
- 発言はこのフェーズのカリキュラムに沿って授業を前進させること
- 会話ログを踏まえ、直前の発話へつながる内容にすること
- 可能なら直前発話のキーワードを1つ受けて話を進めること
- 「本時目標の詳細説明」に書かれた定義・仕組み・手順・誤解ポイントを優先して扱うこと
- explain の場合は最低3文で説明すること
- 同じことを繰り返さないこと
- 発言のみを出力（「」や説明は不要）`,
		req.SchoolType.Label(), req.Grade, req.Subject.Label(),
		req.Teacher.Age, domain.PersonalityLabel(string(req.Teacher.Personality)), req.Teacher.Name,
		history, latest,
		req.ElapsedMinutes, req.Phase.Label(), req.LessonGoal, req.PhaseCurriculum,
		actionInstructions[req.Action], req.ExpectedResponse)
}

func buildStudentPrompt(req StudentTurnRequest) string {
	utteranceInstructions := map[StudentUtteranceType]string{
		UtteranceQuestion: "直前の先生の説明について、分からないことを質問してください。",
		UtteranceAnswer:   "直前の先生の質問に答えてください。学力に応じた正確さで回答すること。",
		UtteranceMumble:   "授業を聞きながらの独り言やつぶやきを言ってください。",
		UtteranceReaction: "直前の発言に対する短いリアクションをしてください。",
		UtteranceAgree:    "直前の他の生徒の発言に同調してください。",
	}

	age, speechStyle := gradeContext(req.SchoolType, req.Grade)

	history := req.History
	if history == "" {
		history = "（授業開始）"
	}
	latest := req.LatestUtterance
	if latest == "" {
		latest = "（まだ発話なし）"
	}

	var levelNotes strings.Builder
	if req.Student.AcademicLevel >= 4 {
		levelNotes.WriteString("勉強が得意で、難しい質問にも答えられる。")
	}
	if req.Student.AcademicLevel <= 2 {
		levelNotes.WriteString("勉強は苦手で、間違えることもある。")
	}

	return fmt.Sprintf(`あなたは%s%d年生（%d歳）の生徒「%s」です。

【性格と話し方】
%sな性格です。
%s

【学力】
5段階中%d
%s

【年齢相応の言葉遣い】
%s

【会話ログ（直近）】
%s

【直前の発話】
%s

【現在の状況】
- 教科: %s
- 経過時間: %.1f分

【指示】
%s
このターンで期待される応答: %s

【重要】
- あなたは生徒であり、教員の口調や指示口調で話さないこと
- 「みなさん」「〜しましょう」「〜してください」「授業を始めます」など教員的表現は禁止
- 性格を反映した話し方をすること
- 会話ログを踏まえ、直前の発話に関連した発言をすること
- 可能なら直前発話のキーワードを1つ受けて発言すること
- 発言のみを出力（「」や説明は不要）`,
		req.SchoolType.Label(), req.Grade, age, req.Student.Name,
		domain.PersonalityLabel(string(req.Student.Personality)), personalityBehavior(req.Student.Personality),
		req.Student.AcademicLevel, levelNotes.String(),
		speechStyle, history, latest,
		req.Subject.Label(), req.ElapsedMinutes,
		utteranceInstructions[req.Utterance], req.ExpectedResponse)
}

func gradeContext(schoolType domain.SchoolType, grade int) (int, string) {
	switch schoolType {
	case domain.SchoolElementary:
		age := 5 + grade
		switch {
		case grade <= 2:
			return age, "幼い話し方で、「〜だよ」「〜なの？」「わかんない」など子供らしい言葉遣い。"
		case grade <= 4:
			return age, "少し成長した話し方で、「〜です」も使えるが子供らしさが残る。"
		default:
			return age, "高学年らしく落ち着いた話し方。"
		}
	case domain.SchoolMiddle:
		return 12 + grade, "中学生らしい話し方。敬語も使えるが、「〜じゃん」などカジュアルな表現も。"
	default:
		return 15 + grade, "高校生らしい話し方。敬語を適切に使用。"
	}
}

func personalityBehavior(p domain.StudentPersonality) string {
	behaviors := map[domain.StudentPersonality]string{
		domain.StudentActive:     "積極的で元気よく発言する。手を挙げて答えたがる。声が大きめ。「はい！」「分かります！」など自信を持って話す。",
		domain.StudentPassive:    "控えめで小声で話す。自分から発言せず、指名されたときだけ答える。「...です」「たぶん...」など自信なさげ。",
		domain.StudentTalkative:  "よく喋る。思ったことをすぐ口に出す。「ねえねえ」「あのさ」など話しかける。脱線することも。",
		domain.StudentSerious:    "真面目で丁寧に話す。正確に答えようとする。「〜だと思います」「〜ではないでしょうか」など論理的。",
		domain.StudentEasygoing:  "のんびりマイペース。急がない。「えーと」「うーん」が多い。焦らず自分のペースで話す。",
		domain.StudentRebellious: "反抗的でつっけんどん。「別に」「知らない」「めんどくさい」など投げやり。敬語を使わないことも。",
	}
	return behaviors[p]
}
