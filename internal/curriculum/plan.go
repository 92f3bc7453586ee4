package curriculum

import (
	"fmt"

	"classim/internal/domain"
)

// BuildCurriculum assembles the per-phase lesson plan for a topic. The plan is
// deterministic reference data; only the goal explanation comes from the
// generation collaborator (with a static fallback handled by the caller).
func BuildCurriculum(subject domain.Subject, schoolType domain.SchoolType, grade int, topic domain.LessonTopic, goalExplanation string) domain.Curriculum {
	if goalExplanation == "" {
		goalExplanation = fmt.Sprintf("本時の目標「%s」に関する要点を、定義・具体例・確認問題の観点で段階的に理解する。", topic.LessonGoal)
	}

	return domain.Curriculum{
		Overview: fmt.Sprintf("%s%d年 %s「%s」。本時の目標「%s」の達成に向け、導入→展開→まとめの順に進行する。",
			schoolType.Label(), grade, subject.Label(), topic.TopicName, topic.LessonGoal),
		GoalExplanation: goalExplanation,
		Phases: []domain.PhasePlan{
			{
				Phase:     domain.PhaseStart,
				Title:     "開始",
				Objective: fmt.Sprintf("「%s」の学習準備を整え、本時の到達点を明確にする", topic.TopicName),
				TeacherActions: []string{
					"授業開始の号令後、姿勢・用具・ノート準備を確認する",
					fmt.Sprintf("本時の目標「%s」を黒板に明示する", topic.LessonGoal),
					fmt.Sprintf("本時で扱う内容（%s）と評価観点を短く伝える", topic.TopicName),
				},
				StudentActions: []string{"目標と評価観点を確認し、学習準備を完了する"},
				Tasks: []string{
					"本時の目標をノート冒頭に書く",
					"今日の学習で特に意識する点を1つ決める",
				},
				Checkpoint: "全員が目標を言語化でき、授業に入る準備が整っている",
			},
			{
				Phase:          domain.PhaseIntro,
				Title:          "導入",
				Objective:      fmt.Sprintf("「%s」の前提知識を具体例ベースで確認する", topic.TopicName),
				TeacherActions: introTeacherSteps(topic),
				StudentActions: []string{"既習事項の確認問題に答える", "新出語句の意味を自分の言葉で説明する"},
				Tasks: []string{
					topic.IntroTask,
					"確認問題（口頭またはミニ小テスト）で理解度を可視化する",
				},
				Checkpoint: "本題に必要な前提知識を8割以上の生徒が説明できる",
			},
			{
				Phase:          domain.PhaseDevelopment1,
				Title:          "展開1",
				Objective:      fmt.Sprintf("「%s」の主要概念・解法/読解手順を理解する", topic.TopicName),
				TeacherActions: development1TeacherSteps(topic),
				StudentActions: []string{"要点をノートに整理する", "確認発問に対して根拠付きで回答する"},
				Tasks: append(append([]string{}, topic.Development1Tasks...),
					"理解確認として短い確認問題を1題解く（または1問に回答する）"),
				Checkpoint: "主要概念・手順を使って基礎問題/基礎問いに自力で対応できる",
			},
			{
				Phase:          domain.PhaseDevelopment2,
				Title:          "展開2",
				Objective:      "理解した内容を使って、演習・表現・説明の実践に取り組む",
				TeacherActions: development2TeacherSteps(topic),
				StudentActions: []string{"課題に取り組む", "つまずきを言語化して質問する", "他者の考えを取り入れて解答/表現を改善する"},
				Tasks: append(append([]string{}, topic.Development2Tasks...),
					"途中で自己点検を行い、解き方・考え方を1回見直す"),
				Checkpoint: fmt.Sprintf("本時の目標「%s」に沿って、実践課題を最後まで完了できる", topic.LessonGoal),
			},
			{
				Phase:          domain.PhaseSummary,
				Title:          "まとめ",
				Objective:      "本時で学んだ内容を定着させ、目標達成度を確認する",
				TeacherActions: summaryTeacherSteps(topic),
				StudentActions: []string{"学習内容を要点化して説明する", "残った疑問を明確化する"},
				Tasks: []string{
					topic.SummaryTask,
					"授業の要点を3行で記述し、次時への課題を1つ書く",
				},
				Checkpoint: "何を理解できて何が課題かを生徒自身が具体的に説明できる",
			},
			{
				Phase:     domain.PhaseEnd,
				Title:     "終了",
				Objective: "次時につながる復習観点を明確にして授業を終える",
				TeacherActions: []string{
					"次回の学習内容との接続を具体的に伝える",
					"家庭学習で行う復習方法を1つ提示する",
				},
				StudentActions: []string{"振り返りを提出する", "次時までの課題を確認する"},
				Tasks:          []string{"「今日できるようになったこと」と「次に練習したいこと」を各1つ記述する"},
				Checkpoint:     "次時までに行うべき復習行動を全員が把握している",
			},
		},
	}
}

func introTeacherSteps(topic domain.LessonTopic) []string {
	return []string{
		fmt.Sprintf("%s を使って既習事項を2〜3問確認する", topic.IntroTask),
		fmt.Sprintf("「%s」で扱う重要語句を板書し、語句の意味を短く定義する", topic.TopicName),
		fmt.Sprintf("本時の目標「%s」に対して、授業の見通し（導入→展開→まとめ）を共有する", topic.LessonGoal),
	}
}

func development1TeacherSteps(topic domain.LessonTopic) []string {
	steps := make([]string, 0, len(topic.Development1Tasks))
	for _, task := range topic.Development1Tasks {
		steps = append(steps, fmt.Sprintf("%s（手順: 用語・概念の説明 → 具体例の提示 → 理解確認の発問）", task))
	}
	return steps
}

func development2TeacherSteps(topic domain.LessonTopic) []string {
	steps := make([]string, 0, len(topic.Development2Tasks))
	for _, task := range topic.Development2Tasks {
		steps = append(steps, fmt.Sprintf("%s（手順: 個人で実施 → ペア/グループで確認 → 全体で要点共有）", task))
	}
	return steps
}

func summaryTeacherSteps(topic domain.LessonTopic) []string {
	return []string{
		fmt.Sprintf("本時の目標「%s」を再提示し、達成度を確認する", topic.LessonGoal),
		fmt.Sprintf("%s を通して、生徒自身に要点をまとめさせる", topic.SummaryTask),
		"到達できたこと・残った課題を全体で共有し、チェックポイントを確認する",
	}
}

// FallbackGoalExplanation is the static text stored when the generation
// collaborator cannot produce a goal explanation.
func FallbackGoalExplanation(topicName, lessonGoal string) string {
	return fmt.Sprintf("この授業では「%s」を扱い、目標である「%s」に到達することを目指します。導入で前提知識を確認し、展開で具体例と問題演習を通して理解を深め、最後に要点を整理して定着させます。",
		topicName, lessonGoal)
}
