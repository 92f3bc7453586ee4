package curriculum

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"classim/internal/domain"
)

//go:embed topics.json
var topicsJSON []byte

type topicFile struct {
	Subject    domain.Subject    `json:"subject"`
	SchoolType domain.SchoolType `json:"schoolType"`
	Topics     []struct {
		Grade             int      `json:"grade"`
		TopicName         string   `json:"topicName"`
		LessonGoal        string   `json:"lessonGoal"`
		IntroTask         string   `json:"introTask"`
		Development1Tasks []string `json:"development1Tasks"`
		Development2Tasks []string `json:"development2Tasks"`
		SummaryTask       string   `json:"summaryTask"`
	} `json:"topics"`
}

var (
	allTopics  []domain.LessonTopic
	topicIndex map[string][]domain.LessonTopic
)

func init() {
	var files []topicFile
	if err := json.Unmarshal(topicsJSON, &files); err != nil {
		panic("curriculum: invalid embedded topic catalog: " + err.Error())
	}

	topicIndex = make(map[string][]domain.LessonTopic)
	for _, f := range files {
		for i, t := range f.Topics {
			topic := domain.LessonTopic{
				ID:                fmt.Sprintf("%s_%d_%s_%02d", f.SchoolType, t.Grade, f.Subject, i+1),
				Subject:           f.Subject,
				SchoolType:        f.SchoolType,
				Grade:             t.Grade,
				TopicName:         t.TopicName,
				LessonGoal:        t.LessonGoal,
				IntroTask:         t.IntroTask,
				Development1Tasks: t.Development1Tasks,
				Development2Tasks: t.Development2Tasks,
				SummaryTask:       t.SummaryTask,
			}
			allTopics = append(allTopics, topic)
			key := indexKey(topic.Subject, topic.SchoolType, topic.Grade)
			topicIndex[key] = append(topicIndex[key], topic)
		}
	}
}

func indexKey(subject domain.Subject, schoolType domain.SchoolType, grade int) string {
	return fmt.Sprintf("%s_%s_%d", subject, schoolType, grade)
}

// AllTopics returns every catalog entry in load order.
func AllTopics() []domain.LessonTopic {
	out := make([]domain.LessonTopic, len(allTopics))
	copy(out, allTopics)
	return out
}

// TopicsFor returns the catalog entries for a subject at a school type and
// grade. The slice may be empty.
func TopicsFor(subject domain.Subject, schoolType domain.SchoolType, grade int) []domain.LessonTopic {
	return topicIndex[indexKey(subject, schoolType, grade)]
}

// TopicByID looks up a single topic. Returns nil when absent.
func TopicByID(id string) *domain.LessonTopic {
	for i := range allTopics {
		if allTopics[i].ID == id {
			return &allTopics[i]
		}
	}
	return nil
}

// FallbackTopic is used when the catalog has no entry for the requested
// subject/school/grade so a session can still be created.
func FallbackTopic(subject domain.Subject, schoolType domain.SchoolType, grade int) domain.LessonTopic {
	return domain.LessonTopic{
		ID:                fmt.Sprintf("%s_fallback", subject),
		Subject:           subject,
		SchoolType:        schoolType,
		Grade:             grade,
		TopicName:         "基礎学習",
		LessonGoal:        "基礎的な内容を理解し、説明できる",
		IntroTask:         "前回の内容を振り返る",
		Development1Tasks: []string{"基本問題に取り組む"},
		Development2Tasks: []string{"応用問題に取り組む"},
		SummaryTask:       "今日学んだことをまとめる",
	}
}
