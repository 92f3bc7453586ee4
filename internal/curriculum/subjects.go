// Package curriculum provides the lesson-topic catalog and per-phase lesson
// plan construction.
package curriculum

import (
	"fmt"

	"classim/internal/domain"
)

var subjectsByGrade = map[string][]domain.Subject{
	// 小学校1-2年: 国語・算数のみ
	"elementary_1": {domain.SubjectJapanese, domain.SubjectMath},
	"elementary_2": {domain.SubjectJapanese, domain.SubjectMath},
	// 小学校3-4年: 国語・算数・理科・社会（地理にマッピング）
	"elementary_3": {domain.SubjectJapanese, domain.SubjectMath, domain.SubjectScience, domain.SubjectGeography},
	"elementary_4": {domain.SubjectJapanese, domain.SubjectMath, domain.SubjectScience, domain.SubjectGeography},
	// 小学校5-6年: 英語が加わる
	"elementary_5": {domain.SubjectJapanese, domain.SubjectMath, domain.SubjectScience, domain.SubjectGeography, domain.SubjectEnglish},
	"elementary_6": {domain.SubjectJapanese, domain.SubjectMath, domain.SubjectScience, domain.SubjectGeography, domain.SubjectEnglish},
	// 中学・高校: 全教科
	"middle_1": allSubjects(),
	"middle_2": allSubjects(),
	"middle_3": allSubjects(),
	"high_1":   allSubjects(),
	"high_2":   allSubjects(),
	"high_3":   allSubjects(),
}

func allSubjects() []domain.Subject {
	return []domain.Subject{
		domain.SubjectJapanese, domain.SubjectMath, domain.SubjectScience,
		domain.SubjectGeography, domain.SubjectEnglish, domain.SubjectHistory,
	}
}

// AvailableSubjects returns the subjects taught at the given school type and
// grade. Unknown combinations fall back to the universal pair.
func AvailableSubjects(schoolType domain.SchoolType, grade int) []domain.Subject {
	key := fmt.Sprintf("%s_%d", schoolType, grade)
	if subjects, ok := subjectsByGrade[key]; ok {
		return subjects
	}
	return []domain.Subject{domain.SubjectJapanese, domain.SubjectMath}
}
