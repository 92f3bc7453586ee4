// Package roster generates the random teacher and student cast for a session.
package roster

import (
	"math/rand/v2"

	"github.com/google/uuid"

	"classim/internal/curriculum"
	"classim/internal/domain"
)

// Generator produces session characters from an injected random source so
// tests can seed exact rosters.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator creates a roster generator backed by rng.
func NewGenerator(rng *rand.Rand) *Generator {
	return &Generator{rng: rng}
}

func pick[T any](rng *rand.Rand, items []T) T {
	return items[rng.IntN(len(items))]
}

func pickSome[T any](rng *rand.Rand, items []T, minCount, maxCount int) []T {
	count := minCount + rng.IntN(maxCount-minCount+1)
	shuffled := make([]T, len(items))
	copy(shuffled, items)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled[:count]
}

func (g *Generator) intBetween(minVal, maxVal int) int {
	return minVal + g.rng.IntN(maxVal-minVal+1)
}

func (g *Generator) name(gender string) string {
	last := pick(g.rng, lastNames)
	if gender == "male" {
		return last + " " + pick(g.rng, maleFirstNames)
	}
	return last + " " + pick(g.rng, femaleFirstNames)
}

// SchoolType picks a random school type.
func (g *Generator) SchoolType() domain.SchoolType {
	return pick(g.rng, []domain.SchoolType{
		domain.SchoolElementary, domain.SchoolMiddle, domain.SchoolHigh,
	})
}

// Grade picks a random grade valid for the school type.
func (g *Generator) Grade(schoolType domain.SchoolType) int {
	if schoolType == domain.SchoolElementary {
		return g.intBetween(1, 6)
	}
	return g.intBetween(1, 3)
}

// Subject picks a random subject taught at the school type and grade.
func (g *Generator) Subject(schoolType domain.SchoolType, grade int) domain.Subject {
	return pick(g.rng, curriculum.AvailableSubjects(schoolType, grade))
}

// Topic picks a random catalog topic, falling back to the generic one when the
// catalog has no entry for the combination.
func (g *Generator) Topic(subject domain.Subject, schoolType domain.SchoolType, grade int) domain.LessonTopic {
	topics := curriculum.TopicsFor(subject, schoolType, grade)
	if len(topics) == 0 {
		return curriculum.FallbackTopic(subject, schoolType, grade)
	}
	return pick(g.rng, topics)
}

// Teacher generates a random teacher.
func (g *Generator) Teacher() domain.Teacher {
	gender := pick(g.rng, []string{"male", "female"})
	age := g.intBetween(23, 60)
	experience := g.intBetween(1, 35)
	if experience > age-22 {
		experience = age - 22
	}

	return domain.Teacher{
		ID:          uuid.NewString(),
		Name:        g.name(gender),
		Age:         age,
		Gender:      gender,
		Personality: pick(g.rng, []domain.TeacherPersonality{
			domain.TeacherStrict, domain.TeacherGentle, domain.TeacherPassionate,
			domain.TeacherCalm, domain.TeacherHumorous,
		}),
		TeachingStyle: pick(g.rng, []domain.TeachingStyle{
			domain.StyleLecture, domain.StyleDialogue, domain.StylePractical,
		}),
		FamilyEnvironment: pick(g.rng, []domain.FamilyEnvironment{
			domain.FamilyBothParents, domain.FamilySingleParent,
			domain.FamilyGrandparents, domain.FamilyAlone,
		}),
		YearsOfExperience: experience,
	}
}

// Students generates the six-member roster: one student per personality trait,
// a 3/3 gender split, and academic levels {1,2,3,3,4,5} shuffled across seats.
func (g *Generator) Students() []domain.Student {
	personalities := []domain.StudentPersonality{
		domain.StudentActive, domain.StudentPassive, domain.StudentTalkative,
		domain.StudentSerious, domain.StudentEasygoing, domain.StudentRebellious,
	}

	genders := []string{"male", "male", "male", "female", "female", "female"}
	g.rng.Shuffle(len(genders), func(i, j int) {
		genders[i], genders[j] = genders[j], genders[i]
	})

	levels := []int{1, 2, 3, 3, 4, 5}
	g.rng.Shuffle(len(levels), func(i, j int) {
		levels[i], levels[j] = levels[j], levels[i]
	})

	students := make([]domain.Student, 0, len(personalities))
	for i, personality := range personalities {
		gender := genders[i]

		favorites := pickSome(g.rng, domain.AllSubjects, 1, 2)
		remaining := make([]domain.Subject, 0, len(domain.AllSubjects))
		for _, s := range domain.AllSubjects {
			if !containsSubject(favorites, s) {
				remaining = append(remaining, s)
			}
		}
		weak := pickSome(g.rng, remaining, 0, 2)

		students = append(students, domain.Student{
			ID:               uuid.NewString(),
			Name:             g.name(gender),
			Gender:           gender,
			Personality:      personality,
			AcademicLevel:    levels[i],
			Concentration:    pick(g.rng, []domain.ConcentrationLevel{domain.ConcentrationLow, domain.ConcentrationMedium, domain.ConcentrationHigh}),
			Hobbies:          pickSome(g.rng, hobbyPool, 1, 3),
			FavoriteSubjects: favorites,
			WeakSubjects:     weak,
			FamilyEnvironment: pick(g.rng, []domain.FamilyEnvironment{
				domain.FamilyBothParents, domain.FamilySingleParent,
				domain.FamilyGrandparents, domain.FamilyAlone,
			}),
			SeatPosition: domain.SeatPosition{Row: 1, Col: i + 1},
		})
	}

	return students
}

func containsSubject(subjects []domain.Subject, s domain.Subject) bool {
	for _, v := range subjects {
		if v == s {
			return true
		}
	}
	return false
}
