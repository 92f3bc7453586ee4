package sim

import (
	"math/rand/v2"

	"classim/internal/domain"
)

// spontaneousWeight biases spontaneous speech toward outgoing, focused
// students and away from whoever spoke last.
func spontaneousWeight(s domain.Student, lastSpeakerID string) float64 {
	weight := 1.0
	switch s.Personality {
	case domain.StudentActive:
		weight *= 2.5
	case domain.StudentTalkative:
		weight *= 2.0
	case domain.StudentPassive:
		weight *= 0.3
	case domain.StudentSerious:
		weight *= 1.5
	}
	if s.Concentration == domain.ConcentrationHigh {
		weight *= 1.5
	}
	if s.ID == lastSpeakerID {
		weight *= 0.2
	}
	return weight
}

// answerWeight biases question answering toward engaged and high-achieving
// students.
func answerWeight(s domain.Student, lastSpeakerID string) float64 {
	weight := 1.0
	switch s.Personality {
	case domain.StudentActive, domain.StudentSerious:
		weight *= 2.0
	case domain.StudentPassive:
		weight *= 0.5
	}
	if s.AcademicLevel >= 4 {
		weight *= 2.0
	}
	if s.ID == lastSpeakerID {
		weight *= 0.3
	}
	return weight
}

// weightedPick draws one student proportionally to weightOf. When every
// weight is zero (or rounding leaves no hit) the first student is returned.
func weightedPick(rng *rand.Rand, students []domain.Student, weightOf func(domain.Student) float64) domain.Student {
	total := 0.0
	weights := make([]float64, len(students))
	for i, s := range students {
		weights[i] = weightOf(s)
		total += weights[i]
	}

	r := rng.Float64() * total
	for i := range students {
		r -= weights[i]
		if r <= 0 {
			return students[i]
		}
	}
	return students[0]
}
