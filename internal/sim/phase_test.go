package sim

import (
	"testing"

	"classim/internal/domain"
)

func TestPhaseFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		minutes float64
		want    domain.Phase
	}{
		{0, domain.PhaseStart},
		{0.5, domain.PhaseStart},
		{1.0, domain.PhaseIntro},
		{7.5, domain.PhaseIntro},
		{7.999, domain.PhaseIntro},
		{8.0, domain.PhaseDevelopment1},
		{24.5, domain.PhaseDevelopment1},
		{25.0, domain.PhaseDevelopment2},
		{34.5, domain.PhaseDevelopment2},
		{35.0, domain.PhaseSummary},
		{41.5, domain.PhaseSummary},
		{42.0, domain.PhaseEnd},
		{44.5, domain.PhaseEnd},
		{45.0, domain.PhaseEnd},
		{50.0, domain.PhaseEnd},
	}

	for _, tt := range tests {
		if got := PhaseFor(tt.minutes); got != tt.want {
			t.Errorf("PhaseFor(%v) = %q, want %q", tt.minutes, got, tt.want)
		}
	}
}

func TestPhaseWindowsCoverSession(t *testing.T) {
	t.Parallel()

	for m := 0.0; m < sessionLengthMinutes; m += tickStepMinutes {
		if PhaseFor(m) == "" {
			t.Fatalf("no phase for minute %v", m)
		}
	}
}
