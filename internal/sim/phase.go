// Package sim implements the lesson simulation engine: the phase timeline,
// the conversation state machine, speaker selection, utterance classification,
// the repetition guard, and the clock loop that ties them together.
package sim

import "classim/internal/domain"

type phaseWindow struct {
	phase       domain.Phase
	startMinute float64
	endMinute   float64
}

// Half-open windows [start, end) over the 45-minute session.
var phaseWindows = []phaseWindow{
	{domain.PhaseStart, 0, 1},
	{domain.PhaseIntro, 1, 8},
	{domain.PhaseDevelopment1, 8, 25},
	{domain.PhaseDevelopment2, 25, 35},
	{domain.PhaseSummary, 35, 42},
	{domain.PhaseEnd, 42, 45},
}

// PhaseFor maps elapsed minutes to the lesson phase. Total: minutes outside
// every window (including >= 45) map to the end phase.
func PhaseFor(minutes float64) domain.Phase {
	for _, w := range phaseWindows {
		if minutes >= w.startMinute && minutes < w.endMinute {
			return w.phase
		}
	}
	return domain.PhaseEnd
}
