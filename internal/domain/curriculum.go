package domain

// PhasePlan is the curriculum entry for a single lesson phase. Read-only
// reference data; the simulation never mutates it.
type PhasePlan struct {
	Phase          Phase    `json:"phase"`
	Title          string   `json:"title"`
	Objective      string   `json:"objective"`
	TeacherActions []string `json:"teacherActions"`
	StudentActions []string `json:"studentActions"`
	Tasks          []string `json:"tasks"`
	Checkpoint     string   `json:"checkpoint"`
}

// Curriculum is the full lesson plan handed to a simulation at construction.
type Curriculum struct {
	Overview        string      `json:"overview"`
	GoalExplanation string      `json:"goalExplanation"`
	Phases          []PhasePlan `json:"phases"`
}

// PlanFor returns the plan for a phase, or nil when the curriculum has none.
func (c *Curriculum) PlanFor(phase Phase) *PhasePlan {
	for i := range c.Phases {
		if c.Phases[i].Phase == phase {
			return &c.Phases[i]
		}
	}
	return nil
}
