package call

// StepStatus is the progress of one script step.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepCurrent   StepStatus = "current"
	StepCompleted StepStatus = "completed"
)

// ScriptStep is one stage of the ceremony script. Ordinal fixes the order;
// ID is what the agent sends in script_update messages.
type ScriptStep struct {
	ID        string
	Ordinal   int
	Label     string
	Status    StepStatus
	Timestamp string // HH:MM when the step became current
}

// DefaultScriptSteps returns the six standard ceremony steps, all pending.
func DefaultScriptSteps() []ScriptStep {
	return []ScriptStep{
		{ID: "1", Ordinal: 1, Label: "1. Introduction & Protocol Check", Status: StepPending},
		{ID: "2", Ordinal: 2, Label: "2. Verify Groom Identity", Status: StepPending},
		{ID: "3", Ordinal: 3, Label: "3. Verify Bride Identity", Status: StepPending},
		{ID: "4", Ordinal: 4, Label: "4. Groom Consent (Vows)", Status: StepPending},
		{ID: "5", Ordinal: 5, Label: "5. Bride Consent (Vows)", Status: StepPending},
		{ID: "6", Ordinal: 6, Label: "6. Final Pronouncement", Status: StepPending},
	}
}

// advance marks stepID current and every lower ordinal completed. Steps with
// a higher ordinal keep their status. It reports false when stepID is not a
// known step.
func advance(steps []ScriptStep, stepID, at string) bool {
	target := -1
	for i := range steps {
		if steps[i].ID == stepID {
			target = steps[i].Ordinal
			break
		}
	}
	if target < 0 {
		return false
	}
	for i := range steps {
		switch {
		case steps[i].Ordinal == target:
			steps[i].Status = StepCurrent
			steps[i].Timestamp = at
		case steps[i].Ordinal < target:
			steps[i].Status = StepCompleted
		}
	}
	return true
}
