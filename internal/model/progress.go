package model

// StepStatus is the display state of one stepper position.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepActive    StepStatus = "active"
	StepCompleted StepStatus = "completed"
)

// ProgressState is a snapshot of a reading session's gate.
//
// Unlocked is true iff Completed covers every ordinal 1..Total. Completed is
// sorted and only ever grows within a session. Active is the stepper
// position currently highlighted: the lowest unread ordinal, Total+1 (the
// signature step) once unlocked, or 0 after signing.
type ProgressState struct {
	SessionID string `json:"session_id"`
	Total     int    `json:"total"`
	Completed []int  `json:"completed"`
	Unlocked  bool   `json:"unlocked"`
	Signed    bool   `json:"signed"`
	Active    int    `json:"active"`
}

// Step is one position on the progress stepper.
type Step struct {
	Ordinal   int        `json:"ordinal"`
	SectionID string     `json:"section_id,omitempty"`
	Status    StepStatus `json:"status"`
}

// Steps expands the state into Total+1 stepper positions, the last being
// the signature pseudo-step.
func (p ProgressState) Steps(sections []Section) []Step {
	done := make(map[int]bool, len(p.Completed))
	for _, o := range p.Completed {
		done[o] = true
	}
	if p.Signed {
		done[p.Total+1] = true
	}

	steps := make([]Step, 0, p.Total+1)
	for i := 1; i <= p.Total+1; i++ {
		st := Step{Ordinal: i, Status: StepPending}
		if i <= len(sections) {
			st.SectionID = sections[i-1].ID
		} else {
			st.SectionID = "signature"
		}
		switch {
		case done[i]:
			st.Status = StepCompleted
		case i == p.Active:
			st.Status = StepActive
		}
		steps = append(steps, st)
	}
	return steps
}
