package clone

import (
	"errors"
	"fmt"
)

// StepStatus is the lifecycle state of a pipeline step.
type StepStatus string

const (
	Pending   StepStatus = "pending"
	Running   StepStatus = "running"
	Completed StepStatus = "completed"
	Errored   StepStatus = "error"
)

// ErrInvalidTransition is returned for any move outside
// pending -> running -> {completed|error}.
var ErrInvalidTransition = errors.New("invalid step transition")

// Step is one named stage of the clone pipeline.
type Step struct {
	ID       string
	Name     string
	Status   StepStatus
	Progress *int
}

// Transition moves the step to the given status.
func (s *Step) Transition(to StepStatus) error {
	ok := false
	switch s.Status {
	case Pending:
		ok = to == Running
	case Running:
		ok = to == Completed || to == Errored
	}
	if !ok {
		return fmt.Errorf("%w: step %s %s -> %s", ErrInvalidTransition, s.ID, s.Status, to)
	}
	s.Status = to
	switch to {
	case Running:
		s.Progress = intPtr(0)
	case Completed:
		s.Progress = intPtr(100)
	}
	return nil
}

func intPtr(v int) *int { return &v }

// Step IDs in pipeline order. Validate and export are real work; the rest
// are walked after the remote call returns.
var stepDefs = []struct{ id, name string }{
	{"validate", "Validate configuration"},
	{"export", "Export source schema"},
	{"extensions", "Extensions"},
	{"types", "Custom types"},
	{"sequences", "Sequences"},
	{"tables", "Tables"},
	{"constraints", "Constraints"},
	{"views", "Views"},
	{"functions", "Functions"},
	{"triggers", "Triggers"},
	{"indexes", "Indexes"},
	{"policies", "Row-level security policies"},
	{"storage", "Storage"},
	{"permissions", "Permissions"},
	{"finalize", "Finalize"},
}

// StepCount is the number of declared pipeline steps.
var StepCount = len(stepDefs)

// NewSteps returns the declared step list with every step pending.
func NewSteps() []Step {
	out := make([]Step, len(stepDefs))
	for i, d := range stepDefs {
		out[i] = Step{ID: d.id, Name: d.name, Status: Pending}
	}
	return out
}
