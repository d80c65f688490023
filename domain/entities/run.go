package entities

import "time"

// StepStatus represents the outcome of a single scenario step
type StepStatus string

const (
	StepPassed  StepStatus = "passed"
	StepFailed  StepStatus = "failed"
	StepSkipped StepStatus = "skipped"
)

// StepResult records one executed workflow step
type StepResult struct {
	Name     string        `json:"name"`
	Status   StepStatus    `json:"status"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// RunStatus represents the status of a scenario run
type RunStatus string

const (
	RunStatusPassed    RunStatus = "passed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// RunRecord is the persisted result of one scenario run
type RunRecord struct {
	ID         string       `json:"id"`
	Scenario   string       `json:"scenario"`
	Driver     string       `json:"driver"`
	BaseURL    string       `json:"base_url"`
	Status     RunStatus    `json:"status"`
	Error      string       `json:"error,omitempty"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Steps      []StepResult `json:"steps"`
}
