package domain

import "strings"

// TaskState is the lifecycle state reported by the backend for a task.
type TaskState string

const (
	StateNew         TaskState = "NEW"
	StateInitialized TaskState = "INITIALIZED"
	StatePending     TaskState = "PENDING"
	StateRunning     TaskState = "RUNNING"
	StateDone        TaskState = "DONE"
	StateError       TaskState = "ERROR"
	StateExitCost    TaskState = "EXIT_COST"
)

// Task is the handle returned when a dev or cover task is submitted.
type Task struct {
	TaskID string `json:"task_id"`
}

// Status is the backend's view of a task.
type Status struct {
	State TaskState `json:"status"`
	Patch *string   `json:"patch,omitempty"`

	// Raw is the response body exactly as received.
	Raw string `json:"-"`
}

// IsDone reports whether the task finished and produced a patch.
func (s *Status) IsDone() bool {
	return strings.EqualFold(string(s.State), string(StateDone)) && s.Patch != nil
}

// Risk is one structured lint finding.
type Risk struct {
	WhichPartOfCode string `json:"which_part_of_code"`
	Reason          string `json:"reason"`
	Fix             string `json:"fix"`
}

// Risks is the lint response. Backends that can return structured data fill
// Risks; others return free-form Markdown in PlainRisks.
type Risks struct {
	Risks      []Risk `json:"risks"`
	PlainRisks string `json:"plain_risks"`
	Backend    string `json:"backend"`
}

// BackendOpenAI is the backend name that returns structured risks.
const BackendOpenAI = "openai"

// Structured reports whether the structured Risks list should be displayed.
func (r *Risks) Structured() bool {
	return r.Backend == BackendOpenAI
}
