package model

// RunState tracks the lifecycle of the single process-wide selection run.
type RunState string

// Run state constants. Idle is reachable again only through an explicit clear.
const (
	RunStateIdle      RunState = "IDLE"
	RunStateRunning   RunState = "RUNNING"
	RunStateCompleted RunState = "COMPLETED"
	RunStateCancelled RunState = "CANCELLED"
	RunStateFailed    RunState = "FAILED"
)

// EventStatus identifies the kind of a lifecycle broadcast.
type EventStatus string

// Event status constants, matching the wire contract observers consume.
const (
	StatusCategorizing EventStatus = "categorizing"
	StatusComplete     EventStatus = "complete"
	StatusCancelled    EventStatus = "cancelled"
	StatusCleared      EventStatus = "cleared"
	StatusFailed       EventStatus = "failed"
)

// Event is a lifecycle broadcast sent to every attached observer. Only a
// completion event carries a Selection; only a failure event carries an error.
type Event struct {
	Status  EventStatus `json:"status"`
	Results Selection   `json:"results,omitempty"`
	Error   string      `json:"error,omitempty"`
}
