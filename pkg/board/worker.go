package board

import "fmt"

// WorkerState describes what a worker is doing right now.
type WorkerState string

const (
	// WorkerIdle workers have nothing assigned
	WorkerIdle WorkerState = "idle"

	// WorkerBusy workers are occupied but can be interrupted for a swarm
	WorkerBusy WorkerState = "busy"

	// WorkerWorking workers are committed to a task (including swarm members)
	WorkerWorking WorkerState = "working"

	// WorkerCollaborating workers are in a blocking collaborative state
	WorkerCollaborating WorkerState = "collaborating"

	// WorkerOffline workers are unavailable
	WorkerOffline WorkerState = "offline"
)

// Validate checks if the WorkerState is a valid enum value.
func (s WorkerState) Validate() error {
	switch s {
	case WorkerIdle, WorkerBusy, WorkerWorking, WorkerCollaborating, WorkerOffline:
		return nil
	default:
		return fmt.Errorf("unknown worker state: %q", s)
	}
}

// Recruitable reports whether a worker in this state may be pulled into a swarm.
func (s WorkerState) Recruitable() bool {
	return s == WorkerIdle || s == WorkerBusy
}

// Worker is a member of the organization affiliated with one queue.
type Worker struct {
	ID           string      `json:"id" yaml:"id"`
	Name         string      `json:"name,omitempty" yaml:"name,omitempty"`
	Queue        string      `json:"queue" yaml:"queue"`
	State        WorkerState `json:"state" yaml:"state"`
	Authority    Authority   `json:"authority" yaml:"authority"`
	Division     string      `json:"division,omitempty" yaml:"division,omitempty"`
	Capabilities []string    `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
}

// HasCapability reports whether the worker declares capability c.
func (w Worker) HasCapability(c string) bool {
	return containsString(w.Capabilities, c)
}
