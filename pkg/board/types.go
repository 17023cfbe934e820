package board

import (
	"fmt"
	"strings"
	"time"
)

// Priority is the urgency of a task.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// ParsePriority maps free text onto a Priority. Unknown or empty values
// resolve to PriorityNormal; inbound commands are never rejected for this.
func ParsePriority(s string) Priority {
	switch Priority(strings.ToLower(strings.TrimSpace(s))) {
	case PriorityLow:
		return PriorityLow
	case PriorityHigh:
		return PriorityHigh
	case PriorityCritical:
		return PriorityCritical
	default:
		return PriorityNormal
	}
}

// Authority identifies which tower owns execution of a task.
type Authority string

const (
	// AuthorityPrimary is the build/design/test oriented tower
	AuthorityPrimary Authority = "primary"

	// AuthorityMirror is the deploy/server/infra oriented tower
	AuthorityMirror Authority = "mirror"

	// AuthorityBoth marks a task split into two linked delegation branches
	AuthorityBoth Authority = "both"
)

// Validate checks if the Authority is a valid enum value.
func (a Authority) Validate() error {
	switch a {
	case AuthorityPrimary, AuthorityMirror, AuthorityBoth:
		return nil
	default:
		return fmt.Errorf("unknown authority: %q", a)
	}
}

// Other returns the opposite tower. Both resolves to primary.
func (a Authority) Other() Authority {
	if a == AuthorityPrimary {
		return AuthorityMirror
	}
	return AuthorityPrimary
}

// Includes reports whether work owned by a is executed (at least partly) by other.
func (a Authority) Includes(other Authority) bool {
	return a == other || a == AuthorityBoth
}

// TaskStatus is the lifecycle state of a task.
// Tasks progress: pending → delegated → in-progress → [swarming] → completed | failed.
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusDelegated  TaskStatus = "delegated"
	StatusInProgress TaskStatus = "in-progress"
	StatusSwarming   TaskStatus = "swarming"
	StatusCompleted  TaskStatus = "completed"
	StatusFailed     TaskStatus = "failed"
)

// IsTerminal returns true for completed and failed.
func (s TaskStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// DelegationStep is one entry of a task's append-only audit trail.
type DelegationStep struct {
	FromWorker string    `json:"from_worker,omitempty"`
	ToWorker   string    `json:"to_worker,omitempty"`
	Queue      string    `json:"queue,omitempty"`
	Action     string    `json:"action"`
	Note       string    `json:"note,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Task is the unit of work owned by the registry.
// Snapshots of a Task travel on the bus; subscribers must treat them as read-only copies.
type Task struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	Priority     Priority  `json:"priority"`
	Authority    Authority `json:"authority"`
	LinkedTaskID string    `json:"linked_task_id,omitempty"`

	Project  string   `json:"project,omitempty"`  // Requested project hint (part of the dedup fingerprint)
	Queue    string   `json:"queue,omitempty"`    // Requested queue hint (part of the dedup fingerprint)
	Queues   []string `json:"queues,omitempty"`   // Queues the task was actually delegated to
	Division string   `json:"division,omitempty"` // Division of the first delegated queue
	Source   string   `json:"source,omitempty"`   // Originator of the request

	Status           TaskStatus       `json:"status"`
	DelegationChain  []DelegationStep `json:"delegation_chain"`
	AssignedWorkers  []string         `json:"assigned_workers"`
	RecruitedWorkers []string         `json:"recruited_workers"`
	Progress         int              `json:"progress"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	DurationMs  int64      `json:"duration_ms,omitempty"`
	Result      string     `json:"result,omitempty"`
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	c.Queues = append([]string(nil), t.Queues...)
	c.DelegationChain = append([]DelegationStep(nil), t.DelegationChain...)
	c.AssignedWorkers = append([]string(nil), t.AssignedWorkers...)
	c.RecruitedWorkers = append([]string(nil), t.RecruitedWorkers...)
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		c.CompletedAt = &at
	}
	return &c
}

// HasQueue reports whether the task was delegated to queueID.
func (t *Task) HasQueue(queueID string) bool {
	return containsString(t.Queues, queueID)
}

// HasWorker reports whether workerID is assigned to or recruited for the task.
func (t *Task) HasWorker(workerID string) bool {
	return containsString(t.AssignedWorkers, workerID) || containsString(t.RecruitedWorkers, workerID)
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
