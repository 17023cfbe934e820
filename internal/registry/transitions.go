package registry

import "github.com/dyluth/tandem/pkg/board"

// lifecycleEvent is the kind of bus event driving a transition.
type lifecycleEvent string

const (
	eventDelegated     lifecycleEvent = "delegated"
	eventProgress      lifecycleEvent = "progress"
	eventSwarmed       lifecycleEvent = "swarmed"
	eventSwarmReleased lifecycleEvent = "swarm-released"
	eventCompleted     lifecycleEvent = "completed"
	eventFailed        lifecycleEvent = "failed"
)

// nextStatus returns the status a task moves to when ev is applied in state
// current. ok is false when the event must be ignored (terminal tasks never
// change again).
//
//	pending     --delegated-->  delegated
//	pending|delegated --progress--> in-progress
//	*           --swarmed-->    swarming
//	swarming    --released-->   in-progress
//	*           --completed|failed--> terminal
func nextStatus(current board.TaskStatus, ev lifecycleEvent) (board.TaskStatus, bool) {
	if current.IsTerminal() {
		return current, false
	}

	switch ev {
	case eventDelegated:
		if current == board.StatusPending {
			return board.StatusDelegated, true
		}
		// A second delegation branch (authority "both") keeps the current state.
		return current, true

	case eventProgress:
		if current == board.StatusPending || current == board.StatusDelegated {
			return board.StatusInProgress, true
		}
		return current, true

	case eventSwarmed:
		return board.StatusSwarming, true

	case eventSwarmReleased:
		if current == board.StatusSwarming {
			return board.StatusInProgress, true
		}
		return current, true

	case eventCompleted:
		return board.StatusCompleted, true

	case eventFailed:
		return board.StatusFailed, true

	default:
		return current, false
	}
}
