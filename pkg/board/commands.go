package board

import (
	"fmt"
	"strings"
)

// CommandKind enumerates the inbound commands the primary router understands.
type CommandKind string

const (
	// CommandTask creates and delegates a task (authority chosen by classification)
	CommandTask CommandKind = "task"

	// CommandOps creates a task pinned to the mirror authority
	CommandOps CommandKind = "ops"

	// CommandStatus replies with aggregate statistics
	CommandStatus CommandKind = "status"

	// CommandProgress reports progress on a task on behalf of an executor
	CommandProgress CommandKind = "progress"

	// CommandComplete marks a task completed on behalf of an executor
	CommandComplete CommandKind = "complete"

	// CommandFail marks a task failed on behalf of an executor
	CommandFail CommandKind = "fail"

	// CommandRecall terminates a task early (out-of-band cancellation)
	CommandRecall CommandKind = "recall"

	// CommandSwarm asks the recruitment engine to accelerate a task
	CommandSwarm CommandKind = "swarm"

	// CommandSuggest replies with the authority best placed to take a request
	CommandSuggest CommandKind = "suggest"
)

// CommandKinds lists every known kind, in a stable order.
var CommandKinds = []CommandKind{
	CommandTask, CommandOps, CommandStatus, CommandProgress, CommandComplete,
	CommandFail, CommandRecall, CommandSwarm, CommandSuggest,
}

// ParseCommandKind normalizes s and reports whether it names a known kind.
func ParseCommandKind(s string) (CommandKind, bool) {
	kind := CommandKind(strings.ToLower(strings.TrimSpace(s)))
	for _, k := range CommandKinds {
		if k == kind {
			return k, true
		}
	}
	return kind, false
}

// CommandArgs is the loosely structured argument bag of an inbound command.
// Every field is optional; missing values are resolved to defaults downstream.
type CommandArgs struct {
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	Project     string    `json:"project,omitempty"`
	Queue       string    `json:"queue,omitempty"`
	Priority    string    `json:"priority,omitempty"`
	Division    string    `json:"division,omitempty"`
	Authority   Authority `json:"authority,omitempty"` // Explicit override of classification

	TaskID   string `json:"task_id,omitempty"`
	Progress int    `json:"progress,omitempty"`
	Message  string `json:"message,omitempty"`
	Result   string `json:"result,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Worker   string `json:"worker,omitempty"`

	Capabilities   []string `json:"capabilities,omitempty"`
	MaxWorkers     int      `json:"max_workers,omitempty"`
	CrossAuthority bool     `json:"cross_authority,omitempty"`
}

// Command is the generic envelope for human or API originated requests.
type Command struct {
	Command      string      `json:"command"`
	Args         CommandArgs `json:"args"`
	Source       string      `json:"source,omitempty"`
	ReplyChannel string      `json:"reply_channel,omitempty"`
}

// Origin returns where replies for this command should go.
func (c Command) Origin() Origin {
	return Origin{Source: c.Source, ReplyChannel: c.ReplyChannel}
}

// Validate checks the envelope carries a command name.
func (c Command) Validate() error {
	if strings.TrimSpace(c.Command) == "" {
		return fmt.Errorf("command cannot be empty")
	}
	if c.Args.Authority != "" {
		if err := c.Args.Authority.Validate(); err != nil {
			return fmt.Errorf("invalid authority override: %w", err)
		}
	}
	return nil
}

// Origin identifies the requester that should be notified about a command.
type Origin struct {
	Source       string `json:"source,omitempty"`
	ReplyChannel string `json:"reply_channel,omitempty"`
}

// Channel returns the reply channel, defaulting to the shared reply channel.
func (o Origin) Channel() string {
	if o.ReplyChannel != "" {
		return o.ReplyChannel
	}
	return ChannelReply
}
