package router

import (
	"fmt"
	"strings"

	"github.com/dyluth/tandem/internal/registry"
	"github.com/dyluth/tandem/pkg/board"
	"go.uber.org/zap"
)

// Router identities recorded as FromWorker in the delegation chain.
const (
	PrimaryID = "primary-router"
	MirrorID  = "mirror-router"
)

// CreateArgs is the input of a task-creating command.
type CreateArgs struct {
	Title       string
	Description string
	Project     string
	Queue       string
	Priority    board.Priority
	Division    string
	Authority   board.Authority // Explicit override; empty means classify
}

// ArgsFromCommand extracts creation arguments from a command envelope.
func ArgsFromCommand(a board.CommandArgs) CreateArgs {
	return CreateArgs{
		Title:       a.Title,
		Description: a.Description,
		Project:     a.Project,
		Queue:       a.Queue,
		Priority:    board.ParsePriority(a.Priority),
		Division:    a.Division,
		Authority:   a.Authority,
	}
}

func (a CreateArgs) commandArgs() board.CommandArgs {
	return board.CommandArgs{
		Title:       a.Title,
		Description: a.Description,
		Project:     a.Project,
		Queue:       a.Queue,
		Priority:    string(a.Priority),
		Division:    a.Division,
		Authority:   a.Authority,
	}
}

// title mirrors the registry's defaulting so fingerprints agree.
func (a CreateArgs) title() string {
	if t := strings.TrimSpace(a.Title); t != "" {
		return t
	}
	return registry.DefaultTitle
}

func (a CreateArgs) text() string {
	return a.title() + " " + a.Description
}

func (a CreateArgs) params(authority board.Authority, source string) registry.CreateParams {
	return registry.CreateParams{
		Title:       a.Title,
		Description: a.Description,
		Priority:    a.Priority,
		Authority:   authority,
		Project:     a.Project,
		Queue:       a.Queue,
		Source:      source,
	}
}

// delegate publishes task.delegated followed by the <queue>.task hand-off.
func delegate(bus *board.Bus, logger *zap.Logger, task *board.Task, res Resolution, from string, authority board.Authority, division string) {
	if division == "" {
		division = res.Division
	}
	if res.Fallback {
		logger.Warn("unknown queue, using default",
			zap.String("event_type", "queue_fallback"),
			zap.String("task_id", task.ID),
			zap.String("requested_queue", task.Queue),
			zap.String("queue", res.Queue))
	}

	bus.Publish(board.ChannelTaskDelegated, board.Delegated{
		TaskID:     task.ID,
		FromWorker: from,
		Queue:      res.Queue,
		Division:   division,
		Authority:  authority,
		Fallback:   res.Fallback,
		Note:       res.Note,
	})
	bus.Publish(board.QueueTaskChannel(res.Queue), board.QueueTask{
		TaskID:      task.ID,
		Title:       task.Title,
		Description: task.Description,
		Priority:    task.Priority,
		FromWorker:  from,
		Queue:       res.Queue,
	})

	logger.Info("task delegated",
		zap.String("event_type", "task_delegated"),
		zap.String("task_id", task.ID),
		zap.String("queue", res.Queue),
		zap.String("authority", string(authority)))
}

// notifier remembers who asked for each task and tells them when it ends.
type notifier struct {
	bus     *board.Bus
	origins map[string]board.Origin
}

func newNotifier(bus *board.Bus) *notifier {
	return &notifier{bus: bus, origins: make(map[string]board.Origin)}
}

func (n *notifier) attach() {
	n.bus.Subscribe(board.ChannelTaskFinalized, func(e board.Event) {
		if task, ok := e.Payload.(*board.Task); ok {
			n.onFinalized(task)
		}
	})
}

func (n *notifier) track(taskID string, origin board.Origin) {
	n.origins[taskID] = origin
}

func (n *notifier) onFinalized(task *board.Task) {
	origin, ok := n.origins[task.ID]
	if !ok {
		return
	}
	delete(n.origins, task.ID)

	msg := fmt.Sprintf("Task %s %s after %s", task.ID, task.Status, formatDuration(task.DurationMs))
	if task.Result != "" {
		msg += ": " + task.Result
	}
	n.reply(origin, board.Reply{TaskID: task.ID, Accepted: task.Status == board.StatusCompleted, Message: msg})
}

func (n *notifier) reply(origin board.Origin, r board.Reply) {
	r.Source = origin.Source
	n.bus.Publish(origin.Channel(), r)
}

func formatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	return fmt.Sprintf("%.1fs", float64(ms)/1000)
}
