package router

import (
	"fmt"
	"strings"

	"github.com/dyluth/tandem/internal/dedup"
	"github.com/dyluth/tandem/internal/registry"
	"github.com/dyluth/tandem/pkg/board"
	"go.uber.org/zap"
)

// Primary is the entry router. It receives every inbound command.
type Primary struct {
	bus        *board.Bus
	registry   *registry.Registry
	cache      *dedup.Cache
	classifier Classifier
	queues     *QueueResolver
	logger     *zap.Logger
	notify     *notifier
	handlers   map[board.CommandKind]func(board.Command)
}

// NewPrimary wires the primary router. queues must be the primary resolver.
func NewPrimary(bus *board.Bus, reg *registry.Registry, cache *dedup.Cache, classifier Classifier, queues *QueueResolver, logger *zap.Logger) *Primary {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Primary{
		bus:        bus,
		registry:   reg,
		cache:      cache,
		classifier: classifier,
		queues:     queues,
		logger:     logger.With(zap.String("component", PrimaryID)),
		notify:     newNotifier(bus),
	}
	p.handlers = map[board.CommandKind]func(board.Command){
		board.CommandTask:     p.handleTask,
		board.CommandOps:      p.handleOps,
		board.CommandStatus:   p.handleStatus,
		board.CommandProgress: p.handleProgress,
		board.CommandComplete: p.handleComplete,
		board.CommandFail:     p.handleFail,
		board.CommandRecall:   p.handleRecall,
		board.CommandSwarm:    p.handleSwarm,
		board.CommandSuggest:  p.handleSuggest,
	}
	return p
}

// Attach subscribes to inbound commands and task finalization.
func (p *Primary) Attach() {
	p.bus.Subscribe(board.ChannelCommand, func(e board.Event) {
		if cmd, ok := e.Payload.(board.Command); ok {
			p.Dispatch(cmd)
		}
	})
	p.notify.attach()
}

// Handles reports whether kind has a registered handler.
func (p *Primary) Handles(kind board.CommandKind) bool {
	_, ok := p.handlers[kind]
	return ok
}

// Dispatch runs the handler for cmd. Unrecognized commands become a task
// titled with the command name; nothing is rejected outright.
func (p *Primary) Dispatch(cmd board.Command) {
	if a := cmd.Args.Authority; a != "" {
		if err := a.Validate(); err != nil {
			p.logger.Warn("ignoring invalid authority override",
				zap.String("command", cmd.Command),
				zap.Error(err))
			cmd.Args.Authority = ""
		}
	}

	kind, known := board.ParseCommandKind(cmd.Command)
	if !known {
		p.logger.Info("unrecognized command, creating task",
			zap.String("event_type", "command_fallback"),
			zap.String("command", cmd.Command))
		args := ArgsFromCommand(cmd.Args)
		args.Title = strings.TrimSpace(cmd.Command)
		p.CreateAndDelegate(args, cmd.Origin())
		return
	}
	p.handlers[kind](cmd)
}

// CreateAndDelegate creates one task for an accepted request and hands it to
// the owning authorities. It returns nil when the request duplicates a live
// fingerprint; the originator is told which task already covers it.
func (p *Primary) CreateAndDelegate(args CreateArgs, origin board.Origin) *board.Task {
	candidate := dedup.Candidate{Title: args.title(), Project: args.Project, Queue: args.Queue}
	if existing, dup := p.cache.Lookup(candidate); dup {
		p.logger.Warn("duplicate request blocked",
			zap.String("event_type", "duplicate_blocked"),
			zap.String("title", args.title()),
			zap.String("existing_task_id", existing.TaskID),
			zap.String("existing_authority", string(existing.OwningAuthority)))
		p.notify.reply(origin, board.Reply{
			TaskID:  existing.TaskID,
			Message: fmt.Sprintf("Duplicate of %s (%s, owned by %s); change the title to submit anyway", existing.TaskID, existing.Title, existing.OwningAuthority),
		})
		return nil
	}

	authority := args.Authority
	if authority == "" {
		authority = p.classifier.Classify(args.text())
	}

	task := p.registry.CreateTask(args.params(authority, origin.Source))
	p.cache.RegisterTask(task, authority)
	p.notify.track(task.ID, origin)

	var destinations []string
	if authority.Includes(board.AuthorityPrimary) {
		res := p.queues.Resolve(QueueRequest{Queue: args.Queue, Project: args.Project, Text: args.text()})
		delegate(p.bus, p.logger, task, res, PrimaryID, board.AuthorityPrimary, args.Division)
		destinations = append(destinations, res.Queue)
	}
	if authority.Includes(board.AuthorityMirror) {
		p.bus.Publish(board.ChannelForward, board.Forward{
			Command: board.CommandTask,
			Args:    args.commandArgs(),
			TaskID:  task.ID,
			Origin:  origin,
		})
		destinations = append(destinations, string(board.AuthorityMirror))
	}

	p.notify.reply(origin, board.Reply{
		TaskID:   task.ID,
		Accepted: true,
		Message:  fmt.Sprintf("Task %s created (%s) -> %s", task.ID, authority, strings.Join(destinations, ", ")),
	})
	return task
}

func (p *Primary) handleTask(cmd board.Command) {
	p.CreateAndDelegate(ArgsFromCommand(cmd.Args), cmd.Origin())
}

// handleOps hands a fresh request to the mirror router, which creates it.
// An args task id links the new task to an existing one.
func (p *Primary) handleOps(cmd board.Command) {
	p.bus.Publish(board.ChannelForward, board.Forward{
		Command: board.CommandOps,
		Args:    cmd.Args,
		Origin:  cmd.Origin(),
	})
}

func (p *Primary) handleStatus(cmd board.Command) {
	s := p.registry.Stats()
	p.notify.reply(cmd.Origin(), board.Reply{
		Accepted: true,
		Message: fmt.Sprintf("active=%d pending=%d delegated=%d in_progress=%d swarming=%d completed=%d failed=%d avg=%s",
			s.Active, s.Pending, s.Delegated, s.InProgress, s.Swarming, s.Completed, s.Failed, formatDuration(int64(s.AverageDurationMs))),
	})
}

func (p *Primary) handleProgress(cmd board.Command) {
	if !p.requireActive(cmd) {
		return
	}
	p.bus.Publish(board.ChannelTaskProgress, board.Progress{
		TaskID:   cmd.Args.TaskID,
		Progress: cmd.Args.Progress,
		Message:  cmd.Args.Message,
		Worker:   workerOf(cmd),
	})
}

func (p *Primary) handleComplete(cmd board.Command) {
	if !p.requireActive(cmd) {
		return
	}
	p.bus.Publish(board.ChannelTaskCompleted, board.Completed{
		TaskID: cmd.Args.TaskID,
		Result: firstNonEmpty(cmd.Args.Result, cmd.Args.Message),
		Worker: workerOf(cmd),
	})
}

func (p *Primary) handleFail(cmd board.Command) {
	if !p.requireActive(cmd) {
		return
	}
	p.bus.Publish(board.ChannelTaskFailed, board.Failed{
		TaskID: cmd.Args.TaskID,
		Reason: firstNonEmpty(cmd.Args.Reason, cmd.Args.Message),
		Worker: workerOf(cmd),
	})
}

// handleRecall terminates a task early: any swarm is recalled, then the task
// fails through the normal lifecycle.
func (p *Primary) handleRecall(cmd board.Command) {
	if !p.requireActive(cmd) {
		return
	}
	reason := "recalled"
	if r := firstNonEmpty(cmd.Args.Reason, cmd.Args.Message); r != "" {
		reason = "recalled: " + r
	}
	p.bus.Publish(board.ChannelSwarmRecall, board.Recall{TaskID: cmd.Args.TaskID, Reason: reason})
	p.bus.Publish(board.ChannelTaskFailed, board.Failed{TaskID: cmd.Args.TaskID, Reason: reason, Worker: workerOf(cmd)})
}

func (p *Primary) handleSwarm(cmd board.Command) {
	if !p.requireActive(cmd) {
		return
	}
	task, _ := p.registry.Get(cmd.Args.TaskID)

	target := cmd.Args.Queue
	if target == "" && len(task.Queues) > 0 {
		target = task.Queues[0]
	}
	if target == "" {
		p.notify.reply(cmd.Origin(), board.Reply{TaskID: task.ID, Message: fmt.Sprintf("Task %s has no queue to swarm", task.ID)})
		return
	}

	p.bus.Publish(board.ChannelSwarmRequest, board.SwarmRequest{
		TaskID:               task.ID,
		TargetQueue:          target,
		CoordinatorID:        firstNonEmpty(cmd.Args.Worker, cmd.Source, PrimaryID),
		RequiredCapabilities: cmd.Args.Capabilities,
		MaxWorkers:           cmd.Args.MaxWorkers,
		Authority:            task.Authority,
		AllowCrossAuthority:  cmd.Args.CrossAuthority,
	})
	p.notify.reply(cmd.Origin(), board.Reply{TaskID: task.ID, Accepted: true, Message: fmt.Sprintf("Swarm requested for %s on %s", task.ID, target)})
}

func (p *Primary) handleSuggest(cmd board.Command) {
	args := ArgsFromCommand(cmd.Args)
	probe := &board.Task{Title: args.title(), Project: args.Project, Queue: args.Queue}
	authority := p.cache.RequestCrossAuthority(probe)
	p.notify.reply(cmd.Origin(), board.Reply{
		Accepted: true,
		Message:  fmt.Sprintf("Suggested authority for %q: %s", probe.Title, authority),
	})
}

// requireActive replies with a rejection unless the command names an active task.
func (p *Primary) requireActive(cmd board.Command) bool {
	id := cmd.Args.TaskID
	switch {
	case id == "":
		p.notify.reply(cmd.Origin(), board.Reply{Message: fmt.Sprintf("%s requires a task id", cmd.Command)})
		return false
	case !p.registry.IsActive(id):
		p.notify.reply(cmd.Origin(), board.Reply{TaskID: id, Message: fmt.Sprintf("Task %s is not active", id)})
		return false
	}
	return true
}

func workerOf(cmd board.Command) string {
	return firstNonEmpty(cmd.Args.Worker, cmd.Source)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
