package router

import (
	"fmt"

	"github.com/dyluth/tandem/internal/dedup"
	"github.com/dyluth/tandem/internal/registry"
	"github.com/dyluth/tandem/pkg/board"
	"go.uber.org/zap"
)

// Mirror is the router of the second authority. It consumes forwards from
// the primary router and resolves queues with the operational keyword table.
type Mirror struct {
	bus      *board.Bus
	registry *registry.Registry
	cache    *dedup.Cache
	queues   *QueueResolver
	logger   *zap.Logger
	notify   *notifier
}

// NewMirror wires the mirror router. queues must be the mirror resolver.
func NewMirror(bus *board.Bus, reg *registry.Registry, cache *dedup.Cache, queues *QueueResolver, logger *zap.Logger) *Mirror {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mirror{
		bus:      bus,
		registry: reg,
		cache:    cache,
		queues:   queues,
		logger:   logger.With(zap.String("component", MirrorID)),
		notify:   newNotifier(bus),
	}
}

// Attach subscribes to authority.newTask and task finalization.
func (m *Mirror) Attach() {
	m.bus.Subscribe(board.ChannelForward, func(e board.Event) {
		if f, ok := e.Payload.(board.Forward); ok {
			m.OnForward(f)
		}
	})
	m.notify.attach()
}

// OnForward reuses the forwarded task when TaskID is set and otherwise
// treats the forward as a fresh request.
func (m *Mirror) OnForward(f board.Forward) {
	if f.TaskID == "" {
		m.CreateAndDelegate(ArgsFromCommand(f.Args), f.Origin, f.Args.TaskID)
		return
	}

	task, ok := m.registry.Get(f.TaskID)
	if !ok || !m.registry.IsActive(f.TaskID) {
		m.logger.Warn("forwarded task is not active",
			zap.String("event_type", "forward_dropped"),
			zap.String("task_id", f.TaskID))
		return
	}

	res := m.queues.Resolve(QueueRequest{Queue: f.Args.Queue, Project: task.Project, Text: task.Title + " " + task.Description})
	delegate(m.bus, m.logger, task, res, MirrorID, board.AuthorityMirror, f.Args.Division)
}

// CreateAndDelegate creates a mirror-owned task for a fresh request, subject
// to the same duplicate check as the primary router. linkedTaskID, when set,
// back-references a related task.
func (m *Mirror) CreateAndDelegate(args CreateArgs, origin board.Origin, linkedTaskID string) *board.Task {
	candidate := dedup.Candidate{Title: args.title(), Project: args.Project, Queue: args.Queue}
	if existing, dup := m.cache.Lookup(candidate); dup {
		m.logger.Warn("duplicate request blocked",
			zap.String("event_type", "duplicate_blocked"),
			zap.String("title", args.title()),
			zap.String("existing_task_id", existing.TaskID),
			zap.String("existing_authority", string(existing.OwningAuthority)))
		m.notify.reply(origin, board.Reply{
			TaskID:  existing.TaskID,
			Message: fmt.Sprintf("Duplicate of %s (%s, owned by %s); change the title to submit anyway", existing.TaskID, existing.Title, existing.OwningAuthority),
		})
		return nil
	}

	params := args.params(board.AuthorityMirror, origin.Source)
	params.LinkedTaskID = linkedTaskID
	task := m.registry.CreateTask(params)
	m.cache.RegisterTask(task, board.AuthorityMirror)
	m.notify.track(task.ID, origin)

	res := m.queues.Resolve(QueueRequest{Queue: args.Queue, Project: args.Project, Text: args.text()})
	delegate(m.bus, m.logger, task, res, MirrorID, board.AuthorityMirror, args.Division)

	m.notify.reply(origin, board.Reply{
		TaskID:   task.ID,
		Accepted: true,
		Message:  fmt.Sprintf("Task %s created (%s) -> %s", task.ID, board.AuthorityMirror, res.Queue),
	})
	return task
}
