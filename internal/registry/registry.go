// Package registry owns the canonical lifecycle of every task. It is the only
// component that mutates task state; all transitions are driven by lifecycle
// events published on the bus.
package registry

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dyluth/tandem/internal/scheduler"
	"github.com/dyluth/tandem/pkg/board"
	"go.uber.org/zap"
)

// DefaultTitle replaces a missing task title.
const DefaultTitle = "Untitled Task"

// CreateParams describes a task to create. Every field is optional.
type CreateParams struct {
	Title        string
	Description  string
	Priority     board.Priority
	Authority    board.Authority
	Project      string
	Queue        string
	Source       string
	LinkedTaskID string
}

// Registry tracks active tasks and a bounded history of finalized ones.
type Registry struct {
	bus     *board.Bus
	clock   scheduler.Clock
	logger  *zap.Logger
	seq     int
	active  map[string]*board.Task
	history *history

	created   int
	completed int
	failed    int
}

// New creates a registry publishing on bus.
// historyCapacity <= 0 selects DefaultHistoryCapacity.
func New(bus *board.Bus, clock scheduler.Clock, logger *zap.Logger, historyCapacity int) *Registry {
	if clock == nil {
		clock = scheduler.RealClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		bus:     bus,
		clock:   clock,
		logger:  logger.With(zap.String("component", "registry")),
		active:  make(map[string]*board.Task),
		history: newHistory(historyCapacity),
	}
}

// Attach subscribes the registry to the lifecycle channels.
func (r *Registry) Attach() {
	r.bus.Subscribe(board.ChannelTaskDelegated, func(e board.Event) {
		if p, ok := e.Payload.(board.Delegated); ok {
			r.OnDelegated(p)
		}
	})
	r.bus.Subscribe(board.ChannelTaskSwarmed, func(e board.Event) {
		if p, ok := e.Payload.(board.Swarmed); ok {
			r.OnSwarmed(p)
		}
	})
	r.bus.Subscribe(board.ChannelSwarmReleased, func(e board.Event) {
		if p, ok := e.Payload.(board.SwarmReleased); ok {
			r.OnSwarmReleased(p)
		}
	})
	r.bus.Subscribe(board.ChannelTaskProgress, func(e board.Event) {
		if p, ok := e.Payload.(board.Progress); ok {
			r.OnProgress(p)
		}
	})
	r.bus.Subscribe(board.ChannelTaskCompleted, func(e board.Event) {
		if p, ok := e.Payload.(board.Completed); ok {
			r.OnCompleted(p)
		}
	})
	r.bus.Subscribe(board.ChannelTaskFailed, func(e board.Event) {
		if p, ok := e.Payload.(board.Failed); ok {
			r.OnFailed(p)
		}
	})
}

// CreateTask assigns an id, stores the task as pending and publishes
// task.created. It never fails; missing fields get defaults.
func (r *Registry) CreateTask(params CreateParams) *board.Task {
	r.seq++
	r.created++
	now := r.clock.Now()

	title := strings.TrimSpace(params.Title)
	if title == "" {
		title = DefaultTitle
	}
	priority := params.Priority
	if priority == "" {
		priority = board.PriorityNormal
	}
	authority := params.Authority
	if authority == "" {
		authority = board.AuthorityPrimary
	}

	task := &board.Task{
		ID:           formatID(r.seq),
		Title:        title,
		Description:  params.Description,
		Priority:     priority,
		Authority:    authority,
		LinkedTaskID: params.LinkedTaskID,
		Project:      params.Project,
		Queue:        params.Queue,
		Source:       params.Source,
		Status:       board.StatusPending,
		DelegationChain: []board.DelegationStep{{
			FromWorker: params.Source,
			Action:     "created",
			Note:       fmt.Sprintf("authority=%s priority=%s", authority, priority),
			Timestamp:  now,
		}},
		AssignedWorkers:  []string{},
		RecruitedWorkers: []string{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	r.active[task.ID] = task

	r.logger.Info("task created",
		zap.String("event_type", "task_created"),
		zap.String("task_id", task.ID),
		zap.String("title", task.Title),
		zap.String("authority", string(task.Authority)))

	snapshot := task.Clone()
	r.bus.Publish(board.ChannelTaskCreated, snapshot)
	r.publishStats()
	return snapshot
}

// OnDelegated records a hand-off to a queue.
func (r *Registry) OnDelegated(p board.Delegated) {
	step := board.DelegationStep{
		FromWorker: p.FromWorker,
		ToWorker:   p.ToWorker,
		Queue:      p.Queue,
		Action:     "delegated",
		Note:       p.Note,
	}
	r.apply(p.TaskID, eventDelegated, step, func(t *board.Task) {
		if !t.HasQueue(p.Queue) {
			t.Queues = append(t.Queues, p.Queue)
		}
		if t.Division == "" {
			t.Division = p.Division
		}
		if p.ToWorker != "" {
			t.AssignedWorkers = appendUnique(t.AssignedWorkers, p.ToWorker)
		}
	})
}

// OnSwarmed records the formation of a recruitment session.
func (r *Registry) OnSwarmed(p board.Swarmed) {
	step := board.DelegationStep{
		FromWorker: p.Coordinator,
		Queue:      p.Queue,
		Action:     "swarmed",
		Note:       fmt.Sprintf("recruited %s", strings.Join(p.Workers, ", ")),
	}
	r.apply(p.TaskID, eventSwarmed, step, func(t *board.Task) {
		for _, w := range p.Workers {
			t.RecruitedWorkers = appendUnique(t.RecruitedWorkers, w)
		}
	})
}

// OnSwarmReleased records that recruited workers went home.
func (r *Registry) OnSwarmReleased(p board.SwarmReleased) {
	step := board.DelegationStep{
		Action: "swarm-released",
		Note:   fmt.Sprintf("released %s", strings.Join(p.Workers, ", ")),
	}
	r.apply(p.TaskID, eventSwarmReleased, step, func(t *board.Task) {
		t.RecruitedWorkers = removeAll(t.RecruitedWorkers, p.Workers)
	})
}

// OnProgress records executor progress, clamped to 0..100.
func (r *Registry) OnProgress(p board.Progress) {
	step := board.DelegationStep{
		FromWorker: p.Worker,
		Action:     "progress",
		Note:       strings.TrimSpace(fmt.Sprintf("%d%% %s", clampProgress(p.Progress), p.Message)),
	}
	r.apply(p.TaskID, eventProgress, step, func(t *board.Task) {
		t.Progress = clampProgress(p.Progress)
		if p.Worker != "" {
			t.AssignedWorkers = appendUnique(t.AssignedWorkers, p.Worker)
		}
	})
}

// OnCompleted finalizes a task successfully.
func (r *Registry) OnCompleted(p board.Completed) {
	step := board.DelegationStep{FromWorker: p.Worker, Action: "completed", Note: p.Result}
	task, ok := r.apply(p.TaskID, eventCompleted, step, func(t *board.Task) {
		t.Result = p.Result
		t.Progress = 100
	})
	if ok {
		r.completed++
		r.finalize(task)
	}
}

// OnFailed finalizes a task as failed.
func (r *Registry) OnFailed(p board.Failed) {
	step := board.DelegationStep{FromWorker: p.Worker, Action: "failed", Note: p.Reason}
	task, ok := r.apply(p.TaskID, eventFailed, step, func(t *board.Task) {
		t.Result = p.Reason
	})
	if ok {
		r.failed++
		r.finalize(task)
	}
}

// apply runs a lifecycle event against an active task. Unknown ids and
// terminal tasks are ignored: a late event after eviction is a tolerated race.
func (r *Registry) apply(taskID string, ev lifecycleEvent, step board.DelegationStep, mutate func(*board.Task)) (*board.Task, bool) {
	task, ok := r.active[taskID]
	if !ok {
		r.logger.Debug("ignoring event for unknown task",
			zap.String("task_id", taskID),
			zap.String("event", string(ev)))
		return nil, false
	}

	next, ok := nextStatus(task.Status, ev)
	if !ok {
		return nil, false
	}

	now := r.clock.Now()
	mutate(task)
	task.Status = next
	task.UpdatedAt = now
	step.Timestamp = now
	task.DelegationChain = append(task.DelegationChain, step)

	if !next.IsTerminal() {
		r.publishStats()
	}
	return task, true
}

// finalize moves task from the active set into history.
func (r *Registry) finalize(task *board.Task) {
	completedAt := task.UpdatedAt
	task.CompletedAt = &completedAt
	task.DurationMs = completedAt.Sub(task.CreatedAt).Milliseconds()

	delete(r.active, task.ID)
	if evicted := r.history.add(task); evicted != "" {
		r.logger.Debug("history full, evicted oldest task", zap.String("task_id", evicted))
	}

	r.logger.Info("task finalized",
		zap.String("event_type", "task_finalized"),
		zap.String("task_id", task.ID),
		zap.String("status", string(task.Status)),
		zap.Int64("duration_ms", task.DurationMs))

	r.bus.Publish(board.ChannelTaskFinalized, task.Clone())
	r.publishStats()
}

func (r *Registry) publishStats() {
	r.bus.Publish(board.ChannelStatsChanged, r.Stats())
}

// Get returns a snapshot of an active or historical task.
func (r *Registry) Get(id string) (*board.Task, bool) {
	if t, ok := r.active[id]; ok {
		return t.Clone(), true
	}
	if t, ok := r.history.get(id); ok {
		return t.Clone(), true
	}
	return nil, false
}

// IsActive reports whether id is in the active set.
func (r *Registry) IsActive(id string) bool {
	_, ok := r.active[id]
	return ok
}

// ListActive returns snapshots of every active task ordered by id.
func (r *Registry) ListActive() []*board.Task {
	return r.filterActive(func(*board.Task) bool { return true })
}

// ListByQueue returns active tasks delegated to queueID.
func (r *Registry) ListByQueue(queueID string) []*board.Task {
	return r.filterActive(func(t *board.Task) bool { return t.HasQueue(queueID) })
}

// ListByWorker returns active tasks that workerID is assigned to or recruited for.
func (r *Registry) ListByWorker(workerID string) []*board.Task {
	return r.filterActive(func(t *board.Task) bool { return t.HasWorker(workerID) })
}

// History returns snapshots of finalized tasks, oldest first.
func (r *Registry) History() []*board.Task {
	items := r.history.list()
	out := make([]*board.Task, len(items))
	for i, t := range items {
		out[i] = t.Clone()
	}
	return out
}

// Stats returns aggregate counts and the average duration over history.
func (r *Registry) Stats() board.Stats {
	stats := board.Stats{
		Completed:         r.completed,
		Failed:            r.failed,
		Active:            len(r.active),
		Created:           r.created,
		AverageDurationMs: r.history.averageDurationMs(),
	}
	for _, t := range r.active {
		switch t.Status {
		case board.StatusPending:
			stats.Pending++
		case board.StatusDelegated:
			stats.Delegated++
		case board.StatusInProgress:
			stats.InProgress++
		case board.StatusSwarming:
			stats.Swarming++
		}
	}
	return stats
}

func (r *Registry) filterActive(keep func(*board.Task) bool) []*board.Task {
	out := make([]*board.Task, 0, len(r.active))
	for _, t := range r.active {
		if keep(t) {
			out = append(out, t.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return lessID(out[i].ID, out[j].ID) })
	return out
}

func formatID(seq int) string {
	return fmt.Sprintf("T-%04d", seq)
}

// lessID orders sequence ids numerically ("T-9999" < "T-10000").
func lessID(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

func clampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

func appendUnique(list []string, s string) []string {
	for _, item := range list {
		if item == s {
			return list
		}
	}
	return append(list, s)
}

func removeAll(list []string, remove []string) []string {
	drop := make(map[string]bool, len(remove))
	for _, s := range remove {
		drop[s] = true
	}
	out := list[:0]
	for _, s := range list {
		if !drop[s] {
			out = append(out, s)
		}
	}
	return out
}
