// Package recruit temporarily pulls compatible workers from their home
// queues into a swarm bound to one task, and returns them afterwards.
package recruit

import (
	"strings"
	"time"

	"github.com/dyluth/tandem/internal/roster"
	"github.com/dyluth/tandem/internal/scheduler"
	"github.com/dyluth/tandem/pkg/board"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// DefaultMaxWorkers caps a swarm when the request does not.
	DefaultMaxWorkers = 5

	// DefaultSettleDelay paces worker movement in and out of a swarm.
	DefaultSettleDelay = 1500 * time.Millisecond
)

// SessionStatus is the lifecycle state of a swarm.
type SessionStatus string

const (
	SessionRecruiting SessionStatus = "recruiting"
	SessionActive     SessionStatus = "active"
	SessionCompleting SessionStatus = "completing"
)

// WorkerRef records where a borrowed worker came from.
type WorkerRef struct {
	ID          string            `json:"id"`
	OriginQueue string            `json:"origin_queue"`
	OriginState board.WorkerState `json:"origin_state"`
}

// Session binds borrowed workers to one task. It does not own the workers.
type Session struct {
	ID            string        `json:"id"`
	TaskID        string        `json:"task_id"`
	TargetQueue   string        `json:"target_queue"`
	CoordinatorID string        `json:"coordinator_id"`
	Workers       []WorkerRef   `json:"workers"`
	Status        SessionStatus `json:"status"`
	StartedAt     time.Time     `json:"started_at"`

	timer scheduler.TimerID
}

// WorkerIDs returns the ids of the borrowed workers.
func (s *Session) WorkerIDs() []string {
	ids := make([]string, len(s.Workers))
	for i, w := range s.Workers {
		ids[i] = w.ID
	}
	return ids
}

// Option customizes an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithSettleDelay sets the movement delay. Zero applies moves immediately.
func WithSettleDelay(d time.Duration) Option {
	return func(e *Engine) {
		if d >= 0 {
			e.settle = d
		}
	}
}

// WithMaxWorkers sets the default swarm size.
func WithMaxWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxWorkers = n
		}
	}
}

// WithCapabilityDivisions sets the capability to division table.
func WithCapabilityDivisions(divisions map[string]string) Option {
	return func(e *Engine) {
		e.divisions = divisions
	}
}

// Engine owns every swarm session.
type Engine struct {
	bus        *board.Bus
	roster     *roster.Roster
	sched      *scheduler.Scheduler
	logger     *zap.Logger
	divisions  map[string]string
	settle     time.Duration
	maxWorkers int

	sessions map[string]*Session // by task id
	bound    map[string]string   // worker id -> task id
}

// New creates a recruitment engine.
func New(bus *board.Bus, r *roster.Roster, sched *scheduler.Scheduler, opts ...Option) *Engine {
	e := &Engine{
		bus:        bus,
		roster:     r,
		sched:      sched,
		logger:     zap.NewNop(),
		settle:     DefaultSettleDelay,
		maxWorkers: DefaultMaxWorkers,
		sessions:   make(map[string]*Session),
		bound:      make(map[string]string),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(zap.String("component", "recruit"))
	return e
}

// Attach subscribes to swarm requests, recalls and task termination.
func (e *Engine) Attach() {
	e.bus.Subscribe(board.ChannelSwarmRequest, func(ev board.Event) {
		if req, ok := ev.Payload.(board.SwarmRequest); ok {
			e.Recruit(req)
		}
	})
	e.bus.Subscribe(board.ChannelSwarmRecall, func(ev board.Event) {
		if p, ok := ev.Payload.(board.Recall); ok {
			e.Release(p.TaskID)
		}
	})
	e.bus.Subscribe(board.ChannelTaskCompleted, func(ev board.Event) {
		if p, ok := ev.Payload.(board.Completed); ok {
			e.Release(p.TaskID)
		}
	})
	e.bus.Subscribe(board.ChannelTaskFailed, func(ev board.Event) {
		if p, ok := ev.Payload.(board.Failed); ok {
			e.Release(p.TaskID)
		}
	})
}

// Candidates returns the eligible workers for req, best first, capped at
// the request's max (or the engine default). Workers already bound to a
// session are never candidates.
func (e *Engine) Candidates(req board.SwarmRequest) []Candidate {
	var candidates []Candidate
	for _, w := range e.roster.List() {
		if _, busy := e.bound[w.ID]; busy {
			continue
		}
		if s := Score(w, req, e.divisions); s > 0 {
			candidates = append(candidates, Candidate{
				WorkerID:    w.ID,
				OriginQueue: w.Queue,
				OriginState: w.State,
				Score:       s,
			})
		}
	}

	limit := req.MaxWorkers
	if limit <= 0 {
		limit = e.maxWorkers
	}
	return rank(candidates, limit)
}

// Recruit forms a session for req. It is a logged no-op when the task
// already has a session or nobody is eligible.
func (e *Engine) Recruit(req board.SwarmRequest) (*Session, bool) {
	if _, exists := e.sessions[req.TaskID]; exists {
		e.logger.Info("task already has a swarm", zap.String("task_id", req.TaskID))
		return nil, false
	}

	candidates := e.Candidates(req)
	if len(candidates) == 0 {
		e.logger.Info("no eligible workers for swarm",
			zap.String("event_type", "swarm_skipped"),
			zap.String("task_id", req.TaskID),
			zap.String("target_queue", req.TargetQueue),
			zap.Strings("capabilities", req.RequiredCapabilities))
		return nil, false
	}

	session := &Session{
		ID:            uuid.New().String(),
		TaskID:        req.TaskID,
		TargetQueue:   req.TargetQueue,
		CoordinatorID: req.CoordinatorID,
		Status:        SessionRecruiting,
		StartedAt:     e.sched.Now(),
	}
	for _, c := range candidates {
		if err := e.roster.Move(c.WorkerID, req.TargetQueue, board.WorkerCollaborating); err != nil {
			e.logger.Warn("failed to recruit worker", zap.String("worker_id", c.WorkerID), zap.Error(err))
			continue
		}
		session.Workers = append(session.Workers, WorkerRef{ID: c.WorkerID, OriginQueue: c.OriginQueue, OriginState: c.OriginState})
		e.bound[c.WorkerID] = req.TaskID
	}
	e.sessions[req.TaskID] = session

	e.logger.Info("swarm formed",
		zap.String("event_type", "swarm_formed"),
		zap.String("task_id", req.TaskID),
		zap.String("session_id", session.ID),
		zap.String("workers", strings.Join(session.WorkerIDs(), ",")))

	e.bus.Publish(board.ChannelTaskSwarmed, board.Swarmed{
		TaskID:      req.TaskID,
		SessionID:   session.ID,
		Coordinator: req.CoordinatorID,
		Workers:     session.WorkerIDs(),
		Queue:       req.TargetQueue,
	})

	session.timer = e.after("swarm-activate", func() { e.activate(session) })
	return session, true
}

func (e *Engine) activate(session *Session) {
	if session.Status != SessionRecruiting {
		return
	}
	session.Status = SessionActive
	session.timer = 0
	for _, w := range session.Workers {
		if err := e.roster.SetState(w.ID, board.WorkerWorking); err != nil {
			e.logger.Warn("failed to activate worker", zap.String("worker_id", w.ID), zap.Error(err))
		}
	}
}

// Release tears down the task's session: a pending activation is cancelled
// and, after the settle delay, every worker returns to its origin queue and
// state. Unknown or already completing sessions are ignored.
func (e *Engine) Release(taskID string) bool {
	session, ok := e.sessions[taskID]
	if !ok || session.Status == SessionCompleting {
		return false
	}

	if session.timer != 0 {
		e.sched.Cancel(session.timer)
	}
	session.Status = SessionCompleting
	session.timer = e.after("swarm-release", func() { e.restore(session) })
	return true
}

func (e *Engine) restore(session *Session) {
	for _, w := range session.Workers {
		if err := e.roster.Move(w.ID, w.OriginQueue, w.OriginState); err != nil {
			e.logger.Warn("failed to restore worker", zap.String("worker_id", w.ID), zap.Error(err))
		}
		delete(e.bound, w.ID)
	}
	delete(e.sessions, session.TaskID)

	e.logger.Info("swarm released",
		zap.String("event_type", "swarm_released"),
		zap.String("task_id", session.TaskID),
		zap.String("session_id", session.ID))

	e.bus.Publish(board.ChannelSwarmReleased, board.SwarmReleased{
		TaskID:    session.TaskID,
		SessionID: session.ID,
		Workers:   session.WorkerIDs(),
	})
}

// after schedules fn after the settle delay, or runs it now when there is none.
func (e *Engine) after(name string, fn func()) scheduler.TimerID {
	if e.settle <= 0 {
		fn()
		return 0
	}
	return e.sched.After(e.settle, name, fn)
}

// Session returns a copy of the task's session.
func (e *Engine) Session(taskID string) (Session, bool) {
	s, ok := e.sessions[taskID]
	if !ok {
		return Session{}, false
	}
	c := *s
	c.Workers = append([]WorkerRef(nil), s.Workers...)
	return c, true
}

// ActiveSessions returns the number of live sessions in any state.
func (e *Engine) ActiveSessions() int {
	return len(e.sessions)
}
