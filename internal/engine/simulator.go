package engine

import (
	"github.com/dyluth/tandem/internal/config"
	"github.com/dyluth/tandem/internal/scheduler"
	"github.com/dyluth/tandem/pkg/board"
	"go.uber.org/zap"
)

// SimulatedResult is the result recorded for work completed by the simulator.
const SimulatedResult = "completed by simulation"

// Simulator stands in for the external consumer of queues declared with
// attached: false. Each hand-off reports 50% progress halfway through
// simulation.auto_complete_after and completes when it elapses.
type Simulator struct {
	bus      *board.Bus
	sched    *scheduler.Scheduler
	logger   *zap.Logger
	cfg      *config.TandemConfig
	detached map[string]bool
}

// NewSimulator creates a simulator for cfg's unattached queues.
func NewSimulator(bus *board.Bus, sched *scheduler.Scheduler, cfg *config.TandemConfig, logger *zap.Logger) *Simulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Simulator{
		bus:      bus,
		sched:    sched,
		logger:   logger.With(zap.String("component", "simulator")),
		cfg:      cfg,
		detached: make(map[string]bool),
	}
	for _, q := range cfg.Queues {
		if !q.IsAttached() {
			s.detached[q.ID] = true
		}
	}
	return s
}

// Enabled reports whether any work will be simulated.
func (s *Simulator) Enabled() bool {
	return s.cfg.Simulation.AutoCompleteAfter > 0 && len(s.detached) > 0
}

// Attach subscribes to every <queue>.task channel.
func (s *Simulator) Attach() {
	if !s.Enabled() {
		return
	}
	s.bus.Subscribe(board.QueueTaskPattern, func(e board.Event) {
		if qt, ok := e.Payload.(board.QueueTask); ok {
			s.OnQueueTask(qt)
		}
	})
}

// OnQueueTask schedules simulated progress and completion for hand-offs to
// unattached queues.
func (s *Simulator) OnQueueTask(qt board.QueueTask) {
	if !s.detached[qt.Queue] {
		return
	}
	worker := "sim:" + qt.Queue
	after := s.cfg.Simulation.AutoCompleteAfter

	s.sched.After(after/2, "simulate-progress", func() {
		s.bus.Publish(board.ChannelTaskProgress, board.Progress{TaskID: qt.TaskID, Progress: 50, Worker: worker})
	})
	s.sched.After(after, "simulate-complete", func() {
		s.bus.Publish(board.ChannelTaskCompleted, board.Completed{TaskID: qt.TaskID, Result: SimulatedResult, Worker: worker})
	})

	s.logger.Debug("simulating work",
		zap.String("task_id", qt.TaskID),
		zap.String("queue", qt.Queue),
		zap.Duration("after", after))
}
