// Package roster is the directory of workers and their current queue
// affiliation. Moves are published on worker.moved.
package roster

import (
	"errors"
	"fmt"
	"sort"

	"github.com/dyluth/tandem/pkg/board"
	"go.uber.org/zap"
)

// ErrUnknownWorker is returned for ids the roster does not hold.
var ErrUnknownWorker = errors.New("unknown worker")

// Roster holds every worker keyed by id.
type Roster struct {
	bus     *board.Bus
	logger  *zap.Logger
	workers map[string]*board.Worker
}

// New creates a roster seeded with workers.
func New(bus *board.Bus, logger *zap.Logger, workers []board.Worker) *Roster {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Roster{
		bus:     bus,
		logger:  logger.With(zap.String("component", "roster")),
		workers: make(map[string]*board.Worker, len(workers)),
	}
	for _, w := range workers {
		r.Add(w)
	}
	return r
}

// Add inserts or replaces a worker.
func (r *Roster) Add(w board.Worker) {
	if w.State == "" {
		w.State = board.WorkerIdle
	}
	w.Capabilities = append([]string(nil), w.Capabilities...)
	r.workers[w.ID] = &w
}

// Get returns a copy of the worker.
func (r *Roster) Get(id string) (board.Worker, bool) {
	w, ok := r.workers[id]
	if !ok {
		return board.Worker{}, false
	}
	return clone(w), true
}

// List returns every worker ordered by id.
func (r *Roster) List() []board.Worker {
	return r.filter(func(*board.Worker) bool { return true })
}

// ListByQueue returns the workers currently affiliated with queueID.
func (r *Roster) ListByQueue(queueID string) []board.Worker {
	return r.filter(func(w *board.Worker) bool { return w.Queue == queueID })
}

// Move reassigns a worker to queue with state and publishes worker.moved.
func (r *Roster) Move(id, queue string, state board.WorkerState) error {
	w, ok := r.workers[id]
	if !ok {
		return fmt.Errorf("failed to move worker %s: %w", id, ErrUnknownWorker)
	}
	if err := state.Validate(); err != nil {
		return fmt.Errorf("failed to move worker %s: %w", id, err)
	}

	moved := board.WorkerMoved{
		WorkerID:  id,
		FromQueue: w.Queue,
		ToQueue:   queue,
		FromState: w.State,
		ToState:   state,
	}
	w.Queue = queue
	w.State = state

	r.logger.Debug("worker moved",
		zap.String("worker_id", id),
		zap.String("from_queue", moved.FromQueue),
		zap.String("to_queue", queue),
		zap.String("state", string(state)))

	r.bus.Publish(board.ChannelWorkerMoved, moved)
	return nil
}

// SetState changes a worker's state in place.
func (r *Roster) SetState(id string, state board.WorkerState) error {
	w, ok := r.workers[id]
	if !ok {
		return fmt.Errorf("failed to set state of worker %s: %w", id, ErrUnknownWorker)
	}
	return r.Move(id, w.Queue, state)
}

func (r *Roster) filter(keep func(*board.Worker) bool) []board.Worker {
	out := make([]board.Worker, 0, len(r.workers))
	for _, w := range r.workers {
		if keep(w) {
			out = append(out, clone(w))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func clone(w *board.Worker) board.Worker {
	c := *w
	c.Capabilities = append([]string(nil), w.Capabilities...)
	return c
}
