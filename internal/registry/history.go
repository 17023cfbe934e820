package registry

import "github.com/dyluth/tandem/pkg/board"

// DefaultHistoryCapacity bounds the completed-task log.
const DefaultHistoryCapacity = 500

// history is a bounded FIFO log of finalized tasks. The oldest entry is
// evicted once capacity is reached.
type history struct {
	capacity int
	items    []*board.Task
	index    map[string]*board.Task
}

func newHistory(capacity int) *history {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &history{
		capacity: capacity,
		items:    make([]*board.Task, 0, capacity),
		index:    make(map[string]*board.Task, capacity),
	}
}

// add appends task, evicting the oldest entry when full.
// Returns the evicted task ID, if any.
func (h *history) add(task *board.Task) string {
	evicted := ""
	if len(h.items) >= h.capacity {
		oldest := h.items[0]
		h.items = h.items[1:]
		delete(h.index, oldest.ID)
		evicted = oldest.ID
	}
	h.items = append(h.items, task)
	h.index[task.ID] = task
	return evicted
}

func (h *history) get(id string) (*board.Task, bool) {
	t, ok := h.index[id]
	return t, ok
}

// list returns the retained tasks, oldest first.
func (h *history) list() []*board.Task {
	return append([]*board.Task(nil), h.items...)
}

func (h *history) averageDurationMs() float64 {
	if len(h.items) == 0 {
		return 0
	}
	var total int64
	for _, t := range h.items {
		total += t.DurationMs
	}
	return float64(total) / float64(len(h.items))
}
