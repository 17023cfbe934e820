// Package dedup keeps a time-bounded index of recently seen task
// fingerprints and the authority owning each, so the same logical request is
// not independently actioned by both towers.
//
// The cache only reports; blocking a duplicate is the caller's decision.
package dedup

import (
	"strings"
	"time"

	"github.com/dyluth/tandem/internal/scheduler"
	"github.com/dyluth/tandem/pkg/board"
	"go.uber.org/zap"
)

const (
	// DefaultTTL is how long a fingerprint stays live.
	DefaultTTL = 5 * time.Minute

	// DefaultSweepInterval is the period of the background expiry sweep.
	DefaultSweepInterval = time.Minute
)

// Entry is one live fingerprint.
type Entry struct {
	Fingerprint     string          `json:"fingerprint"`
	OwningAuthority board.Authority `json:"owning_authority"`
	TaskID          string          `json:"task_id"`
	Title           string          `json:"title"`
	SeenAt          time.Time       `json:"seen_at"`
}

// Candidate is a not-yet-created request checked for duplication.
type Candidate struct {
	Title   string
	Project string
	Queue   string
}

// CandidateFor returns the candidate describing an existing task.
func CandidateFor(task *board.Task) Candidate {
	return Candidate{Title: task.Title, Project: task.Project, Queue: task.Queue}
}

// Fingerprint builds the normalized composite key for a request:
// lower-cased, whitespace-collapsed title, project and queue joined by "|".
func Fingerprint(c Candidate) string {
	return normalize(c.Title) + "|" + normalize(c.Project) + "|" + normalize(c.Queue)
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Cache is the duplicate index. Not safe for concurrent use; it is driven
// from the engine loop like every other component.
type Cache struct {
	bus        *board.Bus
	clock      scheduler.Clock
	logger     *zap.Logger
	ttl        time.Duration
	entries    map[string]Entry
	duplicates int

	sched   *scheduler.Scheduler
	sweepID scheduler.TimerID
}

// New creates a cache with the given TTL (<= 0 selects DefaultTTL).
func New(bus *board.Bus, clock scheduler.Clock, logger *zap.Logger, ttl time.Duration) *Cache {
	if clock == nil {
		clock = scheduler.RealClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		bus:     bus,
		clock:   clock,
		logger:  logger.With(zap.String("component", "dedup")),
		ttl:     ttl,
		entries: make(map[string]Entry),
	}
}

// Attach subscribes the cache to task.created.
func (c *Cache) Attach() {
	c.bus.Subscribe(board.ChannelTaskCreated, func(e board.Event) {
		if task, ok := e.Payload.(*board.Task); ok {
			c.OnTaskCreated(task)
		}
	})
}

// Start installs the periodic expiry sweep on sched.
// Correctness does not depend on it: every lookup sweeps first.
func (c *Cache) Start(sched *scheduler.Scheduler, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	c.Stop()
	c.sched = sched
	c.sweepID = sched.Every(interval, "dedup-sweep", func() { c.Sweep() })
}

// Stop cancels the periodic sweep.
func (c *Cache) Stop() {
	if c.sched != nil && c.sweepID != 0 {
		c.sched.Cancel(c.sweepID)
	}
	c.sweepID = 0
}

// IsDuplicate reports whether a live entry exists for the candidate.
func (c *Cache) IsDuplicate(candidate Candidate) bool {
	_, ok := c.Lookup(candidate)
	return ok
}

// Lookup sweeps expired entries and returns the live entry for the candidate.
func (c *Cache) Lookup(candidate Candidate) (Entry, bool) {
	c.Sweep()
	entry, ok := c.entries[Fingerprint(candidate)]
	return entry, ok
}

// RegisterTask inserts or overwrites the fingerprint entry for task.
func (c *Cache) RegisterTask(task *board.Task, authority board.Authority) {
	if authority == "" {
		authority = task.Authority
	}
	fp := Fingerprint(CandidateFor(task))
	c.entries[fp] = Entry{
		Fingerprint:     fp,
		OwningAuthority: authority,
		TaskID:          task.ID,
		Title:           task.Title,
		SeenAt:          c.clock.Now(),
	}

	c.logger.Debug("fingerprint registered",
		zap.String("task_id", task.ID),
		zap.String("fingerprint", fp),
		zap.String("authority", string(authority)))

	c.publishStatus()
}

// OnTaskCreated is the event-driven path. A live entry owned by a different
// task is reported as a duplicate without being replaced; otherwise the task
// is registered.
func (c *Cache) OnTaskCreated(task *board.Task) {
	existing, ok := c.Lookup(CandidateFor(task))
	if !ok {
		c.RegisterTask(task, task.Authority)
		return
	}
	if existing.TaskID == task.ID {
		return
	}

	c.duplicates++
	c.logger.Warn("duplicate task detected",
		zap.String("event_type", "duplicate_detected"),
		zap.String("new_task_id", task.ID),
		zap.String("existing_task_id", existing.TaskID),
		zap.String("existing_authority", string(existing.OwningAuthority)))

	c.bus.Publish(board.ChannelDuplicate, board.Duplicate{
		NewTaskID:         task.ID,
		ExistingTaskID:    existing.TaskID,
		ExistingAuthority: existing.OwningAuthority,
		Title:             task.Title,
	})
	c.publishStatus()
}

// RequestCrossAuthority suggests which authority should take task. When the
// fingerprint is already owned the other authority is returned, so the two
// towers collaborate instead of duplicating; otherwise the authority with
// fewer live entries wins, ties going to primary.
func (c *Cache) RequestCrossAuthority(task *board.Task) board.Authority {
	if existing, ok := c.Lookup(CandidateFor(task)); ok {
		return existing.OwningAuthority.Other()
	}

	status := c.Status()
	if status.MirrorEntries < status.PrimaryEntries {
		return board.AuthorityMirror
	}
	return board.AuthorityPrimary
}

// Sweep removes expired entries and returns how many were dropped.
func (c *Cache) Sweep() int {
	now := c.clock.Now()
	removed := 0
	for fp, entry := range c.entries {
		if now.Sub(entry.SeenAt) > c.ttl {
			delete(c.entries, fp)
			removed++
		}
	}
	if removed > 0 {
		c.logger.Debug("expired fingerprints swept", zap.Int("removed", removed))
	}
	return removed
}

// Len returns the number of stored entries (live or not yet swept).
func (c *Cache) Len() int {
	return len(c.entries)
}

// Duplicates returns how many duplicates have been detected.
func (c *Cache) Duplicates() int {
	return c.duplicates
}

// Status summarizes the cache. Entries owned by both towers count for each.
func (c *Cache) Status() board.BridgeStatus {
	status := board.BridgeStatus{Entries: len(c.entries), Duplicates: c.duplicates}
	for _, entry := range c.entries {
		if entry.OwningAuthority.Includes(board.AuthorityPrimary) {
			status.PrimaryEntries++
		}
		if entry.OwningAuthority.Includes(board.AuthorityMirror) {
			status.MirrorEntries++
		}
	}
	return status
}

func (c *Cache) publishStatus() {
	c.bus.Publish(board.ChannelBridgeStatus, c.Status())
}
