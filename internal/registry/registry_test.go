package registry

import (
	"testing"
	"time"

	"github.com/dyluth/tandem/internal/scheduler"
	"github.com/dyluth/tandem/pkg/board"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

// setupTestRegistry creates an attached registry on a fresh bus with a manual clock
func setupTestRegistry(t *testing.T, capacity int) (*Registry, *board.Bus, *scheduler.ManualClock) {
	t.Helper()
	clock := scheduler.NewManualClock(epoch)
	bus := board.NewBus(board.BusWithClock(clock.Now))
	reg := New(bus, clock, nil, capacity)
	reg.Attach()
	return reg, bus, clock
}

func TestCreateTask(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		reg, _, _ := setupTestRegistry(t, 0)
		task := reg.CreateTask(CreateParams{})

		assert.Equal(t, "T-0001", task.ID)
		assert.Equal(t, DefaultTitle, task.Title)
		assert.Equal(t, board.PriorityNormal, task.Priority)
		assert.Equal(t, board.AuthorityPrimary, task.Authority)
		assert.Equal(t, board.StatusPending, task.Status)
		assert.Equal(t, epoch, task.CreatedAt)
		require.Len(t, task.DelegationChain, 1)
		assert.Equal(t, "created", task.DelegationChain[0].Action)
	})

	t.Run("assigns monotonically increasing ids", func(t *testing.T) {
		reg, _, _ := setupTestRegistry(t, 0)
		first := reg.CreateTask(CreateParams{Title: "a"})
		second := reg.CreateTask(CreateParams{Title: "b"})
		assert.Equal(t, "T-0001", first.ID)
		assert.Equal(t, "T-0002", second.ID)
	})

	t.Run("publishes creation snapshot", func(t *testing.T) {
		reg, bus, _ := setupTestRegistry(t, 0)
		created := bus.Collect(board.ChannelTaskCreated)

		task := reg.CreateTask(CreateParams{Title: "Fix login bug", Authority: board.AuthorityMirror})

		events := created()
		require.Len(t, events, 1)
		snapshot := events[0].Payload.(*board.Task)
		assert.Equal(t, task.ID, snapshot.ID)
		assert.Equal(t, board.AuthorityMirror, snapshot.Authority)
	})

	t.Run("returned snapshot does not alias registry state", func(t *testing.T) {
		reg, _, _ := setupTestRegistry(t, 0)
		task := reg.CreateTask(CreateParams{Title: "original"})
		task.Title = "mutated"

		stored, ok := reg.Get(task.ID)
		require.True(t, ok)
		assert.Equal(t, "original", stored.Title)
	})
}

func TestLifecycle_HappyPath(t *testing.T) {
	reg, bus, clock := setupTestRegistry(t, 0)
	finalized := bus.Collect(board.ChannelTaskFinalized)
	task := reg.CreateTask(CreateParams{Title: "Build dashboard"})

	bus.Publish(board.ChannelTaskDelegated, board.Delegated{
		TaskID: task.ID, FromWorker: "chief", ToWorker: "lead-1", Queue: "flagship", Division: "engineering",
	})
	got, _ := reg.Get(task.ID)
	assert.Equal(t, board.StatusDelegated, got.Status)
	assert.Equal(t, []string{"flagship"}, got.Queues)
	assert.Equal(t, "engineering", got.Division)

	bus.Publish(board.ChannelTaskProgress, board.Progress{TaskID: task.ID, Progress: 40, Worker: "dev-1"})
	got, _ = reg.Get(task.ID)
	assert.Equal(t, board.StatusInProgress, got.Status)
	assert.Equal(t, 40, got.Progress)

	bus.Publish(board.ChannelTaskSwarmed, board.Swarmed{TaskID: task.ID, Coordinator: "chief", Workers: []string{"w1", "w2"}, Queue: "flagship"})
	got, _ = reg.Get(task.ID)
	assert.Equal(t, board.StatusSwarming, got.Status)
	assert.ElementsMatch(t, []string{"w1", "w2"}, got.RecruitedWorkers)

	bus.Publish(board.ChannelSwarmReleased, board.SwarmReleased{TaskID: task.ID, Workers: []string{"w1", "w2"}})
	got, _ = reg.Get(task.ID)
	assert.Equal(t, board.StatusInProgress, got.Status)
	assert.Empty(t, got.RecruitedWorkers)

	clock.Advance(90 * time.Second)
	bus.Publish(board.ChannelTaskCompleted, board.Completed{TaskID: task.ID, Result: "shipped"})

	assert.False(t, reg.IsActive(task.ID))
	assert.Empty(t, reg.ListActive())

	got, ok := reg.Get(task.ID)
	require.True(t, ok, "completed task is still retrievable from history")
	assert.Equal(t, board.StatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
	assert.Equal(t, "shipped", got.Result)
	require.NotNil(t, got.CompletedAt)
	assert.Equal(t, int64(90_000), got.DurationMs)

	actions := make([]string, 0, len(got.DelegationChain))
	for _, step := range got.DelegationChain {
		actions = append(actions, step.Action)
	}
	assert.Equal(t, []string{"created", "delegated", "progress", "swarmed", "swarm-released", "completed"}, actions)

	require.Len(t, finalized(), 1)
}

func TestLifecycle_TerminalNeverRegresses(t *testing.T) {
	reg, bus, _ := setupTestRegistry(t, 0)
	task := reg.CreateTask(CreateParams{Title: "x"})

	bus.Publish(board.ChannelTaskFailed, board.Failed{TaskID: task.ID, Reason: "recalled"})
	bus.Publish(board.ChannelTaskCompleted, board.Completed{TaskID: task.ID, Result: "too late"})
	bus.Publish(board.ChannelTaskProgress, board.Progress{TaskID: task.ID, Progress: 10})
	reg.OnFailed(board.Failed{TaskID: task.ID, Reason: "again"})

	got, ok := reg.Get(task.ID)
	require.True(t, ok)
	assert.Equal(t, board.StatusFailed, got.Status)
	assert.Equal(t, "recalled", got.Result)

	history := reg.History()
	require.Len(t, history, 1, "task appears in history exactly once")
	stats := reg.Stats()
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 0, stats.Completed)
}

func TestLifecycle_UnknownTaskIsIgnored(t *testing.T) {
	reg, bus, _ := setupTestRegistry(t, 0)
	stats := bus.Collect(board.ChannelStatsChanged)

	assert.NotPanics(t, func() {
		reg.OnDelegated(board.Delegated{TaskID: "T-9999", Queue: "q"})
		reg.OnProgress(board.Progress{TaskID: "T-9999", Progress: 50})
		reg.OnSwarmed(board.Swarmed{TaskID: "T-9999"})
		reg.OnCompleted(board.Completed{TaskID: "T-9999"})
		reg.OnFailed(board.Failed{TaskID: "T-9999"})
	})
	assert.Empty(t, stats(), "no-ops publish nothing")
	assert.Empty(t, reg.History())
}

func TestEveryMutationPublishesStats(t *testing.T) {
	reg, bus, _ := setupTestRegistry(t, 0)
	stats := bus.Collect(board.ChannelStatsChanged)

	task := reg.CreateTask(CreateParams{Title: "x"})
	bus.Publish(board.ChannelTaskDelegated, board.Delegated{TaskID: task.ID, Queue: "q"})
	bus.Publish(board.ChannelTaskProgress, board.Progress{TaskID: task.ID, Progress: 5})
	bus.Publish(board.ChannelTaskCompleted, board.Completed{TaskID: task.ID})

	events := stats()
	require.Len(t, events, 4)
	last := events[3].Payload.(board.Stats)
	assert.Equal(t, 1, last.Completed)
	assert.Equal(t, 0, last.Active)
}

func TestDelegated_SecondBranchKeepsState(t *testing.T) {
	reg, bus, _ := setupTestRegistry(t, 0)
	task := reg.CreateTask(CreateParams{Title: "Full-stack release", Authority: board.AuthorityBoth})

	bus.Publish(board.ChannelTaskDelegated, board.Delegated{TaskID: task.ID, Queue: "flagship", Authority: board.AuthorityPrimary})
	bus.Publish(board.ChannelTaskProgress, board.Progress{TaskID: task.ID, Progress: 10})
	bus.Publish(board.ChannelTaskDelegated, board.Delegated{
		TaskID: task.ID, Queue: "ops", Authority: board.AuthorityMirror, Fallback: true, Note: "warning: unknown queue",
	})

	got, _ := reg.Get(task.ID)
	assert.Equal(t, board.StatusInProgress, got.Status)
	assert.Equal(t, []string{"flagship", "ops"}, got.Queues)
	last := got.DelegationChain[len(got.DelegationChain)-1]
	assert.Equal(t, "delegated", last.Action)
	assert.Equal(t, "warning: unknown queue", last.Note)
}

func TestHistory_EvictsOldestFirst(t *testing.T) {
	reg, bus, _ := setupTestRegistry(t, 2)

	var ids []string
	for i := 0; i < 3; i++ {
		task := reg.CreateTask(CreateParams{Title: "job"})
		ids = append(ids, task.ID)
		bus.Publish(board.ChannelTaskCompleted, board.Completed{TaskID: task.ID})
	}

	history := reg.History()
	require.Len(t, history, 2)
	assert.Equal(t, ids[1], history[0].ID)
	assert.Equal(t, ids[2], history[1].ID)

	_, ok := reg.Get(ids[0])
	assert.False(t, ok, "evicted task is gone")

	// A late event for the evicted task is a tolerated race.
	assert.NotPanics(t, func() { reg.OnCompleted(board.Completed{TaskID: ids[0]}) })
	assert.Equal(t, 3, reg.Stats().Completed)
}

func TestQueries(t *testing.T) {
	reg, bus, clock := setupTestRegistry(t, 0)

	a := reg.CreateTask(CreateParams{Title: "a"})
	b := reg.CreateTask(CreateParams{Title: "b"})
	c := reg.CreateTask(CreateParams{Title: "c"})

	bus.Publish(board.ChannelTaskDelegated, board.Delegated{TaskID: a.ID, Queue: "security", ToWorker: "sec-lead"})
	bus.Publish(board.ChannelTaskDelegated, board.Delegated{TaskID: b.ID, Queue: "security"})
	bus.Publish(board.ChannelTaskDelegated, board.Delegated{TaskID: c.ID, Queue: "legal"})
	bus.Publish(board.ChannelTaskProgress, board.Progress{TaskID: c.ID, Progress: 20, Worker: "sec-lead"})

	t.Run("list active is ordered by id", func(t *testing.T) {
		active := reg.ListActive()
		require.Len(t, active, 3)
		assert.Equal(t, []string{a.ID, b.ID, c.ID}, []string{active[0].ID, active[1].ID, active[2].ID})
	})

	t.Run("list by queue", func(t *testing.T) {
		tasks := reg.ListByQueue("security")
		require.Len(t, tasks, 2)
		assert.Equal(t, a.ID, tasks[0].ID)
		assert.Empty(t, reg.ListByQueue("finance"))
	})

	t.Run("list by worker", func(t *testing.T) {
		tasks := reg.ListByWorker("sec-lead")
		require.Len(t, tasks, 2)
		assert.Equal(t, c.ID, tasks[1].ID)
	})

	t.Run("stats", func(t *testing.T) {
		clock.Advance(2 * time.Second)
		bus.Publish(board.ChannelTaskCompleted, board.Completed{TaskID: a.ID})
		clock.Advance(2 * time.Second)
		bus.Publish(board.ChannelTaskFailed, board.Failed{TaskID: b.ID, Reason: "nope"})

		stats := reg.Stats()
		assert.Equal(t, 3, stats.Created)
		assert.Equal(t, 1, stats.Active)
		assert.Equal(t, 1, stats.InProgress)
		assert.Equal(t, 1, stats.Completed)
		assert.Equal(t, 1, stats.Failed)
		assert.InDelta(t, 3000, stats.AverageDurationMs, 0.001)
	})
}

func TestProgressIsClamped(t *testing.T) {
	reg, bus, _ := setupTestRegistry(t, 0)
	task := reg.CreateTask(CreateParams{Title: "x"})

	bus.Publish(board.ChannelTaskProgress, board.Progress{TaskID: task.ID, Progress: 250})
	got, _ := reg.Get(task.ID)
	assert.Equal(t, 100, got.Progress)

	bus.Publish(board.ChannelTaskProgress, board.Progress{TaskID: task.ID, Progress: -5})
	got, _ = reg.Get(task.ID)
	assert.Equal(t, 0, got.Progress)
}

func TestNextStatus(t *testing.T) {
	tests := []struct {
		from   board.TaskStatus
		event  lifecycleEvent
		to     board.TaskStatus
		accept bool
	}{
		{board.StatusPending, eventDelegated, board.StatusDelegated, true},
		{board.StatusInProgress, eventDelegated, board.StatusInProgress, true},
		{board.StatusDelegated, eventProgress, board.StatusInProgress, true},
		{board.StatusSwarming, eventProgress, board.StatusSwarming, true},
		{board.StatusPending, eventSwarmed, board.StatusSwarming, true},
		{board.StatusSwarming, eventSwarmReleased, board.StatusInProgress, true},
		{board.StatusDelegated, eventSwarmReleased, board.StatusDelegated, true},
		{board.StatusPending, eventCompleted, board.StatusCompleted, true},
		{board.StatusSwarming, eventFailed, board.StatusFailed, true},
		{board.StatusCompleted, eventFailed, board.StatusCompleted, false},
		{board.StatusFailed, eventSwarmed, board.StatusFailed, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.event), func(t *testing.T) {
			to, ok := nextStatus(tt.from, tt.event)
			assert.Equal(t, tt.accept, ok)
			assert.Equal(t, tt.to, to)
		})
	}
}
