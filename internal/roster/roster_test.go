package roster

import (
	"errors"
	"testing"

	"github.com/dyluth/tandem/pkg/board"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRoster(t *testing.T) (*Roster, *board.Bus) {
	t.Helper()
	bus := board.NewBus()
	r := New(bus, nil, []board.Worker{
		{ID: "cleo", Queue: "security", State: board.WorkerBusy},
		{ID: "ava", Queue: "flagship", Capabilities: []string{"testing"}},
		{ID: "ben", Queue: "flagship", State: board.WorkerWorking},
	})
	return r, bus
}

func TestRoster_Queries(t *testing.T) {
	r, _ := setupTestRoster(t)

	all := r.List()
	require.Len(t, all, 3)
	assert.Equal(t, []string{"ava", "ben", "cleo"}, []string{all[0].ID, all[1].ID, all[2].ID})

	ava, ok := r.Get("ava")
	require.True(t, ok)
	assert.Equal(t, board.WorkerIdle, ava.State, "empty state defaults to idle")

	flagship := r.ListByQueue("flagship")
	assert.Len(t, flagship, 2)
	assert.Empty(t, r.ListByQueue("legal"))

	_, ok = r.Get("zed")
	assert.False(t, ok)
}

func TestRoster_GetReturnsCopy(t *testing.T) {
	r, _ := setupTestRoster(t)

	ava, _ := r.Get("ava")
	ava.Queue = "elsewhere"
	ava.Capabilities[0] = "mutated"

	stored, _ := r.Get("ava")
	assert.Equal(t, "flagship", stored.Queue)
	assert.Equal(t, []string{"testing"}, stored.Capabilities)
}

func TestRoster_Move(t *testing.T) {
	r, bus := setupTestRoster(t)
	moves := bus.Collect(board.ChannelWorkerMoved)

	require.NoError(t, r.Move("cleo", "flagship", board.WorkerCollaborating))

	cleo, _ := r.Get("cleo")
	assert.Equal(t, "flagship", cleo.Queue)
	assert.Equal(t, board.WorkerCollaborating, cleo.State)

	require.Len(t, moves(), 1)
	assert.Equal(t, board.WorkerMoved{
		WorkerID:  "cleo",
		FromQueue: "security",
		ToQueue:   "flagship",
		FromState: board.WorkerBusy,
		ToState:   board.WorkerCollaborating,
	}, moves()[0].Payload)
}

func TestRoster_Errors(t *testing.T) {
	r, bus := setupTestRoster(t)
	moves := bus.Collect(board.ChannelWorkerMoved)

	err := r.Move("zed", "flagship", board.WorkerIdle)
	assert.True(t, errors.Is(err, ErrUnknownWorker))

	err = r.SetState("zed", board.WorkerIdle)
	assert.True(t, errors.Is(err, ErrUnknownWorker))

	err = r.Move("ava", "flagship", "asleep")
	assert.Error(t, err)

	assert.Empty(t, moves())
}

func TestRoster_SetState(t *testing.T) {
	r, _ := setupTestRoster(t)

	require.NoError(t, r.SetState("ben", board.WorkerIdle))
	ben, _ := r.Get("ben")
	assert.Equal(t, board.WorkerIdle, ben.State)
	assert.Equal(t, "flagship", ben.Queue)
}
