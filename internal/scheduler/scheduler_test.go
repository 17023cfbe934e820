package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestAfter_RunsOnceWhenDue(t *testing.T) {
	clock := NewManualClock(epoch)
	s := New(clock)
	count := 0
	s.After(time.Second, "once", func() { count++ })

	assert.Equal(t, 0, s.RunDue(), "nothing due yet")
	clock.Advance(time.Second)
	assert.Equal(t, 1, s.RunDue())
	clock.Advance(time.Hour)
	assert.Equal(t, 0, s.RunDue())
	assert.Equal(t, 1, count)
	assert.Equal(t, 0, s.Pending())
}

func TestRunDue_OrdersByDeadlineThenCreation(t *testing.T) {
	clock := NewManualClock(epoch)
	s := New(clock)
	var order []string

	s.After(3*time.Second, "c", func() { order = append(order, "c") })
	s.After(time.Second, "a", func() { order = append(order, "a") })
	s.After(time.Second, "b", func() { order = append(order, "b") })

	clock.Advance(5 * time.Second)
	s.RunDue()

	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestCancel(t *testing.T) {
	clock := NewManualClock(epoch)
	s := New(clock)
	ran := false
	id := s.After(time.Second, "cancel-me", func() { ran = true })

	assert.True(t, s.Cancel(id))
	assert.False(t, s.Cancel(id), "second cancel reports nothing removed")

	clock.Advance(time.Minute)
	s.RunDue()
	assert.False(t, ran)
}

func TestCancel_FromEarlierCallback(t *testing.T) {
	clock := NewManualClock(epoch)
	s := New(clock)
	ran := false

	var victim TimerID
	s.After(time.Second, "killer", func() { s.Cancel(victim) })
	victim = s.After(2*time.Second, "victim", func() { ran = true })

	clock.Advance(5 * time.Second)
	assert.Equal(t, 1, s.RunDue())
	assert.False(t, ran)
}

func TestEvery_RepeatsAndSkipsMissedTicks(t *testing.T) {
	clock := NewManualClock(epoch)
	s := New(clock)
	count := 0
	id := s.Every(time.Minute, "sweep", func() { count++ })
	require.NotZero(t, id)

	clock.Advance(time.Minute)
	s.RunDue()
	clock.Advance(10 * time.Minute)
	assert.Equal(t, 1, s.RunDue(), "repeating timers fire once per call")
	assert.Equal(t, 2, count)

	next, ok := s.NextDeadline()
	require.True(t, ok)
	assert.Equal(t, clock.Now().Add(time.Minute), next)

	s.Cancel(id)
	clock.Advance(time.Hour)
	s.RunDue()
	assert.Equal(t, 2, count)
}

func TestEvery_RejectsNonPositiveInterval(t *testing.T) {
	s := New(NewManualClock(epoch))
	assert.Zero(t, s.Every(0, "bad", func() {}))
	assert.Equal(t, 0, s.Pending())
}

func TestCallbackMayScheduleDueTimer(t *testing.T) {
	clock := NewManualClock(epoch)
	s := New(clock)
	var order []string

	s.After(time.Second, "parent", func() {
		order = append(order, "parent")
		s.After(0, "child", func() { order = append(order, "child") })
	})

	clock.Advance(time.Second)
	assert.Equal(t, 2, s.RunDue())
	assert.Equal(t, []string{"parent", "child"}, order)
}

func TestPendingNamed(t *testing.T) {
	s := New(nil)
	s.After(time.Hour, "settle", func() {})
	s.After(time.Hour, "settle", func() {})
	s.After(time.Hour, "sweep", func() {})

	assert.Equal(t, 2, s.PendingNamed("settle"))
	assert.Equal(t, 3, s.Pending())
	_, isReal := s.Clock().(RealClock)
	assert.True(t, isReal)
}
