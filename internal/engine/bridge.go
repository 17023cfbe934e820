package engine

import (
	"context"
	"sync"
	"time"

	"github.com/dyluth/tandem/pkg/board"
	"go.uber.org/zap"
)

const bridgeTimeout = 2 * time.Second

// bridge mirrors every bus event to Redis. Failures are logged and never
// reach the publisher.
type bridge struct {
	client *board.Client
	logger *zap.Logger
}

func newBridge(client *board.Client, logger *zap.Logger) *bridge {
	return &bridge{client: client, logger: logger.With(zap.String("component", "bridge"))}
}

func (b *bridge) attach(bus *board.Bus) {
	bus.Subscribe("*", b.mirror)
}

func (b *bridge) mirror(event board.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), bridgeTimeout)
	defer cancel()

	if err := b.client.PublishEvent(ctx, event); err != nil {
		b.logger.Warn("failed to mirror event",
			zap.String("channel", event.Channel),
			zap.String("event_id", event.ID),
			zap.Error(err))
	}

	if stats, ok := event.Payload.(board.Stats); ok && event.Channel == board.ChannelStatsChanged {
		if err := b.client.SetStats(ctx, stats); err != nil {
			b.logger.Warn("failed to write stats snapshot", zap.Error(err))
		}
	}
}

// Snapshot is the externally visible summary served on /stats.
type Snapshot struct {
	Stats     board.Stats        `json:"stats"`
	Bridge    board.BridgeStatus `json:"bridge"`
	Swarms    int                `json:"swarms"`
	UpdatedAt time.Time          `json:"updated_at"`
}

type snapshotStore struct {
	mu   sync.RWMutex
	snap Snapshot
}

func (s *snapshotStore) get() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

func (s *snapshotStore) update(fn func(*Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.snap)
}

func (e *Engine) attachSnapshot() {
	e.bus.Subscribe(board.ChannelStatsChanged, func(ev board.Event) {
		if stats, ok := ev.Payload.(board.Stats); ok {
			swarms := e.recruit.ActiveSessions()
			e.snapshot.update(func(s *Snapshot) {
				s.Stats = stats
				s.Swarms = swarms
				s.UpdatedAt = ev.PublishedAt
			})
		}
	})
	refreshSwarms := func(ev board.Event) {
		swarms := e.recruit.ActiveSessions()
		e.snapshot.update(func(s *Snapshot) {
			s.Swarms = swarms
			s.UpdatedAt = ev.PublishedAt
		})
	}
	// Releases land after the task is finalized, when no stats change follows.
	e.bus.Subscribe(board.ChannelTaskSwarmed, refreshSwarms)
	e.bus.Subscribe(board.ChannelSwarmReleased, refreshSwarms)
	e.bus.Subscribe(board.ChannelBridgeStatus, func(ev board.Event) {
		if status, ok := ev.Payload.(board.BridgeStatus); ok {
			e.snapshot.update(func(s *Snapshot) {
				s.Bridge = status
				s.UpdatedAt = ev.PublishedAt
			})
		}
	})
}
