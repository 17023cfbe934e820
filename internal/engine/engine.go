// Package engine constructs every tandem component once, wires them to one
// bus and drives them from a single cooperative loop.
//
// All component calls happen on the loop goroutine. Other goroutines (the
// Redis command pump, the health server) talk to the loop through the inbox
// channel or the mutex-protected snapshot only.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/dyluth/tandem/internal/config"
	"github.com/dyluth/tandem/internal/dedup"
	"github.com/dyluth/tandem/internal/recruit"
	"github.com/dyluth/tandem/internal/registry"
	"github.com/dyluth/tandem/internal/roster"
	"github.com/dyluth/tandem/internal/router"
	"github.com/dyluth/tandem/internal/scheduler"
	"github.com/dyluth/tandem/pkg/board"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const inboxSize = 64

// Option customizes an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock, for tests.
func WithClock(clock scheduler.Clock) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithLogger sets the logger shared by every component.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClient enables the Redis bridge: bus events are mirrored to Redis and
// inbound commands are read from it.
func WithClient(client *board.Client) Option {
	return func(e *Engine) {
		e.client = client
	}
}

// Engine owns the bus, the scheduler and every service.
type Engine struct {
	cfg    *config.TandemConfig
	clock  scheduler.Clock
	logger *zap.Logger
	client *board.Client

	bus       *board.Bus
	sched     *scheduler.Scheduler
	registry  *registry.Registry
	cache     *dedup.Cache
	roster    *roster.Roster
	primary   *router.Primary
	mirror    *router.Mirror
	recruit   *recruit.Engine
	simulator *Simulator

	inbox    chan board.Command
	snapshot *snapshotStore
}

// New builds and wires an engine. cfg must have passed Validate.
func New(cfg *config.TandemConfig, opts ...Option) *Engine {
	e := &Engine{
		cfg:      cfg,
		clock:    scheduler.RealClock{},
		logger:   zap.NewNop(),
		inbox:    make(chan board.Command, inboxSize),
		snapshot: &snapshotStore{},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(zap.String("instance", cfg.Instance))

	e.bus = board.NewBus(board.BusWithLogger(e.logger), board.BusWithClock(e.clock.Now))
	e.sched = scheduler.New(e.clock)

	e.registry = registry.New(e.bus, e.clock, e.logger, cfg.Timing.HistoryCapacity)
	e.cache = dedup.New(e.bus, e.clock, e.logger, cfg.Timing.DedupTTL)
	e.roster = roster.New(e.bus, e.logger, cfg.Workers)
	e.primary = router.NewPrimary(e.bus, e.registry, e.cache,
		router.NewKeywordClassifier(cfg.Routing),
		router.NewQueueResolver(cfg, board.AuthorityPrimary),
		e.logger)
	e.mirror = router.NewMirror(e.bus, e.registry, e.cache,
		router.NewQueueResolver(cfg, board.AuthorityMirror),
		e.logger)
	e.recruit = recruit.New(e.bus, e.roster, e.sched,
		recruit.WithLogger(e.logger),
		recruit.WithSettleDelay(cfg.Timing.Settle()),
		recruit.WithMaxWorkers(cfg.Timing.MaxWorkers),
		recruit.WithCapabilityDivisions(cfg.CapabilityDivisions))
	e.simulator = NewSimulator(e.bus, e.sched, cfg, e.logger)

	// Registry first: later subscribers observe post-transition state.
	e.registry.Attach()
	e.cache.Attach()
	e.primary.Attach()
	e.mirror.Attach()
	e.recruit.Attach()
	e.simulator.Attach()
	e.attachSnapshot()
	if e.client != nil {
		newBridge(e.client, e.logger).attach(e.bus)
	}

	e.cache.Start(e.sched, cfg.Timing.SweepInterval)
	return e
}

// Bus returns the shared bus.
func (e *Engine) Bus() *board.Bus { return e.bus }

// Registry returns the task registry.
func (e *Engine) Registry() *registry.Registry { return e.registry }

// Cache returns the dedup cache.
func (e *Engine) Cache() *dedup.Cache { return e.cache }

// Roster returns the worker roster.
func (e *Engine) Roster() *roster.Roster { return e.roster }

// Recruiter returns the recruitment engine.
func (e *Engine) Recruiter() *recruit.Engine { return e.recruit }

// Submit publishes an inbound command on the bus. Loop goroutine only;
// use Enqueue from anywhere else.
func (e *Engine) Submit(cmd board.Command) {
	e.bus.Publish(board.ChannelCommand, cmd)
}

// Enqueue hands cmd to the loop. Safe for concurrent use.
func (e *Engine) Enqueue(ctx context.Context, cmd board.Command) error {
	select {
	case e.inbox <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Tick runs every due timer and returns how many ran. Loop goroutine only.
func (e *Engine) Tick() int {
	return e.sched.RunDue()
}

// Snapshot returns the latest published statistics. Safe for concurrent use.
func (e *Engine) Snapshot() Snapshot {
	return e.snapshot.get()
}

// Run drives the loop until ctx is cancelled. With a Redis client it also
// pumps inbound commands; with a health address it serves /healthz and /stats.
func (e *Engine) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if e.client != nil {
		sub, err := e.client.SubscribeCommands(ctx)
		if err != nil {
			return fmt.Errorf("failed to subscribe to commands: %w", err)
		}
		g.Go(func() error { return e.pumpCommands(ctx, sub) })
	}

	if e.cfg.HealthAddr != "" {
		health := NewHealthServer(e.cfg.HealthAddr, e.client, e.Snapshot)
		g.Go(func() error { return health.Run(ctx) })
	}

	g.Go(func() error { return e.loop(ctx) })
	return g.Wait()
}

func (e *Engine) loop(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.Timing.TickInterval)
	defer ticker.Stop()

	e.logger.Info("engine started",
		zap.String("event_type", "engine_started"),
		zap.Int("queues", len(e.cfg.Queues)),
		zap.Int("workers", len(e.cfg.Workers)),
		zap.Bool("redis", e.client != nil))

	for {
		select {
		case <-ctx.Done():
			e.cache.Stop()
			e.logger.Info("engine stopped", zap.String("event_type", "engine_stopped"))
			return nil
		case cmd := <-e.inbox:
			e.Submit(cmd)
		case <-ticker.C:
			e.Tick()
		}
	}
}

// pumpCommands forwards Redis commands into the inbox. Malformed payloads
// are logged and skipped.
func (e *Engine) pumpCommands(ctx context.Context, sub *board.CommandSubscription) error {
	defer sub.Close()

	commands := sub.Commands()
	errs := sub.Errors()
	for {
		select {
		case <-ctx.Done():
			// Drain until the subscription has fully shut down.
			for range commands {
			}
			return nil
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			e.logger.Warn("skipping malformed command", zap.Error(err))
		case cmd, ok := <-commands:
			if !ok {
				return nil
			}
			if err := e.Enqueue(ctx, cmd); err != nil {
				continue
			}
		}
	}
}
