package board

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// DefaultEventLogSize is the number of events retained in the Redis event log.
const DefaultEventLogSize = 1000

// ErrNotFound is returned when a Redis key does not exist.
var ErrNotFound = errors.New("not found")

// EventRecord is the wire form of a bus event mirrored to Redis.
type EventRecord struct {
	ID            string          `json:"id"`
	Channel       string          `json:"channel"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAtMs int64           `json:"published_at_ms"`
}

// Client provides instance-scoped Redis operations for the bridge between the
// in-process bus and external collaborators (chat bridges, CLI, dashboards).
// The client is thread-safe and can be used concurrently from multiple goroutines.
type Client struct {
	rdb          *redis.Client
	instanceName string
	logSize      int64
}

// NewClient creates a new bridge client for the specified instance.
// Returns an error if instanceName is empty.
func NewClient(redisOpts *redis.Options, instanceName string) (*Client, error) {
	if instanceName == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}

	return &Client{
		rdb:          redis.NewClient(redisOpts),
		instanceName: instanceName,
		logSize:      DefaultEventLogSize,
	}, nil
}

// InstanceName returns the namespace this client writes to.
func (c *Client) InstanceName() string {
	return c.instanceName
}

// Close closes the Redis connection. Implements io.Closer.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// PublishEvent mirrors a bus event to tandem:{instance}:events and appends it
// to the capped event log.
func (c *Client) PublishEvent(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	record := EventRecord{
		ID:            event.ID,
		Channel:       event.Channel,
		Payload:       payload,
		PublishedAtMs: event.PublishedAt.UnixMilli(),
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal event record: %w", err)
	}

	pipe := c.rdb.TxPipeline()
	pipe.LPush(ctx, EventLogKey(c.instanceName), data)
	pipe.LTrim(ctx, EventLogKey(c.instanceName), 0, c.logSize-1)
	pipe.Publish(ctx, EventsChannel(c.instanceName), data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// RecentEvents returns logged events in chronological order, filtered to the
// inclusive [sinceMs, untilMs] window. Zero bounds are open.
func (c *Client) RecentEvents(ctx context.Context, sinceMs, untilMs int64) ([]EventRecord, error) {
	raw, err := c.rdb.LRange(ctx, EventLogKey(c.instanceName), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read event log: %w", err)
	}

	records := make([]EventRecord, 0, len(raw))
	// The list is newest-first; walk it backwards for chronological order.
	for i := len(raw) - 1; i >= 0; i-- {
		var record EventRecord
		if err := json.Unmarshal([]byte(raw[i]), &record); err != nil {
			continue
		}
		if sinceMs > 0 && record.PublishedAtMs < sinceMs {
			continue
		}
		if untilMs > 0 && record.PublishedAtMs > untilMs {
			continue
		}
		records = append(records, record)
	}

	return records, nil
}

// SetStats stores the latest statistics snapshot.
func (c *Client) SetStats(ctx context.Context, stats Stats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}
	if err := c.rdb.Set(ctx, StatsKey(c.instanceName), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write stats to Redis: %w", err)
	}
	return nil
}

// GetStats reads the latest statistics snapshot.
// Returns ErrNotFound if no engine has written stats yet.
func (c *Client) GetStats(ctx context.Context) (*Stats, error) {
	data, err := c.rdb.Get(ctx, StatsKey(c.instanceName)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read stats from Redis: %w", err)
	}

	var stats Stats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stats: %w", err)
	}
	return &stats, nil
}

// SubmitCommand publishes a command envelope for the engine to pick up.
func (c *Client) SubmitCommand(ctx context.Context, cmd Command) error {
	if err := cmd.Validate(); err != nil {
		return fmt.Errorf("invalid command: %w", err)
	}

	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("failed to marshal command: %w", err)
	}

	if err := c.rdb.Publish(ctx, CommandsChannel(c.instanceName), data).Err(); err != nil {
		return fmt.Errorf("failed to publish command: %w", err)
	}
	return nil
}

// CommandSubscription represents an active subscription to inbound commands.
// Caller must call Close() when done to clean up resources.
type CommandSubscription struct {
	commands <-chan Command
	errors   <-chan error
	cancel   func()
	once     sync.Once
}

// Commands returns the channel of decoded command envelopes.
// The channel will be closed when the subscription is closed or the context is cancelled.
func (s *CommandSubscription) Commands() <-chan Command {
	return s.commands
}

// Errors returns the channel of subscription errors.
// The subscription continues after errors - malformed messages are skipped.
func (s *CommandSubscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription. Safe to call multiple times.
func (s *CommandSubscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// EventSubscription represents an active subscription to mirrored bus events.
type EventSubscription struct {
	events <-chan EventRecord
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of mirrored events.
func (s *EventSubscription) Events() <-chan EventRecord {
	return s.events
}

// Errors returns the channel of subscription errors.
func (s *EventSubscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription. Safe to call multiple times.
func (s *EventSubscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeCommands subscribes to inbound command envelopes for this instance.
// Context cancellation also stops the subscription.
//
// Delivery is at-most-once (Redis Pub/Sub); commands published while no
// engine is subscribed are lost.
func (c *Client) SubscribeCommands(ctx context.Context) (*CommandSubscription, error) {
	pubsub := c.rdb.Subscribe(ctx, CommandsChannel(c.instanceName))
	// Wait for the subscription to be confirmed so no command is missed after return.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to commands: %w", err)
	}

	commands := make(chan Command, 10)
	errs := make(chan error, 10)
	subCtx, cancel := context.WithCancel(ctx)

	go pump(subCtx, pubsub, commands, errs, func(payload string) (Command, error) {
		var cmd Command
		if err := json.Unmarshal([]byte(payload), &cmd); err != nil {
			return cmd, fmt.Errorf("failed to unmarshal command: %w", err)
		}
		return cmd, nil
	})

	return &CommandSubscription{commands: commands, errors: errs, cancel: cancel}, nil
}

// SubscribeEvents subscribes to the mirrored bus events for this instance.
func (c *Client) SubscribeEvents(ctx context.Context) (*EventSubscription, error) {
	pubsub := c.rdb.Subscribe(ctx, EventsChannel(c.instanceName))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to events: %w", err)
	}

	events := make(chan EventRecord, 10)
	errs := make(chan error, 10)
	subCtx, cancel := context.WithCancel(ctx)

	go pump(subCtx, pubsub, events, errs, func(payload string) (EventRecord, error) {
		var record EventRecord
		if err := json.Unmarshal([]byte(payload), &record); err != nil {
			return record, fmt.Errorf("failed to unmarshal event: %w", err)
		}
		return record, nil
	})

	return &EventSubscription{events: events, errors: errs, cancel: cancel}, nil
}

// pump decodes Pub/Sub messages onto out until ctx is cancelled, reporting
// decode failures on errs and skipping the message.
func pump[T any](ctx context.Context, pubsub *redis.PubSub, out chan<- T, errs chan<- error, decode func(string) (T, error)) {
	defer close(out)
	defer close(errs)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			value, err := decode(msg.Payload)
			if err != nil {
				select {
				case errs <- err:
				case <-ctx.Done():
					return
				}
				continue
			}

			select {
			case out <- value:
			case <-ctx.Done():
				return
			}
		}
	}
}
