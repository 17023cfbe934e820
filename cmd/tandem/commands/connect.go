package commands

import (
	"context"
	"fmt"

	"github.com/dyluth/tandem/internal/config"
	"github.com/dyluth/tandem/internal/printer"
	"github.com/dyluth/tandem/pkg/board"
	"github.com/redis/go-redis/v9"
)

// newClient builds a bridge client from cfg without checking connectivity.
func newClient(cfg *config.TandemConfig) (*board.Client, error) {
	if cfg.RedisURL == "" {
		return nil, printer.Error(
			"Redis bridge is not configured",
			"This command talks to a running engine through Redis, but no Redis URL is set.",
			[]string{
				"Pass it on the command line:\n  tandem --redis-url redis://localhost:6379 ...",
				fmt.Sprintf("Set it in the environment:\n  export %s=redis://localhost:6379", config.EnvRedisURL),
			},
		)
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, printer.Error("invalid Redis URL", fmt.Sprintf("Could not parse %q: %v", cfg.RedisURL, err), nil)
	}

	client, err := board.NewClient(redisOpts, cfg.Instance)
	if err != nil {
		return nil, fmt.Errorf("failed to create bridge client: %w", err)
	}
	return client, nil
}

// connect is newClient plus a connectivity check.
func connect(ctx context.Context, cfg *config.TandemConfig) (*board.Client, error) {
	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}

	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, printer.ErrorWithContext(
			"Redis connection failed",
			fmt.Sprintf("Could not connect to Redis: %v", err),
			map[string]string{"Redis": cfg.RedisURL, "Instance": cfg.Instance},
			[]string{"Check that Redis is running and reachable from this host"},
		)
	}
	return client, nil
}
