package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dyluth/tandem/pkg/board"
	"gopkg.in/yaml.v3"
)

// Environment overrides, applied after the file is loaded.
const (
	EnvConfigPath = "TANDEM_CONFIG"
	EnvRedisURL   = "REDIS_URL"
	EnvInstance   = "TANDEM_INSTANCE"
)

// DefaultPath is where serve looks for the configuration when no path is given.
const DefaultPath = "tandem.yml"

// TandemConfig represents the top-level tandem.yml configuration
type TandemConfig struct {
	Version             string            `yaml:"version"`
	Instance            string            `yaml:"instance,omitempty"`    // Redis namespace, default "default"
	RedisURL            string            `yaml:"redis_url,omitempty"`   // Empty disables the Redis bridge
	HealthAddr          string            `yaml:"health_addr,omitempty"` // Empty disables the health server
	Logging             LoggingConfig     `yaml:"logging"`
	Queues              []QueueConfig     `yaml:"queues"`
	Routing             RoutingConfig     `yaml:"routing"`
	Workers             []board.Worker    `yaml:"workers,omitempty"`
	CapabilityDivisions map[string]string `yaml:"capability_divisions,omitempty"`
	Timing              TimingConfig      `yaml:"timing"`
	Simulation          SimulationConfig  `yaml:"simulation"`
}

// LoggingConfig selects the zap encoder and level
type LoggingConfig struct {
	Level       string `yaml:"level,omitempty"`       // debug, info, warn, error
	Development bool   `yaml:"development,omitempty"` // Console encoder instead of JSON
}

// QueueConfig declares one work-queue owned by an authority
type QueueConfig struct {
	ID        string          `yaml:"id"`
	Name      string          `yaml:"name,omitempty"`
	Authority board.Authority `yaml:"authority"`
	Division  string          `yaml:"division,omitempty"`
	Aliases   []string        `yaml:"aliases,omitempty"`  // Project names routed to this queue
	Default   bool            `yaml:"default,omitempty"`  // Fallback queue for its authority
	Attached  *bool           `yaml:"attached,omitempty"` // false: no external consumer, work is simulated
}

// IsAttached reports whether an external consumer serves the queue (default true).
func (q QueueConfig) IsAttached() bool {
	return q.Attached == nil || *q.Attached
}

// KeywordRoute maps any of Keywords to Queue. Routes are tried in order.
type KeywordRoute struct {
	Keywords []string `yaml:"keywords"`
	Queue    string   `yaml:"queue"`
}

// RoutingConfig holds the classifier and queue-inference keyword tables
type RoutingConfig struct {
	CrossCutting    []string       `yaml:"cross_cutting"`
	BuildKeywords   []string       `yaml:"build_keywords"`
	InfraKeywords   []string       `yaml:"infra_keywords"`
	PrimaryFallback []KeywordRoute `yaml:"primary_fallback"`
	MirrorFallback  []KeywordRoute `yaml:"mirror_fallback"`
}

// TimingConfig holds every delay and capacity the engine uses
type TimingConfig struct {
	DedupTTL        time.Duration  `yaml:"dedup_ttl,omitempty"`
	SweepInterval   time.Duration  `yaml:"sweep_interval,omitempty"`
	SettleDelay     *time.Duration `yaml:"settle_delay,omitempty"`  // Worker movement pacing for swarms; 0 moves immediately
	TickInterval    time.Duration  `yaml:"tick_interval,omitempty"` // How often the loop runs due timers
	HistoryCapacity int            `yaml:"history_capacity,omitempty"`
	MaxWorkers      int            `yaml:"max_workers,omitempty"` // Default swarm size
}

// SimulationConfig controls auto-completion of work on unattached queues
type SimulationConfig struct {
	AutoCompleteAfter time.Duration `yaml:"auto_complete_after,omitempty"` // 0 disables simulation
}

// Validate performs strict validation on the configuration and applies defaults
func (c *TandemConfig) Validate() error {
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	if c.Instance == "" {
		c.Instance = "default"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	if len(c.Queues) == 0 {
		return fmt.Errorf("no queues defined")
	}

	seen := make(map[string]bool)
	defaults := make(map[board.Authority]string)
	for i := range c.Queues {
		q := &c.Queues[i]
		if err := q.Validate(); err != nil {
			return err
		}
		if seen[q.ID] {
			return fmt.Errorf("duplicate queue id '%s'", q.ID)
		}
		seen[q.ID] = true
		if q.Default {
			if existing, ok := defaults[q.Authority]; ok {
				return fmt.Errorf("authority '%s' has more than one default queue ('%s' and '%s')", q.Authority, existing, q.ID)
			}
			defaults[q.Authority] = q.ID
		}
	}
	for _, a := range []board.Authority{board.AuthorityPrimary, board.AuthorityMirror} {
		if _, ok := defaults[a]; !ok {
			return fmt.Errorf("authority '%s' has no default queue", a)
		}
	}

	for _, table := range [][]KeywordRoute{c.Routing.PrimaryFallback, c.Routing.MirrorFallback} {
		for _, route := range table {
			if !seen[route.Queue] {
				return fmt.Errorf("keyword route references unknown queue '%s'", route.Queue)
			}
			if len(route.Keywords) == 0 {
				return fmt.Errorf("keyword route for queue '%s' has no keywords", route.Queue)
			}
		}
	}

	workerIDs := make(map[string]bool)
	for i := range c.Workers {
		w := &c.Workers[i]
		if w.ID == "" {
			return fmt.Errorf("worker %d: id is required", i)
		}
		if workerIDs[w.ID] {
			return fmt.Errorf("duplicate worker id '%s'", w.ID)
		}
		workerIDs[w.ID] = true
		if !seen[w.Queue] {
			return fmt.Errorf("worker '%s': unknown queue '%s'", w.ID, w.Queue)
		}
		if w.State == "" {
			w.State = board.WorkerIdle
		}
		if err := w.State.Validate(); err != nil {
			return fmt.Errorf("worker '%s': %w", w.ID, err)
		}
		if w.Authority == "" {
			w.Authority = c.QueueByID(w.Queue).Authority
		}
		if err := w.Authority.Validate(); err != nil {
			return fmt.Errorf("worker '%s': %w", w.ID, err)
		}
	}

	return c.Timing.validate()
}

// Validate checks a single queue declaration
func (q *QueueConfig) Validate() error {
	if q.ID == "" {
		return fmt.Errorf("queue id is required")
	}
	if strings.ContainsAny(q.ID, " .*") {
		return fmt.Errorf("queue '%s': id must not contain spaces, dots or '*'", q.ID)
	}
	if q.Name == "" {
		q.Name = q.ID
	}
	if q.Authority == board.AuthorityBoth {
		return fmt.Errorf("queue '%s': authority must be 'primary' or 'mirror'", q.ID)
	}
	if err := q.Authority.Validate(); err != nil {
		return fmt.Errorf("queue '%s': %w", q.ID, err)
	}
	return nil
}

// DefaultSettleDelay applies when settle_delay is absent.
const DefaultSettleDelay = 1500 * time.Millisecond

// Settle returns the configured settle delay, or the default when unset.
func (t TimingConfig) Settle() time.Duration {
	if t.SettleDelay == nil {
		return DefaultSettleDelay
	}
	return *t.SettleDelay
}

func (t *TimingConfig) validate() error {
	if t.DedupTTL == 0 {
		t.DedupTTL = 5 * time.Minute
	}
	if t.SweepInterval == 0 {
		t.SweepInterval = time.Minute
	}
	if t.SettleDelay == nil {
		settle := DefaultSettleDelay
		t.SettleDelay = &settle
	}
	if t.TickInterval == 0 {
		t.TickInterval = 100 * time.Millisecond
	}
	if t.HistoryCapacity == 0 {
		t.HistoryCapacity = 500
	}
	if t.MaxWorkers == 0 {
		t.MaxWorkers = 5
	}

	if t.DedupTTL < 0 || t.SweepInterval < 0 || *t.SettleDelay < 0 || t.TickInterval < 0 {
		return fmt.Errorf("timing durations must be positive")
	}
	if t.HistoryCapacity < 1 {
		return fmt.Errorf("timing.history_capacity must be >= 1, got %d", t.HistoryCapacity)
	}
	if t.MaxWorkers < 1 {
		return fmt.Errorf("timing.max_workers must be >= 1, got %d", t.MaxWorkers)
	}
	return nil
}

// QueueByID returns the queue declaration for id, or nil.
func (c *TandemConfig) QueueByID(id string) *QueueConfig {
	for i := range c.Queues {
		if c.Queues[i].ID == id {
			return &c.Queues[i]
		}
	}
	return nil
}

// QueuesFor returns the queues owned by authority, in declaration order.
func (c *TandemConfig) QueuesFor(authority board.Authority) []QueueConfig {
	var out []QueueConfig
	for _, q := range c.Queues {
		if q.Authority == authority {
			out = append(out, q)
		}
	}
	return out
}

// ApplyEnv overlays REDIS_URL and TANDEM_INSTANCE when set.
func (c *TandemConfig) ApplyEnv() {
	if v := os.Getenv(EnvRedisURL); v != "" {
		c.RedisURL = v
	}
	if v := os.Getenv(EnvInstance); v != "" {
		c.Instance = v
	}
}

// Load reads and validates tandem.yml from the specified path
func Load(path string) (*TandemConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config TandemConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// LoadOrDefault loads path if it exists and falls back to Default otherwise.
// An empty path consults TANDEM_CONFIG, then DefaultPath.
func LoadOrDefault(path string) (*TandemConfig, error) {
	explicit := path != ""
	if path == "" {
		path = os.Getenv(EnvConfigPath)
		explicit = path != ""
	}
	if path == "" {
		path = DefaultPath
	}

	if _, err := os.Stat(path); err != nil {
		if explicit || !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		cfg := Default()
		cfg.ApplyEnv()
		return cfg, nil
	}

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	return cfg, nil
}
