package commands

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/tandem/internal/config"
	"github.com/dyluth/tandem/internal/engine"
	"github.com/dyluth/tandem/internal/filter"
	"github.com/dyluth/tandem/internal/watch"
	"github.com/dyluth/tandem/pkg/board"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestClient(t *testing.T) *board.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := board.NewClient(&redis.Options{Addr: mr.Addr()}, "test-instance")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

// TestRootCommand_ShowsHelpWhenNoSubcommand tests that the root command
// shows help instead of silently succeeding when invoked without a subcommand
func TestRootCommand_ShowsHelpWhenNoSubcommand(t *testing.T) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})

	require.NoError(t, rootCmd.Execute())
	output := buf.String()
	assert.Contains(t, output, "Usage:")
	for _, sub := range []string{"serve", "submit", "watch", "log", "stats"} {
		assert.Contains(t, output, sub)
	}
}

func TestRootCommand_RejectsUnknownFlags(t *testing.T) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"--goal", "value"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})

	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown flag")
}

func TestBuildCommand(t *testing.T) {
	t.Run("title is joined from positional args", func(t *testing.T) {
		cmd, err := buildCommand([]string{"task", "Fix", "login", "bug"}, submitOptions{project: "tsiapp", source: "cli"})
		require.NoError(t, err)
		assert.Equal(t, "task", cmd.Command)
		assert.Equal(t, "Fix login bug", cmd.Args.Title)
		assert.Equal(t, "tsiapp", cmd.Args.Project)
		assert.Equal(t, "cli", cmd.Source)
	})

	t.Run("title flag wins over positional words", func(t *testing.T) {
		cmd, err := buildCommand([]string{"task", "ignored"}, submitOptions{title: "Renew certificate"})
		require.NoError(t, err)
		assert.Equal(t, "Renew certificate", cmd.Args.Title)
	})

	t.Run("lifecycle flags are carried", func(t *testing.T) {
		cmd, err := buildCommand([]string{"swarm"}, submitOptions{
			taskID:       "T-0001",
			capabilities: []string{"testing", "security"},
			maxWorkers:   3,
			crossAuth:    true,
		})
		require.NoError(t, err)
		assert.Equal(t, "T-0001", cmd.Args.TaskID)
		assert.Equal(t, []string{"testing", "security"}, cmd.Args.Capabilities)
		assert.Equal(t, 3, cmd.Args.MaxWorkers)
		assert.True(t, cmd.Args.CrossAuthority)
	})

	t.Run("authority override is validated", func(t *testing.T) {
		cmd, err := buildCommand([]string{"task", "Release"}, submitOptions{authority: "both"})
		require.NoError(t, err)
		assert.Equal(t, board.AuthorityBoth, cmd.Args.Authority)

		_, err = buildCommand([]string{"task", "Release"}, submitOptions{authority: "sideways"})
		assert.Error(t, err)
	})

	t.Run("progress out of range", func(t *testing.T) {
		_, err := buildCommand([]string{"progress"}, submitOptions{taskID: "T-0001", progress: 150})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "between 0 and 100")
	})

	t.Run("blank command name", func(t *testing.T) {
		_, err := buildCommand([]string{"  "}, submitOptions{})
		assert.Error(t, err)
	})
}

func TestApplyFlags(t *testing.T) {
	prevURL, prevName := redisURLFlag, instanceFlag
	t.Cleanup(func() { redisURLFlag, instanceFlag = prevURL, prevName })

	cfg := config.Default()
	redisURLFlag, instanceFlag = "", ""
	applyFlags(cfg)
	assert.Equal(t, config.Default().Instance, cfg.Instance)

	redisURLFlag, instanceFlag = "redis://localhost:6379", "prod"
	applyFlags(cfg)
	assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
	assert.Equal(t, "prod", cfg.Instance)
}

func TestNewClient_RequiresRedisURL(t *testing.T) {
	cfg := config.Default()
	cfg.RedisURL = ""
	_, err := newClient(cfg)
	require.Error(t, err)
	assert.Equal(t, "Redis bridge is not configured", err.Error())

	cfg.RedisURL = "not a url"
	_, err = newClient(cfg)
	require.Error(t, err)
	assert.Equal(t, "invalid Redis URL", err.Error())
}

func TestPrintLog(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	events := []board.Event{
		{ID: "e1", Channel: board.ChannelTaskCreated, Payload: board.Task{ID: "T-0001", Title: "Fix login bug"}, PublishedAt: base},
		{ID: "e2", Channel: board.ChannelTaskCompleted, Payload: board.Completed{TaskID: "T-0001"}, PublishedAt: base.Add(time.Minute)},
	}
	for _, e := range events {
		require.NoError(t, client.PublishEvent(ctx, e))
	}

	var buf bytes.Buffer
	n, err := printLog(ctx, client, &filter.Criteria{}, watch.OutputFormatJSON, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"id":"e1"`)
	assert.Contains(t, lines[1], `"id":"e2"`)

	buf.Reset()
	n, err = printLog(ctx, client, &filter.Criteria{SinceTimestampMs: base.Add(30 * time.Second).UnixMilli()}, watch.OutputFormatDefault, &buf)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Contains(t, buf.String(), "✅ Task Completed: T-0001")

	buf.Reset()
	n, err = printLog(ctx, client, &filter.Criteria{ChannelGlob: "task.created"}, watch.OutputFormatJSON, &buf)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Contains(t, buf.String(), `"id":"e1"`)
}

func TestStatsFields(t *testing.T) {
	fields := statsFields(&board.Stats{Created: 4, Active: 1, Completed: 3, AverageDurationMs: 1500})
	assert.Equal(t, [2]string{"created", "4"}, fields[0])
	assert.Equal(t, [2]string{"completed", "3"}, fields[6])
	assert.Equal(t, [2]string{"average duration", "1.5s"}, fields[8])
}

func TestSubmitAndWait_AgainstRunningEngine(t *testing.T) {
	client := setupTestClient(t)

	cfg := config.Default()
	cfg.HealthAddr = ""
	cfg.Instance = client.InstanceName()
	eng := engine.New(cfg, engine.WithClient(client))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	status, err := buildCommand([]string{"status"}, submitOptions{source: "cli"})
	require.NoError(t, err)

	// The engine subscribes asynchronously; status is safe to repeat.
	require.Eventually(t, func() bool {
		reply, err := submitAndWait(ctx, client, status, 300*time.Millisecond)
		return err == nil && strings.HasPrefix(reply.Message, "active=")
	}, 5*time.Second, 10*time.Millisecond)

	task, err := buildCommand([]string{"task", "Fix", "login", "bug"}, submitOptions{source: "cli"})
	require.NoError(t, err)
	reply, err := submitAndWait(ctx, client, task, 2*time.Second)
	require.NoError(t, err)
	assert.True(t, reply.Accepted)
	assert.Equal(t, "T-0001", reply.TaskID)
	assert.Contains(t, reply.Message, "Task T-0001 created (primary) -> flagship")

	again, err := submitAndWait(ctx, client, task, 2*time.Second)
	require.NoError(t, err)
	assert.False(t, again.Accepted)
	assert.Contains(t, again.Message, "Duplicate of T-0001")
}
