package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dyluth/tandem/internal/filter"
	"github.com/dyluth/tandem/internal/printer"
	"github.com/dyluth/tandem/internal/timespec"
	"github.com/dyluth/tandem/internal/watch"
	"github.com/dyluth/tandem/pkg/board"
	"github.com/spf13/cobra"
)

var (
	logOutputFormat string
	logSince        string
	logUntil        string
	logChannel      string
	logTask         string
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show recently mirrored events",
	Long: `Show events from the capped event log kept in Redis, oldest first.

Time Filters:
  --since  - Show events published after this time
  --until  - Show events published before this time

Both accept a Go duration relative to now ("1h30m") or an RFC3339 timestamp.

Content Filters:
  --channel - Glob on the event channel ("task.*", "*.task")
  --task    - Events about one task id

Examples:
  tandem log --since 10m
  tandem log --since 2025-10-29T13:00:00Z --until 2025-10-29T14:00:00Z -o json`,
	RunE: runLog,
}

func init() {
	logCmd.Flags().StringVarP(&logOutputFormat, "output", "o", "default", "Output format (default or json)")
	logCmd.Flags().StringVar(&logSince, "since", "", "Only events after this time")
	logCmd.Flags().StringVar(&logUntil, "until", "", "Only events before this time")
	logCmd.Flags().StringVar(&logChannel, "channel", "", "Only channels matching this glob (e.g. \"task.*\")")
	logCmd.Flags().StringVar(&logTask, "task", "", "Only events about this task id")
	rootCmd.AddCommand(logCmd)
}

func runLog(cmd *cobra.Command, args []string) error {
	format, err := watch.ParseOutputFormat(logOutputFormat)
	if err != nil {
		return printer.Error("invalid output format", err.Error(), []string{"Valid formats: default, json"})
	}

	sinceMs, untilMs, err := timespec.ParseRange(logSince, logUntil)
	if err != nil {
		return printer.Error("invalid time range", err.Error(), []string{"Use a duration like 1h30m or an RFC3339 timestamp"})
	}

	criteria := &filter.Criteria{SinceTimestampMs: sinceMs, UntilTimestampMs: untilMs, ChannelGlob: logChannel, TaskID: logTask}
	if err := criteria.Validate(); err != nil {
		return printer.Error("invalid channel filter", err.Error(), []string{"Use a glob like \"task.*\" or \"*.task\""})
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	client, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	n, err := printLog(ctx, client, criteria, format, os.Stdout)
	if err != nil {
		return err
	}
	if n == 0 && format == watch.OutputFormatDefault {
		printer.Info("No events found for instance '%s'\n", cfg.Instance)
	}
	return nil
}

// printLog writes the logged events matching criteria and returns how many.
func printLog(ctx context.Context, client *board.Client, criteria *filter.Criteria, format watch.OutputFormat, w io.Writer) (int, error) {
	records, err := client.RecentEvents(ctx, criteria.SinceTimestampMs, criteria.UntilTimestampMs)
	if err != nil {
		return 0, fmt.Errorf("failed to read event log: %w", err)
	}
	n := 0
	for _, record := range records {
		if !criteria.Matches(record) {
			continue
		}
		if err := watch.WriteRecord(w, record, format); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
