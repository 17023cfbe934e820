package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dyluth/tandem/internal/filter"
	"github.com/dyluth/tandem/internal/printer"
	"github.com/dyluth/tandem/internal/watch"
	"github.com/spf13/cobra"
)

var (
	watchOutputFormat string
	watchChannel      string
	watchTask         string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream engine activity in real time",
	Long: `Stream engine activity as it happens.

Shows task creation, delegation, duplicates, swarms, worker moves and
replies mirrored by a running engine.

Output Formats:
  default - Human-readable output with timestamps and emojis
  json    - Line-delimited JSON for programmatic processing

Examples:
  tandem watch
  tandem watch --task T-0001
  tandem watch --channel "swarm.*"
  tandem watch --name prod --output=json > events.jsonl`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchOutputFormat, "output", "o", "default", "Output format (default or json)")
	watchCmd.Flags().StringVar(&watchChannel, "channel", "", "Only channels matching this glob (e.g. \"task.*\")")
	watchCmd.Flags().StringVar(&watchTask, "task", "", "Only events about this task id")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	format, err := watch.ParseOutputFormat(watchOutputFormat)
	if err != nil {
		return printer.Error("invalid output format", err.Error(), []string{"Valid formats: default, json"})
	}

	criteria := &filter.Criteria{ChannelGlob: watchChannel, TaskID: watchTask}
	if err := criteria.Validate(); err != nil {
		return printer.Error("invalid channel filter", err.Error(), []string{"Use a glob like \"task.*\" or \"*.task\""})
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	return watch.StreamActivity(ctx, client, format, criteria, os.Stdout)
}
