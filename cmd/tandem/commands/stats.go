package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dyluth/tandem/internal/printer"
	"github.com/dyluth/tandem/pkg/board"
	"github.com/spf13/cobra"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the latest task statistics",
	Long: `Show the task statistics most recently published by a running engine.

Examples:
  tandem stats
  tandem stats --json | jq .active`,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Print raw JSON")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
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

	stats, err := client.GetStats(ctx)
	if errors.Is(err, board.ErrNotFound) {
		return printer.Error(
			"no statistics recorded",
			fmt.Sprintf("No engine has published statistics for instance '%s' yet.", cfg.Instance),
			[]string{"Start an engine with the bridge enabled:\n  tandem serve --redis-url <url>"},
		)
	}
	if err != nil {
		return err
	}

	if statsJSON {
		data, err := json.Marshal(stats)
		if err != nil {
			return fmt.Errorf("failed to marshal stats: %w", err)
		}
		printer.Info("%s\n", data)
		return nil
	}

	printer.Fields(fmt.Sprintf("Tasks for instance '%s'", cfg.Instance), statsFields(stats))
	return nil
}

func statsFields(s *board.Stats) [][2]string {
	avg := time.Duration(s.AverageDurationMs * float64(time.Millisecond)).Round(time.Millisecond)
	return [][2]string{
		{"created", strconv.Itoa(s.Created)},
		{"active", strconv.Itoa(s.Active)},
		{"pending", strconv.Itoa(s.Pending)},
		{"delegated", strconv.Itoa(s.Delegated)},
		{"in-progress", strconv.Itoa(s.InProgress)},
		{"swarming", strconv.Itoa(s.Swarming)},
		{"completed", strconv.Itoa(s.Completed)},
		{"failed", strconv.Itoa(s.Failed)},
		{"average duration", avg.String()},
	}
}
