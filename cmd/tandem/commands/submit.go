package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dyluth/tandem/internal/printer"
	"github.com/dyluth/tandem/pkg/board"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type submitOptions struct {
	title        string
	description  string
	project      string
	queue        string
	priority     string
	division     string
	authority    string
	taskID       string
	progress     int
	message      string
	result       string
	reason       string
	worker       string
	capabilities []string
	maxWorkers   int
	crossAuth    bool
	source       string
	wait         time.Duration
}

var submitOpts submitOptions

var submitCmd = &cobra.Command{
	Use:   "submit COMMAND [TITLE...]",
	Short: "Send a command to a running engine",
	Long: `Send a command envelope to a running engine over the Redis bridge.

Commands:
  task      Create and delegate a task (TITLE is the task title)
  ops       Create a task pinned to the mirror authority
  status    Report registry statistics
  progress  Report progress on --task
  complete  Complete --task with --result
  fail      Fail --task with --reason
  recall    Recall --task and release any swarm
  swarm     Recruit workers onto --task
  suggest   Suggest which authority should take TITLE

Any other command name becomes a task titled with that name.

Examples:
  tandem submit task Fix login bug --project tsiapp
  tandem submit task Deploy new build --authority both
  tandem submit swarm --task T-0001 --capabilities testing,security --max-workers 3
  tandem submit complete --task T-0001 --result "patched" --wait 5s`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSubmit,
}

func init() {
	f := submitCmd.Flags()
	f.StringVar(&submitOpts.title, "title", "", "Task title (instead of positional TITLE)")
	f.StringVar(&submitOpts.description, "description", "", "Task description")
	f.StringVar(&submitOpts.project, "project", "", "Project hint used for queue resolution")
	f.StringVar(&submitOpts.queue, "queue", "", "Explicit destination queue")
	f.StringVar(&submitOpts.priority, "priority", "", "Priority (low, normal, high, critical)")
	f.StringVar(&submitOpts.division, "division", "", "Division override")
	f.StringVar(&submitOpts.authority, "authority", "", "Authority override (primary, mirror, both)")
	f.StringVar(&submitOpts.taskID, "task", "", "Target task id for lifecycle commands")
	f.IntVar(&submitOpts.progress, "progress", 0, "Progress percentage")
	f.StringVarP(&submitOpts.message, "message", "m", "", "Free-form message")
	f.StringVar(&submitOpts.result, "result", "", "Result for complete")
	f.StringVar(&submitOpts.reason, "reason", "", "Reason for fail or recall")
	f.StringVar(&submitOpts.worker, "worker", "", "Reporting or coordinating worker id")
	f.StringSliceVar(&submitOpts.capabilities, "capabilities", nil, "Required capabilities for swarm")
	f.IntVar(&submitOpts.maxWorkers, "max-workers", 0, "Maximum recruited workers for swarm")
	f.BoolVar(&submitOpts.crossAuth, "cross-authority", false, "Allow recruiting from the other authority")
	f.StringVar(&submitOpts.source, "source", "cli", "Requester identity")
	f.DurationVar(&submitOpts.wait, "wait", 0, "Wait this long for the engine's reply")
	rootCmd.AddCommand(submitCmd)
}

// buildCommand turns CLI arguments into a command envelope.
func buildCommand(args []string, opts submitOptions) (board.Command, error) {
	name := strings.TrimSpace(args[0])
	title := opts.title
	if title == "" {
		title = strings.Join(args[1:], " ")
	}

	if opts.authority != "" {
		if err := board.Authority(opts.authority).Validate(); err != nil {
			return board.Command{}, err
		}
	}
	if opts.progress < 0 || opts.progress > 100 {
		return board.Command{}, fmt.Errorf("progress must be between 0 and 100, got %d", opts.progress)
	}

	cmd := board.Command{
		Command: name,
		Source:  opts.source,
		Args: board.CommandArgs{
			Title:          title,
			Description:    opts.description,
			Project:        opts.project,
			Queue:          opts.queue,
			Priority:       opts.priority,
			Division:       opts.division,
			Authority:      board.Authority(opts.authority),
			TaskID:         opts.taskID,
			Progress:       opts.progress,
			Message:        opts.message,
			Result:         opts.result,
			Reason:         opts.reason,
			Worker:         opts.worker,
			Capabilities:   opts.capabilities,
			MaxWorkers:     opts.maxWorkers,
			CrossAuthority: opts.crossAuth,
		},
	}
	return cmd, cmd.Validate()
}

func runSubmit(cmd *cobra.Command, args []string) error {
	command, err := buildCommand(args, submitOpts)
	if err != nil {
		return printer.Error("invalid command", err.Error(), []string{"See usage:\n  tandem submit --help"})
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

	if submitOpts.wait <= 0 {
		if err := client.SubmitCommand(ctx, command); err != nil {
			return fmt.Errorf("failed to submit command: %w", err)
		}
		printer.Success("Submitted '%s' to instance '%s'\n", command.Command, cfg.Instance)
		return nil
	}

	reply, err := submitAndWait(ctx, client, command, submitOpts.wait)
	if err != nil {
		return printer.Error("no reply from engine", err.Error(), []string{"Check the engine is running:\n  tandem serve"})
	}
	if reply.Accepted {
		printer.Success("%s\n", reply.Message)
	} else {
		printer.Warning("%s\n", reply.Message)
	}
	return nil
}

// submitAndWait sends cmd on a private reply channel and returns the first
// reply the engine publishes there.
func submitAndWait(ctx context.Context, client *board.Client, cmd board.Command, timeout time.Duration) (*board.Reply, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd.ReplyChannel = board.ChannelReply + "." + uuid.NewString()[:8]

	// Subscribe before submitting so the reply cannot be missed.
	sub, err := client.SubscribeEvents(ctx)
	if err != nil {
		return nil, err
	}
	defer sub.Close()

	if err := client.SubmitCommand(ctx, cmd); err != nil {
		return nil, fmt.Errorf("failed to submit command: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("timed out after %s waiting on %s", timeout, cmd.ReplyChannel)
		case record, ok := <-sub.Events():
			if !ok {
				return nil, fmt.Errorf("event stream closed before a reply arrived")
			}
			if record.Channel != cmd.ReplyChannel {
				continue
			}
			var reply board.Reply
			if err := json.Unmarshal(record.Payload, &reply); err != nil {
				return nil, fmt.Errorf("failed to decode reply: %w", err)
			}
			return &reply, nil
		}
	}
}
