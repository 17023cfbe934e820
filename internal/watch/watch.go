// Package watch renders the mirrored bus event stream for humans and tools.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dyluth/tandem/internal/filter"
	"github.com/dyluth/tandem/pkg/board"
)

// OutputFormat selects how events are written.
type OutputFormat string

const (
	// OutputFormatDefault is one human-readable line per event.
	OutputFormatDefault OutputFormat = "default"
	// OutputFormatJSON is line-delimited JSON event records.
	OutputFormatJSON OutputFormat = "json"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputFormatDefault, OutputFormatJSON:
		return OutputFormat(s), nil
	}
	return "", fmt.Errorf("unknown format: %s", s)
}

// StreamActivity writes mirrored events matching criteria (nil matches all)
// until ctx is cancelled or the subscription ends.
func StreamActivity(ctx context.Context, client *board.Client, format OutputFormat, criteria *filter.Criteria, w io.Writer) error {
	sub, err := client.SubscribeEvents(ctx)
	if err != nil {
		return err
	}
	defer sub.Close()

	if format == OutputFormatDefault {
		fmt.Fprintf(w, "Watching tandem instance '%s' (Ctrl+C to stop)\n\n", client.InstanceName())
	}

	events, errs := sub.Events(), sub.Errors()
	for {
		select {
		case <-ctx.Done():
			return nil
		case record, ok := <-events:
			if !ok {
				return nil
			}
			if criteria != nil && !criteria.Matches(record) {
				continue
			}
			if err := WriteRecord(w, record, format); err != nil {
				return err
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if format == OutputFormatDefault {
				fmt.Fprintf(w, "⚠️  %v\n", err)
			}
		}
	}
}

// WriteRecord writes a single event record in the requested format.
func WriteRecord(w io.Writer, record board.EventRecord, format OutputFormat) error {
	if format == OutputFormatJSON {
		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("failed to marshal event to JSON: %w", err)
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	}

	ts := time.UnixMilli(record.PublishedAtMs).Format("15:04:05")
	_, err := fmt.Fprintf(w, "[%s] %s\n", ts, FormatRecord(record))
	return err
}

// FormatRecord renders an event record as a single line without timestamp.
// Payloads that cannot be decoded fall back to the raw JSON.
func FormatRecord(record board.EventRecord) string {
	line, err := formatPayload(record)
	if err != nil {
		return fmt.Sprintf("• %s: %s", record.Channel, string(record.Payload))
	}
	return line
}

func formatPayload(record board.EventRecord) (string, error) {
	switch record.Channel {
	case board.ChannelTaskCreated:
		var t board.Task
		if err := decode(record, &t); err != nil {
			return "", err
		}
		return fmt.Sprintf("📥 Task Created: %s %q (%s)", t.ID, t.Title, t.Authority), nil

	case board.ChannelTaskDelegated:
		var d board.Delegated
		if err := decode(record, &d); err != nil {
			return "", err
		}
		line := fmt.Sprintf("➡️  Task Delegated: %s to=%s by=%s", d.TaskID, d.Queue, d.FromWorker)
		if d.Fallback {
			line += " (fallback)"
		}
		return line, nil

	case board.ChannelTaskSwarmed:
		var s board.Swarmed
		if err := decode(record, &s); err != nil {
			return "", err
		}
		return fmt.Sprintf("🐝 Swarm Formed: %s on %s workers=%s", s.TaskID, s.Queue, joinOrDash(s.Workers)), nil

	case board.ChannelTaskProgress:
		var p board.Progress
		if err := decode(record, &p); err != nil {
			return "", err
		}
		return withDetail(fmt.Sprintf("⏳ Progress: %s %d%%", p.TaskID, p.Progress), p.Message), nil

	case board.ChannelTaskCompleted:
		var c board.Completed
		if err := decode(record, &c); err != nil {
			return "", err
		}
		return withDetail("✅ Task Completed: "+c.TaskID, c.Result), nil

	case board.ChannelTaskFailed:
		var f board.Failed
		if err := decode(record, &f); err != nil {
			return "", err
		}
		return withDetail("❌ Task Failed: "+f.TaskID, f.Reason), nil

	case board.ChannelTaskFinalized:
		var t board.Task
		if err := decode(record, &t); err != nil {
			return "", err
		}
		return fmt.Sprintf("🏁 Task Finalized: %s status=%s duration=%s", t.ID, t.Status, time.Duration(t.DurationMs)*time.Millisecond), nil

	case board.ChannelDuplicate:
		var d board.Duplicate
		if err := decode(record, &d); err != nil {
			return "", err
		}
		return fmt.Sprintf("🚫 Duplicate: %s repeats %s (owned by %s)", d.NewTaskID, d.ExistingTaskID, d.ExistingAuthority), nil

	case board.ChannelForward:
		var f board.Forward
		if err := decode(record, &f); err != nil {
			return "", err
		}
		if f.TaskID == "" {
			return fmt.Sprintf("🔁 Forwarded: %s request to mirror", f.Command), nil
		}
		return fmt.Sprintf("🔁 Forwarded: %s to mirror", f.TaskID), nil

	case board.ChannelSwarmRequest:
		var r board.SwarmRequest
		if err := decode(record, &r); err != nil {
			return "", err
		}
		return fmt.Sprintf("📣 Swarm Requested: %s on %s by=%s", r.TaskID, r.TargetQueue, r.CoordinatorID), nil

	case board.ChannelSwarmRecall:
		var r board.Recall
		if err := decode(record, &r); err != nil {
			return "", err
		}
		return withDetail("↩️  Swarm Recalled: "+r.TaskID, r.Reason), nil

	case board.ChannelSwarmReleased:
		var r board.SwarmReleased
		if err := decode(record, &r); err != nil {
			return "", err
		}
		return fmt.Sprintf("🔓 Swarm Released: %s workers=%s", r.TaskID, joinOrDash(r.Workers)), nil

	case board.ChannelWorkerMoved:
		var m board.WorkerMoved
		if err := decode(record, &m); err != nil {
			return "", err
		}
		return fmt.Sprintf("🔀 Worker Moved: %s %s → %s (%s → %s)", m.WorkerID, m.FromQueue, m.ToQueue, m.FromState, m.ToState), nil

	case board.ChannelStatsChanged:
		var s board.Stats
		if err := decode(record, &s); err != nil {
			return "", err
		}
		return fmt.Sprintf("📊 Stats: active=%d completed=%d failed=%d", s.Active, s.Completed, s.Failed), nil

	case board.ChannelBridgeStatus:
		var s board.BridgeStatus
		if err := decode(record, &s); err != nil {
			return "", err
		}
		return fmt.Sprintf("🔗 Bridge: entries=%d primary=%d mirror=%d duplicates=%d", s.Entries, s.PrimaryEntries, s.MirrorEntries, s.Duplicates), nil

	case board.ChannelCommand:
		var c board.Command
		if err := decode(record, &c); err != nil {
			return "", err
		}
		return fmt.Sprintf("💬 Command: %s from=%s", c.Command, dash(c.Source)), nil
	}

	if strings.HasSuffix(record.Channel, board.QueueTaskChannel("")) {
		var q board.QueueTask
		if err := decode(record, &q); err != nil {
			return "", err
		}
		return fmt.Sprintf("📋 Queued: %s on %s %q", q.TaskID, q.Queue, q.Title), nil
	}

	// Anything else is a reply on the shared or a per-requester channel.
	var r board.Reply
	if err := decode(record, &r); err != nil {
		return "", err
	}
	if r.Message == "" {
		return "", fmt.Errorf("unrecognized event")
	}
	return fmt.Sprintf("📨 Reply (%s): %s", record.Channel, r.Message), nil
}

func decode(record board.EventRecord, v any) error {
	return json.Unmarshal(record.Payload, v)
}

func withDetail(line, detail string) string {
	if detail == "" {
		return line
	}
	return line + ": " + detail
}

func joinOrDash(values []string) string {
	if len(values) == 0 {
		return "-"
	}
	return strings.Join(values, ",")
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
