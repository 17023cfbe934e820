// Package filter selects mirrored event records for the log and watch
// commands.
package filter

import (
	"encoding/json"
	"path/filepath"

	"github.com/dyluth/tandem/pkg/board"
)

// Criteria defines filtering criteria for event records.
// All filters are ANDed together - a record must match ALL criteria to pass.
type Criteria struct {
	SinceTimestampMs int64  // Unix timestamp in milliseconds, 0 = no filter
	UntilTimestampMs int64  // Unix timestamp in milliseconds, 0 = no filter
	ChannelGlob      string // Glob pattern for the channel ("task.*", "*.task"), empty = no filter
	TaskID           string // Exact match on the payload's task id, empty = no filter
}

// Matches returns true if the record matches all filter criteria.
func (c *Criteria) Matches(record board.EventRecord) bool {
	if c.SinceTimestampMs > 0 && record.PublishedAtMs < c.SinceTimestampMs {
		return false
	}
	if c.UntilTimestampMs > 0 && record.PublishedAtMs > c.UntilTimestampMs {
		return false
	}

	if c.ChannelGlob != "" {
		matched, err := filepath.Match(c.ChannelGlob, record.Channel)
		if err != nil || !matched {
			return false
		}
	}

	if c.TaskID != "" && TaskIDOf(record) != c.TaskID {
		return false
	}

	return true
}

// HasFilters returns true if any filters are active.
func (c *Criteria) HasFilters() bool {
	return c.SinceTimestampMs > 0 ||
		c.UntilTimestampMs > 0 ||
		c.ChannelGlob != "" ||
		c.TaskID != ""
}

// Validate reports a malformed channel glob.
func (c *Criteria) Validate() error {
	if c.ChannelGlob == "" {
		return nil
	}
	_, err := filepath.Match(c.ChannelGlob, "")
	return err
}

// TaskIDOf extracts the task a record concerns. Lifecycle payloads carry
// task_id; task.created and task.finalized carry the task itself.
func TaskIDOf(record board.EventRecord) string {
	var ids struct {
		TaskID string `json:"task_id"`
		ID     string `json:"id"`
	}
	if err := json.Unmarshal(record.Payload, &ids); err != nil {
		return ""
	}
	switch record.Channel {
	case board.ChannelTaskCreated, board.ChannelTaskFinalized:
		return ids.ID
	}
	return ids.TaskID
}
