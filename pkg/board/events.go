package board

import "time"

// Bus channel names.
const (
	ChannelTaskCreated   = "task.created"
	ChannelTaskDelegated = "task.delegated"
	ChannelTaskSwarmed   = "task.swarmed"
	ChannelTaskProgress  = "task.progress"
	ChannelTaskCompleted = "task.completed"
	ChannelTaskFailed    = "task.failed"
	ChannelTaskFinalized = "task.finalized"
	ChannelStatsChanged  = "stats.changed"
	ChannelDuplicate     = "bridge.duplicate"
	ChannelBridgeStatus  = "bridge.status"
	ChannelForward       = "authority.newTask"
	ChannelSwarmRequest  = "swarm.request"
	ChannelSwarmRecall   = "swarm.recall"
	ChannelSwarmReleased = "swarm.released"
	ChannelWorkerMoved   = "worker.moved"
	ChannelCommand       = "command"
	ChannelReply         = "reply"
)

const queueTaskChannelSuffix = ".task"

// QueueTaskPattern matches every <queue>.task channel.
const QueueTaskPattern = "*" + queueTaskChannelSuffix

// QueueTaskChannel returns the work-queue channel for queueID.
// Pattern: {queue_id}.task
func QueueTaskChannel(queueID string) string {
	return queueID + queueTaskChannelSuffix
}

// Delegated is published by a router when a task is handed to a queue.
type Delegated struct {
	TaskID     string    `json:"task_id"`
	FromWorker string    `json:"from_worker"`
	ToWorker   string    `json:"to_worker"`
	Queue      string    `json:"queue"`
	Division   string    `json:"division,omitempty"`
	Authority  Authority `json:"authority"`
	Fallback   bool      `json:"fallback,omitempty"` // Destination was unknown and the default queue was used
	Note       string    `json:"note,omitempty"`
}

// Swarmed is published when a recruitment session forms around a task.
type Swarmed struct {
	TaskID      string   `json:"task_id"`
	SessionID   string   `json:"session_id"`
	Coordinator string   `json:"coordinator"`
	Workers     []string `json:"workers"`
	Queue       string   `json:"queue"`
}

// SwarmReleased is published once every recruited worker has been restored.
type SwarmReleased struct {
	TaskID    string   `json:"task_id"`
	SessionID string   `json:"session_id"`
	Workers   []string `json:"workers"`
}

// Progress is published by external executors.
type Progress struct {
	TaskID   string `json:"task_id"`
	Progress int    `json:"progress"`
	Message  string `json:"message,omitempty"`
	Worker   string `json:"worker,omitempty"`
}

// Completed is published by external executors when work succeeds.
type Completed struct {
	TaskID string `json:"task_id"`
	Result string `json:"result,omitempty"`
	Worker string `json:"worker,omitempty"`
}

// Failed is published by external executors when work fails, or on recall.
type Failed struct {
	TaskID string `json:"task_id"`
	Reason string `json:"reason,omitempty"`
	Worker string `json:"worker,omitempty"`
}

// Duplicate is published by the dedup cache when a second task with a live
// fingerprint appears.
type Duplicate struct {
	NewTaskID         string    `json:"new_task_id"`
	ExistingTaskID    string    `json:"existing_task_id"`
	ExistingAuthority Authority `json:"existing_authority"`
	Title             string    `json:"title"`
}

// BridgeStatus summarizes the dedup cache.
type BridgeStatus struct {
	Entries        int `json:"entries"`
	PrimaryEntries int `json:"primary_entries"`
	MirrorEntries  int `json:"mirror_entries"`
	Duplicates     int `json:"duplicates"`
}

// Forward carries a request from the primary router to the mirror router.
// A non-empty TaskID means the mirror must reuse that task.
type Forward struct {
	Command CommandKind `json:"command"`
	Args    CommandArgs `json:"args"`
	TaskID  string      `json:"task_id,omitempty"`
	Origin  Origin      `json:"origin"`
}

// QueueTask is delivered to a work-queue consumer on <queue>.task.
type QueueTask struct {
	TaskID      string   `json:"task_id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Priority    Priority `json:"priority"`
	FromWorker  string   `json:"from_worker"`
	Queue       string   `json:"queue"`
}

// SwarmRequest asks the recruitment engine to form a session.
type SwarmRequest struct {
	TaskID               string    `json:"task_id"`
	TargetQueue          string    `json:"target_queue"`
	CoordinatorID        string    `json:"coordinator_id"`
	RequiredCapabilities []string  `json:"required_capabilities"`
	MaxWorkers           int       `json:"max_workers"`
	Authority            Authority `json:"authority,omitempty"`
	AllowCrossAuthority  bool      `json:"allow_cross_authority,omitempty"`
}

// Recall asks the recruitment engine to release a session early.
type Recall struct {
	TaskID string `json:"task_id"`
	Reason string `json:"reason,omitempty"`
}

// WorkerMoved is published by the roster whenever a worker's affiliation changes.
type WorkerMoved struct {
	WorkerID  string      `json:"worker_id"`
	FromQueue string      `json:"from_queue"`
	ToQueue   string      `json:"to_queue"`
	FromState WorkerState `json:"from_state"`
	ToState   WorkerState `json:"to_state"`
}

// Reply notifies a request originator about the outcome of its command.
type Reply struct {
	Source   string `json:"source,omitempty"`
	TaskID   string `json:"task_id,omitempty"`
	Accepted bool   `json:"accepted"`
	Message  string `json:"message"`
}

// Stats is the registry aggregate published on stats.changed.
type Stats struct {
	Pending           int     `json:"pending"`
	Delegated         int     `json:"delegated"`
	InProgress        int     `json:"in_progress"`
	Swarming          int     `json:"swarming"`
	Completed         int     `json:"completed"`
	Failed            int     `json:"failed"`
	Active            int     `json:"active"`
	Created           int     `json:"created"`
	AverageDurationMs float64 `json:"average_duration_ms"`
}

// Event is a single message flowing through the bus.
type Event struct {
	ID          string    `json:"id"`
	Channel     string    `json:"channel"`
	Payload     any       `json:"payload"`
	PublishedAt time.Time `json:"published_at"`
}
