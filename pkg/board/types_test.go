package board

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParsePriority(t *testing.T) {
	assert.Equal(t, PriorityCritical, ParsePriority(" Critical "))
	assert.Equal(t, PriorityLow, ParsePriority("low"))
	assert.Equal(t, PriorityHigh, ParsePriority("HIGH"))
	assert.Equal(t, PriorityNormal, ParsePriority(""))
	assert.Equal(t, PriorityNormal, ParsePriority("urgent-ish"))
}

func TestAuthority(t *testing.T) {
	assert.Equal(t, AuthorityMirror, AuthorityPrimary.Other())
	assert.Equal(t, AuthorityPrimary, AuthorityMirror.Other())
	assert.Equal(t, AuthorityPrimary, AuthorityBoth.Other())

	assert.True(t, AuthorityBoth.Includes(AuthorityMirror))
	assert.True(t, AuthorityPrimary.Includes(AuthorityPrimary))
	assert.False(t, AuthorityPrimary.Includes(AuthorityMirror))

	assert.NoError(t, AuthorityBoth.Validate())
	assert.Error(t, Authority("third").Validate())
}

func TestTaskStatus_IsTerminal(t *testing.T) {
	for _, s := range []TaskStatus{StatusPending, StatusDelegated, StatusInProgress, StatusSwarming} {
		assert.False(t, s.IsTerminal(), s)
	}
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
}

func TestTask_CloneIsDeep(t *testing.T) {
	done := time.Now()
	original := &Task{
		ID:               "T-0001",
		Queues:           []string{"flagship"},
		AssignedWorkers:  []string{"w1"},
		RecruitedWorkers: []string{"w2"},
		DelegationChain:  []DelegationStep{{Action: "created"}},
		CompletedAt:      &done,
	}

	clone := original.Clone()
	clone.Queues[0] = "other"
	clone.AssignedWorkers[0] = "changed"
	clone.DelegationChain[0].Action = "mutated"
	*clone.CompletedAt = done.Add(time.Hour)

	assert.Equal(t, "flagship", original.Queues[0])
	assert.Equal(t, "w1", original.AssignedWorkers[0])
	assert.Equal(t, "created", original.DelegationChain[0].Action)
	assert.Equal(t, done, *original.CompletedAt)
	assert.True(t, clone.HasWorker("w2"))
	assert.True(t, original.HasQueue("flagship"))

	var nilTask *Task
	assert.Nil(t, nilTask.Clone())
}

func TestParseCommandKind(t *testing.T) {
	kind, ok := ParseCommandKind(" TASK ")
	assert.True(t, ok)
	assert.Equal(t, CommandTask, kind)

	kind, ok = ParseCommandKind("Refactor billing")
	assert.False(t, ok)
	assert.Equal(t, CommandKind("refactor billing"), kind)
}

func TestCommand_Validate(t *testing.T) {
	assert.NoError(t, Command{Command: "task"}.Validate())
	assert.Error(t, Command{Command: "  "}.Validate())
	assert.Error(t, Command{Command: "task", Args: CommandArgs{Authority: "sideways"}}.Validate())
}

func TestOrigin_Channel(t *testing.T) {
	assert.Equal(t, ChannelReply, Origin{}.Channel())
	assert.Equal(t, "chat.reply", Origin{ReplyChannel: "chat.reply"}.Channel())
}

func TestWorkerState_Recruitable(t *testing.T) {
	assert.True(t, WorkerIdle.Recruitable())
	assert.True(t, WorkerBusy.Recruitable())
	assert.False(t, WorkerWorking.Recruitable())
	assert.False(t, WorkerCollaborating.Recruitable())
	assert.False(t, WorkerOffline.Recruitable())
	assert.Error(t, WorkerState("napping").Validate())
}
