package session

import (
	"testing"
	"time"

	"contractbot/internal/task"

	"github.com/stretchr/testify/assert"
)

func TestConversationSession_CloneIsDeep(t *testing.T) {
	now := time.Now()
	s := New("s", "u", now)
	s.ActiveTask = NewTaskState(task.KindContractCreation, now)
	s.ActiveTask.Collected["TITLE"] = "Title"
	s.History = []Turn{{Input: "create contract"}}
	s.Choices = &ChoiceSet{Options: []Choice{{Number: 1, Label: "Contracts"}}}

	c := s.Clone()
	c.ActiveTask.Collected["TITLE"] = "Changed"
	c.History[0].Input = "changed"
	c.Choices.Options[0].Label = "changed"

	assert.Equal(t, "Title", s.ActiveTask.Collected["TITLE"])
	assert.Equal(t, "create contract", s.History[0].Input)
	assert.Equal(t, "Contracts", s.Choices.Options[0].Label)

	var nilSession *ConversationSession
	assert.Nil(t, nilSession.Clone())
}

func TestConversationSession_Phase(t *testing.T) {
	s := New("s", "u", time.Now())
	assert.Equal(t, PhaseNotStarted, s.Phase())
	assert.False(t, s.HasActiveTask())

	s.ActiveTask = NewTaskState(task.KindContractCreation, time.Now())
	assert.Equal(t, PhaseCollecting, s.Phase())
	assert.True(t, s.HasActiveTask())

	s.ActiveTask.Phase = PhaseCompleted
	assert.False(t, s.HasActiveTask())
}

func TestConversationSession_AppendTurnLimit(t *testing.T) {
	s := New("s", "u", time.Now())
	for _, in := range []string{"a", "b", "c", "d"} {
		s.AppendTurn(Turn{Input: in}, 3)
	}
	assert.Len(t, s.History, 3)
	assert.Equal(t, "b", s.History[0].Input)
	assert.Equal(t, "d", s.History[2].Input)
}

func TestChoiceSet_Expired(t *testing.T) {
	now := time.Now()
	var none *ChoiceSet
	assert.True(t, none.Expired(now, time.Minute))

	c := &ChoiceSet{OfferedAt: now.Add(-2 * time.Minute)}
	assert.True(t, c.Expired(now, time.Minute))
	assert.False(t, c.Expired(now, 5*time.Minute))
	assert.False(t, c.Expired(now, 0))
}

func TestTaskState_Interrupted(t *testing.T) {
	var ts *TaskState
	assert.False(t, ts.Interrupted())
	ts = NewTaskState(task.KindContractCreation, time.Now())
	assert.False(t, ts.Interrupted())
	ts.PendingQuery = "show contracts"
	assert.True(t, ts.Interrupted())
}
