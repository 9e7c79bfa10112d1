// Package session holds per-conversation state and the in-memory store that
// owns it. Sessions are values: the store hands out clones and only a Put
// makes a change visible.
package session

import (
	"maps"
	"time"

	"contractbot/internal/task"
)

// Phase is the task state machine position.
type Phase string

const (
	PhaseNotStarted Phase = "NOT_STARTED"
	PhaseCollecting Phase = "COLLECTING"
	PhaseConfirming Phase = "CONFIRMING"
	PhaseCompleted  Phase = "COMPLETED"
	PhaseCancelled  Phase = "CANCELLED"
)

// TaskState tracks one in-progress task.
type TaskState struct {
	Kind        task.Kind         `json:"kind"`
	Phase       Phase             `json:"phase"`
	CurrentStep int               `json:"currentStep"`
	Collected   map[string]string `json:"collected"`

	// AwaitingConfirmation is true in PhaseConfirming.
	AwaitingConfirmation bool `json:"awaitingConfirmation"`

	// PendingQuery holds an interrupting query while the user is asked
	// whether to continue the task.
	PendingQuery string `json:"pendingQuery,omitempty"`

	StartedAt time.Time `json:"startedAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewTaskState starts a task in COLLECTING at step 0.
func NewTaskState(kind task.Kind, now time.Time) *TaskState {
	return &TaskState{
		Kind:      kind,
		Phase:     PhaseCollecting,
		Collected: make(map[string]string),
		StartedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy.
func (t *TaskState) Clone() *TaskState {
	if t == nil {
		return nil
	}
	c := *t
	c.Collected = maps.Clone(t.Collected)
	if c.Collected == nil {
		c.Collected = make(map[string]string)
	}
	return &c
}

// Interrupted reports whether the user is being asked to continue or abandon.
func (t *TaskState) Interrupted() bool {
	return t != nil && t.PendingQuery != ""
}

// Turn is one processed utterance.
type Turn struct {
	ID         string    `json:"id"`
	Input      string    `json:"input"`
	Role       string    `json:"role"`
	QueryType  string    `json:"queryType"`
	ActionType string    `json:"actionType"`
	Success    bool      `json:"success"`
	At         time.Time `json:"at"`
}

// Choice is one numbered option offered to the user.
type Choice struct {
	Number int    `json:"number"`
	Label  string `json:"label"`
	Value  string `json:"value"`
}

// ChoiceSet is an enumerated prompt awaiting a selection.
type ChoiceSet struct {
	Prompt    string    `json:"prompt"`
	Options   []Choice  `json:"options"`
	OfferedAt time.Time `json:"offeredAt"`
}

// Expired reports whether the offer is older than ttl.
func (c *ChoiceSet) Expired(now time.Time, ttl time.Duration) bool {
	return c == nil || (ttl > 0 && now.Sub(c.OfferedAt) > ttl)
}

// ConversationSession is the state kept per session id.
type ConversationSession struct {
	ID         string     `json:"sessionId"`
	UserID     string     `json:"userId"`
	ActiveTask *TaskState `json:"activeTask,omitempty"`
	History    []Turn     `json:"turnHistory"`
	Choices    *ChoiceSet `json:"choices,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	LastActive time.Time  `json:"lastActive"`
}

// New returns a fresh session.
func New(id, userID string, now time.Time) *ConversationSession {
	return &ConversationSession{ID: id, UserID: userID, CreatedAt: now, LastActive: now}
}

// Clone returns a deep copy.
func (s *ConversationSession) Clone() *ConversationSession {
	if s == nil {
		return nil
	}
	c := *s
	c.ActiveTask = s.ActiveTask.Clone()
	c.History = append([]Turn(nil), s.History...)
	if s.Choices != nil {
		cs := *s.Choices
		cs.Options = append([]Choice(nil), s.Choices.Options...)
		c.Choices = &cs
	}
	return &c
}

// Phase returns the active task's phase, or PhaseNotStarted.
func (s *ConversationSession) Phase() Phase {
	if s == nil || s.ActiveTask == nil {
		return PhaseNotStarted
	}
	return s.ActiveTask.Phase
}

// HasActiveTask reports whether a task is collecting or confirming.
func (s *ConversationSession) HasActiveTask() bool {
	p := s.Phase()
	return p == PhaseCollecting || p == PhaseConfirming
}

// AppendTurn records a turn, keeping at most limit entries.
func (s *ConversationSession) AppendTurn(t Turn, limit int) {
	s.History = append(s.History, t)
	if limit > 0 && len(s.History) > limit {
		s.History = append([]Turn(nil), s.History[len(s.History)-limit:]...)
	}
}

// Expired reports whether the session has been idle longer than ttl.
func (s *ConversationSession) Expired(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(s.LastActive) > ttl
}
