// Package dialogue routes each utterance of a conversation. It decides what a
// turn means given the session it arrives in (a query, a field value, a
// confirmation, a menu pick, a cancellation), moves the task state machine,
// and builds the structured response.
package dialogue

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"strings"
	"sync/atomic"
	"time"

	"contractbot/internal/config"
	"contractbot/internal/events"
	"contractbot/internal/logging"
	"contractbot/internal/perception"
	"contractbot/internal/processors"
	"contractbot/internal/session"
	"contractbot/internal/store"
	"contractbot/internal/task"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "contractbot/dialogue"

// TurnRecorder receives every answered turn once the session lock has been
// released. *store.TurnLog satisfies it.
type TurnRecorder interface {
	RecordTurn(ctx context.Context, rec store.TurnRecord) error
}

// Manager processes turns. It is safe for concurrent use: turns for different
// sessions run in parallel, turns for the same session are serialized by the
// store's per-key lock.
type Manager struct {
	store      session.Store
	tasks      atomic.Pointer[task.Registry]
	pipeline   *perception.Pipeline
	processors processors.Table
	rules      []RoleRule
	recorder   TurnRecorder
	publisher  events.Publisher
	tracer     trace.Tracer
	now        func() time.Time

	selectionTTL time.Duration
	historyLimit int
	autoAbandon  bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithRoleRules replaces the role table.
func WithRoleRules(rules []RoleRule) Option {
	return func(m *Manager) { m.rules = rules }
}

// WithTurnRecorder logs every turn to r.
func WithTurnRecorder(r TurnRecorder) Option {
	return func(m *Manager) { m.recorder = r }
}

// WithPublisher publishes task completions to p.
func WithPublisher(p events.Publisher) Option {
	return func(m *Manager) { m.publisher = p }
}

// WithTracerProvider traces turns with tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(m *Manager) { m.tracer = tp.Tracer(tracerName) }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithSelectionTTL sets how long an offered choice list stays valid.
func WithSelectionTTL(d time.Duration) Option {
	return func(m *Manager) { m.selectionTTL = d }
}

// WithHistoryLimit caps the turns kept on each session.
func WithHistoryLimit(n int) Option {
	return func(m *Manager) { m.historyLimit = n }
}

// WithAutoAbandon drops an active task without asking when an unrelated query
// arrives.
func WithAutoAbandon(on bool) Option {
	return func(m *Manager) { m.autoAbandon = on }
}

// WithConfig applies the session and dialogue sections of cfg.
func WithConfig(cfg *config.Config) Option {
	return func(m *Manager) {
		m.selectionTTL = cfg.GetSelectionTTL()
		m.historyLimit = cfg.Session.HistoryLimit
		m.autoAbandon = cfg.Dialogue.AutoAbandon
	}
}

// NewManager builds a manager over st and tasks.
func NewManager(st session.Store, tasks *task.Registry, opts ...Option) *Manager {
	m := &Manager{
		store:        st,
		pipeline:     perception.NewPipeline(),
		rules:        DefaultRoleRules(),
		tracer:       otel.Tracer(tracerName),
		now:          time.Now,
		selectionTTL: 5 * time.Minute,
		historyLimit: 20,
	}
	m.tasks.Store(tasks)
	m.processors = processors.DefaultTable(m.Tasks)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Tasks returns the current task registry.
func (m *Manager) Tasks() *task.Registry { return m.tasks.Load() }

// SetTasks swaps the task registry. Sessions already collecting keep their
// collected values; their next turn is validated against the new config.
func (m *Manager) SetTasks(r *task.Registry) {
	m.tasks.Store(r)
	logging.Dialogue("task registry swapped: %v", r.Kinds())
}

// Classify classifies text with no session coupling.
func (m *Manager) Classify(text string) perception.Classification {
	return m.pipeline.Analyze(text).Classification
}

// ExtractEntities extracts entities from text with no session coupling.
func (m *Manager) ExtractEntities(text string) []perception.Entity {
	return m.pipeline.Analyze(text).Entities
}

// Analyze runs the full perception pipeline.
func (m *Manager) Analyze(text string) perception.Analysis {
	return m.pipeline.Analyze(text)
}

// Session returns a copy of the stored session.
func (m *Manager) Session(id string) (*session.ConversationSession, bool) {
	return m.store.Get(id)
}

// EndSession drops a session and any task in it.
func (m *Manager) EndSession(id string) {
	unlock := m.store.Lock(id)
	defer unlock()
	turns := 0
	if sess, ok := m.store.Get(id); ok {
		turns = len(sess.History)
	}
	m.store.Remove(id)
	logging.SessionDebug("session %s ended", id)
	logging.AuditWithSession(id).SessionEnd(turns)
}

// OfferChoices attaches an enumerated choice list to a session so the next
// turn can answer with a number or a label. Options without a number are
// numbered in order.
func (m *Manager) OfferChoices(sessionID, userID, prompt string, choices []session.Choice) error {
	if len(choices) == 0 {
		return fmt.Errorf("no choices to offer")
	}
	unlock := m.store.Lock(sessionID)
	defer unlock()

	now := m.now()
	sess, ok := m.store.Get(sessionID)
	if !ok {
		sess = session.New(sessionID, userID, now)
	}
	opts := make([]session.Choice, len(choices))
	for i, c := range choices {
		if c.Number == 0 {
			c.Number = i + 1
		}
		if c.Value == "" {
			c.Value = c.Label
		}
		opts[i] = c
	}
	if prompt == "" {
		prompt = "Please choose one of the following:"
	}
	sess.Choices = &session.ChoiceSet{Prompt: prompt, Options: opts, OfferedAt: now}
	sess.LastActive = now
	m.store.Put(sess)
	return nil
}

func (m *Manager) policy(now time.Time) Policy {
	return Policy{Tasks: m.Tasks(), SelectionTTL: m.selectionTTL, Now: now}
}

// outcome is what a turn produced inside the session lock.
type outcome struct {
	resp      *Response
	completed *events.TaskCompleted
	panicked  bool
}

// ProcessTurn answers one utterance. It never returns nil and never panics;
// internal failures become a PARSE_ERROR response and leave the session as it
// was. An empty sessionID starts a new session.
func (m *Manager) ProcessTurn(ctx context.Context, text, sessionID, userID string) *Response {
	start := m.now()
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	ctx, span := m.tracer.Start(ctx, "dialogue.ProcessTurn",
		trace.WithAttributes(attribute.String("session.id", sessionID)),
	)
	defer span.End()

	out := m.turn(sessionID, userID, text, start)
	resp := out.resp
	elapsed := m.now().Sub(start)
	resp.Metadata.ProcessingTimeMs = elapsed.Milliseconds()

	span.SetAttributes(
		attribute.String("dialogue.role", string(resp.Metadata.Role)),
		attribute.String("dialogue.query_type", string(resp.Metadata.QueryType)),
		attribute.String("dialogue.action_type", string(resp.Metadata.ActionType)),
		attribute.String("dialogue.phase", string(resp.Data.Phase)),
		attribute.Bool("dialogue.success", resp.Success),
	)
	if out.panicked {
		span.SetStatus(codes.Error, "turn panicked")
	}
	recordTurn(resp, elapsed)
	logging.DialogueDebug("session %s: %q -> %s (%s/%s) success=%t",
		sessionID, text, resp.Metadata.Role, resp.Metadata.QueryType, resp.Metadata.ActionType, resp.Success)

	m.afterTurn(ctx, userID, text, resp, out.completed, start)
	return resp
}

// turn runs the state machine under the session lock.
func (m *Manager) turn(sessionID, userID, text string, now time.Time) (out outcome) {
	unlock := m.store.Lock(sessionID)
	defer unlock()

	sess, ok := m.store.Get(sessionID)
	if !ok {
		sess = session.New(sessionID, userID, now)
		logging.AuditWithSession(sessionID).SessionStart(userID)
	}

	defer func() {
		if r := recover(); r != nil {
			panicsTotal.Inc()
			logging.DialogueError("turn for session %s panicked: %v\n%s", sessionID, r, debug.Stack())
			logging.AuditWithSession(sessionID).TurnPanic(r)
			out = outcome{resp: parseErrorResponse(sessionID, text, sess), panicked: true}
		}
	}()

	tc := &TurnContext{
		Text:    strings.TrimSpace(text),
		Session: sess.Clone(),
		Policy:  m.policy(now),
	}
	resp, completed := m.dispatch(tc)

	work := tc.Session
	work.LastActive = now
	if userID != "" {
		work.UserID = userID
	}
	work.AppendTurn(session.Turn{
		ID:         uuid.NewString(),
		Input:      text,
		Role:       string(resp.Metadata.Role),
		QueryType:  string(resp.Metadata.QueryType),
		ActionType: string(resp.Metadata.ActionType),
		Success:    resp.Success,
		At:         now,
	}, m.historyLimit)
	m.store.Put(work)

	return outcome{resp: resp, completed: completed}
}

func parseErrorResponse(sessionID, text string, sess *session.ConversationSession) *Response {
	r := &Response{
		SessionID:     sessionID,
		OriginalInput: text,
		Entities:      []perception.Entity{},
		DisplayFields: []string{},
		Metadata: Metadata{
			QueryType:  perception.QueryError,
			ActionType: perception.ActionGeneralQuery,
		},
		Data: Data{Phase: sess.Phase()},
	}
	r.addError(processors.CodeParseError, "Sorry, I could not process that input. Please rephrase it.", processors.SeverityError, "")
	return r
}

// dispatch resolves the turn's role and runs its handler.
func (m *Manager) dispatch(tc *TurnContext) (*Response, *events.TaskCompleted) {
	sess := tc.Session
	if sess.ActiveTask != nil && !sess.HasActiveTask() {
		sess.ActiveTask = nil
	}
	tc.Analysis = m.pipeline.Analyze(tc.Text)

	if sess.ActiveTask != nil {
		cfg, ok := tc.Policy.Tasks.Get(sess.ActiveTask.Kind)
		if !ok {
			return m.resetUnknownTask(tc), nil
		}
		tc.Task = cfg
	}

	role := m.resolveRole(tc)
	h := &turnHandler{m: m, tc: tc}
	resp := h.handle(role)
	return resp, h.completed
}

func (m *Manager) resolveRole(tc *TurnContext) Role {
	for _, rule := range m.rules {
		if rule.Match(tc) {
			return rule.Role
		}
	}
	return RoleNewQuery
}

func (m *Manager) resetUnknownTask(tc *TurnContext) *Response {
	kind := tc.Session.ActiveTask.Kind
	tc.Session.ActiveTask = nil
	taskTransitionsTotal.WithLabelValues("reset").Inc()
	logging.DialogueWarn("session %s referenced unknown task kind %s; reset", tc.Session.ID, kind)
	logging.AuditWithSession(tc.Session.ID).TaskReset(string(kind))

	r := newResponse(tc, RoleReset)
	r.Metadata.QueryType = perception.QueryError
	r.Metadata.ActionType = perception.ActionGeneralQuery
	r.addError(processors.CodeUnknownTaskState,
		fmt.Sprintf("The %s task is no longer available, so it was discarded. Please start again.", kind),
		processors.SeverityError, "")
	r.Data.Phase = session.PhaseNotStarted
	return r
}

// afterTurn runs the I/O collaborators. The session lock is not held.
func (m *Manager) afterTurn(ctx context.Context, userID, text string, resp *Response, completed *events.TaskCompleted, at time.Time) {
	if completed != nil && m.publisher != nil {
		if err := m.publisher.PublishTaskCompleted(ctx, *completed); err != nil {
			logging.DialogueWarn("publish completion of %s for session %s: %v", completed.Kind, completed.SessionID, err)
			trace.SpanFromContext(ctx).RecordError(err)
		}
	}
	if m.recorder == nil {
		return
	}
	body, err := json.Marshal(resp)
	if err != nil {
		logging.DialogueWarn("marshal response for turn log: %v", err)
	}
	rec := store.TurnRecord{
		ID:             uuid.NewString(),
		SessionID:      resp.SessionID,
		UserID:         userID,
		Input:          text,
		CorrectedInput: resp.CorrectedInput,
		Role:           string(resp.Metadata.Role),
		QueryType:      string(resp.Metadata.QueryType),
		ActionType:     string(resp.Metadata.ActionType),
		Phase:          string(resp.Data.Phase),
		Success:        resp.Success,
		ProcessingMs:   resp.Metadata.ProcessingTimeMs,
		Response:       string(body),
		CreatedAt:      at,
	}
	if err := m.recorder.RecordTurn(ctx, rec); err != nil {
		logging.DialogueWarn("record turn for session %s: %v", resp.SessionID, err)
		trace.SpanFromContext(ctx).RecordError(err)
	}
}
