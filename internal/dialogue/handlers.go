package dialogue

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"contractbot/internal/events"
	"contractbot/internal/logging"
	"contractbot/internal/perception"
	"contractbot/internal/processors"
	"contractbot/internal/session"
	"contractbot/internal/task"

	"github.com/google/uuid"
)

// taskForAction maps a task-creation action to the task it starts.
var taskForAction = map[perception.ActionType]task.Kind{
	perception.ActionHelpCreateBot: task.KindContractCreation,
}

// DefaultMenu is offered when an input matches no domain.
var DefaultMenu = []session.Choice{
	{Number: 1, Label: "Look up a contract", Value: "show contracts"},
	{Number: 2, Label: "Look up parts", Value: "show parts"},
	{Number: 3, Label: "Look up a customer", Value: "show customers"},
	{Number: 4, Label: "Review failed parts", Value: "show failed parts"},
	{Number: 5, Label: "Create a contract", Value: "create contract"},
}

const menuPrompt = "I can help with the following. Reply with a number:"

// turnHandler runs one role's handler against a TurnContext.
type turnHandler struct {
	m         *Manager
	tc        *TurnContext
	completed *events.TaskCompleted
}

func (h *turnHandler) handle(role Role) *Response {
	switch role {
	case RoleCancel:
		return h.cancel(RoleCancel)
	case RoleNewTask:
		return h.startTask()
	case RoleInterruptionReply:
		return h.interruptionReply()
	case RoleAccountInput, RoleFieldInput:
		return h.fieldInput(role)
	case RoleCompleteInput:
		return h.completeInput()
	case RoleInterruption:
		return h.interruption()
	case RoleConfirmation:
		return h.confirmation()
	case RoleSelection:
		return h.selection()
	default:
		return h.newQuery(RoleNewQuery)
	}
}

func newResponse(tc *TurnContext, role Role) *Response {
	return &Response{
		SessionID:      tc.Session.ID,
		OriginalInput:  tc.Analysis.Original,
		CorrectedInput: tc.Analysis.Normalized,
		Entities:       []perception.Entity{},
		DisplayFields:  []string{},
		Errors:         []processors.ValidationError{},
		Metadata:       Metadata{Role: role},
		Data:           Data{Phase: tc.Session.Phase()},
	}
}

// taskResponse describes the active task's position.
func (h *turnHandler) taskResponse(role Role) *Response {
	r := newResponse(h.tc, role)
	r.Metadata.QueryType = perception.QueryHelp
	r.Metadata.ActionType = perception.ActionHelpCreateBot
	h.fillTaskData(r, h.tc.Session.ActiveTask)
	return r
}

func (h *turnHandler) fillTaskData(r *Response, state *session.TaskState) {
	cfg := h.tc.Task
	if cfg == nil || state == nil {
		return
	}
	r.DisplayFields = cfg.Keys()
	r.Data.Phase = state.Phase
	r.Data.Step = state.CurrentStep
	r.Data.Collected = maps.Clone(state.Collected)
	for _, f := range cfg.Remaining(state.Collected) {
		r.Data.Remaining = append(r.Data.Remaining, f.Key)
	}
	switch state.Phase {
	case session.PhaseCollecting:
		if f := currentField(h.tc.Session, cfg); f != nil {
			r.Data.CurrentField = f.Key
			r.Data.Prompt = f.Prompt
		}
	case session.PhaseConfirming:
		r.Data.Prompt = confirmPrompt(cfg, state)
	}
}

func confirmPrompt(cfg *task.Config, state *session.TaskState) string {
	prompt := cfg.ConfirmPrompt
	if prompt == "" {
		prompt = "Confirm? (yes/no)"
	}
	return cfg.Summary(state.Collected) + "\n" + prompt
}

// advance moves the task to the first missing required field, or to
// CONFIRMING when none is missing.
func (h *turnHandler) advance() {
	state := h.tc.Session.ActiveTask
	cfg := h.tc.Task
	state.UpdatedAt = h.tc.Policy.Now
	state.CurrentStep = cfg.FirstMissing(state.Collected)
	if state.CurrentStep >= len(cfg.RequiredFields()) {
		state.Phase = session.PhaseConfirming
		state.AwaitingConfirmation = true
		return
	}
	state.Phase = session.PhaseCollecting
	state.AwaitingConfirmation = false
}

func taskName(cfg *task.Config) string {
	return strings.ToLower(cfg.Name)
}

func (h *turnHandler) startTask() *Response {
	kind, ok := taskForAction[h.tc.Analysis.Classification.ActionType]
	if !ok {
		kind = task.KindContractCreation
	}
	cfg, ok := h.tc.Policy.Tasks.Get(kind)
	if !ok {
		r := newResponse(h.tc, RoleNewTask)
		r.Metadata.QueryType = perception.QueryHelp
		r.Metadata.ActionType = h.tc.Analysis.Classification.ActionType
		r.addError(processors.CodeUnknownTaskState, fmt.Sprintf("The %s task is not configured.", kind), processors.SeverityError, "")
		return r
	}
	if h.tc.Session.HasActiveTask() {
		taskTransitionsTotal.WithLabelValues("abandoned").Inc()
		logging.AuditWithSession(h.tc.Session.ID).TaskAbandoned(string(h.tc.Session.ActiveTask.Kind), "new task")
	}

	h.tc.Task = cfg
	h.tc.Session.ActiveTask = session.NewTaskState(cfg.Kind, h.tc.Policy.Now)
	h.tc.Session.Choices = nil
	h.advance()
	taskTransitionsTotal.WithLabelValues("started").Inc()
	logging.Dialogue("session %s started %s", h.tc.Session.ID, cfg.Kind)
	logging.AuditWithSession(h.tc.Session.ID).TaskStarted(string(cfg.Kind))

	r := h.taskResponse(RoleNewTask)
	r.Success = true
	r.Entities = nonNil(h.tc.Analysis.Entities)
	r.Data.Message = fmt.Sprintf("Let's start %s. %s", taskName(cfg), r.Data.Prompt)
	return r
}

func (h *turnHandler) fieldInput(role Role) *Response {
	f := h.tc.CurrentField()
	if f == nil {
		h.advance()
		r := h.taskResponse(role)
		r.Success = true
		r.Data.Message = r.Data.Prompt
		return r
	}

	value, err := f.Accept(h.tc.Text)
	if err != nil {
		r := h.taskResponse(role)
		msg := fieldErrorMessage(err)
		r.addError(processors.CodeValidation, msg, processors.SeverityError, f.Key)
		r.Data.Message = msg + ". " + f.Prompt
		return r
	}

	state := h.tc.Session.ActiveTask
	state.Collected[f.Key] = value
	state.PendingQuery = ""
	h.advance()
	logging.DialogueDebug("session %s collected %s", h.tc.Session.ID, f.Key)

	r := h.taskResponse(role)
	r.Success = true
	r.Data.Message = r.Data.Prompt
	return r
}

func fieldErrorMessage(err error) string {
	var fe *task.FieldError
	if errors.As(err, &fe) {
		return fe.Message
	}
	return err.Error()
}

func (h *turnHandler) completeInput() *Response {
	cfg := h.tc.Task
	state := h.tc.Session.ActiveTask
	in, _ := parseCompleteInput(h.tc.Text, cfg, state.Collected)

	var errs []processors.ValidationError
	if len(in.labeled) > 0 {
		// Labeled values are accepted one by one.
		for _, key := range in.order {
			f, _ := cfg.Field(key)
			v, err := f.Accept(in.labeled[key])
			if err != nil {
				errs = append(errs, processors.ValidationError{Code: processors.CodeValidation, Message: fieldErrorMessage(err), Severity: processors.SeverityError, Field: key})
				continue
			}
			state.Collected[key] = v
		}
		for _, label := range in.unknown {
			errs = append(errs, processors.ValidationError{Code: processors.CodeValidation, Message: fmt.Sprintf("Unknown field %q was ignored", label), Severity: processors.SeverityInfo})
		}
	} else {
		// Positional values are all or nothing.
		targets := append(cfg.Remaining(state.Collected), uncollectedOptional(cfg, state.Collected)...)
		accepted := make(map[string]string, len(in.positional))
		for i, raw := range in.positional {
			f := targets[i]
			v, err := positionalValue(cfg, raw, f)
			if err == nil {
				v, err = f.Accept(v)
			}
			if err != nil {
				errs = append(errs, processors.ValidationError{Code: processors.CodeValidation, Message: fieldErrorMessage(err), Severity: processors.SeverityError, Field: f.Key})
				continue
			}
			accepted[f.Key] = v
		}
		if len(errs) == 0 {
			maps.Copy(state.Collected, accepted)
		}
	}

	state.PendingQuery = ""
	h.advance()

	r := h.taskResponse(RoleCompleteInput)
	r.Errors = append(r.Errors, errs...)
	r.Success = !hasSeverity(errs, processors.SeverityError)
	if r.Success {
		r.Data.Message = r.Data.Prompt
	} else {
		msgs := make([]string, 0, len(errs))
		for _, e := range errs {
			msgs = append(msgs, e.Message)
		}
		r.Data.Message = strings.Join(msgs, "; ") + ". " + r.Data.Prompt
	}
	return r
}

func hasSeverity(errs []processors.ValidationError, sev processors.Severity) bool {
	for _, e := range errs {
		if e.Severity == sev {
			return true
		}
	}
	return false
}

func progressNotice(cfg *task.Config, state *session.TaskState) string {
	required := len(cfg.RequiredFields())
	done := required - len(cfg.Remaining(state.Collected))
	if state.Phase == session.PhaseConfirming {
		return fmt.Sprintf("You have %s in progress awaiting confirmation.", taskName(cfg))
	}
	return fmt.Sprintf("You have %s in progress (%d of %d required fields collected).", taskName(cfg), done, required)
}

func (h *turnHandler) interruption() *Response {
	cfg := h.tc.Task
	state := h.tc.Session.ActiveTask

	if h.m.autoAbandon {
		notice := progressNotice(cfg, state) + " It was abandoned."
		h.tc.Session.ActiveTask = nil
		taskTransitionsTotal.WithLabelValues("abandoned").Inc()
		logging.Dialogue("session %s abandoned %s for a new query", h.tc.Session.ID, cfg.Kind)
		logging.AuditWithSession(h.tc.Session.ID).TaskAbandoned(string(cfg.Kind), "interrupted")

		r := h.answer(h.tc.Text)
		r.Metadata.Role = RoleInterruption
		r.Data.Notice = notice
		r.addError(processors.CodeTaskAbandoned, notice, processors.SeverityWarning, "")
		return r
	}

	state.PendingQuery = h.tc.Text
	notice := progressNotice(cfg, state)

	r := h.taskResponse(RoleInterruption)
	r.Success = true
	r.Data.Notice = notice
	r.Data.Prompt = fmt.Sprintf("Do you want to continue with %s? (yes/no)", taskName(cfg))
	r.Data.Message = notice + " " + r.Data.Prompt
	r.addError(processors.CodeTaskInProgress, notice, processors.SeverityWarning, "")
	return r
}

func (h *turnHandler) interruptionReply() *Response {
	state := h.tc.Session.ActiveTask
	pending := state.PendingQuery
	state.PendingQuery = ""

	if perception.IsAffirmative(h.tc.Text) {
		r := h.taskResponse(RoleInterruptionReply)
		r.Success = true
		r.Data.Message = fmt.Sprintf("Continuing %s. %s", taskName(h.tc.Task), r.Data.Prompt)
		return r
	}

	notice := fmt.Sprintf("%s cancelled.", h.tc.Task.Name)
	h.cancelTask()
	original := h.tc.Analysis.Original
	r := h.answer(pending)
	r.OriginalInput = original
	r.Metadata.Role = RoleInterruptionReply
	r.Data.Notice = notice
	return r
}

func (h *turnHandler) cancelTask() {
	state := h.tc.Session.ActiveTask
	state.Phase = session.PhaseCancelled
	h.tc.Session.ActiveTask = nil
	taskTransitionsTotal.WithLabelValues("cancelled").Inc()
	logging.Dialogue("session %s cancelled %s", h.tc.Session.ID, state.Kind)
	logging.AuditWithSession(h.tc.Session.ID).TaskCancelled(string(state.Kind), "user")
}

func (h *turnHandler) cancel(role Role) *Response {
	name := h.tc.Task.Name
	h.cancelTask()
	r := newResponse(h.tc, role)
	r.Success = true
	r.Metadata.QueryType = perception.QueryHelp
	r.Metadata.ActionType = perception.ActionHelpCreateBot
	r.Data.Phase = session.PhaseCancelled
	r.Data.Message = fmt.Sprintf("%s cancelled.", name)
	return r
}

func (h *turnHandler) confirmation() *Response {
	switch {
	case perception.IsAffirmative(h.tc.Text):
		return h.complete()
	case perception.IsNegative(h.tc.Text):
		return h.cancel(RoleConfirmation)
	}
	r := h.taskResponse(RoleConfirmation)
	msg := "Please answer yes to confirm or no to cancel"
	r.addError(processors.CodeValidation, msg, processors.SeverityInfo, "")
	r.Data.Message = msg + ".\n" + r.Data.Prompt
	return r
}

func (h *turnHandler) complete() *Response {
	cfg := h.tc.Task
	state := h.tc.Session.ActiveTask
	state.Phase = session.PhaseCompleted
	state.AwaitingConfirmation = false
	state.UpdatedAt = h.tc.Policy.Now
	values := maps.Clone(state.Collected)

	h.tc.Session.ActiveTask = nil
	h.completed = &events.TaskCompleted{
		ID:          uuid.NewString(),
		SessionID:   h.tc.Session.ID,
		UserID:      h.tc.Session.UserID,
		Kind:        string(cfg.Kind),
		Values:      values,
		CompletedAt: h.tc.Policy.Now,
	}
	taskTransitionsTotal.WithLabelValues("completed").Inc()
	logging.Dialogue("session %s completed %s", h.tc.Session.ID, cfg.Kind)
	logging.AuditWithSession(h.tc.Session.ID).TaskCompleted(string(cfg.Kind), slices.Sorted(maps.Keys(values)))

	r := newResponse(h.tc, RoleConfirmation)
	r.Success = true
	r.Metadata.QueryType = perception.QueryHelp
	r.Metadata.ActionType = perception.ActionHelpCreateBot
	r.DisplayFields = cfg.Keys()
	r.Data.Phase = session.PhaseCompleted
	r.Data.Result = values
	r.Data.Message = cfg.CompletedMessage
	if r.Data.Message == "" {
		r.Data.Message = fmt.Sprintf("%s completed.", cfg.Name)
	}
	return r
}

func (h *turnHandler) selection() *Response {
	set := h.tc.Session.Choices
	h.tc.Session.Choices = nil

	if set.Expired(h.tc.Policy.Now, h.tc.Policy.SelectionTTL) {
		r := newResponse(h.tc, RoleSelection)
		msg := "That list of options has expired. Please ask again."
		r.addError(processors.CodeSelectionExpired, msg, processors.SeverityWarning, "")
		r.Data.Message = msg
		return r
	}

	choice, _ := matchChoice(set, h.tc.Text)
	original := h.tc.Analysis.Original
	r := h.answer(choice.Value)
	r.OriginalInput = original
	r.Metadata.Role = RoleSelection
	r.Data.Notice = "Selected: " + choice.Label
	return r
}

// answer treats text as a fresh utterance with no task in progress.
func (h *turnHandler) answer(text string) *Response {
	h.tc.Text = text
	h.tc.Analysis = h.m.pipeline.Analyze(text)
	h.tc.Task = nil
	if h.tc.Analysis.Classification.IsTaskCreation() {
		return h.startTask()
	}
	return h.newQuery(RoleNewQuery)
}

func (h *turnHandler) newQuery(role Role) *Response {
	a := h.tc.Analysis
	h.tc.Session.Choices = nil

	res, err := h.m.processors.Process(processors.Input{
		Original:       a.Original,
		Corrected:      a.Normalized,
		Entities:       a.Entities,
		Classification: a.Classification,
	})
	r := newResponse(h.tc, role)
	if err != nil {
		logging.DialogueError("no processor for %s: %v", a.Classification.QueryType, err)
		r.Metadata.QueryType = perception.QueryError
		r.Metadata.ActionType = perception.ActionGeneralQuery
		r.addError(processors.CodeParseError, "Sorry, I could not process that input. Please rephrase it.", processors.SeverityError, "")
		return r
	}

	r.Header = res.Header
	r.Metadata.QueryType = res.Metadata.QueryType
	r.Metadata.ActionType = res.Metadata.ActionType
	r.Entities = nonNil(res.Entities)
	r.Filters = res.Filters
	if res.DisplayFields != nil {
		r.DisplayFields = res.DisplayFields
	}
	r.Errors = append(r.Errors, res.Errors...)
	r.Data.Message = res.Message
	r.Success = res.Metadata.QueryType != perception.QueryError && !hasSeverity(res.Errors, processors.SeverityError)

	if res.Metadata.QueryType == perception.QueryError {
		h.offerMenu(r)
	}
	return r
}

func (h *turnHandler) offerMenu(r *Response) {
	opts := append([]session.Choice(nil), DefaultMenu...)
	h.tc.Session.Choices = &session.ChoiceSet{Prompt: menuPrompt, Options: opts, OfferedAt: h.tc.Policy.Now}
	r.Data.Choices = opts
	r.Data.Prompt = menuPrompt
}

func nonNil(es []perception.Entity) []perception.Entity {
	if es == nil {
		return []perception.Entity{}
	}
	return es
}
