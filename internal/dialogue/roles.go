package dialogue

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"contractbot/internal/perception"
	"contractbot/internal/session"
	"contractbot/internal/task"
)

// Role is what a turn means given the session it arrives in.
type Role string

const (
	RoleCancel            Role = "CANCEL"
	RoleNewTask           Role = "NEW_TASK"
	RoleInterruptionReply Role = "INTERRUPTION_REPLY"
	RoleAccountInput      Role = "ACCOUNT_INPUT"
	RoleCompleteInput     Role = "COMPLETE_INPUT"
	RoleInterruption      Role = "INTERRUPTION"
	RoleFieldInput        Role = "FIELD_INPUT"
	RoleConfirmation      Role = "CONFIRMATION"
	RoleSelection         Role = "SELECTION"
	RoleNewQuery          Role = "NEW_QUERY"

	// RoleReset answers a turn whose session referenced a task kind that is
	// no longer configured. It is never produced by the rule table.
	RoleReset Role = "RESET"
)

// Policy is the session-independent input to role detection.
type Policy struct {
	Tasks        *task.Registry
	SelectionTTL time.Duration
	Now          time.Time
}

func (p Policy) taskFor(sess *session.ConversationSession) *task.Config {
	if sess == nil || sess.ActiveTask == nil || p.Tasks == nil {
		return nil
	}
	cfg, ok := p.Tasks.Get(sess.ActiveTask.Kind)
	if !ok {
		return nil
	}
	return cfg
}

// TurnContext is what role rules and handlers see. Session is the working
// copy; handlers mutate it and the manager stores it after a clean turn.
type TurnContext struct {
	// Text is the trimmed raw input. Field values come from here, not from
	// the normalized form.
	Text     string
	Analysis perception.Analysis
	Session  *session.ConversationSession
	// Task is the active task's config, nil without one.
	Task   *task.Config
	Policy Policy
}

// CurrentField returns the field being collected, or nil.
func (tc *TurnContext) CurrentField() *task.FieldSpec {
	return currentField(tc.Session, tc.Task)
}

func currentField(sess *session.ConversationSession, cfg *task.Config) *task.FieldSpec {
	if cfg == nil || sess.Phase() != session.PhaseCollecting {
		return nil
	}
	required := cfg.RequiredFields()
	i := cfg.FirstMissing(sess.ActiveTask.Collected)
	if i >= len(required) {
		return nil
	}
	return required[i]
}

// RoleRule assigns Role to a turn when Match returns true. Rules are tried in
// order; the first match wins.
type RoleRule struct {
	Role  Role
	Match func(tc *TurnContext) bool
}

// DefaultRoleRules returns the standard precedence:
//
//  1. cancel word while a task is active
//  2. task-creation request with no task, or while an interruption is pending
//  3. yes/no answer to a pending interruption
//  4. 6+ digit run while collecting a numeric field
//  5. delimited or labeled multi-field input while collecting
//  6. an independent query while a task is active
//  7. any other input while collecting
//  8. any input while confirming
//  9. a number or label from an unexpired choice list
//  10. everything else is a new query
func DefaultRoleRules() []RoleRule {
	return []RoleRule{
		{RoleCancel, func(tc *TurnContext) bool {
			return tc.Session.HasActiveTask() && perception.IsCancel(tc.Text)
		}},
		{RoleNewTask, func(tc *TurnContext) bool {
			if !tc.Analysis.Classification.IsTaskCreation() {
				return false
			}
			return !tc.Session.HasActiveTask() || tc.Session.ActiveTask.Interrupted()
		}},
		{RoleInterruptionReply, func(tc *TurnContext) bool {
			return tc.Session.HasActiveTask() && tc.Session.ActiveTask.Interrupted() && perception.IsYesNo(tc.Text)
		}},
		{RoleAccountInput, func(tc *TurnContext) bool {
			return IsAccountNumberInput(tc.Session, tc.Policy, tc.Text)
		}},
		{RoleCompleteInput, func(tc *TurnContext) bool {
			if tc.Session.Phase() != session.PhaseCollecting || tc.Task == nil {
				return false
			}
			_, ok := parseCompleteInput(tc.Text, tc.Task, tc.Session.ActiveTask.Collected)
			return ok
		}},
		{RoleInterruption, func(tc *TurnContext) bool {
			return tc.Session.HasActiveTask() && perception.LooksLikeQuery(tc.Analysis.Normalized)
		}},
		{RoleFieldInput, func(tc *TurnContext) bool {
			return tc.Session.Phase() == session.PhaseCollecting
		}},
		{RoleConfirmation, func(tc *TurnContext) bool {
			return tc.Session.Phase() == session.PhaseConfirming
		}},
		{RoleSelection, func(tc *TurnContext) bool {
			if collectingNumeric(tc.Session, tc.Policy) {
				return false
			}
			_, ok := matchChoice(tc.Session.Choices, tc.Text)
			return ok
		}},
		{RoleNewQuery, func(*TurnContext) bool { return true }},
	}
}

var accountNumber = regexp.MustCompile(`^\d{6,}$`)

// IsAccountNumberInput reports whether text is a bare 6+ digit run answering
// a numeric field the session is collecting.
func IsAccountNumberInput(sess *session.ConversationSession, p Policy, text string) bool {
	if !collectingNumeric(sess, p) {
		return false
	}
	return accountNumber.MatchString(strings.TrimSpace(text))
}

// IsUserSelection reports whether text picks an option from the session's
// unexpired choice list. It is never true while a numeric field is being
// collected.
func IsUserSelection(sess *session.ConversationSession, p Policy, text string) bool {
	if sess == nil || collectingNumeric(sess, p) {
		return false
	}
	if sess.Choices.Expired(p.Now, p.SelectionTTL) {
		return false
	}
	_, ok := matchChoice(sess.Choices, text)
	return ok
}

func collectingNumeric(sess *session.ConversationSession, p Policy) bool {
	if sess == nil {
		return false
	}
	f := currentField(sess, p.taskFor(sess))
	return f != nil && f.IsNumeric()
}

var smallInt = regexp.MustCompile(`^#?(\d{1,2})\.?$`)

// matchChoice resolves text to an option by number or by label. Expiry is
// not checked here.
func matchChoice(set *session.ChoiceSet, text string) (session.Choice, bool) {
	if set == nil || len(set.Options) == 0 {
		return session.Choice{}, false
	}
	t := strings.TrimSpace(text)
	if m := smallInt.FindStringSubmatch(t); m != nil {
		n, _ := strconv.Atoi(m[1])
		for _, c := range set.Options {
			if c.Number == n {
				return c, true
			}
		}
		return session.Choice{}, false
	}
	reply := perception.NormalizeReply(t)
	if reply == "" {
		return session.Choice{}, false
	}
	for _, c := range set.Options {
		if reply == perception.NormalizeReply(c.Label) || reply == perception.NormalizeReply(c.Value) {
			return c, true
		}
	}
	return session.Choice{}, false
}

// completeInput is a multi-field answer: either label/value pairs or a
// positional list.
type completeInput struct {
	labeled    map[string]string
	order      []string
	unknown    []string
	positional []string
}

var labeledPart = regexp.MustCompile(`^\s*([A-Za-z][A-Za-z _]*?)\s*[:=]\s*(.*\S)\s*$`)

// parseCompleteInput recognizes a multi-field answer. A list is labeled only
// when every part carries a label and at least one names a field. A positional
// list must cover every remaining required field (at least two) and at most
// every uncollected optional field after them. When it starts at a numeric
// field the first value must be digits; when it starts at a text field every
// value must fit its position, so commas inside a single answer stay in it.
func parseCompleteInput(text string, cfg *task.Config, collected map[string]string) (completeInput, bool) {
	if in, ok := parseLabeled(text, cfg); ok {
		return in, true
	}
	if !strings.Contains(text, ",") {
		return completeInput{}, false
	}
	parts := strings.Split(text, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	remaining := cfg.Remaining(collected)
	targets := append(remaining, uncollectedOptional(cfg, collected)...)
	if len(remaining) < 2 || len(parts) < len(remaining) || len(parts) > len(targets) {
		return completeInput{}, false
	}

	if remaining[0].IsNumeric() {
		if !digitRun.MatchString(parts[0]) {
			return completeInput{}, false
		}
	} else {
		for i, raw := range parts {
			v, err := positionalValue(cfg, raw, targets[i])
			if err != nil {
				return completeInput{}, false
			}
			if _, err := targets[i].Accept(v); err != nil {
				return completeInput{}, false
			}
		}
	}
	return completeInput{positional: parts}, true
}

var digitRun = regexp.MustCompile(`^\d+$`)

func parseLabeled(text string, cfg *task.Config) (completeInput, bool) {
	var in completeInput
	for _, part := range splitLabeled(text) {
		if strings.TrimSpace(part) == "" {
			continue
		}
		m := labeledPart.FindStringSubmatch(part)
		if m == nil {
			return completeInput{}, false
		}
		f, ok := cfg.FieldByLabel(m[1])
		if !ok {
			in.unknown = append(in.unknown, m[1])
			continue
		}
		if in.labeled == nil {
			in.labeled = make(map[string]string)
		}
		if _, dup := in.labeled[f.Key]; !dup {
			in.order = append(in.order, f.Key)
		}
		in.labeled[f.Key] = m[2]
	}
	return in, len(in.labeled) > 0
}

// positionalValue strips a "label:" prefix that names target. A prefix naming
// another field is an error; an unknown label is part of the value.
func positionalValue(cfg *task.Config, part string, target *task.FieldSpec) (string, error) {
	m := labeledPart.FindStringSubmatch(part)
	if m == nil {
		return part, nil
	}
	f, ok := cfg.FieldByLabel(m[1])
	if !ok {
		return part, nil
	}
	if f.Key != target.Key {
		return "", &task.FieldError{Field: target.Key, Message: fmt.Sprintf("%s was given where %s was expected", f.Key, target.Key)}
	}
	return m[2], nil
}

func splitLabeled(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ';' || r == '\n'
	})
}

func uncollectedOptional(cfg *task.Config, collected map[string]string) []*task.FieldSpec {
	var out []*task.FieldSpec
	for _, f := range cfg.OptionalFields() {
		if _, ok := collected[f.Key]; !ok {
			out = append(out, f)
		}
	}
	return out
}
