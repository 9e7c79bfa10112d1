package processors

import (
	"fmt"
	"strings"

	"contractbot/internal/perception"
	"contractbot/internal/task"
)

// HelpProcessor answers contract-creation requests. It tells "explain the
// steps" apart from "do it for me" with the classifier's creation/help
// keyword cascade and lists the task's fields for display.
type HelpProcessor struct {
	tasks func() *task.Registry
}

// NewHelpProcessor returns a help processor reading the current task registry
// through tasks on every call, so reloads are picked up.
func NewHelpProcessor(tasks func() *task.Registry) *HelpProcessor {
	return &HelpProcessor{tasks: tasks}
}

// QueryType implements Processor.
func (p *HelpProcessor) QueryType() perception.QueryType { return perception.QueryHelp }

// Process implements Processor.
func (p *HelpProcessor) Process(in Input) Result {
	action := in.Classification.ActionType
	if action != perception.ActionHelpCreateBot && action != perception.ActionHelpCreateUser {
		action = perception.ActionHelpCreateBot
		if perception.IsHelpRequest(in.Corrected) {
			action = perception.ActionHelpCreateUser
		}
	}

	r := Result{
		Header:   HeaderFrom(in.Entities),
		Metadata: perception.Classification{QueryType: perception.QueryHelp, ActionType: action},
		Entities: in.Entities,
	}

	cfg, ok := p.tasks().Get(task.KindContractCreation)
	if !ok {
		r.Errors = append(r.Errors, ValidationError{
			Code:     CodeUnknownTaskState,
			Message:  "contract creation is not configured",
			Severity: SeverityError,
		})
		return r
	}
	r.DisplayFields = cfg.Keys()
	if action == perception.ActionHelpCreateUser {
		r.Message = Instructions(cfg)
	}
	return r
}

// Instructions renders the steps for filling in a task by hand.
func Instructions(cfg *task.Config) string {
	var b strings.Builder
	fmt.Fprintf(&b, "To complete %s, provide the following:\n", strings.ToLower(cfg.Name))
	for i, f := range cfg.RequiredFields() {
		fmt.Fprintf(&b, "%d. %s\n", i+1, f.DisplayName)
	}
	if opt := cfg.OptionalFields(); len(opt) > 0 {
		names := make([]string, len(opt))
		for i, f := range opt {
			names[i] = f.DisplayName
		}
		fmt.Fprintf(&b, "Optional: %s\n", strings.Join(names, ", "))
	}
	b.WriteString("You can send the values one at a time, or all at once separated by commas.")
	return b.String()
}
