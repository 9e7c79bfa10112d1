package dialogue

import (
	"contractbot/internal/perception"
	"contractbot/internal/processors"
	"contractbot/internal/session"
)

// Response is the structured answer to one turn.
type Response struct {
	Success        bool                         `json:"success"`
	SessionID      string                       `json:"sessionId"`
	OriginalInput  string                       `json:"originalInput"`
	CorrectedInput string                       `json:"correctedInput"`
	Header         processors.Header            `json:"header"`
	Metadata       Metadata                     `json:"metadata"`
	Entities       []perception.Entity          `json:"entities"`
	Filters        []processors.Filter          `json:"filters,omitempty"`
	DisplayFields  []string                     `json:"displayFields"`
	Errors         []processors.ValidationError `json:"errors"`
	Data           Data                         `json:"data"`
}

// Metadata describes how the turn was interpreted.
type Metadata struct {
	QueryType        perception.QueryType  `json:"queryType"`
	ActionType       perception.ActionType `json:"actionType"`
	Role             Role                  `json:"role"`
	ProcessingTimeMs int64                 `json:"processingTimeMs"`
}

// Data carries the conversational part of a response.
type Data struct {
	Message string `json:"message,omitempty"`
	Notice  string `json:"notice,omitempty"`

	Phase        session.Phase     `json:"phase"`
	Step         int               `json:"step,omitempty"`
	CurrentField string            `json:"currentField,omitempty"`
	Prompt       string            `json:"prompt,omitempty"`
	Collected    map[string]string `json:"collected,omitempty"`
	Remaining    []string          `json:"remaining,omitempty"`

	Choices []session.Choice `json:"choices,omitempty"`

	// Result holds the confirmed values of a completed task.
	Result map[string]string `json:"result,omitempty"`
}

// HasError reports whether any error has the given code.
func (r *Response) HasError(code string) bool {
	for _, e := range r.Errors {
		if e.Code == code {
			return true
		}
	}
	return false
}

func (r *Response) addError(code, msg string, sev processors.Severity, field string) {
	r.Errors = append(r.Errors, processors.ValidationError{Code: code, Message: msg, Severity: sev, Field: field})
}
