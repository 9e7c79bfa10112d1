// Package processors turns a classified utterance into the domain-specific
// part of a query response: which backend filters apply, which columns to
// display, and which warnings to surface.
package processors

import (
	"contractbot/internal/perception"
)

// Severity grades a ValidationError.
type Severity string

const (
	SeverityInfo    Severity = "INFO"
	SeverityWarning Severity = "WARNING"
	SeverityError   Severity = "ERROR"
)

// Error codes carried in responses.
const (
	CodeValidation        = "VALIDATION"
	CodeMissingIdentifier = "MISSING_IDENTIFIER"
	CodeParseError        = "PARSE_ERROR"
	CodeUnknownTaskState  = "UNKNOWN_TASK_STATE"
	CodeTaskInProgress    = "TASK_IN_PROGRESS"
	CodeTaskAbandoned     = "TASK_ABANDONED"
	CodeSelectionExpired  = "SELECTION_EXPIRED"
)

// ValidationError is a response-level error value.
type ValidationError struct {
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
	Field    string   `json:"field,omitempty"`
}

func (e ValidationError) Error() string {
	return e.Code + ": " + e.Message
}

// Header is the sparse identifier view of a result's entities.
type Header struct {
	ContractNumber    string `json:"contractNumber,omitempty"`
	CustomerNumber    string `json:"customerNumber,omitempty"`
	CustomerName      string `json:"customerName,omitempty"`
	PartNumber        string `json:"partNumber,omitempty"`
	CreatedBy         string `json:"createdBy,omitempty"`
	OpportunityNumber string `json:"opportunityNumber,omitempty"`
}

// HeaderFrom projects the first entity of each identifying attribute.
func HeaderFrom(entities []perception.Entity) Header {
	var h Header
	for _, e := range entities {
		switch e.Attribute {
		case perception.AttrContractNumber:
			setOnce(&h.ContractNumber, e.Value)
		case perception.AttrCustomerNumber:
			setOnce(&h.CustomerNumber, e.Value)
		case perception.AttrCustomerName:
			setOnce(&h.CustomerName, e.Value)
		case perception.AttrPartNumber:
			setOnce(&h.PartNumber, e.Value)
		case perception.AttrCreatedBy:
			setOnce(&h.CreatedBy, e.Value)
		case perception.AttrOpportunityNumber:
			setOnce(&h.OpportunityNumber, e.Value)
		}
	}
	return h
}

func setOnce(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

// IsEmpty reports whether no identifier is set.
func (h Header) IsEmpty() bool {
	return h == Header{}
}

// Filter is one backend predicate: an entity mapped onto a table column.
type Filter struct {
	Column    string               `json:"column"`
	Operation perception.Operation `json:"operation"`
	Value     string               `json:"value"`
}

// Input is what every processor receives.
type Input struct {
	Original       string
	Corrected      string
	Entities       []perception.Entity
	Classification perception.Classification
}

// Result is a processor's contribution to the query response.
type Result struct {
	Header        Header                    `json:"header"`
	Metadata      perception.Classification `json:"metadata"`
	Entities      []perception.Entity       `json:"entities"`
	Filters       []Filter                  `json:"filters,omitempty"`
	DisplayFields []string                  `json:"displayFields"`
	Errors        []ValidationError         `json:"errors,omitempty"`
	Message       string                    `json:"message,omitempty"`
}

// Processor handles one query type.
type Processor interface {
	QueryType() perception.QueryType
	Process(in Input) Result
}
