package processors

import (
	"fmt"

	"contractbot/internal/perception"
	"contractbot/internal/task"
)

// GeneralProcessor answers input that matched no domain.
type GeneralProcessor struct{}

// QueryType implements Processor.
func (GeneralProcessor) QueryType() perception.QueryType { return perception.QueryError }

// Process implements Processor.
func (GeneralProcessor) Process(in Input) Result {
	return Result{
		Metadata: perception.Classification{QueryType: perception.QueryError, ActionType: perception.ActionGeneralQuery},
		Entities: in.Entities,
		Message:  "I could not tell what you are looking for. Try a contract, part, customer or opportunity query.",
	}
}

// Table maps every query type to its processor.
type Table map[perception.QueryType]Processor

// DefaultTable returns processors for every query type. tasks feeds the help
// processor.
func DefaultTable(tasks func() *task.Registry) Table {
	t := Table{}
	for _, p := range []Processor{
		NewContractProcessor(),
		NewPartsProcessor(),
		NewFailedPartsProcessor(),
		NewCustomerProcessor(),
		NewOpportunityProcessor(),
		NewHelpProcessor(tasks),
		GeneralProcessor{},
	} {
		t[p.QueryType()] = p
	}
	return t
}

// Process dispatches on the input's query type.
func (t Table) Process(in Input) (Result, error) {
	p, ok := t[in.Classification.QueryType]
	if !ok {
		return Result{}, fmt.Errorf("no processor for query type %q", in.Classification.QueryType)
	}
	return p.Process(in), nil
}
