package processors

import (
	"testing"

	"contractbot/internal/perception"
	"contractbot/internal/task"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func analyze(text string) Input {
	a := perception.Analyze(text)
	return Input{
		Original:       a.Original,
		Corrected:      a.Normalized,
		Entities:       a.Entities,
		Classification: a.Classification,
	}
}

func defaultTasks() *task.Registry { return task.DefaultRegistry() }

func TestContractProcessor(t *testing.T) {
	p := NewContractProcessor()

	r := p.Process(analyze("show contract 123456"))
	assert.Equal(t, perception.ActionContractsByNumber, r.Metadata.ActionType)
	assert.Equal(t, "123456", r.Header.ContractNumber)
	assert.Equal(t, []Filter{{Column: "AWARD_NUMBER", Operation: perception.OpEquals, Value: "123456"}}, r.Filters)
	assert.Equal(t, []string{"CONTRACT_NAME", "CUSTOMER_NAME", "EFFECTIVE_DATE", "EXPIRATION_DATE", "CUSTOMER_NUMBER", "AWARD_NUMBER"}, r.DisplayFields)
	assert.Empty(t, r.Errors)

	r = p.Process(analyze("contracts for customer 1000578963"))
	assert.Equal(t, perception.ActionContractsByCustomerNum, r.Metadata.ActionType)
	assert.Equal(t, "1000578963", r.Header.CustomerNumber)
}

func TestContractProcessor_MissingIdentifierIsWarning(t *testing.T) {
	r := NewContractProcessor().Process(analyze("show active contracts"))
	assert.Equal(t, perception.ActionContractsByFilter, r.Metadata.ActionType)
	require.Len(t, r.Errors, 1)
	assert.Equal(t, CodeMissingIdentifier, r.Errors[0].Code)
	assert.Equal(t, SeverityWarning, r.Errors[0].Severity)
	assert.Equal(t, []Filter{{Column: perception.AttrStatus, Operation: perception.OpEquals, Value: "ACTIVE"}}, r.Filters)
}

func TestDisplayFields(t *testing.T) {
	p := NewContractProcessor()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"explicit fields short-circuit", "effective date and status for contract 123456", []string{"EFFECTIVE_DATE", "STATUS"}},
		{"metadata modifier", "contract 123456 metadata", []string{
			"CONTRACT_NAME", "CUSTOMER_NAME", "EFFECTIVE_DATE", "EXPIRATION_DATE", "CUSTOMER_NUMBER", "AWARD_NUMBER",
			"CREATED_BY", "CREATED_DATE", "UPDATED_BY", "UPDATED_DATE",
		}},
		{"detail modifier", "contract 123456 detail", []string{
			"CONTRACT_NAME", "CUSTOMER_NAME", "EFFECTIVE_DATE", "EXPIRATION_DATE", "CUSTOMER_NUMBER", "AWARD_NUMBER",
			"STATUS", "CONTRACT_TYPE", "PAYMENT_TERMS", "CURRENCY", "PRICE_LIST",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, p.DisplayFields(perception.Normalize(tt.in))); diff != "" {
				t.Errorf("DisplayFields mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPartsProcessor(t *testing.T) {
	p := NewPartsProcessor()

	r := p.Process(analyze("parts for contract 123456"))
	assert.Equal(t, perception.ActionPartsByContractNumber, r.Metadata.ActionType)
	assert.Equal(t, []Filter{{Column: "LOADED_CP_NUMBER", Operation: perception.OpEquals, Value: "123456"}}, r.Filters)
	assert.Equal(t, []string{"INVOICE_PART_NUMBER", "PRICE", "LEAD_TIME", "MOQ", "UOM"}, r.DisplayFields)

	r = p.Process(analyze("price and lead time of part ae12345"))
	assert.Equal(t, perception.ActionPartsByPartNumber, r.Metadata.ActionType)
	assert.Equal(t, []string{"PRICE", "LEAD_TIME"}, r.DisplayFields)
	assert.Equal(t, "AE12345", r.Header.PartNumber)
}

func TestFailedPartsProcessor(t *testing.T) {
	r := NewFailedPartsProcessor().Process(analyze("failed parts for contract 123456"))
	assert.Equal(t, perception.ActionFailedPartsByContract, r.Metadata.ActionType)
	assert.Equal(t, []Filter{{Column: "CONTRACT_NO", Operation: perception.OpEquals, Value: "123456"}}, r.Filters)
	assert.Equal(t, []string{"PART_NUMBER", "REASON", "ERROR_DATE", "ERROR_TYPE"}, r.DisplayFields)
	assert.Empty(t, r.Errors)
}

func TestCustomerAndOpportunityProcessors(t *testing.T) {
	r := NewCustomerProcessor().Process(analyze("1000578963"))
	assert.Equal(t, perception.ActionCustomersByNumber, r.Metadata.ActionType)
	assert.Equal(t, []string{"CUSTOMER_NUMBER", "CUSTOMER_NAME"}, r.DisplayFields)

	r = NewOpportunityProcessor().Process(analyze("opportunities for crf123"))
	assert.Equal(t, perception.ActionOpportunitiesByNumber, r.Metadata.ActionType)
	assert.Equal(t, "CRF123", r.Header.OpportunityNumber)
	assert.Equal(t, "CRF_NUMBER", r.Filters[0].Column)
}

func TestHelpProcessor(t *testing.T) {
	p := NewHelpProcessor(defaultTasks)

	r := p.Process(analyze("how to create a contract"))
	assert.Equal(t, perception.ActionHelpCreateUser, r.Metadata.ActionType)
	cfg, _ := defaultTasks().Get(task.KindContractCreation)
	assert.Equal(t, cfg.Keys(), r.DisplayFields)
	assert.Contains(t, r.Message, "1. Account Number (6+ digits)")
	assert.Empty(t, r.Errors)

	r = p.Process(analyze("create contract for me"))
	assert.Equal(t, perception.ActionHelpCreateBot, r.Metadata.ActionType)
	assert.Empty(t, r.Message)

	// Reclassifies when handed a non-help action.
	in := analyze("what are the steps")
	in.Classification = perception.Classification{QueryType: perception.QueryHelp}
	assert.Equal(t, perception.ActionHelpCreateUser, p.Process(in).Metadata.ActionType)
}

func TestTable_Process(t *testing.T) {
	table := DefaultTable(defaultTasks)
	for _, qt := range perception.AllQueryTypes {
		assert.Contains(t, table, qt)
	}

	r, err := table.Process(analyze("hello there"))
	require.NoError(t, err)
	assert.Equal(t, perception.QueryError, r.Metadata.QueryType)
	assert.NotEmpty(t, r.Message)

	_, err = table.Process(Input{Classification: perception.Classification{QueryType: "BOGUS"}})
	assert.Error(t, err)
}

func TestHeaderFrom(t *testing.T) {
	h := HeaderFrom([]perception.Entity{
		{Attribute: perception.AttrCustomerNumber, Operation: perception.OpEquals, Value: "1"},
		{Attribute: perception.AttrCustomerNumber, Operation: perception.OpEquals, Value: "2"},
		{Attribute: perception.AttrCreatedBy, Operation: perception.OpEquals, Value: "john"},
		{Attribute: perception.AttrStatus, Operation: perception.OpEquals, Value: "ACTIVE"},
	})
	assert.Equal(t, Header{CustomerNumber: "1", CreatedBy: "john"}, h)
	assert.False(t, h.IsEmpty())
	assert.True(t, Header{}.IsEmpty())
}
