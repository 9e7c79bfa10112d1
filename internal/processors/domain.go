package processors

import (
	"regexp"
	"strings"

	"contractbot/internal/perception"
)

// fieldTrigger selects a display column when any phrase appears in the text.
type fieldTrigger struct {
	Column  string
	Phrases []string
}

// DomainProcessor is the table-driven processor shared by the query domains.
type DomainProcessor struct {
	queryType perception.QueryType

	// columns maps entity attributes to backend columns. Attributes not
	// listed map to themselves.
	columns map[string]string

	// identifiers are the attributes that satisfy the identifier check.
	identifiers []string
	missingMsg  string

	defaults  []string
	triggers  []compiledTrigger
	modifiers map[string][]string
}

type compiledTrigger struct {
	column string
	re     *regexp.Regexp
}

func compileTriggers(ts []fieldTrigger) []compiledTrigger {
	out := make([]compiledTrigger, 0, len(ts))
	for _, t := range ts {
		quoted := make([]string, len(t.Phrases))
		for i, p := range t.Phrases {
			quoted[i] = regexp.QuoteMeta(p)
		}
		out = append(out, compiledTrigger{
			column: t.Column,
			re:     regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`),
		})
	}
	return out
}

var modifierWord = regexp.MustCompile(`\b(metadata|details?|summary)\b`)

// QueryType implements Processor.
func (p *DomainProcessor) QueryType() perception.QueryType { return p.queryType }

// Process implements Processor.
func (p *DomainProcessor) Process(in Input) Result {
	action, _ := perception.ActionFor(p.queryType, in.Entities)
	r := Result{
		Header:        HeaderFrom(in.Entities),
		Metadata:      perception.Classification{QueryType: p.queryType, ActionType: action},
		Entities:      in.Entities,
		Filters:       p.filters(in.Entities),
		DisplayFields: p.DisplayFields(in.Corrected),
	}
	if !p.hasIdentifier(in.Entities) {
		r.Errors = append(r.Errors, ValidationError{
			Code:     CodeMissingIdentifier,
			Message:  p.missingMsg,
			Severity: SeverityWarning,
		})
	}
	return r
}

func (p *DomainProcessor) hasIdentifier(entities []perception.Entity) bool {
	for _, attr := range p.identifiers {
		if perception.HasEntity(entities, attr) {
			return true
		}
	}
	return false
}

func (p *DomainProcessor) filters(entities []perception.Entity) []Filter {
	out := make([]Filter, 0, len(entities))
	for _, e := range entities {
		col, ok := p.columns[e.Attribute]
		if !ok {
			col = e.Attribute
		}
		out = append(out, Filter{Column: col, Operation: e.Operation, Value: e.Value})
	}
	return out
}

// DisplayFields picks the columns to show. Explicit field phrases win and
// short-circuit; otherwise defaults plus any modifier groups.
func (p *DomainProcessor) DisplayFields(normalized string) []string {
	var explicit []string
	for _, t := range p.triggers {
		if t.re.MatchString(normalized) {
			explicit = appendUnique(explicit, t.column)
		}
	}
	if len(explicit) > 0 {
		return explicit
	}

	fields := append([]string(nil), p.defaults...)
	for _, m := range modifierWord.FindAllString(normalized, -1) {
		m = strings.TrimSuffix(m, "s")
		if m == "detail" {
			m = "details"
		}
		for _, col := range p.modifiers[m] {
			fields = appendUnique(fields, col)
		}
	}
	return fields
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

var metadataGroup = []string{"CREATED_BY", "CREATED_DATE", "UPDATED_BY", "UPDATED_DATE"}

// NewContractProcessor handles CONTRACTS.
func NewContractProcessor() *DomainProcessor {
	return &DomainProcessor{
		queryType: perception.QueryContracts,
		columns:   map[string]string{perception.AttrContractNumber: "AWARD_NUMBER"},
		identifiers: []string{
			perception.AttrContractNumber, perception.AttrCustomerNumber,
			perception.AttrCustomerName, perception.AttrCreatedBy,
		},
		missingMsg: "Please provide a contract number, customer number, customer name, or creator name",
		defaults: []string{
			"CONTRACT_NAME", "CUSTOMER_NAME", "EFFECTIVE_DATE", "EXPIRATION_DATE",
			"CUSTOMER_NUMBER", "AWARD_NUMBER",
		},
		triggers: compileTriggers([]fieldTrigger{
			{"CONTRACT_NAME", []string{"contract name"}},
			{"EFFECTIVE_DATE", []string{"effective date", "start date"}},
			{"EXPIRATION_DATE", []string{"expiration date", "expiry date", "end date"}},
			{"STATUS", []string{"status"}},
			{"PAYMENT_TERMS", []string{"payment terms"}},
			{"CURRENCY", []string{"currency"}},
			{"PRICE_LIST", []string{"price list", "pricelist"}},
		}),
		modifiers: map[string][]string{
			"metadata": metadataGroup,
			"details":  {"STATUS", "CONTRACT_TYPE", "PAYMENT_TERMS", "CURRENCY", "PRICE_LIST"},
			"summary":  {"STATUS", "TOTAL_VALUE"},
		},
	}
}

// NewPartsProcessor handles PARTS.
func NewPartsProcessor() *DomainProcessor {
	return &DomainProcessor{
		queryType:   perception.QueryParts,
		columns:     map[string]string{perception.AttrContractNumber: "LOADED_CP_NUMBER", perception.AttrPartNumber: "PART_NUMBER"},
		identifiers: []string{perception.AttrPartNumber, perception.AttrContractNumber},
		missingMsg:  "Please provide a contract number or part number",
		defaults:    []string{"INVOICE_PART_NUMBER", "PRICE", "LEAD_TIME", "MOQ", "UOM"},
		triggers: compileTriggers([]fieldTrigger{
			{"PRICE", []string{"price", "cost", "pricing"}},
			{"FUTURE_PRICE", []string{"future price"}},
			{"QUOTE_COST", []string{"quote cost"}},
			{"LEAD_TIME", []string{"lead time", "leadtime"}},
			{"MOQ", []string{"moq", "minimum order quantity"}},
			{"UOM", []string{"uom", "unit of measure"}},
			{"CLASSIFICATION", []string{"classification"}},
			{"STATUS", []string{"status"}},
		}),
		modifiers: map[string][]string{
			"metadata": metadataGroup,
			"details":  {"CLASSIFICATION", "STATUS", "EFFECTIVE_DATE", "EXPIRATION_DATE"},
			"summary":  {"STATUS"},
		},
	}
}

// NewFailedPartsProcessor handles FAILED_PARTS.
func NewFailedPartsProcessor() *DomainProcessor {
	return &DomainProcessor{
		queryType:   perception.QueryFailedParts,
		columns:     map[string]string{perception.AttrContractNumber: "CONTRACT_NO", perception.AttrPartNumber: "PART_NUMBER"},
		identifiers: []string{perception.AttrContractNumber, perception.AttrPartNumber},
		missingMsg:  "Please provide a contract number or part number",
		defaults:    []string{"PART_NUMBER", "REASON", "ERROR_DATE", "ERROR_TYPE"},
		triggers: compileTriggers([]fieldTrigger{
			{"ERROR_COLUMN", []string{"error column"}},
			{"REASON", []string{"reason", "failure", "cause"}},
			{"STATUS", []string{"status"}},
		}),
		modifiers: map[string][]string{
			"metadata": metadataGroup,
			"details":  {"ERROR_COLUMN", "CONTRACT_NO", "STATUS"},
			"summary":  {"ERROR_TYPE"},
		},
	}
}

// NewCustomerProcessor handles CUSTOMERS.
func NewCustomerProcessor() *DomainProcessor {
	return &DomainProcessor{
		queryType:   perception.QueryCustomers,
		columns:     map[string]string{},
		identifiers: []string{perception.AttrCustomerNumber, perception.AttrCustomerName},
		missingMsg:  "Please provide a customer number or customer name",
		defaults:    []string{"CUSTOMER_NUMBER", "CUSTOMER_NAME"},
		triggers: compileTriggers([]fieldTrigger{
			{"ADDRESS", []string{"address"}},
			{"SALES_REP", []string{"sales rep", "salesperson"}},
			{"STATUS", []string{"status"}},
		}),
		modifiers: map[string][]string{
			"metadata": metadataGroup,
			"details":  {"ADDRESS", "SALES_REP", "STATUS"},
			"summary":  {"STATUS"},
		},
	}
}

// NewOpportunityProcessor handles OPPORTUNITIES.
func NewOpportunityProcessor() *DomainProcessor {
	return &DomainProcessor{
		queryType:   perception.QueryOpportunities,
		columns:     map[string]string{perception.AttrOpportunityNumber: "CRF_NUMBER"},
		identifiers: []string{perception.AttrOpportunityNumber, perception.AttrCustomerNumber},
		missingMsg:  "Please provide an opportunity number (CRF...) or customer number",
		defaults:    []string{"OPPORTUNITY_NUMBER", "OPPORTUNITY_NAME", "CUSTOMER_NUMBER", "STATUS"},
		triggers: compileTriggers([]fieldTrigger{
			{"OPPORTUNITY_NAME", []string{"opportunity name"}},
			{"STATUS", []string{"status"}},
			{"CLOSE_DATE", []string{"close date"}},
		}),
		modifiers: map[string][]string{
			"metadata": metadataGroup,
			"details":  {"CLOSE_DATE", "OWNER"},
			"summary":  {"STATUS"},
		},
	}
}
