package perception

import (
	"regexp"
)

// =============================================================================
// CLASSIFIER - priority cascade from normalized text + entities to a
// (queryType, actionType) pair
// =============================================================================
//
//  1. creation keywords without help keywords -> HELP / HELP_CONTRACT_CREATE_BOT
//  2. help keywords about creation           -> HELP / HELP_CONTRACT_CREATE_USER
//  3. identifier entity present              -> <domain> / <domain>_by_<identifier>
//  4. domain keyword only                    -> <domain> / <domain>_by_filter
//  5. nothing                                -> ERROR / GENERAL_QUERY
//
// Identifiers always beat verbs once step 3 is reached, but a creation keyword
// at step 1 beats any identifier ("create contract 123456789" is a task).

// DomainRule maps keyword patterns to a query type. Rules are checked in order;
// the first match names the domain of the utterance.
type DomainRule struct {
	QueryType QueryType
	Patterns  []*regexp.Regexp
}

// DomainRules is ordered from most to least specific.
var DomainRules = []DomainRule{
	{QueryFailedParts, []*regexp.Regexp{
		regexp.MustCompile(`\bfailed\s+parts?\b`),
		regexp.MustCompile(`\b(?:failed|failing|error|errors|rejected)\b.*\bparts?\b`),
		regexp.MustCompile(`\bparts?\b.*\b(?:failed|failing|errors?|rejected)\b`),
	}},
	{QueryOpportunities, []*regexp.Regexp{
		regexp.MustCompile(`\bopportunit(?:y|ies)\b`),
		regexp.MustCompile(`\bcrf\d*\b`),
	}},
	{QueryParts, []*regexp.Regexp{
		regexp.MustCompile(`\bparts?\b`),
		regexp.MustCompile(`\b(?:price|pricing|lead\s+time|moq|uom|item)\b`),
	}},
	{QueryContracts, []*regexp.Regexp{
		regexp.MustCompile(`\bcontracts?\b`),
		regexp.MustCompile(`\baward\b`),
	}},
	{QueryCustomers, []*regexp.Regexp{
		regexp.MustCompile(`\bcustomers?\b`),
		regexp.MustCompile(`\baccounts?\b`),
	}},
}

// IdentifierAction binds an identifying attribute to the action it selects.
// ListAction, when set, is used instead for an IN entity.
type IdentifierAction struct {
	Attribute  string
	Action     ActionType
	ListAction ActionType
}

// DomainPolicy is the per-domain identifier precedence plus the filter fallback.
type DomainPolicy struct {
	Identifiers []IdentifierAction
	Filter      ActionType
}

// DomainPolicies fixes, per query type, which identifier wins when several are
// present. The first attribute found in the entity list selects the action.
var DomainPolicies = map[QueryType]DomainPolicy{
	QueryContracts: {
		Identifiers: []IdentifierAction{
			{AttrContractNumber, ActionContractsByNumber, ActionContractsByNumbers},
			{AttrCustomerNumber, ActionContractsByCustomerNum, ""},
			{AttrCustomerName, ActionContractsByCustomerName, ""},
			{AttrCreatedBy, ActionContractsByUser, ""},
		},
		Filter: ActionContractsByFilter,
	},
	QueryParts: {
		Identifiers: []IdentifierAction{
			{AttrPartNumber, ActionPartsByPartNumber, ""},
			{AttrContractNumber, ActionPartsByContractNumber, ""},
		},
		Filter: ActionPartsByFilter,
	},
	QueryFailedParts: {
		Identifiers: []IdentifierAction{
			{AttrContractNumber, ActionFailedPartsByContract, ""},
			{AttrPartNumber, ActionFailedPartsByPart, ""},
		},
		Filter: ActionFailedPartsByFilter,
	},
	QueryCustomers: {
		Identifiers: []IdentifierAction{
			{AttrCustomerNumber, ActionCustomersByNumber, ""},
			{AttrCustomerName, ActionCustomersByName, ""},
		},
		Filter: ActionCustomersByFilter,
	},
	QueryOpportunities: {
		Identifiers: []IdentifierAction{
			{AttrOpportunityNumber, ActionOpportunitiesByNumber, ""},
			{AttrCustomerNumber, ActionOpportunitiesByCustomer, ""},
		},
		Filter: ActionOpportunitiesByFilter,
	},
}

// identifierDomains picks a domain from the strongest identifier when the
// text names no domain ("1000578963", "AE12345", "created by smith").
var identifierDomains = []struct {
	Attribute string
	QueryType QueryType
}{
	{AttrContractNumber, QueryContracts},
	{AttrOpportunityNumber, QueryOpportunities},
	{AttrPartNumber, QueryParts},
	{AttrCreatedBy, QueryContracts},
	{AttrCustomerNumber, QueryCustomers},
	{AttrCustomerName, QueryCustomers},
}

// ActionFor resolves the action for a domain from its identifier precedence.
// The second result is false when no identifier of that domain is present.
func ActionFor(qt QueryType, entities []Entity) (ActionType, bool) {
	policy, ok := DomainPolicies[qt]
	if !ok {
		return "", false
	}
	for _, id := range policy.Identifiers {
		e, found := FindEntity(entities, id.Attribute)
		if !found {
			continue
		}
		if e.Operation == OpIn && id.ListAction != "" {
			return id.ListAction, true
		}
		return id.Action, true
	}
	return policy.Filter, false
}

// Classifier maps normalized text and entities to a Classification.
type Classifier struct {
	domains []DomainRule
}

// NewClassifier returns a classifier over DomainRules.
func NewClassifier() *Classifier {
	return &Classifier{domains: DomainRules}
}

// DetectDomain returns the first domain whose keywords appear in the text.
func (c *Classifier) DetectDomain(normalized string) (QueryType, bool) {
	for _, rule := range c.domains {
		for _, p := range rule.Patterns {
			if p.MatchString(normalized) {
				return rule.QueryType, true
			}
		}
	}
	return "", false
}

// Classify runs the cascade. Pure; safe for concurrent use.
func (c *Classifier) Classify(normalized string, entities []Entity) Classification {
	creation := IsCreationRequest(normalized)
	help := IsHelpRequest(normalized)

	// 1-2. Task creation: execute vs. explain
	if creation && !help {
		return Classification{QueryHelp, ActionHelpCreateBot}
	}
	if creation && help {
		return Classification{QueryHelp, ActionHelpCreateUser}
	}

	domain, named := c.DetectDomain(normalized)

	// 3-4. A named domain resolves through its own identifier precedence,
	// falling back to <domain>_by_filter.
	if named {
		action, _ := ActionFor(domain, entities)
		return Classification{domain, action}
	}

	// 3. No domain keyword: the strongest identifier names the domain.
	for _, id := range identifierDomains {
		if HasEntity(entities, id.Attribute) {
			action, _ := ActionFor(id.QueryType, entities)
			return Classification{id.QueryType, action}
		}
	}

	// 5. Nothing recognizable
	return Classification{QueryError, ActionGeneralQuery}
}

var defaultClassifier = NewClassifier()

// Classify normalizes text, extracts entities and classifies with the defaults.
func Classify(text string) Classification {
	normalized := Normalize(text)
	return defaultClassifier.Classify(normalized, defaultExtractor.Extract(normalized))
}
