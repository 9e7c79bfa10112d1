package perception

// QueryType is the closed set of domains a query can be routed to.
type QueryType string

const (
	QueryContracts     QueryType = "CONTRACTS"
	QueryParts         QueryType = "PARTS"
	QueryCustomers     QueryType = "CUSTOMERS"
	QueryOpportunities QueryType = "OPPORTUNITIES"
	QueryFailedParts   QueryType = "FAILED_PARTS"
	QueryHelp          QueryType = "HELP"
	QueryError         QueryType = "ERROR"
)

// AllQueryTypes lists every query type in routing order.
var AllQueryTypes = []QueryType{
	QueryContracts, QueryParts, QueryCustomers, QueryOpportunities,
	QueryFailedParts, QueryHelp, QueryError,
}

// ActionType is a domain-specific, verb-qualified action tag.
type ActionType string

const (
	ActionContractsByNumber       ActionType = "contracts_by_contractnumber"
	ActionContractsByNumbers      ActionType = "contracts_by_contractnumbers"
	ActionContractsByCustomerNum  ActionType = "contracts_by_customer_number"
	ActionContractsByCustomerName ActionType = "contracts_by_customer_name"
	ActionContractsByUser         ActionType = "contracts_by_user"
	ActionContractsByFilter       ActionType = "contracts_by_filter"

	ActionPartsByPartNumber     ActionType = "parts_by_part_number"
	ActionPartsByContractNumber ActionType = "parts_by_contract_number"
	ActionPartsByFilter         ActionType = "parts_by_filter"

	ActionFailedPartsByContract ActionType = "failed_parts_by_contract_number"
	ActionFailedPartsByPart     ActionType = "failed_parts_by_part_number"
	ActionFailedPartsByFilter   ActionType = "failed_parts_by_filter"

	ActionCustomersByNumber ActionType = "customers_by_number"
	ActionCustomersByName   ActionType = "customers_by_name"
	ActionCustomersByFilter ActionType = "customers_by_filter"

	ActionOpportunitiesByNumber   ActionType = "opportunities_by_number"
	ActionOpportunitiesByCustomer ActionType = "opportunities_by_customer_number"
	ActionOpportunitiesByFilter   ActionType = "opportunities_by_filter"

	ActionHelpCreateBot  ActionType = "HELP_CONTRACT_CREATE_BOT"
	ActionHelpCreateUser ActionType = "HELP_CONTRACT_CREATE_USER"

	ActionGeneralQuery ActionType = "GENERAL_QUERY"
)

// Classification is the (queryType, actionType) pair produced for one utterance.
type Classification struct {
	QueryType  QueryType  `json:"queryType"`
	ActionType ActionType `json:"actionType"`
}

// IsTaskCreation reports whether the classification asks the system to run the
// contract creation task.
func (c Classification) IsTaskCreation() bool {
	return c.QueryType == QueryHelp && c.ActionType == ActionHelpCreateBot
}

// Operation is the comparison an entity applies to its attribute.
type Operation string

const (
	OpEquals    Operation = "="
	OpNotEquals Operation = "!="
	OpGTE       Operation = ">="
	OpLTE       Operation = "<="
	OpBetween   Operation = "BETWEEN"
	OpLike      Operation = "LIKE"
	OpIn        Operation = "IN"
)

// Source records which stage produced an entity.
type Source string

const (
	SourcePattern   Source = "pattern"
	SourceNLP       Source = "nlp"
	SourceUserInput Source = "user_input"
)

// Attribute names produced by the extractor.
const (
	AttrContractNumber    = "CONTRACT_NUMBER"
	AttrCustomerNumber    = "CUSTOMER_NUMBER"
	AttrCustomerName      = "CUSTOMER_NAME"
	AttrPartNumber        = "PART_NUMBER"
	AttrOpportunityNumber = "OPPORTUNITY_NUMBER"
	AttrCreatedBy         = "CREATED_BY"
	AttrCreatedDate       = "CREATED_DATE"
	AttrEffectiveDate     = "EFFECTIVE_DATE"
	AttrExpirationDate    = "EXPIRATION_DATE"
	AttrStatus            = "STATUS"
	AttrPrice             = "PRICE"
)

// Entity is one extracted slot. Entities are values; never mutate one after
// it has been appended to a result.
type Entity struct {
	Attribute string    `json:"attribute"`
	Operation Operation `json:"operation"`
	Value     string    `json:"value"`
	Source    Source    `json:"source"`
}

func (e Entity) key() string {
	return e.Attribute + "\x00" + string(e.Operation) + "\x00" + e.Value
}

// String renders the entity as ATTR op value.
func (e Entity) String() string {
	return e.Attribute + " " + string(e.Operation) + " " + e.Value
}

// EntitySet is an insertion-ordered set of entities unique on
// (attribute, operation, value).
type EntitySet struct {
	items []Entity
	seen  map[string]struct{}
}

// Add appends e unless an equal entity is already present. It reports whether
// the entity was added.
func (s *EntitySet) Add(e Entity) bool {
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	k := e.key()
	if _, dup := s.seen[k]; dup {
		return false
	}
	s.seen[k] = struct{}{}
	s.items = append(s.items, e)
	return true
}

// Entities returns a copy of the set in insertion order.
func (s *EntitySet) Entities() []Entity {
	out := make([]Entity, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the number of entities.
func (s *EntitySet) Len() int { return len(s.items) }

// FindEntity returns the first entity with the given attribute.
func FindEntity(entities []Entity, attribute string) (Entity, bool) {
	for _, e := range entities {
		if e.Attribute == attribute {
			return e, true
		}
	}
	return Entity{}, false
}

// HasEntity reports whether any entity carries the attribute.
func HasEntity(entities []Entity, attribute string) bool {
	_, ok := FindEntity(entities, attribute)
	return ok
}
