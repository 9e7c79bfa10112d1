package perception

import (
	"regexp"
	"sort"
	"strings"

	"contractbot/internal/logging"
)

// =============================================================================
// ENTITY EXTRACTION - one ordered pass over a (pattern, attribute, priority) table
// =============================================================================
// Rules run from highest to lowest priority. A match whose span overlaps text
// already claimed by a higher-priority rule is skipped, so "contract 123456"
// yields CONTRACT_NUMBER and the bare-number fallback never sees 123456.

// ExtractionRule maps one pattern to one attribute.
type ExtractionRule struct {
	Name      string
	Attribute string
	Operation Operation
	Pattern   *regexp.Regexp
	Priority  int
	Source    Source

	// Value builds the entity value from submatches. Nil means group 1.
	Value func(groups []string) string

	// Skip rejects a match, e.g. a captured word that is really a keyword.
	Skip func(value string) bool
}

const datePattern = `(\d{1,2}[/-]\d{1,2}[/-]\d{2,4}|\d{4}-\d{2}-\d{2})`

// nameStopWords are words the customer-name rules must not capture.
var nameStopWords = map[string]bool{
	"name": true, "number": true, "no": true, "details": true, "info": true,
	"information": true, "contracts": true, "contract": true, "list": true,
	"for": true, "with": true, "and": true, "the": true, "by": true,
	"status": true, "is": true, "account": true, "customer": true,
	"customers": true, "id": true, "data": true, "records": true,
}

var longNumber = regexp.MustCompile(`\d{6,}`)

func upperGroup(g []string) string { return strings.ToUpper(g[1]) }

// nameGroup upper-cases a captured name and drops trailing keywords
// ("acme contracts" -> "ACME").
func nameGroup(g []string) string {
	words := strings.Fields(g[1])
	for len(words) > 0 && nameStopWords[words[len(words)-1]] {
		words = words[:len(words)-1]
	}
	return strings.ToUpper(strings.Join(words, " "))
}

// statusSynonyms is the small fixed lookup table that stands in for a
// statistical model; its entities are tagged SourceNLP.
var statusSynonyms = map[string]string{
	"live": "ACTIVE", "current": "ACTIVE", "running": "ACTIVE",
	"lapsed": "EXPIRED", "ended": "EXPIRED", "terminated": "EXPIRED",
	"awaiting": "PENDING", "on hold": "PENDING",
}

// DefaultRules is the production extraction table.
func DefaultRules() []ExtractionRule {
	return []ExtractionRule{
		{
			Name:      "contract-number-list",
			Attribute: AttrContractNumber,
			Operation: OpIn,
			Pattern:   regexp.MustCompile(`\bcontracts?\s+(\d{6,}(?:\s*(?:,|and|or)\s*\d{6,})+)\b`),
			Priority:  110,
			Value: func(g []string) string {
				return strings.Join(longNumber.FindAllString(g[1], -1), ",")
			},
		},
		{
			Name:      "contract-number-keyword",
			Attribute: AttrContractNumber,
			Operation: OpEquals,
			Pattern:   regexp.MustCompile(`\b(?:contracts?|award)\s*(?:number|no\.?|num|#|id)?\s*:?\s*(\d{6,})\b`),
			Priority:  100,
		},
		{
			Name:      "contract-number-trailing",
			Attribute: AttrContractNumber,
			Operation: OpEquals,
			Pattern:   regexp.MustCompile(`\b(\d{6,})\s+contracts?\b`),
			Priority:  99,
		},
		{
			Name:      "customer-number-keyword",
			Attribute: AttrCustomerNumber,
			Operation: OpEquals,
			Pattern:   regexp.MustCompile(`\b(?:customers?|accounts?|acct)\s*(?:number|no\.?|num|#|id)?\s*:?\s*(\d{4,})\b`),
			Priority:  95,
		},
		{
			Name:      "part-number-keyword",
			Attribute: AttrPartNumber,
			Operation: OpEquals,
			Pattern:   regexp.MustCompile(`\b(?:part|item)\s+(?:number\s+|no\.?\s+|#\s*)?([a-z]*\d[a-z0-9-]*)\b`),
			Priority:  90,
			Value:     upperGroup,
		},
		{
			Name:      "opportunity-number",
			Attribute: AttrOpportunityNumber,
			Operation: OpEquals,
			Pattern:   regexp.MustCompile(`\b(crf\d+)\b`),
			Priority:  88,
			Value:     upperGroup,
		},
		{
			Name:      "part-number-shape",
			Attribute: AttrPartNumber,
			Operation: OpEquals,
			Pattern:   regexp.MustCompile(`\b([a-z]{2}\d{3,5}(?:-[a-z]{3})?)\b`),
			Priority:  80,
			Value:     upperGroup,
		},
		{
			Name:      "created-by",
			Attribute: AttrCreatedBy,
			Operation: OpEquals,
			Pattern:   regexp.MustCompile(`\b(?:created|loaded|made|uploaded|entered)\s+by\s+([a-z][a-z0-9._-]*)\b`),
			Priority:  75,
			Skip:      func(v string) bool { return nameStopWords[v] },
		},
		{
			Name:      "customer-name-like",
			Attribute: AttrCustomerName,
			Operation: OpLike,
			Pattern:   regexp.MustCompile(`\b(?:customer|account)?\s*name\s+(?:like|contains|containing|starting\s+with)\s+['"]?([a-z0-9&.-]+)['"]?`),
			Priority:  72,
		},
		{
			Name:      "customer-name-keyword",
			Attribute: AttrCustomerName,
			Operation: OpEquals,
			Pattern:   regexp.MustCompile(`\b(?:customer|account)\s+name\s+(?:is\s+|=\s*)?['"]?([a-z][a-z0-9&.-]*(?:\s+[a-z][a-z0-9&.-]*)?)['"]?`),
			Priority:  70,
			Value:     nameGroup,
			Skip:      func(v string) bool { return nameStopWords[strings.ToLower(strings.Fields(v)[0])] },
		},
		{
			Name:      "customer-name-quoted",
			Attribute: AttrCustomerName,
			Operation: OpEquals,
			Pattern:   regexp.MustCompile(`['"]([^'"]{2,})['"]`),
			Priority:  65,
			Value:     func(g []string) string { return strings.ToUpper(strings.TrimSpace(g[1])) },
		},
		{
			Name:      "customer-name-after-keyword",
			Attribute: AttrCustomerName,
			Operation: OpEquals,
			Pattern:   regexp.MustCompile(`\b(?:for|of)\s+customer\s+([a-z][a-z&.-]{2,})\b`),
			Priority:  60,
			Value:     upperGroup,
			Skip:      func(v string) bool { return nameStopWords[v] },
		},
		{
			Name:      "date-between",
			Attribute: AttrCreatedDate,
			Operation: OpBetween,
			Pattern:   regexp.MustCompile(`\bbetween\s+` + datePattern + `\s+and\s+` + datePattern),
			Priority:  58,
			Value:     func(g []string) string { return g[1] + " AND " + g[2] },
		},
		{
			Name:      "effective-date",
			Attribute: AttrEffectiveDate,
			Operation: OpGTE,
			Pattern:   regexp.MustCompile(`\beffective\s+(?:date\s+)?(?:after\s+|from\s+|since\s+|on\s+|is\s+)?` + datePattern),
			Priority:  57,
		},
		{
			Name:      "expiration-date",
			Attribute: AttrExpirationDate,
			Operation: OpLTE,
			Pattern:   regexp.MustCompile(`\bexpir\w*\s+(?:date\s+)?(?:before\s+|by\s+|on\s+|is\s+)?` + datePattern),
			Priority:  56,
		},
		{
			Name:      "created-after",
			Attribute: AttrCreatedDate,
			Operation: OpGTE,
			Pattern:   regexp.MustCompile(`\b(?:after|since|from)\s+` + datePattern),
			Priority:  55,
		},
		{
			Name:      "created-before",
			Attribute: AttrCreatedDate,
			Operation: OpLTE,
			Pattern:   regexp.MustCompile(`\b(?:before|until|to)\s+` + datePattern),
			Priority:  54,
		},
		{
			Name:      "created-in-year",
			Attribute: AttrCreatedDate,
			Operation: OpBetween,
			Pattern:   regexp.MustCompile(`\bin\s+((?:19|20)\d{2})\b`),
			Priority:  53,
			Value:     func(g []string) string { return "01-01-" + g[1] + " AND 12-31-" + g[1] },
		},
		{
			Name:      "status-negated",
			Attribute: AttrStatus,
			Operation: OpNotEquals,
			Pattern:   regexp.MustCompile(`\b(?:status\s+(?:is\s+)?(?:not|!=)|not)\s+(active|inactive|expired|pending|approved|cancelled|closed)\b`),
			Priority:  52,
			Value:     upperGroup,
		},
		{
			Name:      "status",
			Attribute: AttrStatus,
			Operation: OpEquals,
			Pattern:   regexp.MustCompile(`\b(active|inactive|expired|pending|approved|cancelled|closed)\b`),
			Priority:  50,
			Value:     upperGroup,
		},
		{
			Name:      "status-synonym",
			Attribute: AttrStatus,
			Operation: OpEquals,
			Pattern:   regexp.MustCompile(`\b(live|current|running|lapsed|ended|terminated|awaiting|on hold)\s+contracts?\b`),
			Priority:  48,
			Source:    SourceNLP,
			Value:     func(g []string) string { return statusSynonyms[g[1]] },
		},
		{
			Name:      "price-min",
			Attribute: AttrPrice,
			Operation: OpGTE,
			Pattern:   regexp.MustCompile(`\bprice\s*(?:>=|>|over|above|greater\s+than|more\s+than|at\s+least)\s*\$?(\d+(?:\.\d+)?)`),
			Priority:  40,
		},
		{
			Name:      "price-max",
			Attribute: AttrPrice,
			Operation: OpLTE,
			Pattern:   regexp.MustCompile(`\bprice\s*(?:<=|<|under|below|less\s+than|at\s+most)\s*\$?(\d+(?:\.\d+)?)`),
			Priority:  39,
		},
		{
			Name:      "bare-account-number",
			Attribute: AttrCustomerNumber,
			Operation: OpEquals,
			Pattern:   regexp.MustCompile(`\b(\d{6,})\b`),
			Priority:  10,
		},
	}
}

// Extractor applies an ordered rule table to normalized text.
type Extractor struct {
	rules []ExtractionRule
}

// NewExtractor returns an extractor over DefaultRules.
func NewExtractor() *Extractor {
	return NewExtractorWithRules(DefaultRules())
}

// NewExtractorWithRules sorts rules by descending priority, keeping table order
// for equal priorities.
func NewExtractorWithRules(rules []ExtractionRule) *Extractor {
	sorted := make([]ExtractionRule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority > sorted[j].Priority })
	return &Extractor{rules: sorted}
}

// Rules returns the evaluation order.
func (x *Extractor) Rules() []ExtractionRule {
	out := make([]ExtractionRule, len(x.rules))
	copy(out, x.rules)
	return out
}

type span struct{ start, end int }

func (s span) overlaps(o span) bool { return s.start < o.end && o.start < s.end }

// Extract returns the entities found in normalized text, in rule order then
// left to right. Pure; safe for concurrent use.
func (x *Extractor) Extract(normalized string) []Entity {
	var set EntitySet
	var claimed []span

	for _, rule := range x.rules {
		for _, idx := range rule.Pattern.FindAllStringSubmatchIndex(normalized, -1) {
			whole := span{idx[0], idx[1]}
			if overlapsAny(whole, claimed) {
				continue
			}
			groups := submatches(normalized, idx)
			var value string
			if rule.Value != nil {
				value = rule.Value(groups)
			} else if len(groups) > 1 {
				value = groups[1]
			}
			value = strings.TrimSpace(value)
			if value == "" || (rule.Skip != nil && rule.Skip(value)) {
				continue
			}
			source := rule.Source
			if source == "" {
				source = SourcePattern
			}
			claimed = append(claimed, whole)
			set.Add(Entity{
				Attribute: rule.Attribute,
				Operation: rule.Operation,
				Value:     value,
				Source:    source,
			})
		}
	}

	entities := set.Entities()
	if len(entities) > 0 {
		logging.PerceptionDebug("extracted %d entities from %q", len(entities), normalized)
	}
	return entities
}

func overlapsAny(s span, claimed []span) bool {
	for _, c := range claimed {
		if s.overlaps(c) {
			return true
		}
	}
	return false
}

func submatches(s string, idx []int) []string {
	groups := make([]string, len(idx)/2)
	for i := range groups {
		if idx[2*i] >= 0 {
			groups[i] = s[idx[2*i]:idx[2*i+1]]
		}
	}
	return groups
}

var defaultExtractor = NewExtractor()

// ExtractEntities normalizes text and runs the default extractor.
func ExtractEntities(text string) []Entity {
	return defaultExtractor.Extract(Normalize(text))
}
