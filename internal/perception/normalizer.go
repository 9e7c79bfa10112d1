package perception

import (
	"fmt"
	"regexp"
	"strings"
)

// =============================================================================
// NORMALIZER - lower-case, trim, spell-correct
// =============================================================================
// Normalization feeds every downstream stage and must be idempotent:
// Normalize(Normalize(x)) == Normalize(x). The correction dictionary therefore
// never maps onto one of its own keys, and fuzzy corrections only ever land on
// vocabulary words, which are left untouched on the next pass.

// DefaultCorrections holds the domain misspellings seen in production traffic.
var DefaultCorrections = map[string]string{
	// contract
	"contrct": "contract", "contarct": "contract", "kontrakt": "contract",
	"ctrct": "contract", "contrat": "contract", "conract": "contract",
	"cntrct": "contract", "contracr": "contract",
	"contarcts": "contracts", "contracs": "contracts", "contrcts": "contracts",
	"contrats": "contracts",
	// verbs
	"creat": "create", "craete": "create", "cretae": "create",
	"creatd": "created", "craeted": "created",
	"shwo": "show", "shw": "show", "sho": "show",
	// customer / account
	"custmor": "customer", "cstomer": "customer", "custmer": "customer",
	"custommer": "customer", "custoemr": "customer", "cusotmer": "customer",
	"custmors": "customers", "custmers": "customers",
	"accunt": "account", "acount": "account", "accout": "account",
	"numer": "number", "numbr": "number", "nmber": "number",
	// attributes
	"statuz": "status", "staus": "status", "stauts": "status",
	"prts": "parts", "parst": "parts", "partz": "parts",
	"efective": "effective", "effectve": "effective",
	"experation": "expiration", "expiraton": "expiration", "expiry": "expiration",
	"pric": "price", "prise": "price",
	"faild": "failed", "falied": "failed",
	"detials": "details", "detalis": "details", "detail": "details",
	"summry": "summary", "sumary": "summary",
	"metadat": "metadata", "meta": "metadata",
	"btwn": "between", "betwen": "between",
	"oppurtunity": "opportunity", "oportunity": "opportunity",
	"oppurtunities": "opportunities", "oportunities": "opportunities",
}

// DefaultVocabulary is the target set for the distance-1 pass.
var DefaultVocabulary = []string{
	"contract", "contracts", "customer", "customers", "account", "accounts",
	"number", "numbers", "status", "parts", "failed", "created", "create",
	"effective", "expiration", "expired", "details", "summary", "metadata",
	"between", "opportunity", "opportunities", "invoice", "pricelist",
}

// protectedWords are never fuzzily corrected even when one edit away from a
// vocabulary word.
var protectedWords = map[string]bool{
	"current": true, "contact": true, "contacts": true, "comment": true,
	"comments": true, "customs": true, "created": true, "creates": true, "expires": true, "counter": true,
}

var (
	alphaRun   = regexp.MustCompile(`[a-z]+`)
	gluedToken = regexp.MustCompile(`\b(contracts?|customers?|accounts?|parts?|show)(\d{3,})\b`)
)

// minFuzzyLength is the shortest token the distance-1 pass will touch.
const minFuzzyLength = 7

// Normalizer lower-cases, trims and spell-corrects raw input.
type Normalizer struct {
	corrections map[string]string
	vocabulary  map[string]bool
	fuzzyOrder  []string
}

// NewNormalizer returns a normalizer using the default dictionary.
func NewNormalizer() *Normalizer {
	n, err := NewNormalizerWith(DefaultCorrections, DefaultVocabulary)
	if err != nil {
		// Default tables are static; a failure here is a programming error.
		panic(err)
	}
	return n
}

// NewNormalizerWith builds a normalizer from a correction dictionary and a
// vocabulary. It rejects dictionaries whose corrections could chain.
func NewNormalizerWith(corrections map[string]string, vocabulary []string) (*Normalizer, error) {
	n := &Normalizer{
		corrections: make(map[string]string, len(corrections)),
		vocabulary:  make(map[string]bool, len(vocabulary)+len(corrections)),
	}
	for _, w := range vocabulary {
		w = strings.ToLower(w)
		if !n.vocabulary[w] {
			n.vocabulary[w] = true
			n.fuzzyOrder = append(n.fuzzyOrder, w)
		}
	}
	for k, v := range corrections {
		k, v = strings.ToLower(k), strings.ToLower(v)
		if _, chained := corrections[v]; chained {
			return nil, fmt.Errorf("correction %q -> %q chains into another correction", k, v)
		}
		n.corrections[k] = v
		n.vocabulary[v] = true
	}
	for k := range n.corrections {
		if n.vocabulary[k] {
			return nil, fmt.Errorf("misspelling %q is also a vocabulary word", k)
		}
	}
	return n, nil
}

// Normalize returns the canonical form of raw. Never fails; empty in, empty out.
func (n *Normalizer) Normalize(raw string) string {
	s := strings.Join(strings.Fields(strings.ToLower(raw)), " ")
	if s == "" {
		return ""
	}
	s = alphaRun.ReplaceAllStringFunc(s, n.correct)
	return gluedToken.ReplaceAllString(s, "$1 $2")
}

func (n *Normalizer) correct(word string) string {
	if fixed, ok := n.corrections[word]; ok {
		return fixed
	}
	if n.vocabulary[word] || protectedWords[word] || len(word) < minFuzzyLength {
		return word
	}
	match := ""
	for _, candidate := range n.fuzzyOrder {
		if withinOneEdit(word, candidate) {
			if match != "" {
				return word // ambiguous
			}
			match = candidate
		}
	}
	if match != "" {
		return match
	}
	return word
}

// withinOneEdit reports whether a and b differ by exactly one insertion,
// deletion, substitution or adjacent transposition.
func withinOneEdit(a, b string) bool {
	la, lb := len(a), len(b)
	if a == b || la-lb > 1 || lb-la > 1 {
		return false
	}
	i := 0
	for i < la && i < lb && a[i] == b[i] {
		i++
	}
	switch {
	case la == lb:
		if a[i+1:] == b[i+1:] {
			return true
		}
		return i+1 < la && a[i] == b[i+1] && a[i+1] == b[i] && a[i+2:] == b[i+2:]
	case la > lb:
		return a[i+1:] == b[i:]
	default:
		return a[i:] == b[i+1:]
	}
}

var defaultNormalizer = NewNormalizer()

// Normalize applies the default normalizer.
func Normalize(raw string) string {
	return defaultNormalizer.Normalize(raw)
}
