package perception

import (
	"regexp"
	"strings"
)

// =============================================================================
// LEXICONS - fixed phrase tables shared by the classifier and the dialogue layer
// =============================================================================

// creationPatterns recognize a request to run the contract creation task.
var creationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(?:create|make|generate|build|set\s?up|draft|initiate|start|establish|form|develop|prepare|open)\b(?:\s+(?:a|an|the|new|one|my|me|us|another))*\s+contracts?\b`),
	regexp.MustCompile(`\bnew\s+contracts?\b`),
	regexp.MustCompile(`\bcontract\s+creation\b`),
	regexp.MustCompile(`\bcreat(?:e|ing)\s+(?:a\s+|an\s+)?(?:new\s+)?contracts?\b`),
}

// helpPatterns recognize a request for instructions rather than execution.
var helpPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bhow\s+(?:to|do\s+i|can\s+i|should\s+i|would\s+i|do\s+you)\b`),
	regexp.MustCompile(`\bsteps?\b`),
	regexp.MustCompile(`\bguid(?:e|ance)\b`),
	regexp.MustCompile(`\binstructions?\b`),
	regexp.MustCompile(`\bwalk\s+me\s+through\b`),
	regexp.MustCompile(`\bexplain\b`),
	regexp.MustCompile(`\bprocess\b`),
	regexp.MustCompile(`\bunderstand(?:ing)?\b`),
	regexp.MustCompile(`\b(?:show|tell)\s+me\s+how\b`),
	regexp.MustCompile(`\bneed\s+help\b`),
	regexp.MustCompile(`\b(?:want|would\s+like)\s+to\s+know\b`),
}

// queryLeads open an independent query.
var queryLeads = regexp.MustCompile(`^(?:please\s+)?(?:show|get|list|find|display|fetch|search|pull|give\s+me|what|which|who|how\s+many|count)\b`)

// AffirmativeWords and NegativeWords are matched after punctuation stripping.
var AffirmativeWords = []string{
	"yes", "y", "yeah", "yep", "sure", "absolutely", "definitely", "of course",
	"indeed", "agreed", "ok", "okay", "roger", "aye", "by all means",
	"certainly", "yup", "confirm", "confirmed",
}

var NegativeWords = []string{
	"no", "n", "nope", "nah", "not really", "no way", "absolutely not", "never",
	"nix", "nada", "denied", "hard no", "no chance", "not a chance",
	"forget it", "i disagree",
}

// CancelWords end an in-progress task at any phase.
var CancelWords = []string{"cancel", "break", "terminate", "abort", "quit", "stop"}

var (
	affirmativeSet = toSet(AffirmativeWords)
	negativeSet    = toSet(NegativeWords)
	cancelSet      = toSet(CancelWords)
	replyPunct     = regexp.MustCompile(`[!?.,;]+`)

	// A cancel word followed by at most a short object ("cancel this task").
	cancelPhrase = regexp.MustCompile(`^(?:please\s+)?(?:cancel|terminate|abort|stop|quit)(?:\s+(?:it|this|that|now|(?:the\s+|this\s+)?(?:task|contract\s+creation|creation|contract)))?(?:\s+please)?$`)
)

func toSet(words []string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

// IsCreationRequest reports whether normalized text asks for a new contract.
func IsCreationRequest(normalized string) bool {
	for _, p := range creationPatterns {
		if p.MatchString(normalized) {
			return true
		}
	}
	return false
}

// IsHelpRequest reports whether normalized text asks for instructions.
func IsHelpRequest(normalized string) bool {
	for _, p := range helpPatterns {
		if p.MatchString(normalized) {
			return true
		}
	}
	return false
}

// LooksLikeQuery reports whether normalized text reads as an independent
// request rather than a field value. Help words alone ("process", "steps")
// are ordinary text here.
func LooksLikeQuery(normalized string) bool {
	return queryLeads.MatchString(normalized) ||
		IsCreationRequest(normalized) ||
		strings.Contains(normalized, "created by")
}

// NormalizeReply lower-cases, strips punctuation and collapses spaces.
func NormalizeReply(s string) string {
	s = replyPunct.ReplaceAllString(strings.ToLower(s), " ")
	return strings.Join(strings.Fields(s), " ")
}

// IsAffirmative reports whether the reply confirms.
func IsAffirmative(s string) bool {
	r := NormalizeReply(s)
	if affirmativeSet[r] {
		return true
	}
	first, _, _ := strings.Cut(r, " ")
	return first == "yes" || first == "yeah" || first == "yep" || first == "sure" || first == "ok" || first == "okay"
}

// IsNegative reports whether the reply declines.
func IsNegative(s string) bool {
	r := NormalizeReply(s)
	if negativeSet[r] {
		return true
	}
	first, _, _ := strings.Cut(r, " ")
	return first == "no" || first == "nope" || first == "nah"
}

// IsYesNo reports whether the reply is a recognizable confirmation answer.
func IsYesNo(s string) bool {
	return IsAffirmative(s) || IsNegative(s)
}

// IsCancel reports whether the whole reply asks to abandon the current task.
// Text that merely starts with a cancel word is not a cancellation.
func IsCancel(s string) bool {
	r := NormalizeReply(s)
	return cancelSet[r] || cancelPhrase.MatchString(r)
}
