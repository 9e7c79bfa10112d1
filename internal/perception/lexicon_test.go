package perception

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReplies(t *testing.T) {
	tests := []struct {
		in          string
		affirmative bool
		negative    bool
	}{
		{"yes", true, false},
		{"Yes!", true, false},
		{"yes please", true, false},
		{"OK.", true, false},
		{"of course", true, false},
		{"no", false, true},
		{"Nope.", false, true},
		{"no thanks", false, true},
		{"not a chance", false, true},
		{"maybe", false, false},
		{"yesterday", false, false},
		{"", false, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.affirmative, IsAffirmative(tt.in), "IsAffirmative(%q)", tt.in)
		assert.Equal(t, tt.negative, IsNegative(tt.in), "IsNegative(%q)", tt.in)
		assert.Equal(t, tt.affirmative || tt.negative, IsYesNo(tt.in), "IsYesNo(%q)", tt.in)
	}
}

func TestIsCancel(t *testing.T) {
	for _, in := range []string{"cancel", "Cancel.", "stop", "quit", "please cancel this", "abort the task", "cancel contract creation"} {
		assert.True(t, IsCancel(in), in)
	}
	for _, in := range []string{
		"stopwatch", "show cancelled contracts", "no", "",
		"Cancel anytime with 30 days notice", "stop shipments after the renewal date",
	} {
		assert.False(t, IsCancel(in), in)
	}
}

func TestLooksLikeQuery(t *testing.T) {
	for _, in := range []string{"show contracts", "list parts", "what is the price", "how to create a contract", "contracts created by john"} {
		assert.True(t, LooksLikeQuery(Normalize(in)), in)
	}
	for _, in := range []string{
		"acme corp", "test contract", "1000585412", "annual maintenance agreement",
		"covers the vendor onboarding process", "steps for quarterly review",
	} {
		assert.False(t, LooksLikeQuery(Normalize(in)), in)
	}
}

func TestIsCreationAndHelp(t *testing.T) {
	assert.True(t, IsCreationRequest("i want to make a new contract"))
	assert.True(t, IsCreationRequest("start contract creation"))
	assert.False(t, IsCreationRequest("show contracts created by john"))

	assert.True(t, IsHelpRequest("what are the steps"))
	assert.False(t, IsHelpRequest("show contracts"))
}
