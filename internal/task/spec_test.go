package task

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contractConfig(t *testing.T) *Config {
	t.Helper()
	c, ok := DefaultRegistry().Get(KindContractCreation)
	require.True(t, ok)
	return c
}

func contractField(t *testing.T, key string) *FieldSpec {
	t.Helper()
	f, ok := contractConfig(t).Field(key)
	require.True(t, ok, key)
	return f
}

func TestFieldSpec_Accept(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		raw     string
		want    string
		wantErr string
	}{
		{"account ok", "ACCOUNT_NUMBER", "1000585412", "1000585412", ""},
		{"account embedded", "ACCOUNT_NUMBER", "acct 1000585412", "1000585412", ""},
		{"account too short", "ACCOUNT_NUMBER", "12345", "", "Account Number must be at least 6 digits"},
		{"account empty", "ACCOUNT_NUMBER", "  ", "", "Account Number is required"},
		{"name trimmed", "CONTRACT_NAME", "  TestContract ", "TestContract", ""},
		{"name too short", "CONTRACT_NAME", "x", "", "Contract Name must be at least 2 characters"},
		{"pricelist no", "IS_PRICELIST", "no", "NO", ""},
		{"pricelist Yes", "IS_PRICELIST", "Yes", "YES", ""},
		{"pricelist other", "IS_PRICELIST", "maybe", "", "Is Pricelist must be one of: YES, NO"},
		{"type upper", "CONTRACT_TYPE", "service", "SERVICE", ""},
		{"type unknown", "CONTRACT_TYPE", "barter", "", "Contract Type must be one of: SERVICE, SUPPLY, LICENSE, MAINTENANCE, SUPPORT"},
		{"currency", "CURRENCY", "eur", "EUR", ""},
		{"optional empty", "PAYMENT_TERMS", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := contractField(t, tt.key).Accept(tt.raw)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantErr, err.Error())
				var fe *FieldError
				require.True(t, errors.As(err, &fe))
				assert.Equal(t, tt.key, fe.Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFieldSpec_ExtractDate(t *testing.T) {
	f := &FieldSpec{Key: "START", DisplayName: "Start", DataType: TypeDate}
	assert.Equal(t, "03-07-2025", f.Extract("3/7/2025"))
	assert.Equal(t, "03-07-2025", f.Extract("2025-03-07"))
	assert.Equal(t, "soon", f.Extract(" soon "))
}

func TestFieldSpec_CustomFuncs(t *testing.T) {
	f := &FieldSpec{
		Key: "CODE", DisplayName: "Code", DataType: TypeText, Required: true,
		Extractor: func(raw string) string { return "X-" + raw },
		Validator: func(v string) error {
			if v == "X-bad" {
				return errors.New("code is blocked")
			}
			return nil
		},
	}
	v, err := f.Accept("ok")
	require.NoError(t, err)
	assert.Equal(t, "X-ok", v)

	_, err = f.Accept("bad")
	require.EqualError(t, err, "code is blocked")
}

func TestConfig_Steps(t *testing.T) {
	c := contractConfig(t)

	assert.Equal(t, []string{"ACCOUNT_NUMBER", "CONTRACT_NAME", "TITLE", "DESCRIPTION", "COMMENTS", "IS_PRICELIST"}, c.RequiredKeys())
	assert.Len(t, c.OptionalFields(), 3)

	collected := map[string]string{}
	assert.Equal(t, 0, c.FirstMissing(collected))

	collected["ACCOUNT_NUMBER"] = "1000585412"
	collected["TITLE"] = "T"
	assert.Equal(t, 1, c.FirstMissing(collected))
	assert.Len(t, c.Remaining(collected), 4)

	for _, k := range c.RequiredKeys() {
		collected[k] = "v"
	}
	assert.Equal(t, len(c.RequiredFields()), c.FirstMissing(collected))
	assert.Empty(t, c.Remaining(collected))
}

func TestConfig_FieldByLabel(t *testing.T) {
	c := contractConfig(t)
	for label, key := range map[string]string{
		"account number": "ACCOUNT_NUMBER",
		"Account_Number": "ACCOUNT_NUMBER",
		"contract  name": "CONTRACT_NAME",
		"desc":           "DESCRIPTION",
		"is pricelist":   "IS_PRICELIST",
		"price list":     "IS_PRICELIST",
		"currency":       "CURRENCY",
	} {
		f, ok := c.FieldByLabel(label)
		if assert.True(t, ok, label) {
			assert.Equal(t, key, f.Key, label)
		}
	}
	_, ok := c.FieldByLabel("favorite color")
	assert.False(t, ok)
}

func TestConfig_Summary(t *testing.T) {
	c := contractConfig(t)
	s := c.Summary(map[string]string{"TITLE": "Title", "ACCOUNT_NUMBER": "1000585412"})
	assert.Equal(t, "- Account Number: 1000585412\n- Title: Title", s)
}

func TestNewRegistry_Rejects(t *testing.T) {
	_, err := NewRegistry()
	require.Error(t, err)

	_, err = NewRegistry(ContractCreation(), ContractCreation())
	require.ErrorContains(t, err, "duplicate task kind")

	bad := ContractCreation()
	bad.Fields[0].Pattern = "("
	_, err = NewRegistry(bad)
	require.ErrorContains(t, err, "bad pattern")

	noRequired := ContractCreation()
	for i := range noRequired.Fields {
		noRequired.Fields[i].Required = false
	}
	_, err = NewRegistry(noRequired)
	require.ErrorContains(t, err, "no required fields")

	dup := ContractCreation()
	dup.Fields[1].Key = dup.Fields[0].Key
	_, err = NewRegistry(dup)
	require.ErrorContains(t, err, "duplicate field")

	lower := ContractCreation()
	lower.Fields[0].Key = "account"
	_, err = NewRegistry(lower)
	require.Error(t, err)
}
