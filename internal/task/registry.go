package task

import (
	"fmt"
	"sort"
)

// Registry is an immutable set of task configs keyed by kind. A reload builds
// a new Registry; callers swap pointers rather than mutate.
type Registry struct {
	tasks map[Kind]*Config
}

// NewRegistry validates every config and indexes it by kind.
func NewRegistry(configs ...*Config) (*Registry, error) {
	r := &Registry{tasks: make(map[Kind]*Config, len(configs))}
	for _, c := range configs {
		if c == nil {
			continue
		}
		if err := c.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.tasks[c.Kind]; dup {
			return nil, fmt.Errorf("duplicate task kind %s", c.Kind)
		}
		r.tasks[c.Kind] = c
	}
	if len(r.tasks) == 0 {
		return nil, fmt.Errorf("no tasks configured")
	}
	return r, nil
}

// Get returns the config for kind.
func (r *Registry) Get(kind Kind) (*Config, bool) {
	if r == nil {
		return nil, false
	}
	c, ok := r.tasks[kind]
	return c, ok
}

// Kinds returns the registered kinds, sorted.
func (r *Registry) Kinds() []Kind {
	kinds := make([]Kind, 0, len(r.tasks))
	for k := range r.tasks {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Configs returns the configs in kind order.
func (r *Registry) Configs() []*Config {
	out := make([]*Config, 0, len(r.tasks))
	for _, k := range r.Kinds() {
		out = append(out, r.tasks[k])
	}
	return out
}

// ContractCreation returns the built-in contract creation task.
func ContractCreation() *Config {
	return &Config{
		Kind:             KindContractCreation,
		Name:             "Contract creation",
		ConfirmPrompt:    "Please review the contract details. Create this contract? (yes/no)",
		CompletedMessage: "Contract created successfully.",
		Fields: []FieldSpec{
			{
				Key:          "ACCOUNT_NUMBER",
				DisplayName:  "Account Number (6+ digits)",
				DataType:     TypeNumber,
				Required:     true,
				Pattern:      `^\d{6,}$`,
				Aliases:      []string{"account", "account no", "customer number"},
				Prompt:       "Please provide the Account Number (6+ digits).",
				ErrorMessage: "Account Number must be at least 6 digits",
			},
			{
				Key:         "CONTRACT_NAME",
				DisplayName: "Contract Name",
				DataType:    TypeText,
				Required:    true,
				MinLength:   2,
				MaxLength:   100,
				Aliases:     []string{"name"},
				Prompt:      "Please provide the Contract Name.",
			},
			{
				Key:         "TITLE",
				DisplayName: "Title",
				DataType:    TypeText,
				Required:    true,
				MinLength:   2,
				MaxLength:   200,
				Prompt:      "Please provide the Title.",
			},
			{
				Key:         "DESCRIPTION",
				DisplayName: "Description",
				DataType:    TypeText,
				Required:    true,
				MinLength:   2,
				MaxLength:   1000,
				Aliases:     []string{"desc"},
				Prompt:      "Please provide the Description.",
			},
			{
				Key:         "COMMENTS",
				DisplayName: "Comments",
				DataType:    TypeText,
				Required:    true,
				MaxLength:   1000,
				Aliases:     []string{"comment"},
				Prompt:      "Please provide any Comments.",
			},
			{
				Key:           "IS_PRICELIST",
				DisplayName:   "Is Pricelist (yes/no)",
				DataType:      TypeBoolean,
				Required:      true,
				AllowedValues: []string{"YES", "NO"},
				Aliases:       []string{"pricelist", "price list"},
				Prompt:        "Is this a pricelist contract? (yes/no)",
			},
			{
				Key:           "CONTRACT_TYPE",
				DisplayName:   "Contract Type",
				DataType:      TypeSelect,
				AllowedValues: []string{"SERVICE", "SUPPLY", "LICENSE", "MAINTENANCE", "SUPPORT"},
				Aliases:       []string{"type"},
				Prompt:        "Contract type (SERVICE, SUPPLY, LICENSE, MAINTENANCE, SUPPORT)?",
			},
			{
				Key:         "PAYMENT_TERMS",
				DisplayName: "Payment Terms",
				DataType:    TypeText,
				MaxLength:   100,
				Aliases:     []string{"terms"},
				Prompt:      "Payment terms (e.g. NET30)?",
			},
			{
				Key:           "CURRENCY",
				DisplayName:   "Currency",
				DataType:      TypeCurrency,
				AllowedValues: []string{"USD", "EUR", "GBP", "CAD", "AUD", "JPY"},
				Prompt:        "Currency (USD, EUR, GBP, CAD, AUD, JPY)?",
			},
		},
	}
}

// DefaultRegistry returns a registry holding the built-in tasks.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(ContractCreation())
	if err != nil {
		// Built-in configs are static; a failure here is a programming error.
		panic(err)
	}
	return r
}
