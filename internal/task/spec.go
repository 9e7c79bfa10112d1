// Package task holds the static configuration of multi-turn tasks: the ordered
// field specs a task collects, how each raw answer is extracted and validated,
// and an immutable registry of task kinds.
package task

import (
	"fmt"
	"regexp"
	"strings"
)

// Kind names a task.
type Kind string

const (
	KindContractCreation Kind = "CONTRACT_CREATION"
)

// DataType controls extraction and the dialogue's routing of numeric input.
type DataType string

const (
	TypeText     DataType = "TEXT"
	TypeNumber   DataType = "NUMBER"
	TypeDate     DataType = "DATE"
	TypeBoolean  DataType = "BOOLEAN"
	TypeSelect   DataType = "SELECT"
	TypeCurrency DataType = "CURRENCY"
)

// ValidatorFunc returns nil when value is acceptable.
type ValidatorFunc func(value string) error

// ExtractorFunc turns a raw answer into the stored value.
type ExtractorFunc func(raw string) string

// FieldSpec describes one field a task collects.
type FieldSpec struct {
	Key           string   `yaml:"key" validate:"required,uppercase"`
	DisplayName   string   `yaml:"display_name" validate:"required"`
	DataType      DataType `yaml:"data_type" validate:"required,oneof=TEXT NUMBER DATE BOOLEAN SELECT CURRENCY"`
	Required      bool     `yaml:"required"`
	MinLength     int      `yaml:"min_length,omitempty" validate:"gte=0"`
	MaxLength     int      `yaml:"max_length,omitempty" validate:"gte=0"`
	Pattern       string   `yaml:"pattern,omitempty"`
	AllowedValues []string `yaml:"allowed_values,omitempty"`
	Aliases       []string `yaml:"aliases,omitempty"`
	Prompt        string   `yaml:"prompt" validate:"required"`
	ErrorMessage  string   `yaml:"error_message,omitempty"`

	// Validator and Extractor override the data-type defaults when set.
	Validator ValidatorFunc `yaml:"-"`
	Extractor ExtractorFunc `yaml:"-"`

	pattern *regexp.Regexp
}

// IsNumeric reports whether the field collects a number.
func (f *FieldSpec) IsNumeric() bool {
	return f.DataType == TypeNumber
}

func (f *FieldSpec) compile() error {
	if f.Pattern == "" {
		f.pattern = nil
		return nil
	}
	re, err := regexp.Compile(f.Pattern)
	if err != nil {
		return fmt.Errorf("field %s: bad pattern: %w", f.Key, err)
	}
	f.pattern = re
	return nil
}

// labels returns every lower-case label a user may type before a value.
func (f *FieldSpec) labels() []string {
	out := []string{
		strings.ToLower(strings.ReplaceAll(f.Key, "_", " ")),
		strings.ToLower(strings.TrimSpace(stripParenthetical(f.DisplayName))),
	}
	for _, a := range f.Aliases {
		out = append(out, strings.ToLower(strings.TrimSpace(a)))
	}
	return out
}

func stripParenthetical(s string) string {
	if i := strings.Index(s, "("); i >= 0 {
		return s[:i]
	}
	return s
}

// Config is the ordered field list of one task kind. Configs are built once and
// never modified; share them freely.
type Config struct {
	Kind             Kind        `yaml:"kind" validate:"required"`
	Name             string      `yaml:"name" validate:"required"`
	Fields           []FieldSpec `yaml:"fields" validate:"required,min=1,dive"`
	ConfirmPrompt    string      `yaml:"confirm_prompt,omitempty"`
	CompletedMessage string      `yaml:"completed_message,omitempty"`
}

// Field returns the spec for key.
func (c *Config) Field(key string) (*FieldSpec, bool) {
	for i := range c.Fields {
		if c.Fields[i].Key == key {
			return &c.Fields[i], true
		}
	}
	return nil, false
}

// FieldByLabel resolves a user-typed label ("account number", "title") to a spec.
func (c *Config) FieldByLabel(label string) (*FieldSpec, bool) {
	l := strings.ToLower(strings.Join(strings.Fields(strings.ReplaceAll(label, "_", " ")), " "))
	if l == "" {
		return nil, false
	}
	for i := range c.Fields {
		for _, candidate := range c.Fields[i].labels() {
			if candidate == l {
				return &c.Fields[i], true
			}
		}
	}
	return nil, false
}

// RequiredFields returns the required specs in collection order.
func (c *Config) RequiredFields() []*FieldSpec {
	return c.filter(true)
}

// OptionalFields returns the optional specs in declaration order.
func (c *Config) OptionalFields() []*FieldSpec {
	return c.filter(false)
}

func (c *Config) filter(required bool) []*FieldSpec {
	var out []*FieldSpec
	for i := range c.Fields {
		if c.Fields[i].Required == required {
			out = append(out, &c.Fields[i])
		}
	}
	return out
}

// RequiredKeys returns the required field keys in order.
func (c *Config) RequiredKeys() []string {
	var keys []string
	for _, f := range c.RequiredFields() {
		keys = append(keys, f.Key)
	}
	return keys
}

// Keys returns every field key in declaration order.
func (c *Config) Keys() []string {
	keys := make([]string, len(c.Fields))
	for i := range c.Fields {
		keys[i] = c.Fields[i].Key
	}
	return keys
}

// FirstMissing returns the index into RequiredFields of the first required
// field absent from collected, or len(RequiredFields()) when all are present.
func (c *Config) FirstMissing(collected map[string]string) int {
	required := c.RequiredFields()
	for i, f := range required {
		if _, ok := collected[f.Key]; !ok {
			return i
		}
	}
	return len(required)
}

// Remaining returns the required fields absent from collected, in order.
func (c *Config) Remaining(collected map[string]string) []*FieldSpec {
	var out []*FieldSpec
	for _, f := range c.RequiredFields() {
		if _, ok := collected[f.Key]; !ok {
			out = append(out, f)
		}
	}
	return out
}

// Summary renders collected values in field order for the confirmation prompt.
func (c *Config) Summary(collected map[string]string) string {
	var b strings.Builder
	for i := range c.Fields {
		f := &c.Fields[i]
		v, ok := collected[f.Key]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", strings.TrimSpace(stripParenthetical(f.DisplayName)), v)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Validate checks the config and compiles field patterns. It must be called on
// every Config before it is shared; NewRegistry does so.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("task %s: %w", c.Kind, err)
	}
	if len(c.RequiredFields()) == 0 {
		return fmt.Errorf("task %s: no required fields", c.Kind)
	}
	seen := make(map[string]bool, len(c.Fields))
	for i := range c.Fields {
		f := &c.Fields[i]
		if seen[f.Key] {
			return fmt.Errorf("task %s: duplicate field %s", c.Kind, f.Key)
		}
		seen[f.Key] = true
		if f.MaxLength > 0 && f.MinLength > f.MaxLength {
			return fmt.Errorf("task %s: field %s: min_length > max_length", c.Kind, f.Key)
		}
		if err := f.compile(); err != nil {
			return fmt.Errorf("task %s: %w", c.Kind, err)
		}
	}
	return nil
}
