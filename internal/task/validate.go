package task

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// FieldError is a value that failed its field's validator. The dialogue layer
// surfaces Message next to the field prompt.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string { return e.Message }

func fieldErr(f *FieldSpec, format string, args ...any) error {
	return &FieldError{Field: f.Key, Message: fmt.Sprintf(format, args...)}
}

// Validate checks an extracted value: required, then length, then pattern,
// then allowed values. A custom Validator runs last.
func (f *FieldSpec) Validate(value string) error {
	name := stripParenthetical(f.DisplayName)
	name = strings.TrimSpace(name)

	if value == "" {
		if f.Required {
			return fieldErr(f, "%s is required", name)
		}
		return nil
	}
	if f.MinLength > 0 && len(value) < f.MinLength {
		return fieldErr(f, "%s must be at least %d characters", name, f.MinLength)
	}
	if f.MaxLength > 0 && len(value) > f.MaxLength {
		return fieldErr(f, "%s must be at most %d characters", name, f.MaxLength)
	}
	if f.pattern != nil && !f.pattern.MatchString(value) {
		if f.ErrorMessage != "" {
			return fieldErr(f, "%s", f.ErrorMessage)
		}
		return fieldErr(f, "%s has an invalid format", name)
	}
	if len(f.AllowedValues) > 0 && !slices.Contains(f.AllowedValues, value) {
		return fieldErr(f, "%s must be one of: %s", name, strings.Join(f.AllowedValues, ", "))
	}
	if f.Validator != nil {
		if err := f.Validator(value); err != nil {
			return fieldErr(f, "%s", err.Error())
		}
	}
	return nil
}

var (
	digitRun   = regexp.MustCompile(`\d+`)
	dateLayout = "01-02-2006"
	dateInputs = []string{"01-02-2006", "1-2-2006", "01/02/2006", "1/2/2006", "2006-01-02"}
)

// booleanWords is the task-local yes/no mapping for BOOLEAN fields.
var booleanWords = map[string]string{
	"yes": "YES", "y": "YES", "true": "YES",
	"no": "NO", "n": "NO", "false": "NO",
}

// Extract turns a raw answer into the value that is validated and stored.
func (f *FieldSpec) Extract(raw string) string {
	s := strings.TrimSpace(raw)
	if f.Extractor != nil {
		return f.Extractor(s)
	}
	switch f.DataType {
	case TypeNumber:
		if m := digitRun.FindString(s); m != "" {
			return m
		}
		return s
	case TypeDate:
		for _, layout := range dateInputs {
			if t, err := time.Parse(layout, s); err == nil {
				return t.Format(dateLayout)
			}
		}
		return s
	case TypeBoolean:
		if v, ok := booleanWords[strings.ToLower(s)]; ok {
			return v
		}
		return strings.ToUpper(s)
	case TypeSelect, TypeCurrency:
		return strings.ToUpper(s)
	default:
		return s
	}
}

// Accept extracts and validates raw, returning the value to store.
func (f *FieldSpec) Accept(raw string) (string, error) {
	v := f.Extract(raw)
	if err := f.Validate(v); err != nil {
		return "", err
	}
	return v, nil
}
