package models

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError aggregates every violation found while constructing a value.
// Each construction produces its own instance; nothing is shared between calls.
type ValidationError struct {
	Violations []string
}

// Error joins all violations so a single log line shows every problem.
func (e *ValidationError) Error() string {
	return strings.Join(e.Violations, ", ")
}

// validate is configured once and only read afterwards.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	return v
}

// validateStruct runs the struct tags of s and converts every failing field
// into a human readable violation, using messages keyed by field name.
func validateStruct(s any, messages map[string]string) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("models: validate: %w", err)
	}

	violations := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if msg, ok := messages[fe.Field()]; ok {
			violations = append(violations, msg)
			continue
		}
		violations = append(violations, fmt.Sprintf("Data doesn't contain a valid %s", fe.Field()))
	}
	return &ValidationError{Violations: violations}
}
