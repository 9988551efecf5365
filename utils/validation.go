package utils

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationDetails mirrors a flattened field report: errors that belong to
// the whole body go to FormErrors, the rest are keyed by JSON path.
type ValidationDetails struct {
	FormErrors  []string            `json:"formErrors"`
	FieldErrors map[string][]string `json:"fieldErrors"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names rather than Go field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// ValidateStruct checks v against its `validate` tags.
func ValidateStruct(v interface{}) *AppError {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return NewValidationError(ValidationDetails{
			FormErrors:  []string{err.Error()},
			FieldErrors: map[string][]string{},
		})
	}

	details := ValidationDetails{FormErrors: []string{}, FieldErrors: map[string][]string{}}
	for _, fe := range verrs {
		path := fieldPath(fe.Namespace())
		details.FieldErrors[path] = append(details.FieldErrors[path], describe(fe))
	}
	return NewValidationError(details)
}

// BodyError wraps a JSON decoding failure as a validation error.
func BodyError(err error) *AppError {
	msg := "Invalid JSON body"
	if err != nil {
		msg = fmt.Sprintf("Invalid JSON body: %v", err)
	}
	return NewValidationError(ValidationDetails{
		FormErrors:  []string{msg},
		FieldErrors: map[string][]string{},
	})
}

// fieldPath drops the root struct name: "ChatRequest.messages[0].role" -> "messages[0].role".
func fieldPath(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

func describe(fe validator.FieldError) string {
	isList := fe.Kind() == reflect.Slice || fe.Kind() == reflect.Array
	switch fe.Tag() {
	case "required":
		return "Required"
	case "min":
		if isList {
			return fmt.Sprintf("Array must contain at least %s element(s)", fe.Param())
		}
		return fmt.Sprintf("String must contain at least %s character(s)", fe.Param())
	case "max":
		if isList {
			return fmt.Sprintf("Array must contain at most %s element(s)", fe.Param())
		}
		return fmt.Sprintf("String must contain at most %s character(s)", fe.Param())
	case "oneof":
		opts := strings.Fields(fe.Param())
		for i, o := range opts {
			opts[i] = "'" + o + "'"
		}
		return "Invalid enum value. Expected " + strings.Join(opts, " | ")
	default:
		return fmt.Sprintf("Failed on the '%s' rule", fe.Tag())
	}
}
