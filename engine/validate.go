package engine

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidate()

func newValidate() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("json"), ",", 2)[0] // e.g. `json:"retryTimer,omitempty"` -> retryTimer
	})

	validate.RegisterValidation("iso8601_duration", func(fl validator.FieldLevel) bool {
		_, err := NewISO8601Duration(fl.Field().String())
		return err == nil
	})

	return validate
}

// ValidateCmd validates a command, using the command's validate struct tags.
// Violations are returned as an [Error] of type [ErrorValidation], containing a cause per invalid field.
func ValidateCmd(cmd any) error {
	err := validate.Struct(cmd)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return Error{
			Type:   ErrorValidation,
			Title:  "invalid command",
			Detail: err.Error(),
		}
	}

	causes := make([]ErrorCause, len(validationErrors))
	for i, fieldError := range validationErrors {
		var detail string
		switch fieldError.Tag() {
		case "gte":
			detail = fmt.Sprintf("must be greater than or equal to %s", fieldError.Param())
		case "lte":
			detail = fmt.Sprintf("must be less than or equal to %s", fieldError.Param())
		case "max":
			detail = fmt.Sprintf("exceeds a maximum of %s", fieldError.Param())
		case "required":
			detail = "is required"
		case "required_without":
			detail = fmt.Sprintf("is required, when %s is not set", fieldError.Param())
		// custom validation
		case "iso8601_duration":
			detail = fmt.Sprintf("%v is not an ISO 8601 duration", fieldError.Value())
		default:
			detail = fmt.Sprintf("value %v is invalid", fieldError.Value())
		}

		causes[i] = ErrorCause{
			Pointer: fieldPointer(fieldError.Namespace()),
			Type:    fieldError.Tag(),
			Detail:  detail,
		}
	}

	return Error{
		Type:   ErrorValidation,
		Title:  "invalid command",
		Detail: fmt.Sprintf("failed to validate %T", cmd),
		Causes: causes,
	}
}

// fieldPointer converts a validator namespace into a JSON pointer, e.g. SetJobRetriesCmd.retries -> #/retries.
func fieldPointer(namespace string) string {
	i := strings.IndexRune(namespace, '.')
	if i == -1 {
		return "#"
	}

	pointer := strings.NewReplacer(".", "/", "[", "/", "]", "").Replace(namespace[i+1:])
	return "#/" + pointer
}
