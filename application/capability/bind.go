package capability

import (
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/reglet-dev/capkit/domain/schema"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
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

// Bind decodes params into target, a pointer to a struct, and checks its
// `validate` tags. Rule failures are reported as a *schema.ValidationError.
func Bind(params schema.Values, target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("bind target must be a non-nil pointer, got %T", target)
	}

	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to encode parameters: %w", err)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("failed to decode parameters into %T: %w", target, err)
	}

	if rv.Elem().Kind() != reflect.Struct {
		return nil
	}
	if err := validate.Struct(target); err != nil {
		var fieldErrs validator.ValidationErrors
		if stdErrors.As(err, &fieldErrs) {
			return toValidationError(fieldErrs)
		}
		return err
	}
	return nil
}

func toValidationError(fieldErrs validator.ValidationErrors) *schema.ValidationError {
	ve := &schema.ValidationError{}
	for _, fe := range fieldErrs {
		_, path, found := strings.Cut(fe.Namespace(), ".")
		if !found {
			path = fe.Field()
		}
		msg := "failed rule " + fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		ve.Issues = append(ve.Issues, schema.Issue{
			Field:    path,
			Kind:     schema.IssueRuleViolation,
			Expected: fe.ActualTag(),
			Message:  msg,
		})
	}
	return ve
}
