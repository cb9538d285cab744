package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/staff-remuneration-api/internal/models"
	appErrors "github.com/noah-isme/staff-remuneration-api/pkg/errors"
)

// mobilePattern accepts ten-digit Indian mobile numbers with an optional country code.
var mobilePattern = regexp.MustCompile(`^(?:\+?\d{1,3}[\s-]?)?[6-9]\d{9}$`)

// emailPattern is the basic shape check applied to mail recipients.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// NewValidator returns a validator reporting JSON field names and knowing the
// custom tags used by request DTOs.
func NewValidator() *validator.Validate {
	v := validator.New()
	RegisterValidations(v)
	return v
}

// RegisterValidations installs the custom tags on an existing validator.
func RegisterValidations(v *validator.Validate) {
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
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("mobile", func(fl validator.FieldLevel) bool {
		return mobilePattern.MatchString(strings.TrimSpace(fl.Field().String()))
	})
	_ = v.RegisterValidation("department", func(fl validator.FieldLevel) bool {
		return isKnownDepartment(fl.Field().String())
	})
}

func isKnownDepartment(name string) bool {
	for _, d := range models.Departments {
		if d == name {
			return true
		}
	}
	return false
}

// validEmail reports whether addr has a basic local@domain.tld shape.
func validEmail(addr string) bool {
	return emailPattern.MatchString(strings.TrimSpace(addr))
}

// fieldErrors flattens validator output into field paths such as
// staffPayments[0].persons[1].mobile.
func fieldErrors(err error) []appErrors.FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []appErrors.FieldError{{Field: "body", Message: err.Error()}}
	}
	out := make([]appErrors.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, appErrors.FieldError{Field: fieldPath(fe.Namespace()), Message: describe(fe)})
	}
	return out
}

func fieldPath(namespace string) string {
	if idx := strings.Index(namespace, "."); idx >= 0 {
		return namespace[idx+1:]
	}
	return namespace
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "is required"
	case "notblank":
		return "must not be empty"
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
		}
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "email":
		return "must be a valid email address"
	case "mobile":
		return "must be a valid mobile number"
	case "department":
		return "must be one of: " + strings.Join(models.Departments, ", ")
	case "numeric":
		return "must contain only digits"
	default:
		return "is invalid"
	}
}

// validationError converts a validator failure into a 400 carrying every field.
func validationError(err error) error {
	return appErrors.Validation(fieldErrors(err))
}

// BindError converts a JSON decoding failure into a validation error when the
// payload is syntactically valid but carries a value of the wrong type.
func BindError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		return appErrors.Validation([]appErrors.FieldError{{
			Field:   field,
			Message: fmt.Sprintf("must be of type %s", typeErr.Type.String()),
		}})
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return appErrors.Validation([]appErrors.FieldError{{Field: "body", Message: "malformed JSON"}})
	}
	return appErrors.Validation([]appErrors.FieldError{{Field: "body", Message: "invalid request body"}})
}
