// Package validator wraps go-playground/validator and renders failures as a
// field → message map suitable for JSON error envelopes.
package validator

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	playground "github.com/go-playground/validator/v10"
)

type ValidationErrors map[string]string

func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

var validate = newValidate()

func newValidate() *playground.Validate {
	v := playground.New(playground.WithRequiredStructEnabled())

	// Report fields by their json names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("username", func(fl playground.FieldLevel) bool {
		return usernameRegex.MatchString(fl.Field().String())
	})

	// At least one upper, one lower, one digit.
	_ = v.RegisterValidation("password", func(fl playground.FieldLevel) bool {
		var hasUpper, hasLower, hasDigit bool
		for _, ch := range fl.Field().String() {
			switch {
			case unicode.IsUpper(ch):
				hasUpper = true
			case unicode.IsLower(ch):
				hasLower = true
			case unicode.IsDigit(ch):
				hasDigit = true
			}
		}
		return hasUpper && hasLower && hasDigit
	})

	return v
}

// Struct validates input by its `validate` tags.
func Struct(input any) ValidationErrors {
	errs := make(ValidationErrors)

	err := validate.Struct(input)
	if err == nil {
		return errs
	}

	var fieldErrs playground.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		errs["request"] = "Invalid request"
		return errs
	}

	for _, fe := range fieldErrs {
		errs[fe.Field()] = message(fe)
	}
	return errs
}

func message(fe playground.FieldError) string {
	switch fe.Tag() {
	case "required", "required_unless":
		return "This field is required"
	case "email":
		return "Invalid email address"
	case "min":
		return "Must be at least " + fe.Param() + " characters"
	case "max":
		return "Must be at most " + fe.Param() + " characters"
	case "username":
		return "May only contain letters, numbers, _ and -"
	case "password":
		return "Must contain an uppercase letter, a lowercase letter and a number"
	default:
		return "Invalid value"
	}
}
