package config

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
			if name == "" || name == "-" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// Validate checks Settings and returns a *ConfigurationError describing the
// first offending field.
func Validate(s Settings) error {
	if err := getValidator().Struct(s); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
			return &ConfigurationError{Err: err}
		}
		first := fieldErrs[0]
		return &ConfigurationError{Field: first.Field(), Reason: describe(first)}
	}

	if len(ParseExtensions(s.TranscribeFileExtensions)) == 0 {
		return &ConfigurationError{Field: KeyTranscribeFileExtensions, Reason: "must list at least one extension"}
	}

	return nil
}

func describe(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "url":
		return "must be an absolute URL"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(e.Param(), " ", ", ")
	case "gte":
		return "must not be negative"
	default:
		return "failed " + e.Tag() + " check"
	}
}
