package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pasindubuddhika1999/findmyphone/internal/apperrors"
)

var (
	imeiPattern     = regexp.MustCompile(`^\d{15}$`)
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	phonePattern    = regexp.MustCompile(`^\+?[0-9][0-9 \-]{6,18}[0-9]$`)
	hexColorPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}){1,2}$`)
)

var (
	once     sync.Once
	instance *validator.Validate
)

// Validator returns the shared validator with the application rules registered.
func Validator() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		// Report fields by their JSON names
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
		mustRegister(v, "imei", func(fl validator.FieldLevel) bool {
			return imeiPattern.MatchString(fl.Field().String())
		})
		mustRegister(v, "username", func(fl validator.FieldLevel) bool {
			return usernamePattern.MatchString(fl.Field().String())
		})
		mustRegister(v, "phone", func(fl validator.FieldLevel) bool {
			return phonePattern.MatchString(fl.Field().String())
		})
		mustRegister(v, "hexcolor", func(fl validator.FieldLevel) bool {
			return hexColorPattern.MatchString(fl.Field().String())
		})
		mustRegister(v, "isodate", func(fl validator.FieldLevel) bool {
			_, err := ParseDate(fl.Field().String())
			return err == nil
		})
		instance = v
	})
	return instance
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("failed to register %s validation: %v", tag, err))
	}
}

// ParseDate accepts a full RFC 3339 timestamp or a plain YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Parse("2006-01-02", s)
}

// IsIMEI reports whether s is exactly 15 digits.
func IsIMEI(s string) bool {
	return imeiPattern.MatchString(s)
}

// Struct validates s and returns every violation at once as an apperrors validation error.
func Struct(s interface{}) error {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validation could not run: %w", err)
	}
	fields := make([]apperrors.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, apperrors.Field(fieldPath(fe), fe.Tag(), describe(fe)))
	}
	return apperrors.Validation("", fields...)
}

// Merge combines several validation results into one aggregated error.
// Non-validation errors are returned as is.
func Merge(errs ...error) error {
	var fields []apperrors.FieldError
	for _, err := range errs {
		if err == nil {
			continue
		}
		e, ok := apperrors.As(err)
		if !ok || e.Kind != apperrors.KindValidation {
			return err
		}
		fields = append(fields, e.Fields...)
	}
	if len(fields) == 0 {
		return nil
	}
	return apperrors.Validation("", fields...)
}

// fieldPath strips the top-level struct name: "CreateListingInput.contactInfo.phone" -> "contactInfo.phone".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_with", "required_without":
		return "is required"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at most %s items", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "imei":
		return "must be exactly 15 digits"
	case "username":
		return "may only contain letters, numbers and underscores"
	case "phone":
		return "must be a valid phone number"
	case "hexcolor":
		return "must be a hex color such as #1a2b3c"
	case "isodate":
		return "must be an ISO 8601 date"
	case "mongodb":
		return "must be a valid id"
	}
	return fmt.Sprintf("failed the %s rule", fe.Tag())
}
