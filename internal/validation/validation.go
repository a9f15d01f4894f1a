// Package validation holds user-facing input checks. Every failure is a
// *FieldError naming the offending field.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"brainpulse/internal/models"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// FieldError represents a validation error
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewFieldError creates a FieldError with a formatted message
func NewFieldError(field, format string, args ...interface{}) *FieldError {
	return &FieldError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsFieldError reports whether err is a validation failure
func IsFieldError(err error) bool {
	var fe *FieldError
	return errors.As(err, &fe)
}

// ValidateEmail checks if an email address is valid
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return NewFieldError("email", "email is required")
	}
	if !emailRegex.MatchString(email) {
		return NewFieldError("email", "invalid email format")
	}
	return nil
}

// ValidatePassword checks if a password meets requirements
func ValidatePassword(password string) error {
	if password == "" {
		return NewFieldError("password", "password is required")
	}
	if len(password) < 8 {
		return NewFieldError("password", "password must be at least 8 characters")
	}
	return nil
}

// ValidateName checks if a name is valid
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return NewFieldError("name", "name is required")
	}
	if len(name) < 2 {
		return NewFieldError("name", "name must be at least 2 characters")
	}
	return nil
}

// ValidateDifficulty accepts easy, medium, hard and the legacy normal alias
func ValidateDifficulty(difficulty string) error {
	switch models.Difficulty(difficulty) {
	case models.DifficultyEasy, models.DifficultyMedium, models.DifficultyHard, models.DifficultyNormal:
		return nil
	case "":
		return NewFieldError("difficulty", "difficulty is required")
	default:
		return NewFieldError("difficulty", "unknown difficulty %q", difficulty)
	}
}

// ValidateRecall rejects empty entries and words recalled more than once
// (case-insensitive).
func ValidateRecall(words []string) error {
	seen := make(map[string]struct{}, len(words))
	for i, w := range words {
		norm := models.NormalizeWord(w)
		if norm == "" {
			return NewFieldError("recalledWords", "entry %d is empty", i)
		}
		if _, dup := seen[norm]; dup {
			return NewFieldError("recalledWords", "%q was already recalled", w)
		}
		seen[norm] = struct{}{}
	}
	return nil
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = validate.RegisterValidation("difficulty", func(fl validator.FieldLevel) bool {
			return ValidateDifficulty(fl.Field().String()) == nil
		})
	})
	return validate
}

// Struct validates a request DTO using its `validate` tags and converts the
// first failure into a FieldError.
func Struct(v interface{}) error {
	err := structValidator().Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}

	fe := verrs[0]
	return &FieldError{Field: fieldPath(fe), Message: describe(fe)}
}

// fieldPath drops the top-level struct name from the namespace
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "email":
		return "invalid email format"
	case "difficulty":
		return fmt.Sprintf("unknown difficulty %q", fe.Value())
	case "ltefield":
		return fmt.Sprintf("%s must not exceed %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}
