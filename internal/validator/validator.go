package validator

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// ValidationError describes a single failed field rule.
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "validation failed"
	}
	msgs := make([]string, 0, len(v))
	for _, e := range v {
		msgs = append(msgs, e.Message)
	}
	return strings.Join(msgs, "; ")
}

func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

// Validator wraps go-playground/validator with the business rules
// used across template, invitation and session requests.
type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	registerBusinessRules(v)
	return &Validator{validate: v}
}

// Validate checks struct tags and returns ValidationErrors on failure.
func (v *Validator) Validate(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	return toValidationErrors(fieldErrs)
}

func (v *Validator) Var(field interface{}, tag string) error {
	return v.validate.Var(field, tag)
}

func toValidationErrors(fieldErrs validator.ValidationErrors) ValidationErrors {
	out := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, ValidationError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Value:   fmt.Sprintf("%v", fe.Value()),
			Message: messageFor(fe),
		})
	}
	return out
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", fe.Field())
	case "template_title":
		return fmt.Sprintf("%s must be between 3 and 200 characters", fe.Field())
	case "scale_type":
		return fmt.Sprintf("%s must be a Likert scale size between 2 and 10", fe.Field())
	case "session_time_limit":
		return fmt.Sprintf("%s must be between 30 seconds and 4 hours", fe.Field())
	case "future_date":
		return fmt.Sprintf("%s must be in the future", fe.Field())
	case "question_stem":
		return fmt.Sprintf("%s must be between 5 and 500 characters", fe.Field())
	default:
		return fmt.Sprintf("%s failed validation rule %s", fe.Field(), fe.Tag())
	}
}

func registerBusinessRules(v *validator.Validate) {
	v.RegisterValidation("template_title", func(fl validator.FieldLevel) bool {
		title := strings.TrimSpace(fl.Field().String())
		return len(title) >= 3 && len(title) <= 200
	})

	v.RegisterValidation("scale_type", func(fl validator.FieldLevel) bool {
		scale := fl.Field().Int()
		return scale >= 2 && scale <= 10
	})

	// Time limit is stored in seconds. 30s floor keeps accidental
	// zero-ish limits out, 4h cap matches the longest supported test.
	v.RegisterValidation("session_time_limit", func(fl validator.FieldLevel) bool {
		seconds := fl.Field().Int()
		return seconds >= 30 && seconds <= 14400
	})

	v.RegisterValidation("future_date", func(fl validator.FieldLevel) bool {
		t, ok := fl.Field().Interface().(time.Time)
		if !ok {
			return false
		}
		return t.After(time.Now())
	})

	v.RegisterValidation("question_stem", func(fl validator.FieldLevel) bool {
		stem := strings.TrimSpace(fl.Field().String())
		return len(stem) >= 5 && len(stem) <= 500
	})
}
