package validator

import (
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/examstack/exam-service/internal/models"
)

// Validator wraps go-playground/validator with the exam domain rules
// registered.
type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	validate := validator.New()

	v := &Validator{validate: validate}
	v.registerDomainRules()

	return v
}

// Validate validates struct tags and returns ValidationErrors, or nil.
func (v *Validator) Validate(s interface{}) error {
	if err := v.validate.Struct(s); err != nil {
		return ToValidationErrors(err)
	}
	return nil
}

// registerDomainRules registers custom validators for exam fields
func (v *Validator) registerDomainRules() {
	// Exam duration validation (1-480 minutes)
	v.validate.RegisterValidation("exam_duration", func(fl validator.FieldLevel) bool {
		duration := fl.Field().Int()
		return duration >= 1 && duration <= 480
	})

	// Pass percentage validation (0-100)
	v.validate.RegisterValidation("pass_percentage", func(fl validator.FieldLevel) bool {
		pct := fl.Field().Float()
		return pct >= 0 && pct <= 100
	})

	// Max attempts validation (1-10)
	v.validate.RegisterValidation("max_attempts", func(fl validator.FieldLevel) bool {
		attempts := fl.Field().Int()
		return attempts >= 1 && attempts <= 10
	})

	// Title validation (1-200 characters)
	v.validate.RegisterValidation("exam_title", func(fl validator.FieldLevel) bool {
		title := strings.TrimSpace(fl.Field().String())
		return len(title) >= 1 && len(title) <= 200
	})

	// Integrity event type validation
	v.validate.RegisterValidation("event_type", func(fl validator.FieldLevel) bool {
		return models.IntegrityEventType(fl.Field().String()).Valid()
	})

	// Date validation (must be in future), nil allowed for pointer fields
	v.validate.RegisterValidation("future_date", func(fl validator.FieldLevel) bool {
		field := fl.Field()

		if field.Kind() == reflect.Ptr && field.IsNil() {
			return true
		}

		var t time.Time
		if field.Kind() == reflect.Ptr {
			t = field.Elem().Interface().(time.Time)
		} else {
			t = field.Interface().(time.Time)
		}

		return t.After(time.Now())
	})

	// Roll number validation (1-50 characters, no whitespace padding)
	v.validate.RegisterValidation("roll_number", func(fl validator.FieldLevel) bool {
		roll := fl.Field().String()
		trimmed := strings.TrimSpace(roll)
		return trimmed == roll && len(roll) >= 1 && len(roll) <= 50
	})
}
