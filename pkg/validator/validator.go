package validator

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	playground "github.com/go-playground/validator/v10"

	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

var hhmmRegex = regexp.MustCompile(`^([01]?[0-9]|2[0-3]):[0-5][0-9]$`)

// Default messages per rule, used when no field specific message is set.
var defaultMessages = map[string]string{
	"required": "Campo obrigatório.",
	"email":    "Email inválido.",
	"uuid":     "Identificador inválido.",
	"min":      "Valor abaixo do mínimo.",
	"oneof":    "Valor inválido.",
	"hhmm":     "Horário inválido.",
}

// Validator checks structs tagged with `validate` and reports failures per
// json field name.
type Validator interface {
	Validate(obj interface{}) error
	Fields(obj interface{}) []apperrors.FieldError
}

type validator struct {
	v        *playground.Validate
	messages map[string]string
}

// New creates a validator. Messages are keyed "field.rule" (json field
// name) and override the default per rule message.
func New(messages map[string]string) Validator {
	v := playground.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("hhmm", func(fl playground.FieldLevel) bool {
		return hhmmRegex.MatchString(fl.Field().String())
	})

	return &validator{v: v, messages: messages}
}

// Validate returns a validation AppError listing every failing field, or nil.
func (v *validator) Validate(obj interface{}) error {
	fields := v.Fields(obj)
	if len(fields) == 0 {
		return nil
	}
	return apperrors.NewValidation(fields...)
}

func (v *validator) Fields(obj interface{}) []apperrors.FieldError {
	err := v.v.Struct(obj)
	if err == nil {
		return nil
	}

	var errs playground.ValidationErrors
	if !errors.As(err, &errs) {
		return []apperrors.FieldError{{Field: "_", Message: err.Error()}}
	}

	fields := make([]apperrors.FieldError, 0, len(errs))
	for _, e := range errs {
		fields = append(fields, apperrors.FieldError{
			Field:   e.Field(),
			Message: v.message(e.Field(), e.Tag()),
		})
	}
	return fields
}

func (v *validator) message(field, tag string) string {
	if msg, ok := v.messages[field+"."+tag]; ok {
		return msg
	}
	if msg, ok := defaultMessages[tag]; ok {
		return msg
	}
	return "Valor inválido."
}
