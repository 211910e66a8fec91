// Package validator validates request payloads with go-playground/validator and
// reports failures as model.ValidationError keyed by JSON field name.
package validator

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/yourorg/course-template-service/internal/model"
)

// custom validation tags
const notBlankTag = "notblank"

// Validator wraps a configured validator instance and its english translator
type Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

// New creates a Validator with english messages and JSON field names
func New() *Validator {
	validate := validator.New()

	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation(notBlankTag, notBlankValidation)
	_ = validate.RegisterTranslation(notBlankTag, translator,
		func(ut.Translator) error { return nil },
		func(_ ut.Translator, fe validator.FieldError) string {
			return "this field cannot be blank"
		})

	return &Validator{validate: validate, translator: translator}
}

// Struct validates a payload. Failures come back as *model.ValidationError.
func (v *Validator) Struct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := make([]model.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, model.FieldError{
			Field: fe.Field(),
			Error: fe.Translate(v.translator),
		})
	}
	return &model.ValidationError{Fields: fields}
}

// FieldError builds a single-field validation failure
func FieldError(field, message string) error {
	return &model.ValidationError{Fields: []model.FieldError{{Field: field, Error: message}}}
}

func notBlankValidation(fl validator.FieldLevel) bool {
	if str, ok := fl.Field().Interface().(string); ok {
		return strings.TrimSpace(str) != ""
	}
	return false
}
