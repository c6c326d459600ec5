package attendance

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/samkazadi/mahudhurio/core"
)

var (
	statusTag  = "attstatus"
	statusText = "invalid attendance status"
)

// InitValidators registers this package's custom validations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(statusTag, statusValidation)
	core.RegisterCustomTranslation(validate, translator, statusTag, statusText)
}

// statusValidation checks that the value is a known record status.
func statusValidation(fl validator.FieldLevel) bool {
	val := fl.Field().String()
	for _, status := range Statuses {
		if val == status {
			return true
		}
	}
	return false
}
