package plan

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/agoras/agoras/core"
)

var (
	planTypeTag  = "plantype"
	planTypeText = "invalid plan type"

	bookingTypeTag  = "bookingtype"
	bookingTypeText = "invalid booking type"
)

// InitValidators registers the `plantype` and `bookingtype` validation tags.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(planTypeTag, func(fl validator.FieldLevel) bool {
		return Tier(fl.Field().String()).Valid()
	})
	core.RegisterCustomTranslation(validate, translator, planTypeTag, planTypeText)

	_ = validate.RegisterValidation(bookingTypeTag, func(fl validator.FieldLevel) bool {
		return BookingType(fl.Field().String()).Valid()
	})
	core.RegisterCustomTranslation(validate, translator, bookingTypeTag, bookingTypeText)
}
