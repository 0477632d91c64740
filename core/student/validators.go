package student

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/agoras/agoras/core"
)

var (
	levelTag  = "level"
	levelText = "choose one of ungdomsskole, videregående or r1-r2"
)

func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(levelTag, levelValidation)
	core.RegisterCustomTranslation(validate, translator, levelTag, levelText)
}

func levelValidation(fl validator.FieldLevel) bool {
	return Level(fl.Field().String()).Valid()
}
