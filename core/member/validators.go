package member

import (
	"github.com/go-playground/validator/v10"

	"github.com/campuskit/identity/core"
)

var (
	memberKindTag  = "memberkind"
	memberKindText = "invalid member kind"
)

func init() {
	_ = core.Validate.RegisterValidation(memberKindTag, memberKindValidation)
	core.RegisterCustomTranslation(memberKindTag, memberKindText)
}

// memberKindValidation checks that the provided kind is in the closed kind set.
func memberKindValidation(fl validator.FieldLevel) bool {
	return Kind(fl.Field().String()).Valid()
}
