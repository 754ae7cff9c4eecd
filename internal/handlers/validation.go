package handlers

import (
	"reflect"
	"strings"

	"quote_manager/internal/apperrors"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(jsonFieldName)
	}
}

// jsonFieldName makes validation errors report the JSON name of a field.
func jsonFieldName(field reflect.StructField) string {
	name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	return name
}

// fieldError maps a failed binding rule onto the error taxonomy: numeric
// bounds are amount errors, everything else is a shape error.
func fieldError(fe validator.FieldError) error {
	switch fe.Tag() {
	case "min", "gte":
		return apperrors.InvalidAmount(fe.Field(), "must be at least %s", fe.Param())
	case "oneof":
		return apperrors.InvalidState(fe.Field(), "must be one of: %s", fe.Param())
	case "required":
		return apperrors.InvalidState(fe.Field(), "is required")
	default:
		return apperrors.InvalidState(fe.Field(), "failed the %s rule", fe.Tag())
	}
}
