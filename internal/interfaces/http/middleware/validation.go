package middleware

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/crm/backend/internal/domain/shared/valueobject"
	"github.com/crm/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var setupValidatorOnce sync.Once

// SetupValidator makes gin's validator report JSON field names and adds
// the "currency" tag (a supported ISO 4217 code). Safe to call repeatedly.
func SetupValidator() {
	setupValidatorOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(jsonFieldName)
		_ = v.RegisterValidation("currency", func(fl validator.FieldLevel) bool {
			_, err := valueobject.ParseCurrency(fl.Field().String())
			return err == nil
		})
	})
}

func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		name, _, _ = strings.Cut(fld.Tag.Get("form"), ",")
	}
	return name
}

// HandleValidationError writes a 400 with one detail per failing field
func HandleValidationError(c *gin.Context, err error) {
	var details []dto.ValidationDetail
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			details = append(details, dto.ValidationDetail{Field: fe.Field(), Message: validationMessage(fe)})
		}
	}
	c.JSON(http.StatusBadRequest, dto.NewValidationErrorResponse(
		"Request validation failed", c.GetString(RequestIDKey), details))
}

var fixedMessages = map[string]string{
	"required": "This field is required",
	"email":    "Invalid email format",
	"uuid":     "Invalid UUID format",
	"currency": "Unsupported currency code",
	"datetime": "Must be a date in YYYY-MM-DD format",
}

var paramMessages = map[string]string{
	"len":              "Must be exactly %s characters",
	"oneof":            "Must be one of: %s",
	"gte":              "Must be greater than or equal to %s",
	"lte":              "Must be less than or equal to %s",
	"required_without": "Required when %s is not set",
}

func validationMessage(fe validator.FieldError) string {
	if msg, ok := fixedMessages[fe.Tag()]; ok {
		return msg
	}
	if tmpl, ok := paramMessages[fe.Tag()]; ok {
		return strings.Replace(tmpl, "%s", fe.Param(), 1)
	}
	unit := ""
	if fe.Kind() == reflect.String {
		unit = " characters"
	}
	switch fe.Tag() {
	case "min":
		return "Must be at least " + fe.Param() + unit
	case "max":
		return "Must be at most " + fe.Param() + unit
	}
	return "Invalid value"
}
