// internal/validation/validation.go
package validation

import (
	"fmt"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"buildbidz.in/internal/auth"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterValidation("complex_password", validateComplexPassword)
	validate.RegisterValidation("decimal_amount", validateDecimalAmount)

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

func ValidateStruct(data interface{}) url.Values {
	err := validate.Struct(data)
	if err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

func formatValidationErrors(err error) url.Values {
	errorsMap := url.Values{}
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		for _, fieldErr := range validationErrs {
			errorsMap.Add(fieldErr.Field(), getErrorMessage(fieldErr))
		}
	} else {
		errorsMap.Add("general", "Validation error: "+err.Error())
	}
	return errorsMap
}

func getErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "min":
		return fmt.Sprintf("Minimum length is %s.", err.Param())
	case "max":
		return fmt.Sprintf("Maximum length is %s.", err.Param())
	case "oneof":
		return fmt.Sprintf("Choose one of the allowed values: %s.", err.Param())
	case "uuid4":
		return "Enter a valid identifier."
	case "len":
		return fmt.Sprintf("Must be exactly %s characters.", err.Param())
	case "uppercase":
		return "Must be uppercase."
	case "url":
		return "Enter a valid URL."
	case "complex_password":
		return "Password must contain letters, digits and symbols."
	case "decimal_amount":
		return "Enter a positive amount with at most two decimal places."
	default:
		return fmt.Sprintf("Invalid value for field %s (tag: %s).", err.Field(), err.Tag())
	}
}

func validateComplexPassword(fl validator.FieldLevel) bool {
	password := fl.Field().String()
	if password == "" {
		return true
	}
	return auth.IsPasswordComplex(password)
}

// validateDecimalAmount accepts strictly positive decimal strings with at most
// two fraction digits. Amounts arrive as strings so no float precision is lost.
func validateDecimalAmount(fl validator.FieldLevel) bool {
	raw := fl.Field().String()
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return false
	}
	if !d.IsPositive() {
		return false
	}
	return d.Exponent() >= -2
}
