package user

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/chatpay/internal/catalog"
)

// Validator plugs go-playground/validator into echo, with catalog-backed
// rules for categories, experience levels and weekdays.
type Validator struct {
	v *validator.Validate
}

func NewValidator(cat *catalog.Catalog) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return cat.HasCategory(fl.Field().String())
	})
	_ = v.RegisterValidation("experience", func(fl validator.FieldLevel) bool {
		return cat.HasExperience(fl.Field().String())
	})
	_ = v.RegisterValidation("weekday", func(fl validator.FieldLevel) bool {
		return cat.HasWeekday(fl.Field().String())
	})
	return &Validator{v: v}
}

func (cv *Validator) Validate(i interface{}) error {
	return cv.v.Struct(i)
}

// FieldErrors turns validation errors into a field -> reason map. It returns
// nil for any other error.
func FieldErrors(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fieldPath(fe)] = reason(fe)
	}
	return out
}

func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
		}
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "category":
		return "is not a known service category"
	case "experience":
		return "is not a known experience level"
	case "weekday":
		return "is not a known day of the week"
	}
	return "is invalid"
}

// validationFailed writes the 400 body used for every rejected form.
func validationFailed(c echo.Context, err error) error {
	fields := FieldErrors(err)
	if fields == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid input"})
	}
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "fields": fields})
}
