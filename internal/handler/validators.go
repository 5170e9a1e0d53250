package handler

import (
	"regexp"

	"tourdesk/internal/invoicing"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var pinPattern = regexp.MustCompile(`^[0-9]{4,6}$`)

// RegisterValidators adds the domain tags used in request bindings:
// due_days (one of the offered payment terms) and pin (4 to 6 digits).
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	if err := v.RegisterValidation("due_days", func(fl validator.FieldLevel) bool {
		return invoicing.ValidDueDays(int(fl.Field().Int()))
	}); err != nil {
		return err
	}
	return v.RegisterValidation("pin", func(fl validator.FieldLevel) bool {
		return pinPattern.MatchString(fl.Field().String())
	})
}
