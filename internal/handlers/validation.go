package handlers

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"speakapp/internal/models"
)

// RegisterValidators installs custom binding rules on gin's validator engine.
// Safe to call more than once.
func RegisterValidators() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}

	_ = v.RegisterValidation("section", func(fl validator.FieldLevel) bool {
		_, err := models.ParseSection(fl.Field().String())
		return err == nil
	})
}
