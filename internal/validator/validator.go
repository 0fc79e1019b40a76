// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// usernameRegex allows 3-30 letters, digits, underscores, dots and dashes.
var usernameRegex = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,30}$`)

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		RegisterOn(v)
	}
}

// RegisterOn registers the custom validators on an arbitrary validator instance.
func RegisterOn(v *validator.Validate) {
	_ = v.RegisterValidation("privacy", validatePrivacy)
	_ = v.RegisterValidation("trade_direction", validateTradeDirection)
	_ = v.RegisterValidation("game_outcome", validateGameOutcome)
	_ = v.RegisterValidation("username", validateUsername)
}

func validatePrivacy(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "public", "private":
		return true
	}
	return false
}

func validateTradeDirection(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "incoming", "outgoing", "all":
		return true
	}
	return false
}

func validateGameOutcome(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "win", "loss", "push":
		return true
	}
	return false
}

func validateUsername(fl validator.FieldLevel) bool {
	return usernameRegex.MatchString(fl.Field().String())
}
