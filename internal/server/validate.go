package server

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// MaxUsernameLength is measured in runes after trimming.
const MaxUsernameLength = 64

// requestValidate is the validator for request bodies.
// Initialized in init() with custom validators.
var requestValidate *validator.Validate

func init() {
	requestValidate = validator.New()
	_ = requestValidate.RegisterValidation("username", validateUsername)
}

// validateUsername accepts 1..MaxUsernameLength runes with no whitespace
// or control characters inside.
func validateUsername(fl validator.FieldLevel) bool {
	name := strings.TrimSpace(fl.Field().String())
	n := utf8.RuneCountInString(name)
	if n == 0 || n > MaxUsernameLength {
		return false
	}
	for _, r := range name {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return false
		}
	}
	return true
}

// validationMessage turns validator errors into the single message
// returned to clients.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid request"
	}
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			return "Missing fields"
		}
	}
	return fmt.Sprintf("Invalid %s", strings.ToLower(verrs[0].Field()))
}
