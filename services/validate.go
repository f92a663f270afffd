package services

import (
	"fmt"

	"workroom/errors"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// validateCommand checks a typed command at the service boundary
// before it reaches any state.
func validateCommand(cmd any) error {
	if err := validate.Struct(cmd); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidCommand, err)
	}
	return nil
}
