package domain

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidatePost rejects malformed posts before any policy check runs.
func ValidatePost(req PostRequest) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidMessage, describe(err))
	}
	return checkBlank(req.Author, req.Body)
}

// ValidateEdit rejects malformed edits before any policy check runs.
func ValidateEdit(req EditRequest) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidMessage, describe(err))
	}
	return checkBlank(req.Author, req.Body)
}

func checkBlank(author, body string) error {
	if strings.TrimSpace(author) == "" {
		return fmt.Errorf("%w: author is required", ErrInvalidMessage)
	}
	if strings.TrimSpace(body) == "" {
		return fmt.Errorf("%w: body is required", ErrInvalidMessage)
	}
	return nil
}

func describe(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	default:
		return field + " is invalid"
	}
}
