package application

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/viralforge/invoicing-accounts/internal/domain"
)

// validationError joins every field error into one InvalidInput error.
func validationError(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validation.Errors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	fields := make([]string, 0, len(fieldErrs))
	for field := range fieldErrs {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	messages := make([]string, 0, len(fields))
	for _, field := range fields {
		if fieldErrs[field] == nil {
			continue
		}
		messages = append(messages, fieldErrs[field].Error())
	}
	return domain.NewError(domain.ErrInvalidInput, strings.Join(messages, ", "))
}

func passwordRule(value interface{}) error {
	password, _ := value.(string)
	return domain.ValidatePassword(password)
}
