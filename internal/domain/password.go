package domain

import (
	"errors"
	"strings"
)

const (
	minPasswordLength = 8
	// bcrypt ignores input past 72 bytes.
	maxPasswordLength = 72
)

var (
	errPasswordTooShort = errors.New("Password must be at least 8 characters")
	errPasswordTooLong  = errors.New("Password must be at most 72 characters")
	errPasswordBlank    = errors.New("Password cannot be empty")
)

// ValidatePassword enforces the account password policy.
func ValidatePassword(password string) error {
	switch {
	case strings.TrimSpace(password) == "":
		return errPasswordBlank
	case len(password) < minPasswordLength:
		return errPasswordTooShort
	case len(password) > maxPasswordLength:
		return errPasswordTooLong
	}
	return nil
}
