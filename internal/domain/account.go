package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const DefaultRole = "ROLE_USER"

// Account is the credential aggregate of the invoicing app.
// Enabled flips on activation; NonLocked is an operator switch.
type Account struct {
	AccountID    uuid.UUID
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	Phone        string
	Title        string
	Bio          string
	ImageURL     string
	Enabled      bool
	NonLocked    bool
	UsingMFA     bool
	RoleName     string
	Permissions  []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Principal is the resolved identity attached to an authenticated request.
type Principal struct {
	Account     Account
	Authorities []string
}

func (p Principal) Subject() string { return p.Account.Email }

// HasAuthority reports whether p was granted permission.
func (p Principal) HasAuthority(permission string) bool {
	for _, granted := range p.Authorities {
		if strings.EqualFold(granted, permission) {
			return true
		}
	}
	return false
}

// ParsePermissions splits a stored comma separated permission list.
func ParsePermissions(raw string) []string {
	out := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
