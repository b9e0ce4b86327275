package domain

import (
	"time"

	"github.com/google/uuid"
)

// LinkKind selects the flow a verification link belongs to.
type LinkKind string

const (
	LinkKindAccount  LinkKind = "account"
	LinkKindPassword LinkKind = "password"
)

// VerificationCode is the one-time MFA login code. One per account.
type VerificationCode struct {
	AccountID uuid.UUID
	Code      string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// VerificationLink is a one-time URL token. One per account and kind.
type VerificationLink struct {
	AccountID uuid.UUID
	Kind      LinkKind
	Token     string
	URL       string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpired compares at second precision; an artifact is still valid at its expiry instant.
func IsExpired(expiresAt, now time.Time) bool {
	return expiresAt.Truncate(time.Second).Before(now.Truncate(time.Second))
}
