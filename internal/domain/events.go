package domain

import "time"

// Integration event types written to the outbox.
const (
	EventAccountRegistered      = "account.registered"
	EventAccountActivated       = "account.activated"
	EventAccountPasswordChanged = "account.password_changed"
	EventVerificationCodeIssued = "verification.code_issued"
	EventVerificationLinkIssued = "verification.link_issued"
)

// DeliveryPayload is the outbox payload of every event above.
// Code and URL are set only for the events that deliver them.
type DeliveryPayload struct {
	AccountID  string    `json:"account_id"`
	Email      string    `json:"email"`
	FirstName  string    `json:"first_name,omitempty"`
	Kind       LinkKind  `json:"kind,omitempty"`
	Code       string    `json:"code,omitempty"`
	URL        string    `json:"url,omitempty"`
	ExpiresAt  time.Time `json:"expires_at"`
	OccurredAt time.Time `json:"occurred_at"`
}
