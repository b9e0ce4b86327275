package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/invoicing-accounts/internal/domain"
)

// CreateAccountParams is the normalized input for account creation.
type CreateAccountParams struct {
	AccountID    uuid.UUID
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	RoleName     string
	CreatedAt    time.Time
}

// AccountRepository is the Credential Store for accounts.
// Storage faults surface as domain.ErrOperationFailed.
type AccountRepository interface {
	// CreateWithActivation inserts the account, its activation link and the
	// registration event atomically. A unique-email race reports ErrDuplicateEmail.
	CreateWithActivation(ctx context.Context, params CreateAccountParams, link domain.VerificationLink, event OutboxEvent) (domain.Account, error)
	CountByEmail(ctx context.Context, email string) (int64, error)
	GetByEmail(ctx context.Context, email string) (domain.Account, error)
	GetByID(ctx context.Context, accountID uuid.UUID) (domain.Account, error)
	SetEnabled(ctx context.Context, accountID uuid.UUID, enabled bool, at time.Time, event *OutboxEvent) error
	SetPassword(ctx context.Context, accountID uuid.UUID, passwordHash string, at time.Time) error
	// Permissions resolves the authorities granted to accountID through its role.
	Permissions(ctx context.Context, accountID uuid.UUID) ([]string, error)
}

// VerificationRepository stores one-time codes and links.
// Upserts replace the prior artifact for the same account (and kind) in one statement.
type VerificationRepository interface {
	UpsertCode(ctx context.Context, code domain.VerificationCode, event OutboxEvent) error
	FindCode(ctx context.Context, code string) (domain.VerificationCode, error)
	// ConsumeCode deletes the code; ErrNotFound when it was already used.
	ConsumeCode(ctx context.Context, accountID uuid.UUID, code string) error

	UpsertLink(ctx context.Context, link domain.VerificationLink, event OutboxEvent) error
	FindLink(ctx context.Context, kind domain.LinkKind, token string) (domain.VerificationLink, error)
	// ResetPasswordWithLink writes the new hash and deletes the password link in one transaction.
	ResetPasswordWithLink(ctx context.Context, link domain.VerificationLink, passwordHash string, at time.Time, event OutboxEvent) error
}

// OutboxEvent is an integration event written in the same transaction as its state change.
type OutboxEvent struct {
	EventID      uuid.UUID
	EventType    string
	PartitionKey string
	Payload      []byte
	OccurredAt   time.Time
}

// OutboxRecord is a claimed outbox row awaiting publish.
type OutboxRecord struct {
	OutboxID       uuid.UUID
	EventType      string
	PartitionKey   string
	Payload        []byte
	RetryCount     int
	LastError      *string
	CreatedAt      time.Time
	PublishedAt    *time.Time
	ClaimToken     *string
	ClaimUntil     *time.Time
	DeadLetteredAt *time.Time
}

type OutboxRepository interface {
	ClaimUnpublished(ctx context.Context, limit int, claimToken string, claimUntil time.Time) ([]OutboxRecord, error)
	MarkPublished(ctx context.Context, outboxID uuid.UUID, claimToken string, at time.Time) error
	MarkFailed(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
	MarkDeadLettered(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
}
