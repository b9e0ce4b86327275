package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/viralforge/invoicing-accounts/internal/domain"
	"github.com/viralforge/invoicing-accounts/internal/ports"
)

func toDomainAccount(row accountModel, role roleModel) domain.Account {
	return domain.Account{
		AccountID:    row.AccountID,
		FirstName:    row.FirstName,
		LastName:     row.LastName,
		Email:        row.Email,
		PasswordHash: row.PasswordHash,
		Phone:        row.Phone,
		Title:        row.Title,
		Bio:          row.Bio,
		ImageURL:     row.ImageURL,
		Enabled:      row.Enabled,
		NonLocked:    row.NonLocked,
		UsingMFA:     row.UsingMFA,
		RoleName:     role.Name,
		Permissions:  domain.ParsePermissions(role.Permissions),
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
	}
}

func toDomainCode(row verificationCodeModel) domain.VerificationCode {
	return domain.VerificationCode{
		AccountID: row.AccountID,
		Code:      row.Code,
		ExpiresAt: row.ExpiresAt.UTC(),
		CreatedAt: row.CreatedAt.UTC(),
	}
}

func toDomainLink(row verificationLinkModel) domain.VerificationLink {
	return domain.VerificationLink{
		AccountID: row.AccountID,
		Kind:      domain.LinkKind(row.Kind),
		Token:     row.Token,
		URL:       row.URL,
		ExpiresAt: row.ExpiresAt.UTC(),
		CreatedAt: row.CreatedAt.UTC(),
	}
}

func toOutboxModel(event ports.OutboxEvent) outboxModel {
	payload := event.Payload
	if len(payload) == 0 {
		payload = []byte(`{}`)
	}
	return outboxModel{
		OutboxID:     event.EventID,
		EventType:    event.EventType,
		PartitionKey: event.PartitionKey,
		Payload:      string(payload),
		CreatedAt:    event.OccurredAt,
	}
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// storeError logs a storage fault and reports it as domain.ErrOperationFailed.
// Domain kinds raised inside transactions pass through.
func storeError(ctx context.Context, operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrDuplicateEmail) {
		return err
	}
	slog.Default().ErrorContext(ctx, "postgres operation failed",
		"module", "postgres",
		"layer", "adapter",
		"operation", operation,
		"outcome", "failure",
		"error", err,
	)
	return fmt.Errorf("%w: %s: %v", domain.ErrOperationFailed, operation, err)
}
