package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/viralforge/invoicing-accounts/internal/domain"
	"github.com/viralforge/invoicing-accounts/internal/ports"
)

type verificationRepository struct {
	db *gorm.DB
}

// UpsertCode keeps at most one code per account.
func (r *verificationRepository) UpsertCode(ctx context.Context, code domain.VerificationCode, event ports.OutboxEvent) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec := verificationCodeModel{
			AccountID: code.AccountID,
			Code:      code.Code,
			ExpiresAt: code.ExpiresAt,
			CreatedAt: code.CreatedAt,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "account_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"code", "expires_at", "created_at"}),
		}).Create(&rec).Error; err != nil {
			return err
		}
		outbox := toOutboxModel(event)
		return tx.Create(&outbox).Error
	})
	return storeError(ctx, "upsert_verification_code", err)
}

func (r *verificationRepository) FindCode(ctx context.Context, code string) (domain.VerificationCode, error) {
	var rec verificationCodeModel
	if err := r.db.WithContext(ctx).Where("code = ?", code).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.VerificationCode{}, domain.ErrNotFound
		}
		return domain.VerificationCode{}, storeError(ctx, "find_verification_code", err)
	}
	return toDomainCode(rec), nil
}

func (r *verificationRepository) ConsumeCode(ctx context.Context, accountID uuid.UUID, code string) error {
	res := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Where("code = ?", code).
		Delete(&verificationCodeModel{})
	if res.Error != nil {
		return storeError(ctx, "consume_verification_code", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpsertLink keeps at most one link per account and kind.
func (r *verificationRepository) UpsertLink(ctx context.Context, link domain.VerificationLink, event ports.OutboxEvent) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec := verificationLinkModel{
			AccountID: link.AccountID,
			Kind:      string(link.Kind),
			Token:     link.Token,
			URL:       link.URL,
			ExpiresAt: link.ExpiresAt,
			CreatedAt: link.CreatedAt,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "account_id"}, {Name: "kind"}},
			DoUpdates: clause.AssignmentColumns([]string{"token", "url", "expires_at", "created_at"}),
		}).Create(&rec).Error; err != nil {
			return err
		}
		outbox := toOutboxModel(event)
		return tx.Create(&outbox).Error
	})
	return storeError(ctx, "upsert_verification_link", err)
}

func (r *verificationRepository) FindLink(ctx context.Context, kind domain.LinkKind, token string) (domain.VerificationLink, error) {
	var rec verificationLinkModel
	err := r.db.WithContext(ctx).
		Where("kind = ?", string(kind)).
		Where("token = ?", token).
		Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.VerificationLink{}, domain.ErrNotFound
		}
		return domain.VerificationLink{}, storeError(ctx, "find_verification_link", err)
	}
	return toDomainLink(rec), nil
}

// ResetPasswordWithLink deletes the link first so a concurrent reset with the same token finds nothing.
func (r *verificationRepository) ResetPasswordWithLink(ctx context.Context, link domain.VerificationLink, passwordHash string, at time.Time, event ports.OutboxEvent) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.
			Where("account_id = ?", link.AccountID).
			Where("kind = ?", string(domain.LinkKindPassword)).
			Where("token = ?", link.Token).
			Delete(&verificationLinkModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}

		upd := tx.Model(&accountModel{}).
			Where("account_id = ?", link.AccountID).
			Updates(map[string]any{
				"password_hash": passwordHash,
				"updated_at":    at,
			})
		if upd.Error != nil {
			return upd.Error
		}
		if upd.RowsAffected == 0 {
			return domain.ErrNotFound
		}

		outbox := toOutboxModel(event)
		return tx.Create(&outbox).Error
	})
	return storeError(ctx, "reset_password_with_link", err)
}
