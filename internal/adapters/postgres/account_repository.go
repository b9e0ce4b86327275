package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/viralforge/invoicing-accounts/internal/domain"
	"github.com/viralforge/invoicing-accounts/internal/ports"
)

type accountRepository struct {
	db *gorm.DB
}

func (r *accountRepository) CreateWithActivation(ctx context.Context, params ports.CreateAccountParams, link domain.VerificationLink, event ports.OutboxEvent) (domain.Account, error) {
	var result domain.Account
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var role roleModel
		if err := tx.Where("name = ?", params.RoleName).Take(&role).Error; err != nil {
			return err
		}

		accountID := params.AccountID
		if accountID == uuid.Nil {
			accountID = uuid.New()
		}
		rec := accountModel{
			AccountID:    accountID,
			FirstName:    params.FirstName,
			LastName:     params.LastName,
			Email:        params.Email,
			PasswordHash: params.PasswordHash,
			NonLocked:    true,
			RoleID:       role.RoleID,
			CreatedAt:    params.CreatedAt,
			UpdatedAt:    params.CreatedAt,
		}
		if err := tx.Create(&rec).Error; err != nil {
			if isUniqueViolation(err) {
				return domain.ErrDuplicateEmail
			}
			return err
		}

		linkRec := verificationLinkModel{
			AccountID: rec.AccountID,
			Kind:      string(link.Kind),
			Token:     link.Token,
			URL:       link.URL,
			ExpiresAt: link.ExpiresAt,
			CreatedAt: link.CreatedAt,
		}
		if err := tx.Create(&linkRec).Error; err != nil {
			return err
		}

		outbox := toOutboxModel(event)
		outbox.PartitionKey = rec.AccountID.String()
		if err := tx.Create(&outbox).Error; err != nil {
			return err
		}

		result = toDomainAccount(rec, role)
		return nil
	})
	if err != nil {
		return domain.Account{}, storeError(ctx, "create_account", err)
	}
	return result, nil
}

func (r *accountRepository) CountByEmail(ctx context.Context, email string) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&accountModel{}).Where("email = ?", email).Count(&n).Error; err != nil {
		return 0, storeError(ctx, "count_accounts_by_email", err)
	}
	return n, nil
}

func (r *accountRepository) GetByEmail(ctx context.Context, email string) (domain.Account, error) {
	return r.get(ctx, "get_account_by_email", "email = ?", email)
}

func (r *accountRepository) GetByID(ctx context.Context, accountID uuid.UUID) (domain.Account, error) {
	return r.get(ctx, "get_account_by_id", "account_id = ?", accountID)
}

func (r *accountRepository) get(ctx context.Context, operation, query string, arg any) (domain.Account, error) {
	var rec accountModel
	if err := r.db.WithContext(ctx).Where(query, arg).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Account{}, domain.ErrNotFound
		}
		return domain.Account{}, storeError(ctx, operation, err)
	}
	role, err := r.loadRole(ctx, rec.RoleID)
	if err != nil {
		return domain.Account{}, storeError(ctx, operation, err)
	}
	return toDomainAccount(rec, role), nil
}

func (r *accountRepository) SetEnabled(ctx context.Context, accountID uuid.UUID, enabled bool, at time.Time, event *ports.OutboxEvent) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&accountModel{}).
			Where("account_id = ?", accountID).
			Updates(map[string]any{
				"enabled":    enabled,
				"updated_at": at,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		if event == nil {
			return nil
		}
		outbox := toOutboxModel(*event)
		return tx.Create(&outbox).Error
	})
	return storeError(ctx, "set_account_enabled", err)
}

func (r *accountRepository) SetPassword(ctx context.Context, accountID uuid.UUID, passwordHash string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&accountModel{}).
		Where("account_id = ?", accountID).
		Updates(map[string]any{
			"password_hash": passwordHash,
			"updated_at":    at,
		})
	if res.Error != nil {
		return storeError(ctx, "set_account_password", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *accountRepository) Permissions(ctx context.Context, accountID uuid.UUID) ([]string, error) {
	var role roleModel
	err := r.db.WithContext(ctx).
		Joins("JOIN accounts ON accounts.role_id = roles.role_id").
		Where("accounts.account_id = ?", accountID).
		Take(&role).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, storeError(ctx, "account_permissions", err)
	}
	return domain.ParsePermissions(role.Permissions), nil
}

func (r *accountRepository) loadRole(ctx context.Context, roleID uuid.UUID) (roleModel, error) {
	var role roleModel
	if err := r.db.WithContext(ctx).Where("role_id = ?", roleID).Take(&role).Error; err != nil {
		return roleModel{}, err
	}
	return role, nil
}
