package postgres

import (
	"gorm.io/gorm"

	"github.com/viralforge/invoicing-accounts/internal/ports"
)

// Repositories groups the gorm-backed Credential Store.
type Repositories struct {
	Accounts      ports.AccountRepository
	Verifications ports.VerificationRepository
	Outbox        ports.OutboxRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Accounts:      &accountRepository{db: db},
		Verifications: &verificationRepository{db: db},
		Outbox:        &outboxRepository{db: db},
	}
}
