package postgres

import (
	"time"

	"github.com/google/uuid"
)

type roleModel struct {
	RoleID      uuid.UUID `gorm:"column:role_id;type:uuid;primaryKey"`
	Name        string    `gorm:"column:name"`
	Permissions string    `gorm:"column:permissions"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

func (roleModel) TableName() string { return "roles" }

type accountModel struct {
	AccountID    uuid.UUID `gorm:"column:account_id;type:uuid;primaryKey"`
	FirstName    string    `gorm:"column:first_name"`
	LastName     string    `gorm:"column:last_name"`
	Email        string    `gorm:"column:email"`
	PasswordHash string    `gorm:"column:password_hash"`
	Phone        string    `gorm:"column:phone"`
	Title        string    `gorm:"column:title"`
	Bio          string    `gorm:"column:bio"`
	ImageURL     string    `gorm:"column:image_url"`
	Enabled      bool      `gorm:"column:enabled"`
	NonLocked    bool      `gorm:"column:non_locked"`
	UsingMFA     bool      `gorm:"column:using_mfa"`
	RoleID       uuid.UUID `gorm:"column:role_id;type:uuid"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (accountModel) TableName() string { return "accounts" }

type verificationCodeModel struct {
	AccountID uuid.UUID `gorm:"column:account_id;type:uuid;primaryKey"`
	Code      string    `gorm:"column:code"`
	ExpiresAt time.Time `gorm:"column:expires_at"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (verificationCodeModel) TableName() string { return "verification_codes" }

type verificationLinkModel struct {
	AccountID uuid.UUID `gorm:"column:account_id;type:uuid;primaryKey"`
	Kind      string    `gorm:"column:kind;primaryKey"`
	Token     string    `gorm:"column:token"`
	URL       string    `gorm:"column:url"`
	ExpiresAt time.Time `gorm:"column:expires_at"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (verificationLinkModel) TableName() string { return "verification_links" }

type outboxModel struct {
	OutboxID       uuid.UUID  `gorm:"column:outbox_id;type:uuid;primaryKey"`
	EventType      string     `gorm:"column:event_type"`
	PartitionKey   string     `gorm:"column:partition_key"`
	Payload        string     `gorm:"column:payload;type:jsonb"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	PublishedAt    *time.Time `gorm:"column:published_at"`
	RetryCount     int        `gorm:"column:retry_count"`
	LastError      *string    `gorm:"column:last_error"`
	LastErrorAt    *time.Time `gorm:"column:last_error_at"`
	ClaimToken     *string    `gorm:"column:claim_token"`
	ClaimUntil     *time.Time `gorm:"column:claim_until"`
	DeadLetteredAt *time.Time `gorm:"column:dead_lettered_at"`
}

func (outboxModel) TableName() string { return "outbox" }
