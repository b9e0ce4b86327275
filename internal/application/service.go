package application

import (
	"strings"
	"time"

	"github.com/viralforge/invoicing-accounts/internal/ports"
)

// Config holds the orchestration knobs resolved at bootstrap.
type Config struct {
	// PublicBaseURL prefixes verification links, e.g. https://app.example.com.
	PublicBaseURL string
	CodeTTL       time.Duration
	LinkTTL       time.Duration

	FailedLoginThreshold int
	LockoutDuration      time.Duration

	ResetRequestThreshold int
	ResetRequestWindow    time.Duration
	// ConcealUnknownResetEmail makes reset requests for unknown emails succeed silently.
	ConcealUnknownResetEmail bool
}

// Service is the Authentication Orchestrator.
type Service struct {
	cfg      Config
	accounts ports.AccountRepository
	lockouts ports.LockoutStore
	hasher   ports.PasswordHasher
	tokens   ports.TokenIssuer
	verifier *VerificationEngine
	nowFn    func() time.Time
}

type Dependencies struct {
	Config        Config
	Accounts      ports.AccountRepository
	Verifications ports.VerificationRepository
	Lockouts      ports.LockoutStore
	Hasher        ports.PasswordHasher
	Tokens        ports.TokenIssuer
	// Now defaults to the UTC wall clock.
	Now func() time.Time
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	if cfg.CodeTTL <= 0 {
		cfg.CodeTTL = 24 * time.Hour
	}
	if cfg.LinkTTL <= 0 {
		cfg.LinkTTL = 24 * time.Hour
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")

	nowFn := deps.Now
	if nowFn == nil {
		nowFn = func() time.Time { return time.Now().UTC() }
	}

	return &Service{
		cfg:      cfg,
		accounts: deps.Accounts,
		lockouts: deps.Lockouts,
		hasher:   deps.Hasher,
		tokens:   deps.Tokens,
		verifier: NewVerificationEngine(cfg, deps.Accounts, deps.Verifications, deps.Hasher, nowFn),
		nowFn:    nowFn,
	}
}
