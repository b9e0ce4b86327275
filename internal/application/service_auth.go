package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/viralforge/invoicing-accounts/internal/domain"
	"github.com/viralforge/invoicing-accounts/internal/ports"
)

const (
	msgDuplicateEmail  = "Email already in use. Please use a different email and try again"
	msgBadCredentials  = "Incorrect email or password"
	msgAccountDisabled = "User account is currently disabled"
	msgAccountLocked   = "User account is currently locked"
	msgRefreshRejected = "Refresh Token missing or invalid"
	msgLoginRequired   = "You need to log in to access this resource"
)

// Register creates a disabled account with the default role and queues its activation link.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (RegisterResponse, error) {
	req.Email = canonicalEmail(req.Email)
	if err := req.Validate(); err != nil {
		return RegisterResponse{}, err
	}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return RegisterResponse{}, err
	}

	count, err := s.accounts.CountByEmail(ctx, email)
	if err != nil {
		return RegisterResponse{}, err
	}
	if count > 0 {
		return RegisterResponse{}, domain.NewError(domain.ErrDuplicateEmail, msgDuplicateEmail)
	}

	passwordHash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return RegisterResponse{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.nowFn()
	accountID := uuid.New()
	link := s.verifier.NewLink(accountID, domain.LinkKindAccount)
	event := newOutboxEvent(domain.EventAccountRegistered, domain.DeliveryPayload{
		AccountID: accountID.String(),
		Email:     email,
		FirstName: req.FirstName,
		Kind:      domain.LinkKindAccount,
		URL:       link.URL,
		ExpiresAt: link.ExpiresAt,
	}, now)

	account, err := s.accounts.CreateWithActivation(ctx, ports.CreateAccountParams{
		AccountID:    accountID,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        email,
		PasswordHash: passwordHash,
		RoleName:     domain.DefaultRole,
		CreatedAt:    now,
	}, link, event)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			return RegisterResponse{}, domain.NewError(domain.ErrDuplicateEmail, msgDuplicateEmail)
		}
		return RegisterResponse{}, err
	}

	appLogger().InfoContext(ctx, "account registered",
		"operation", "register",
		"outcome", "success",
		"account_id", account.AccountID,
	)
	return RegisterResponse{Account: toAccountView(account)}, nil
}

// Login checks credentials and either issues tokens or sends a login code.
func (s *Service) Login(ctx context.Context, req LoginRequest) (LoginResponse, error) {
	req.Email = canonicalEmail(req.Email)
	if err := req.Validate(); err != nil {
		return LoginResponse{}, err
	}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return LoginResponse{}, err
	}

	lockKey := "login:" + email
	if s.lockouts != nil {
		state, lockErr := s.lockouts.Get(ctx, lockKey)
		if lockErr == nil && state.LockedUntil != nil && state.LockedUntil.After(s.nowFn()) {
			appLogger().WarnContext(ctx, "login lockout active",
				"operation", "login",
				"outcome", "blocked",
				"locked_until", state.LockedUntil,
			)
			return LoginResponse{}, domain.NewError(domain.ErrAccountLocked, msgAccountLocked)
		}
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			if s.recordLoginFailure(ctx, lockKey) {
				return LoginResponse{}, domain.NewError(domain.ErrAccountLocked, msgAccountLocked)
			}
			return LoginResponse{}, domain.NewError(domain.ErrCredentialRejected, msgBadCredentials)
		}
		return LoginResponse{}, err
	}
	if err := s.hasher.Compare(account.PasswordHash, req.Password); err != nil {
		if s.recordLoginFailure(ctx, lockKey) {
			return LoginResponse{}, domain.NewError(domain.ErrAccountLocked, msgAccountLocked)
		}
		return LoginResponse{}, domain.NewError(domain.ErrCredentialRejected, msgBadCredentials)
	}
	if s.lockouts != nil {
		_ = s.lockouts.Clear(ctx, lockKey)
	}

	if !account.NonLocked {
		return LoginResponse{}, domain.NewError(domain.ErrAccountLocked, msgAccountLocked)
	}
	if !account.Enabled {
		return LoginResponse{}, domain.NewError(domain.ErrAccountDisabled, msgAccountDisabled)
	}

	if account.UsingMFA {
		if _, err := s.verifier.IssueCode(ctx, account); err != nil {
			return LoginResponse{}, err
		}
		appLogger().InfoContext(ctx, "login code issued",
			"operation", "login",
			"outcome", "awaiting_code",
			"account_id", account.AccountID,
		)
		return LoginResponse{Account: toAccountView(account), MFARequired: true}, nil
	}
	return s.issueTokens(ctx, account)
}

// VerifyCode completes a login that is waiting for its emailed code.
func (s *Service) VerifyCode(ctx context.Context, email, code string) (LoginResponse, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return LoginResponse{}, err
	}
	account, err := s.verifier.VerifyCode(ctx, normalized, code)
	if err != nil {
		return LoginResponse{}, err
	}
	return s.issueTokens(ctx, account)
}

// Refresh mints a new access token from a valid refresh token.
// The account and its authorities are re-read; the refresh token is returned as is.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (RefreshResponse, error) {
	claims, err := s.tokens.ValidateRefresh(refreshToken)
	if err != nil {
		kind := domain.ErrInvalidToken
		if errors.Is(err, domain.ErrExpired) {
			kind = domain.ErrExpired
		}
		return RefreshResponse{}, domain.NewError(kind, msgRefreshRejected)
	}

	account, err := s.accounts.GetByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return RefreshResponse{}, domain.NewError(domain.ErrInvalidToken, msgRefreshRejected)
		}
		return RefreshResponse{}, err
	}
	permissions, err := s.accounts.Permissions(ctx, account.AccountID)
	if err != nil {
		return RefreshResponse{}, err
	}
	account.Permissions = permissions

	access, err := s.tokens.CreateAccessToken(account.Email, permissions)
	if err != nil {
		return RefreshResponse{}, fmt.Errorf("create access token: %w", err)
	}
	return RefreshResponse{
		Account:      toAccountView(account),
		AccessToken:  access,
		RefreshToken: refreshToken,
	}, nil
}

// Authenticate resolves the principal of a request carrying an access token.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (domain.Principal, error) {
	claims, err := s.tokens.ValidateAccess(accessToken)
	if err != nil {
		return domain.Principal{}, domain.NewError(domain.ErrUnauthorized, msgLoginRequired)
	}
	account, err := s.accounts.GetByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Principal{}, domain.NewError(domain.ErrUnauthorized, msgLoginRequired)
		}
		return domain.Principal{}, err
	}
	account.Permissions = claims.Authorities
	return domain.Principal{Account: account, Authorities: claims.Authorities}, nil
}

// Profile returns the caller's current account.
func (s *Service) Profile(ctx context.Context, principal domain.Principal) (AccountView, error) {
	account, err := s.accounts.GetByID(ctx, principal.Account.AccountID)
	if err != nil {
		return AccountView{}, err
	}
	return toAccountView(account), nil
}

// AccountByID returns another account to a caller holding READ:USER.
func (s *Service) AccountByID(ctx context.Context, principal domain.Principal, accountID uuid.UUID) (AccountView, error) {
	if !principal.HasAuthority("READ:USER") {
		return AccountView{}, domain.NewError(domain.ErrForbidden, "You don't have enough permission")
	}
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return AccountView{}, notFoundAs(err, "No user found by id "+accountID.String())
	}
	return toAccountView(account), nil
}

// ValidateToken exposes the access token check to internal callers.
func (s *Service) ValidateToken(token string) (ports.TokenClaims, error) {
	return s.tokens.ValidateAccess(token)
}

func (s *Service) PublicJWKs() ([]map[string]any, error) {
	return s.tokens.PublicJWKs()
}

func (s *Service) issueTokens(ctx context.Context, account domain.Account) (LoginResponse, error) {
	permissions, err := s.accounts.Permissions(ctx, account.AccountID)
	if err != nil {
		return LoginResponse{}, err
	}
	account.Permissions = permissions

	access, err := s.tokens.CreateAccessToken(account.Email, permissions)
	if err != nil {
		return LoginResponse{}, fmt.Errorf("create access token: %w", err)
	}
	refresh, err := s.tokens.CreateRefreshToken(account.Email)
	if err != nil {
		return LoginResponse{}, fmt.Errorf("create refresh token: %w", err)
	}
	appLogger().InfoContext(ctx, "tokens issued",
		"operation", "issue_tokens",
		"outcome", "success",
		"account_id", account.AccountID,
	)
	return LoginResponse{
		Account:      toAccountView(account),
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}

// recordLoginFailure counts a failed login, known email or not, and reports whether the key is now locked.
func (s *Service) recordLoginFailure(ctx context.Context, lockKey string) bool {
	if s.lockouts == nil || s.cfg.FailedLoginThreshold <= 0 {
		return false
	}
	now := s.nowFn()
	state, err := s.lockouts.RecordFailure(ctx, lockKey, now, s.cfg.FailedLoginThreshold, s.cfg.LockoutDuration)
	if err != nil {
		appLogger().ErrorContext(ctx, "failed to update lockout state",
			"operation", "login",
			"outcome", "failure",
			"error_code", "LOCKOUT_STATE_UNAVAILABLE",
			"error", err,
		)
		return false
	}
	if state.LockedUntil != nil && state.LockedUntil.After(now) {
		appLogger().WarnContext(ctx, "login lockout triggered",
			"operation", "login",
			"outcome", "blocked",
			"locked_until", state.LockedUntil,
		)
		return true
	}
	return false
}
