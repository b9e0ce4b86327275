package application

import (
	"context"
	"errors"

	"github.com/viralforge/invoicing-accounts/internal/domain"
)

const (
	msgNoAccountForEmail = "There is no account for this email address"
	msgPasswordsDiffer   = "Passwords don't match. Please try again"
)

// RequestPasswordReset issues a password link for email.
// Unknown emails report NotFound unless ConcealUnknownResetEmail is set.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	if err := s.enforceRateLimit(ctx, "reset:"+normalized, s.cfg.ResetRequestThreshold, s.cfg.ResetRequestWindow); err != nil {
		return err
	}

	account, err := s.accounts.GetByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			if s.cfg.ConcealUnknownResetEmail {
				return nil
			}
			return domain.NewError(domain.ErrNotFound, msgNoAccountForEmail)
		}
		return err
	}

	if _, err := s.verifier.IssueLink(ctx, account, domain.LinkKindPassword); err != nil {
		return err
	}
	appLogger().InfoContext(ctx, "password reset link issued",
		"operation", "request_password_reset",
		"outcome", "success",
		"account_id", account.AccountID,
	)
	return nil
}

// VerifyPasswordLink checks a reset link and returns its owner for the next step.
func (s *Service) VerifyPasswordLink(ctx context.Context, key string) (AccountView, error) {
	res, err := s.verifier.VerifyLink(ctx, key, domain.LinkKindPassword)
	if err != nil {
		return AccountView{}, err
	}
	return toAccountView(res.Account), nil
}

// ResetPassword sets the new password through a valid reset link and invalidates it.
func (s *Service) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	if req.Password != req.ConfirmPassword {
		return domain.NewError(domain.ErrMismatch, msgPasswordsDiffer)
	}
	if err := req.Validate(); err != nil {
		return err
	}
	if err := s.verifier.ConsumeLinkForPasswordReset(ctx, req.Key, req.Password); err != nil {
		return err
	}
	appLogger().InfoContext(ctx, "password reset completed",
		"operation", "reset_password",
		"outcome", "success",
	)
	return nil
}

// VerifyAccountLink activates the account owning key. Repeat visits are not errors.
func (s *Service) VerifyAccountLink(ctx context.Context, key string) (VerifyAccountResponse, error) {
	res, err := s.verifier.VerifyLink(ctx, key, domain.LinkKindAccount)
	if err != nil {
		return VerifyAccountResponse{}, err
	}
	return VerifyAccountResponse{
		Account:         toAccountView(res.Account),
		AlreadyVerified: res.AlreadyVerified,
	}, nil
}
