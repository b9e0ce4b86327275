package application

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"net/mail"
	"strings"
	"time"

	"github.com/viralforge/invoicing-accounts/internal/domain"
)

const (
	serviceName  = "invoicing-accounts"
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 8
)

func canonicalEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// normalizeEmail canonicalizes an email for storage and comparison.
func normalizeEmail(email string) (string, error) {
	trimmed := canonicalEmail(email)
	if trimmed == "" {
		return "", domain.NewError(domain.ErrInvalidInput, "Email cannot be empty")
	}
	if _, err := mail.ParseAddress(trimmed); err != nil {
		return "", domain.NewError(domain.ErrInvalidInput, "Invalid email. please enter a valid email address")
	}
	return trimmed, nil
}

// randomCode returns an uppercase alphanumeric code drawn from crypto/rand.
func randomCode(size int) (string, error) {
	max := big.NewInt(int64(len(codeAlphabet)))
	var b strings.Builder
	b.Grow(size)
	for i := 0; i < size; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		b.WriteByte(codeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

func appLogger() *slog.Logger {
	return slog.Default().With(
		"service", serviceName,
		"module", "application",
		"layer", "application",
	)
}

// enforceRateLimit admits threshold requests per key before locking it for window.
func (s *Service) enforceRateLimit(ctx context.Context, key string, threshold int, window time.Duration) error {
	if s.lockouts == nil || threshold <= 0 || window <= 0 {
		return nil
	}

	state, err := s.lockouts.Get(ctx, key)
	if err == nil && state.LockedUntil != nil && state.LockedUntil.After(s.nowFn()) {
		return domain.NewError(domain.ErrRateLimited, "Too many requests. Please try again later")
	}

	now := s.nowFn()
	updated, err := s.lockouts.RecordFailure(ctx, key, now, threshold+1, window)
	if err != nil {
		appLogger().WarnContext(ctx, "rate-limit state unavailable",
			"operation", "rate_limit",
			"outcome", "warning",
			"key", key,
			"error", err,
		)
		return nil
	}
	if updated.LockedUntil != nil && updated.LockedUntil.After(now) {
		return domain.NewError(domain.ErrRateLimited, "Too many requests. Please try again later")
	}
	return nil
}
