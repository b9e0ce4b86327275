package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/viralforge/invoicing-accounts/internal/domain"
	"github.com/viralforge/invoicing-accounts/internal/ports"
)

const (
	msgCodeExpired  = "This code has expired. Please login again."
	msgCodeInvalid  = "Code is invalid. Please try again."
	msgCodeNotFound = "Unable to find record"

	msgPasswordLinkExpired  = "This link has expired. Please reset your password again"
	msgPasswordLinkNotFound = "This link is not valid. Please reset your password again"
	msgAccountLinkExpired   = "This link has expired. Please request a new activation link"
	msgAccountLinkNotFound  = "This link is not valid"
)

// VerificationEngine issues and checks one-time codes and links.
// Expiry is evaluated lazily against the injected clock.
type VerificationEngine struct {
	baseURL       string
	codeTTL       time.Duration
	linkTTL       time.Duration
	accounts      ports.AccountRepository
	verifications ports.VerificationRepository
	hasher        ports.PasswordHasher
	nowFn         func() time.Time
}

func NewVerificationEngine(
	cfg Config,
	accounts ports.AccountRepository,
	verifications ports.VerificationRepository,
	hasher ports.PasswordHasher,
	nowFn func() time.Time,
) *VerificationEngine {
	return &VerificationEngine{
		baseURL:       strings.TrimRight(cfg.PublicBaseURL, "/"),
		codeTTL:       cfg.CodeTTL,
		linkTTL:       cfg.LinkTTL,
		accounts:      accounts,
		verifications: verifications,
		hasher:        hasher,
		nowFn:         nowFn,
	}
}

// LinkResult is the outcome of a successful VerifyLink.
type LinkResult struct {
	Account         domain.Account
	Link            domain.VerificationLink
	AlreadyVerified bool
}

// IssueCode replaces any pending code of the account with a fresh one.
func (e *VerificationEngine) IssueCode(ctx context.Context, account domain.Account) (domain.VerificationCode, error) {
	value, err := randomCode(codeLength)
	if err != nil {
		return domain.VerificationCode{}, err
	}
	now := e.nowFn()
	code := domain.VerificationCode{
		AccountID: account.AccountID,
		Code:      value,
		ExpiresAt: now.Add(e.codeTTL),
		CreatedAt: now,
	}
	event := newOutboxEvent(domain.EventVerificationCodeIssued, domain.DeliveryPayload{
		AccountID: account.AccountID.String(),
		Email:     account.Email,
		FirstName: account.FirstName,
		Code:      code.Code,
		ExpiresAt: code.ExpiresAt,
	}, now)
	if err := e.verifications.UpsertCode(ctx, code, event); err != nil {
		return domain.VerificationCode{}, err
	}
	return code, nil
}

// VerifyCode consumes code when it belongs to the account registered under email.
// A second call with the same code reports NotFound.
func (e *VerificationEngine) VerifyCode(ctx context.Context, email, code string) (domain.Account, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return domain.Account{}, domain.NewError(domain.ErrNotFound, msgCodeNotFound)
	}

	stored, err := e.verifications.FindCode(ctx, code)
	if err != nil {
		return domain.Account{}, notFoundAs(err, msgCodeNotFound)
	}
	if domain.IsExpired(stored.ExpiresAt, e.nowFn()) {
		return domain.Account{}, domain.NewError(domain.ErrExpired, msgCodeExpired)
	}

	account, err := e.accounts.GetByID(ctx, stored.AccountID)
	if err != nil {
		return domain.Account{}, notFoundAs(err, msgCodeNotFound)
	}
	if !strings.EqualFold(account.Email, strings.TrimSpace(email)) {
		return domain.Account{}, domain.NewError(domain.ErrMismatch, msgCodeInvalid)
	}

	if err := e.verifications.ConsumeCode(ctx, stored.AccountID, stored.Code); err != nil {
		return domain.Account{}, notFoundAs(err, msgCodeNotFound)
	}
	return account, nil
}

// NewLink builds an unsaved link for accountID. The token is a random UUID.
func (e *VerificationEngine) NewLink(accountID uuid.UUID, kind domain.LinkKind) domain.VerificationLink {
	now := e.nowFn()
	token := uuid.NewString()
	return domain.VerificationLink{
		AccountID: accountID,
		Kind:      kind,
		Token:     token,
		URL:       fmt.Sprintf("%s/user/verify/%s/%s", e.baseURL, kind, token),
		ExpiresAt: now.Add(e.linkTTL),
		CreatedAt: now,
	}
}

// IssueLink replaces the account's link of the given kind and queues its delivery.
func (e *VerificationEngine) IssueLink(ctx context.Context, account domain.Account, kind domain.LinkKind) (domain.VerificationLink, error) {
	link := e.NewLink(account.AccountID, kind)
	event := newOutboxEvent(domain.EventVerificationLinkIssued, domain.DeliveryPayload{
		AccountID: account.AccountID.String(),
		Email:     account.Email,
		FirstName: account.FirstName,
		Kind:      kind,
		URL:       link.URL,
		ExpiresAt: link.ExpiresAt,
	}, link.CreatedAt)
	if err := e.verifications.UpsertLink(ctx, link, event); err != nil {
		return domain.VerificationLink{}, err
	}
	return link, nil
}

// VerifyLink checks token for kind. Expiry is evaluated before the account is loaded.
// For account links the owner is enabled; a repeat visit reports AlreadyVerified.
func (e *VerificationEngine) VerifyLink(ctx context.Context, token string, kind domain.LinkKind) (LinkResult, error) {
	link, err := e.findLiveLink(ctx, token, kind)
	if err != nil {
		return LinkResult{}, err
	}

	account, err := e.accounts.GetByID(ctx, link.AccountID)
	if err != nil {
		return LinkResult{}, notFoundAs(err, linkNotFoundMessage(kind))
	}
	result := LinkResult{Account: account, Link: link}
	if kind != domain.LinkKindAccount {
		return result, nil
	}
	if account.Enabled {
		result.AlreadyVerified = true
		return result, nil
	}

	now := e.nowFn()
	event := newOutboxEvent(domain.EventAccountActivated, domain.DeliveryPayload{
		AccountID: account.AccountID.String(),
		Email:     account.Email,
		FirstName: account.FirstName,
	}, now)
	if err := e.accounts.SetEnabled(ctx, account.AccountID, true, now, &event); err != nil {
		return LinkResult{}, err
	}
	result.Account.Enabled = true
	return result, nil
}

// ConsumeLinkForPasswordReset stores the hash of newPassword and deletes the link.
// Callers verify the link and the password policy first.
func (e *VerificationEngine) ConsumeLinkForPasswordReset(ctx context.Context, token, newPassword string) error {
	link, err := e.findLiveLink(ctx, token, domain.LinkKindPassword)
	if err != nil {
		return err
	}
	account, err := e.accounts.GetByID(ctx, link.AccountID)
	if err != nil {
		return notFoundAs(err, msgPasswordLinkNotFound)
	}

	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	now := e.nowFn()
	event := newOutboxEvent(domain.EventAccountPasswordChanged, domain.DeliveryPayload{
		AccountID: account.AccountID.String(),
		Email:     account.Email,
		FirstName: account.FirstName,
	}, now)
	if err := e.verifications.ResetPasswordWithLink(ctx, link, hash, now, event); err != nil {
		return notFoundAs(err, msgPasswordLinkNotFound)
	}
	return nil
}

func (e *VerificationEngine) findLiveLink(ctx context.Context, token string, kind domain.LinkKind) (domain.VerificationLink, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.VerificationLink{}, domain.NewError(domain.ErrNotFound, linkNotFoundMessage(kind))
	}
	link, err := e.verifications.FindLink(ctx, kind, token)
	if err != nil {
		return domain.VerificationLink{}, notFoundAs(err, linkNotFoundMessage(kind))
	}
	if domain.IsExpired(link.ExpiresAt, e.nowFn()) {
		if kind == domain.LinkKindAccount {
			return domain.VerificationLink{}, domain.NewError(domain.ErrExpired, msgAccountLinkExpired)
		}
		return domain.VerificationLink{}, domain.NewError(domain.ErrExpired, msgPasswordLinkExpired)
	}
	return link, nil
}

func linkNotFoundMessage(kind domain.LinkKind) string {
	if kind == domain.LinkKindAccount {
		return msgAccountLinkNotFound
	}
	return msgPasswordLinkNotFound
}

// notFoundAs attaches message to a NotFound error and passes other errors through.
func notFoundAs(err error, message string) error {
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NewError(domain.ErrNotFound, message)
	}
	return err
}
