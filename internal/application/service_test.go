package application_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/viralforge/invoicing-accounts/internal/application"
	"github.com/viralforge/invoicing-accounts/internal/domain"
)

func TestRegisterCreatesDisabledAccountWithActivationLink(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	view := f.register(t, "  Ada@Example.COM ")

	if view.ID == uuid.Nil {
		t.Fatalf("register returned empty account id")
	}
	if view.Email != "ada@example.com" {
		t.Fatalf("expected normalized email, got %q", view.Email)
	}
	if view.Enabled {
		t.Fatalf("new accounts must start disabled")
	}
	if !view.NotLocked {
		t.Fatalf("new accounts must start unlocked")
	}
	if view.RoleName != domain.DefaultRole {
		t.Fatalf("expected default role, got %q", view.RoleName)
	}

	link, ok := f.store.Link(view.ID, domain.LinkKindAccount)
	if !ok {
		t.Fatalf("expected an activation link")
	}
	if link.URL != "https://invoices.example.com/user/verify/account/"+link.Token {
		t.Fatalf("unexpected activation url %q", link.URL)
	}
	if !link.ExpiresAt.Equal(f.clock.Now().Add(24 * time.Hour)) {
		t.Fatalf("unexpected link expiry %s", link.ExpiresAt)
	}

	events := f.store.Events()
	if len(events) != 1 || events[0].EventType != domain.EventAccountRegistered {
		t.Fatalf("expected one registration event, got %+v", events)
	}
	var payload domain.DeliveryPayload
	if err := json.Unmarshal(events[0].Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.URL != link.URL || payload.Email != "ada@example.com" {
		t.Fatalf("registration payload does not carry the link: %+v", payload)
	}
	if events[0].PartitionKey != view.ID.String() {
		t.Fatalf("expected partition by account id, got %q", events[0].PartitionKey)
	}
}

func TestRegisterRejectsDuplicateEmailIgnoringCase(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.register(t, "dup@example.com")

	for _, email := range []string{"DUP@example.com", "  DUP@example.com ", "\tdup@EXAMPLE.com\n"} {
		_, err := f.service.Register(context.Background(), application.RegisterRequest{
			FirstName: "Other",
			LastName:  "Person",
			Email:     email,
			Password:  testPassword,
		})
		if !errors.Is(err, domain.ErrDuplicateEmail) {
			t.Fatalf("%q: expected duplicate email, got %v", email, err)
		}
		if got := domain.MessageOf(err, ""); !strings.HasPrefix(got, "Email already in use") {
			t.Fatalf("%q: unexpected message %q", email, got)
		}
	}
}

func TestRegisterValidatesInput(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.service.Register(context.Background(), application.RegisterRequest{
		Email:    "not-an-email",
		Password: "short",
	})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	msg := domain.MessageOf(err, "")
	for _, want := range []string{"First name cannot be empty", "Last name cannot be empty", "Invalid email", "at least 8 characters"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("expected %q in %q", want, msg)
		}
	}
	if len(f.store.Events()) != 0 {
		t.Fatalf("rejected registration must not queue events")
	}
}

func TestLoginBeforeActivationIsDisabled(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.register(t, "inactive@example.com")

	_, err := f.service.Login(context.Background(), application.LoginRequest{Email: "inactive@example.com", Password: testPassword})
	if !errors.Is(err, domain.ErrAccountDisabled) {
		t.Fatalf("expected disabled account, got %v", err)
	}
}

func TestLoginIssuesTokensAfterActivation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.activeAccount(t, "active@example.com")

	res, err := f.service.Login(context.Background(), application.LoginRequest{Email: "  Active@Example.com ", Password: testPassword})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if res.MFARequired || res.AccessToken == "" || res.RefreshToken == "" {
		t.Fatalf("expected both tokens, got %+v", res)
	}

	claims, err := f.tokens.ValidateAccess(res.AccessToken)
	if err != nil {
		t.Fatalf("validate access token: %v", err)
	}
	if claims.Subject != "active@example.com" {
		t.Fatalf("unexpected subject %q", claims.Subject)
	}
	if !hasAuthority(claims.Authorities, "READ:USER") {
		t.Fatalf("expected role permissions in token, got %v", claims.Authorities)
	}

	refreshClaims, err := f.tokens.ValidateRefresh(res.RefreshToken)
	if err != nil {
		t.Fatalf("validate refresh token: %v", err)
	}
	if len(refreshClaims.Authorities) != 0 {
		t.Fatalf("refresh token must not carry authorities")
	}
}

func TestLoginFailuresDoNotRevealWhichFieldWasWrong(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.activeAccount(t, "known@example.com")
	ctx := context.Background()

	_, wrongPassword := f.service.Login(ctx, application.LoginRequest{Email: "known@example.com", Password: "WrongPass123!"})
	_, unknownEmail := f.service.Login(ctx, application.LoginRequest{Email: "ghost@example.com", Password: testPassword})

	for _, err := range []error{wrongPassword, unknownEmail} {
		if !errors.Is(err, domain.ErrCredentialRejected) {
			t.Fatalf("expected credential rejection, got %v", err)
		}
	}
	if domain.MessageOf(wrongPassword, "a") != domain.MessageOf(unknownEmail, "b") {
		t.Fatalf("messages differ: %q vs %q", wrongPassword, unknownEmail)
	}
}

func TestLoginLocksAfterRepeatedFailures(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.activeAccount(t, "locked@example.com")
	ctx := context.Background()
	bad := application.LoginRequest{Email: "locked@example.com", Password: "WrongPass123!"}

	for i := 0; i < 2; i++ {
		if _, err := f.service.Login(ctx, bad); !errors.Is(err, domain.ErrCredentialRejected) {
			t.Fatalf("attempt %d: expected credential rejection, got %v", i+1, err)
		}
	}
	if _, err := f.service.Login(ctx, bad); !errors.Is(err, domain.ErrAccountLocked) {
		t.Fatalf("expected lockout on third failure, got %v", err)
	}

	good := application.LoginRequest{Email: "locked@example.com", Password: testPassword}
	if _, err := f.service.Login(ctx, good); !errors.Is(err, domain.ErrAccountLocked) {
		t.Fatalf("expected lockout to hold for the right password, got %v", err)
	}

	f.clock.Advance(15*time.Minute + time.Second)
	if _, err := f.service.Login(ctx, good); err != nil {
		t.Fatalf("expected login after lockout window, got %v", err)
	}
	state, _ := f.lockouts.Get(ctx, "login:locked@example.com")
	if state.FailedCount != 0 {
		t.Fatalf("successful login must clear the failure counter, got %d", state.FailedCount)
	}
}

func TestLoginLockoutLooksTheSameForUnknownEmails(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.activeAccount(t, "present@example.com")
	ctx := context.Background()

	for _, email := range []string{"present@example.com", "absent@example.com"} {
		bad := application.LoginRequest{Email: email, Password: "WrongPass123!"}
		for i := 0; i < 2; i++ {
			if _, err := f.service.Login(ctx, bad); !errors.Is(err, domain.ErrCredentialRejected) {
				t.Fatalf("%s attempt %d: expected credential rejection, got %v", email, i+1, err)
			}
		}
		_, err := f.service.Login(ctx, bad)
		if !errors.Is(err, domain.ErrAccountLocked) {
			t.Fatalf("%s: expected lockout on third failure, got %v", email, err)
		}
		if got := domain.MessageOf(err, ""); got != "User account is currently locked" {
			t.Fatalf("%s: unexpected message %q", email, got)
		}
	}
}

func TestLoginReportsOperatorLock(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	view := f.activeAccount(t, "operator@example.com")
	f.store.Update(view.ID, func(a *domain.Account) { a.NonLocked = false })

	_, err := f.service.Login(context.Background(), application.LoginRequest{Email: "operator@example.com", Password: testPassword})
	if !errors.Is(err, domain.ErrAccountLocked) {
		t.Fatalf("expected locked account, got %v", err)
	}
}

func TestLoginWithMFARequiresEmailedCode(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	view := f.activeAccount(t, "mfa@example.com")
	f.store.Update(view.ID, func(a *domain.Account) { a.UsingMFA = true })
	ctx := context.Background()

	res, err := f.service.Login(ctx, application.LoginRequest{Email: "mfa@example.com", Password: testPassword})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if !res.MFARequired || res.AccessToken != "" || res.RefreshToken != "" {
		t.Fatalf("expected a pending code and no tokens, got %+v", res)
	}
	code, ok := f.store.Code(view.ID)
	if !ok {
		t.Fatalf("expected a stored code")
	}
	if len(code.Code) != 8 || strings.ToUpper(code.Code) != code.Code {
		t.Fatalf("code must be 8 uppercase characters, got %q", code.Code)
	}
	if f.eventsOfType(domain.EventVerificationCodeIssued) != 1 {
		t.Fatalf("expected one code delivery event")
	}

	verified, err := f.service.VerifyCode(ctx, "MFA@example.com", strings.ToLower(code.Code))
	if err != nil {
		t.Fatalf("verify code failed: %v", err)
	}
	if verified.AccessToken == "" || verified.RefreshToken == "" {
		t.Fatalf("expected tokens after code verification")
	}

	if _, err := f.service.VerifyCode(ctx, "mfa@example.com", code.Code); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected a used code to be gone, got %v", err)
	}
}

func TestLoginWithMFAReplacesPendingCode(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	view := f.activeAccount(t, "twice@example.com")
	f.store.Update(view.ID, func(a *domain.Account) { a.UsingMFA = true })
	ctx := context.Background()
	req := application.LoginRequest{Email: "twice@example.com", Password: testPassword}

	if _, err := f.service.Login(ctx, req); err != nil {
		t.Fatalf("first login: %v", err)
	}
	first, _ := f.store.Code(view.ID)
	if _, err := f.service.Login(ctx, req); err != nil {
		t.Fatalf("second login: %v", err)
	}
	second, _ := f.store.Code(view.ID)
	if first.Code == second.Code {
		t.Skip("random codes collided")
	}
	if _, err := f.service.VerifyCode(ctx, "twice@example.com", first.Code); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected replaced code to be rejected, got %v", err)
	}
}

func TestVerifyCodeRejectsAnotherAccountsEmail(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	owner := f.activeAccount(t, "owner@example.com")
	f.activeAccount(t, "intruder@example.com")
	f.store.Update(owner.ID, func(a *domain.Account) { a.UsingMFA = true })
	ctx := context.Background()

	if _, err := f.service.Login(ctx, application.LoginRequest{Email: "owner@example.com", Password: testPassword}); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	code, _ := f.store.Code(owner.ID)

	if _, err := f.service.VerifyCode(ctx, "intruder@example.com", code.Code); !errors.Is(err, domain.ErrMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
	if _, ok := f.store.Code(owner.ID); !ok {
		t.Fatalf("a mismatched attempt must not consume the code")
	}
}

func TestVerifyCodeExpiry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		advance time.Duration
		wantErr error
	}{
		{name: "valid at expiry instant", advance: 24 * time.Hour},
		{name: "expired one second later", advance: 24*time.Hour + time.Second, wantErr: domain.ErrExpired},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			view := f.activeAccount(t, "expiry@example.com")
			f.store.Update(view.ID, func(a *domain.Account) { a.UsingMFA = true })
			ctx := context.Background()
			if _, err := f.service.Login(ctx, application.LoginRequest{Email: "expiry@example.com", Password: testPassword}); err != nil {
				t.Fatalf("login failed: %v", err)
			}
			code, _ := f.store.Code(view.ID)

			f.clock.Advance(tc.advance)
			_, err := f.service.VerifyCode(ctx, "expiry@example.com", code.Code)
			if tc.wantErr == nil && err != nil {
				t.Fatalf("expected success, got %v", err)
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestRefreshIssuesAccessTokenAndKeepsRefreshToken(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.activeAccount(t, "refresh@example.com")
	ctx := context.Background()

	login, err := f.service.Login(ctx, application.LoginRequest{Email: "refresh@example.com", Password: testPassword})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	f.clock.Advance(time.Minute)

	res, err := f.service.Refresh(ctx, login.RefreshToken)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if res.RefreshToken != login.RefreshToken {
		t.Fatalf("refresh token must be returned unchanged")
	}
	claims, err := f.tokens.ValidateAccess(res.AccessToken)
	if err != nil {
		t.Fatalf("validate refreshed access token: %v", err)
	}
	if !claims.IssuedAt.After(time.Time{}) || !hasAuthority(claims.Authorities, "READ:USER") {
		t.Fatalf("unexpected refreshed claims %+v", claims)
	}
}

func TestRefreshRejectsBadTokens(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.activeAccount(t, "bad-refresh@example.com")
	ctx := context.Background()

	if _, err := f.service.Refresh(ctx, "not-a-token"); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected invalid token, got %v", err)
	}

	login, err := f.service.Login(ctx, application.LoginRequest{Email: "bad-refresh@example.com", Password: testPassword})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	f.clock.Advance(6 * 24 * time.Hour)
	if _, err := f.service.Refresh(ctx, login.RefreshToken); !errors.Is(err, domain.ErrExpired) {
		t.Fatalf("expected expired refresh token, got %v", err)
	}
}

func TestTokenKindsAreNotInterchangeable(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.activeAccount(t, "kinds@example.com")
	ctx := context.Background()

	login, err := f.service.Login(ctx, application.LoginRequest{Email: "kinds@example.com", Password: testPassword})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if _, err := f.service.Refresh(ctx, login.AccessToken); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("access token must not refresh, got %v", err)
	}
	if _, err := f.service.Authenticate(ctx, login.RefreshToken); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("refresh token must not authenticate, got %v", err)
	}
	if _, err := f.service.ValidateToken(login.RefreshToken); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("refresh token must not pass internal validation, got %v", err)
	}
}

func TestAuthenticateAndAccountLookup(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.activeAccount(t, "reader@example.com")
	other := f.register(t, "other@example.com")
	ctx := context.Background()

	login, err := f.service.Login(ctx, application.LoginRequest{Email: "reader@example.com", Password: testPassword})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	principal, err := f.service.Authenticate(ctx, login.AccessToken)
	if err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}
	if principal.Subject() != "reader@example.com" {
		t.Fatalf("unexpected principal %q", principal.Subject())
	}

	profile, err := f.service.Profile(ctx, principal)
	if err != nil || profile.Email != "reader@example.com" {
		t.Fatalf("profile: %+v, %v", profile, err)
	}

	found, err := f.service.AccountByID(ctx, principal, other.ID)
	if err != nil || found.Email != "other@example.com" {
		t.Fatalf("account by id: %+v, %v", found, err)
	}

	if _, err := f.service.AccountByID(ctx, principal, uuid.New()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	principal.Authorities = nil
	if _, err := f.service.AccountByID(ctx, principal, other.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}

	if _, err := f.service.Authenticate(ctx, "garbage"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestStorageFaultSurfacesAsOperationFailed(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.store.FailNext(1)

	_, err := f.service.Register(context.Background(), application.RegisterRequest{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "fault@example.com",
		Password:  testPassword,
	})
	if !errors.Is(err, domain.ErrOperationFailed) {
		t.Fatalf("expected operation failed, got %v", err)
	}
}
