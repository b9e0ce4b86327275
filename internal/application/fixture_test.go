package application_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/viralforge/invoicing-accounts/internal/adapters/memory"
	"github.com/viralforge/invoicing-accounts/internal/adapters/security"
	"github.com/viralforge/invoicing-accounts/internal/application"
	"github.com/viralforge/invoicing-accounts/internal/domain"
)

const testPassword = "SecurePass123!"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// plainHasher keeps the tests fast; bcrypt is covered in the security package.
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "plain:" + password, nil }

func (plainHasher) Compare(hash, password string) error {
	if hash != "plain:"+password {
		return errors.New("password mismatch")
	}
	return nil
}

type fixture struct {
	service  *application.Service
	store    *memory.Store
	lockouts *memory.LockoutStore
	tokens   *security.TokenIssuer
	clock    *fakeClock
}

func newFixture(t *testing.T, configure ...func(*application.Config)) *fixture {
	t.Helper()

	clock := &fakeClock{now: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)}
	tokens, err := security.NewEphemeralTokenIssuer(security.TokenConfig{
		KeyID:      "test-key",
		Issuer:     "Invoice Manager LLC",
		Audience:   "CUSTOMER_MANAGEMENT_SERVICE",
		AccessTTL:  30 * time.Minute,
		RefreshTTL: 5 * 24 * time.Hour,
		Now:        clock.Now,
	})
	if err != nil {
		t.Fatalf("create token issuer: %v", err)
	}

	cfg := application.Config{
		PublicBaseURL:         "https://invoices.example.com/",
		CodeTTL:               24 * time.Hour,
		LinkTTL:               24 * time.Hour,
		FailedLoginThreshold:  3,
		LockoutDuration:       15 * time.Minute,
		ResetRequestThreshold: 5,
		ResetRequestWindow:    time.Hour,
	}
	for _, fn := range configure {
		fn(&cfg)
	}

	store := memory.NewStore()
	lockouts := memory.NewLockoutStore()
	return &fixture{
		service: application.NewService(application.Dependencies{
			Config:        cfg,
			Accounts:      store,
			Verifications: store,
			Lockouts:      lockouts,
			Hasher:        plainHasher{},
			Tokens:        tokens,
			Now:           clock.Now,
		}),
		store:    store,
		lockouts: lockouts,
		tokens:   tokens,
		clock:    clock,
	}
}

func (f *fixture) register(t *testing.T, email string) application.AccountView {
	t.Helper()
	res, err := f.service.Register(context.Background(), application.RegisterRequest{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     email,
		Password:  testPassword,
	})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return res.Account
}

func (f *fixture) activate(t *testing.T, accountID uuid.UUID) {
	t.Helper()
	link, ok := f.store.Link(accountID, domain.LinkKindAccount)
	if !ok {
		t.Fatalf("no activation link for %s", accountID)
	}
	if _, err := f.service.VerifyAccountLink(context.Background(), link.Token); err != nil {
		t.Fatalf("activate %s: %v", accountID, err)
	}
}

// activeAccount registers and activates email.
func (f *fixture) activeAccount(t *testing.T, email string) application.AccountView {
	t.Helper()
	view := f.register(t, email)
	f.activate(t, view.ID)
	return view
}

func (f *fixture) eventsOfType(eventType string) int {
	n := 0
	for _, ev := range f.store.Events() {
		if ev.EventType == eventType {
			n++
		}
	}
	return n
}

func hasAuthority(authorities []string, want string) bool {
	for _, a := range authorities {
		if strings.EqualFold(a, want) {
			return true
		}
	}
	return false
}
