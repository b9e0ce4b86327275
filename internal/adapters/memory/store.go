// Package memory keeps accounts and verification artifacts in process memory.
// It backs the application and HTTP tests with the same semantics as the postgres store.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/viralforge/invoicing-accounts/internal/domain"
	"github.com/viralforge/invoicing-accounts/internal/ports"
)

type linkKey struct {
	accountID uuid.UUID
	kind      domain.LinkKind
}

// Store implements ports.AccountRepository and ports.VerificationRepository.
type Store struct {
	mu          sync.Mutex
	accounts    map[uuid.UUID]domain.Account
	byEmail     map[string]uuid.UUID
	roles       map[string][]string
	codes       map[uuid.UUID]domain.VerificationCode
	links       map[linkKey]domain.VerificationLink
	events      []ports.OutboxEvent
	failNextOps int
}

func NewStore() *Store {
	return &Store{
		accounts: make(map[uuid.UUID]domain.Account),
		byEmail:  make(map[string]uuid.UUID),
		roles: map[string][]string{
			"ROLE_USER":     {"READ:USER", "READ:CUSTOMER"},
			"ROLE_MANAGER":  {"READ:USER", "READ:CUSTOMER", "UPDATE:USER", "UPDATE:CUSTOMER"},
			"ROLE_ADMIN":    {"READ:USER", "READ:CUSTOMER", "CREATE:USER", "CREATE:CUSTOMER", "UPDATE:USER", "UPDATE:CUSTOMER"},
			"ROLE_SYSADMIN": {"READ:USER", "READ:CUSTOMER", "CREATE:USER", "CREATE:CUSTOMER", "UPDATE:USER", "UPDATE:CUSTOMER", "DELETE:USER", "DELETE:CUSTOMER"},
		},
		codes: make(map[uuid.UUID]domain.VerificationCode),
		links: make(map[linkKey]domain.VerificationLink),
	}
}

// FailNext makes the next n operations return domain.ErrOperationFailed.
func (s *Store) FailNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNextOps = n
}

func (s *Store) failing() bool {
	if s.failNextOps > 0 {
		s.failNextOps--
		return true
	}
	return false
}

func (s *Store) withRole(a domain.Account) domain.Account {
	a.Permissions = append([]string(nil), s.roles[a.RoleName]...)
	return a
}

func (s *Store) CreateWithActivation(_ context.Context, params ports.CreateAccountParams, link domain.VerificationLink, event ports.OutboxEvent) (domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing() {
		return domain.Account{}, domain.ErrOperationFailed
	}
	email := strings.ToLower(strings.TrimSpace(params.Email))
	if _, exists := s.byEmail[email]; exists {
		return domain.Account{}, domain.ErrDuplicateEmail
	}
	if _, ok := s.roles[params.RoleName]; !ok {
		return domain.Account{}, domain.ErrOperationFailed
	}
	id := params.AccountID
	if id == uuid.Nil {
		id = uuid.New()
	}
	account := domain.Account{
		AccountID:    id,
		FirstName:    params.FirstName,
		LastName:     params.LastName,
		Email:        email,
		PasswordHash: params.PasswordHash,
		NonLocked:    true,
		RoleName:     params.RoleName,
		CreatedAt:    params.CreatedAt,
		UpdatedAt:    params.CreatedAt,
	}
	s.accounts[id] = account
	s.byEmail[email] = id
	link.AccountID = id
	s.links[linkKey{accountID: id, kind: link.Kind}] = link
	s.events = append(s.events, event)
	return s.withRole(account), nil
}

func (s *Store) CountByEmail(_ context.Context, email string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing() {
		return 0, domain.ErrOperationFailed
	}
	if _, ok := s.byEmail[strings.ToLower(strings.TrimSpace(email))]; ok {
		return 1, nil
	}
	return 0, nil
}

func (s *Store) GetByEmail(_ context.Context, email string) (domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing() {
		return domain.Account{}, domain.ErrOperationFailed
	}
	id, ok := s.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return domain.Account{}, domain.ErrNotFound
	}
	return s.withRole(s.accounts[id]), nil
}

func (s *Store) GetByID(_ context.Context, accountID uuid.UUID) (domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing() {
		return domain.Account{}, domain.ErrOperationFailed
	}
	account, ok := s.accounts[accountID]
	if !ok {
		return domain.Account{}, domain.ErrNotFound
	}
	return s.withRole(account), nil
}

func (s *Store) SetEnabled(_ context.Context, accountID uuid.UUID, enabled bool, at time.Time, event *ports.OutboxEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[accountID]
	if !ok {
		return domain.ErrNotFound
	}
	account.Enabled = enabled
	account.UpdatedAt = at
	s.accounts[accountID] = account
	if event != nil {
		s.events = append(s.events, *event)
	}
	return nil
}

func (s *Store) SetPassword(_ context.Context, accountID uuid.UUID, passwordHash string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[accountID]
	if !ok {
		return domain.ErrNotFound
	}
	account.PasswordHash = passwordHash
	account.UpdatedAt = at
	s.accounts[accountID] = account
	return nil
}

func (s *Store) Permissions(_ context.Context, accountID uuid.UUID) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[accountID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return append([]string(nil), s.roles[account.RoleName]...), nil
}

func (s *Store) UpsertCode(_ context.Context, code domain.VerificationCode, event ports.OutboxEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing() {
		return domain.ErrOperationFailed
	}
	s.codes[code.AccountID] = code
	s.events = append(s.events, event)
	return nil
}

func (s *Store) FindCode(_ context.Context, code string) (domain.VerificationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.codes {
		if c.Code == code {
			return c, nil
		}
	}
	return domain.VerificationCode{}, domain.ErrNotFound
}

func (s *Store) ConsumeCode(_ context.Context, accountID uuid.UUID, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.codes[accountID]
	if !ok || c.Code != code {
		return domain.ErrNotFound
	}
	delete(s.codes, accountID)
	return nil
}

func (s *Store) UpsertLink(_ context.Context, link domain.VerificationLink, event ports.OutboxEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing() {
		return domain.ErrOperationFailed
	}
	s.links[linkKey{accountID: link.AccountID, kind: link.Kind}] = link
	s.events = append(s.events, event)
	return nil
}

func (s *Store) FindLink(_ context.Context, kind domain.LinkKind, token string) (domain.VerificationLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, l := range s.links {
		if key.kind == kind && l.Token == token {
			return l, nil
		}
	}
	return domain.VerificationLink{}, domain.ErrNotFound
}

func (s *Store) ResetPasswordWithLink(_ context.Context, link domain.VerificationLink, passwordHash string, at time.Time, event ports.OutboxEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := linkKey{accountID: link.AccountID, kind: domain.LinkKindPassword}
	current, ok := s.links[key]
	if !ok || current.Token != link.Token {
		return domain.ErrNotFound
	}
	account, ok := s.accounts[link.AccountID]
	if !ok {
		return domain.ErrNotFound
	}
	account.PasswordHash = passwordHash
	account.UpdatedAt = at
	s.accounts[link.AccountID] = account
	delete(s.links, key)
	s.events = append(s.events, event)
	return nil
}

// Update applies fn to the stored account, e.g. to turn on MFA in tests.
func (s *Store) Update(accountID uuid.UUID, fn func(*domain.Account)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[accountID]
	if !ok {
		return
	}
	fn(&account)
	s.accounts[accountID] = account
}

// Code returns the pending code of accountID.
func (s *Store) Code(accountID uuid.UUID) (domain.VerificationCode, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.codes[accountID]
	return c, ok
}

// Link returns the live link of accountID for kind.
func (s *Store) Link(accountID uuid.UUID, kind domain.LinkKind) (domain.VerificationLink, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.links[linkKey{accountID: accountID, kind: kind}]
	return l, ok
}

// LinkCount returns how many links of kind exist for accountID.
func (s *Store) LinkCount(accountID uuid.UUID, kind domain.LinkKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for key := range s.links {
		if key.accountID == accountID && key.kind == kind {
			n++
		}
	}
	return n
}

// Events returns the outbox events written so far.
func (s *Store) Events() []ports.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.OutboxEvent(nil), s.events...)
}
