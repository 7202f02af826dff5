package goIdentity

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goIdentity/password"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

func newTestHasher(t *testing.T) *password.Hasher {
	t.Helper()

	h, err := password.New(password.Config{
		Memory:      8192,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("password.New failed: %v", err)
	}
	return h
}

func testConfig() Config {
	cfg := defaultConfig()
	cfg.TwoFactor.Issuer = "goIdentity-test"
	cfg.Registration.DefaultRole = "member"
	return cfg
}

func newTestFlow(t *testing.T, rdb *redis.Client, creds *memoryCredentialStore, roles *memoryRoleStore, cfg Config) *Flow {
	t.Helper()

	return &Flow{
		config:      cfg,
		credentials: creds,
		roles:       roles,
		tokens:      newRedisTokenIssuer(rdb, cfg.Token),
		notifier:    NoOpSender{},
		challenges:  newChallengeStore(rdb),
		enrollments: newEnrollmentStore(rdb),
		links:       newLinkStore(rdb),
		metrics:     NewMetrics(MetricsConfig{Enabled: true}),
		secretHash:  newTestHasher(t),
		totp:        newTOTPManager(cfg.TwoFactor),
	}
}

func seedAccount(t *testing.T, creds *memoryCredentialStore, hasher *password.Hasher, handle, secret string) *Account {
	t.Helper()

	hash, err := hasher.Hash(secret)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	account := &Account{
		AccountID:      "acct-" + handle,
		Handle:         handle,
		SecretHash:     hash,
		EmailConfirmed: true,
		LockoutEnabled: true,
	}
	if err := creds.Create(context.Background(), account); err != nil {
		t.Fatalf("seed Create failed: %v", err)
	}
	return account
}

func totpCodeAt(t *testing.T, secret []byte, at time.Time, cfg TwoFactorConfig) string {
	t.Helper()

	counter := at.Unix() / int64(cfg.Period)
	code, err := hotpCode(secret, counter, cfg.Digits, cfg.Algorithm)
	if err != nil {
		t.Fatalf("hotpCode failed: %v", err)
	}
	return code
}

type memoryCredentialStore struct {
	mu       sync.Mutex
	byID     map[string]*Account
	byHandle map[string]string
	secrets  map[string]*TwoFactorSecret

	failErr error
}

func newMemoryCredentialStore() *memoryCredentialStore {
	return &memoryCredentialStore{
		byID:     make(map[string]*Account),
		byHandle: make(map[string]string),
		secrets:  make(map[string]*TwoFactorSecret),
	}
}

func (m *memoryCredentialStore) account(accountID string) (*Account, error) {
	account, ok := m.byID[accountID]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return account, nil
}

func (m *memoryCredentialStore) FindByHandle(_ context.Context, handle string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failErr != nil {
		return nil, m.failErr
	}

	id, ok := m.byHandle[handle]
	if !ok {
		return nil, ErrAccountNotFound
	}
	copied := *m.byID[id]
	return &copied, nil
}

func (m *memoryCredentialStore) FindByID(_ context.Context, accountID string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, err := m.account(accountID)
	if err != nil {
		return nil, err
	}
	copied := *account
	return &copied, nil
}

func (m *memoryCredentialStore) Create(_ context.Context, account *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byHandle[account.Handle]; ok {
		return ErrAccountExists
	}
	copied := *account
	m.byID[copied.AccountID] = &copied
	m.byHandle[copied.Handle] = copied.AccountID
	return nil
}

func (m *memoryCredentialStore) SetSecretHash(_ context.Context, accountID, secretHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, err := m.account(accountID)
	if err != nil {
		return err
	}
	account.SecretHash = secretHash
	return nil
}

func (m *memoryCredentialStore) SetEmailConfirmed(_ context.Context, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, err := m.account(accountID)
	if err != nil {
		return err
	}
	account.EmailConfirmed = true
	return nil
}

func (m *memoryCredentialStore) RecordFailure(_ context.Context, accountID string, threshold int, lockUntil time.Time) (bool, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, err := m.account(accountID)
	if err != nil {
		return false, 0, err
	}

	account.FailedAttempts++
	attempts := account.FailedAttempts

	if account.LockoutEnabled && attempts >= threshold {
		account.FailedAttempts = 0
		account.LockoutExpiry = lockUntil
		return true, attempts, nil
	}
	return false, attempts, nil
}

func (m *memoryCredentialStore) ResetFailures(_ context.Context, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, err := m.account(accountID)
	if err != nil {
		return err
	}
	account.FailedAttempts = 0
	account.LockoutExpiry = time.Time{}
	return nil
}

func (m *memoryCredentialStore) GetTwoFactorSecret(_ context.Context, accountID string) (*TwoFactorSecret, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	secret, ok := m.secrets[accountID]
	if !ok {
		return nil, ErrAccountNotFound
	}
	copied := *secret
	copied.Secret = append([]byte(nil), secret.Secret...)
	return &copied, nil
}

func (m *memoryCredentialStore) SetTwoFactorSecret(_ context.Context, accountID string, secret []byte, generation uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, err := m.account(accountID)
	if err != nil {
		return err
	}
	m.secrets[accountID] = &TwoFactorSecret{
		Secret:     append([]byte(nil), secret...),
		Generation: generation,
	}
	account.TwoFactorEnabled = true
	return nil
}

func (m *memoryCredentialStore) ClearTwoFactorSecret(_ context.Context, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, err := m.account(accountID)
	if err != nil {
		return err
	}
	delete(m.secrets, accountID)
	account.TwoFactorEnabled = false
	return nil
}

func (m *memoryCredentialStore) UpdateTwoFactorLastUsed(_ context.Context, accountID string, counter int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	secret, ok := m.secrets[accountID]
	if !ok {
		return ErrAccountNotFound
	}
	if counter <= secret.LastUsedCounter {
		return ErrCodeAlreadyUsed
	}
	secret.LastUsedCounter = counter
	return nil
}

func (m *memoryCredentialStore) failedAttempts(t *testing.T, accountID string) int {
	t.Helper()

	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.byID[accountID]
	if !ok {
		t.Fatalf("account %q not found", accountID)
	}
	return account.FailedAttempts
}

type memoryRoleStore struct {
	mu          sync.Mutex
	nextID      int
	names       map[string]string
	assignments map[string]map[string]struct{}

	failErr error
}

func newMemoryRoleStore() *memoryRoleStore {
	return &memoryRoleStore{
		names:       make(map[string]string),
		assignments: make(map[string]map[string]struct{}),
	}
}

func (m *memoryRoleStore) Lookup(_ context.Context, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failErr != nil {
		return "", m.failErr
	}

	for id, n := range m.names {
		if n == name {
			return id, nil
		}
	}
	return "", ErrRoleNotFound
}

func (m *memoryRoleStore) Create(_ context.Context, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	id := fmt.Sprintf("role-%d", m.nextID)
	m.names[id] = name
	return id, nil
}

func (m *memoryRoleStore) Update(_ context.Context, roleID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.names[roleID]; !ok {
		return ErrRoleNotFound
	}
	m.names[roleID] = name
	return nil
}

func (m *memoryRoleStore) Delete(_ context.Context, roleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.names[roleID]; !ok {
		return ErrRoleNotFound
	}
	delete(m.names, roleID)
	delete(m.assignments, roleID)
	return nil
}

func (m *memoryRoleStore) CountAssignments(_ context.Context, roleID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failErr != nil {
		return 0, m.failErr
	}

	if _, ok := m.names[roleID]; !ok {
		return 0, ErrRoleNotFound
	}
	return len(m.assignments[roleID]), nil
}

func (m *memoryRoleStore) Assign(_ context.Context, accountID, roleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.names[roleID]; !ok {
		return ErrRoleNotFound
	}
	if m.assignments[roleID] == nil {
		m.assignments[roleID] = make(map[string]struct{})
	}
	m.assignments[roleID][accountID] = struct{}{}
	return nil
}

func (m *memoryRoleStore) Unassign(_ context.Context, accountID, roleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.names[roleID]; !ok {
		return ErrRoleNotFound
	}
	delete(m.assignments[roleID], accountID)
	return nil
}

type recorderSender struct {
	mu   sync.Mutex
	sent []Notification

	failErr error
}

func (r *recorderSender) Send(_ context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failErr != nil {
		return r.failErr
	}
	r.sent = append(r.sent, n)
	return nil
}

func (r *recorderSender) notifications() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Notification, len(r.sent))
	copy(out, r.sent)
	return out
}
