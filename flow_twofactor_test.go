package goIdentity

import (
	"context"
	"errors"
	"testing"
	"time"
)

func beginChallenge(t *testing.T, ctx context.Context, flow *Flow, creds *memoryCredentialStore, handle string) ([]byte, *AuthResult) {
	t.Helper()

	account := seedAccount(t, creds, flow.secretHash, handle, "correct-horse")

	secret, _, err := flow.totp.GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret failed: %v", err)
	}
	if err := creds.SetTwoFactorSecret(ctx, account.AccountID, secret, 1); err != nil {
		t.Fatalf("SetTwoFactorSecret failed: %v", err)
	}

	result, err := flow.BeginPrimaryAuth(ctx, handle, "correct-horse", true)
	if err != nil {
		t.Fatalf("BeginPrimaryAuth failed: %v", err)
	}
	if result.Outcome != OutcomeTwoFactorPending {
		t.Fatalf("expected pending challenge, got %v", result.Outcome)
	}
	return secret, result
}

func TestCompleteTwoFactorSuccess(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	creds := newMemoryCredentialStore()
	flow := newTestFlow(t, rdb, creds, newMemoryRoleStore(), testConfig())

	secret, pending := beginChallenge(t, ctx, flow, creds, "alice@example.com")
	code := totpCodeAt(t, secret, time.Now(), flow.config.TwoFactor)

	result, err := flow.CompleteTwoFactor(ctx, pending.ChallengeID, code, true)
	if err != nil {
		t.Fatalf("CompleteTwoFactor failed: %v", err)
	}
	if result.Outcome != OutcomeAuthenticated {
		t.Fatalf("expected authenticated, got %v", result.Outcome)
	}
	if !result.RememberMe {
		t.Fatal("expected remember-me from the primary step to carry through")
	}
	if !result.RememberClient {
		t.Fatal("expected remember-client flag to carry through")
	}

	if rdb.Exists(ctx, "ifc:"+pending.ChallengeID).Val() != 0 {
		t.Fatal("expected challenge to be consumed")
	}
}

func TestCompleteTwoFactorWrongCode(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	creds := newMemoryCredentialStore()
	flow := newTestFlow(t, rdb, creds, newMemoryRoleStore(), testConfig())

	_, pending := beginChallenge(t, ctx, flow, creds, "alice@example.com")

	result, err := flow.CompleteTwoFactor(ctx, pending.ChallengeID, "000000", false)
	if err != nil {
		t.Fatalf("CompleteTwoFactor failed: %v", err)
	}
	if result.Outcome != OutcomeRejected {
		t.Fatalf("expected rejected, got %v", result.Outcome)
	}

	// The challenge survives a single wrong code.
	if rdb.Exists(ctx, "ifc:"+pending.ChallengeID).Val() != 1 {
		t.Fatal("expected challenge to remain after one wrong code")
	}
}

func TestCompleteTwoFactorFailuresDoNotTouchLockoutCounter(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	cfg := testConfig()
	cfg.Lockout.Threshold = 3
	cfg.TwoFactor.ChallengeMaxAttempts = 5
	creds := newMemoryCredentialStore()
	flow := newTestFlow(t, rdb, creds, newMemoryRoleStore(), cfg)

	_, pending := beginChallenge(t, ctx, flow, creds, "alice@example.com")
	accountID := pending.AccountID

	// More wrong codes than the primary lockout threshold allows.
	for i := 0; i < 4; i++ {
		result, err := flow.CompleteTwoFactor(ctx, pending.ChallengeID, "000000", false)
		if err != nil {
			t.Fatalf("attempt %d failed: %v", i, err)
		}
		if result.Outcome != OutcomeRejected {
			t.Fatalf("attempt %d: expected rejected, got %v", i, result.Outcome)
		}
	}

	if got := creds.failedAttempts(t, accountID); got != 0 {
		t.Fatalf("second-factor failures must not feed the lockout counter, got %d", got)
	}

	// The primary factor is unaffected: a fresh sign-in still works.
	result, err := flow.BeginPrimaryAuth(ctx, "alice@example.com", "correct-horse", false)
	if err != nil {
		t.Fatalf("BeginPrimaryAuth failed: %v", err)
	}
	if result.Outcome != OutcomeTwoFactorPending {
		t.Fatalf("expected a fresh challenge, got %v", result.Outcome)
	}
}

func TestCompleteTwoFactorLockedOutAccount(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	cfg := testConfig()
	cfg.Lockout.Threshold = 3
	creds := newMemoryCredentialStore()
	flow := newTestFlow(t, rdb, creds, newMemoryRoleStore(), cfg)

	secret, pending := beginChallenge(t, ctx, flow, creds, "alice@example.com")

	// The account gets locked by primary-credential failures while the
	// challenge is still outstanding.
	for i := 0; i < 3; i++ {
		result, err := flow.BeginPrimaryAuth(ctx, "alice@example.com", "not-the-secret", false)
		if err != nil {
			t.Fatalf("attempt %d failed: %v", i, err)
		}
		if i == 2 && result.Outcome != OutcomeLockedOut {
			t.Fatalf("expected lockout on attempt %d, got %v", i, result.Outcome)
		}
	}

	code := totpCodeAt(t, secret, time.Now(), cfg.TwoFactor)
	result, err := flow.CompleteTwoFactor(ctx, pending.ChallengeID, code, false)
	if err != nil {
		t.Fatalf("CompleteTwoFactor failed: %v", err)
	}
	if result.Outcome != OutcomeLockedOut {
		t.Fatalf("expected locked out even with a valid code, got %v", result.Outcome)
	}
	if result.LockedUntil.IsZero() {
		t.Fatal("expected LockedUntil to be set")
	}
}

// staleSecretStore reads the replay watermark as it was before any code had
// been accepted, imitating a fetch that raced with a concurrent completion.
type staleSecretStore struct {
	*memoryCredentialStore
}

func (s *staleSecretStore) GetTwoFactorSecret(ctx context.Context, accountID string) (*TwoFactorSecret, error) {
	tfs, err := s.memoryCredentialStore.GetTwoFactorSecret(ctx, accountID)
	if err != nil {
		return nil, err
	}
	tfs.LastUsedCounter = 0
	return tfs, nil
}

func TestCompleteTwoFactorStaleWatermarkRejected(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	creds := newMemoryCredentialStore()
	flow := newTestFlow(t, rdb, creds, newMemoryRoleStore(), testConfig())

	secret, first := beginChallenge(t, ctx, flow, creds, "alice@example.com")
	code := totpCodeAt(t, secret, time.Now(), flow.config.TwoFactor)

	if _, err := flow.CompleteTwoFactor(ctx, first.ChallengeID, code, false); err != nil {
		t.Fatalf("first completion failed: %v", err)
	}

	second, err := flow.BeginPrimaryAuth(ctx, "alice@example.com", "correct-horse", false)
	if err != nil {
		t.Fatalf("second BeginPrimaryAuth failed: %v", err)
	}

	// Even when the watermark read misses the first completion, the
	// conditional update refuses to accept the same time step twice.
	flow.credentials = &staleSecretStore{creds}

	result, err := flow.CompleteTwoFactor(ctx, second.ChallengeID, code, false)
	if err != nil {
		t.Fatalf("replay attempt failed: %v", err)
	}
	if result.Outcome != OutcomeRejected {
		t.Fatalf("expected replayed code to be rejected, got %v", result.Outcome)
	}
}

func TestCompleteTwoFactorAttemptsExceededDestroysChallenge(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	cfg := testConfig()
	cfg.TwoFactor.ChallengeMaxAttempts = 3
	creds := newMemoryCredentialStore()
	flow := newTestFlow(t, rdb, creds, newMemoryRoleStore(), cfg)

	secret, pending := beginChallenge(t, ctx, flow, creds, "alice@example.com")

	for i := 0; i < 3; i++ {
		if _, err := flow.CompleteTwoFactor(ctx, pending.ChallengeID, "000000", false); err != nil {
			t.Fatalf("attempt %d failed: %v", i, err)
		}
	}

	if rdb.Exists(ctx, "ifc:"+pending.ChallengeID).Val() != 0 {
		t.Fatal("expected challenge destroyed after max attempts")
	}

	// Even the correct code is refused once the challenge is gone.
	code := totpCodeAt(t, secret, time.Now(), cfg.TwoFactor)
	if _, err := flow.CompleteTwoFactor(ctx, pending.ChallengeID, code, false); !errors.Is(err, ErrNoActiveChallenge) {
		t.Fatalf("expected ErrNoActiveChallenge, got %v", err)
	}
}

func TestCompleteTwoFactorExpiredChallenge(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	creds := newMemoryCredentialStore()
	flow := newTestFlow(t, rdb, creds, newMemoryRoleStore(), testConfig())

	secret, pending := beginChallenge(t, ctx, flow, creds, "alice@example.com")

	mr.FastForward(flow.config.TwoFactor.ChallengeTTL + time.Second)

	code := totpCodeAt(t, secret, time.Now(), flow.config.TwoFactor)
	if _, err := flow.CompleteTwoFactor(ctx, pending.ChallengeID, code, false); !errors.Is(err, ErrNoActiveChallenge) {
		t.Fatalf("expected ErrNoActiveChallenge for expired challenge, got %v", err)
	}
}

func TestCompleteTwoFactorUnknownChallenge(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	flow := newTestFlow(t, rdb, newMemoryCredentialStore(), newMemoryRoleStore(), testConfig())

	if _, err := flow.CompleteTwoFactor(ctx, "no-such-challenge", "123456", false); !errors.Is(err, ErrNoActiveChallenge) {
		t.Fatalf("expected ErrNoActiveChallenge, got %v", err)
	}
}

func TestCompleteTwoFactorCodeSingleUse(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	creds := newMemoryCredentialStore()
	flow := newTestFlow(t, rdb, creds, newMemoryRoleStore(), testConfig())

	secret, pending := beginChallenge(t, ctx, flow, creds, "alice@example.com")
	code := totpCodeAt(t, secret, time.Now(), flow.config.TwoFactor)

	if _, err := flow.CompleteTwoFactor(ctx, pending.ChallengeID, code, false); err != nil {
		t.Fatalf("first completion failed: %v", err)
	}

	// Same code against a fresh challenge within the same time step.
	fresh, err := flow.BeginPrimaryAuth(ctx, "alice@example.com", "correct-horse", false)
	if err != nil {
		t.Fatalf("second BeginPrimaryAuth failed: %v", err)
	}

	result, err := flow.CompleteTwoFactor(ctx, fresh.ChallengeID, code, false)
	if err != nil {
		t.Fatalf("replay attempt failed: %v", err)
	}
	if result.Outcome != OutcomeRejected {
		t.Fatalf("expected replayed code to be rejected, got %v", result.Outcome)
	}
}

func TestCompleteTwoFactorTenantMismatch(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	creds := newMemoryCredentialStore()
	flow := newTestFlow(t, rdb, creds, newMemoryRoleStore(), testConfig())

	ctxA := WithTenantID(context.Background(), "tenant-a")
	account := seedAccount(t, creds, flow.secretHash, "alice@example.com", "correct-horse")

	secret, _, err := flow.totp.GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret failed: %v", err)
	}
	if err := creds.SetTwoFactorSecret(ctxA, account.AccountID, secret, 1); err != nil {
		t.Fatalf("SetTwoFactorSecret failed: %v", err)
	}

	pending, err := flow.BeginPrimaryAuth(ctxA, "alice@example.com", "correct-horse", false)
	if err != nil {
		t.Fatalf("BeginPrimaryAuth failed: %v", err)
	}

	ctxB := WithTenantID(context.Background(), "tenant-b")
	code := totpCodeAt(t, secret, time.Now(), flow.config.TwoFactor)
	if _, err := flow.CompleteTwoFactor(ctxB, pending.ChallengeID, code, false); !errors.Is(err, ErrNoActiveChallenge) {
		t.Fatalf("expected ErrNoActiveChallenge across tenants, got %v", err)
	}
}

func TestCancelTwoFactorChallenge(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	creds := newMemoryCredentialStore()
	flow := newTestFlow(t, rdb, creds, newMemoryRoleStore(), testConfig())

	secret, pending := beginChallenge(t, ctx, flow, creds, "alice@example.com")

	if err := flow.CancelTwoFactorChallenge(ctx, pending.ChallengeID); err != nil {
		t.Fatalf("CancelTwoFactorChallenge failed: %v", err)
	}

	code := totpCodeAt(t, secret, time.Now(), flow.config.TwoFactor)
	if _, err := flow.CompleteTwoFactor(ctx, pending.ChallengeID, code, false); !errors.Is(err, ErrNoActiveChallenge) {
		t.Fatalf("expected ErrNoActiveChallenge after cancel, got %v", err)
	}

	if err := flow.CancelTwoFactorChallenge(ctx, pending.ChallengeID); !errors.Is(err, ErrNoActiveChallenge) {
		t.Fatalf("expected second cancel to fail, got %v", err)
	}
}
