package goIdentity

import (
	"context"
	"errors"
	"testing"
)

func TestEmailConfirmationFlow(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	creds := newMemoryCredentialStore()
	flow := newTestFlow(t, rdb, creds, newMemoryRoleStore(), testConfig())
	recorder := &recorderSender{}
	flow.notifier = recorder

	hash, err := flow.secretHash.Hash("correct-horse")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if err := creds.Create(ctx, &Account{
		AccountID:      "u1",
		Handle:         "alice@example.com",
		SecretHash:     hash,
		LockoutEnabled: true,
	}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := flow.RequestEmailConfirmation(ctx, "u1"); err != nil {
		t.Fatalf("RequestEmailConfirmation failed: %v", err)
	}

	sent := recorder.notifications()
	if len(sent) != 1 || sent[0].Purpose != PurposeEmailConfirm {
		t.Fatalf("unexpected notifications %+v", sent)
	}

	if err := flow.ConfirmEmail(ctx, "u1", sent[0].Token); err != nil {
		t.Fatalf("ConfirmEmail failed: %v", err)
	}

	account, err := creds.FindByID(ctx, "u1")
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if !account.EmailConfirmed {
		t.Fatal("expected email confirmed")
	}

	// The token is spent.
	if err := flow.ConfirmEmail(ctx, "u1", sent[0].Token); !errors.Is(err, ErrInvalidOrExpiredToken) {
		t.Fatalf("expected replayed token to fail, got %v", err)
	}
}

func TestConfirmEmailWrongToken(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	creds := newMemoryCredentialStore()
	flow := newTestFlow(t, rdb, creds, newMemoryRoleStore(), testConfig())
	seedAccount(t, creds, flow.secretHash, "alice@example.com", "correct-horse")

	if err := flow.ConfirmEmail(ctx, "acct-alice@example.com", "bogus-token"); !errors.Is(err, ErrInvalidOrExpiredToken) {
		t.Fatalf("expected ErrInvalidOrExpiredToken, got %v", err)
	}
}

func TestRequireConfirmedEmailGatesPrimaryAuth(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	cfg := testConfig()
	cfg.Registration.RequireConfirmedEmail = true
	creds := newMemoryCredentialStore()
	flow := newTestFlow(t, rdb, creds, newMemoryRoleStore(), cfg)
	recorder := &recorderSender{}
	flow.notifier = recorder

	hash, err := flow.secretHash.Hash("correct-horse")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if err := creds.Create(ctx, &Account{
		AccountID:      "u1",
		Handle:         "alice@example.com",
		SecretHash:     hash,
		LockoutEnabled: true,
	}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	result, err := flow.BeginPrimaryAuth(ctx, "alice@example.com", "correct-horse", false)
	if err != nil {
		t.Fatalf("BeginPrimaryAuth failed: %v", err)
	}
	if result.Outcome != OutcomeRejected {
		t.Fatalf("expected rejection before confirmation, got %v", result.Outcome)
	}

	if err := flow.RequestEmailConfirmation(ctx, "u1"); err != nil {
		t.Fatalf("RequestEmailConfirmation failed: %v", err)
	}
	token := recorder.notifications()[0].Token
	if err := flow.ConfirmEmail(ctx, "u1", token); err != nil {
		t.Fatalf("ConfirmEmail failed: %v", err)
	}

	result, err = flow.BeginPrimaryAuth(ctx, "alice@example.com", "correct-horse", false)
	if err != nil {
		t.Fatalf("BeginPrimaryAuth failed: %v", err)
	}
	if result.Outcome != OutcomeAuthenticated {
		t.Fatalf("expected authentication after confirmation, got %v", result.Outcome)
	}
}
