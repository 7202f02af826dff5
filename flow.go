package goIdentity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goIdentity/internal"
	"github.com/MrEthical07/goIdentity/password"
)

// Flow defines a public type used by goIdentity APIs.
//
// Flow instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Flow struct {
	config      Config
	credentials CredentialStore
	roles       RoleStore
	tokens      TokenIssuer
	notifier    NotificationSender
	challenges  *challengeStore
	enrollments *enrollmentStore
	links       *linkStore
	audit       *auditDispatcher
	metrics     *Metrics
	secretHash  *password.Hasher
	totp        *totpManager
}

// Close describes the close operation and its observable behavior.
//
// Close may return an error when input validation, dependency calls, or security checks fail.
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *Flow) Close() {
	if f == nil {
		return
	}
	if f.audit != nil {
		f.audit.Close()
	}
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped may return an error when input validation, dependency calls, or security checks fail.
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *Flow) AuditDropped() uint64 {
	if f == nil || f.audit == nil {
		return 0
	}
	return f.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot may return an error when input validation, dependency calls, or security checks fail.
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *Flow) MetricsSnapshot() MetricsSnapshot {
	if f == nil || f.metrics == nil {
		return MetricsSnapshot{
			Counters: map[MetricID]uint64{},
		}
	}
	return f.metrics.Snapshot()
}

func (f *Flow) metricInc(id MetricID) {
	if f == nil || f.metrics == nil {
		return
	}
	f.metrics.Inc(id)
}

func normalizeHandle(handle string) string {
	return strings.ToLower(strings.TrimSpace(handle))
}

func transientErr(err error) error {
	return fmt.Errorf("%w: %v", ErrTransientFailure, err)
}

// BeginPrimaryAuth describes the beginprimaryauth operation and its observable behavior.
//
// BeginPrimaryAuth may return an error when input validation, dependency calls, or security checks fail.
// BeginPrimaryAuth does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// An unknown handle and a wrong secret produce the same OutcomeRejected
// result so callers cannot probe for account existence.
func (f *Flow) BeginPrimaryAuth(ctx context.Context, handle, secret string, rememberMe bool) (*AuthResult, error) {
	if f == nil || f.credentials == nil {
		return nil, ErrEngineNotReady
	}

	handle = normalizeHandle(handle)
	if handle == "" || secret == "" {
		f.metricInc(MetricPrimaryAuthRejected)
		f.emitAudit(ctx, auditEventPrimaryAuthRejected, false, "", "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{"reason": "empty_input"}
		})
		return &AuthResult{Outcome: OutcomeRejected}, nil
	}

	account, err := f.credentials.FindByHandle(ctx, handle)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			f.metricInc(MetricPrimaryAuthRejected)
			f.emitAudit(ctx, auditEventPrimaryAuthRejected, false, "", "", ErrInvalidCredentials, func() map[string]string {
				return map[string]string{"reason": "unknown_handle"}
			})
			return &AuthResult{Outcome: OutcomeRejected}, nil
		}
		f.metricInc(MetricTransientFailure)
		return nil, transientErr(err)
	}

	now := time.Now()
	if account.LockoutEnabled && account.LockoutExpiry.After(now) {
		f.metricInc(MetricPrimaryAuthLockout)
		f.emitAudit(ctx, auditEventPrimaryAuthLockout, false, account.AccountID, "", ErrLockedOut, nil)
		return &AuthResult{
			Outcome:     OutcomeLockedOut,
			LockedUntil: account.LockoutExpiry,
		}, nil
	}

	if f.config.Registration.RequireConfirmedEmail && !account.EmailConfirmed {
		f.metricInc(MetricPrimaryAuthRejected)
		f.emitAudit(ctx, auditEventPrimaryAuthRejected, false, account.AccountID, "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{"reason": "email_unconfirmed"}
		})
		return &AuthResult{Outcome: OutcomeRejected}, nil
	}

	ok, err := f.secretHash.Verify(secret, account.SecretHash)
	if err != nil {
		f.metricInc(MetricPrimaryAuthRejected)
		f.emitAudit(ctx, auditEventPrimaryAuthRejected, false, account.AccountID, "", err, func() map[string]string {
			return map[string]string{"reason": "unverifiable_hash"}
		})
		return &AuthResult{Outcome: OutcomeRejected}, nil
	}
	if !ok {
		return f.recordPrimaryFailure(ctx, account, now)
	}

	if err := f.credentials.ResetFailures(ctx, account.AccountID); err != nil {
		f.metricInc(MetricTransientFailure)
		return nil, transientErr(err)
	}

	if account.TwoFactorEnabled {
		return f.escalateTwoFactor(ctx, account.AccountID, rememberMe)
	}

	f.metricInc(MetricPrimaryAuthSuccess)
	f.emitAudit(ctx, auditEventPrimaryAuthSuccess, true, account.AccountID, "", nil, nil)
	return &AuthResult{
		Outcome:    OutcomeAuthenticated,
		AccountID:  account.AccountID,
		RememberMe: rememberMe,
	}, nil
}

func (f *Flow) recordPrimaryFailure(ctx context.Context, account *Account, now time.Time) (*AuthResult, error) {
	lockUntil := now.Add(f.config.Lockout.Duration)

	locked, attempts, err := f.credentials.RecordFailure(ctx, account.AccountID, f.config.Lockout.Threshold, lockUntil)
	if err != nil {
		f.metricInc(MetricTransientFailure)
		return nil, transientErr(err)
	}

	if locked {
		f.metricInc(MetricPrimaryAuthLockout)
		f.emitAudit(ctx, auditEventPrimaryAuthLockout, false, account.AccountID, "", ErrLockedOut, func() map[string]string {
			return map[string]string{"attempts": fmt.Sprintf("%d", attempts)}
		})
		return &AuthResult{
			Outcome:     OutcomeLockedOut,
			LockedUntil: lockUntil,
		}, nil
	}

	f.metricInc(MetricPrimaryAuthRejected)
	f.emitAudit(ctx, auditEventPrimaryAuthRejected, false, account.AccountID, "", ErrInvalidCredentials, func() map[string]string {
		return map[string]string{
			"reason":   "secret_mismatch",
			"attempts": fmt.Sprintf("%d", attempts),
		}
	})
	return &AuthResult{Outcome: OutcomeRejected}, nil
}

func (f *Flow) escalateTwoFactor(ctx context.Context, accountID string, rememberMe bool) (*AuthResult, error) {
	cid, err := internal.NewChallengeID()
	if err != nil {
		return nil, transientErr(err)
	}
	challengeID := cid.String()

	ttl := f.config.TwoFactor.ChallengeTTL
	record := &twoFactorChallenge{
		AccountID:  accountID,
		TenantID:   tenantIDFromContext(ctx),
		ExpiresAt:  time.Now().Add(ttl).Unix(),
		RememberMe: rememberMe,
	}
	if err := f.challenges.Save(ctx, challengeID, record, ttl); err != nil {
		f.metricInc(MetricTransientFailure)
		return nil, transientErr(err)
	}

	f.metricInc(MetricTwoFactorRequired)
	f.emitAudit(ctx, auditEventTwoFactorRequired, true, accountID, challengeID, nil, nil)
	return &AuthResult{
		Outcome:      OutcomeTwoFactorPending,
		AccountID:    accountID,
		ChallengeID:  challengeID,
		ChallengeTTL: ttl,
		RememberMe:   rememberMe,
	}, nil
}

// SignIn describes the signin operation and its observable behavior.
//
// SignIn may return an error when input validation, dependency calls, or security checks fail.
// SignIn does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// SignIn is the error-shaped convenience wrapper over [Flow.BeginPrimaryAuth]
// for callers that treat anything but full authentication as a failure:
// Rejected maps to ErrInvalidCredentials, LockedOut to ErrLockedOut, and a
// pending challenge to ErrTwoFactorRequired.
func (f *Flow) SignIn(ctx context.Context, handle, secret string) (*AuthResult, error) {
	result, err := f.BeginPrimaryAuth(ctx, handle, secret, false)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, ErrEngineNotReady
	}

	switch result.Outcome {
	case OutcomeAuthenticated:
		return result, nil
	case OutcomeTwoFactorPending:
		return result, ErrTwoFactorRequired
	case OutcomeLockedOut:
		return nil, ErrLockedOut
	default:
		return nil, ErrInvalidCredentials
	}
}
