package goIdentity

import (
	"context"
	"errors"
	"time"
)

// CompleteTwoFactor describes the completetwofactor operation and its observable behavior.
//
// CompleteTwoFactor may return an error when input validation, dependency calls, or security checks fail.
// CompleteTwoFactor does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// A missing, expired, or already-consumed challenge fails with
// ErrNoActiveChallenge. Wrong codes reject the attempt and count against the
// challenge only — never against the account's primary lockout counter.
// Each code is accepted at most once within its time window. An account that
// entered lockout after the challenge was issued reports OutcomeLockedOut
// without the code being examined.
func (f *Flow) CompleteTwoFactor(ctx context.Context, challengeID, code string, rememberClient bool) (*AuthResult, error) {
	if f == nil || f.credentials == nil {
		return nil, ErrEngineNotReady
	}

	record, err := f.challenges.Get(ctx, challengeID)
	if err != nil {
		return nil, f.mapChallengeError(ctx, challengeID, err)
	}

	if record.TenantID != tenantIDFromContext(ctx) {
		f.metricInc(MetricTwoFactorRejected)
		f.emitAudit(ctx, auditEventTwoFactorRejected, false, record.AccountID, challengeID, ErrNoActiveChallenge, func() map[string]string {
			return map[string]string{"reason": "tenant_mismatch"}
		})
		return nil, ErrNoActiveChallenge
	}

	account, err := f.credentials.FindByID(ctx, record.AccountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			_, _ = f.challenges.Delete(ctx, challengeID)
			return nil, ErrNoActiveChallenge
		}
		f.metricInc(MetricTransientFailure)
		return nil, transientErr(err)
	}
	if !account.TwoFactorEnabled {
		_, _ = f.challenges.Delete(ctx, challengeID)
		return nil, ErrNoActiveChallenge
	}

	if account.LockoutEnabled && account.LockoutExpiry.After(time.Now()) {
		f.metricInc(MetricTwoFactorLockout)
		f.emitAudit(ctx, auditEventTwoFactorRejected, false, account.AccountID, challengeID, ErrLockedOut, func() map[string]string {
			return map[string]string{"reason": "locked_out"}
		})
		return &AuthResult{
			Outcome:     OutcomeLockedOut,
			LockedUntil: account.LockoutExpiry,
		}, nil
	}

	tfs, err := f.credentials.GetTwoFactorSecret(ctx, account.AccountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			_, _ = f.challenges.Delete(ctx, challengeID)
			return nil, ErrNoActiveChallenge
		}
		f.metricInc(MetricTransientFailure)
		return nil, transientErr(err)
	}

	ok, counter, err := f.totp.VerifyCode(tfs.Secret, code, time.Now())
	if err != nil {
		f.metricInc(MetricTransientFailure)
		return nil, transientErr(err)
	}
	if ok && counter <= tfs.LastUsedCounter {
		f.metricInc(MetricTwoFactorReplay)
		ok = false
	}
	if !ok {
		return f.recordChallengeFailure(ctx, account.AccountID, challengeID)
	}

	if err := f.credentials.UpdateTwoFactorLastUsed(ctx, account.AccountID, counter); err != nil {
		if errors.Is(err, ErrCodeAlreadyUsed) {
			// A concurrent completion claimed this time step first.
			f.metricInc(MetricTwoFactorReplay)
			return f.recordChallengeFailure(ctx, account.AccountID, challengeID)
		}
		f.metricInc(MetricTransientFailure)
		return nil, transientErr(err)
	}

	deleted, err := f.challenges.Delete(ctx, challengeID)
	if err != nil {
		f.metricInc(MetricTransientFailure)
		return nil, transientErr(err)
	}
	if !deleted {
		// Another request consumed this challenge first.
		f.metricInc(MetricTwoFactorReplay)
		f.emitAudit(ctx, auditEventTwoFactorRejected, false, account.AccountID, challengeID, ErrNoActiveChallenge, func() map[string]string {
			return map[string]string{"reason": "challenge_consumed"}
		})
		return nil, ErrNoActiveChallenge
	}

	f.metricInc(MetricTwoFactorSuccess)
	f.emitAudit(ctx, auditEventTwoFactorSuccess, true, account.AccountID, challengeID, nil, nil)
	return &AuthResult{
		Outcome:        OutcomeAuthenticated,
		AccountID:      account.AccountID,
		RememberMe:     record.RememberMe,
		RememberClient: rememberClient,
	}, nil
}

func (f *Flow) recordChallengeFailure(ctx context.Context, accountID, challengeID string) (*AuthResult, error) {
	exceeded, err := f.challenges.RecordFailure(ctx, challengeID, f.config.TwoFactor.ChallengeMaxAttempts)
	if err != nil {
		if errors.Is(err, errChallengeNotFound) || errors.Is(err, errChallengeExpired) {
			return nil, ErrNoActiveChallenge
		}
		f.metricInc(MetricTransientFailure)
		return nil, transientErr(err)
	}

	if exceeded {
		f.metricInc(MetricTwoFactorAttemptsExceeded)
		f.emitAudit(ctx, auditEventTwoFactorRejected, false, accountID, challengeID, ErrInvalidCredentials, func() map[string]string {
			return map[string]string{"reason": "attempts_exceeded"}
		})
		return &AuthResult{Outcome: OutcomeRejected}, nil
	}

	f.metricInc(MetricTwoFactorRejected)
	f.emitAudit(ctx, auditEventTwoFactorRejected, false, accountID, challengeID, ErrInvalidCredentials, func() map[string]string {
		return map[string]string{"reason": "code_mismatch"}
	})
	return &AuthResult{Outcome: OutcomeRejected}, nil
}

// CancelTwoFactorChallenge describes the canceltwofactorchallenge operation and its observable behavior.
//
// CancelTwoFactorChallenge may return an error when input validation, dependency calls, or security checks fail.
// CancelTwoFactorChallenge does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *Flow) CancelTwoFactorChallenge(ctx context.Context, challengeID string) error {
	if f == nil || f.challenges == nil {
		return ErrEngineNotReady
	}

	deleted, err := f.challenges.Delete(ctx, challengeID)
	if err != nil {
		f.metricInc(MetricTransientFailure)
		return transientErr(err)
	}
	if !deleted {
		return ErrNoActiveChallenge
	}

	f.emitAudit(ctx, auditEventTwoFactorCancelled, true, "", challengeID, nil, nil)
	return nil
}

func (f *Flow) mapChallengeError(ctx context.Context, challengeID string, err error) error {
	switch {
	case errors.Is(err, errChallengeNotFound), errors.Is(err, errChallengeExpired):
		f.metricInc(MetricTwoFactorRejected)
		f.emitAudit(ctx, auditEventTwoFactorRejected, false, "", challengeID, ErrNoActiveChallenge, nil)
		return ErrNoActiveChallenge
	default:
		f.metricInc(MetricTransientFailure)
		return transientErr(err)
	}
}
