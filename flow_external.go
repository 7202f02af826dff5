package goIdentity

import (
	"context"
	"errors"
	"strings"
	"time"
)

// LinkExternalIdentity describes the linkexternalidentity operation and its observable behavior.
//
// LinkExternalIdentity may return an error when input validation, dependency calls, or security checks fail.
// LinkExternalIdentity does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// Re-linking a pair already held by the same account is a no-op. A pair held
// by a different account fails with ErrAlreadyLinked.
func (f *Flow) LinkExternalIdentity(ctx context.Context, accountID, provider, providerKey string) error {
	if f == nil || f.links == nil {
		return ErrEngineNotReady
	}

	provider = strings.TrimSpace(provider)
	if provider == "" || providerKey == "" || accountID == "" {
		return ErrNoSuchLink
	}

	if _, err := f.credentials.FindByID(ctx, accountID); err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return ErrAccountNotFound
		}
		f.metricInc(MetricTransientFailure)
		return transientErr(err)
	}

	if err := f.links.Claim(ctx, provider, providerKey, accountID); err != nil {
		if errors.Is(err, errLinkConflict) {
			f.metricInc(MetricExternalLinkConflict)
			f.emitAudit(ctx, auditEventExternalLinkConflict, false, accountID, "", ErrAlreadyLinked, func() map[string]string {
				return map[string]string{"provider": provider}
			})
			return ErrAlreadyLinked
		}
		f.metricInc(MetricTransientFailure)
		return transientErr(err)
	}

	f.metricInc(MetricExternalLinked)
	f.emitAudit(ctx, auditEventExternalLinked, true, accountID, "", nil, func() map[string]string {
		return map[string]string{"provider": provider}
	})
	return nil
}

// SignInExternal describes the signinexternal operation and its observable behavior.
//
// SignInExternal may return an error when input validation, dependency calls, or security checks fail.
// SignInExternal does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// A linked pair behaves like a successful primary authentication without any
// secret verification: the failed-attempt counter resets and two-factor
// escalation still applies. Lockout is honored.
func (f *Flow) SignInExternal(ctx context.Context, provider, providerKey string) (*AuthResult, error) {
	if f == nil || f.links == nil {
		return nil, ErrEngineNotReady
	}

	accountID, err := f.links.Lookup(ctx, strings.TrimSpace(provider), providerKey)
	if err != nil {
		if errors.Is(err, errLinkNotFound) {
			f.metricInc(MetricExternalSignInFailure)
			f.emitAudit(ctx, auditEventExternalSignInFailure, false, "", "", ErrNoSuchLink, func() map[string]string {
				return map[string]string{"provider": provider}
			})
			return nil, ErrNoSuchLink
		}
		f.metricInc(MetricTransientFailure)
		return nil, transientErr(err)
	}

	account, err := f.credentials.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			// Account removed after linking; treat like a dead link.
			f.metricInc(MetricExternalSignInFailure)
			return nil, ErrNoSuchLink
		}
		f.metricInc(MetricTransientFailure)
		return nil, transientErr(err)
	}

	if account.LockoutEnabled && account.LockoutExpiry.After(time.Now()) {
		f.metricInc(MetricPrimaryAuthLockout)
		f.emitAudit(ctx, auditEventExternalSignInFailure, false, account.AccountID, "", ErrLockedOut, nil)
		return &AuthResult{
			Outcome:     OutcomeLockedOut,
			LockedUntil: account.LockoutExpiry,
		}, nil
	}

	if err := f.credentials.ResetFailures(ctx, account.AccountID); err != nil {
		f.metricInc(MetricTransientFailure)
		return nil, transientErr(err)
	}

	if account.TwoFactorEnabled {
		return f.escalateTwoFactor(ctx, account.AccountID, false)
	}

	f.metricInc(MetricExternalSignInSuccess)
	f.emitAudit(ctx, auditEventExternalSignInSuccess, true, account.AccountID, "", nil, func() map[string]string {
		return map[string]string{"provider": provider}
	})
	return &AuthResult{
		Outcome:   OutcomeAuthenticated,
		AccountID: account.AccountID,
	}, nil
}

// UnlinkExternalIdentity describes the unlinkexternalidentity operation and its observable behavior.
//
// UnlinkExternalIdentity may return an error when input validation, dependency calls, or security checks fail.
// UnlinkExternalIdentity does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *Flow) UnlinkExternalIdentity(ctx context.Context, accountID, provider, providerKey string) error {
	if f == nil || f.links == nil {
		return ErrEngineNotReady
	}

	if err := f.links.Release(ctx, strings.TrimSpace(provider), providerKey, accountID); err != nil {
		switch {
		case errors.Is(err, errLinkNotFound), errors.Is(err, errLinkConflict):
			return ErrNoSuchLink
		default:
			f.metricInc(MetricTransientFailure)
			return transientErr(err)
		}
	}

	f.emitAudit(ctx, auditEventExternalUnlinked, true, accountID, "", nil, func() map[string]string {
		return map[string]string{"provider": provider}
	})
	return nil
}
