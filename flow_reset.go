package goIdentity

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"time"

	"github.com/MrEthical07/goIdentity/password"
)

// RequestPasswordReset describes the requestpasswordreset operation and its observable behavior.
//
// RequestPasswordReset may return an error when input validation, dependency calls, or security checks fail.
// RequestPasswordReset does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// The outward result is identical for known and unknown handles: only a
// known handle produces a notification. The unknown-handle path burns a
// randomized delay so response timing does not betray account existence.
func (f *Flow) RequestPasswordReset(ctx context.Context, handle string) error {
	if f == nil || f.tokens == nil {
		return ErrEngineNotReady
	}

	handle = normalizeHandle(handle)

	account, err := f.credentials.FindByHandle(ctx, handle)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			f.metricInc(MetricResetRequested)
			f.emitAudit(ctx, auditEventResetRequested, true, "", "", nil, func() map[string]string {
				return map[string]string{"known_handle": "false"}
			})
			return sleepEnumerationDelay(ctx)
		}
		f.metricInc(MetricTransientFailure)
		return transientErr(err)
	}

	token, err := f.tokens.Issue(ctx, PurposePasswordReset, account.AccountID)
	if err != nil {
		f.metricInc(MetricTransientFailure)
		return transientErr(err)
	}

	if err := f.notifier.Send(ctx, Notification{
		Recipient: account.Handle,
		Subject:   f.config.Notify.ResetSubject,
		Purpose:   PurposePasswordReset,
		Token:     token,
	}); err != nil {
		f.metricInc(MetricTransientFailure)
		return transientErr(err)
	}

	f.metricInc(MetricResetRequested)
	f.emitAudit(ctx, auditEventResetRequested, true, account.AccountID, "", nil, func() map[string]string {
		return map[string]string{"known_handle": "true"}
	})
	return nil
}

// CompletePasswordReset describes the completepasswordreset operation and its observable behavior.
//
// CompletePasswordReset may return an error when input validation, dependency calls, or security checks fail.
// CompletePasswordReset does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *Flow) CompletePasswordReset(ctx context.Context, accountID, token, newSecret string) error {
	if f == nil || f.tokens == nil {
		return ErrEngineNotReady
	}

	if err := f.tokens.Consume(ctx, PurposePasswordReset, accountID, token); err != nil {
		return f.mapTokenError(ctx, auditEventResetRejected, MetricResetRejected, accountID, err)
	}

	hash, err := f.secretHash.Hash(newSecret)
	if err != nil {
		if errors.Is(err, password.ErrSecretTooShort) {
			f.metricInc(MetricResetRejected)
			f.emitAudit(ctx, auditEventResetRejected, false, accountID, "", ErrSecretPolicy, nil)
			return ErrSecretPolicy
		}
		f.metricInc(MetricTransientFailure)
		return transientErr(err)
	}

	if err := f.credentials.SetSecretHash(ctx, accountID, hash); err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return ErrInvalidOrExpiredToken
		}
		f.metricInc(MetricTransientFailure)
		return transientErr(err)
	}

	f.metricInc(MetricResetCompleted)
	f.emitAudit(ctx, auditEventResetCompleted, true, accountID, "", nil, nil)
	return nil
}

func (f *Flow) mapTokenError(ctx context.Context, event string, metric MetricID, accountID string, err error) error {
	switch {
	case errors.Is(err, errTokenNotFound),
		errors.Is(err, errTokenExpired),
		errors.Is(err, errTokenMismatch),
		errors.Is(err, errTokenAttempts):
		f.metricInc(metric)
		f.emitAudit(ctx, event, false, accountID, "", ErrInvalidOrExpiredToken, nil)
		return ErrInvalidOrExpiredToken
	default:
		f.metricInc(MetricTransientFailure)
		return transientErr(err)
	}
}

func sleepEnumerationDelay(ctx context.Context) error {
	minMs := int64(20)
	maxMs := int64(40)
	span := maxMs - minMs + 1

	n, err := rand.Int(rand.Reader, big.NewInt(span))
	if err != nil {
		return err
	}

	delay := time.Duration(minMs+n.Int64()) * time.Millisecond
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
