package goIdentity

import (
	"context"
	"errors"
)

// RequestEmailConfirmation describes the requestemailconfirmation operation and its observable behavior.
//
// RequestEmailConfirmation may return an error when input validation, dependency calls, or security checks fail.
// RequestEmailConfirmation does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *Flow) RequestEmailConfirmation(ctx context.Context, accountID string) error {
	if f == nil || f.tokens == nil {
		return ErrEngineNotReady
	}

	account, err := f.credentials.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return ErrAccountNotFound
		}
		f.metricInc(MetricTransientFailure)
		return transientErr(err)
	}

	token, err := f.tokens.Issue(ctx, PurposeEmailConfirm, account.AccountID)
	if err != nil {
		f.metricInc(MetricTransientFailure)
		return transientErr(err)
	}

	if err := f.notifier.Send(ctx, Notification{
		Recipient: account.Handle,
		Subject:   f.config.Notify.ConfirmSubject,
		Purpose:   PurposeEmailConfirm,
		Token:     token,
	}); err != nil {
		f.metricInc(MetricTransientFailure)
		return transientErr(err)
	}

	f.emitAudit(ctx, auditEventEmailConfirmRequested, true, account.AccountID, "", nil, nil)
	return nil
}

// ConfirmEmail describes the confirmemail operation and its observable behavior.
//
// ConfirmEmail may return an error when input validation, dependency calls, or security checks fail.
// ConfirmEmail does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *Flow) ConfirmEmail(ctx context.Context, accountID, token string) error {
	if f == nil || f.tokens == nil {
		return ErrEngineNotReady
	}

	if err := f.tokens.Consume(ctx, PurposeEmailConfirm, accountID, token); err != nil {
		return f.mapTokenError(ctx, auditEventEmailConfirmRejected, MetricEmailConfirmRejected, accountID, err)
	}

	if err := f.credentials.SetEmailConfirmed(ctx, accountID); err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return ErrInvalidOrExpiredToken
		}
		f.metricInc(MetricTransientFailure)
		return transientErr(err)
	}

	f.metricInc(MetricEmailConfirmed)
	f.emitAudit(ctx, auditEventEmailConfirmed, true, accountID, "", nil, nil)
	return nil
}
