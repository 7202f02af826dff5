package goIdentity

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goIdentity/internal"
)

// EnableTwoFactor describes the enabletwofactor operation and its observable behavior.
//
// EnableTwoFactor may return an error when input validation, dependency calls, or security checks fail.
// EnableTwoFactor does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// The generated secret stays pending until confirmed; calling again replaces
// the pending secret and advances its generation, which invalidates any
// in-flight confirm against the older secret.
func (f *Flow) EnableTwoFactor(ctx context.Context, accountID string) (*TwoFactorSetup, error) {
	if f == nil || f.enrollments == nil {
		return nil, ErrEngineNotReady
	}

	account, err := f.credentials.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		f.metricInc(MetricTransientFailure)
		return nil, transientErr(err)
	}

	secret, secretBase32, err := f.totp.GenerateSecret()
	if err != nil {
		return nil, transientErr(err)
	}
	generation, err := internal.NewGeneration()
	if err != nil {
		return nil, transientErr(err)
	}

	ttl := f.config.TwoFactor.EnrollmentTTL
	record := &pendingEnrollment{
		Secret:     secret,
		Generation: generation,
		ExpiresAt:  time.Now().Add(ttl).Unix(),
	}
	if err := f.enrollments.Save(ctx, accountID, record, ttl); err != nil {
		f.metricInc(MetricTransientFailure)
		return nil, transientErr(err)
	}

	f.metricInc(MetricEnrollmentStarted)
	f.emitAudit(ctx, auditEventEnrollmentStarted, true, accountID, "", nil, nil)
	return &TwoFactorSetup{
		SecretBase32:    secretBase32,
		ProvisioningURI: f.totp.ProvisionURI(secretBase32, account.Handle),
		Generation:      generation,
	}, nil
}

// ConfirmTwoFactorEnrollment describes the confirmtwofactorenrollment operation and its observable behavior.
//
// ConfirmTwoFactorEnrollment may return an error when input validation, dependency calls, or security checks fail.
// ConfirmTwoFactorEnrollment does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// A wrong code leaves the pending secret in place, disabled, and fails with
// ErrEnrollmentNotVerified. A confirm racing a newer EnableTwoFactor call
// loses: the pending generation no longer matches and the confirm is
// rejected rather than committing a superseded secret.
func (f *Flow) ConfirmTwoFactorEnrollment(ctx context.Context, accountID, code string) error {
	if f == nil || f.enrollments == nil {
		return ErrEngineNotReady
	}

	record, err := f.enrollments.Get(ctx, accountID)
	if err != nil {
		return f.mapEnrollmentError(ctx, accountID, err)
	}

	ok, _, err := f.totp.VerifyCode(record.Secret, code, time.Now())
	if err != nil {
		f.metricInc(MetricTransientFailure)
		return transientErr(err)
	}
	if !ok {
		f.metricInc(MetricEnrollmentRejected)
		f.emitAudit(ctx, auditEventEnrollmentRejected, false, accountID, "", ErrEnrollmentNotVerified, func() map[string]string {
			return map[string]string{"reason": "code_mismatch"}
		})
		return ErrEnrollmentNotVerified
	}

	if err := f.enrollments.Consume(ctx, accountID, record.Generation); err != nil {
		return f.mapEnrollmentError(ctx, accountID, err)
	}

	if err := f.credentials.SetTwoFactorSecret(ctx, accountID, record.Secret, record.Generation); err != nil {
		f.metricInc(MetricTransientFailure)
		return transientErr(err)
	}

	f.metricInc(MetricEnrollmentConfirmed)
	f.emitAudit(ctx, auditEventEnrollmentConfirmed, true, accountID, "", nil, nil)
	return nil
}

// DisableTwoFactor describes the disabletwofactor operation and its observable behavior.
//
// DisableTwoFactor may return an error when input validation, dependency calls, or security checks fail.
// DisableTwoFactor does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// Idempotent: disabling an account without an authenticator succeeds.
func (f *Flow) DisableTwoFactor(ctx context.Context, accountID string) error {
	if f == nil || f.credentials == nil {
		return ErrEngineNotReady
	}

	if err := f.enrollments.Delete(ctx, accountID); err != nil {
		f.metricInc(MetricTransientFailure)
		return transientErr(err)
	}
	if err := f.credentials.ClearTwoFactorSecret(ctx, accountID); err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return ErrAccountNotFound
		}
		f.metricInc(MetricTransientFailure)
		return transientErr(err)
	}

	f.metricInc(MetricTwoFactorDisabled)
	f.emitAudit(ctx, auditEventTwoFactorDisabled, true, accountID, "", nil, nil)
	return nil
}

func (f *Flow) mapEnrollmentError(ctx context.Context, accountID string, err error) error {
	switch {
	case errors.Is(err, errEnrollmentNotFound),
		errors.Is(err, errEnrollmentExpired),
		errors.Is(err, errEnrollmentStale):
		f.metricInc(MetricEnrollmentRejected)
		f.emitAudit(ctx, auditEventEnrollmentRejected, false, accountID, "", ErrEnrollmentNotVerified, nil)
		return ErrEnrollmentNotVerified
	default:
		f.metricInc(MetricTransientFailure)
		return transientErr(err)
	}
}
