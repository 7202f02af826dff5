package goIdentity

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/MrEthical07/goIdentity/password"
)

// Register describes the register operation and its observable behavior.
//
// Register may return an error when input validation, dependency calls, or security checks fail.
// Register does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// New accounts receive the configured default role and an email-confirmation
// notification. Lockout accounting starts enabled unless configured off.
func (f *Flow) Register(ctx context.Context, handle, secret string) (*Account, error) {
	if f == nil || f.credentials == nil {
		return nil, ErrEngineNotReady
	}
	if !f.config.Registration.Enabled {
		return nil, ErrRegistrationDisabled
	}

	handle = normalizeHandle(handle)
	if handle == "" || !strings.Contains(handle, "@") {
		return nil, ErrInvalidHandle
	}

	hash, err := f.secretHash.Hash(secret)
	if err != nil {
		if errors.Is(err, password.ErrSecretTooShort) {
			return nil, ErrSecretPolicy
		}
		return nil, transientErr(err)
	}

	account := &Account{
		AccountID:      uuid.New().String(),
		Handle:         handle,
		SecretHash:     hash,
		LockoutEnabled: f.config.Registration.LockoutEnabledDefault,
	}

	if err := f.credentials.Create(ctx, account); err != nil {
		if errors.Is(err, ErrAccountExists) {
			f.metricInc(MetricRegistrationDuplicate)
			f.emitAudit(ctx, auditEventRegistrationFailure, false, "", "", ErrAccountExists, func() map[string]string {
				return map[string]string{"reason": "duplicate_handle"}
			})
			return nil, ErrAccountExists
		}
		f.metricInc(MetricTransientFailure)
		return nil, transientErr(err)
	}

	if err := f.assignDefaultRole(ctx, account.AccountID); err != nil {
		return nil, err
	}

	if err := f.RequestEmailConfirmation(ctx, account.AccountID); err != nil {
		return nil, err
	}

	f.metricInc(MetricRegistrationSuccess)
	f.emitAudit(ctx, auditEventRegistrationSuccess, true, account.AccountID, "", nil, nil)
	return account, nil
}

func (f *Flow) assignDefaultRole(ctx context.Context, accountID string) error {
	name := normalizeRoleName(f.config.Registration.DefaultRole)

	roleID, err := f.roles.Lookup(ctx, name)
	if err != nil {
		if !errors.Is(err, ErrRoleNotFound) {
			f.metricInc(MetricTransientFailure)
			return transientErr(err)
		}
		roleID, err = f.roles.Create(ctx, name)
		if err != nil {
			f.metricInc(MetricTransientFailure)
			return transientErr(err)
		}
	}

	if err := f.roles.Assign(ctx, accountID, roleID); err != nil {
		f.metricInc(MetricTransientFailure)
		return transientErr(err)
	}
	return nil
}
