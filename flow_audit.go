package goIdentity

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventPrimaryAuthSuccess     = "primary_auth_success"
	auditEventPrimaryAuthRejected    = "primary_auth_rejected"
	auditEventPrimaryAuthLockout     = "primary_auth_lockout"
	auditEventTwoFactorRequired      = "two_factor_required"
	auditEventTwoFactorSuccess       = "two_factor_success"
	auditEventTwoFactorRejected      = "two_factor_rejected"
	auditEventTwoFactorCancelled     = "two_factor_cancelled"
	auditEventExternalSignInSuccess  = "external_sign_in_success"
	auditEventExternalSignInFailure  = "external_sign_in_failure"
	auditEventExternalLinked         = "external_identity_linked"
	auditEventExternalUnlinked       = "external_identity_unlinked"
	auditEventExternalLinkConflict   = "external_link_conflict"
	auditEventEnrollmentStarted      = "enrollment_started"
	auditEventEnrollmentConfirmed    = "enrollment_confirmed"
	auditEventEnrollmentRejected     = "enrollment_rejected"
	auditEventTwoFactorDisabled      = "two_factor_disabled"
	auditEventResetRequested         = "password_reset_requested"
	auditEventResetCompleted         = "password_reset_completed"
	auditEventResetRejected          = "password_reset_rejected"
	auditEventEmailConfirmRequested  = "email_confirm_requested"
	auditEventEmailConfirmed         = "email_confirmed"
	auditEventEmailConfirmRejected   = "email_confirm_rejected"
	auditEventRegistrationSuccess    = "registration_success"
	auditEventRegistrationFailure    = "registration_failure"
	auditEventRoleCreated            = "role_created"
	auditEventRoleUpdated            = "role_updated"
	auditEventRoleDeleted            = "role_deleted"
	auditEventRoleMutationRejected   = "role_mutation_rejected"
	auditEventRoleAssignmentChanged  = "role_assignment_changed"
	auditEventBacklogDropped         = "audit_backlog_dropped"
)

// AuditErrorCode defines a public type used by goIdentity APIs.
//
// AuditErrorCode instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrLockedOut          AuditErrorCode = "locked_out"
	auditErrNoActiveChallenge  AuditErrorCode = "no_active_challenge"
	auditErrAlreadyLinked      AuditErrorCode = "already_linked"
	auditErrNoSuchLink         AuditErrorCode = "no_such_link"
	auditErrEnrollment         AuditErrorCode = "enrollment_not_verified"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrDuplicateRole      AuditErrorCode = "duplicate_role"
	auditErrRoleInUse          AuditErrorCode = "role_in_use"
	auditErrRoleNotFound       AuditErrorCode = "role_not_found"
	auditErrAccountNotFound    AuditErrorCode = "account_not_found"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrSecretPolicy       AuditErrorCode = "secret_policy"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (f *Flow) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	accountID string,
	challengeID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if f == nil || f.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp:   time.Now().UTC(),
		EventType:   eventType,
		AccountID:   accountID,
		TenantID:    tenantIDFromContext(ctx),
		ChallengeID: challengeID,
		IP:          clientIPFromContext(ctx),
		Success:     success,
		Metadata:    metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	f.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrLockedOut):
		return auditErrLockedOut
	case errors.Is(err, ErrNoActiveChallenge):
		return auditErrNoActiveChallenge
	case errors.Is(err, ErrAlreadyLinked):
		return auditErrAlreadyLinked
	case errors.Is(err, ErrNoSuchLink):
		return auditErrNoSuchLink
	case errors.Is(err, ErrEnrollmentNotVerified):
		return auditErrEnrollment
	case errors.Is(err, ErrInvalidOrExpiredToken):
		return auditErrInvalidToken
	case errors.Is(err, ErrDuplicateRole):
		return auditErrDuplicateRole
	case errors.Is(err, ErrRoleInUse):
		return auditErrRoleInUse
	case errors.Is(err, ErrRoleNotFound):
		return auditErrRoleNotFound
	case errors.Is(err, ErrAccountNotFound):
		return auditErrAccountNotFound
	case errors.Is(err, ErrAccountExists):
		return auditErrDuplicate
	case errors.Is(err, ErrSecretPolicy):
		return auditErrSecretPolicy
	case errors.Is(err, ErrTransientFailure):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
