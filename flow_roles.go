package goIdentity

import (
	"context"
	"errors"
	"strings"
)

// UpsertRole describes the upsertrole operation and its observable behavior.
//
// UpsertRole may return an error when input validation, dependency calls, or security checks fail.
// UpsertRole does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// A blank roleID creates a role; a non-blank roleID renames an existing one.
// Renaming a role that does not exist fails with ErrRoleNotFound rather than
// silently creating it. Names are matched case-insensitively, so a create or
// rename that collides with another role's name fails with ErrDuplicateRole.
func (f *Flow) UpsertRole(ctx context.Context, roleID, name string) (string, error) {
	if f == nil || f.roles == nil {
		return "", ErrEngineNotReady
	}

	name = normalizeRoleName(name)
	if name == "" {
		return "", errors.New("role name must not be empty")
	}

	existingID, err := f.roles.Lookup(ctx, name)
	switch {
	case err == nil:
		if roleID == "" || existingID != roleID {
			f.metricInc(MetricRoleConflict)
			f.emitAudit(ctx, auditEventRoleMutationRejected, false, "", "", ErrDuplicateRole, func() map[string]string {
				return map[string]string{"role_name": name}
			})
			return "", ErrDuplicateRole
		}
	case errors.Is(err, ErrRoleNotFound):
	default:
		f.metricInc(MetricTransientFailure)
		return "", transientErr(err)
	}

	if roleID == "" {
		created, err := f.roles.Create(ctx, name)
		if err != nil {
			if errors.Is(err, ErrDuplicateRole) {
				f.metricInc(MetricRoleConflict)
				return "", ErrDuplicateRole
			}
			f.metricInc(MetricTransientFailure)
			return "", transientErr(err)
		}
		f.metricInc(MetricRoleCreated)
		f.emitAudit(ctx, auditEventRoleCreated, true, "", "", nil, func() map[string]string {
			return map[string]string{"role_id": created, "role_name": name}
		})
		return created, nil
	}

	if err := f.roles.Update(ctx, roleID, name); err != nil {
		if errors.Is(err, ErrRoleNotFound) {
			f.emitAudit(ctx, auditEventRoleMutationRejected, false, "", "", ErrRoleNotFound, func() map[string]string {
				return map[string]string{"role_id": roleID}
			})
			return "", ErrRoleNotFound
		}
		f.metricInc(MetricTransientFailure)
		return "", transientErr(err)
	}

	f.metricInc(MetricRoleUpdated)
	f.emitAudit(ctx, auditEventRoleUpdated, true, "", "", nil, func() map[string]string {
		return map[string]string{"role_id": roleID, "role_name": name}
	})
	return roleID, nil
}

// DeleteRole describes the deleterole operation and its observable behavior.
//
// DeleteRole may return an error when input validation, dependency calls, or security checks fail.
// DeleteRole does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// A role with live assignments cannot be deleted. If the assignment count
// cannot be determined the delete is refused as transient; an unknown count
// never authorizes a destructive outcome.
func (f *Flow) DeleteRole(ctx context.Context, roleID string) error {
	if f == nil || f.roles == nil {
		return ErrEngineNotReady
	}

	count, err := f.roles.CountAssignments(ctx, roleID)
	if err != nil {
		if errors.Is(err, ErrRoleNotFound) {
			return ErrRoleNotFound
		}
		f.metricInc(MetricTransientFailure)
		return transientErr(err)
	}
	if count > 0 {
		f.metricInc(MetricRoleConflict)
		f.emitAudit(ctx, auditEventRoleMutationRejected, false, "", "", ErrRoleInUse, func() map[string]string {
			return map[string]string{"role_id": roleID}
		})
		return ErrRoleInUse
	}

	if err := f.roles.Delete(ctx, roleID); err != nil {
		if errors.Is(err, ErrRoleNotFound) {
			return ErrRoleNotFound
		}
		f.metricInc(MetricTransientFailure)
		return transientErr(err)
	}

	f.metricInc(MetricRoleDeleted)
	f.emitAudit(ctx, auditEventRoleDeleted, true, "", "", nil, func() map[string]string {
		return map[string]string{"role_id": roleID}
	})
	return nil
}

// AssignRole describes the assignrole operation and its observable behavior.
//
// AssignRole may return an error when input validation, dependency calls, or security checks fail.
// AssignRole does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *Flow) AssignRole(ctx context.Context, accountID, roleID string) error {
	if f == nil || f.roles == nil {
		return ErrEngineNotReady
	}

	if err := f.roles.Assign(ctx, accountID, roleID); err != nil {
		if errors.Is(err, ErrRoleNotFound) {
			return ErrRoleNotFound
		}
		f.metricInc(MetricTransientFailure)
		return transientErr(err)
	}

	f.emitAudit(ctx, auditEventRoleAssignmentChanged, true, accountID, "", nil, func() map[string]string {
		return map[string]string{"role_id": roleID, "action": "assign"}
	})
	return nil
}

// UnassignRole describes the unassignrole operation and its observable behavior.
//
// UnassignRole may return an error when input validation, dependency calls, or security checks fail.
// UnassignRole does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *Flow) UnassignRole(ctx context.Context, accountID, roleID string) error {
	if f == nil || f.roles == nil {
		return ErrEngineNotReady
	}

	if err := f.roles.Unassign(ctx, accountID, roleID); err != nil {
		if errors.Is(err, ErrRoleNotFound) {
			return ErrRoleNotFound
		}
		f.metricInc(MetricTransientFailure)
		return transientErr(err)
	}

	f.emitAudit(ctx, auditEventRoleAssignmentChanged, true, accountID, "", nil, func() map[string]string {
		return map[string]string{"role_id": roleID, "action": "unassign"}
	})
	return nil
}

func normalizeRoleName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
