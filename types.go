package goIdentity

import (
	"context"
	"time"
)

// AuthOutcome defines a public type used by goIdentity APIs.
//
// AuthOutcome instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuthOutcome uint8

const (
	// OutcomeRejected is an exported constant or variable used by the identity engine.
	OutcomeRejected AuthOutcome = iota
	// OutcomeAuthenticated is an exported constant or variable used by the identity engine.
	OutcomeAuthenticated
	// OutcomeTwoFactorPending is an exported constant or variable used by the identity engine.
	OutcomeTwoFactorPending
	// OutcomeLockedOut is an exported constant or variable used by the identity engine.
	OutcomeLockedOut
)

// String describes the string operation and its observable behavior.
//
// String may return an error when input validation, dependency calls, or security checks fail.
// String does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (o AuthOutcome) String() string {
	switch o {
	case OutcomeAuthenticated:
		return "authenticated"
	case OutcomeTwoFactorPending:
		return "two_factor_pending"
	case OutcomeLockedOut:
		return "locked_out"
	default:
		return "rejected"
	}
}

// AuthResult defines a public type used by goIdentity APIs.
//
// AuthResult instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
//
// Exactly one outcome is reported per attempt. ChallengeID is set only for
// OutcomeTwoFactorPending, LockedUntil only for OutcomeLockedOut, and
// AccountID only when the account was positively identified.
type AuthResult struct {
	Outcome        AuthOutcome
	AccountID      string
	ChallengeID    string
	ChallengeTTL   time.Duration
	LockedUntil    time.Time
	RememberMe     bool
	RememberClient bool
}

// Account defines a public type used by goIdentity APIs.
//
// Account instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Account struct {
	AccountID        string
	Handle           string
	SecretHash       string
	EmailConfirmed   bool
	TwoFactorEnabled bool
	LockoutEnabled   bool
	FailedAttempts   int
	LockoutExpiry    time.Time
}

// TwoFactorSecret defines a public type used by goIdentity APIs.
//
// TwoFactorSecret instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TwoFactorSecret struct {
	Secret          []byte
	Generation      uint32
	LastUsedCounter int64
}

// TwoFactorSetup defines a public type used by goIdentity APIs.
//
// TwoFactorSetup instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TwoFactorSetup struct {
	SecretBase32    string
	ProvisioningURI string
	Generation      uint32
}

// CredentialStore defines a public type used by goIdentity APIs.
//
// CredentialStore instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
//
// Implementations return ErrAccountNotFound for missing records. Any other
// error is treated by the Flow as a transient backend failure, never as an
// allow.
type CredentialStore interface {
	FindByHandle(ctx context.Context, handle string) (*Account, error)
	FindByID(ctx context.Context, accountID string) (*Account, error)
	Create(ctx context.Context, account *Account) error
	SetSecretHash(ctx context.Context, accountID, secretHash string) error
	SetEmailConfirmed(ctx context.Context, accountID string) error

	// RecordFailure increments the failed-attempt counter and, when the
	// account has lockout enabled and the new count reaches threshold,
	// sets the lockout expiry to lockUntil and resets the counter in the
	// same atomic update. Counter and expiry must never be applied
	// separately.
	RecordFailure(ctx context.Context, accountID string, threshold int, lockUntil time.Time) (locked bool, attempts int, err error)
	ResetFailures(ctx context.Context, accountID string) error

	GetTwoFactorSecret(ctx context.Context, accountID string) (*TwoFactorSecret, error)

	// SetTwoFactorSecret stores the secret for the given generation and
	// marks the account two-factor enabled in the same update; the Flow
	// escalates to a second-factor challenge based on that flag.
	// ClearTwoFactorSecret removes the secret and marks the account
	// two-factor disabled, again in one update.
	SetTwoFactorSecret(ctx context.Context, accountID string, secret []byte, generation uint32) error
	ClearTwoFactorSecret(ctx context.Context, accountID string) error

	// UpdateTwoFactorLastUsed advances the code-replay watermark. The
	// update must be conditional: when counter is not greater than the
	// stored value the call fails with ErrCodeAlreadyUsed and leaves the
	// watermark unchanged, so concurrent completions accept a code once.
	UpdateTwoFactorLastUsed(ctx context.Context, accountID string, counter int64) error
}

// RoleStore defines a public type used by goIdentity APIs.
//
// RoleStore instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
//
// Lookup, Update, Delete, and the assignment operations return
// ErrRoleNotFound for unknown roles. Names arrive already normalized.
type RoleStore interface {
	Lookup(ctx context.Context, name string) (roleID string, err error)
	Create(ctx context.Context, name string) (roleID string, err error)
	Update(ctx context.Context, roleID, name string) error
	Delete(ctx context.Context, roleID string) error
	CountAssignments(ctx context.Context, roleID string) (int, error)
	Assign(ctx context.Context, accountID, roleID string) error
	Unassign(ctx context.Context, accountID, roleID string) error
}

// TokenPurpose defines a public type used by goIdentity APIs.
//
// TokenPurpose instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TokenPurpose string

const (
	// PurposeEmailConfirm is an exported constant or variable used by the identity engine.
	PurposeEmailConfirm TokenPurpose = "email_confirm"
	// PurposePasswordReset is an exported constant or variable used by the identity engine.
	PurposePasswordReset TokenPurpose = "password_reset"
)

// TokenIssuer defines a public type used by goIdentity APIs.
//
// TokenIssuer instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
//
// Tokens are purpose- and account-scoped, time-bounded, and single-use:
// Consume succeeds at most once per issued token. Re-issuing for the same
// purpose and account invalidates the predecessor.
type TokenIssuer interface {
	Issue(ctx context.Context, purpose TokenPurpose, accountID string) (string, error)
	Consume(ctx context.Context, purpose TokenPurpose, accountID, token string) error
}

// Notification defines a public type used by goIdentity APIs.
//
// Notification instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Notification struct {
	Recipient string
	Subject   string
	Body      string
	Purpose   TokenPurpose
	Token     string
}

// NotificationSender defines a public type used by goIdentity APIs.
//
// NotificationSender instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type NotificationSender interface {
	Send(ctx context.Context, n Notification) error
}
