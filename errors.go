package goIdentity

import "errors"

var (
	// ErrInvalidCredentials is an exported constant or variable used by the identity engine.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrLockedOut is an exported constant or variable used by the identity engine.
	ErrLockedOut = errors.New("account locked out")
	// ErrTwoFactorRequired is an exported constant or variable used by the identity engine.
	ErrTwoFactorRequired = errors.New("two-factor confirmation required")
	// ErrNoActiveChallenge is an exported constant or variable used by the identity engine.
	ErrNoActiveChallenge = errors.New("no active two-factor challenge")
	// ErrCodeAlreadyUsed is an exported constant or variable used by the identity engine.
	ErrCodeAlreadyUsed = errors.New("one-time code already used")
	// ErrAlreadyLinked is an exported constant or variable used by the identity engine.
	ErrAlreadyLinked = errors.New("external identity already linked to another account")
	// ErrNoSuchLink is an exported constant or variable used by the identity engine.
	ErrNoSuchLink = errors.New("external identity link not found")
	// ErrEnrollmentNotVerified is an exported constant or variable used by the identity engine.
	ErrEnrollmentNotVerified = errors.New("two-factor enrollment not verified")
	// ErrInvalidOrExpiredToken is an exported constant or variable used by the identity engine.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	// ErrDuplicateRole is an exported constant or variable used by the identity engine.
	ErrDuplicateRole = errors.New("role name already exists")
	// ErrRoleInUse is an exported constant or variable used by the identity engine.
	ErrRoleInUse = errors.New("role still assigned to accounts")
	// ErrRoleNotFound is an exported constant or variable used by the identity engine.
	ErrRoleNotFound = errors.New("role not found")
	// ErrAccountNotFound is an exported constant or variable used by the identity engine.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountExists is an exported constant or variable used by the identity engine.
	ErrAccountExists = errors.New("account already exists")
	// ErrSecretPolicy is an exported constant or variable used by the identity engine.
	ErrSecretPolicy = errors.New("secret policy violation")
	// ErrInvalidHandle is an exported constant or variable used by the identity engine.
	ErrInvalidHandle = errors.New("invalid login handle")
	// ErrRegistrationDisabled is an exported constant or variable used by the identity engine.
	ErrRegistrationDisabled = errors.New("registration disabled")
	// ErrTransientFailure is an exported constant or variable used by the identity engine.
	ErrTransientFailure = errors.New("transient backend failure")
	// ErrEngineNotReady is an exported constant or variable used by the identity engine.
	ErrEngineNotReady = errors.New("flow not initialized")
)
