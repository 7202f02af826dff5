// Package goIdentity provides an embeddable account sign-in engine: primary
// credential verification with lockout accounting, TOTP second-factor
// challenges, external identity links, single-use recovery tokens, and role
// administration — all backed by Redis for ephemeral flow state and by
// caller-supplied stores for durable records.
//
// The package is designed for concurrent server workloads: Flow methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// goIdentity is the public surface. It exposes [Flow], [Builder], [Config],
// the collaborator interfaces ([CredentialStore], [RoleStore], [TokenIssuer],
// [NotificationSender]), and value types (AuthResult, TwoFactorSetup,
// MetricsSnapshot, etc.). Record encoding, random material, and flow
// coordination live under internal/ and are never exported.
//
// # What this package must NOT do
//
//   - Expose Redis clients, internal stores, or encoding details in its
//     public API.
//   - Distinguish an unknown handle from a wrong secret anywhere a caller
//     could observe the difference.
//   - Convert a backend failure into a security-relevant allow: when a
//     dependency is down, operations fail with [ErrTransientFailure].
//
// # Outcome contract
//
// Sign-in operations report their terminal state through [AuthResult] —
// exactly one of Authenticated, TwoFactorPending, LockedOut, or Rejected.
// Sentinel errors are reserved for conditions outside the state machine
// (missing challenges, expired tokens, backend failures).
package goIdentity
