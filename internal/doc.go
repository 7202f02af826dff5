// Package internal contains helper utilities that are intentionally private to goIdentity,
// including secure random challenge identifiers, opaque token material, and OTP generation.
//
// # What this package must NOT do
//
//   - Export types that appear in the public goIdentity API.
//   - Be imported by any package outside the goIdentity module.
package internal
