package goIdentity

import (
	"errors"
	"strings"
	"time"
)

// Config defines a public type used by goIdentity APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Lockout      LockoutConfig
	TwoFactor    TwoFactorConfig
	Token        TokenConfig
	Secret       SecretConfig
	Registration RegistrationConfig
	Notify       NotifyConfig
	Audit        AuditConfig
	Metrics      MetricsConfig
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig defines a public type used by goIdentity APIs.
//
// LockoutConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type LockoutConfig struct {
	Threshold int
	Duration  time.Duration
}

/*
====================================
TWO FACTOR CONFIG
====================================
*/

// TwoFactorConfig defines a public type used by goIdentity APIs.
//
// TwoFactorConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TwoFactorConfig struct {
	Issuer               string
	Digits               int
	Period               int
	Algorithm            string
	ChallengeTTL         time.Duration
	ChallengeMaxAttempts int
	EnrollmentTTL        time.Duration
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenStrategyType defines a public type used by goIdentity APIs.
//
// TokenStrategyType instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TokenStrategyType int

const (
	// TokenOpaque is an exported constant or variable used by the identity engine.
	TokenOpaque TokenStrategyType = iota
	// TokenOTP is an exported constant or variable used by the identity engine.
	TokenOTP
	// TokenUUID is an exported constant or variable used by the identity engine.
	TokenUUID
)

// TokenConfig defines a public type used by goIdentity APIs.
//
// TokenConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TokenConfig struct {
	Strategy    TokenStrategyType
	TTL         time.Duration
	MaxAttempts int
	OTPDigits   int
}

/*
====================================
SECRET CONFIG
====================================
*/

// SecretConfig defines a public type used by goIdentity APIs.
//
// SecretConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SecretConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

/*
====================================
REGISTRATION CONFIG
====================================
*/

// RegistrationConfig defines a public type used by goIdentity APIs.
//
// RegistrationConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RegistrationConfig struct {
	Enabled               bool
	DefaultRole           string
	LockoutEnabledDefault bool
	RequireConfirmedEmail bool
}

// NotifyConfig defines a public type used by goIdentity APIs.
//
// NotifyConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type NotifyConfig struct {
	ConfirmSubject string
	ResetSubject   string
}

// AuditConfig defines a public type used by goIdentity APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by goIdentity APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

func defaultConfig() Config {
	return Config{
		Lockout: LockoutConfig{
			Threshold: 5,
			Duration:  5 * time.Minute,
		},
		TwoFactor: TwoFactorConfig{
			Issuer:               "",
			Digits:               6,
			Period:               30,
			Algorithm:            "SHA1",
			ChallengeTTL:         3 * time.Minute,
			ChallengeMaxAttempts: 5,
			EnrollmentTTL:        10 * time.Minute,
		},
		Token: TokenConfig{
			Strategy:    TokenOpaque,
			TTL:         15 * time.Minute,
			MaxAttempts: 5,
			OTPDigits:   6,
		},
		Secret: SecretConfig{
			Memory:      65536,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		Registration: RegistrationConfig{
			Enabled:               true,
			DefaultRole:           "",
			LockoutEnabledDefault: true,
			RequireConfirmedEmail: false,
		},
		Notify: NotifyConfig{
			ConfirmSubject: "Confirm your email",
			ResetSubject:   "Reset your password",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
		},
	}
}

// DefaultConfig describes the defaultconfig operation and its observable behavior.
//
// DefaultConfig may return an error when input validation, dependency calls, or security checks fail.
// DefaultConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// The returned config still needs TwoFactor.Issuer and
// Registration.DefaultRole set before it passes Validate.
func DefaultConfig() Config {
	return defaultConfig()
}

func cloneConfig(cfg Config) Config {
	return cfg
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	// Lockout
	if c.Lockout.Threshold <= 0 {
		return errors.New("Lockout Threshold must be > 0")
	}
	if c.Lockout.Duration <= 0 {
		return errors.New("Lockout Duration must be > 0")
	}

	// Two factor
	if c.TwoFactor.Issuer == "" {
		return errors.New("TwoFactor Issuer is required")
	}
	if c.TwoFactor.Digits != 6 && c.TwoFactor.Digits != 8 {
		return errors.New("TwoFactor Digits must be 6 or 8")
	}
	if c.TwoFactor.Period < 15 {
		return errors.New("TwoFactor Period must be >= 15 seconds")
	}
	switch strings.ToUpper(c.TwoFactor.Algorithm) {
	case "", "SHA1", "SHA256", "SHA512":
		// valid (empty treated as SHA1)
	default:
		return errors.New("TwoFactor Algorithm must be SHA1, SHA256, or SHA512")
	}
	if c.TwoFactor.ChallengeTTL <= 0 {
		return errors.New("TwoFactor ChallengeTTL must be > 0")
	}
	if c.TwoFactor.ChallengeMaxAttempts <= 0 {
		return errors.New("TwoFactor ChallengeMaxAttempts must be > 0")
	}
	if c.TwoFactor.EnrollmentTTL <= 0 {
		return errors.New("TwoFactor EnrollmentTTL must be > 0")
	}

	// Tokens
	switch c.Token.Strategy {
	case TokenOpaque, TokenOTP, TokenUUID:
		// valid
	default:
		return errors.New("Token Strategy is invalid")
	}
	if c.Token.TTL <= 0 {
		return errors.New("Token TTL must be > 0")
	}
	if c.Token.MaxAttempts <= 0 {
		return errors.New("Token MaxAttempts must be > 0")
	}
	if c.Token.Strategy == TokenOTP {
		if c.Token.OTPDigits < 6 || c.Token.OTPDigits > 10 {
			return errors.New("Token OTPDigits must be between 6 and 10 in OTP mode")
		}
		if c.Token.MaxAttempts > 5 {
			return errors.New("Token MaxAttempts must be <= 5 in OTP mode")
		}
		if c.Token.TTL > 15*time.Minute {
			return errors.New("Token TTL must be <= 15m in OTP mode")
		}
	}

	// Secret hashing
	if c.Secret.Memory < 8*1024 {
		return errors.New("Secret Memory must be >= 8192 KB")
	}
	if c.Secret.Time < 1 {
		return errors.New("Secret Time must be >= 1")
	}
	if c.Secret.Parallelism < 1 {
		return errors.New("Secret Parallelism must be >= 1")
	}
	if c.Secret.SaltLength < 16 {
		return errors.New("Secret SaltLength must be >= 16")
	}
	if c.Secret.KeyLength < 16 {
		return errors.New("Secret KeyLength must be >= 16")
	}

	// Registration
	if c.Registration.Enabled && c.Registration.DefaultRole == "" {
		return errors.New("Registration DefaultRole is required when registration is enabled")
	}

	// Audit
	if c.Audit.Enabled {
		if c.Audit.BufferSize <= 0 {
			return errors.New("Audit BufferSize must be > 0 when audit is enabled")
		}
	}

	return nil
}
