package goIdentity

import (
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goIdentity/password"
)

// Builder defines a public type used by goIdentity APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  *redis.Client

	credentials CredentialStore
	roles       RoleStore
	tokens      TokenIssuer
	notifier    NotificationSender
	auditSink   AuditSink

	built bool
}

// New describes the new operation and its observable behavior.
//
// New may return an error when input validation, dependency calls, or security checks fail.
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig may return an error when input validation, dependency calls, or security checks fail.
// WithConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis describes the withredis operation and its observable behavior.
//
// WithRedis may return an error when input validation, dependency calls, or security checks fail.
// WithRedis does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithCredentialStore describes the withcredentialstore operation and its observable behavior.
//
// WithCredentialStore may return an error when input validation, dependency calls, or security checks fail.
// WithCredentialStore does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithCredentialStore(store CredentialStore) *Builder {
	b.credentials = store
	return b
}

// WithRoleStore describes the withrolestore operation and its observable behavior.
//
// WithRoleStore may return an error when input validation, dependency calls, or security checks fail.
// WithRoleStore does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithRoleStore(store RoleStore) *Builder {
	b.roles = store
	return b
}

// WithTokenIssuer describes the withtokenissuer operation and its observable behavior.
//
// WithTokenIssuer may return an error when input validation, dependency calls, or security checks fail.
// WithTokenIssuer does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithTokenIssuer(issuer TokenIssuer) *Builder {
	b.tokens = issuer
	return b
}

// WithNotificationSender describes the withnotificationsender operation and its observable behavior.
//
// WithNotificationSender may return an error when input validation, dependency calls, or security checks fail.
// WithNotificationSender does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithNotificationSender(sender NotificationSender) *Builder {
	b.notifier = sender
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// WithAuditSink may return an error when input validation, dependency calls, or security checks fail.
// WithAuditSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled may return an error when input validation, dependency calls, or security checks fail.
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when input validation, dependency calls, or security checks fail.
// Build does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) Build() (*Flow, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.credentials == nil {
		return nil, errors.New("credential store required")
	}

	if b.roles == nil {
		return nil, errors.New("role store required")
	}

	flow := &Flow{
		config:      cfg,
		credentials: b.credentials,
		roles:       b.roles,
	}

	// -------- REDIS-BACKED STATE --------
	flow.challenges = newChallengeStore(b.redis)
	flow.enrollments = newEnrollmentStore(b.redis)
	flow.links = newLinkStore(b.redis)

	flow.tokens = b.tokens
	if flow.tokens == nil {
		flow.tokens = newRedisTokenIssuer(b.redis, cfg.Token)
	}

	flow.notifier = b.notifier
	if flow.notifier == nil {
		flow.notifier = NoOpSender{}
	}

	// -------- OBSERVABILITY --------
	flow.metrics = NewMetrics(cfg.Metrics)
	flow.audit = newAuditDispatcher(cfg.Audit, b.auditSink, flow.metrics)

	// -------- CRYPTO --------
	flow.totp = newTOTPManager(cfg.TwoFactor)

	ph, err := password.New(password.Config{
		Memory:      cfg.Secret.Memory,
		Time:        cfg.Secret.Time,
		Parallelism: cfg.Secret.Parallelism,
		SaltLength:  cfg.Secret.SaltLength,
		KeyLength:   cfg.Secret.KeyLength,
	})
	if err != nil {
		return nil, err
	}
	flow.secretHash = ph

	b.built = true

	return flow, nil
}
