package goIdentity

import "sync/atomic"

// MetricID defines a public type used by goIdentity APIs.
//
// MetricID instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricID uint16

const (
	// MetricPrimaryAuthSuccess is an exported constant or variable used by the identity engine.
	MetricPrimaryAuthSuccess MetricID = iota
	// MetricPrimaryAuthRejected is an exported constant or variable used by the identity engine.
	MetricPrimaryAuthRejected
	// MetricPrimaryAuthLockout is an exported constant or variable used by the identity engine.
	MetricPrimaryAuthLockout
	// MetricTwoFactorRequired is an exported constant or variable used by the identity engine.
	MetricTwoFactorRequired
	// MetricTwoFactorSuccess is an exported constant or variable used by the identity engine.
	MetricTwoFactorSuccess
	// MetricTwoFactorRejected is an exported constant or variable used by the identity engine.
	MetricTwoFactorRejected
	// MetricTwoFactorReplay is an exported constant or variable used by the identity engine.
	MetricTwoFactorReplay
	// MetricTwoFactorAttemptsExceeded is an exported constant or variable used by the identity engine.
	MetricTwoFactorAttemptsExceeded
	// MetricTwoFactorLockout is an exported constant or variable used by the identity engine.
	MetricTwoFactorLockout
	// MetricExternalSignInSuccess is an exported constant or variable used by the identity engine.
	MetricExternalSignInSuccess
	// MetricExternalSignInFailure is an exported constant or variable used by the identity engine.
	MetricExternalSignInFailure
	// MetricExternalLinked is an exported constant or variable used by the identity engine.
	MetricExternalLinked
	// MetricExternalLinkConflict is an exported constant or variable used by the identity engine.
	MetricExternalLinkConflict
	// MetricEnrollmentStarted is an exported constant or variable used by the identity engine.
	MetricEnrollmentStarted
	// MetricEnrollmentConfirmed is an exported constant or variable used by the identity engine.
	MetricEnrollmentConfirmed
	// MetricEnrollmentRejected is an exported constant or variable used by the identity engine.
	MetricEnrollmentRejected
	// MetricTwoFactorDisabled is an exported constant or variable used by the identity engine.
	MetricTwoFactorDisabled
	// MetricResetRequested is an exported constant or variable used by the identity engine.
	MetricResetRequested
	// MetricResetCompleted is an exported constant or variable used by the identity engine.
	MetricResetCompleted
	// MetricResetRejected is an exported constant or variable used by the identity engine.
	MetricResetRejected
	// MetricEmailConfirmed is an exported constant or variable used by the identity engine.
	MetricEmailConfirmed
	// MetricEmailConfirmRejected is an exported constant or variable used by the identity engine.
	MetricEmailConfirmRejected
	// MetricRegistrationSuccess is an exported constant or variable used by the identity engine.
	MetricRegistrationSuccess
	// MetricRegistrationDuplicate is an exported constant or variable used by the identity engine.
	MetricRegistrationDuplicate
	// MetricRoleCreated is an exported constant or variable used by the identity engine.
	MetricRoleCreated
	// MetricRoleUpdated is an exported constant or variable used by the identity engine.
	MetricRoleUpdated
	// MetricRoleDeleted is an exported constant or variable used by the identity engine.
	MetricRoleDeleted
	// MetricRoleConflict is an exported constant or variable used by the identity engine.
	MetricRoleConflict
	// MetricTransientFailure is an exported constant or variable used by the identity engine.
	MetricTransientFailure
	// MetricAuditDropped is an exported constant or variable used by the identity engine.
	MetricAuditDropped
	metricIDCount
)

const cacheLineSize = 64

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics defines a public type used by goIdentity APIs.
//
// Metrics instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]paddedCounter
}

// MetricsSnapshot defines a public type used by goIdentity APIs.
//
// MetricsSnapshot instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// NewMetrics describes the newmetrics operation and its observable behavior.
//
// NewMetrics may return an error when input validation, dependency calls, or security checks fail.
// NewMetrics does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled: cfg.Enabled,
	}
}

// Enabled describes the enabled operation and its observable behavior.
//
// Enabled may return an error when input validation, dependency calls, or security checks fail.
// Enabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Inc describes the inc operation and its observable behavior.
//
// Inc may return an error when input validation, dependency calls, or security checks fail.
// Inc does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Value describes the value operation and its observable behavior.
//
// Value may return an error when input validation, dependency calls, or security checks fail.
// Value does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot describes the snapshot operation and its observable behavior.
//
// Snapshot may return an error when input validation, dependency calls, or security checks fail.
// Snapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters: map[MetricID]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters: make(map[MetricID]uint64, int(metricIDCount)),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	return s
}
