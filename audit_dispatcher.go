package goIdentity

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// auditDispatcher decouples Flow operations from the configured AuditSink.
// Events are handed to a single delivery goroutine; a full buffer either
// blocks the caller or sheds the event, per AuditConfig. Shed events are
// counted, mirrored into MetricAuditDropped, and reported as a final
// audit_backlog_dropped event when the dispatcher shuts down, so the loss
// is visible in the audit trail itself.
type auditDispatcher struct {
	sink       AuditSink
	metrics    *Metrics
	dropIfFull bool

	events chan AuditEvent
	stop   chan struct{}
	wg     sync.WaitGroup

	dropped   atomic.Uint64
	accepting atomic.Bool
	closeOnce sync.Once
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink, metrics *Metrics) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	buffer := cfg.BufferSize
	if buffer <= 0 {
		buffer = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &auditDispatcher{
		sink:       sink,
		metrics:    metrics,
		dropIfFull: cfg.DropIfFull,
		events:     make(chan AuditEvent, buffer),
		stop:       make(chan struct{}),
	}
	d.accepting.Store(true)

	d.wg.Add(1)
	go d.deliver()

	return d
}

func (d *auditDispatcher) deliver() {
	defer d.wg.Done()

	for {
		select {
		case event := <-d.events:
			d.sink.Emit(context.Background(), event)
		case <-d.stop:
			d.drain()
			return
		}
	}
}

// drain flushes the queued backlog, then accounts for what was shed.
func (d *auditDispatcher) drain() {
	for {
		select {
		case event := <-d.events:
			d.sink.Emit(context.Background(), event)
		default:
			if n := d.dropped.Load(); n > 0 {
				d.sink.Emit(context.Background(), AuditEvent{
					Timestamp: time.Now().UTC(),
					EventType: auditEventBacklogDropped,
					Success:   false,
					Metadata:  map[string]string{"dropped": strconv.FormatUint(n, 10)},
				})
			}
			return
		}
	}
}

// Emit describes the emit operation and its observable behavior.
//
// Emit may return an error when input validation, dependency calls, or security checks fail.
// Emit does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (d *auditDispatcher) Emit(ctx context.Context, event AuditEvent) {
	if d == nil || !d.accepting.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.dropIfFull {
		select {
		case d.events <- event:
		case <-d.stop:
		default:
			d.dropped.Add(1)
			if d.metrics != nil {
				d.metrics.Inc(MetricAuditDropped)
			}
		}
		return
	}

	select {
	case d.events <- event:
	case <-ctx.Done():
	case <-d.stop:
	}
}

// Close describes the close operation and its observable behavior.
//
// Close may return an error when input validation, dependency calls, or security checks fail.
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.accepting.Store(false)
		close(d.stop)
		d.wg.Wait()
	})
}

// Dropped describes the dropped operation and its observable behavior.
//
// Dropped may return an error when input validation, dependency calls, or security checks fail.
// Dropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
