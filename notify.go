package goIdentity

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// NoOpSender defines a public type used by goIdentity APIs.
//
// NoOpSender instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type NoOpSender struct{}

// Send describes the send operation and its observable behavior.
//
// Send may return an error when input validation, dependency calls, or security checks fail.
// Send does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (NoOpSender) Send(_ context.Context, _ Notification) error {
	return nil
}

// WriterSender defines a public type used by goIdentity APIs.
//
// WriterSender instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
//
// WriterSender writes one line per notification. It stands in for a real
// mail transport during development and in the bundled examples.
type WriterSender struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSender describes the newwritersender operation and its observable behavior.
//
// NewWriterSender may return an error when input validation, dependency calls, or security checks fail.
// NewWriterSender does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewWriterSender(w io.Writer) *WriterSender {
	return &WriterSender{w: w}
}

// Send describes the send operation and its observable behavior.
//
// Send may return an error when input validation, dependency calls, or security checks fail.
// Send does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *WriterSender) Send(_ context.Context, n Notification) error {
	if s == nil || s.w == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := fmt.Fprintf(s.w, "to=%s purpose=%s subject=%q token=%s\n",
		n.Recipient, n.Purpose, n.Subject, n.Token)
	return err
}

// ChannelSender defines a public type used by goIdentity APIs.
//
// ChannelSender instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ChannelSender struct {
	// C receives every notification passed to Send. The caller owns
	// draining it; Send blocks when the buffer is full.
	C chan Notification
}

// NewChannelSender describes the newchannelsender operation and its observable behavior.
//
// NewChannelSender may return an error when input validation, dependency calls, or security checks fail.
// NewChannelSender does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewChannelSender(buffer int) *ChannelSender {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSender{
		C: make(chan Notification, buffer),
	}
}

// Send describes the send operation and its observable behavior.
//
// Send may return an error when input validation, dependency calls, or security checks fail.
// Send does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *ChannelSender) Send(ctx context.Context, n Notification) error {
	if s == nil || s.C == nil {
		return nil
	}

	select {
	case s.C <- n:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
