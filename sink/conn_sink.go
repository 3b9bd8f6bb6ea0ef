// Package sink provides EventSink implementations bridging the fan-out
// router to delivery transports.
package sink

import (
	"context"
	"fmt"
	"sync"

	"chat-relay/domain/event"
	"chat-relay/errors"
)

// ConnSink is the per-connection inbox. The buffered channel decouples the
// fan-out loop from the socket: a slow or stalled client fills its own
// buffer and starts dropping, without delaying delivery to anyone else.
type ConnSink struct {
	Events chan event.DomainEvent

	// Close races the fan-out: a broadcast may already hold this sink when
	// the transport tears down, so the closed flag and the channel close
	// are serialized against every Consume.
	mu     sync.RWMutex
	closed bool
}

func NewConnSink(bufferSize int) *ConnSink {
	return &ConnSink{Events: make(chan event.DomainEvent, bufferSize)}
}

// Consume is called by the fan-out router. It never blocks: a full or
// already-closed inbox reports ErrDeliveryDropped and the recipient
// catches up via history.
func (s *ConnSink) Consume(ctx context.Context, e event.DomainEvent) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("connection closed: %w", errors.ErrDeliveryDropped)
	}
	select {
	case s.Events <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("connection buffer full: %w", errors.ErrDeliveryDropped)
	}
}

// Close releases the inbox; the transport's write pump drains and exits.
// Idempotent, and safe against in-flight Consume calls.
func (s *ConnSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.Events)
}
