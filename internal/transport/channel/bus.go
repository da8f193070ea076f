// Package channel carries finished request records from the gateway to the
// archiver.
package channel

import (
	"context"
	"errors"
	"time"

	"github.com/lmcdonald6/reic-gateway/internal/domain"
)

// ErrBufferFull is returned when the buffer stays full for the emit timeout.
var ErrBufferFull = errors.New("event bus buffer full")

const DefaultEmitTimeout = 100 * time.Millisecond

// MetricsSink is the subset of metrics.Sink the bus reports to.
type MetricsSink interface {
	BufferSizeUpdate(size int)
	BufferCapacitySet(capacity int)
	EmitError()
}

type EventBus struct {
	ch          chan domain.RequestMetrics
	emitTimeout time.Duration
	metrics     MetricsSink
}

type Option func(*EventBus)

func WithEmitTimeout(d time.Duration) Option {
	return func(b *EventBus) {
		if d > 0 {
			b.emitTimeout = d
		}
	}
}

func WithMetrics(m MetricsSink) Option {
	return func(b *EventBus) { b.metrics = m }
}

func NewEventBus(buffer int, opts ...Option) *EventBus {
	b := &EventBus{
		ch:          make(chan domain.RequestMetrics, buffer),
		emitTimeout: DefaultEmitTimeout,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.metrics != nil {
		b.metrics.BufferCapacitySet(buffer)
	}
	return b
}

// Emit blocks until the record is buffered, the emit timeout elapses or ctx
// is done.
func (b *EventBus) Emit(ctx context.Context, m domain.RequestMetrics) error {
	timer := time.NewTimer(b.emitTimeout)
	defer timer.Stop()

	select {
	case b.ch <- m:
		b.reportSize()
		return nil
	case <-ctx.Done():
		b.reportError()
		return ctx.Err()
	case <-timer.C:
		b.reportError()
		return ErrBufferFull
	}
}

// TryEmit buffers the record without blocking. A full buffer drops it.
func (b *EventBus) TryEmit(m domain.RequestMetrics) bool {
	select {
	case b.ch <- m:
		b.reportSize()
		return true
	default:
		b.reportError()
		return false
	}
}

func (b *EventBus) Channel() <-chan domain.RequestMetrics {
	return b.ch
}

func (b *EventBus) Len() int {
	return len(b.ch)
}

// Close stops accepting records. Callers must not emit after Close.
func (b *EventBus) Close() {
	close(b.ch)
}

func (b *EventBus) reportSize() {
	if b.metrics != nil {
		b.metrics.BufferSizeUpdate(len(b.ch))
	}
}

func (b *EventBus) reportError() {
	if b.metrics != nil {
		b.metrics.EmitError()
	}
}
