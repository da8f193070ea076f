// Package archive persists finished request records off the request path.
package archive

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/lmcdonald6/reic-gateway/internal/domain"
)

var defaultBackoff = []time.Duration{
	0,
	100 * time.Millisecond,
	500 * time.Millisecond,
}

type Store interface {
	InsertRequestLog(ctx context.Context, m domain.RequestMetrics) error
}

// MetricsSink records archive outcomes. Must not block.
type MetricsSink interface {
	ArchiveWrite(ok bool)
	BufferSizeUpdate(size int)
}

type Archiver struct {
	store   Store
	metrics MetricsSink // optional, nil = disabled
	backoff []time.Duration
	sleep   func(context.Context, time.Duration) error
}

func New(store Store) *Archiver {
	return &Archiver{
		store:   store,
		backoff: defaultBackoff,
		sleep:   sleepCtx,
	}
}

// WithMetrics attaches a metrics sink to the archiver.
func (a *Archiver) WithMetrics(sink MetricsSink) *Archiver {
	a.metrics = sink
	return a
}

// Run archives records from the channel until ctx is cancelled or the
// channel is closed, then drains what is still buffered.
func (a *Archiver) Run(ctx context.Context, ch <-chan domain.RequestMetrics) {
	for {
		select {
		case <-ctx.Done():
			a.drain(ch)
			return
		case m, ok := <-ch:
			if !ok {
				return
			}
			if a.metrics != nil {
				a.metrics.BufferSizeUpdate(len(ch))
			}
			if err := a.Archive(ctx, m); err != nil {
				log.Printf("archive: error: %v", err)
			}
		}
	}
}

// DrainTimeout is the maximum time spent on buffered records during shutdown.
const DrainTimeout = 10 * time.Second

func (a *Archiver) drain(ch <-chan domain.RequestMetrics) {
	drainCtx, cancel := context.WithTimeout(context.Background(), DrainTimeout)
	defer cancel()

	count := 0
	for {
		select {
		case <-drainCtx.Done():
			if count > 0 {
				log.Printf("archive: drain timeout, archived %d records", count)
			}
			return
		case m, ok := <-ch:
			if !ok {
				log.Printf("archive: drain complete, archived %d records", count)
				return
			}
			if err := a.Archive(drainCtx, m); err != nil {
				log.Printf("archive: drain error: %v", err)
			}
			count++
		default:
			if count > 0 {
				log.Printf("archive: drain complete, archived %d records", count)
			}
			return
		}
	}
}

// Archive writes one record, retrying transient failures.
func (a *Archiver) Archive(ctx context.Context, m domain.RequestMetrics) error {
	var lastErr error
	for attempt, wait := range a.backoff {
		if wait > 0 {
			if err := a.sleep(ctx, wait); err != nil {
				lastErr = err
				break
			}
		}
		lastErr = a.store.InsertRequestLog(ctx, m)
		if lastErr == nil {
			a.report(true)
			return nil
		}
		if ctx.Err() != nil {
			break
		}
		log.Printf("archive: request=%s attempt=%d failed: %v", m.RequestID, attempt+1, lastErr)
	}
	a.report(false)
	return fmt.Errorf("archive request %s: %w", m.RequestID, lastErr)
}

func (a *Archiver) report(ok bool) {
	if a.metrics != nil {
		a.metrics.ArchiveWrite(ok)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
