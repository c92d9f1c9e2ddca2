// Package resource bounds the archive's background work: the number of
// concurrent verification workers and the byte throughput of archive
// transfers. A nil *Limiter means no limits, so call sites never branch.
package resource

import (
	"context"
	"runtime"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits.
type Config struct {
	// MaxVerifyWorkers is the maximum number of entries verified
	// concurrently. If 0, defaults to GOMAXPROCS.
	MaxVerifyWorkers int64

	// TransferBytesPerSec is the maximum throughput of archive publish
	// and fetch transfers. If 0, unlimited.
	TransferBytesPerSec int64
}

// Limiter dispenses verification slots and transfer-IO tokens.
type Limiter struct {
	cfg Config

	slots *semaphore.Weighted
	io    *rate.Limiter
}

// NewLimiter creates a limiter for the given limits.
func NewLimiter(cfg Config) *Limiter {
	if cfg.MaxVerifyWorkers <= 0 {
		cfg.MaxVerifyWorkers = int64(runtime.GOMAXPROCS(0))
	}

	l := &Limiter{
		cfg:   cfg,
		slots: semaphore.NewWeighted(cfg.MaxVerifyWorkers),
	}

	if cfg.TransferBytesPerSec > 0 {
		l.io = rate.NewLimiter(rate.Limit(cfg.TransferBytesPerSec), int(cfg.TransferBytesPerSec))
	}

	return l
}

// VerifyWorkers returns the configured worker bound.
func (l *Limiter) VerifyWorkers() int64 {
	if l == nil {
		return int64(runtime.GOMAXPROCS(0))
	}
	return l.cfg.MaxVerifyWorkers
}

// Acquire reserves a verification slot, blocking while all are busy.
func (l *Limiter) Acquire(ctx context.Context) error {
	if l == nil {
		return nil
	}
	return l.slots.Acquire(ctx, 1)
}

// TryAcquire reserves a verification slot without blocking.
func (l *Limiter) TryAcquire() bool {
	if l == nil {
		return true
	}
	return l.slots.TryAcquire(1)
}

// Release returns a verification slot.
func (l *Limiter) Release() {
	if l == nil {
		return
	}
	l.slots.Release(1)
}

// WaitIO blocks until the transfer budget allows n more bytes.
func (l *Limiter) WaitIO(ctx context.Context, n int) error {
	if l == nil || l.io == nil {
		return nil
	}
	// WaitN rejects n beyond the burst outright; split large requests.
	burst := l.io.Burst()
	for n > burst {
		if err := l.io.WaitN(ctx, burst); err != nil {
			return err
		}
		n -= burst
	}
	return l.io.WaitN(ctx, n)
}
