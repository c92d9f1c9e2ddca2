package resource

import (
	"context"
	"io"
)

// LimitedWriter throttles writes against a Limiter's transfer budget.
type LimitedWriter struct {
	w   io.Writer
	l   *Limiter
	ctx context.Context
}

// NewLimitedWriter wraps w. A nil limiter passes writes through.
func NewLimitedWriter(ctx context.Context, w io.Writer, l *Limiter) *LimitedWriter {
	return &LimitedWriter{w: w, l: l, ctx: ctx}
}

func (w *LimitedWriter) Write(p []byte) (int, error) {
	if err := w.l.WaitIO(w.ctx, len(p)); err != nil {
		return 0, err
	}
	return w.w.Write(p)
}

// LimitedReader throttles reads against a Limiter's transfer budget.
type LimitedReader struct {
	r   io.Reader
	l   *Limiter
	ctx context.Context
}

// NewLimitedReader wraps r. A nil limiter passes reads through.
func NewLimitedReader(ctx context.Context, r io.Reader, l *Limiter) *LimitedReader {
	return &LimitedReader{r: r, l: l, ctx: ctx}
}

func (r *LimitedReader) Read(p []byte) (int, error) {
	// Charge the bytes actually read, after the fact, so short reads do
	// not overdraw the budget.
	n, err := r.r.Read(p)
	if n > 0 {
		if werr := r.l.WaitIO(r.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}
