package resource

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterSlots(t *testing.T) {
	l := NewLimiter(Config{MaxVerifyWorkers: 2})

	require.NoError(t, l.Acquire(context.Background()))
	require.NoError(t, l.Acquire(context.Background()))
	assert.False(t, l.TryAcquire())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Acquire(ctx), context.DeadlineExceeded)

	l.Release()
	assert.True(t, l.TryAcquire())
}

func TestLimiterNil(t *testing.T) {
	var l *Limiter

	require.NoError(t, l.Acquire(context.Background()))
	assert.True(t, l.TryAcquire())
	l.Release()
	require.NoError(t, l.WaitIO(context.Background(), 1<<30))
	assert.Positive(t, l.VerifyWorkers())
}

func TestLimiterIOSplitsLargeRequests(t *testing.T) {
	l := NewLimiter(Config{TransferBytesPerSec: 1 << 24})

	// More than the burst must not be rejected outright.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, l.WaitIO(ctx, (1<<24)+(1<<10)))
}

func TestLimitedWriter(t *testing.T) {
	l := NewLimiter(Config{TransferBytesPerSec: 1 << 20})
	var buf bytes.Buffer

	w := NewLimitedWriter(context.Background(), &buf, l)
	n, err := w.Write([]byte("archive bytes"))
	require.NoError(t, err)
	assert.Equal(t, 13, n)
	assert.Equal(t, "archive bytes", buf.String())
}

func TestLimitedReader(t *testing.T) {
	l := NewLimiter(Config{TransferBytesPerSec: 1 << 20})

	r := NewLimitedReader(context.Background(), strings.NewReader("archive bytes"), l)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "archive bytes", string(got))
}

func TestLimitedWriterCanceled(t *testing.T) {
	l := NewLimiter(Config{TransferBytesPerSec: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := NewLimitedWriter(ctx, io.Discard, l)
	_, err := w.Write(make([]byte, 10))
	require.Error(t, err)
}
