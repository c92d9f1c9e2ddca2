package codearc_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/codearc"
	"github.com/hupe1980/codearc/code"
	"github.com/hupe1980/codearc/resource"
	"github.com/hupe1980/codearc/testutil"
)

func TestVerify(t *testing.T) {
	path := archivePath(t)
	rtW := testutil.NewRuntime(writerBase)
	mA := rtW.RegisterMethod("com/example/A", "a", "()V")
	mB := rtW.RegisterMethod("com/example/B", "b", "()V")
	mC := rtW.RegisterMethod("com/example/C", "c", "()V")
	gone := rtW.RegisterClass("com/example/Gone")

	arc := codearc.Initialize(codearc.WriteConfig(path), rtW)
	require.NotNil(t, arc)

	require.NoError(t, arc.StoreStub(0, "checkcast", callBuffer(rtW, "stub_checkcast")))
	require.NoError(t, arc.StoreBlob("deopt", 8, callBuffer(rtW, "rt_safepoint")))

	_, err := arc.StoreMethod(mA, simpleDesc(0), callBuffer(rtW, "rt_new_instance"))
	require.NoError(t, err)

	// Entry 3 references a class that will not resolve in the verifying
	// process.
	withGone := callBuffer(rtW, "rt_resolve_call")
	withGone.Relocs[code.SectInsts] = append(withGone.Relocs[code.SectInsts],
		code.Reloc{Offset: 8, Kind: code.RelocMetadata, Index: withGone.RecordMetadata(gone)})
	_, err = arc.StoreMethod(mB, simpleDesc(0), withGone)
	require.NoError(t, err)

	// Entry 4 is invalidated before the image is finalized.
	h, err := arc.StoreMethod(mC, simpleDesc(0), callBuffer(rtW, "rt_safepoint"))
	require.NoError(t, err)
	arc.Invalidate(h)

	require.NoError(t, arc.Close())

	rtR := testutil.NewRuntime(readerBase)
	loaded := codearc.Initialize(codearc.ReadConfig(path), rtR)
	require.NotNil(t, loaded)
	defer loaded.Close()

	report, err := loaded.Verify(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint64(3), report.Verified.GetCardinality())
	assert.True(t, report.Verified.Contains(0))
	assert.True(t, report.Verified.Contains(1))
	assert.True(t, report.Verified.Contains(2))

	assert.Equal(t, uint64(1), report.Failed.GetCardinality())
	assert.True(t, report.Failed.Contains(3))
	require.Len(t, report.Errors, 1)
	var lookup *codearc.LookupError
	assert.ErrorAs(t, report.Errors[0], &lookup)

	assert.Equal(t, uint64(1), report.Skipped.GetCardinality())
	assert.True(t, report.Skipped.Contains(4))

	// Verification resolves but never installs, and per-entry failures do
	// not disable the archive.
	assert.Empty(t, rtR.Installed())
	assert.False(t, loaded.Failed())
}

func TestVerifyOnlySession(t *testing.T) {
	path := archivePath(t)
	rtW := testutil.NewRuntime(writerBase)
	mW := rtW.RegisterMethod("com/example/Audit", "run", "()V")
	arc := codearc.Initialize(codearc.WriteConfig(path), rtW)
	require.NotNil(t, arc)
	_, err := arc.StoreMethod(mW, simpleDesc(0), callBuffer(rtW, "rt_safepoint"))
	require.NoError(t, err)
	require.NoError(t, arc.Close())

	rtR := testutil.NewRuntime(readerBase)
	mR := rtR.RegisterMethod("com/example/Audit", "run", "()V")
	loaded := codearc.Initialize(codearc.ReadConfig(path), rtR, codearc.WithVerifyOnly())
	require.NotNil(t, loaded)
	defer loaded.Close()

	require.NoError(t, loaded.LoadMethod(mR, 0))
	assert.Empty(t, rtR.Installed())
	assert.Equal(t, 1, loaded.Stats().LoadedOnce)
}

func TestVerifyCanceled(t *testing.T) {
	path := archivePath(t)
	rtW := testutil.NewRuntime(writerBase)
	arc := codearc.Initialize(codearc.WriteConfig(path), rtW)
	require.NotNil(t, arc)
	require.NoError(t, arc.StoreBlob("adapter", 0, callBuffer(rtW, "rt_safepoint")))
	require.NoError(t, arc.Close())

	rtR := testutil.NewRuntime(readerBase)
	loaded := codearc.Initialize(codearc.ReadConfig(path), rtR)
	require.NotNil(t, loaded)
	defer loaded.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := loaded.Verify(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, loaded.Failed())
}

func TestVerifyWorkerLimit(t *testing.T) {
	path := archivePath(t)
	rtW := testutil.NewRuntime(writerBase)
	arc := codearc.Initialize(codearc.WriteConfig(path), rtW)
	require.NotNil(t, arc)
	for i := 0; i < 4; i++ {
		require.NoError(t, arc.StoreBlob(fmt.Sprintf("blob_%d", i), 0, callBuffer(rtW, "rt_safepoint")))
	}
	require.NoError(t, arc.Close())

	rtR := testutil.NewRuntime(readerBase)
	limiter := resource.NewLimiter(resource.Config{MaxVerifyWorkers: 1})
	loaded := codearc.Initialize(codearc.ReadConfig(path), rtR, codearc.WithResourceLimiter(limiter))
	require.NotNil(t, loaded)
	defer loaded.Close()

	report, err := loaded.Verify(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(4), report.Verified.GetCardinality())
	assert.True(t, report.Failed.IsEmpty())
}
