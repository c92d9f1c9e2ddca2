package codearc

import (
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/hupe1980/codearc/format"
	"github.com/hupe1980/codearc/internal/conv"
)

// drainTimeout bounds the shutdown wait for in-flight loads.
const drainTimeout = 5 * time.Second

// Close drains in-flight loads, finalizes a write session, and releases
// the underlying file. Safe on a nil archive and idempotent: only the
// first call does the work, later calls return nil.
func (a *Archive) Close() error {
	if a == nil {
		return nil
	}
	if !a.closing.CompareAndSwap(false, true) {
		return nil
	}

	a.drainLoads()

	if a.opts.statsOnClose {
		a.logStats()
	}

	if a.cfg.Store {
		return a.finalize()
	}

	var err error
	if a.r != nil {
		err = a.r.Close()
	}
	if err != nil {
		a.logger.Error("archive close failed", "error", err)
		return err
	}
	a.logger.Info("archive closed")
	return nil
}

// drainLoads waits for the in-flight counter to reach zero. New loads are
// already fenced off by the closing flag; the last reader out broadcasts.
// The wait is bounded so a bookkeeping bug can degrade shutdown into a
// warning instead of a hang.
func (a *Archive) drainLoads() {
	if a.inflight.Load() == 0 {
		return
	}

	var timedOut atomic.Bool
	timer := time.AfterFunc(drainTimeout, func() {
		timedOut.Store(true)
		a.drainMu.Lock()
		a.drain.Broadcast()
		a.drainMu.Unlock()
	})
	defer timer.Stop()

	a.drainMu.Lock()
	for a.inflight.Load() > 0 && !timedOut.Load() {
		a.drain.Wait()
	}
	a.drainMu.Unlock()

	if n := a.inflight.Load(); n > 0 {
		a.logger.Warn("closing with loads still in flight", "count", n)
	}
}

// finalize serializes the string pool, the entry index and the final
// header, then flushes the whole image to disk. Runs under mu so it
// strictly follows any store still holding the lock.
func (a *Archive) finalize() error {
	start := time.Now()

	a.mu.Lock()
	defer a.mu.Unlock()

	err := a.writeImage()
	size := 0
	if err == nil {
		size = a.w.Size()
	}
	a.metrics.RecordFinalize(len(a.entries), size, time.Since(start), err)
	a.logger.LogFinalize(a.cfg.Path, len(a.entries), size, err)
	return err
}

// writeImage appends the string pool and entry index, rewrites the header
// at offset zero with the real counts and offsets, and flushes. A failed
// session writes nothing and removes the file, so the next run sees a
// clean miss instead of a torn archive.
func (a *Archive) writeImage() error {
	if a.failed.Load() {
		a.file.Close()
		if err := a.fsys.Remove(a.cfg.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			a.logger.Warn("failed archive left on disk", "error", err)
		}
		return ErrFailed
	}

	w := a.w
	w.SetPosition(w.Size())

	pool := a.tab.Strings()
	w.Align(format.Align)
	stringsOff := w.Position()
	w.WriteBytes(format.AppendStringPool(nil, pool))

	w.Align(format.Align)
	entriesOff := w.Position()
	for _, e := range a.entries {
		w.WriteBytes(format.AppendEntry(nil, e))
	}

	size := w.Size()
	if _, err := conv.IntToUint32(size); err != nil {
		a.fail(err)
		a.file.Close()
		return fmt.Errorf("archive too large: %w", err)
	}

	// size bounds every offset and count below.
	hdr := format.Header{
		Version:       format.Version,
		EntryCount:    uint32(len(a.entries)),
		ArchiveSize:   uint32(size),
		EntriesOffset: uint32(entriesOff),
		StringsCount:  uint32(len(pool)),
		StringsOffset: uint32(stringsOff),
	}
	w.SetPosition(0)
	w.WriteBytes(format.AppendHeader(nil, hdr))

	if err := w.Err(); err != nil {
		a.fail(err)
		a.file.Close()
		return err
	}

	if _, err := a.file.Write(w.Bytes()); err != nil {
		a.fail(err)
		a.file.Close()
		return fmt.Errorf("write archive: %w", err)
	}
	if err := a.file.Sync(); err != nil {
		a.fail(err)
		a.file.Close()
		return fmt.Errorf("sync archive: %w", err)
	}
	if err := a.file.Close(); err != nil {
		a.fail(err)
		return fmt.Errorf("close archive: %w", err)
	}
	return nil
}
