package codearc

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/codearc/addrtab"
	"github.com/hupe1980/codearc/code"
	"github.com/hupe1980/codearc/format"
	"github.com/hupe1980/codearc/host"
	"github.com/hupe1980/codearc/internal/fs"
	"github.com/hupe1980/codearc/region"
)

// Installer registers a loaded compiled method with the runtime: the
// sections in buf are freshly placed and fully patched, desc carries the
// side tables verbatim. An Install error fails that one load; the archive
// stays usable.
type Installer interface {
	Install(target host.Method, buf *code.Buffer, desc *code.MethodDesc) error
}

// Runtime is everything the archive needs from its embedder: the address
// book and object resolver for the codecs, plus method installation.
type Runtime interface {
	host.Runtime
	Installer
}

// Handle identifies a stored or looked-up entry for later invalidation.
// The zero Handle is inert.
type Handle struct {
	index uint32
	valid bool
}

// Archive is a persistent store of JIT-compiled artifacts: stubs, code
// blobs and compiled methods, captured in one run and reinstalled in later
// runs of the same runtime configuration.
//
// An Archive is opened either for store or for load, never both. Store
// operations are serialized internally; load operations may run
// concurrently with each other and with Invalidate. All operations on a
// nil *Archive fail with ErrClosed, so embedders can keep the "no archive"
// case branch-free.
type Archive struct {
	cfg  Config
	opts options
	rt   Runtime

	logger  *Logger
	metrics MetricsCollector
	fsys    fs.FileSystem

	tab *addrtab.Table

	// Write session. mu serializes stores, finalize and write-mode
	// invalidation; entries only grows under it.
	mu      sync.Mutex
	w       *region.Writer
	file    fs.File
	entries []format.Entry

	// Read session. entries and flags are immutable after ensureIndex;
	// flags is the not-entrant arena, written atomically so invalidation
	// never blocks a concurrent load.
	r         *region.Reader
	hdr       format.Header
	indexOnce sync.Once
	indexErr  error
	indexed   atomic.Bool
	flags     []atomic.Bool

	loadedMu sync.Mutex
	loaded   *roaring.Bitmap

	failed   atomic.Bool
	closing  atomic.Bool
	inflight atomic.Int64
	drainMu  sync.Mutex
	drain    *sync.Cond
}

// Initialize opens the archive described by cfg, or returns nil when no
// archive is available. Failures are logged, never returned: a nil result
// means the runtime proceeds without an archive. In load mode a missing
// file is a normal outcome, not a failure.
func Initialize(cfg Config, rt Runtime, optFns ...Option) *Archive {
	o := applyOptions(optFns)
	logger := o.logger.WithPath(cfg.Path)

	if rt == nil {
		logger.Error("archive disabled: no runtime provided")
		return nil
	}

	switch {
	case cfg.Store && cfg.Load:
		logger.Error("archive disabled: store and load modes are exclusive")
		return nil

	case cfg.Store:
		arc, err := openForWrite(cfg, rt, o)
		if err != nil {
			logger.Error("archive store session unavailable", "error", err)
			return nil
		}
		logger.Info("archive opened for store", "capacity_bytes", o.maxCapacity)
		return arc

	case cfg.Load:
		arc, err := openForRead(cfg, rt, o)
		if err != nil {
			logger.Error("archive load session unavailable", "error", err)
			return nil
		}
		if arc == nil {
			logger.Info("no archive present")
			return nil
		}
		logger.Info("archive opened for load",
			"entries", arc.hdr.EntryCount,
			"size_bytes", arc.hdr.ArchiveSize,
			"strings", arc.hdr.StringsCount,
		)
		return arc

	default:
		logger.Error("archive disabled: neither store nor load requested")
		return nil
	}
}

func openForWrite(cfg Config, rt Runtime, o options) (*Archive, error) {
	if err := o.fsys.Remove(cfg.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove stale archive: %w", err)
	}
	f, err := o.fsys.OpenFile(cfg.Path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create archive: %w", err)
	}

	tab := addrtab.New(rt, addrtab.WithLogger(o.logger.Logger))
	if err := tab.Init(); err != nil {
		f.Close()
		return nil, fmt.Errorf("address table: %w", err)
	}

	w := region.NewWriter(o.maxCapacity)
	w.WriteBytes(format.AppendHeader(nil, format.Header{Version: format.Version}))
	if err := w.Err(); err != nil {
		f.Close()
		return nil, err
	}

	a := newArchive(cfg, rt, o)
	a.w = w
	a.file = f
	a.tab = tab
	return a, nil
}

func openForRead(cfg Config, rt Runtime, o options) (*Archive, error) {
	info, err := o.fsys.Stat(cfg.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stat archive: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("archive %s is not a regular file", cfg.Path)
	}

	r, err := region.OpenFile(o.fsys, cfg.Path, o.mappedReads)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	hdr, err := format.ParseHeader(r.Data())
	if err != nil {
		r.Close()
		var verr *format.VersionError
		if errors.As(err, &verr) {
			return nil, &FatalError{
				Reason: "archive version mismatch",
				cause:  fmt.Errorf("%w: archive records v%d, runtime expects v%d", ErrVersionMismatch, verr.Got, verr.Want),
			}
		}
		return nil, err
	}
	if int(hdr.ArchiveSize) != r.Len() {
		r.Close()
		return nil, fmt.Errorf("archive truncated: header records %d bytes, file has %d", hdr.ArchiveSize, r.Len())
	}

	tab := addrtab.New(rt, addrtab.WithLogger(o.logger.Logger))
	if err := tab.Init(); err != nil {
		r.Close()
		return nil, fmt.Errorf("address table: %w", err)
	}

	a := newArchive(cfg, rt, o)
	a.r = r
	a.hdr = hdr
	a.tab = tab
	a.loaded = roaring.New()
	return a, nil
}

func newArchive(cfg Config, rt Runtime, o options) *Archive {
	a := &Archive{
		cfg:     cfg,
		opts:    o,
		rt:      rt,
		logger:  o.logger.WithPath(cfg.Path),
		metrics: o.metricsCollector,
		fsys:    o.fsys,
	}
	a.drain = sync.NewCond(&a.drainMu)
	return a
}

// InitCompiler registers the compiler-runtime addresses with the address
// table. Called once the compiler is up; artifacts referencing compiler
// blobs cannot be encoded or resolved before this.
func (a *Archive) InitCompiler() error {
	if a == nil {
		return ErrClosed
	}
	if err := a.state(); err != nil {
		return err
	}
	if err := a.tab.InitCompiler(); err != nil {
		a.fail(err)
		return err
	}
	a.logger.Debug("compiler addresses registered")
	return nil
}

// AddCString registers the character data at addr with the interned-string
// pool. Relocations targeting a registered address encode as a pool id and
// are patched to a live copy of the bytes on load. Store mode only;
// unregistered character addresses fall back to the raw-distance encoding
// when the symbol heuristic allows it.
func (a *Archive) AddCString(addr host.Address) {
	if a == nil || a.state() != nil || !a.cfg.Store {
		return
	}
	a.mu.Lock()
	a.tab.AddCString(addr)
	a.mu.Unlock()
}

// Failed reports whether the archive has entered its sticky failed state.
func (a *Archive) Failed() bool {
	return a != nil && a.failed.Load()
}

// state is the common operation gate.
func (a *Archive) state() error {
	if a == nil || a.closing.Load() {
		return ErrClosed
	}
	if a.failed.Load() {
		return ErrFailed
	}
	return nil
}

func (a *Archive) forStore() error {
	if err := a.state(); err != nil {
		return err
	}
	if !a.cfg.Store {
		return ErrReadOnly
	}
	return nil
}

func (a *Archive) forLoad() error {
	if err := a.state(); err != nil {
		return err
	}
	if !a.cfg.Load {
		return ErrWriteOnly
	}
	return nil
}

// beginLoad admits a reader and pins the archive open until endLoad. The
// closing recheck after the increment closes the race against a concurrent
// Close observing a zero counter.
func (a *Archive) beginLoad() error {
	if err := a.forLoad(); err != nil {
		return err
	}
	a.inflight.Add(1)
	if a.closing.Load() {
		a.endLoad()
		return ErrClosed
	}
	return nil
}

func (a *Archive) endLoad() {
	if a.inflight.Add(-1) == 0 && a.closing.Load() {
		a.drainMu.Lock()
		a.drain.Broadcast()
		a.drainMu.Unlock()
	}
}

// fail latches the sticky failed flag. The first error wins and is the one
// logged.
func (a *Archive) fail(err error) {
	if a.failed.CompareAndSwap(false, true) {
		a.logger.Error("archive disabled", "error", err)
	}
}

// fatal latches a FatalError and returns it.
func (a *Archive) fatal(reason string, cause error) error {
	err := &FatalError{Reason: reason, cause: cause}
	a.fail(err)
	return err
}

// ensureIndex bulk-loads the entry table and the interned-string pool on
// the first read-mode lookup. A malformed index disables the archive.
func (a *Archive) ensureIndex() error {
	a.indexOnce.Do(func() {
		a.indexErr = a.buildIndex()
		if a.indexErr != nil {
			a.fail(a.indexErr)
			return
		}
		a.indexed.Store(true)
	})
	return a.indexErr
}

func (a *Archive) buildIndex() error {
	data := a.r.Data()

	if n := int(a.hdr.StringsCount); n > 0 {
		off := int(a.hdr.StringsOffset)
		if off < 0 || off > len(data) {
			return fmt.Errorf("string pool offset %d outside image of %d bytes", off, len(data))
		}
		pool, err := format.ParseStringPool(data[off:], n)
		if err != nil {
			return fmt.Errorf("string pool: %w", err)
		}
		if err := a.tab.SetStrings(pool); err != nil {
			return err
		}
	}

	off := int(a.hdr.EntriesOffset)
	if off < 0 || off > len(data) {
		return fmt.Errorf("entry index offset %d outside image of %d bytes", off, len(data))
	}
	entries, err := format.ParseEntries(data[off:], int(a.hdr.EntryCount))
	if err != nil {
		return fmt.Errorf("entry index: %w", err)
	}

	a.entries = entries
	a.flags = make([]atomic.Bool, len(entries))
	for i := range entries {
		if entries[i].NotEntrant {
			a.flags[i].Store(true)
		}
	}
	return nil
}

// findEntry scans for the first live entry matching kind and id. Code
// entries additionally match the decompilation generation; superseded
// records are invisible, not removed.
func (a *Archive) findEntry(kind format.Kind, id, decompile uint32) (int, bool) {
	for i := range a.entries {
		e := &a.entries[i]
		if e.Kind != kind || e.ID != id {
			continue
		}
		if a.flags[i].Load() {
			continue
		}
		if kind == format.KindCode && e.Decompile != decompile {
			continue
		}
		return i, true
	}
	return 0, false
}

// MethodHandle looks up the live entry for target at the given
// decompilation generation, for later invalidation. Load mode only.
func (a *Archive) MethodHandle(target host.Method, decompile uint32) (Handle, bool) {
	if a == nil || target == nil {
		return Handle{}, false
	}
	if err := a.forLoad(); err != nil {
		return Handle{}, false
	}
	if err := a.ensureIndex(); err != nil {
		return Handle{}, false
	}
	i, ok := a.findEntry(format.KindCode, nameID(target), decompile)
	if !ok {
		return Handle{}, false
	}
	return Handle{index: uint32(i), valid: true}, true
}

// Invalidate marks the entry behind h as not entrant, making it invisible
// to later lookups. Idempotent, race-safe against concurrent loads, and
// legal in both modes until Close: a write session records the flag into
// the finalized entry, a load session flips the in-memory arena.
func (a *Archive) Invalidate(h Handle) {
	if a == nil || !h.valid {
		return
	}

	applied := false
	if a.cfg.Store {
		a.mu.Lock()
		if i := int(h.index); i < len(a.entries) && !a.entries[i].NotEntrant {
			a.entries[i].NotEntrant = true
			applied = true
		}
		a.mu.Unlock()
	} else if a.ensureIndex() == nil {
		if i := int(h.index); i < len(a.flags) {
			applied = !a.flags[i].Swap(true)
		}
	}

	if applied {
		a.metrics.RecordInvalidate()
	}
	a.logger.LogInvalidate(h.index, applied)
}
