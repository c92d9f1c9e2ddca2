// Package addrtab maps well-known runtime addresses to small dense ids so
// pointer-valued relocations can be encoded compactly and re-resolved in a
// different address space. Three fixed-capacity partitions (externals,
// stubs, blobs) are populated once from the host's enumeration, a
// deduplicating C-string pool covers character data referenced from
// generated code, and addresses in none of these encode as a raw distance
// from the host's base address.
package addrtab

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/hupe1980/codearc/host"
)

// Partition capacities. Externals, stubs and blobs pack densely from id 0
// in that order, so their ids depend on the enumeration lengths; the string
// pool and the raw-distance fallback start at fixed boundaries sized for the
// capacities. All of it is part of the archive format.
const (
	MaxExternals = 128
	MaxStubs     = 256
	MaxBlobs     = 128
	MaxStrings   = 256

	// StringBase is the first string-pool id.
	StringBase = MaxExternals + MaxStubs + MaxBlobs

	// FallbackFloor is the first raw-distance id. Encoded distances below
	// it would collide with table or string ids.
	FallbackFloor = StringBase + MaxStrings
)

// SelfID encodes the self sentinel address. It is mapped without any table
// lookup and the site carrying it is never patched.
const SelfID = ^uint64(0)

var (
	// ErrNotComplete reports use of the table before Init.
	ErrNotComplete = errors.New("addrtab: address table not initialized")

	// ErrTableFull reports an enumeration larger than a partition.
	ErrTableFull = errors.New("addrtab: partition capacity exceeded")

	// ErrMissing reports an address that should have been enumerated but
	// was not. The table definition is stale; the archive cannot encode.
	ErrMissing = errors.New("addrtab: address not in table")

	// ErrBadID reports an id outside every partition, including the
	// reserved gap value. Such an id must never be dereferenced.
	ErrBadID = errors.New("addrtab: id not in any partition")
)

// Table is the address-relocation table. Init (and the optional late
// InitCompiler phase) must finish before any concurrent use; after that the
// partitions are immutable. The C-string pool grows only during stores,
// which the archive serializes.
type Table struct {
	book   host.AddressBook
	logger *slog.Logger

	externals []host.NamedAddress
	stubs     []host.NamedAddress
	blobs     []host.NamedAddress
	complete  bool

	strAddrs []host.Address
	strVals  []string
	strBufs  [][]byte // pins loaded pool bytes so their addresses stay valid
}

// Option configures a Table.
type Option func(*Table)

// WithLogger sets the logger for the table.
func WithLogger(l *slog.Logger) Option {
	return func(t *Table) {
		t.logger = l
	}
}

// New creates an address table over the host's address book.
func New(book host.AddressBook, opts ...Option) *Table {
	t := &Table{
		book:   book,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Init populates the partitions from the host enumeration and marks the
// table complete. It runs at most once.
func (t *Table) Init() error {
	if t.complete {
		return errors.New("addrtab: init called twice")
	}

	var err error
	if t.externals, err = fill("externals", t.book.RuntimeEntries(), MaxExternals); err != nil {
		return err
	}
	if t.stubs, err = fill("stubs", t.book.StubEntries(), MaxStubs); err != nil {
		return err
	}
	if t.blobs, err = fill("blobs", t.book.BlobEntries(), MaxBlobs); err != nil {
		return err
	}
	// The gap id must stay below the string partition.
	if t.gap() >= StringBase {
		return fmt.Errorf("%w: %d entries leave no gap id", ErrTableFull, t.gap())
	}

	t.complete = true
	t.logger.Debug("address table initialized",
		"externals", len(t.externals), "stubs", len(t.stubs), "blobs", len(t.blobs))

	return nil
}

// InitCompiler appends the compiler-specific blob addresses that are not
// resolvable during Init. It requires a completed table.
func (t *Table) InitCompiler() error {
	if !t.complete {
		return ErrNotComplete
	}

	late := t.book.CompilerEntries()
	if len(t.blobs)+len(late) > MaxBlobs {
		return fmt.Errorf("%w: blobs %d+%d > %d", ErrTableFull, len(t.blobs), len(late), MaxBlobs)
	}
	if t.gap()+uint64(len(late)) >= StringBase {
		return fmt.Errorf("%w: %d entries leave no gap id", ErrTableFull, t.gap()+uint64(len(late)))
	}
	t.blobs = append(t.blobs, late...)

	return nil
}

func fill(name string, entries []host.NamedAddress, max int) ([]host.NamedAddress, error) {
	if len(entries) > max {
		return nil, fmt.Errorf("%w: %s %d > %d", ErrTableFull, name, len(entries), max)
	}
	return append([]host.NamedAddress(nil), entries...), nil
}

func search(entries []host.NamedAddress, addr host.Address) (int, bool) {
	for i, e := range entries {
		if e.Addr == addr {
			return i, true
		}
	}
	return 0, false
}

// Complete reports whether Init has run.
func (t *Table) Complete() bool { return t.complete }

// gap is the reserved id between the blob partition and the string pool.
func (t *Table) gap() uint64 {
	return uint64(len(t.externals) + len(t.stubs) + len(t.blobs))
}

// IDForAddress encodes addr as a table id. The sentinel self address maps
// to SelfID without lookup; registered C strings map into the string
// partition; otherwise the address is classified by the host region that
// contains it and must be present in the matching partition. An unknown
// external address with a nonzero symbol offset is character data at a
// stable distance from the host base and encodes as that raw distance.
func (t *Table) IDForAddress(addr host.Address) (uint64, error) {
	if addr == host.SelfAddress {
		return SelfID, nil
	}
	if !t.complete {
		return 0, ErrNotComplete
	}

	if id, ok := t.idForCString(addr); ok {
		return id, nil
	}

	switch {
	case t.book.InStubRegion(addr):
		if slot, ok := search(t.stubs, addr); ok {
			return uint64(len(t.externals) + slot), nil
		}
		return 0, fmt.Errorf("%w: stub address %#x", ErrMissing, uintptr(addr))

	case t.book.FindCodeBlob(addr):
		if slot, ok := search(t.blobs, addr); ok {
			return uint64(len(t.externals) + len(t.stubs) + slot), nil
		}
		return 0, fmt.Errorf("%w: blob address %#x", ErrMissing, uintptr(addr))

	default:
		if slot, ok := search(t.externals, addr); ok {
			return uint64(slot), nil
		}
		return t.fallbackID(addr)
	}
}

// fallbackID encodes an unenumerated external address as its distance from
// the host base, when the symbol-resolution heuristic says it is data
// inside a known symbol rather than a function entry.
func (t *Table) fallbackID(addr host.Address) (uint64, error) {
	sym, ok := t.book.ResolveSymbol(addr)
	if !ok {
		return 0, fmt.Errorf("%w: external address %#x resolves to no symbol", ErrMissing, uintptr(addr))
	}
	if sym.Offset == 0 {
		return 0, fmt.Errorf("%w: external function %s at %#x", ErrMissing, sym.Name, uintptr(addr))
	}

	base := t.book.BaseAddress()
	if addr < base {
		return 0, fmt.Errorf("%w: address %#x below base %#x", ErrMissing, uintptr(addr), uintptr(base))
	}
	dist := uint64(addr - base)
	if dist < FallbackFloor {
		return 0, fmt.Errorf("%w: distance %d for %#x collides with the id space", ErrBadID, dist, uintptr(addr))
	}

	t.logger.Warn("address not in table, encoding as base distance",
		"addr", fmt.Sprintf("%#x", uintptr(addr)), "symbol", sym.Name, "symbol_offset", sym.Offset, "distance", dist)

	return dist, nil
}

// AddressForID decodes a table id back to an address in this process. The
// id exactly past the last blob is the reserved gap value: it is what a
// compiler-phase blob encodes to when this side never ran InitCompiler, so
// dereferencing it means the two sides disagree on the table.
func (t *Table) AddressForID(id uint64) (host.Address, error) {
	if id == SelfID {
		return host.SelfAddress, nil
	}
	if !t.complete {
		return 0, ErrNotComplete
	}
	if id == t.gap() {
		return 0, fmt.Errorf("%w: reserved gap id %d", ErrBadID, id)
	}

	nExt := uint64(len(t.externals))
	nStub := uint64(len(t.stubs))

	switch {
	case id < nExt:
		return t.externals[id].Addr, nil

	case id < nExt+nStub:
		return t.stubs[id-nExt].Addr, nil

	case id < t.gap():
		return t.blobs[id-nExt-nStub].Addr, nil

	case id >= StringBase && id < uint64(StringBase+len(t.strAddrs)):
		return t.strAddrs[id-StringBase], nil

	case id >= FallbackFloor:
		return t.book.BaseAddress() + host.Address(id), nil

	default:
		return 0, fmt.Errorf("%w: id %d", ErrBadID, id)
	}
}
