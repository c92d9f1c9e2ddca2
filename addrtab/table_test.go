package addrtab

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/codearc/host"
)

type fakeBook struct {
	externals []host.NamedAddress
	stubs     []host.NamedAddress
	blobs     []host.NamedAddress
	compiler  []host.NamedAddress

	stubLo, stubHi host.Address
	blobAddrs      map[host.Address]bool
	symbols        map[host.Address]host.Symbol
	strings        map[host.Address]string
	base           host.Address
}

func (b *fakeBook) RuntimeEntries() []host.NamedAddress  { return b.externals }
func (b *fakeBook) StubEntries() []host.NamedAddress     { return b.stubs }
func (b *fakeBook) BlobEntries() []host.NamedAddress     { return b.blobs }
func (b *fakeBook) CompilerEntries() []host.NamedAddress { return b.compiler }
func (b *fakeBook) BaseAddress() host.Address            { return b.base }

func (b *fakeBook) InStubRegion(a host.Address) bool { return a >= b.stubLo && a < b.stubHi }
func (b *fakeBook) FindCodeBlob(a host.Address) bool { return b.blobAddrs[a] }

func (b *fakeBook) ResolveSymbol(a host.Address) (host.Symbol, bool) {
	s, ok := b.symbols[a]
	return s, ok
}

func (b *fakeBook) StringAt(a host.Address) (string, bool) {
	s, ok := b.strings[a]
	return s, ok
}

func newFakeBook() *fakeBook {
	return &fakeBook{
		externals: []host.NamedAddress{
			{Name: "handle_exception", Addr: 0x100010},
			{Name: "debug64", Addr: 0x100020},
		},
		stubs: []host.NamedAddress{
			{Name: "method_entry_barrier", Addr: 0x200000},
			{Name: "checkcast_arraycopy", Addr: 0x200040},
		},
		blobs: []host.NamedAddress{
			{Name: "deopt_entry", Addr: 0x300000},
		},
		compiler: []host.NamedAddress{
			{Name: "exception_blob", Addr: 0x300100},
		},
		stubLo:    0x200000,
		stubHi:    0x280000,
		blobAddrs: map[host.Address]bool{0x300000: true, 0x300100: true, 0x300200: true},
		symbols:   map[host.Address]host.Symbol{},
		strings:   map[host.Address]string{},
		base:      0x400000,
	}
}

func newTestTable(t *testing.T, book *fakeBook) *Table {
	t.Helper()
	tab := New(book)
	require.NoError(t, tab.Init())
	require.NoError(t, tab.InitCompiler())
	return tab
}

func TestInitOnce(t *testing.T) {
	tab := New(newFakeBook())
	require.NoError(t, tab.Init())
	assert.True(t, tab.Complete())
	require.Error(t, tab.Init())
}

func TestInitCompilerRequiresInit(t *testing.T) {
	tab := New(newFakeBook())
	require.ErrorIs(t, tab.InitCompiler(), ErrNotComplete)
}

func TestUseBeforeInit(t *testing.T) {
	tab := New(newFakeBook())
	_, err := tab.IDForAddress(0x100010)
	require.ErrorIs(t, err, ErrNotComplete)
	_, err = tab.AddressForID(0)
	require.ErrorIs(t, err, ErrNotComplete)
}

func TestPartitionBijection(t *testing.T) {
	book := newFakeBook()
	tab := newTestTable(t, book)

	all := append([]host.NamedAddress{}, book.externals...)
	all = append(all, book.stubs...)
	all = append(all, book.blobs...)
	all = append(all, book.compiler...)

	for _, e := range all {
		id, err := tab.IDForAddress(e.Addr)
		require.NoError(t, err, e.Name)
		got, err := tab.AddressForID(id)
		require.NoError(t, err, e.Name)
		assert.Equal(t, e.Addr, got, e.Name)
	}
}

func TestSelfSentinel(t *testing.T) {
	tab := New(newFakeBook())

	// The sentinel round-trips without any table.
	id, err := tab.IDForAddress(host.SelfAddress)
	require.NoError(t, err)
	assert.Equal(t, SelfID, id)

	got, err := tab.AddressForID(SelfID)
	require.NoError(t, err)
	assert.Equal(t, host.SelfAddress, got)
}

func TestGapIDFatal(t *testing.T) {
	book := newFakeBook()
	tab := newTestTable(t, book)

	gap := uint64(len(book.externals) + len(book.stubs) + len(book.blobs) + len(book.compiler))
	_, err := tab.AddressForID(gap)
	require.ErrorIs(t, err, ErrBadID)
}

// A compiler-phase blob encoded by a table that ran InitCompiler decodes to
// exactly the gap id on a table that did not.
func TestGapIDPhaseMismatch(t *testing.T) {
	book := newFakeBook()
	writer := newTestTable(t, book)
	reader := New(book)
	require.NoError(t, reader.Init())

	id, err := writer.IDForAddress(book.compiler[0].Addr)
	require.NoError(t, err)
	assert.Equal(t, reader.gap(), id)

	_, err = reader.AddressForID(id)
	require.ErrorIs(t, err, ErrBadID)
}

func TestDenseTableBijection(t *testing.T) {
	book := newFakeBook()
	book.externals = nil
	for i := 0; i < 100; i++ {
		book.externals = append(book.externals,
			host.NamedAddress{Name: fmt.Sprintf("ext_%d", i), Addr: host.Address(0x100000 + i*16)})
	}
	book.stubs = nil
	for i := 0; i < 50; i++ {
		book.stubs = append(book.stubs,
			host.NamedAddress{Name: fmt.Sprintf("stub_%d", i), Addr: host.Address(0x200000 + i*16)})
	}
	tab := newTestTable(t, book)

	all := append([]host.NamedAddress{}, book.externals...)
	all = append(all, book.stubs...)
	all = append(all, book.blobs...)
	all = append(all, book.compiler...)

	for _, e := range all {
		id, err := tab.IDForAddress(e.Addr)
		require.NoError(t, err, e.Name)
		assert.Less(t, id, tab.gap(), e.Name)
		got, err := tab.AddressForID(id)
		require.NoError(t, err, e.Name)
		assert.Equal(t, e.Addr, got, e.Name)
	}
}

func TestUnmappedIDFatal(t *testing.T) {
	tab := newTestTable(t, newFakeBook())

	for _, id := range []uint64{
		uint64(MaxExternals - 1), // past the gap, below the string pool
		uint64(StringBase),       // empty string pool
		uint64(FallbackFloor - 1),
	} {
		_, err := tab.AddressForID(id)
		require.ErrorIs(t, err, ErrBadID, "id %d", id)
	}
}

func TestMissingAddressFatal(t *testing.T) {
	tab := newTestTable(t, newFakeBook())

	// In the stub region but not enumerated.
	_, err := tab.IDForAddress(0x200080)
	require.ErrorIs(t, err, ErrMissing)

	// A known blob region address not enumerated.
	_, err = tab.IDForAddress(0x300200)
	require.ErrorIs(t, err, ErrMissing)

	// External with no symbol at all.
	_, err = tab.IDForAddress(0x900000)
	require.ErrorIs(t, err, ErrMissing)
}

func TestFallbackDistance(t *testing.T) {
	book := newFakeBook()
	data := book.base + 0x10000
	book.symbols[data] = host.Symbol{Name: "env_table", Offset: 0x40}
	tab := newTestTable(t, book)

	id, err := tab.IDForAddress(data)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x10000), id)
	assert.GreaterOrEqual(t, id, uint64(FallbackFloor))

	got, err := tab.AddressForID(id)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestFallbackRejectsFunctionEntry(t *testing.T) {
	book := newFakeBook()
	fn := book.base + 0x20000
	book.symbols[fn] = host.Symbol{Name: "memcpy", Offset: 0}
	tab := newTestTable(t, book)

	_, err := tab.IDForAddress(fn)
	require.ErrorIs(t, err, ErrMissing)
}

func TestFallbackRejectsCollidingDistance(t *testing.T) {
	book := newFakeBook()
	near := book.base + 100
	book.symbols[near] = host.Symbol{Name: "env_table", Offset: 100}
	tab := newTestTable(t, book)

	_, err := tab.IDForAddress(near)
	require.ErrorIs(t, err, ErrBadID)
}

func TestCStringPoolDedup(t *testing.T) {
	book := newFakeBook()
	addr := host.Address(0x500000)
	book.strings[addr] = "fmod"
	tab := newTestTable(t, book)

	tab.AddCString(addr)
	tab.AddCString(addr)
	assert.Equal(t, 1, tab.StringCount())

	id1, ok := tab.IDForCString(addr)
	require.True(t, ok)
	id2, err := tab.IDForAddress(addr)
	require.NoError(t, err)
	assert.Equal(t, id1, id2)
	assert.GreaterOrEqual(t, id1, uint64(StringBase))

	got, err := tab.AddressForID(id1)
	require.NoError(t, err)
	assert.Equal(t, addr, got)
}

func TestCStringPoolOverflow(t *testing.T) {
	book := newFakeBook()
	for i := 0; i < MaxStrings+10; i++ {
		book.strings[host.Address(0x500000+i*16)] = "s"
	}
	tab := newTestTable(t, book)

	for i := 0; i < MaxStrings+10; i++ {
		tab.AddCString(host.Address(0x500000 + i*16))
	}
	assert.Equal(t, MaxStrings, tab.StringCount())

	// Dropped strings are simply not registered.
	_, ok := tab.IDForCString(host.Address(0x500000 + (MaxStrings+1)*16))
	assert.False(t, ok)
}

func TestCStringUnreadableDropped(t *testing.T) {
	tab := newTestTable(t, newFakeBook())
	tab.AddCString(0x600000)
	assert.Equal(t, 0, tab.StringCount())
}

func TestSetStrings(t *testing.T) {
	tab := newTestTable(t, newFakeBook())
	require.NoError(t, tab.SetStrings([]string{"alpha", "beta"}))

	assert.Equal(t, 2, tab.StringCount())
	for i, want := range []string{"alpha", "beta"} {
		addr, err := tab.AddressForID(uint64(StringBase + i))
		require.NoError(t, err)
		assert.NotZero(t, addr)
		assert.Equal(t, want+"\x00", string(tab.strBufs[i]))
	}
}

func TestInitCapacity(t *testing.T) {
	book := newFakeBook()
	book.externals = make([]host.NamedAddress, MaxExternals+1)
	tab := New(book)
	require.ErrorIs(t, tab.Init(), ErrTableFull)
}
