package code

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/codearc/host"
)

func TestBufferRecordDedup(t *testing.T) {
	b := &Buffer{}
	classA := &struct{ name string }{"A"}
	classB := &struct{ name string }{"B"}

	assert.Equal(t, uint32(1), b.RecordMetadata(classA))
	assert.Equal(t, uint32(2), b.RecordMetadata(classB))
	assert.Equal(t, uint32(1), b.RecordMetadata(classA))
	assert.Len(t, b.Metadata, 2)

	got, ok := b.MetadataAt(2)
	require.True(t, ok)
	assert.Same(t, classB, got)

	_, ok = b.MetadataAt(0)
	assert.False(t, ok)
	_, ok = b.MetadataAt(3)
	assert.False(t, ok)
}

func TestRangeAllocate(t *testing.T) {
	r := NewRange(make([]byte, 128))
	first, err := r.Allocate(64)
	require.NoError(t, err)
	assert.Len(t, first, 64)
	assert.Equal(t, 64, r.End())

	second, err := r.Allocate(64)
	require.NoError(t, err)
	assert.Equal(t, 0, r.Remaining())

	_, err = r.Allocate(1)
	require.Error(t, err)

	// Allocations are distinct, adjacent windows.
	first[63] = 0xAA
	second[0] = 0xBB
	assert.Equal(t, byte(0xAA), r.Committed()[63])
	assert.Equal(t, byte(0xBB), r.Committed()[64])
}

func TestWordReadWrite(t *testing.T) {
	sect := make([]byte, 24)
	require.True(t, WriteWord(sect, 8, 0x1122334455667788))
	got, ok := ReadWord(sect, 8)
	require.True(t, ok)
	assert.Equal(t, uint64(0x1122334455667788), got)
	assert.Equal(t, byte(0x88), sect[8])

	assert.False(t, WriteWord(sect, 17, 1))
	_, ok = ReadWord(sect, 17)
	assert.False(t, ok)
}

func TestOriginalLocate(t *testing.T) {
	o := &Original{
		Bases: [SectionCount]host.Address{0x1000, 0x2000, 0},
		Sizes: [SectionCount]uint32{0x100, 0x200, 0},
	}

	sect, delta, ok := o.Locate(0x1010)
	require.True(t, ok)
	assert.Equal(t, SectConsts, sect)
	assert.Equal(t, uint32(0x10), delta)

	// One past the end of a section is a legal destination.
	sect, delta, ok = o.Locate(0x2200)
	require.True(t, ok)
	assert.Equal(t, SectInsts, sect)
	assert.Equal(t, uint32(0x200), delta)

	_, _, ok = o.Locate(0x3000)
	assert.False(t, ok)
}

func TestOriginalRebase(t *testing.T) {
	insts := make([]byte, 0x40)
	var sections [SectionCount]Section
	sections[SectInsts] = Section{Base: AddressOf(insts), Data: insts}

	o := &Original{}
	o.Bases[SectInsts] = 0x7000
	o.Sizes[SectInsts] = 0x40

	got, ok := o.Rebase(0x7018, &sections)
	require.True(t, ok)
	assert.Equal(t, AddressOf(insts)+0x18, got)

	got, ok = o.RebaseIn(SectInsts, 0x7040, &sections)
	require.True(t, ok)
	assert.Equal(t, AddressOf(insts)+0x40, got)

	_, ok = o.RebaseIn(SectConsts, 0x7018, &sections)
	assert.False(t, ok)
	_, ok = o.RebaseIn(SectInsts, 0x8000, &sections)
	assert.False(t, ok)
}

func TestRelocKind(t *testing.T) {
	assert.True(t, RelocRuntimeCall.Valid())
	assert.False(t, RelocKind(200).Valid())
	assert.Equal(t, "runtime_call", RelocRuntimeCall.String())
	assert.Equal(t, "invalid", RelocKind(200).String())
}

func TestSectionName(t *testing.T) {
	assert.Equal(t, "insts", SectionName(SectInsts))
	assert.Equal(t, "unknown", SectionName(7))
}
