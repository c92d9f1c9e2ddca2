// Package code models a compiled-code buffer the way the archive stores
// it: a fixed set of ordered sections, per-section relocation records, and
// the referenced object/metadata handles. Producers (the JIT) fill a
// Buffer for store; load reconstructs one with freshly placed sections and
// re-resolved handles.
package code

import "github.com/hupe1980/codearc/host"

// Section indices, in the fixed serialization order.
const (
	SectConsts = 0
	SectInsts  = 1
	SectStubs  = 2

	SectionCount = 3
)

var sectionNames = [SectionCount]string{"consts", "insts", "stubs"}

// SectionName returns the conventional name of a section index.
func SectionName(i int) string {
	if i < 0 || i >= SectionCount {
		return "unknown"
	}
	return sectionNames[i]
}

// Section is one region of a compiled-code buffer. Base is the address the
// bytes occupied when they were produced; after a load it is the address of
// the freshly allocated Data.
type Section struct {
	Base host.Address
	Data []byte
}

// Buffer is a compiled-code buffer: sections in fixed order, relocation
// records grouped by the section that contains their site, and the
// object/metadata handles referenced from the code.
//
// Handles are deduplicated by identity. Indices handed out by the Record
// methods are 1-based; index 0 means "no reference".
type Buffer struct {
	Sections [SectionCount]Section
	Relocs   [SectionCount][]Reloc

	Metadata []any
	Oops     []any
}

// RecordMetadata registers a metadata handle and returns its 1-based index.
// Registering the same handle again returns the existing index.
func (b *Buffer) RecordMetadata(h any) uint32 {
	return record(&b.Metadata, h)
}

// RecordOop registers an object handle and returns its 1-based index.
func (b *Buffer) RecordOop(h any) uint32 {
	return record(&b.Oops, h)
}

// MetadataAt resolves a 1-based metadata index.
func (b *Buffer) MetadataAt(i uint32) (any, bool) {
	return at(b.Metadata, i)
}

// OopAt resolves a 1-based object index.
func (b *Buffer) OopAt(i uint32) (any, bool) {
	return at(b.Oops, i)
}

func record(table *[]any, h any) uint32 {
	for i, have := range *table {
		if have == h {
			return uint32(i + 1)
		}
	}
	*table = append(*table, h)
	return uint32(len(*table))
}

func at(table []any, i uint32) (any, bool) {
	if i == 0 || int(i) > len(table) {
		return nil, false
	}
	return table[i-1], true
}
