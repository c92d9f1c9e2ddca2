// Package format defines the on-disk container layout of a code archive:
// the header record, the fixed-size entry records, and the interned-string
// pool. All fields are little-endian and are written field by field in a
// fixed order; nothing is overlaid on in-memory structs.
//
// The layout is versioned as a whole. Readers reject any archive whose
// version differs from Version; there is no multi-version support.
package format

import "fmt"

const (
	// Magic identifies a code archive file ("CARC").
	Magic uint32 = 0x43524143

	// Version is the container format version. Bump on any layout change.
	Version uint32 = 1

	// Align is the boundary data blocks, code sections and relocation data
	// start at. Writers pad with zero bytes, readers recompute identically.
	Align = 8

	// HeaderSize is the encoded size of the Header record.
	HeaderSize = 32

	// EntrySize is the encoded size of one Entry record.
	EntrySize = 48
)

// Kind tags the artifact class of an entry.
type Kind uint32

const (
	// KindNone is the invalid zero value.
	KindNone Kind = iota
	// KindStub is a shared runtime stub routine.
	KindStub
	// KindBlob is a shared runtime code blob.
	KindBlob
	// KindCode is a compiled method.
	KindCode
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindStub:
		return "stub"
	case KindBlob:
		return "blob"
	case KindCode:
		return "code"
	default:
		return fmt.Sprintf("kind(%d)", uint32(k))
	}
}

// AlignUp rounds v up to the next Align boundary.
func AlignUp(v int) int {
	return (v + Align - 1) &^ (Align - 1)
}
