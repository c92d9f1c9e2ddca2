package code

import "github.com/hupe1980/codearc/host"

// RelocKind identifies how a relocation site is serialized and patched.
// The set is closed: an unknown kind on either side of the codec disables
// the archive rather than being skipped.
type RelocKind uint8

const (
	// RelocNone marks a padding record. No action on either side.
	RelocNone RelocKind = iota

	// RelocOop is an object reference. Inline sites carry the object word
	// in the instruction stream and are re-patched after re-resolution;
	// table references are index-only.
	RelocOop

	// RelocMetadata is a class/method metadata reference, handled like
	// RelocOop.
	RelocMetadata

	// RelocRuntimeCall is a call whose destination is a runtime helper.
	// The destination is stored as an address-table id and patched to the
	// helper's current address at load.
	RelocRuntimeCall

	// RelocExternalWord is a data word pointing outside the buffer,
	// stored and patched like RelocRuntimeCall.
	RelocExternalWord

	// RelocInternalWord is a data word pointing into one of the buffer's
	// own sections. The site is rebased against the new section addresses.
	RelocInternalWord

	// RelocSectionWord is an internal word whose destination section is
	// recorded explicitly instead of being found by address range.
	RelocSectionWord

	// RelocPoll and RelocPollReturn mark safepoint polls. Position
	// independent, nothing to do.
	RelocPoll
	RelocPollReturn

	relocKindCount
)

var relocKindNames = [relocKindCount]string{
	"none", "oop", "metadata", "runtime_call", "external_word",
	"internal_word", "section_word", "poll", "poll_return",
}

// Valid reports whether k is one of the supported kinds.
func (k RelocKind) Valid() bool { return k < relocKindCount }

func (k RelocKind) String() string {
	if !k.Valid() {
		return "invalid"
	}
	return relocKindNames[k]
}

// Reloc is one relocation record. Offset addresses the 8-byte site within
// the section that owns the record (records are grouped per section, so
// the owning section is implicit).
type Reloc struct {
	// Offset of the site within the owning section's bytes.
	Offset uint32

	Kind RelocKind

	// Target is the destination address for RelocRuntimeCall and
	// RelocExternalWord records on the write side. Loads fill in the
	// re-resolved address.
	Target host.Address

	// TargetSection names the destination section of a RelocSectionWord.
	TargetSection uint8

	// Inline marks RelocOop/RelocMetadata sites whose value is embedded
	// in the instruction stream. Inline values travel in the
	// embedded-value stream; non-inline records carry Index instead.
	Inline bool

	// Index is the 1-based Buffer table index of a non-inline
	// RelocOop/RelocMetadata reference.
	Index uint32

	// Value is the live handle of an inline reference: the recorded
	// object on the write side, the re-resolved one after a load.
	Value any
}
