package code

// MethodFlags carries the boolean properties of a compiled method that the
// runtime needs back verbatim at install time.
type MethodFlags uint32

const (
	FlagHasMonitors MethodFlags = 1 << iota
	FlagHasWideVectors
	FlagHasUnsafeAccess
)

// EntryPoints are the well-known entry offsets of a compiled method,
// relative to the start of the instructions section.
type EntryPoints struct {
	Entry            uint32
	VerifiedEntry    uint32
	ExceptionHandler uint32
	DeoptHandler     uint32
}

// OopMap records the live-reference layout at one safepoint. The bytes are
// opaque to the archive.
type OopMap struct {
	PCOffset uint32
	Data     []byte
}

// MethodDesc is the side metadata of a compiled method: everything beyond
// the code bytes that the runtime needs to install and execute it. The
// archive stores the byte tables verbatim and restores them on load; their
// interpretation belongs to the host.
type MethodDesc struct {
	Flags        MethodFlags
	OrigPCOffset uint32
	FrameSize    uint32
	EntryPoints  EntryPoints

	// Decompile is the method's decompilation generation at capture time.
	// A stored entry only serves lookups carrying the same generation.
	Decompile uint32

	DebugInfo      []byte
	Dependencies   []byte
	OopMaps        []OopMap
	ExceptionTable []byte
	NullCheckTable []byte
}
