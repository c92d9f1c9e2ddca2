// Package host declares the contracts between the archive engine and the
// embedding managed runtime.
//
// The engine never inspects machine code or managed objects on its own: the
// runtime enumerates its well-known entry points, classifies and resolves
// addresses, and re-resolves classes, methods and interned strings by name.
// Implementations must be safe for concurrent use; the engine calls them
// from multiple compiler worker threads.
package host

// Address is a location in the embedding process's address space.
type Address = uintptr

// SelfAddress is the sentinel target of a self-relative relocation.
// It is mapped to a sentinel id and never patched.
const SelfAddress Address = ^Address(0)

// NamedAddress is one well-known runtime location.
type NamedAddress struct {
	Name string
	Addr Address
}

// Symbol is the result of a dynamic-loader address lookup.
type Symbol struct {
	Name   string
	Offset uintptr // distance of the queried address from the symbol start
}

// AddressBook enumerates and classifies the runtime's well-known addresses.
//
// The three entry sets must be returned in a fixed order that is identical
// in the process that writes an archive and every process that reads it;
// the address table's id space is derived from that order.
type AddressBook interface {
	// RuntimeEntries returns the runtime helper routines (externals).
	RuntimeEntries() []NamedAddress

	// StubEntries returns the shared stub routine entry points.
	StubEntries() []NamedAddress

	// BlobEntries returns the shared code blob entry points available at
	// startup.
	BlobEntries() []NamedAddress

	// CompilerEntries returns blob entry points that only exist once the
	// optimizing compiler is initialized. Appended by the table's late
	// initialization phase.
	CompilerEntries() []NamedAddress

	// InStubRegion reports whether addr lies inside the stub routine area.
	InStubRegion(addr Address) bool

	// FindCodeBlob reports whether addr lies inside a managed code blob.
	FindCodeBlob(addr Address) bool

	// ResolveSymbol resolves addr through the dynamic loader. It backs the
	// raw base+offset fallback for addresses outside every table.
	ResolveSymbol(addr Address) (Symbol, bool)

	// StringAt reads the NUL-terminated string at addr in host memory.
	StringAt(addr Address) (string, bool)

	// BaseAddress is the fixed base the raw-offset fallback encodes
	// distances against. It must be stable across writer and reader
	// processes of the same build.
	BaseAddress() Address
}

// Class identifies a managed class.
type Class interface {
	// Name returns the fully qualified class name.
	Name() string
}

// Method identifies a managed method.
type Method interface {
	Holder() Class
	Name() string
	Signature() string
}

// FullName renders a method identity the way entry ids are derived from it.
func FullName(m Method) string {
	return m.Holder().Name() + "." + m.Name() + m.Signature()
}

// ObjectResolver maps managed objects to serializable descriptions and back.
//
// Handles passed through the engine are opaque, comparable values owned by
// the runtime.
type ObjectResolver interface {
	// DescribeObject renders a heap object as a tagged description.
	// Returning false marks the current artifact as unsupported; the store
	// attempt fails without affecting the archive.
	DescribeObject(obj any) (ObjectDesc, bool)

	// FindClass resolves a class by fully qualified name through the class
	// loader of the method being compiled or loaded.
	FindClass(name string, within Method) (Class, bool)

	// FindMethod resolves an exact overload on a resolved holder.
	FindMethod(holder Class, name, signature string) (Method, bool)

	// InternString re-interns s and returns the handle of the interned
	// string object.
	InternString(s string) (any, bool)

	// PrimitiveType returns the mirror object for a primitive type tag.
	PrimitiveType(t BasicType) (any, bool)

	// SystemLoader and PlatformLoader return the well-known class loader
	// singletons.
	SystemLoader() any
	PlatformLoader() any

	// WordFor returns the machine word a relocation site is patched with
	// for a resolved handle.
	WordFor(handle any) (Address, bool)
}

// Runtime is everything the archive engine needs from the embedding
// runtime, short of code installation (see the root package's Installer).
type Runtime interface {
	AddressBook
	ObjectResolver
}
