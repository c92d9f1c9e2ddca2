package testutil

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/hupe1980/codearc/code"
	"github.com/hupe1980/codearc/host"
)

// The fake process image, laid out at fixed offsets from the base address.
const (
	offRuntime  = 0x1000  // runtime helper entries
	offStubLo   = 0x10000 // stub routine region
	offStubHi   = 0x20000
	offBlobLo   = 0x20000 // code blob region
	offBlobHi   = 0x30000
	offCompiler = 0x28000 // late compiler blobs, inside the blob region
	offData     = 0x40000 // data symbols, raw-distance encoded
	offWords    = 0x50000 // object words handed out by WordFor
	imageEnd    = 0x100000
)

var (
	runtimeNames  = []string{"rt_new_instance", "rt_resolve_call", "rt_safepoint", "rt_throw_exception"}
	stubNames     = []string{"stub_call_trampoline", "stub_checkcast", "stub_arraycopy"}
	blobNames     = []string{"deopt_blob", "uncommon_trap_blob"}
	compilerNames = []string{"c2_entry_barrier", "c2_osr_migration"}
)

// Runtime is an in-memory managed runtime for tests: a fixed address book
// laid out relative to base, plus registries for classes, methods and
// interned strings. It implements the archive's full Runtime contract,
// including code installation, and records what gets installed.
type Runtime struct {
	base host.Address

	mu         sync.Mutex
	classes    map[string]*Class
	methods    map[string]*Method
	interned   map[string]*InternedString
	mirrors    map[host.BasicType]*Mirror
	words      map[any]host.Address
	hostStrs   map[host.Address]string
	pins       [][]byte
	sysLoader  *Loader
	platLoader *Loader

	installed  []Installed
	installErr error
}

// Installed records one Install call.
type Installed struct {
	Target host.Method
	Buf    *code.Buffer
	Desc   *code.MethodDesc
}

// Class is a fake managed class.
type Class struct{ name string }

// Name returns the fully qualified class name.
func (c *Class) Name() string { return c.name }

// Method is a fake managed method.
type Method struct {
	holder    *Class
	name, sig string
}

func (m *Method) Holder() host.Class { return m.holder }
func (m *Method) Name() string       { return m.name }
func (m *Method) Signature() string  { return m.sig }

// InternedString is a fake interned string object.
type InternedString struct{ Value string }

// Mirror is a fake primitive type mirror.
type Mirror struct{ Type host.BasicType }

// Loader is a fake class loader singleton.
type Loader struct{ name string }

// NewRuntime creates a runtime whose pretend image starts at base. Every
// Runtime carries the same well-known entries in the same order.
func NewRuntime(base host.Address) *Runtime {
	r := &Runtime{
		base:       base,
		classes:    make(map[string]*Class),
		methods:    make(map[string]*Method),
		interned:   make(map[string]*InternedString),
		mirrors:    make(map[host.BasicType]*Mirror),
		words:      make(map[any]host.Address),
		hostStrs:   make(map[host.Address]string),
		sysLoader:  &Loader{name: "system"},
		platLoader: &Loader{name: "platform"},
	}
	r.words[r.sysLoader] = r.wordSlot(0)
	r.words[r.platLoader] = r.wordSlot(1)
	return r
}

func (r *Runtime) wordSlot(n int) host.Address {
	return r.base + offWords + host.Address(n)*code.WordSize
}

func entries(base host.Address, names []string, off, stride host.Address) []host.NamedAddress {
	out := make([]host.NamedAddress, len(names))
	for i, name := range names {
		out[i] = host.NamedAddress{Name: name, Addr: base + off + host.Address(i)*stride}
	}
	return out
}

func (r *Runtime) RuntimeEntries() []host.NamedAddress {
	return entries(r.base, runtimeNames, offRuntime, 16)
}

func (r *Runtime) StubEntries() []host.NamedAddress {
	return entries(r.base, stubNames, offStubLo, 64)
}

func (r *Runtime) BlobEntries() []host.NamedAddress {
	return entries(r.base, blobNames, offBlobLo, 128)
}

func (r *Runtime) CompilerEntries() []host.NamedAddress {
	return entries(r.base, compilerNames, offCompiler, 128)
}

// EntryAddress returns the address of a well-known entry by name across all
// four sets. It panics on an unknown name; tests always name real entries.
func (r *Runtime) EntryAddress(name string) host.Address {
	for _, set := range [][]host.NamedAddress{
		r.RuntimeEntries(), r.StubEntries(), r.BlobEntries(), r.CompilerEntries(),
	} {
		for _, e := range set {
			if e.Name == name {
				return e.Addr
			}
		}
	}
	panic(fmt.Sprintf("testutil: no entry named %q", name))
}

// DataAddress returns an address inside the data segment, k bytes in. Such
// addresses resolve through the symbol fallback as a distance from base.
func (r *Runtime) DataAddress(k host.Address) host.Address {
	return r.base + offData + k
}

// StrayStubAddress returns an address inside the stub region that is not a
// registered entry, for exercising the missing-address failure path.
func (r *Runtime) StrayStubAddress() host.Address {
	return r.base + offStubLo + 7
}

func (r *Runtime) InStubRegion(addr host.Address) bool {
	return addr >= r.base+offStubLo && addr < r.base+offStubHi
}

func (r *Runtime) FindCodeBlob(addr host.Address) bool {
	return addr >= r.base+offBlobLo && addr < r.base+offBlobHi
}

func (r *Runtime) ResolveSymbol(addr host.Address) (host.Symbol, bool) {
	if addr < r.base || addr >= r.base+imageEnd {
		return host.Symbol{}, false
	}
	if addr >= r.base+offData {
		return host.Symbol{Name: "image_data", Offset: uintptr(addr-r.base-offData) + 8}, true
	}
	// Text segment: everything resolves to a function entry.
	return host.Symbol{Name: "image_text", Offset: 0}, true
}

func (r *Runtime) StringAt(addr host.Address) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.hostStrs[addr]
	return s, ok
}

func (r *Runtime) BaseAddress() host.Address { return r.base }

// RegisterHostString pins s as NUL-terminated bytes in this process and
// returns their address, mimicking character data embedded in the runtime.
func (r *Runtime) RegisterHostString(s string) host.Address {
	r.mu.Lock()
	defer r.mu.Unlock()
	buf := make([]byte, len(s)+1)
	copy(buf, s)
	addr := code.AddressOf(buf)
	r.pins = append(r.pins, buf)
	r.hostStrs[addr] = s
	return addr
}

// RegisterClass creates (or returns) the class with the given name.
func (r *Runtime) RegisterClass(name string) *Class {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registerClass(name)
}

func (r *Runtime) registerClass(name string) *Class {
	if c, ok := r.classes[name]; ok {
		return c
	}
	c := &Class{name: name}
	r.classes[name] = c
	r.words[c] = r.wordSlot(len(r.words))
	return c
}

// RegisterMethod creates (or returns) a method, registering its holder too.
func (r *Runtime) RegisterMethod(holder, name, sig string) *Method {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := holder + "." + name + sig
	if m, ok := r.methods[key]; ok {
		return m
	}
	m := &Method{holder: r.registerClass(holder), name: name, sig: sig}
	r.methods[key] = m
	r.words[m] = r.wordSlot(len(r.words))
	return m
}

// Unregister removes a class and every method it holds, so a later load no
// longer resolves them.
func (r *Runtime) Unregister(className string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.classes, className)
	for key, m := range r.methods {
		if m.holder.name == className {
			delete(r.methods, key)
		}
	}
}

func (r *Runtime) DescribeObject(obj any) (host.ObjectDesc, bool) {
	switch o := obj.(type) {
	case nil:
		return host.ObjectDesc{Tag: host.TagNull}, true
	case *Class:
		return host.ClassDesc(o.name), true
	case *Method:
		return host.MethodDesc(o.holder.name, o.name, o.sig), true
	case *InternedString:
		return host.StringDesc(o.Value), true
	case *Mirror:
		return host.PrimitiveDesc(o.Type), true
	case *Loader:
		if o == r.sysLoader {
			return host.ObjectDesc{Tag: host.TagSystemLoader}, true
		}
		return host.ObjectDesc{Tag: host.TagPlatformLoader}, true
	default:
		return host.ObjectDesc{}, false
	}
}

func (r *Runtime) FindClass(name string, _ host.Method) (host.Class, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.classes[name]
	if !ok {
		return nil, false
	}
	return c, true
}

func (r *Runtime) FindMethod(holder host.Class, name, sig string) (host.Method, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.methods[holder.Name()+"."+name+sig]
	if !ok {
		return nil, false
	}
	return m, true
}

func (r *Runtime) InternString(s string) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if is, ok := r.interned[s]; ok {
		return is, true
	}
	is := &InternedString{Value: s}
	r.interned[s] = is
	r.words[is] = r.wordSlot(len(r.words))
	return is, true
}

func (r *Runtime) PrimitiveType(t host.BasicType) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.mirrors[t]; ok {
		return m, true
	}
	m := &Mirror{Type: t}
	r.mirrors[t] = m
	r.words[m] = r.wordSlot(len(r.words))
	return m, true
}

func (r *Runtime) SystemLoader() any   { return r.sysLoader }
func (r *Runtime) PlatformLoader() any { return r.platLoader }

func (r *Runtime) WordFor(handle any) (host.Address, bool) {
	if handle == nil {
		return 0, true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.words[handle]
	return w, ok
}

// SetInstallError makes every subsequent Install call fail with err.
func (r *Runtime) SetInstallError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.installErr = err
}

// Install records the installation request.
func (r *Runtime) Install(target host.Method, buf *code.Buffer, desc *code.MethodDesc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.installErr != nil {
		return r.installErr
	}
	r.installed = append(r.installed, Installed{Target: target, Buf: buf, Desc: desc})
	return nil
}

// Installed returns a copy of the recorded Install calls.
func (r *Runtime) Installed() []Installed {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Installed(nil), r.installed...)
}

// CString reads the NUL-terminated bytes at addr in this process. Used to
// check words patched to point at pool-pinned string copies. The address
// must come from live Go memory.
func CString(addr host.Address) string {
	if addr == 0 {
		return ""
	}
	var out []byte
	for i := host.Address(0); i < 1<<16; i++ {
		b := *(*byte)(unsafe.Pointer(addr + i))
		if b == 0 {
			break
		}
		out = append(out, b)
	}
	return string(out)
}
