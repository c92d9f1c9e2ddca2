package codearc

import (
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/codearc/code"
	"github.com/hupe1980/codearc/format"
	"github.com/hupe1980/codearc/host"
	"github.com/hupe1980/codearc/internal/hash"
	"github.com/hupe1980/codearc/region"
)

// nameID derives a compiled method's entry id. Collisions are tolerated:
// lookups verify the stored name after the id matches.
func nameID(m host.Method) uint32 {
	return hash.NameID(host.FullName(m))
}

// StoreMethod captures a compiled method together with its side metadata.
// The returned Handle invalidates this exact entry later; a method
// recompiled at a higher decompilation generation is stored again as a new
// entry.
func (a *Archive) StoreMethod(target host.Method, desc *code.MethodDesc, buf *code.Buffer) (Handle, error) {
	if a == nil {
		return Handle{}, ErrClosed
	}
	if target == nil || desc == nil || buf == nil {
		return Handle{}, errors.New("codearc: method store needs a target, a descriptor and a buffer")
	}

	name := host.FullName(target)
	id := hash.NameID(name)

	start := time.Now()
	h, size, err := a.storeMethod(id, name, desc, buf)
	a.metrics.RecordStore(format.KindCode, time.Since(start), err)
	a.logger.LogStore(format.KindCode, name, id, size, err)
	return h, err
}

func (a *Archive) storeMethod(id uint32, name string, desc *code.MethodDesc, buf *code.Buffer) (Handle, int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.forStore(); err != nil {
		return Handle{}, 0, err
	}

	w := a.w
	w.SetPosition(w.Size())
	w.Align(format.Align)
	origin := w.Position()

	w.WriteCString(name)
	w.Align(format.Align)

	writeMethodHeader(w, desc)
	if err := a.writeObjectStream(w, buf.Metadata); err != nil {
		return Handle{}, 0, a.rollback(origin, err)
	}
	if err := a.writeObjectStream(w, buf.Oops); err != nil {
		return Handle{}, 0, a.rollback(origin, err)
	}
	writeTable(w, desc.DebugInfo)
	writeTable(w, desc.Dependencies)
	writeOopMaps(w, desc.OopMaps)
	writeTable(w, desc.ExceptionTable)
	writeTable(w, desc.NullCheckTable)
	w.Align(format.Align)

	e := format.Entry{
		NameSize:  uint32(len(name) + 1),
		Kind:      format.KindCode,
		ID:        id,
		Decompile: desc.Decompile,
	}
	if err := a.storeBlock(origin, buf, &e); err != nil {
		return Handle{}, 0, err
	}
	return Handle{index: e.Index, valid: true}, int(e.RelocOffset + e.RelocSize), nil
}

// LoadMethod restores the compiled method for target at the given
// decompilation generation and installs it with the runtime. Everything is
// re-resolved against the running process: section placement, relocation
// targets, object and metadata handles. In a verify-only session the entry
// is fully decoded and resolved but never installed.
func (a *Archive) LoadMethod(target host.Method, decompile uint32) error {
	if a == nil {
		return ErrClosed
	}
	if target == nil {
		return errors.New("codearc: nil target method")
	}

	name := host.FullName(target)
	start := time.Now()
	err := a.loadMethod(target, name, decompile)
	a.metrics.RecordLoad(format.KindCode, time.Since(start), err)
	a.logger.LogLoad(format.KindCode, name, err)
	return err
}

func (a *Archive) loadMethod(target host.Method, name string, decompile uint32) error {
	if err := a.beginLoad(); err != nil {
		return err
	}
	defer a.endLoad()
	if err := a.ensureIndex(); err != nil {
		return err
	}

	i, ok := a.findEntry(format.KindCode, hash.NameID(name), decompile)
	if !ok {
		return ErrNotFound
	}
	e := &a.entries[i]

	rd := region.NewReader(a.r.Data())
	got, err := a.readName(rd, e)
	if err != nil {
		return err
	}
	if got != name {
		err := &NameMismatchError{Want: name, Got: got}
		a.fail(err)
		return err
	}

	buf, desc, err := a.readMethod(rd, e, name, target)
	if err != nil {
		return err
	}

	if !a.opts.verifyOnly {
		if err := a.rt.Install(target, buf, desc); err != nil {
			return &LookupError{Artifact: "method " + name, cause: err}
		}
	}
	a.markLoaded(i)
	return nil
}

// readMethod walks a method block from the end of the name through the side
// metadata, code and relocations. rd must be positioned right after the
// name. within supplies the loader context for object resolution; Verify
// passes nil.
func (a *Archive) readMethod(rd *region.Reader, e *format.Entry, name string, within host.Method) (*code.Buffer, *code.MethodDesc, error) {
	rd.Align(format.Align)
	desc := readMethodHeader(rd)
	desc.Decompile = e.Decompile

	metadata, err := a.readObjectStream(rd, within)
	if err != nil {
		return nil, nil, err
	}
	oops, err := a.readObjectStream(rd, within)
	if err != nil {
		return nil, nil, err
	}
	desc.DebugInfo = readTable(rd)
	desc.Dependencies = readTable(rd)
	maps, err := a.readOopMaps(rd)
	if err != nil {
		return nil, nil, err
	}
	desc.OopMaps = maps
	desc.ExceptionTable = readTable(rd)
	desc.NullCheckTable = readTable(rd)
	rd.Align(format.Align)

	if err := rd.Err(); err != nil {
		a.fail(err)
		return nil, nil, err
	}
	if rd.Position() != int(e.Offset+e.CodeOffset) {
		err := fmt.Errorf("codearc: method %s: side tables end at +%d, code recorded at +%d",
			name, rd.Position()-int(e.Offset), e.CodeOffset)
		a.fail(err)
		return nil, nil, err
	}

	sections, orig, err := a.readCode(rd, heapAlloc, name)
	if err != nil {
		return nil, nil, err
	}
	relocs, err := a.readRelocations(rd, &sections, &orig, within)
	if err != nil {
		return nil, nil, err
	}
	if err := rd.Err(); err != nil {
		a.fail(err)
		return nil, nil, err
	}

	buf := &code.Buffer{Sections: sections, Relocs: relocs, Metadata: metadata, Oops: oops}
	return buf, desc, nil
}

func writeMethodHeader(w *region.Writer, desc *code.MethodDesc) {
	w.WriteUint32(uint32(desc.Flags))
	w.WriteUint32(desc.OrigPCOffset)
	w.WriteUint32(desc.FrameSize)
	w.WriteUint32(desc.EntryPoints.Entry)
	w.WriteUint32(desc.EntryPoints.VerifiedEntry)
	w.WriteUint32(desc.EntryPoints.ExceptionHandler)
	w.WriteUint32(desc.EntryPoints.DeoptHandler)
}

func readMethodHeader(rd *region.Reader) *code.MethodDesc {
	desc := &code.MethodDesc{}
	desc.Flags = code.MethodFlags(rd.ReadUint32())
	desc.OrigPCOffset = rd.ReadUint32()
	desc.FrameSize = rd.ReadUint32()
	desc.EntryPoints.Entry = rd.ReadUint32()
	desc.EntryPoints.VerifiedEntry = rd.ReadUint32()
	desc.EntryPoints.ExceptionHandler = rd.ReadUint32()
	desc.EntryPoints.DeoptHandler = rd.ReadUint32()
	return desc
}
