package codearc

import (
	"fmt"

	"github.com/hupe1980/codearc/code"
	"github.com/hupe1980/codearc/format"
	"github.com/hupe1980/codearc/host"
	"github.com/hupe1980/codearc/internal/conv"
	"github.com/hupe1980/codearc/region"
)

// relocFlagInline marks a record whose value travels in the embedded-value
// stream instead of the buffer's handle tables.
const relocFlagInline = 1 << 0

// allocFunc places one section's bytes. Stub loads claim space from the
// caller's range; blob and method loads allocate fresh heap slices.
type allocFunc func(n int) ([]byte, error)

func heapAlloc(n int) ([]byte, error) { return make([]byte, n), nil }

func rangeAlloc(r *code.Range) allocFunc {
	return func(n int) ([]byte, error) { return r.Allocate(n) }
}

// writeCode serializes the buffer's sections in fixed order. Each section
// records its size, and when non-empty its capture-time base address and
// the raw bytes on an aligned boundary.
func writeCode(w *region.Writer, buf *code.Buffer) error {
	for s := 0; s < code.SectionCount; s++ {
		sect := &buf.Sections[s]
		size, err := conv.IntToUint32(len(sect.Data))
		if err != nil {
			return fmt.Errorf("codearc: %s section: %w", code.SectionName(s), err)
		}
		w.WriteUint32(size)
		if size == 0 {
			continue
		}
		w.WriteUint64(uint64(sect.Base))
		w.Align(format.Align)
		w.WriteBytes(sect.Data)
		w.Align(format.Align)
	}
	return nil
}

// readCode reconstructs the sections at fresh addresses and the capture-time
// placement that drives relocation fixup.
func (a *Archive) readCode(rd *region.Reader, alloc allocFunc, name string) ([code.SectionCount]code.Section, code.Original, error) {
	var sections [code.SectionCount]code.Section
	var orig code.Original

	for s := 0; s < code.SectionCount; s++ {
		size := rd.ReadUint32()
		if size == 0 {
			continue
		}
		base := rd.ReadUint64()
		rd.Align(format.Align)
		raw := rd.ReadBytes(int(size))
		rd.Align(format.Align)
		if err := rd.Err(); err != nil {
			a.fail(err)
			return sections, orig, err
		}

		dst, err := alloc(int(size))
		if err != nil {
			return sections, orig, &LookupError{Artifact: name, cause: err}
		}
		copy(dst, raw)
		sections[s] = code.Section{Base: code.AddressOf(dst), Data: dst}
		orig.Bases[s] = host.Address(base)
		orig.Sizes[s] = size
	}
	return sections, orig, nil
}

// writeRelocations serializes each section's relocation group: the fixed
// records, the parallel extra-data words, and the embedded descriptions of
// inline object and metadata values.
func (a *Archive) writeRelocations(w *region.Writer, buf *code.Buffer) error {
	for s := 0; s < code.SectionCount; s++ {
		relocs := buf.Relocs[s]
		count, err := conv.IntToUint32(len(relocs))
		if err != nil {
			return a.fatal("relocation count overflow", err)
		}
		w.WriteUint32(count)
		if count == 0 {
			continue
		}
		// Sites are recorded section-relative already.
		w.WriteUint32(0)

		for i := range relocs {
			rel := &relocs[i]
			if !rel.Kind.Valid() {
				return a.fatal("unsupported relocation kind",
					fmt.Errorf("kind %d at %s+%d", rel.Kind, code.SectionName(s), rel.Offset))
			}
			var flags uint8
			if rel.Inline {
				flags |= relocFlagInline
			}
			w.WriteUint32(rel.Offset)
			w.WriteBytes([]byte{byte(rel.Kind), flags, rel.TargetSection, 0})
		}

		w.Align(format.Align)
		for i := range relocs {
			extra, err := a.relocExtra(&relocs[i])
			if err != nil {
				return err
			}
			w.WriteUint64(extra)
		}

		for i := range relocs {
			rel := &relocs[i]
			if !rel.Inline {
				continue
			}
			if err := a.writeHandle(w, rel.Value); err != nil {
				return err
			}
		}
		w.Align(format.Align)
	}
	return nil
}

// relocExtra computes the 8-byte extra word of one record: an address-table
// id for external targets, a shifted table index with the inline bit for
// object references, zero otherwise.
func (a *Archive) relocExtra(rel *code.Reloc) (uint64, error) {
	switch rel.Kind {
	case code.RelocRuntimeCall, code.RelocExternalWord:
		id, err := a.tab.IDForAddress(rel.Target)
		if err != nil {
			return 0, a.fatal("relocation target not encodable", err)
		}
		return id, nil

	case code.RelocOop, code.RelocMetadata:
		if rel.Inline {
			return uint64(rel.Index)<<1 | 1, nil
		}
		if rel.Index == 0 {
			return 0, &LookupError{
				Artifact: "relocation",
				cause:    fmt.Errorf("%s record at +%d has no table index", rel.Kind, rel.Offset),
			}
		}
		return uint64(rel.Index) << 1, nil

	default:
		return 0, nil
	}
}

// readRelocations reads each section's relocation group and patches the
// freshly placed sections. within supplies the loader context used to
// re-resolve inline object values; it is nil for stubs and blobs.
func (a *Archive) readRelocations(rd *region.Reader, sections *[code.SectionCount]code.Section, orig *code.Original, within host.Method) ([code.SectionCount][]code.Reloc, error) {
	var out [code.SectionCount][]code.Reloc

	for s := 0; s < code.SectionCount; s++ {
		count := int(rd.ReadUint32())
		if count == 0 {
			continue
		}
		if count > rd.Len()-rd.Position() {
			err := fmt.Errorf("codearc: %d relocations in %s exceed remaining image", count, code.SectionName(s))
			a.fail(err)
			return out, err
		}
		pointOff := rd.ReadUint32()

		recs := make([]code.Reloc, count)
		for i := range recs {
			off := rd.ReadUint32()
			b := rd.ReadBytes(4)
			if b == nil {
				break
			}
			kind := code.RelocKind(b[0])
			if !kind.Valid() {
				return out, a.fatal("unsupported relocation kind",
					fmt.Errorf("kind %d at %s+%d", b[0], code.SectionName(s), off))
			}
			recs[i] = code.Reloc{
				Offset:        pointOff + off,
				Kind:          kind,
				TargetSection: b[2],
				Inline:        b[1]&relocFlagInline != 0,
			}
		}

		rd.Align(format.Align)
		extras := make([]uint64, count)
		for i := range extras {
			extras[i] = rd.ReadUint64()
		}
		if err := rd.Err(); err != nil {
			a.fail(err)
			return out, err
		}

		for i := range recs {
			if err := a.applyReloc(rd, &recs[i], extras[i], s, sections, orig, within); err != nil {
				return out, err
			}
		}
		rd.Align(format.Align)
		if err := rd.Err(); err != nil {
			a.fail(err)
			return out, err
		}
		out[s] = recs
	}
	return out, nil
}

// applyReloc patches one relocation site in the freshly placed sections.
// Inline object values consume their description from the embedded stream,
// which rd is positioned over in record order.
func (a *Archive) applyReloc(rd *region.Reader, rel *code.Reloc, extra uint64, s int, sections *[code.SectionCount]code.Section, orig *code.Original, within host.Method) error {
	data := sections[s].Data

	switch rel.Kind {
	case code.RelocRuntimeCall, code.RelocExternalWord:
		addr, err := a.tab.AddressForID(extra)
		if err != nil {
			return a.fatal("relocation target not resolvable", err)
		}
		rel.Target = addr
		if addr == host.SelfAddress {
			return nil
		}
		if !code.WriteWord(data, rel.Offset, uint64(addr)) {
			return a.badSite(s, rel)
		}

	case code.RelocInternalWord:
		word, ok := code.ReadWord(data, rel.Offset)
		if !ok {
			return a.badSite(s, rel)
		}
		rebased, ok := orig.Rebase(host.Address(word), sections)
		if !ok {
			err := fmt.Errorf("codearc: internal word %#x at %s+%d outside the captured sections",
				word, code.SectionName(s), rel.Offset)
			a.fail(err)
			return err
		}
		code.WriteWord(data, rel.Offset, uint64(rebased))
		rel.Target = rebased

	case code.RelocSectionWord:
		word, ok := code.ReadWord(data, rel.Offset)
		if !ok {
			return a.badSite(s, rel)
		}
		rebased, ok := orig.RebaseIn(int(rel.TargetSection), host.Address(word), sections)
		if !ok {
			err := fmt.Errorf("codearc: section word %#x at %s+%d outside section %s",
				word, code.SectionName(s), rel.Offset, code.SectionName(int(rel.TargetSection)))
			a.fail(err)
			return err
		}
		code.WriteWord(data, rel.Offset, uint64(rebased))
		rel.Target = rebased

	case code.RelocOop, code.RelocMetadata:
		if !rel.Inline {
			rel.Index = uint32(extra >> 1)
			return nil
		}
		desc, err := readObjectDesc(rd)
		if err != nil {
			a.fail(err)
			return err
		}
		handle, err := a.resolveDesc(desc, within)
		if err != nil {
			return err
		}
		rel.Value = handle
		word, ok := a.rt.WordFor(handle)
		if !ok {
			return &LookupError{Artifact: fmt.Sprintf("%s value at %s+%d", rel.Kind, code.SectionName(s), rel.Offset)}
		}
		if !code.WriteWord(data, rel.Offset, uint64(word)) {
			return a.badSite(s, rel)
		}

	case code.RelocNone, code.RelocPoll, code.RelocPollReturn:
		// Position independent.
	}
	return nil
}

// badSite reports a relocation site lying outside its section's bytes. The
// image is corrupt, so the archive is disabled.
func (a *Archive) badSite(s int, rel *code.Reloc) error {
	err := fmt.Errorf("codearc: %s site at %s+%d out of bounds", rel.Kind, code.SectionName(s), rel.Offset)
	a.fail(err)
	return err
}

// writeTable serializes one opaque side table.
func writeTable(w *region.Writer, b []byte) {
	w.WriteUint32(uint32(len(b)))
	if len(b) == 0 {
		return
	}
	w.Align(format.Align)
	w.WriteBytes(b)
}

// readTable reads one opaque side table. The bytes are copied out of the
// image so the table outlives Close.
func readTable(rd *region.Reader) []byte {
	n := rd.ReadUint32()
	if n == 0 {
		return nil
	}
	rd.Align(format.Align)
	raw := rd.ReadBytes(int(n))
	if raw == nil {
		return nil
	}
	out := make([]byte, len(raw))
	copy(out, raw)
	return out
}

// writeOopMaps serializes the per-safepoint live-reference maps.
func writeOopMaps(w *region.Writer, maps []code.OopMap) {
	w.WriteUint32(uint32(len(maps)))
	for i := range maps {
		m := &maps[i]
		w.WriteUint32(m.PCOffset)
		w.WriteUint32(uint32(len(m.Data)))
		w.Align(format.Align)
		w.WriteBytes(m.Data)
	}
}

func (a *Archive) readOopMaps(rd *region.Reader) ([]code.OopMap, error) {
	count := int(rd.ReadUint32())
	if count == 0 {
		return nil, nil
	}
	if count > rd.Len()-rd.Position() {
		err := fmt.Errorf("codearc: %d oop maps exceed remaining image", count)
		a.fail(err)
		return nil, err
	}

	maps := make([]code.OopMap, 0, count)
	for i := 0; i < count; i++ {
		pc := rd.ReadUint32()
		size := rd.ReadUint32()
		rd.Align(format.Align)
		raw := rd.ReadBytes(int(size))
		if raw == nil {
			break
		}
		data := make([]byte, len(raw))
		copy(data, raw)
		maps = append(maps, code.OopMap{PCOffset: pc, Data: data})
	}
	if err := rd.Err(); err != nil {
		a.fail(err)
		return nil, err
	}
	return maps, nil
}
