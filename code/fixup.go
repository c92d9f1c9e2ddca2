package code

import "github.com/hupe1980/codearc/host"

// Original describes the capture-time placement of a buffer's sections: the
// recorded base addresses and sizes, reconstructed from the archive. It
// stands in for the buffer's original location so internal references can
// be rebased onto the freshly placed sections.
//
// One-past-the-end addresses are legal destinations (end labels).
type Original struct {
	Bases [SectionCount]host.Address
	Sizes [SectionCount]uint32
}

// Locate finds the capture-time section containing addr and the offset of
// addr within it.
func (o *Original) Locate(addr host.Address) (sect int, delta uint32, ok bool) {
	for s := 0; s < SectionCount; s++ {
		size := o.Sizes[s]
		if size == 0 {
			continue
		}
		base := o.Bases[s]
		if addr >= base && addr <= base+host.Address(size) {
			return s, uint32(addr - base), true
		}
	}
	return 0, 0, false
}

// Rebase translates a capture-time internal address to the equivalent
// address within the newly placed sections.
func (o *Original) Rebase(addr host.Address, sections *[SectionCount]Section) (host.Address, bool) {
	sect, _, ok := o.Locate(addr)
	if !ok {
		return 0, false
	}
	return o.RebaseIn(sect, addr, sections)
}

// RebaseIn translates a capture-time address known to point into section
// sect, as recorded by a section-word relocation.
func (o *Original) RebaseIn(sect int, addr host.Address, sections *[SectionCount]Section) (host.Address, bool) {
	if sect < 0 || sect >= SectionCount || o.Sizes[sect] == 0 {
		return 0, false
	}
	base := o.Bases[sect]
	if addr < base || addr > base+host.Address(o.Sizes[sect]) {
		return 0, false
	}
	delta := addr - base
	fresh := sections[sect].Data
	if uint32(len(fresh)) < uint32(delta) {
		return 0, false
	}
	return AddressOf(fresh) + delta, true
}
