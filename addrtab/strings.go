package addrtab

import (
	"fmt"

	"github.com/hupe1980/codearc/code"
	"github.com/hupe1980/codearc/host"
)

// AddCString registers the C string at addr in the pool. Deduplication is
// by pointer identity, not content. A full pool drops the string with a
// warning; the affected relocations fall back to the raw-distance encoding
// or fail their lookup.
func (t *Table) AddCString(addr host.Address) {
	if _, ok := t.slotForAddr(addr); ok {
		return
	}
	if len(t.strAddrs) == MaxStrings {
		t.logger.Warn("C-string pool full, dropping string", "addr", fmt.Sprintf("%#x", uintptr(addr)))
		return
	}

	s, ok := t.book.StringAt(addr)
	if !ok {
		t.logger.Warn("C-string bytes unreadable, dropping string", "addr", fmt.Sprintf("%#x", uintptr(addr)))
		return
	}

	t.strAddrs = append(t.strAddrs, addr)
	t.strVals = append(t.strVals, s)
}

// IDForCString returns the pool id of a registered string address.
func (t *Table) IDForCString(addr host.Address) (uint64, bool) {
	return t.idForCString(addr)
}

func (t *Table) idForCString(addr host.Address) (uint64, bool) {
	slot, ok := t.slotForAddr(addr)
	if !ok {
		return 0, false
	}
	return uint64(StringBase + slot), true
}

func (t *Table) slotForAddr(addr host.Address) (int, bool) {
	for i, a := range t.strAddrs {
		if a == addr {
			return i, true
		}
	}
	return 0, false
}

// Strings returns the pool contents in slot order for serialization.
func (t *Table) Strings() []string {
	return t.strVals
}

// StringCount returns the number of pooled strings.
func (t *Table) StringCount() int { return len(t.strAddrs) }

// SetStrings installs a pool loaded from an archive. Each string is pinned
// as NUL-terminated bytes in this process and its slot resolves to the
// address of those bytes, so patched code references live memory.
func (t *Table) SetStrings(vals []string) error {
	if len(vals) > MaxStrings {
		return fmt.Errorf("%w: strings %d > %d", ErrTableFull, len(vals), MaxStrings)
	}

	t.strVals = vals
	t.strAddrs = make([]host.Address, len(vals))
	t.strBufs = make([][]byte, len(vals))
	for i, s := range vals {
		buf := make([]byte, len(s)+1)
		copy(buf, s)
		t.strBufs[i] = buf
		t.strAddrs[i] = code.AddressOf(buf)
	}

	return nil
}
