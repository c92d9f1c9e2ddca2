package code

import (
	"encoding/binary"
	"unsafe"

	"github.com/hupe1980/codearc/host"
)

// WordSize is the width of a relocation site.
const WordSize = 8

// AddressOf returns the address of the first byte of b, or 0 for an empty
// slice. Callers must keep b reachable for as long as the address is used.
func AddressOf(b []byte) host.Address {
	if len(b) == 0 {
		return 0
	}
	return host.Address(uintptr(unsafe.Pointer(unsafe.SliceData(b))))
}

// ReadWord reads the little-endian 64-bit site at off.
func ReadWord(sect []byte, off uint32) (uint64, bool) {
	if int64(off)+WordSize > int64(len(sect)) {
		return 0, false
	}
	return binary.LittleEndian.Uint64(sect[off:]), true
}

// WriteWord overwrites the little-endian 64-bit site at off.
func WriteWord(sect []byte, off uint32, v uint64) bool {
	if int64(off)+WordSize > int64(len(sect)) {
		return false
	}
	binary.LittleEndian.PutUint64(sect[off:], v)
	return true
}
