// Package hash provides the checksum and identity hashing used by the
// archive: CRC32-Castagnoli for transfer integrity and for deriving entry
// ids from fully qualified artifact names.
package hash

import (
	"hash"
	"hash/crc32"
)

// crc32cTable is pre-computed for CRC32-Castagnoli polynomial.
// Computing this once avoids repeated MakeTable calls.
var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// CRC32C computes the CRC32-Castagnoli checksum of data.
// Uses hardware acceleration when available (SSE4.2, ARM CRC).
func CRC32C(data []byte) uint32 {
	return crc32.Checksum(data, crc32cTable)
}

// NewCRC32C returns a new CRC32-Castagnoli hash.Hash32.
func NewCRC32C() hash.Hash32 {
	return crc32.New(crc32cTable)
}

// NameID derives the identity key of a compiled-method entry from its fully
// qualified name. Lookup compares the stored name afterwards, so a collision
// surfaces as a name mismatch rather than a wrong load.
func NameID(name string) uint32 {
	return crc32.Checksum([]byte(name), crc32cTable)
}
