package format

import (
	"encoding/binary"
	"fmt"
	"io"
)

const flagNotEntrant uint32 = 1 << 0

// Entry describes one captured artifact. Sub-offsets (name, code,
// relocations) are relative to Offset, the start of the artifact's data
// block within the archive image.
type Entry struct {
	Offset      uint32
	NameOffset  uint32
	NameSize    uint32 // includes the terminating NUL
	CodeOffset  uint32
	CodeSize    uint32
	RelocOffset uint32
	RelocSize   uint32
	Kind        Kind
	ID          uint32
	Index       uint32
	Decompile   uint32
	NotEntrant  bool
}

// AppendEntry encodes e and appends it to dst.
func AppendEntry(dst []byte, e Entry) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, e.Offset)
	dst = binary.LittleEndian.AppendUint32(dst, e.NameOffset)
	dst = binary.LittleEndian.AppendUint32(dst, e.NameSize)
	dst = binary.LittleEndian.AppendUint32(dst, e.CodeOffset)
	dst = binary.LittleEndian.AppendUint32(dst, e.CodeSize)
	dst = binary.LittleEndian.AppendUint32(dst, e.RelocOffset)
	dst = binary.LittleEndian.AppendUint32(dst, e.RelocSize)
	dst = binary.LittleEndian.AppendUint32(dst, uint32(e.Kind))
	dst = binary.LittleEndian.AppendUint32(dst, e.ID)
	dst = binary.LittleEndian.AppendUint32(dst, e.Index)
	dst = binary.LittleEndian.AppendUint32(dst, e.Decompile)
	var flags uint32
	if e.NotEntrant {
		flags |= flagNotEntrant
	}
	dst = binary.LittleEndian.AppendUint32(dst, flags)
	return dst
}

// ParseEntry decodes one entry record from data.
func ParseEntry(data []byte) (Entry, error) {
	var e Entry
	if len(data) < EntrySize {
		return e, io.ErrUnexpectedEOF
	}
	e.Offset = binary.LittleEndian.Uint32(data[0:])
	e.NameOffset = binary.LittleEndian.Uint32(data[4:])
	e.NameSize = binary.LittleEndian.Uint32(data[8:])
	e.CodeOffset = binary.LittleEndian.Uint32(data[12:])
	e.CodeSize = binary.LittleEndian.Uint32(data[16:])
	e.RelocOffset = binary.LittleEndian.Uint32(data[20:])
	e.RelocSize = binary.LittleEndian.Uint32(data[24:])
	e.Kind = Kind(binary.LittleEndian.Uint32(data[28:]))
	e.ID = binary.LittleEndian.Uint32(data[32:])
	e.Index = binary.LittleEndian.Uint32(data[36:])
	e.Decompile = binary.LittleEndian.Uint32(data[40:])
	e.NotEntrant = binary.LittleEndian.Uint32(data[44:])&flagNotEntrant != 0
	return e, nil
}

// ParseEntries decodes count consecutive entry records and verifies that
// each record's Index equals its position.
func ParseEntries(data []byte, count int) ([]Entry, error) {
	if count < 0 || len(data) < count*EntrySize {
		return nil, io.ErrUnexpectedEOF
	}
	entries := make([]Entry, count)
	for i := 0; i < count; i++ {
		e, err := ParseEntry(data[i*EntrySize:])
		if err != nil {
			return nil, err
		}
		if e.Index != uint32(i) {
			return nil, fmt.Errorf("format: entry %d carries index %d", i, e.Index)
		}
		entries[i] = e
	}
	return entries, nil
}
