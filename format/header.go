package format

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrBadMagic is returned when the file does not start with Magic.
var ErrBadMagic = errors.New("format: not a code archive")

// VersionError is returned when the archive was written by a different
// format version. The archive must not be read past its header.
type VersionError struct {
	Got  uint32
	Want uint32
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("format: archive version %d, running version %d", e.Got, e.Want)
}

// Header is the fixed-size record at offset 0.
//
// It is written twice: a placeholder when the archive is created and the
// final version at finalize time, after the string pool and entry index
// offsets are known.
type Header struct {
	Version       uint32
	EntryCount    uint32
	ArchiveSize   uint32
	EntriesOffset uint32
	StringsCount  uint32
	StringsOffset uint32
}

// AppendHeader encodes h and appends it to dst.
func AppendHeader(dst []byte, h Header) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, Magic)
	dst = binary.LittleEndian.AppendUint32(dst, h.Version)
	dst = binary.LittleEndian.AppendUint32(dst, h.EntryCount)
	dst = binary.LittleEndian.AppendUint32(dst, h.ArchiveSize)
	dst = binary.LittleEndian.AppendUint32(dst, h.EntriesOffset)
	dst = binary.LittleEndian.AppendUint32(dst, h.StringsCount)
	dst = binary.LittleEndian.AppendUint32(dst, h.StringsOffset)
	dst = binary.LittleEndian.AppendUint32(dst, 0) // reserved
	return dst
}

// ParseHeader decodes and validates the header at the start of data.
func ParseHeader(data []byte) (Header, error) {
	var h Header
	if len(data) < HeaderSize {
		return h, errors.New("format: short header")
	}
	if binary.LittleEndian.Uint32(data[0:]) != Magic {
		return h, ErrBadMagic
	}
	h.Version = binary.LittleEndian.Uint32(data[4:])
	if h.Version != Version {
		return h, &VersionError{Got: h.Version, Want: Version}
	}
	h.EntryCount = binary.LittleEndian.Uint32(data[8:])
	h.ArchiveSize = binary.LittleEndian.Uint32(data[12:])
	h.EntriesOffset = binary.LittleEndian.Uint32(data[16:])
	h.StringsCount = binary.LittleEndian.Uint32(data[20:])
	h.StringsOffset = binary.LittleEndian.Uint32(data[24:])
	return h, nil
}
