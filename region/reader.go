package region

import (
	"encoding/binary"
	"fmt"

	"github.com/hupe1980/codearc/internal/fs"
	"github.com/hupe1980/codearc/internal/mmap"
)

// Reader is a bounds-checked cursor over a loaded archive image. Reads
// return subslices of the underlying data without copying, so callers must
// not retain them past Close when the image is memory-mapped.
type Reader struct {
	data    []byte
	pos     int
	err     error
	mapping *mmap.Mapping
}

// NewReader wraps an in-memory image.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// OpenFile loads the image at path, memory-mapped when mapped is true and
// read wholesale through fsys otherwise.
func OpenFile(fsys fs.FileSystem, path string, mapped bool) (*Reader, error) {
	if mapped {
		m, err := mmap.Open(path)
		if err != nil {
			return nil, err
		}
		return &Reader{data: m.Bytes(), mapping: m}, nil
	}
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &Reader{data: data}, nil
}

// Close releases the mapping, if any. The Reader must not be used after.
func (r *Reader) Close() error {
	if r.mapping != nil {
		return r.mapping.Close()
	}
	return nil
}

// Err returns the sticky error, if any.
func (r *Reader) Err() error { return r.err }

func (r *Reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

// Len returns the image size.
func (r *Reader) Len() int { return len(r.data) }

// Position returns the current read cursor.
func (r *Reader) Position() int { return r.pos }

// Data returns the whole image.
func (r *Reader) Data() []byte { return r.data }

// Seek moves the cursor to off, which must lie within the image.
func (r *Reader) Seek(off int) {
	if r.err != nil {
		return
	}
	if off < 0 || off > len(r.data) {
		r.fail(fmt.Errorf("region: seek to %d outside [0, %d]", off, len(r.data)))
		return
	}
	r.pos = off
}

// Align advances the cursor to the next multiple of n.
func (r *Reader) Align(n int) {
	if r.err != nil {
		return
	}
	pad := (n - r.pos%n) % n
	if r.pos+pad > len(r.data) {
		r.fail(fmt.Errorf("region: align %d at %d past end %d", n, r.pos, len(r.data)))
		return
	}
	r.pos += pad
}

// ReadBytes returns the next n bytes as a subslice and advances the cursor.
func (r *Reader) ReadBytes(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.pos+n > len(r.data) {
		r.fail(fmt.Errorf("region: read of %d bytes at %d past end %d", n, r.pos, len(r.data)))
		return nil
	}
	b := r.data[r.pos : r.pos+n : r.pos+n]
	r.pos += n
	return b
}

// ReadUint32 reads a little-endian uint32.
func (r *Reader) ReadUint32() uint32 {
	b := r.ReadBytes(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

// ReadUint64 reads a little-endian uint64.
func (r *Reader) ReadUint64() uint64 {
	b := r.ReadBytes(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

// ReadCString reads n bytes holding a NUL-terminated string and returns it
// without the terminator.
func (r *Reader) ReadCString(n int) string {
	b := r.ReadBytes(n)
	if len(b) == 0 || b[n-1] != 0 {
		r.fail(fmt.Errorf("region: string of %d bytes at %d is not NUL-terminated", n, r.pos))
		return ""
	}
	return string(b[:n-1])
}
