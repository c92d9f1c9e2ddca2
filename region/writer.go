// Package region implements the byte-region store backing an archive: a
// growable, alignment-aware buffer with a seekable cursor for the write
// session, and a bounds-checked view over the loaded image for reading.
//
// Both sides carry a sticky error. Once an operation fails (capacity
// exhausted, out-of-bounds seek, short read) every subsequent operation is
// a no-op and Err reports the first failure, so codecs can run straight
// through a record and check once at the end.
package region

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrCapacity reports that a write would grow the region past its configured
// maximum. Wrapped by the sticky error, so errors.Is works on Err.
var ErrCapacity = errors.New("region: capacity exceeded")

// Writer is the write-mode byte region. The buffer grows on demand up to a
// configured maximum; the cursor may be seeked backwards to rewrite
// already-written ranges (the header) or to roll back a failed artifact.
type Writer struct {
	buf []byte // len(buf) is the logical size (high-water mark)
	pos int
	max int
	err error
}

// NewWriter creates a write region bounded by max bytes.
func NewWriter(max int) *Writer {
	return &Writer{buf: make([]byte, 0, 64<<10), max: max}
}

// Err returns the sticky error, if any.
func (w *Writer) Err() error { return w.err }

func (w *Writer) fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

// Position returns the current write cursor.
func (w *Writer) Position() int { return w.pos }

// Size returns the logical size, the furthest byte ever written.
func (w *Writer) Size() int { return len(w.buf) }

// Bytes returns the written image. Valid until the next write.
func (w *Writer) Bytes() []byte { return w.buf }

// SetPosition moves the cursor to off, which must lie within the written
// region. A no-op if the cursor is already there.
func (w *Writer) SetPosition(off int) {
	if w.err != nil || off == w.pos {
		return
	}
	if off < 0 || off > len(w.buf) {
		w.fail(fmt.Errorf("region: seek to %d outside [0, %d]", off, len(w.buf)))
		return
	}
	w.pos = off
}

// Truncate discards everything at and after off and moves the cursor there.
// Used to roll back a partially written artifact.
func (w *Writer) Truncate(off int) {
	if w.err != nil {
		return
	}
	if off < 0 || off > len(w.buf) {
		w.fail(fmt.Errorf("region: truncate to %d outside [0, %d]", off, len(w.buf)))
		return
	}
	w.buf = w.buf[:off]
	w.pos = off
}

// ensure grows the logical size so n bytes fit at the cursor.
func (w *Writer) ensure(n int) bool {
	if w.err != nil {
		return false
	}
	end := w.pos + n
	if end > w.max {
		w.fail(fmt.Errorf("%w: write of %d bytes at %d exceeds %d", ErrCapacity, n, w.pos, w.max))
		return false
	}
	if end > len(w.buf) {
		if end > cap(w.buf) {
			grown := make([]byte, len(w.buf), growCap(cap(w.buf), end, w.max))
			copy(grown, w.buf)
			w.buf = grown
		}
		w.buf = w.buf[:end]
	}
	return true
}

func growCap(cur, need, max int) int {
	if cur == 0 {
		cur = 64 << 10
	}
	for cur < need {
		cur *= 2
	}
	if cur > max {
		cur = max
	}
	return cur
}

// WriteBytes copies p at the cursor and advances it.
func (w *Writer) WriteBytes(p []byte) {
	if len(p) == 0 || !w.ensure(len(p)) {
		return
	}
	copyWords(w.buf[w.pos:w.pos+len(p)], p)
	w.pos += len(p)
}

// WriteUint32 writes v little-endian.
func (w *Writer) WriteUint32(v uint32) {
	if !w.ensure(4) {
		return
	}
	binary.LittleEndian.PutUint32(w.buf[w.pos:], v)
	w.pos += 4
}

// WriteUint64 writes v little-endian.
func (w *Writer) WriteUint64(v uint64) {
	if !w.ensure(8) {
		return
	}
	binary.LittleEndian.PutUint64(w.buf[w.pos:], v)
	w.pos += 8
}

// WriteCString writes s followed by a NUL terminator.
func (w *Writer) WriteCString(s string) {
	if !w.ensure(len(s) + 1) {
		return
	}
	copy(w.buf[w.pos:], s)
	w.buf[w.pos+len(s)] = 0
	w.pos += len(s) + 1
}

// Align zero-pads up to the next multiple of n.
func (w *Writer) Align(n int) {
	if w.err != nil {
		return
	}
	pad := (n - w.pos%n) % n
	if pad == 0 || !w.ensure(pad) {
		return
	}
	for i := 0; i < pad; i++ {
		w.buf[w.pos+i] = 0
	}
	w.pos += pad
}
