package region

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/codearc/internal/fs"
)

func TestWriterRoundTrip(t *testing.T) {
	w := NewWriter(1 << 20)
	w.WriteUint32(0xCAFEBABE)
	w.WriteUint64(0x1122334455667788)
	w.WriteCString("stub")
	w.Align(8)
	w.WriteBytes([]byte{1, 2, 3, 4})
	require.NoError(t, w.Err())

	r := NewReader(w.Bytes())
	assert.Equal(t, uint32(0xCAFEBABE), r.ReadUint32())
	assert.Equal(t, uint64(0x1122334455667788), r.ReadUint64())
	assert.Equal(t, "stub", r.ReadCString(5))
	r.Align(8)
	assert.Equal(t, []byte{1, 2, 3, 4}, r.ReadBytes(4))
	require.NoError(t, r.Err())
	assert.Equal(t, w.Size(), r.Position())
}

func TestWriterAlignPadsWithZeros(t *testing.T) {
	w := NewWriter(1 << 10)
	w.WriteBytes([]byte{0xFF, 0xFF, 0xFF})
	w.Align(8)
	require.NoError(t, w.Err())
	assert.Equal(t, 8, w.Size())
	assert.Equal(t, []byte{0, 0, 0, 0, 0}, w.Bytes()[3:8])

	// Already aligned positions do not move.
	w.Align(8)
	assert.Equal(t, 8, w.Position())
}

func TestWriterSeekRewrite(t *testing.T) {
	w := NewWriter(1 << 10)
	w.WriteUint32(0) // placeholder
	w.WriteCString("payload")
	end := w.Position()

	w.SetPosition(0)
	w.WriteUint32(42)
	w.SetPosition(end)
	require.NoError(t, w.Err())

	r := NewReader(w.Bytes())
	assert.Equal(t, uint32(42), r.ReadUint32())
	assert.Equal(t, "payload", r.ReadCString(8))
	assert.Equal(t, end, w.Size())
}

func TestWriterSeekOutOfRange(t *testing.T) {
	w := NewWriter(1 << 10)
	w.WriteUint32(1)
	w.SetPosition(100)
	require.Error(t, w.Err())

	// Sticky: later writes are no-ops and the size is unchanged.
	w.WriteUint64(2)
	assert.Equal(t, 4, w.Size())
}

func TestWriterCapacity(t *testing.T) {
	w := NewWriter(16)
	w.WriteUint64(1)
	w.WriteUint64(2)
	require.NoError(t, w.Err())
	w.WriteUint32(3)
	require.Error(t, w.Err())
	assert.Equal(t, 16, w.Size())
}

func TestWriterTruncate(t *testing.T) {
	w := NewWriter(1 << 10)
	w.WriteCString("keep")
	mark := w.Position()
	w.WriteCString("discard")
	w.Truncate(mark)
	require.NoError(t, w.Err())
	assert.Equal(t, mark, w.Size())
	assert.Equal(t, mark, w.Position())

	w.WriteCString("next")
	r := NewReader(w.Bytes())
	assert.Equal(t, "keep", r.ReadCString(5))
	assert.Equal(t, "next", r.ReadCString(5))
}

func TestWriterWordCopy(t *testing.T) {
	// Large enough to take the word-wise path, with a ragged tail.
	src := make([]byte, 1029)
	for i := range src {
		src[i] = byte(i * 7)
	}
	w := NewWriter(1 << 20)
	w.Align(8)
	w.WriteBytes(src)
	require.NoError(t, w.Err())
	assert.True(t, bytes.Equal(src, w.Bytes()))

	// Unaligned destination still copies correctly.
	w2 := NewWriter(1 << 20)
	w2.WriteBytes([]byte{0xAA})
	w2.WriteBytes(src)
	require.NoError(t, w2.Err())
	assert.True(t, bytes.Equal(src, w2.Bytes()[1:]))
}

func TestReaderBounds(t *testing.T) {
	r := NewReader([]byte{1, 2, 3, 4})
	r.Seek(2)
	assert.Equal(t, []byte{3, 4}, r.ReadBytes(2))
	r.ReadBytes(1)
	require.Error(t, r.Err())

	// Sticky: further reads return zero values.
	assert.Zero(t, r.ReadUint32())
}

func TestReaderSeekOutOfRange(t *testing.T) {
	r := NewReader([]byte{1, 2, 3, 4})
	r.Seek(5)
	require.Error(t, r.Err())
}

func TestReaderCStringMissingTerminator(t *testing.T) {
	r := NewReader([]byte{'a', 'b', 'c'})
	r.ReadCString(3)
	require.Error(t, r.Err())
}

func TestOpenFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "image.bin")

	w := NewWriter(1 << 10)
	w.WriteCString("mapped")
	require.NoError(t, w.Err())
	require.NoError(t, os.WriteFile(path, w.Bytes(), 0o600))

	for _, mapped := range []bool{true, false} {
		r, err := OpenFile(fs.Default, path, mapped)
		require.NoError(t, err)
		assert.Equal(t, "mapped", r.ReadCString(7))
		require.NoError(t, r.Err())
		require.NoError(t, r.Close())
	}
}
