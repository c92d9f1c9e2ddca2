package format

import (
	"encoding/binary"
	"io"
)

// AppendStringPool encodes the interned-string pool: each string's length
// (including its NUL terminator), then the NUL-terminated bytes.
func AppendStringPool(dst []byte, pool []string) []byte {
	for _, s := range pool {
		dst = binary.LittleEndian.AppendUint32(dst, uint32(len(s)+1))
	}
	for _, s := range pool {
		dst = append(dst, s...)
		dst = append(dst, 0)
	}
	return dst
}

// StringPoolSize returns the encoded size of a pool.
func StringPoolSize(pool []string) int {
	n := 4 * len(pool)
	for _, s := range pool {
		n += len(s) + 1
	}
	return n
}

// ParseStringPool decodes count strings from data.
func ParseStringPool(data []byte, count int) ([]string, error) {
	if count < 0 || len(data) < 4*count {
		return nil, io.ErrUnexpectedEOF
	}
	lengths := make([]int, count)
	for i := 0; i < count; i++ {
		lengths[i] = int(binary.LittleEndian.Uint32(data[4*i:]))
		if lengths[i] == 0 {
			return nil, io.ErrUnexpectedEOF
		}
	}
	pool := make([]string, count)
	pos := 4 * count
	for i, n := range lengths {
		if pos+n > len(data) {
			return nil, io.ErrUnexpectedEOF
		}
		pool[i] = string(data[pos : pos+n-1]) // strip the NUL
		pos += n
	}
	return pool, nil
}
