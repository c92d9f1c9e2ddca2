package region

import "unsafe"

// wordCopyMin is the smallest copy worth the alignment checks.
const wordCopyMin = 32

// copyWords copies src into dst (which must be at least len(src) bytes).
// When both slices start on an 8-byte boundary the bulk moves as uint64
// words; the tail and any unaligned copy fall back to byte copying.
func copyWords(dst, src []byte) {
	n := len(src)
	if n >= wordCopyMin && aligned8(dst) && aligned8(src) {
		words := n / 8
		dw := unsafe.Slice((*uint64)(unsafe.Pointer(&dst[0])), words) //nolint:gosec // unsafe is required for performance
		sw := unsafe.Slice((*uint64)(unsafe.Pointer(&src[0])), words) //nolint:gosec // unsafe is required for performance
		copy(dw, sw)
		dst = dst[words*8:]
		src = src[words*8:]
	}
	copy(dst, src)
}

func aligned8(b []byte) bool {
	return uintptr(unsafe.Pointer(&b[0]))%8 == 0
}
