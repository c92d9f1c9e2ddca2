package code

import (
	"fmt"

	"github.com/hupe1980/codearc/host"
)

// Range is a fixed-capacity destination region for loaded stub code. The
// caller owns the backing bytes (typically a slice over executable
// memory); loads claim space by advancing the tail.
type Range struct {
	data []byte
	end  int
}

// NewRange wraps data as an empty destination range.
func NewRange(data []byte) *Range {
	return &Range{data: data}
}

// Allocate claims the next n bytes and advances the tail.
func (r *Range) Allocate(n int) ([]byte, error) {
	if n < 0 || n > len(r.data)-r.end {
		return nil, fmt.Errorf("code: range full: need %d bytes, %d free", n, len(r.data)-r.end)
	}
	b := r.data[r.end : r.end+n : r.end+n]
	r.end += n
	return b, nil
}

// End returns the tail position: the number of bytes claimed so far.
func (r *Range) End() int { return r.end }

// Remaining returns the unclaimed capacity.
func (r *Range) Remaining() int { return len(r.data) - r.end }

// Committed returns the claimed prefix.
func (r *Range) Committed() []byte { return r.data[:r.end] }

// Base returns the address of the start of the claimed region, or 0 for an
// empty range.
func (r *Range) Base() host.Address { return AddressOf(r.data) }
