package codearc

import (
	"errors"
	"fmt"

	"github.com/hupe1980/codearc/region"
)

var (
	// ErrClosed is returned when an operation is attempted on a closed
	// archive, or on a nil *Archive.
	ErrClosed = errors.New("codearc: archive is closed")

	// ErrFailed is returned once the archive has entered its sticky failed
	// state. No further stores or loads are served.
	ErrFailed = errors.New("codearc: archive has failed")

	// ErrNotFound is returned when no live entry matches a lookup.
	ErrNotFound = errors.New("codearc: entry not found")

	// ErrCapacity reports that a store would grow the archive past its
	// configured maximum size.
	ErrCapacity = region.ErrCapacity

	// ErrVersionMismatch is returned when an archive file records a format
	// version this build does not understand.
	ErrVersionMismatch = errors.New("codearc: archive version mismatch")

	// ErrReadOnly is returned by store operations on an archive opened for
	// load.
	ErrReadOnly = errors.New("codearc: archive is read-only")

	// ErrWriteOnly is returned by load operations on an archive opened for
	// store.
	ErrWriteOnly = errors.New("codearc: archive is write-only")
)

// FatalError marks a condition that permanently disables the archive:
// format version skew, an unsupported relocation kind, or an address id
// that decodes into the reserved gap. After a FatalError every subsequent
// operation fails with ErrFailed.
type FatalError struct {
	Reason string
	cause  error
}

func (e *FatalError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("codearc: fatal: %s: %v", e.Reason, e.cause)
	}
	return "codearc: fatal: " + e.Reason
}

func (e *FatalError) Unwrap() error {
	return e.cause
}

// LookupError is an artifact-level failure: a class, method, string or
// address needed by one entry could not be resolved. The operation fails
// and, on the store side, the partially written entry is rolled back, but
// the archive itself stays usable.
type LookupError struct {
	Artifact string
	cause    error
}

func (e *LookupError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("codearc: lookup failed for %s: %v", e.Artifact, e.cause)
	}
	return "codearc: lookup failed for " + e.Artifact
}

func (e *LookupError) Unwrap() error {
	return e.cause
}

// NameMismatchError reports that the name recorded in an entry does not
// match the name of the artifact a load asked for. Since entry ids are
// derived from names, a mismatch means the archive does not belong to this
// runtime configuration; it is treated as an archive-level failure.
type NameMismatchError struct {
	Want string
	Got  string
}

func (e *NameMismatchError) Error() string {
	return fmt.Sprintf("codearc: entry name mismatch: want %q, got %q", e.Want, e.Got)
}
