package abf

import "errors"

// Error kinds returned by this package. Callers should match with
// errors.Is; wrapped errors carry the offending offset or field name.
var (
	// ErrIO wraps an underlying file read/write failure.
	ErrIO = errors.New("abf: io error")

	// ErrFormat signals a signature mismatch, truncated section, or an
	// inconsistent section map.
	ErrFormat = errors.New("abf: format error")

	// ErrUnsupportedDialect signals an ABF version or data format this
	// package does not decode (ABF version >= 3, float64 samples).
	ErrUnsupportedDialect = errors.New("abf: unsupported dialect")

	// ErrOutOfRange signals a sweep, channel, or digital-bit index outside
	// the recording's dimensions.
	ErrOutOfRange = errors.New("abf: index out of range")

	// ErrInvalidInput signals inconsistent writer arguments (shape,
	// channel count, unit list).
	ErrInvalidInput = errors.New("abf: invalid input")
)
