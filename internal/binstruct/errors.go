package binstruct

import "errors"

// ErrShortRead signals a read that would run past the addressable size
// passed to NewReader, or an underlying io error while filling the buffer.
var ErrShortRead = errors.New("binstruct: short read")

// ErrBadMap signals a malformed struct-map spec or section-table entry
// (a bytesPerEntry smaller than the sum of field sizes, or a firstBlock
// that lands past end of file).
var ErrBadMap = errors.New("binstruct: bad struct map")
