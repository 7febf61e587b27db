// Package binstruct provides random-access little-endian primitive decoding
// and a declarative struct-map reader, shared by the ABF1 and ABF2 header
// parsers.
package binstruct

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Reader decodes little-endian primitives at arbitrary offsets against a
// file-backed or in-memory io.ReaderAt. It is not safe for concurrent seeks
// against the same underlying handle; callers that need concurrency should
// either give each goroutine its own Reader over a shared *os.File (offset
// reads via ReadAt do not race) or serialize access externally.
type Reader struct {
	src  io.ReaderAt
	size int64
}

// NewReader wraps src, whose total addressable length is size. size is used
// to produce ErrShortRead with a useful message before attempting a read
// that is known to run past EOF.
func NewReader(src io.ReaderAt, size int64) *Reader {
	return &Reader{src: src, size: size}
}

// Size returns the addressable length passed to NewReader.
func (r *Reader) Size() int64 { return r.size }

// Bytes reads n raw bytes at off.
func (r *Reader) Bytes(off int64, n int) ([]byte, error) {
	if n < 0 || off < 0 || off+int64(n) > r.size {
		return nil, fmt.Errorf("%w: read of %d bytes at offset %d exceeds size %d", ErrShortRead, n, off, r.size)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(io.NewSectionReader(r.src, off, int64(n)), buf); err != nil {
		return nil, fmt.Errorf("%w: at offset %d: %v", ErrShortRead, off, err)
	}
	return buf, nil
}

func (r *Reader) I8(off int64) (int8, error) {
	b, err := r.Bytes(off, 1)
	if err != nil {
		return 0, err
	}
	return int8(b[0]), nil
}

func (r *Reader) U8(off int64) (uint8, error) {
	b, err := r.Bytes(off, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) I16(off int64) (int16, error) {
	b, err := r.Bytes(off, 2)
	if err != nil {
		return 0, err
	}
	return int16(binary.LittleEndian.Uint16(b)), nil
}

func (r *Reader) U16(off int64) (uint16, error) {
	b, err := r.Bytes(off, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *Reader) I32(off int64) (int32, error) {
	b, err := r.Bytes(off, 4)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b)), nil
}

func (r *Reader) U32(off int64) (uint32, error) {
	b, err := r.Bytes(off, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *Reader) I64(off int64) (int64, error) {
	b, err := r.Bytes(off, 8)
	if err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(b)), nil
}

func (r *Reader) U64(off int64) (uint64, error) {
	b, err := r.Bytes(off, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *Reader) F32(off int64) (float32, error) {
	b, err := r.Bytes(off, 4)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(b)), nil
}

func (r *Reader) F64(off int64) (float64, error) {
	b, err := r.Bytes(off, 8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
}
