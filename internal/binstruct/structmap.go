package binstruct

import (
	"fmt"
	"strconv"
)

// Field is one (name, formatCode) pair in a struct map. formatCode follows
// the codes spec.md §4.2 assigns: b/B (i8/u8), h/H (i16/u16), i/I (i32/u32),
// l/L (i32/u32 aliases), f (f32), "<N>f" (fixed-length f32 vector), "<N>s"
// (fixed-length byte string). Composite multi-field ABF definitions such as
// "IIl" are expressed as three consecutive Fields rather than one composite
// code — the decoded bytes on the wire are identical either way.
type Field struct {
	Name string
	Code string
}

// Value is a decoded struct-map field value. Exactly one of the typed
// accessors is meaningful for a given field's Code.
type Value struct {
	I64   int64
	U64   uint64
	F32   float32
	Floats []float32
	Str   string
	Bytes []byte
}

// Record is one decoded struct-map instance, keyed by field name.
type Record map[string]Value

func (v Value) Int() int64     { return v.I64 }
func (v Value) Uint() uint64   { return v.U64 }
func (v Value) Float() float32 { return v.F32 }

// fieldSize returns the on-disk byte size of a single field's code, or an
// error if the code is malformed.
func fieldSize(code string) (int, error) {
	if code == "" {
		return 0, fmt.Errorf("%w: empty format code", ErrBadMap)
	}
	kind := code[len(code)-1]
	countPart := code[:len(code)-1]
	count := 1
	if countPart != "" {
		n, err := strconv.Atoi(countPart)
		if err != nil {
			return 0, fmt.Errorf("%w: bad count in format code %q: %v", ErrBadMap, code, err)
		}
		count = n
	}
	switch kind {
	case 'b', 'B':
		return count, nil
	case 'h', 'H':
		return 2 * count, nil
	case 'i', 'I', 'l', 'L':
		return 4 * count, nil
	case 'f':
		return 4 * count, nil
	case 's':
		return count, nil
	default:
		return 0, fmt.Errorf("%w: unknown format code %q", ErrBadMap, code)
	}
}

// readField decodes one field's bytes at off according to code.
func readField(r *Reader, off int64, code string) (Value, int, error) {
	size, err := fieldSize(code)
	if err != nil {
		return Value{}, 0, err
	}
	kind := code[len(code)-1]
	countPart := code[:len(code)-1]
	count := 1
	if countPart != "" {
		count, _ = strconv.Atoi(countPart)
	}

	switch kind {
	case 'b':
		n, err := r.I8(off)
		return Value{I64: int64(n)}, size, err
	case 'B':
		n, err := r.U8(off)
		return Value{U64: uint64(n)}, size, err
	case 'h':
		n, err := r.I16(off)
		return Value{I64: int64(n)}, size, err
	case 'H':
		n, err := r.U16(off)
		return Value{U64: uint64(n)}, size, err
	case 'i', 'l':
		n, err := r.I32(off)
		return Value{I64: int64(n)}, size, err
	case 'I', 'L':
		n, err := r.U32(off)
		return Value{U64: uint64(n)}, size, err
	case 'f':
		if count == 1 {
			n, err := r.F32(off)
			return Value{F32: n}, size, err
		}
		floats := make([]float32, count)
		for i := 0; i < count; i++ {
			n, err := r.F32(off + int64(i)*4)
			if err != nil {
				return Value{}, size, err
			}
			floats[i] = n
		}
		return Value{Floats: floats}, size, nil
	case 's':
		b, err := r.Bytes(off, count)
		if err != nil {
			return Value{}, size, err
		}
		return Value{Bytes: b, Str: TrimLabel(b)}, size, nil
	default:
		return Value{}, 0, fmt.Errorf("%w: unknown format code %q", ErrBadMap, code)
	}
}

// ReadMap reads fields in declaration order starting at startByte. If
// fixedStride > 0, each field slot consumes fixedStride bytes on disk
// regardless of the field's own size: the field is read from the start of
// its slot and the remaining fixedStride - size bytes are skipped as padding.
func ReadMap(r *Reader, fields []Field, startByte int64, fixedStride int) (Record, error) {
	rec := make(Record, len(fields))
	off := startByte
	for _, f := range fields {
		size, err := fieldSize(f.Code)
		if err != nil {
			return nil, err
		}
		if fixedStride > 0 && size > fixedStride {
			return nil, fmt.Errorf("%w: field %q of size %d exceeds fixed stride %d", ErrBadMap, f.Name, size, fixedStride)
		}
		v, _, err := readField(r, off, f.Code)
		if err != nil {
			return nil, fmt.Errorf("field %q at offset %d: %w", f.Name, off, err)
		}
		rec[f.Name] = v
		if fixedStride > 0 {
			off += int64(fixedStride)
		} else {
			off += int64(size)
		}
	}
	return rec, nil
}

// BlockSize is the ABF block addressing unit: section-map offsets and the
// ABF1/ABF2 data-section pointer are expressed as a multiple of this.
const BlockSize = 512

// SectionTable describes one ABF2 section-map entry: (firstBlock,
// bytesPerEntry, entryCount).
type SectionTable struct {
	FirstBlock    uint32
	BytesPerEntry uint32
	EntryCount    int64
}

// ReadSection decodes table.EntryCount fixed-size records of the given
// struct map, one every table.BytesPerEntry bytes, starting at
// table.FirstBlock*BlockSize.
func ReadSection(r *Reader, fields []Field, table SectionTable) ([]Record, error) {
	if table.EntryCount == 0 {
		return nil, nil
	}
	base := int64(table.FirstBlock) * BlockSize
	if base >= r.Size() {
		return nil, fmt.Errorf("%w: section first block %d (byte %d) is past end of file (%d bytes)", ErrBadMap, table.FirstBlock, base, r.Size())
	}

	var want int
	for _, f := range fields {
		size, err := fieldSize(f.Code)
		if err != nil {
			return nil, err
		}
		want += size
	}
	if int64(want) > int64(table.BytesPerEntry) {
		return nil, fmt.Errorf("%w: section entry size %d exceeds bytesPerEntry %d", ErrBadMap, want, table.BytesPerEntry)
	}

	records := make([]Record, 0, table.EntryCount)
	for k := int64(0); k < table.EntryCount; k++ {
		off := base + k*int64(table.BytesPerEntry)
		rec, err := ReadMap(r, fields, off, 0)
		if err != nil {
			return nil, fmt.Errorf("section entry %d: %w", k, err)
		}
		records = append(records, rec)
	}
	return records, nil
}
