package binstruct

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

func TestReadMapFixedStride(t *testing.T) {
	// Three 16-byte slots, one per field: each 4-byte field is read from
	// the start of its slot and the rest of the slot is skipped as padding.
	buf := make([]byte, 48)
	binary.LittleEndian.PutUint32(buf[0:], 10)
	binary.LittleEndian.PutUint32(buf[4:], 99) // padding
	binary.LittleEndian.PutUint32(buf[16:], 20)
	binary.LittleEndian.PutUint32(buf[20:], 99) // padding
	binary.LittleEndian.PutUint32(buf[32:], 30)
	binary.LittleEndian.PutUint32(buf[36:], 99) // padding

	r := NewReader(bytes.NewReader(buf), int64(len(buf)))
	fields := []Field{{"a", "I"}, {"b", "I"}, {"c", "l"}}

	rec, err := ReadMap(r, fields, 0, 16)
	if err != nil {
		t.Fatalf("ReadMap: %v", err)
	}
	if rec["a"].Uint() != 10 || rec["b"].Uint() != 20 || rec["c"].Int() != 30 {
		t.Errorf("unexpected record: %+v", rec)
	}
}

func TestReadSection(t *testing.T) {
	// Two fixed 8-byte entries: one float32, one int32.
	buf := make([]byte, 512+16)
	binary.LittleEndian.PutUint32(buf[512:], math.Float32bits(1.5))
	binary.LittleEndian.PutUint32(buf[516:], 7)
	binary.LittleEndian.PutUint32(buf[520:], math.Float32bits(-2.5))
	binary.LittleEndian.PutUint32(buf[524:], 9)

	r := NewReader(bytes.NewReader(buf), int64(len(buf)))
	fields := []Field{{"level", "f"}, {"count", "i"}}
	table := SectionTable{FirstBlock: 1, BytesPerEntry: 8, EntryCount: 2}

	recs, err := ReadSection(r, fields, table)
	if err != nil {
		t.Fatalf("ReadSection: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("len(recs) = %d, want 2", len(recs))
	}
	if recs[0]["level"].Float() != 1.5 || recs[0]["count"].Int() != 7 {
		t.Errorf("record 0 = %+v", recs[0])
	}
	if recs[1]["level"].Float() != -2.5 || recs[1]["count"].Int() != 9 {
		t.Errorf("record 1 = %+v", recs[1])
	}
}

func TestReadSectionZeroEntries(t *testing.T) {
	r := NewReader(bytes.NewReader(make([]byte, 512)), 512)
	recs, err := ReadSection(r, []Field{{"x", "i"}}, SectionTable{EntryCount: 0})
	if err != nil || recs != nil {
		t.Errorf("ReadSection with EntryCount=0 = %v, %v; want nil, nil", recs, err)
	}
}

func TestReadSectionEntryTooBig(t *testing.T) {
	r := NewReader(bytes.NewReader(make([]byte, 1024)), 1024)
	_, err := ReadSection(r, []Field{{"a", "i"}, {"b", "i"}}, SectionTable{FirstBlock: 1, BytesPerEntry: 4, EntryCount: 1})
	if !errors.Is(err, ErrBadMap) {
		t.Errorf("expected ErrBadMap, got %v", err)
	}
}

func TestFieldSizeVectorAndString(t *testing.T) {
	n, err := fieldSize("4f")
	if err != nil || n != 16 {
		t.Errorf("fieldSize(4f) = %d, %v; want 16, nil", n, err)
	}
	n, err = fieldSize("10s")
	if err != nil || n != 10 {
		t.Errorf("fieldSize(10s) = %d, %v; want 10, nil", n, err)
	}
	if _, err := fieldSize("?"); !errors.Is(err, ErrBadMap) {
		t.Errorf("expected ErrBadMap for bad code, got %v", err)
	}
}
