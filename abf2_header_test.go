package abf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/axonfmt/abfgo/internal/binstruct"
)

func TestReadABF2HeaderRejectsABF1Signature(t *testing.T) {
	buf := make([]byte, 512)
	copy(buf[0:4], abf1Signature)
	r := binstruct.NewReader(bytes.NewReader(buf), int64(len(buf)))

	_, _, err := readABF2Header(r)
	if !errors.Is(err, ErrUnsupportedDialect) {
		t.Errorf("expected ErrUnsupportedDialect, got %v", err)
	}
}

func TestReadABF2HeaderRejectsUnknownSignature(t *testing.T) {
	buf := make([]byte, 512)
	copy(buf[0:4], "XYZZ")
	r := binstruct.NewReader(bytes.NewReader(buf), int64(len(buf)))

	_, _, err := readABF2Header(r)
	if !errors.Is(err, ErrFormat) {
		t.Errorf("expected ErrFormat, got %v", err)
	}
}

// TestReadABF2HeaderFieldOffsets plants a distinct, recognizable value in
// every short-header field at its spec.md §4.4 byte offset and checks each
// comes back on the right field, to catch any field reader drifting onto
// its neighbor's bytes.
func TestReadABF2HeaderFieldOffsets(t *testing.T) {
	buf := make([]byte, 512)
	copy(buf[0:4], abf2Signature)

	buf[4], buf[5], buf[6], buf[7] = 11, 22, 33, 2 // fFileVersionNumber
	binary.LittleEndian.PutUint32(buf[12:], 7)     // lActualEpisodes
	binary.LittleEndian.PutUint32(buf[16:], 20230615) // uFileStartDate
	binary.LittleEndian.PutUint32(buf[20:], 3_723_000) // uFileStartTimeMS
	binary.LittleEndian.PutUint32(buf[24:], 999)   // uStopwatchTime
	binary.LittleEndian.PutUint16(buf[28:], 4)     // nFileType
	binary.LittleEndian.PutUint16(buf[30:], 1)     // nDataFormat (float32)
	binary.LittleEndian.PutUint16(buf[32:], 5)     // nSimultaneousScan
	binary.LittleEndian.PutUint16(buf[34:], 6)     // nCRCEnable
	binary.LittleEndian.PutUint32(buf[36:], 0xDEADBEEF) // uFileCRC
	for i := 0; i < 16; i++ {
		buf[40+i] = byte(0xA0 + i) // FileGUID
	}

	r := binstruct.NewReader(bytes.NewReader(buf), int64(len(buf)))
	h, _, err := readABF2Header(r)
	if err != nil {
		t.Fatalf("readABF2Header: %v", err)
	}

	if h.VersionRevision != 11 || h.VersionBuild != 22 || h.VersionMinor != 33 || h.VersionMajor != 2 {
		t.Errorf("version = %d.%d.%d.%d, want 2.33.22.11 (major.minor.build.revision)",
			h.VersionMajor, h.VersionMinor, h.VersionBuild, h.VersionRevision)
	}
	if h.ActualEpisodes != 7 {
		t.Errorf("ActualEpisodes = %d, want 7", h.ActualEpisodes)
	}
	if h.FileStartDate != 20230615 {
		t.Errorf("FileStartDate = %d, want 20230615", h.FileStartDate)
	}
	if h.FileStartTimeMS != 3_723_000 {
		t.Errorf("FileStartTimeMS = %d, want 3723000", h.FileStartTimeMS)
	}
	if h.StopwatchTimeMS != 999 {
		t.Errorf("StopwatchTimeMS = %d, want 999", h.StopwatchTimeMS)
	}
	if h.FileType != 4 {
		t.Errorf("FileType = %d, want 4", h.FileType)
	}
	if h.DataFormat != 1 {
		t.Errorf("DataFormat = %d, want 1 (float32)", h.DataFormat)
	}
	if h.SimultaneousScan != 5 {
		t.Errorf("SimultaneousScan = %d, want 5", h.SimultaneousScan)
	}
	if h.CRCEnable != 6 {
		t.Errorf("CRCEnable = %d, want 6", h.CRCEnable)
	}
	if h.FileCRC != 0xDEADBEEF {
		t.Errorf("FileCRC = %x, want deadbeef", h.FileCRC)
	}
	for i := 0; i < 16; i++ {
		if h.FileGUID[i] != byte(0xA0+i) {
			t.Fatalf("FileGUID[%d] = %x, want %x", i, h.FileGUID[i], byte(0xA0+i))
		}
	}
}

func TestReadABF2HeaderRejectsFutureVersion(t *testing.T) {
	buf := make([]byte, 512)
	copy(buf[0:4], abf2Signature)
	buf[7] = 3 // VersionMajor = 3, not yet supported

	r := binstruct.NewReader(bytes.NewReader(buf), int64(len(buf)))
	_, _, err := readABF2Header(r)
	if !errors.Is(err, ErrUnsupportedDialect) {
		t.Errorf("expected ErrUnsupportedDialect for version 3, got %v", err)
	}
}
