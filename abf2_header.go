package abf

import (
	"bytes"
	"fmt"

	"github.com/axonfmt/abfgo/internal/binstruct"
)

const (
	abf2Signature = "ABF2"
	abf1Signature = "ABF "

	abf2SectionMapOffset = 76
	abf2SectionMapCount  = 18
	abf2SectionMapStride = 16
)

// abf2SectionIndex names the 18 section-map slots in file order.
type abf2SectionIndex int

const (
	secProtocol abf2SectionIndex = iota
	secADC
	secDAC
	secEpoch
	secADCPerDAC // unused by this reader; reserved slot in the on-disk map
	secEpochPerDAC
	secUserList
	secStatsRegion
	secMath
	secStrings
	secData
	secTag
	secScope
	secDelta
	secVoiceTag
	secSynchArray
	secAnnotation
	secStats
)

// abf2FileHeader holds the fields parsed from ABF2's 76-byte short header
// (spec.md §4.4), preceding the section map.
type abf2FileHeader struct {
	VersionRevision byte
	VersionBuild    byte
	VersionMinor    byte
	VersionMajor    byte

	ActualEpisodes  uint32
	FileStartDate   uint32 // YYYYMMDD
	FileStartTimeMS uint32
	StopwatchTimeMS uint32
	FileType        uint16
	DataFormat      uint16 // 0 = int16, 1 = float32
	SimultaneousScan uint16
	CRCEnable       uint16
	FileCRC         uint32
	FileGUID        [16]byte
}

// abf2SectionMap is the 18-entry table at byte 76; only the first 12 of
// each 16-byte slot are meaningful.
type abf2SectionMap [abf2SectionMapCount]binstruct.SectionTable

// readABF2Header validates the "ABF2" signature and decodes the short
// header plus section map. Returns ErrUnsupportedDialect if the signature
// is "ABF " (ABF1 — caller should dispatch to readABF1Header instead).
func readABF2Header(r *binstruct.Reader) (*abf2FileHeader, *abf2SectionMap, error) {
	sig, err := r.Bytes(0, 4)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: reading file signature: %v", ErrIO, err)
	}
	switch string(sig) {
	case abf2Signature:
		// fall through
	case abf1Signature:
		return nil, nil, fmt.Errorf("%w: file is ABF1, not ABF2", ErrUnsupportedDialect)
	default:
		return nil, nil, fmt.Errorf("%w: unrecognized file signature %q", ErrFormat, sig)
	}

	h := &abf2FileHeader{}
	var rd error
	readU8 := func(off int64) byte {
		v, e := r.U8(off)
		if e != nil && rd == nil {
			rd = e
		}
		return v
	}
	readU16 := func(off int64) uint16 {
		v, e := r.U16(off)
		if e != nil && rd == nil {
			rd = e
		}
		return v
	}
	readU32 := func(off int64) uint32 {
		v, e := r.U32(off)
		if e != nil && rd == nil {
			rd = e
		}
		return v
	}

	h.VersionRevision = readU8(4)
	h.VersionBuild = readU8(5)
	h.VersionMinor = readU8(6)
	h.VersionMajor = readU8(7)
	// uFileInfoSize at offset 8 is always 512; not retained.
	h.ActualEpisodes = readU32(12)
	h.FileStartDate = readU32(16)
	h.FileStartTimeMS = readU32(20)
	h.StopwatchTimeMS = readU32(24)
	h.FileType = readU16(28)
	h.DataFormat = readU16(30)
	h.SimultaneousScan = readU16(32)
	h.CRCEnable = readU16(34)
	h.FileCRC = readU32(36)
	guid, e := r.Bytes(40, 16)
	if e != nil && rd == nil {
		rd = e
	} else {
		copy(h.FileGUID[:], guid)
	}
	if rd != nil {
		return nil, nil, fmt.Errorf("%w: reading ABF2 file header: %v", ErrIO, rd)
	}

	if h.DataFormat > 1 {
		return nil, nil, fmt.Errorf("%w: data format %d (only int16/float32 supported)", ErrUnsupportedDialect, h.DataFormat)
	}
	if h.VersionMajor >= 3 {
		return nil, nil, fmt.Errorf("%w: ABF version %d", ErrUnsupportedDialect, h.VersionMajor)
	}

	var sm abf2SectionMap
	for i := 0; i < abf2SectionMapCount; i++ {
		off := int64(abf2SectionMapOffset + i*abf2SectionMapStride)
		firstBlock, err := r.U32(off)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: reading section map entry %d: %v", ErrIO, i, err)
		}
		bytesPerEntry, err := r.U32(off + 4)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: reading section map entry %d: %v", ErrIO, i, err)
		}
		entryCount, err := r.I64(off + 8)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: reading section map entry %d: %v", ErrIO, i, err)
		}
		if entryCount > 0 {
			base := int64(firstBlock) * binstruct.BlockSize
			if base >= r.Size() {
				return nil, nil, fmt.Errorf("%w: section map entry %d points past end of file", ErrFormat, i)
			}
			if int64(bytesPerEntry) <= 0 {
				return nil, nil, fmt.Errorf("%w: section map entry %d has zero bytesPerEntry", ErrFormat, i)
			}
		}
		sm[i] = binstruct.SectionTable{FirstBlock: firstBlock, BytesPerEntry: bytesPerEntry, EntryCount: entryCount}
	}

	return h, &sm, nil
}

// trimmed returns b with trailing NUL bytes dropped, used for fixed-width
// signature/GUID-adjacent byte fields that aren't run through StringPool.
func trimmed(b []byte) string {
	return string(bytes.TrimRight(b, "\x00"))
}
