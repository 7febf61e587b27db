package abf

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/axonfmt/abfgo/internal/binstruct"
)

// encodeStructMap renders fields in declaration order into a byte slice,
// using overrides by field name where given and zero otherwise. It mirrors
// binstruct's own field-size switch so test fixtures stay byte-exact with
// the production decoder without duplicating its offset bookkeeping by hand.
func encodeStructMap(t *testing.T, fields []binstruct.Field, overrides map[string]any) []byte {
	t.Helper()
	var out []byte
	for _, f := range fields {
		kind := f.Code[len(f.Code)-1]
		switch kind {
		case 'h':
			v, _ := overrides[f.Name].(int16)
			b := make([]byte, 2)
			binary.LittleEndian.PutUint16(b, uint16(v))
			out = append(out, b...)
		case 'H':
			v, _ := overrides[f.Name].(uint16)
			b := make([]byte, 2)
			binary.LittleEndian.PutUint16(b, v)
			out = append(out, b...)
		case 'i', 'l':
			v, _ := overrides[f.Name].(int32)
			b := make([]byte, 4)
			binary.LittleEndian.PutUint32(b, uint32(v))
			out = append(out, b...)
		case 'I', 'L':
			v, _ := overrides[f.Name].(uint32)
			b := make([]byte, 4)
			binary.LittleEndian.PutUint32(b, v)
			out = append(out, b...)
		case 'f':
			count := 1
			if len(f.Code) > 1 {
				switch f.Code[:len(f.Code)-1] {
				case "3":
					count = 3
				}
			}
			vs, ok := overrides[f.Name].([]float32)
			if !ok {
				vs = make([]float32, count)
				if v, ok := overrides[f.Name].(float32); ok {
					vs[0] = v
				}
			}
			for i := 0; i < count; i++ {
				b := make([]byte, 4)
				var v float32
				if i < len(vs) {
					v = vs[i]
				}
				binary.LittleEndian.PutUint32(b, math.Float32bits(v))
				out = append(out, b...)
			}
		case 'b', 'B':
			width := 1
			if len(f.Code) > 1 {
				n := 0
				for _, c := range f.Code[:len(f.Code)-1] {
					n = n*10 + int(c-'0')
				}
				width = n
			}
			v, _ := overrides[f.Name].([]byte)
			buf := make([]byte, width)
			copy(buf, v)
			out = append(out, buf...)
		case 's':
			width := 0
			for _, c := range f.Code[:len(f.Code)-1] {
				width = width*10 + int(c-'0')
			}
			v, _ := overrides[f.Name].(string)
			buf := make([]byte, width)
			copy(buf, v)
			out = append(out, buf...)
		}
	}
	return out
}

// buildSyntheticABF2 assembles a minimal ABF2 file: one ADC channel, one
// DAC with a single step epoch, one tag, one synch-array entry, a strings
// pool, and one gap-free sweep of int16 samples.
func buildSyntheticABF2(t *testing.T, samples []int16, sampleRateHz float64) []byte {
	t.Helper()
	const block = 512

	buf := make([]byte, block) // block 0: short header + section map
	copy(buf[0:4], abf2Signature)
	buf[7] = 2 // VersionMajor = 2

	putSection := func(slot abf2SectionIndex, firstBlock, bytesPerEntry uint32, entryCount int64) {
		off := abf2SectionMapOffset + int(slot)*abf2SectionMapStride
		binary.LittleEndian.PutUint32(buf[off:], firstBlock)
		binary.LittleEndian.PutUint32(buf[off+4:], bytesPerEntry)
		binary.LittleEndian.PutUint64(buf[off+8:], uint64(entryCount))
	}

	intervalUS := float32(1e6 / sampleRateHz)

	protocolBytes := encodeStructMap(t, protocolFields, map[string]any{
		"nOperationMode":        int16(ModeGapFree),
		"fADCSequenceInterval":  intervalUS,
		"lNumSamplesPerEpisode": int32(len(samples)),
		"lEpisodesPerRun":       int32(1),
		"fADCRange":             float32(10),
		"fDACRange":             float32(10),
		"lADCResolution":        int32(32768),
		"lDACResolution":        int32(32768),
		"nActiveDACChannel":     int16(0),
	})

	adcBytes := encodeStructMap(t, adcFields, map[string]any{
		"nADCNum":               int16(0),
		"nADCSamplingSeq":       int16(0),
		"fADCProgrammableGain":  float32(1),
		"fInstrumentScaleFactor": float32(1),
		"fSignalGain":           float32(1),
		"lADCChannelNameIndex":  int32(2),
		"lADCUnitsIndex":        int32(3),
	})

	dacBytes := encodeStructMap(t, dacFields, map[string]any{
		"nDACNum":              int16(0),
		"fDACHoldingLevel":     float32(-70),
		"lDACChannelNameIndex": int32(4),
		"lDACChannelUnitsIndex": int32(5),
		"nInterEpisodeLevel":   int16(0),
	})

	epochBytes := encodeStructMap(t, epochPerDACFields, map[string]any{
		"nEpochNum":          int16(0),
		"nDACNum":            int16(0),
		"nEpochType":         int16(EpochStep),
		"fEpochInitLevel":    float32(20),
		"lEpochInitDuration": int32(len(samples) / 2),
	})

	tagBytes := encodeStructMap(t, tagFields, map[string]any{
		"lTagTime":  int32(5),
		"sComment":  "sweep start",
		"nTagType":  int16(0),
	})

	synchBytes := encodeStructMap(t, synchArrayFields, map[string]any{
		"lStart":  int32(0),
		"lLength": int32(len(samples)),
	})

	stringsPayload := append([]byte{0}, []byte("clampex.pro\x00IN0\x00pA\x00Cmd0\x00mV\x00")...)

	dataBytes := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(dataBytes[i*2:], uint16(s))
	}

	appendBlock := func(data []byte) uint32 {
		firstBlock := uint32(len(buf) / block)
		padded := len(data)
		if padded%block != 0 {
			padded += block - padded%block
		}
		chunk := make([]byte, padded)
		copy(chunk, data)
		buf = append(buf, chunk...)
		return firstBlock
	}

	protoBlock := appendBlock(protocolBytes)
	putSection(secProtocol, protoBlock, uint32(len(protocolBytes)), 1)

	adcBlock := appendBlock(adcBytes)
	putSection(secADC, adcBlock, uint32(len(adcBytes)), 1)

	dacBlock := appendBlock(dacBytes)
	putSection(secDAC, dacBlock, uint32(len(dacBytes)), 1)

	epochBlock := appendBlock(epochBytes)
	putSection(secEpochPerDAC, epochBlock, uint32(len(epochBytes)), 1)

	tagBlock := appendBlock(tagBytes)
	putSection(secTag, tagBlock, uint32(len(tagBytes)), 1)

	synchBlock := appendBlock(synchBytes)
	putSection(secSynchArray, synchBlock, uint32(len(synchBytes)), 1)

	stringsBlock := appendBlock(stringsPayload)
	putSection(secStrings, stringsBlock, uint32(len(stringsPayload)), 1)

	dataBlock := appendBlock(dataBytes)
	putSection(secData, dataBlock, 2, int64(len(samples)))

	return buf
}

func TestOpenSyntheticABF2(t *testing.T) {
	const rate = 10000.0
	n := 100
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(i - n/2)
	}

	raw := buildSyntheticABF2(t, samples, rate)
	dir := t.TempDir()
	path := filepath.Join(dir, "synthetic.abf")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	rec, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rec.Close()

	if rec.Dialect != DialectABF2 {
		t.Fatalf("Dialect = %v, want ABF2", rec.Dialect)
	}
	if rec.ChannelCount != 1 {
		t.Fatalf("ChannelCount = %d, want 1", rec.ChannelCount)
	}
	if rec.SweepCount != 1 {
		t.Fatalf("SweepCount = %d, want 1 (gap-free)", rec.SweepCount)
	}
	if rec.SweepPointCount != n {
		t.Fatalf("SweepPointCount = %d, want %d", rec.SweepPointCount, n)
	}
	if math.Abs(rec.SampleRateHz-rate) > rate*1e-3 {
		t.Fatalf("SampleRateHz = %v, want ~%v", rec.SampleRateHz, rate)
	}
	if rec.AdcNames()[0] != "IN0" || rec.AdcUnits()[0] != "pA" {
		t.Fatalf("channel metadata = %q/%q", rec.AdcNames()[0], rec.AdcUnits()[0])
	}

	if got := rec.TagComments(); len(got) != 1 || got[0] != "sweep start" {
		t.Fatalf("TagComments = %v", got)
	}
	if sweeps := rec.TagSweeps(); len(sweeps) != 1 || sweeps[0] != 0 {
		t.Fatalf("TagSweeps = %v, want [0]", sweeps)
	}

	view, err := rec.SetSweep(0, 0)
	if err != nil {
		t.Fatalf("SetSweep: %v", err)
	}
	if len(view.Y) != n {
		t.Fatalf("len(Y) = %d, want %d", len(view.Y), n)
	}
	// InstrumentScale/SignalGain/ProgrammableGain are all 1 in this fixture,
	// so scale is ADCRange/ADCResolution = 10/32768.
	wantScale := 10.0 / 32768.0
	for i, raw := range samples {
		want := float64(raw) * wantScale
		if math.Abs(view.Y[i]-want) > 1e-9 {
			t.Fatalf("Y[%d] = %v, want %v", i, view.Y[i], want)
		}
	}

	if len(view.C) != n {
		t.Fatalf("len(C) = %d, want %d", len(view.C), n)
	}
}
