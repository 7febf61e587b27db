package abf

import (
	"fmt"

	"github.com/axonfmt/abfgo/internal/binstruct"
)

const abf1MaxChannels = 16

// abf1Header holds the flat, fixed-offset ABF1 header fields named in
// spec.md §4.6.
type abf1Header struct {
	Version               float32
	OperationMode         int16
	ActualAcqLength       int32
	ActualEpisodes        int32
	DataSectionPtr        int32
	DataFormat            int16
	NumChannels           int16
	ADCSampleIntervalUS   float32
	NumSamplesPerEpisode  int32
	ADCRange              float32
	ADCResolution         int32

	// Per-physical-channel arrays, indexed 0..15.
	SamplingSeq           [abf1MaxChannels]int16
	PtoLChannelMap        [abf1MaxChannels]int16
	ChannelName           [abf1MaxChannels]string
	ChannelUnits          [abf1MaxChannels]string
	ProgrammableGain      [abf1MaxChannels]float32
	InstrumentScaleFactor [abf1MaxChannels]float32
	SignalGain            [abf1MaxChannels]float32
}

// readABF1Header decodes the fixed-offset ABF1 header (spec.md §4.6). It
// assumes the caller already confirmed the "ABF " signature.
func readABF1Header(r *binstruct.Reader) (*abf1Header, error) {
	h := &abf1Header{}
	var firstErr error
	note := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	f32 := func(off int64) float32 { v, err := r.F32(off); note(err); return v }
	i16 := func(off int64) int16 { v, err := r.I16(off); note(err); return v }
	i32 := func(off int64) int32 { v, err := r.I32(off); note(err); return v }

	h.Version = f32(4)
	h.OperationMode = i16(8)
	h.ActualAcqLength = i32(10)
	h.ActualEpisodes = i32(16)
	h.DataSectionPtr = i32(40)
	h.DataFormat = i16(100)
	h.NumChannels = i16(120)
	h.ADCSampleIntervalUS = f32(122)
	h.NumSamplesPerEpisode = i32(138)
	h.ADCRange = f32(244)
	h.ADCResolution = i32(252)

	for i := 0; i < abf1MaxChannels; i++ {
		h.SamplingSeq[i] = i16(410 + int64(i)*2)
		h.PtoLChannelMap[i] = i16(378 + int64(i)*2)

		nameBytes, err := r.Bytes(442+int64(i)*10, 10)
		note(err)
		h.ChannelName[i] = binstruct.TrimLabel(nameBytes)

		unitsBytes, err := r.Bytes(602+int64(i)*8, 8)
		note(err)
		h.ChannelUnits[i] = binstruct.TrimLabel(unitsBytes)

		h.ProgrammableGain[i] = f32(730 + int64(i)*4)
		h.InstrumentScaleFactor[i] = f32(922 + int64(i)*4)
		h.SignalGain[i] = f32(1050 + int64(i)*4)
	}

	if firstErr != nil {
		return nil, fmt.Errorf("%w: reading ABF1 header: %v", ErrIO, firstErr)
	}

	if h.DataFormat > 1 {
		return nil, fmt.Errorf("%w: data format %d (only int16/float32 supported)", ErrUnsupportedDialect, h.DataFormat)
	}

	return h, nil
}

// channelCount returns the number of physical channels actually sampled:
// the count of SamplingSeq entries that are not -1.
func (h *abf1Header) channelCount() int {
	n := 0
	for _, seq := range h.SamplingSeq {
		if seq != -1 {
			n++
		}
	}
	return n
}
