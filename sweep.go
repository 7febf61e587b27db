package abf

import (
	"encoding/binary"
	"fmt"
	"math"
)

// SweepView is one (sweepIndex, channel) slice of a Recording, produced by
// SetSweep (spec.md §3).
type SweepView struct {
	X []float64 // seconds
	Y []float64 // engineering units
	C []float64 // reconstructed command waveform, same length as Y

	LabelX string
	LabelY string
	LabelC string
}

// SetSweep decodes sweepIndex/channel's samples, applies scaling and any
// configured baseline subtraction, and returns the resulting view. absolute
// selects whether X starts at 0 (false, default) or at sweepIndex *
// SweepLengthSec (true).
func (rec *Recording) SetSweep(sweepIndex, channel int, absoluteTime ...bool) (*SweepView, error) {
	abs := false
	if len(absoluteTime) > 0 {
		abs = absoluteTime[0]
	}
	if sweepIndex < 0 || sweepIndex >= rec.SweepCount {
		return nil, fmt.Errorf("%w: sweep %d (have %d sweeps)", ErrOutOfRange, sweepIndex, rec.SweepCount)
	}
	if channel < 0 || channel >= rec.ChannelCount {
		return nil, fmt.Errorf("%w: channel %d (have %d channels)", ErrOutOfRange, channel, rec.ChannelCount)
	}

	rec.mu.Lock()
	rec.currentSweep = sweepIndex
	baseline := rec.baseline
	rec.mu.Unlock()

	key := sweepCacheKey{sweep: sweepIndex, channel: channel, absoluteTime: abs, baseline: baseline}

	rec.mu.Lock()
	if cached, ok := rec.sweepCache[key]; ok {
		rec.mu.Unlock()
		return cached, nil
	}
	rec.mu.Unlock()

	result, err, _ := rec.sfGroup.Do(fmt.Sprintf("%+v", key), func() (any, error) {
		return rec.decodeSweep(sweepIndex, channel, abs, baseline)
	})
	if err != nil {
		return nil, err
	}
	view := result.(*SweepView)

	rec.mu.Lock()
	rec.sweepCache[key] = view
	rec.mu.Unlock()
	return view, nil
}

// SweepD returns the synthesized digital-output level (0 or 1) for bit, for
// the sweep last selected by SetSweep.
func (rec *Recording) SweepD(bit int) ([]uint8, error) {
	if bit < 0 || bit > 7 {
		return nil, fmt.Errorf("%w: digital bit %d", ErrOutOfRange, bit)
	}
	rec.mu.Lock()
	sweepIndex := rec.currentSweep
	rec.mu.Unlock()
	return rec.buildDigitalWaveform(sweepIndex, bit, rec.SweepPointCount), nil
}

// decodeSweep is the Sweep Data Codec (C8): it locates the channel's
// interleaved samples in the data section, decodes them to engineering
// units, and builds the time base and command waveform.
func (rec *Recording) decodeSweep(sweepIndex, channel int, absoluteTime bool, baseline baselineConfig) (*SweepView, error) {
	ch := rec.Channels[channel]
	n := rec.SweepPointCount
	bytesPerSample := 2
	if rec.DataFormat == 1 {
		bytesPerSample = 4
	}
	stride := rec.ChannelCount * bytesPerSample
	sweepByteStart := rec.dataByteStart + int64(sweepIndex)*int64(n)*int64(stride) + int64(channel)*int64(bytesPerSample)

	raw, err := rec.readSpan(sweepByteStart, n, stride, bytesPerSample)
	if err != nil {
		return nil, err
	}

	y := make([]float64, n)
	for i := 0; i < n; i++ {
		var sample float64
		if rec.DataFormat == 1 {
			sample = float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[i*bytesPerSample:])))
		} else {
			sample = float64(int16(binary.LittleEndian.Uint16(raw[i*bytesPerSample:]))) * float64(ch.scale)
		}
		y[i] = sample + float64(ch.SignalOffset)
	}

	if baseline.enabled {
		subtractBaseline(y, rec.SampleRateHz, baseline.t1, baseline.t2)
	}

	x := make([]float64, n)
	secPerSample := 1 / rec.SampleRateHz
	x0 := 0.0
	if absoluteTime {
		x0 = float64(sweepIndex) * rec.SweepLengthSec()
	}
	for i := range x {
		x[i] = x0 + float64(i)*secPerSample
	}

	c := rec.buildCommandWaveform(sweepIndex, rec.activeDAC, n)

	view := &SweepView{
		X:      x,
		Y:      y,
		C:      c,
		LabelX: "seconds",
		LabelY: ch.Units,
		LabelC: dacUnitsFor(rec, rec.activeDAC),
	}
	return view, nil
}

func dacUnitsFor(rec *Recording, dacIndex int) string {
	for _, d := range rec.DACs {
		if d.Index == dacIndex {
			return d.Units
		}
	}
	return ""
}

// readSpan reads the whole sweep's byte span for one channel in a single
// ReadAt call and returns it densely packed (n * bytesPerSample bytes, no
// interleave gaps). One read instead of n per-sample reads, per spec.md
// §4.8's "avoid per-sample syscalls" requirement.
func (rec *Recording) readSpan(off int64, n, stride, bytesPerSample int) ([]byte, error) {
	spanLen := int64(n-1)*int64(stride) + int64(bytesPerSample)
	span, err := rec.readAt(off, int(spanLen))
	if err != nil {
		return nil, err
	}
	out := make([]byte, n*bytesPerSample)
	for i := 0; i < n; i++ {
		pos := i * stride
		copy(out[i*bytesPerSample:], span[pos:pos+bytesPerSample])
	}
	return out, nil
}

// readAt reads n bytes at off from the Recording's open file handle.
// os.File.ReadAt is safe for concurrent use (it is backed by pread), so
// concurrent SetSweep calls on one Recording do not serialize on this read.
func (rec *Recording) readAt(off int64, n int) ([]byte, error) {
	rec.mu.Lock()
	f := rec.handle
	rec.mu.Unlock()
	if f == nil {
		return nil, fmt.Errorf("%w: recording is closed", ErrIO)
	}

	buf := make([]byte, n)
	if _, err := f.ReadAt(buf, off); err != nil {
		return nil, fmt.Errorf("%w: reading %d bytes at offset %d: %v", ErrIO, n, off, err)
	}
	return buf, nil
}

// subtractBaseline subtracts the mean of y over [t1, t2) seconds from the
// whole slice, in place.
func subtractBaseline(y []float64, sampleRateHz, t1, t2 float64) {
	i1 := int(t1 * sampleRateHz)
	i2 := int(t2 * sampleRateHz)
	if i1 < 0 {
		i1 = 0
	}
	if i2 > len(y) {
		i2 = len(y)
	}
	if i2 <= i1 {
		return
	}
	var sum float64
	for _, v := range y[i1:i2] {
		sum += v
	}
	mean := sum / float64(i2-i1)
	for i := range y {
		y[i] -= mean
	}
}

