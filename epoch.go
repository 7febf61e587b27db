package abf

import "math"

// epochsForDAC returns this Recording's epoch table rows for dacIndex, in
// ascending epoch-index order.
func (rec *Recording) epochsForDAC(dacIndex int) []EpochEntry {
	out := make([]EpochEntry, 0, len(rec.Epochs))
	for _, e := range rec.Epochs {
		if e.DACIndex == dacIndex {
			out = append(out, e)
		}
	}
	// Epochs are parsed in file order, which is already (DACIndex, Index);
	// this is a defensive re-sort in case a producer ever emits otherwise.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Index < out[j-1].Index; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// dacHoldingLevel returns dacIndex's configured holding level, or 0 if the
// file has no DAC section (e.g. an ABF1 recording).
func (rec *Recording) dacHoldingLevel(dacIndex int) float32 {
	for _, d := range rec.DACs {
		if d.Index == dacIndex {
			return d.HoldingLevel
		}
	}
	return 0
}

func (rec *Recording) dacInterEpisodeHold(dacIndex int) bool {
	for _, d := range rec.DACs {
		if d.Index == dacIndex {
			return d.InterEpisodeHold
		}
	}
	return false
}

// buildCommandWaveform reconstructs the stimulus waveform for dacIndex over
// sweep sweepIndex, length samples long (spec.md §4.7).
func (rec *Recording) buildCommandWaveform(sweepIndex, dacIndex, length int) []float64 {
	holding := float64(rec.dacHoldingLevel(dacIndex))
	out := make([]float64, length)
	for i := range out {
		out[i] = holding
	}

	epochs := rec.epochsForDAC(dacIndex)
	if len(epochs) == 0 {
		return out
	}

	preOffset := length / 64
	cursor := preOffset
	prevFinalLevel := holding

	for _, e := range epochs {
		duration := int(e.InitDuration) + sweepIndex*int(e.DurationInc)
		if duration < 0 {
			duration = 0
		}
		start := cursor
		end := start + duration
		if start >= length {
			break
		}
		if end > length {
			end = length
		}
		level := float64(e.InitLevel) + float64(sweepIndex)*float64(e.LevelInc)

		switch e.Type {
		case EpochDisabled:
			// no-op; waveform already holds the previous value.
		case EpochStep:
			fillConst(out, start, end, level)
		case EpochRamp:
			fillRamp(out, start, end, prevFinalLevel, level)
		case EpochPulseTrain:
			fillPulseTrain(out, start, end, prevFinalLevel, level, int(e.PulsePeriod), int(e.PulseWidth))
		case EpochTriangle:
			fillTriangle(out, start, end, prevFinalLevel, level, int(e.PulsePeriod))
		case EpochCosine:
			fillCosine(out, start, end, prevFinalLevel, level, int(e.PulsePeriod))
		case EpochBiphasic:
			fillPulseTrain(out, start, end, prevFinalLevel, level, int(e.PulsePeriod), int(e.PulsePeriod)/2)
		}

		if end > start {
			prevFinalLevel = level
		}
		cursor += duration
	}

	tail := holding
	if rec.dacInterEpisodeHold(dacIndex) {
		tail = prevFinalLevel
	}
	if cursor < length {
		fillConst(out, cursor, length, tail)
	}
	return out
}

// buildDigitalWaveform reconstructs the synthesized digital-output level
// for bit over sweep sweepIndex, using the active DAC's epoch timing
// (spec.md §4.7's digital reconstruction has no DAC parameter of its own;
// epoch durations are shared across simultaneously-active DAC channels).
func (rec *Recording) buildDigitalWaveform(sweepIndex, bit, length int) []uint8 {
	out := make([]uint8, length)
	epochs := rec.epochsForDAC(rec.activeDAC)
	if len(epochs) == 0 {
		return out
	}

	preOffset := length / 64
	cursor := preOffset
	for _, e := range epochs {
		duration := int(e.InitDuration) + sweepIndex*int(e.DurationInc)
		if duration < 0 {
			duration = 0
		}
		start := cursor
		end := start + duration
		if start >= length {
			break
		}
		if end > length {
			end = length
		}
		level := uint8((e.Digital >> uint(bit)) & 1)
		for i := start; i < end; i++ {
			out[i] = level
		}
		cursor += duration
	}
	return out
}

func fillConst(out []float64, start, end int, v float64) {
	for i := start; i < end; i++ {
		out[i] = v
	}
}

func fillRamp(out []float64, start, end int, from, to float64) {
	n := end - start
	if n <= 0 {
		return
	}
	for i := 0; i < n; i++ {
		frac := float64(i) / float64(n)
		out[start+i] = from + frac*(to-from)
	}
}

func fillPulseTrain(out []float64, start, end int, baseline, level float64, period, width int) {
	if period <= 0 {
		period = end - start
	}
	if width <= 0 || width > period {
		width = period
	}
	for i := start; i < end; i++ {
		phase := (i - start) % period
		if phase < width {
			out[i] = level
		} else {
			out[i] = baseline
		}
	}
}

func fillTriangle(out []float64, start, end int, baseline, peak float64, period int) {
	if period <= 0 {
		period = end - start
	}
	if period <= 0 {
		return
	}
	for i := start; i < end; i++ {
		phase := float64((i-start)%period) / float64(period)
		var frac float64
		if phase < 0.5 {
			frac = phase * 2
		} else {
			frac = 2 - phase*2
		}
		out[i] = baseline + frac*(peak-baseline)
	}
}

func fillCosine(out []float64, start, end int, baseline, peak float64, period int) {
	if period <= 0 {
		period = end - start
	}
	if period <= 0 {
		return
	}
	for i := start; i < end; i++ {
		phase := float64((i-start)%period) / float64(period)
		shape := (1 - math.Cos(2*math.Pi*phase)) / 2
		out[i] = baseline + shape*(peak-baseline)
	}
}
