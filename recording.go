package abf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/axonfmt/abfgo/internal/binstruct"
)

// Dialect identifies which on-disk ABF layout a Recording was parsed from.
type Dialect int

const (
	DialectABF1 Dialect = iota
	DialectABF2
)

func (d Dialect) String() string {
	if d == DialectABF2 {
		return "ABF2"
	}
	return "ABF1"
}

// OperationMode is the acquisition mode active when the recording was
// captured (spec.md §3).
type OperationMode int16

const (
	ModeVariableLengthEvent OperationMode = 1
	ModeOscilloscope        OperationMode = 2
	ModeGapFree             OperationMode = 3
	ModeHighSpeedOscilloscope OperationMode = 4
	ModeEpisodicStimulation OperationMode = 5
	ModeWaveformFixedLength OperationMode = 6
)

func (m OperationMode) String() string {
	switch m {
	case ModeVariableLengthEvent:
		return "variable-length-event"
	case ModeOscilloscope:
		return "oscilloscope"
	case ModeGapFree:
		return "gap-free"
	case ModeHighSpeedOscilloscope:
		return "high-speed-oscilloscope"
	case ModeEpisodicStimulation:
		return "episodic-stimulation"
	case ModeWaveformFixedLength:
		return "waveform-fixed-length"
	default:
		return fmt.Sprintf("operation-mode-%d", int16(m))
	}
}

// Channel is one ADC input (spec.md §3).
type Channel struct {
	PhysicalIndex    int
	SamplingPosition int // logical position in the interleaved sample stream
	Name             string
	Units            string
	InstrumentScale  float32
	ProgrammableGain float32
	SignalGain       float32
	SignalOffset     float32
	TelegraphGain    float32 // 1 if telegraph disabled
	TelegraphFilter  float32
	LowpassFilter    float32
	HighpassFilter   float32

	scale float32 // precomputed m_k: engineering units per raw sample
}

// DAC is one stimulus output channel (spec.md §3).
type DAC struct {
	Index             int
	Name              string
	Units             string
	HoldingLevel      float32
	WaveformEnabled   bool
	WaveformSource    int16 // 0 disabled, 1 epoch table, 2 DAC file
	InterEpisodeHold  bool  // true: hold last level; false: use HoldingLevel
	MembraneTestEnable bool
	LeakSubtractType  int16
}

// EpochEntry is one row of the epoch table, keyed by (DACIndex, Index)
// (spec.md §3).
type EpochEntry struct {
	DACIndex     int
	Index        int
	Type         EpochType
	InitLevel    float32
	LevelInc     float32
	InitDuration int32
	DurationInc  int32
	PulsePeriod  int32
	PulseWidth   int32
	Digital      uint8 // 8-bit per-epoch digital output bitmask
}

// TagType enumerates the kinds of user comment spec.md §3 assigns to a Tag.
type TagType int16

const (
	TagTime TagType = iota
	TagExternal
	TagVoice
	TagAnnotation
)

// Tag is a user comment inserted during acquisition (spec.md §3).
type Tag struct {
	SampleIndex int64
	Comment     string
	Type        TagType
}

// baselineConfig is Recording's mutable per-instance baseline-subtraction
// setting (spec.md §4.7, design note "mutable baseline state"). It is not
// safe to mutate concurrently with in-flight setSweep calls (spec.md §5).
type baselineConfig struct {
	enabled bool
	t1, t2  float64 // seconds, relative to sweep start
}

// Recording is the root entity produced by Open. All fields are immutable
// once parsed; the sweep cache, baseline config, last-selected sweep and file
// handle are the only mutable state, and are guarded by mu.
type Recording struct {
	Dialect        Dialect
	Signature      string
	VersionMajor   int
	VersionMinor   int
	VersionBuild   int
	VersionRevision int
	GUID           [16]byte // ABF2 only; zero for ABF1

	AcquisitionStart time.Time
	OpMode           OperationMode
	SampleRateHz     float64
	ChannelCount     int
	SweepCount       int
	SweepPointCount  int // samples per sweep per channel
	DataFormat       int // 0 = int16, 1 = float32
	dataByteStart    int64

	Channels []Channel
	DACs     []DAC
	Epochs   []EpochEntry // flattened, ordered by (DACIndex, Index)
	Tags     []Tag

	abfID     string
	protocol  string
	activeDAC int

	path     string
	fileSize int64

	mu         sync.Mutex
	handle     *os.File
	baseline   baselineConfig
	currentSweep int
	sweepCache map[sweepCacheKey]*SweepView
	sfGroup    singleflight.Group

	synch []synchEntry // nil if the file has no SynchArray section
}

type sweepCacheKey struct {
	sweep, channel int
	absoluteTime   bool
	baseline       baselineConfig
}

// Open parses the ABF1 or ABF2 header, section map, and section records at
// path and returns the resulting logical Recording. No partial Recording is
// ever returned: any parse failure returns a nil Recording.
func Open(path string) (*Recording, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrIO, path, err)
	}
	closeOnErr := true
	defer func() {
		if closeOnErr {
			f.Close()
		}
	}()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %v", ErrIO, path, err)
	}

	r := binstruct.NewReader(f, info.Size())

	sig, err := r.Bytes(0, 4)
	if err != nil {
		return nil, fmt.Errorf("%w: reading signature: %v", ErrIO, err)
	}

	var rec *Recording
	switch string(sig) {
	case abf2Signature:
		rec, err = buildFromABF2(r)
	case abf1Signature:
		rec, err = buildFromABF1(r)
	default:
		return nil, fmt.Errorf("%w: unrecognized signature %q", ErrFormat, sig)
	}
	if err != nil {
		return nil, err
	}

	rec.path = path
	rec.fileSize = info.Size()
	rec.handle = f
	rec.sweepCache = make(map[sweepCacheKey]*SweepView)
	rec.abfID = deriveABFID(path)
	closeOnErr = false
	return rec, nil
}

// deriveABFID returns the base filename with its extension and any
// directory path stripped (spec.md §4.7; original_source's generate-docs.py
// strips the full path, not just the extension).
func deriveABFID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// decodeABFDate turns uFileStartDate (YYYYMMDD decimal) and
// uFileStartTimeMS (ms after midnight) into a UTC time.Time. Implemented as
// plain decimal decomposition, not a strptime-style format string — see
// spec.md §9's open question about the ambiguous "%Y%M%d" format in the
// reference implementation.
func decodeABFDate(yyyymmdd uint32, msAfterMidnight uint32) time.Time {
	year := int(yyyymmdd / 10000)
	month := int((yyyymmdd / 100) % 100)
	day := int(yyyymmdd % 100)
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return d.Add(time.Duration(msAfterMidnight) * time.Millisecond)
}

// Close releases the Recording's file handle. A Recording that is dropped
// without Close keeps its handle open until the garbage collector finalizes
// the underlying *os.File; calling Close releases it promptly.
func (rec *Recording) Close() error {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.handle == nil {
		return nil
	}
	err := rec.handle.Close()
	rec.handle = nil
	return err
}

// ABFID is the filename Open was given, without its directory or extension.
func (rec *Recording) ABFID() string { return rec.abfID }

// Protocol is the free-text protocol path recorded at acquisition time
// (StringsSection indexed by uProtocolPathIndex). Empty for ABF1 files,
// which have no Strings section.
func (rec *Recording) Protocol() string { return rec.protocol }

// SweepLengthSec is the duration in seconds of one sweep.
func (rec *Recording) SweepLengthSec() float64 {
	return float64(rec.SweepPointCount) / rec.SampleRateHz
}

// AdcNames returns each channel's display name, in physical-channel order.
func (rec *Recording) AdcNames() []string {
	out := make([]string, len(rec.Channels))
	for i, c := range rec.Channels {
		out[i] = c.Name
	}
	return out
}

// AdcUnits returns each channel's units, in physical-channel order.
func (rec *Recording) AdcUnits() []string {
	out := make([]string, len(rec.Channels))
	for i, c := range rec.Channels {
		out[i] = c.Units
	}
	return out
}

// Baseline configures automatic per-sweep baseline subtraction for
// subsequent SetSweep calls: the mean of y[] over [t1, t2) (seconds,
// relative to sweep start) is subtracted from the whole sweep. Calling it
// with no arguments disables baseline subtraction. This setting is
// per-Recording mutable state and must not be mutated concurrently with
// in-flight SetSweep calls (spec.md §5).
func (rec *Recording) Baseline(t ...float64) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(t) == 0 {
		rec.baseline = baselineConfig{}
		return
	}
	t1, t2 := t[0], rec.SweepLengthSec()
	if len(t) > 1 {
		t2 = t[1]
	}
	rec.baseline = baselineConfig{enabled: true, t1: t1, t2: t2}
}

// TagTimesSec returns each tag's sample-index converted to seconds from
// the start of the whole acquisition stream.
func (rec *Recording) TagTimesSec() []float64 {
	out := make([]float64, len(rec.Tags))
	for i, t := range rec.Tags {
		out[i] = float64(t.SampleIndex) / rec.SampleRateHz
	}
	return out
}

// TagComments returns each tag's comment string.
func (rec *Recording) TagComments() []string {
	out := make([]string, len(rec.Tags))
	for i, t := range rec.Tags {
		out[i] = t.Comment
	}
	return out
}

// TagSweeps returns, for each tag, the sweep index it falls within. When
// the file has a SynchArray section, the mapping walks its per-episode
// sample ranges (original_source's header parser); otherwise it divides
// the flat sample index by samples-per-sweep (spec.md §8).
func (rec *Recording) TagSweeps() []int {
	out := make([]int, len(rec.Tags))
	for i, t := range rec.Tags {
		out[i] = rec.tagToSweep(t.SampleIndex)
	}
	return out
}

func (rec *Recording) tagToSweep(sampleIndex int64) int {
	if len(rec.synch) > 0 {
		cursor := int64(0)
		for i, s := range rec.synch {
			length := int64(s.Length)
			if sampleIndex < cursor+length {
				return i
			}
			cursor += length
		}
		return len(rec.synch) - 1
	}
	perSweep := int64(rec.SweepPointCount) * int64(rec.ChannelCount)
	if perSweep <= 0 {
		return 0
	}
	return int(sampleIndex / perSweep)
}

// DigitalPatternString renders the 8-bit digital output pattern of an
// epoch as a human-readable "01000000"-style string, most-significant bit
// (line 7) first. Mirrors the pretty-printer in pyABF's reference header
// example code.
func (rec *Recording) DigitalPatternString(epoch EpochEntry) string {
	var sb strings.Builder
	for bit := 7; bit >= 0; bit-- {
		if epoch.Digital&(1<<uint(bit)) != 0 {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}
