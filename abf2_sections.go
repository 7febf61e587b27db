package abf

import (
	"fmt"

	"github.com/axonfmt/abfgo/internal/binstruct"
)

// Field layouts below mirror the ABF2 section definitions bit-for-bit
// (field name, order, and format code) as recorded in the pyABF reference
// header reader; every field is read in declaration order even though only
// a subset is promoted to a named Go struct, because later fields' byte
// offsets depend on every field before them having been consumed.

var protocolFields = []binstruct.Field{
	{"nOperationMode", "h"}, {"fADCSequenceInterval", "f"}, {"bEnableFileCompression", "b"}, {"sUnused1", "3s"},
	{"uFileCompressionRatio", "I"}, {"fSynchTimeUnit", "f"}, {"fSecondsPerRun", "f"}, {"lNumSamplesPerEpisode", "i"},
	{"lPreTriggerSamples", "i"}, {"lEpisodesPerRun", "i"}, {"lRunsPerTrial", "i"}, {"lNumberOfTrials", "i"},
	{"nAveragingMode", "h"}, {"nUndoRunCount", "h"}, {"nFirstEpisodeInRun", "h"}, {"fTriggerThreshold", "f"},
	{"nTriggerSource", "h"}, {"nTriggerAction", "h"}, {"nTriggerPolarity", "h"}, {"fScopeOutputInterval", "f"},
	{"fEpisodeStartToStart", "f"}, {"fRunStartToStart", "f"}, {"lAverageCount", "i"}, {"fTrialStartToStart", "f"},
	{"nAutoTriggerStrategy", "h"}, {"fFirstRunDelayS", "f"}, {"nChannelStatsStrategy", "h"}, {"lSamplesPerTrace", "i"},
	{"lStartDisplayNum", "i"}, {"lFinishDisplayNum", "i"}, {"nShowPNRawData", "h"}, {"fStatisticsPeriod", "f"},
	{"lStatisticsMeasurements", "i"}, {"nStatisticsSaveStrategy", "h"}, {"fADCRange", "f"}, {"fDACRange", "f"},
	{"lADCResolution", "i"}, {"lDACResolution", "i"}, {"nExperimentType", "h"}, {"nManualInfoStrategy", "h"},
	{"nCommentsEnable", "h"}, {"lFileCommentIndex", "i"}, {"nAutoAnalyseEnable", "h"}, {"nSignalType", "h"},
	{"nDigitalEnable", "h"}, {"nActiveDACChannel", "h"}, {"nDigitalHolding", "h"}, {"nDigitalInterEpisode", "h"},
	{"nDigitalDACChannel", "h"}, {"nDigitalTrainActiveLogic", "h"}, {"nStatsEnable", "h"}, {"nStatisticsClearStrategy", "h"},
	{"nLevelHysteresis", "h"}, {"lTimeHysteresis", "i"}, {"nAllowExternalTags", "h"}, {"nAverageAlgorithm", "h"},
	{"fAverageWeighting", "f"}, {"nUndoPromptStrategy", "h"}, {"nTrialTriggerSource", "h"}, {"nStatisticsDisplayStrategy", "h"},
	{"nExternalTagType", "h"}, {"nScopeTriggerOut", "h"}, {"nLTPType", "h"}, {"nAlternateDACOutputState", "h"},
	{"nAlternateDigitalOutputState", "h"}, {"fCellID", "3f"}, {"nDigitizerADCs", "h"}, {"nDigitizerDACs", "h"},
	{"nDigitizerTotalDigitalOuts", "h"}, {"nDigitizerSynchDigitalOuts", "h"}, {"nDigitizerType", "h"},
}

var adcFields = []binstruct.Field{
	{"nADCNum", "h"}, {"nTelegraphEnable", "h"}, {"nTelegraphInstrument", "h"}, {"fTelegraphAdditGain", "f"},
	{"fTelegraphFilter", "f"}, {"fTelegraphMembraneCap", "f"}, {"nTelegraphMode", "h"}, {"fTelegraphAccessResistance", "f"},
	{"nADCPtoLChannelMap", "h"}, {"nADCSamplingSeq", "h"}, {"fADCProgrammableGain", "f"}, {"fADCDisplayAmplification", "f"},
	{"fADCDisplayOffset", "f"}, {"fInstrumentScaleFactor", "f"}, {"fInstrumentOffset", "f"}, {"fSignalGain", "f"},
	{"fSignalOffset", "f"}, {"fSignalLowpassFilter", "f"}, {"fSignalHighpassFilter", "f"}, {"nLowpassFilterType", "b"},
	{"nHighpassFilterType", "b"}, {"fPostProcessLowpassFilter", "f"}, {"nPostProcessLowpassFilterType", "1s"},
	{"bEnabledDuringPN", "b"}, {"nStatsChannelPolarity", "h"}, {"lADCChannelNameIndex", "i"}, {"lADCUnitsIndex", "i"},
}

var dacFields = []binstruct.Field{
	{"nDACNum", "h"}, {"nTelegraphDACScaleFactorEnable", "h"}, {"fInstrumentHoldingLevel", "f"}, {"fDACScaleFactor", "f"},
	{"fDACHoldingLevel", "f"}, {"fDACCalibrationFactor", "f"}, {"fDACCalibrationOffset", "f"}, {"lDACChannelNameIndex", "i"},
	{"lDACChannelUnitsIndex", "i"}, {"lDACFilePtr", "i"}, {"lDACFileNumEpisodes", "i"}, {"nWaveformEnable", "h"},
	{"nWaveformSource", "h"}, {"nInterEpisodeLevel", "h"}, {"fDACFileScale", "f"}, {"fDACFileOffset", "f"},
	{"lDACFileEpisodeNum", "i"}, {"nDACFileADCNum", "h"}, {"nConditEnable", "h"}, {"lConditNumPulses", "i"},
	{"fBaselineDuration", "f"}, {"fBaselineLevel", "f"}, {"fStepDuration", "f"}, {"fStepLevel", "f"},
	{"fPostTrainPeriod", "f"}, {"fPostTrainLevel", "f"}, {"nMembTestEnable", "h"}, {"nLeakSubtractType", "h"},
	{"nPNPolarity", "h"}, {"fPNHoldingLevel", "f"}, {"nPNNumADCChannels", "h"}, {"nPNPosition", "h"},
	{"nPNNumPulses", "h"}, {"fPNSettlingTime", "f"}, {"fPNInterpulse", "f"}, {"nLTPUsageOfDAC", "h"},
	{"nLTPPresynapticPulses", "h"}, {"lDACFilePathIndex", "i"}, {"fMembTestPreSettlingTimeMS", "f"},
	{"fMembTestPostSettlingTimeMS", "f"}, {"nLeakSubtractADCIndex", "h"},
}

var epochPerDACFields = []binstruct.Field{
	{"nEpochNum", "h"}, {"nDACNum", "h"}, {"nEpochType", "h"}, {"fEpochInitLevel", "f"}, {"fEpochLevelInc", "f"},
	{"lEpochInitDuration", "i"}, {"lEpochDurationInc", "i"}, {"lEpochPulsePeriod", "i"}, {"lEpochPulseWidth", "i"},
}

var epochDigitalFields = []binstruct.Field{
	{"nEpochNum", "h"}, {"nEpochDigitalOutput", "h"},
}

var tagFields = []binstruct.Field{
	{"lTagTime", "i"}, {"sComment", "56s"}, {"nTagType", "h"}, {"nVoiceTagNumberOrAnnotationIndex", "h"},
}

var synchArrayFields = []binstruct.Field{
	{"lStart", "i"}, {"lLength", "i"},
}

// EpochType enumerates the stimulus waveform shapes spec.md §3 assigns to
// an EpochEntry.
type EpochType int16

const (
	EpochDisabled EpochType = iota
	EpochStep
	EpochRamp
	EpochPulseTrain
	EpochTriangle
	EpochCosine
	EpochBiphasic
)

// protocolRecord is the decoded ProtocolSection entry (one per file).
type protocolRecord struct {
	OperationMode         int16
	ADCSequenceIntervalUS float32
	SamplesPerEpisode     int32
	EpisodesPerRun        int32
	PreTriggerSamples     int32
	ADCRange              float32
	DACRange              float32
	ADCResolution         int32
	DACResolution         int32
	ExperimentType        int16
	DigitalEnable         int16
	ActiveDACChannel      int16
	DigitalInterEpisode   int16
	DigitalHolding        int16
	DigitalDACChannel     int16
	DigitalTrainActive    int16
	CommentsEnable        int16
}

// adcRecord is one ADCSection entry, one per physical ADC channel.
type adcRecord struct {
	PhysicalIndex         int16
	TelegraphEnable       int16
	TelegraphAdditGain    float32
	TelegraphFilter       float32
	TelegraphMode         int16
	ADCPtoLChannelMap     int16
	SamplingSeq           int16
	ProgrammableGain      float32
	DisplayAmplification  float32
	DisplayOffset         float32
	InstrumentScaleFactor float32
	InstrumentOffset      float32
	SignalGain            float32
	SignalOffset          float32
	LowpassFilter         float32
	HighpassFilter        float32
	ChannelNameIndex      int32
	UnitsIndex            int32
}

// dacRecord is one DACSection entry, one per DAC channel.
type dacRecord struct {
	Index              int16
	HoldingLevel       float32
	ScaleFactor        float32
	ChannelNameIndex   int32
	ChannelUnitsIndex  int32
	WaveformEnable     int16
	WaveformSource     int16
	InterEpisodeLevel  int16
	DACFilePtr         int32
	DACFileNumEpisodes int32
	MembTestEnable     int16
	LeakSubtractType   int16
	PNPolarity         int16
	PNHoldingLevel     float32
	PNNumADCChannels   int16
	PNPosition         int16
	PNNumPulses        int16
	PNSettlingTime     float32
	PNInterpulse       float32
}

// epochPerDACRecord is one EpochPerDACSection row, keyed by (DACIndex,
// EpochIndex).
type epochPerDACRecord struct {
	EpochIndex       int16
	DACIndex         int16
	Type             EpochType
	InitLevel        float32
	LevelInc         float32
	InitDuration     int32
	DurationInc      int32
	PulsePeriod      int32
	PulseWidth       int32
}

// epochDigitalRecord is one EpochSection row giving the 8-bit digital
// output pattern for that epoch index.
type epochDigitalRecord struct {
	EpochIndex      int16
	DigitalOutput   int16
}

// tagRecord is one TagSection row.
type tagRecord struct {
	SampleIndex int32
	Comment     string
	Type        int16
}

// synchEntry is one SynchArraySection row: (startSample, length).
type synchEntry struct {
	StartSample int32
	Length      int32
}

func parseProtocolSection(r *binstruct.Reader, t binstruct.SectionTable) (*protocolRecord, error) {
	recs, err := binstruct.ReadSection(r, protocolFields, t)
	if err != nil {
		return nil, fmt.Errorf("protocol section: %w", err)
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%w: protocol section is empty", ErrFormat)
	}
	rec := recs[0]
	return &protocolRecord{
		OperationMode:         int16(rec["nOperationMode"].Int()),
		ADCSequenceIntervalUS: rec["fADCSequenceInterval"].Float(),
		SamplesPerEpisode:     int32(rec["lNumSamplesPerEpisode"].Int()),
		EpisodesPerRun:        int32(rec["lEpisodesPerRun"].Int()),
		PreTriggerSamples:     int32(rec["lPreTriggerSamples"].Int()),
		ADCRange:              rec["fADCRange"].Float(),
		DACRange:              rec["fDACRange"].Float(),
		ADCResolution:         int32(rec["lADCResolution"].Int()),
		DACResolution:         int32(rec["lDACResolution"].Int()),
		ExperimentType:        int16(rec["nExperimentType"].Int()),
		DigitalEnable:         int16(rec["nDigitalEnable"].Int()),
		ActiveDACChannel:      int16(rec["nActiveDACChannel"].Int()),
		DigitalInterEpisode:   int16(rec["nDigitalInterEpisode"].Int()),
		DigitalHolding:        int16(rec["nDigitalHolding"].Int()),
		DigitalDACChannel:     int16(rec["nDigitalDACChannel"].Int()),
		DigitalTrainActive:    int16(rec["nDigitalTrainActiveLogic"].Int()),
		CommentsEnable:        int16(rec["nCommentsEnable"].Int()),
	}, nil
}

func parseADCSection(r *binstruct.Reader, t binstruct.SectionTable) ([]adcRecord, error) {
	recs, err := binstruct.ReadSection(r, adcFields, t)
	if err != nil {
		return nil, fmt.Errorf("ADC section: %w", err)
	}
	out := make([]adcRecord, len(recs))
	for i, rec := range recs {
		out[i] = adcRecord{
			PhysicalIndex:         int16(rec["nADCNum"].Int()),
			TelegraphEnable:       int16(rec["nTelegraphEnable"].Int()),
			TelegraphAdditGain:    rec["fTelegraphAdditGain"].Float(),
			TelegraphFilter:       rec["fTelegraphFilter"].Float(),
			TelegraphMode:         int16(rec["nTelegraphMode"].Int()),
			ADCPtoLChannelMap:     int16(rec["nADCPtoLChannelMap"].Int()),
			SamplingSeq:           int16(rec["nADCSamplingSeq"].Int()),
			ProgrammableGain:      rec["fADCProgrammableGain"].Float(),
			DisplayAmplification:  rec["fADCDisplayAmplification"].Float(),
			DisplayOffset:         rec["fADCDisplayOffset"].Float(),
			InstrumentScaleFactor: rec["fInstrumentScaleFactor"].Float(),
			InstrumentOffset:      rec["fInstrumentOffset"].Float(),
			SignalGain:            rec["fSignalGain"].Float(),
			SignalOffset:          rec["fSignalOffset"].Float(),
			LowpassFilter:         rec["fSignalLowpassFilter"].Float(),
			HighpassFilter:        rec["fSignalHighpassFilter"].Float(),
			ChannelNameIndex:      int32(rec["lADCChannelNameIndex"].Int()),
			UnitsIndex:            int32(rec["lADCUnitsIndex"].Int()),
		}
	}
	return out, nil
}

func parseDACSection(r *binstruct.Reader, t binstruct.SectionTable) ([]dacRecord, error) {
	recs, err := binstruct.ReadSection(r, dacFields, t)
	if err != nil {
		return nil, fmt.Errorf("DAC section: %w", err)
	}
	out := make([]dacRecord, len(recs))
	for i, rec := range recs {
		out[i] = dacRecord{
			Index:              int16(rec["nDACNum"].Int()),
			HoldingLevel:       rec["fDACHoldingLevel"].Float(),
			ScaleFactor:        rec["fDACScaleFactor"].Float(),
			ChannelNameIndex:   int32(rec["lDACChannelNameIndex"].Int()),
			ChannelUnitsIndex:  int32(rec["lDACChannelUnitsIndex"].Int()),
			WaveformEnable:     int16(rec["nWaveformEnable"].Int()),
			WaveformSource:     int16(rec["nWaveformSource"].Int()),
			InterEpisodeLevel:  int16(rec["nInterEpisodeLevel"].Int()),
			DACFilePtr:         int32(rec["lDACFilePtr"].Int()),
			DACFileNumEpisodes: int32(rec["lDACFileNumEpisodes"].Int()),
			MembTestEnable:     int16(rec["nMembTestEnable"].Int()),
			LeakSubtractType:   int16(rec["nLeakSubtractType"].Int()),
			PNPolarity:         int16(rec["nPNPolarity"].Int()),
			PNHoldingLevel:     rec["fPNHoldingLevel"].Float(),
			PNNumADCChannels:   int16(rec["nPNNumADCChannels"].Int()),
			PNPosition:         int16(rec["nPNPosition"].Int()),
			PNNumPulses:        int16(rec["nPNNumPulses"].Int()),
			PNSettlingTime:     rec["fPNSettlingTime"].Float(),
			PNInterpulse:       rec["fPNInterpulse"].Float(),
		}
	}
	return out, nil
}

func parseEpochPerDACSection(r *binstruct.Reader, t binstruct.SectionTable) ([]epochPerDACRecord, error) {
	recs, err := binstruct.ReadSection(r, epochPerDACFields, t)
	if err != nil {
		return nil, fmt.Errorf("epoch-per-DAC section: %w", err)
	}
	out := make([]epochPerDACRecord, len(recs))
	for i, rec := range recs {
		out[i] = epochPerDACRecord{
			EpochIndex:   int16(rec["nEpochNum"].Int()),
			DACIndex:     int16(rec["nDACNum"].Int()),
			Type:         EpochType(rec["nEpochType"].Int()),
			InitLevel:    rec["fEpochInitLevel"].Float(),
			LevelInc:     rec["fEpochLevelInc"].Float(),
			InitDuration: int32(rec["lEpochInitDuration"].Int()),
			DurationInc:  int32(rec["lEpochDurationInc"].Int()),
			PulsePeriod:  int32(rec["lEpochPulsePeriod"].Int()),
			PulseWidth:   int32(rec["lEpochPulseWidth"].Int()),
		}
	}
	return out, nil
}

func parseEpochDigitalSection(r *binstruct.Reader, t binstruct.SectionTable) ([]epochDigitalRecord, error) {
	recs, err := binstruct.ReadSection(r, epochDigitalFields, t)
	if err != nil {
		return nil, fmt.Errorf("epoch digital section: %w", err)
	}
	out := make([]epochDigitalRecord, len(recs))
	for i, rec := range recs {
		out[i] = epochDigitalRecord{
			EpochIndex:    int16(rec["nEpochNum"].Int()),
			DigitalOutput: int16(rec["nEpochDigitalOutput"].Int()),
		}
	}
	return out, nil
}

func parseTagSection(r *binstruct.Reader, t binstruct.SectionTable) ([]tagRecord, error) {
	recs, err := binstruct.ReadSection(r, tagFields, t)
	if err != nil {
		return nil, fmt.Errorf("tag section: %w", err)
	}
	out := make([]tagRecord, len(recs))
	for i, rec := range recs {
		out[i] = tagRecord{
			SampleIndex: int32(rec["lTagTime"].Int()),
			Comment:     rec["sComment"].Str,
			Type:        int16(rec["nTagType"].Int()),
		}
	}
	return out, nil
}

func parseSynchArraySection(r *binstruct.Reader, t binstruct.SectionTable) ([]synchEntry, error) {
	recs, err := binstruct.ReadSection(r, synchArrayFields, t)
	if err != nil {
		return nil, fmt.Errorf("synch array section: %w", err)
	}
	out := make([]synchEntry, len(recs))
	for i, rec := range recs {
		out[i] = synchEntry{
			StartSample: int32(rec["lStart"].Int()),
			Length:      int32(rec["lLength"].Int()),
		}
	}
	return out, nil
}

// parseStringsSection splits the raw Strings-section payload into a
// StringPool. The section's first record begins with a short header (a
// format marker) that is skipped by finding the first NUL and splitting
// only the remainder, per spec.md §4.5.
func parseStringsSection(r *binstruct.Reader, t binstruct.SectionTable) (*binstruct.StringPool, error) {
	if t.EntryCount == 0 {
		return binstruct.NewStringPool(nil), nil
	}
	base := int64(t.FirstBlock) * binstruct.BlockSize
	size := t.EntryCount * int64(t.BytesPerEntry)
	raw, err := r.Bytes(base, int(size))
	if err != nil {
		return nil, fmt.Errorf("strings section: %w", err)
	}
	nul := -1
	for i, b := range raw {
		if b == 0 {
			nul = i
			break
		}
	}
	if nul < 0 || nul+1 >= len(raw) {
		return binstruct.NewStringPool(nil), nil
	}
	return binstruct.NewStringPool(raw[nul+1:]), nil
}

// dataSectionInfo holds DataSection's three meaningful fields: first
// block, bytes per sample, and total sample count across all channels.
type dataSectionInfo struct {
	FirstBlock     uint32
	BytesPerSample int
	TotalSamples   int64
}

func dataSectionFromTable(t binstruct.SectionTable) dataSectionInfo {
	return dataSectionInfo{
		FirstBlock:     t.FirstBlock,
		BytesPerSample: int(t.BytesPerEntry),
		TotalSamples:   t.EntryCount,
	}
}
