package abf

import "testing"

func TestABF1ChannelCount(t *testing.T) {
	h := &abf1Header{}
	for i := range h.SamplingSeq {
		h.SamplingSeq[i] = -1
	}
	h.SamplingSeq[0] = 0
	h.SamplingSeq[3] = 1
	if got := h.channelCount(); got != 2 {
		t.Errorf("channelCount() = %d, want 2", got)
	}
}

func TestABF1ChannelCountNone(t *testing.T) {
	h := &abf1Header{}
	for i := range h.SamplingSeq {
		h.SamplingSeq[i] = -1
	}
	if got := h.channelCount(); got != 0 {
		t.Errorf("channelCount() = %d, want 0", got)
	}
}
