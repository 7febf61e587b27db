// Package abf reads and writes Axon Binary Format (ABF) electrophysiology
// recordings: ABF1's flat fixed-offset header and ABF2's section-map
// dialect, with a uniform logical view (channels, scaling, sweeps,
// stimulus waveform, digital outputs) over either one.
package abf
