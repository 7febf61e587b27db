package binstruct

import (
	"bytes"
	"unicode"
)

// TrimLabel trims trailing NUL bytes and whitespace from a fixed-width
// label, preserving any leading spaces (ABF channel names are sometimes
// intentionally left-padded).
func TrimLabel(b []byte) string {
	end := len(b)
	for end > 0 {
		c := b[end-1]
		if c == 0 || unicode.IsSpace(rune(c)) {
			end--
			continue
		}
		break
	}
	return string(b[:end])
}

// StringPool is the label pool produced by ABF2's Strings section: a single
// packed blob split on NUL/whitespace runs once, at construction, indexed by
// 1-based ordinal. Index 0 or an out-of-range index returns "".
type StringPool struct {
	labels []string
}

// NewStringPool splits raw (the Strings section payload, with its leading
// header already skipped past by the caller) into an ordered label list.
func NewStringPool(raw []byte) *StringPool {
	fields := bytes.FieldsFunc(raw, func(r rune) bool {
		return r == 0 || unicode.IsSpace(r)
	})
	labels := make([]string, len(fields))
	for i, f := range fields {
		labels[i] = string(f)
	}
	return &StringPool{labels: labels}
}

// Get returns the label at 1-based ordinal index, or "" if index is 0 or
// out of range.
func (p *StringPool) Get(index int) string {
	if index <= 0 || index > len(p.labels) {
		return ""
	}
	return p.labels[index-1]
}

// Len returns the number of labels in the pool.
func (p *StringPool) Len() int { return len(p.labels) }
