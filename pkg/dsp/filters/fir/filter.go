package fir

import (
	"github.com/racerxdl/segdsp/dsp"
)

// Filter runs a fixed set of taps over a float stream, carrying sample
// history across calls so consecutive buffers filter as one signal.
type Filter struct {
	*dsp.FloatFirFilter
	taps []float32
}

func NewFilter(taps []float32) *Filter {
	return &Filter{
		FloatFirFilter: dsp.MakeFloatFirFilter(taps),
		taps:           taps,
	}
}

func (f *Filter) Taps() []float32 {
	return f.taps
}

// Delay is the group delay of the filter in samples.
func (f *Filter) Delay() int {
	return (len(f.taps) - 1) / 2
}
