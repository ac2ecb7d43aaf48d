package sample

import "github.com/norasector/emgstream/pkg/protocol/frame"

// Scale is the fixed divisor applied to every int16 delta.
const Scale = 3.1457

// Reconstruct expands a decoded sample payload into absolute samples: the
// base sample followed by one running sum per delta.
func Reconstruct(p frame.SamplePayload) []float32 {
	return AppendReconstructed(make([]float32, 0, 1+len(p.Deltas)), p)
}

// AppendReconstructed is Reconstruct appending into dst.
func AppendReconstructed(dst []float32, p frame.SamplePayload) []float32 {
	acc := p.Base
	dst = append(dst, acc)
	for _, d := range p.Deltas {
		acc += float32(d) / Scale
		dst = append(dst, acc)
	}
	return dst
}
