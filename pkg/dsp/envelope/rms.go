package envelope

import (
	"math"
)

// RMS tracks the exponentially weighted root-mean-square amplitude of a
// signal, the usual activation envelope for surface EMG.
type RMS struct {
	alpha   float64
	beta    float64
	average float64
}

// NewRMS returns an envelope follower. alpha in (0, 1] is the weight of the
// newest squared sample; smaller values smooth more.
func NewRMS(alpha float64) *RMS {
	if alpha <= 0 || alpha > 1 {
		alpha = 0.01
	}
	return &RMS{
		alpha: alpha,
		beta:  1 - alpha,
	}
}

func (r *RMS) PredictOutputSize(inputSize int) int {
	return inputSize
}

func (r *RMS) WorkBuffer(input, output []float32) int {
	for i := 0; i < len(input); i++ {
		cur := float64(input[i])
		r.average = r.beta*r.average + r.alpha*cur*cur
		output[i] = float32(math.Sqrt(r.average))
	}
	return len(input)
}

func (r *RMS) Work(data []float32) []float32 {
	ret := make([]float32, len(data))
	r.WorkBuffer(data, ret)
	return ret
}

// Level is the current envelope value.
func (r *RMS) Level() float64 {
	return math.Sqrt(r.average)
}

func (r *RMS) Reset() {
	r.average = 0
}
