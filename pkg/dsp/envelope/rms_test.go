package envelope

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRMSConstant(t *testing.T) {
	r := NewRMS(0.1)
	in := make([]float32, 500)
	for i := range in {
		in[i] = -3
	}

	out := r.Work(in)
	assert.Len(t, out, 500)
	assert.InDelta(t, 3.0, out[len(out)-1], 1e-6)
	assert.InDelta(t, 3.0, r.Level(), 1e-6)
	assert.Less(t, out[0], out[10])
}

func TestRMSSine(t *testing.T) {
	r := NewRMS(0.01)
	in := make([]float32, 5000)
	for i := range in {
		in[i] = float32(2 * math.Sin(2*math.Pi*50*float64(i)/500))
	}
	r.Work(in)
	assert.InDelta(t, 2/math.Sqrt2, r.Level(), 0.05)
}

func TestRMSReset(t *testing.T) {
	r := NewRMS(5)
	r.Work([]float32{1, 1, 1})
	assert.Greater(t, r.Level(), 0.0)
	r.Reset()
	assert.Zero(t, r.Level())
	assert.Equal(t, 7, r.PredictOutputSize(7))
}
