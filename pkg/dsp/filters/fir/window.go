package fir

import (
	"fmt"
	"math"
)

type WindowFunc func(int) []float32

type WindowType int

const (
	Hamming  WindowType = 0
	Hann     WindowType = 1
	Blackman WindowType = 3
)

func (w WindowType) String() string {
	switch w {
	case Hamming:
		return "hamming"
	case Hann:
		return "hann"
	case Blackman:
		return "blackman"
	default:
		return fmt.Sprintf("window(%d)", int(w))
	}
}

// Stopband attenuation in dB, used to size the filter.
var windowMaxAttenuation = map[WindowType]int{
	Hamming:  53,
	Hann:     44,
	Blackman: 74,
}

var windowFuncs = map[WindowType]WindowFunc{
	Hamming:  HammingWindow,
	Hann:     HannWindow,
	Blackman: BlackmanWindow,
}

// Window returns ntaps coefficients of the given window type.
func Window(winType WindowType, ntaps int) ([]float32, error) {
	f, ok := windowFuncs[winType]
	if !ok {
		return nil, fmt.Errorf("unsupported window %s", winType)
	}
	return f(ntaps), nil
}

// generalized cosine window: c0 - c1 cos(2πn/M) + c2 cos(4πn/M)
func cosineWindow(ntaps int, c0, c1, c2 float64) []float32 {
	ret := make([]float32, ntaps)
	if ntaps == 1 {
		ret[0] = 1
		return ret
	}
	M := float64(ntaps - 1)
	for i := range ret {
		fi := float64(i)
		ret[i] = float32(c0 - c1*math.Cos(2*math.Pi*fi/M) + c2*math.Cos(4*math.Pi*fi/M))
	}
	return ret
}

func BlackmanWindow(ntaps int) []float32 {
	return cosineWindow(ntaps, 0.42, 0.5, 0.08)
}

func HammingWindow(ntaps int) []float32 {
	return cosineWindow(ntaps, 0.54, 0.46, 0)
}

func HannWindow(ntaps int) []float32 {
	return cosineWindow(ntaps, 0.5, 0.5, 0)
}
