package fir

import (
	"fmt"
	"math"
)

// NumTaps sizes a windowed-sinc filter for the requested transition width.
// The result is always odd so the filter has a center tap.
func NumTaps(sampleRate, transitionWidth float64, winType WindowType) int {
	ntaps := int(float64(windowMaxAttenuation[winType]) * sampleRate / (22.0 * transitionWidth))
	return ntaps | 1
}

func designTaps(sampleRate, transitionWidth float64, winType WindowType, tap func(i int) float64) ([]float32, int, error) {
	if sampleRate <= 0 || transitionWidth <= 0 {
		return nil, 0, fmt.Errorf("invalid sample rate %.1f or transition width %.1f", sampleRate, transitionWidth)
	}

	ntaps := NumTaps(sampleRate, transitionWidth, winType)
	w, err := Window(winType, ntaps)
	if err != nil {
		return nil, 0, err
	}

	M := (ntaps - 1) / 2
	taps := make([]float32, ntaps)
	for i := -M; i <= M; i++ {
		taps[i+M] = float32(tap(i) * float64(w[i+M]))
	}
	return taps, M, nil
}

// scale normalizes taps to gain at the angular frequency omega.
func scale(taps []float32, M int, gain, omega float64) []float32 {
	response := float64(taps[M])
	for i := 1; i <= M; i++ {
		response += 2 * float64(taps[i+M]) * math.Cos(float64(i)*omega)
	}

	gain /= response
	for i := range taps {
		taps[i] = float32(float64(taps[i]) * gain)
	}
	return taps
}

func MakeLowPass(gain, sampleRate, cutoff, transitionWidth float64, winType WindowType) ([]float32, error) {
	wc := 2 * math.Pi * cutoff / sampleRate
	taps, M, err := designTaps(sampleRate, transitionWidth, winType, func(i int) float64 {
		if i == 0 {
			return wc / math.Pi
		}
		return math.Sin(float64(i)*wc) / (float64(i) * math.Pi)
	})
	if err != nil {
		return nil, err
	}
	return scale(taps, M, gain, 0), nil
}

func MakeHighPass(gain, sampleRate, cutoff, transitionWidth float64, winType WindowType) ([]float32, error) {
	wc := 2 * math.Pi * cutoff / sampleRate
	taps, M, err := designTaps(sampleRate, transitionWidth, winType, func(i int) float64 {
		if i == 0 {
			return 1 - wc/math.Pi
		}
		return -math.Sin(float64(i)*wc) / (float64(i) * math.Pi)
	})
	if err != nil {
		return nil, err
	}
	return scale(taps, M, gain, math.Pi), nil
}

func MakeBandPass(gain, sampleRate, lowCut, highCut, transitionWidth float64, winType WindowType) ([]float32, error) {
	if highCut <= lowCut {
		return nil, fmt.Errorf("band %.1f-%.1f is empty", lowCut, highCut)
	}

	w0 := 2 * math.Pi * lowCut / sampleRate
	w1 := 2 * math.Pi * highCut / sampleRate
	taps, M, err := designTaps(sampleRate, transitionWidth, winType, func(i int) float64 {
		if i == 0 {
			return (w1 - w0) / math.Pi
		}
		fi := float64(i)
		return (math.Sin(fi*w1) - math.Sin(fi*w0)) / (fi * math.Pi)
	})
	if err != nil {
		return nil, err
	}
	return scale(taps, M, gain, (w0+w1)/2), nil
}
