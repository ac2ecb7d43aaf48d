package spectrum

import (
	"errors"
	"fmt"

	"github.com/mjibson/go-dsp/spectral"
	"github.com/mjibson/go-dsp/window"
)

var ErrNotEnoughSamples = errors.New("not enough samples for spectrum")

// Summary describes the power distribution of a signal window.
type Summary struct {
	MedianFrequency float64
	MeanFrequency   float64
	PeakFrequency   float64
	TotalPower      float64
}

// PowerSpectrum estimates the one-sided power spectral density with Welch's
// method: Hann-windowed segments of nfft samples, half overlapping.
func PowerSpectrum(samples []float32, sampleRate, nfft int) (pxx, freqs []float64, err error) {
	if sampleRate <= 0 {
		return nil, nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	if nfft <= 0 || len(samples) < nfft {
		return nil, nil, fmt.Errorf("%w: have %d need %d", ErrNotEnoughSamples, len(samples), nfft)
	}

	x := make([]float64, len(samples))
	var mean float64
	for i, v := range samples {
		x[i] = float64(v)
		mean += x[i]
	}
	// remove the electrode offset so it does not dominate bin 0
	mean /= float64(len(x))
	for i := range x {
		x[i] -= mean
	}

	pxx, freqs = spectral.Pwelch(x, float64(sampleRate), &spectral.PwelchOptions{
		NFFT:     nfft,
		Noverlap: nfft / 2,
		Window:   window.Hann,
	})
	return pxx, freqs, nil
}

// Summarize computes median, mean and peak frequency over the last nfft
// aligned window of samples.
func Summarize(samples []float32, sampleRate, nfft int) (Summary, error) {
	pxx, freqs, err := PowerSpectrum(samples, sampleRate, nfft)
	if err != nil {
		return Summary{}, err
	}

	var s Summary
	var weighted, peak float64
	for i, p := range pxx {
		s.TotalPower += p
		weighted += p * freqs[i]
		if p > peak {
			peak = p
			s.PeakFrequency = freqs[i]
		}
	}
	if s.TotalPower == 0 {
		return s, nil
	}
	s.MeanFrequency = weighted / s.TotalPower

	half := s.TotalPower / 2
	var cum float64
	for i, p := range pxx {
		cum += p
		if cum >= half {
			s.MedianFrequency = freqs[i]
			break
		}
	}
	return s, nil
}

// MedianFrequency is the frequency splitting the spectrum into two halves of
// equal power, the standard EMG fatigue indicator.
func MedianFrequency(samples []float32, sampleRate, nfft int) (float64, error) {
	s, err := Summarize(samples, sampleRate, nfft)
	return s.MedianFrequency, err
}
