package viz

import (
	"math"
	"math/cmplx"
	"sync"

	"github.com/norasector/emgstream/pkg/dsp/filters/fir"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
)

// Exponential averaging weight applied to each new magnitude spectrum.
const MIX_AVG = 0.10

// FFTPlotter draws the averaged magnitude spectrum of a real signal.
type FFTPlotter struct {
	mu           sync.Mutex
	buf          []float32
	filled       int
	sampleRate   int
	len          int
	fft          *fourier.FFT
	win          []float32
	averagePower []float64
	name         string
	plotOptions  []PlotOptions
}

func NewFFTPlotter(name string, len, sampleRate int) *FFTPlotter {
	return &FFTPlotter{
		buf:          make([]float32, len),
		averagePower: make([]float64, len/2+1),
		len:          len,
		sampleRate:   sampleRate,
		fft:          fourier.NewFFT(len),
		win:          fir.BlackmanWindow(len),
		name:         name,
	}
}

func (p *FFTPlotter) Name() string {
	return p.name
}

// AppendFloat shifts s into the analysis window, dropping the oldest samples.
func (p *FFTPlotter) AppendFloat(s []float32) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(s) >= p.len {
		copy(p.buf, s[len(s)-p.len:])
	} else {
		copy(p.buf, p.buf[len(s):])
		copy(p.buf[p.len-len(s):], s)
	}

	p.filled += len(s)
	if p.filled > p.len {
		p.filled = p.len
	}
}

func (p *FFTPlotter) AddPlotOption(opt PlotOptions) {
	p.mu.Lock()
	p.plotOptions = append(p.plotOptions, opt)
	p.mu.Unlock()
}

// Spectrum updates the running average with the current window and returns
// frequency/dB pairs for every bin.
func (p *FFTPlotter) Spectrum() plotter.XYs {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.spectrum()
}

func (p *FFTPlotter) spectrum() plotter.XYs {
	data := make([]float64, p.len)
	var mean float64
	for _, v := range p.buf {
		mean += float64(v)
	}
	mean /= float64(p.len)
	for i, v := range p.buf {
		data[i] = (float64(v) - mean) * float64(p.win[i])
	}

	coeffs := p.fft.Coefficients(nil, data)

	ret := make(plotter.XYs, len(coeffs))
	for i, c := range coeffs {
		mag := cmplx.Abs(c) / (0.42 * float64(p.len))
		p.averagePower[i] = (1.0-MIX_AVG)*p.averagePower[i] + MIX_AVG*mag

		db := -200.0
		if p.averagePower[i] > 1e-10 {
			db = 20 * math.Log10(p.averagePower[i])
		}
		ret[i] = plotter.XY{X: p.fft.Freq(i) * float64(p.sampleRate), Y: db}
	}
	return ret
}

func (p *FFTPlotter) GetImage() *ImageContainer {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.filled < p.len {
		return nil
	}

	pl := plotWithDefaults()
	pl.Title.Text = p.name
	pl.Y.Label.Text = "Power (dB)"
	pl.X.Label.Text = "Frequency (Hz)"

	for _, opt := range p.plotOptions {
		opt(pl)
	}

	pl.Add(plotter.NewGrid())

	if err := plotutil.AddLines(pl, "spectrum", p.spectrum()); err != nil {
		log.Warn().Err(err).Str("plot", p.name).Msg("error adding series")
		return nil
	}

	img, err := render(p.name, pl)
	if err != nil {
		log.Warn().Err(err).Str("plot", p.name).Msg("error rendering plot")
		return nil
	}
	return img
}
