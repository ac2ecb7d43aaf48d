package viz

import (
	"sync"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
)

type PlotType int

const (
	PlotTypeDefault PlotType = iota
	PlotTypeScatter
	PlotTypeLines
)

// TimeDomainPlotter draws the most recent samples of one or more traces
// sharing an X axis. Appends and renders may come from different goroutines.
type TimeDomainPlotter struct {
	mu          sync.Mutex
	traces      []string
	bufs        [][]float32
	size        int
	name        string
	sampleRate  int
	plotFunc    func(*plot.Plot, ...interface{}) error
	plotOptions []PlotOptions
}

// NewTimeDomainPlotter keeps size points per trace. With no trace names a
// single unnamed trace is plotted.
func NewTimeDomainPlotter(name string, size int, traces ...string) *TimeDomainPlotter {
	if len(traces) == 0 {
		traces = []string{"f(t)"}
	}
	return &TimeDomainPlotter{
		traces:   traces,
		bufs:     make([][]float32, len(traces)),
		size:     size,
		name:     name,
		plotFunc: plotutil.AddLines,
	}
}

func (t *TimeDomainPlotter) Name() string {
	return t.name
}

// SetSampleRate labels the X axis in seconds instead of sample index.
func (t *TimeDomainPlotter) SetSampleRate(rate int) {
	t.mu.Lock()
	t.sampleRate = rate
	t.mu.Unlock()
}

func (t *TimeDomainPlotter) SetPlotType(tp PlotType) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch tp {
	case PlotTypeScatter:
		t.plotFunc = plotutil.AddScatters
	default:
		t.plotFunc = plotutil.AddLines
	}
}

// AppendFloat appends to the first trace.
func (t *TimeDomainPlotter) AppendFloat(f []float32) {
	t.AppendTrace(0, f)
}

func (t *TimeDomainPlotter) AppendTrace(trace int, f []float32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if trace < 0 || trace >= len(t.bufs) {
		return
	}

	buf := append(t.bufs[trace], f...)
	if len(buf) > t.size {
		buf = append(buf[:0], buf[len(buf)-t.size:]...)
	}
	t.bufs[trace] = buf
}

// Len is the number of buffered points of the first trace.
func (t *TimeDomainPlotter) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.bufs[0])
}

func (t *TimeDomainPlotter) AddPlotOption(opt PlotOptions) {
	t.mu.Lock()
	t.plotOptions = append(t.plotOptions, opt)
	t.mu.Unlock()
}

func (t *TimeDomainPlotter) GetImage() *ImageContainer {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.bufs[0]) < 2 {
		return nil
	}

	p := plotWithDefaults()
	p.Title.Text = t.name
	p.Y.Label.Text = "Amplitude"
	p.X.Label.Text = "sample"
	if t.sampleRate > 0 {
		p.X.Label.Text = "t (s)"
	}

	for _, opt := range t.plotOptions {
		opt(p)
	}

	p.Add(plotter.NewGrid())

	var series []interface{}
	for i, buf := range t.bufs {
		if len(buf) == 0 {
			continue
		}
		series = append(series, t.traces[i], t.points(buf))
	}

	if err := t.plotFunc(p, series...); err != nil {
		log.Warn().Err(err).Str("plot", t.name).Msg("error adding series")
		return nil
	}

	img, err := render(t.name, p)
	if err != nil {
		log.Warn().Err(err).Str("plot", t.name).Msg("error rendering plot")
		return nil
	}
	return img
}

func (t *TimeDomainPlotter) points(buf []float32) plotter.XYs {
	ret := make(plotter.XYs, len(buf))
	for i, v := range buf {
		x := float64(i)
		if t.sampleRate > 0 {
			x /= float64(t.sampleRate)
		}
		ret[i] = plotter.XY{X: x, Y: float64(v)}
	}
	return ret
}
