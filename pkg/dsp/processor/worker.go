package processor

import "github.com/norasector/emgstream/pkg/dsp/viz"

// FFWorker transforms a float stream. WorkBuffer writes into output and
// returns how many samples it produced; PredictOutputSize bounds that count.
type FFWorker interface {
	WorkBuffer([]float32, []float32) int
	PredictOutputSize(int) int
}

type DSPWorker struct {
	Name        string
	DisplayName string
	InputRate   int
	OutputRate  int

	worker       FFWorker
	outputBuffer []float32

	timeDomain  *viz.TimeDomainPlotter
	fft         *viz.FFTPlotter
	vizSize     int
	fftSize     int
	plotType    viz.PlotType
	plotOptions []viz.PlotOptions
}

type DSPWorkerOption func(r *DSPWorker)

func WithPlotOptions(opts ...viz.PlotOptions) DSPWorkerOption {
	return func(r *DSPWorker) {
		r.plotOptions = append(r.plotOptions, opts...)
	}
}

func WithVizLength(length int) DSPWorkerOption {
	return func(r *DSPWorker) {
		r.vizSize = length
	}
}

func WithPlotType(plotType viz.PlotType) DSPWorkerOption {
	return func(r *DSPWorker) {
		r.plotType = plotType
	}
}

// WithFFTPlot also plots the spectrum of the stage output over size points.
func WithFFTPlot(size int) DSPWorkerOption {
	return func(r *DSPWorker) {
		r.fftSize = size
	}
}

func NewDSPWorker(name, displayName string, inputRate, outputRate int, worker FFWorker, opts ...DSPWorkerOption) *DSPWorker {
	ret := &DSPWorker{
		Name:        name,
		DisplayName: displayName,
		InputRate:   inputRate,
		OutputRate:  outputRate,
		worker:      worker,
	}

	for _, opt := range opts {
		opt(ret)
	}

	return ret
}

func (w *DSPWorker) work(input []float32) []float32 {
	need := w.worker.PredictOutputSize(len(input))
	if cap(w.outputBuffer) < need {
		w.outputBuffer = make([]float32, need*2)
	}
	out := w.outputBuffer[:cap(w.outputBuffer)]

	length := w.worker.WorkBuffer(input, out)
	out = out[:length]

	if w.timeDomain != nil {
		w.timeDomain.AppendFloat(out)
	}
	if w.fft != nil {
		w.fft.AppendFloat(out)
	}
	return out
}
