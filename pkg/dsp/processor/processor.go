package processor

import (
	"errors"
	"fmt"
	"time"

	"github.com/norasector/emgstream/pkg/dsp/viz"
)

const defaultVizLength = 500

var ErrNoBlocks = errors.New("processor has no blocks")

// Processor runs a chain of float workers over successive buffers. Each
// stage registers its own plots with the viz server when one is set.
type Processor struct {
	Name        string
	InputName   string
	blocks      []*DSPWorker
	vizServer   *viz.Server
	initialized bool
	inputPlot   *viz.TimeDomainPlotter
}

func NewProcessor(name, inputName string, vizServer *viz.Server) *Processor {
	return &Processor{
		Name:      name,
		InputName: inputName,
		vizServer: vizServer,
	}
}

func (p *Processor) AddBlock(worker *DSPWorker) {
	p.blocks = append(p.blocks, worker)
}

func (p *Processor) Blocks() []*DSPWorker {
	return p.blocks
}

func (p *Processor) Initialize() error {
	if p.initialized {
		return nil
	}
	if len(p.blocks) == 0 {
		return ErrNoBlocks
	}

	for i := 1; i < len(p.blocks); i++ {
		cur, next := p.blocks[i-1], p.blocks[i]
		if cur.OutputRate != next.InputRate {
			return fmt.Errorf("cur: %s next %s rate mismatch (%d %d)", cur.Name, next.Name, cur.OutputRate, next.InputRate)
		}
	}

	if p.vizServer != nil {
		vizIndex := 0
		nextIndexString := func(s string) string {
			vizIndex++
			return fmt.Sprintf("%02d. %s", vizIndex, s)
		}

		first := p.blocks[0]
		p.inputPlot = viz.NewTimeDomainPlotter(nextIndexString(p.InputName), vizLength(first))
		p.inputPlot.SetSampleRate(first.InputRate)
		p.vizServer.Register(p.Name, p.inputPlot)

		for _, block := range p.blocks {
			block.timeDomain = viz.NewTimeDomainPlotter(nextIndexString(block.DisplayName), vizLength(block))
			block.timeDomain.SetSampleRate(block.OutputRate)
			if block.plotType != viz.PlotTypeDefault {
				block.timeDomain.SetPlotType(block.plotType)
			}
			for _, opt := range block.plotOptions {
				block.timeDomain.AddPlotOption(opt)
			}
			p.vizServer.Register(p.Name, block.timeDomain)

			if block.fftSize > 0 {
				block.fft = viz.NewFFTPlotter(nextIndexString(block.DisplayName+" (FFT)"), block.fftSize, block.OutputRate)
				p.vizServer.Register(p.Name, block.fft)
			}
		}
	}

	p.initialized = true
	return nil
}

func vizLength(block *DSPWorker) int {
	if block.vizSize > 0 {
		return block.vizSize
	}
	return defaultVizLength
}

// Process runs input through every block in order and returns the output
// of the last one. The returned slice is reused by the next call. Per-block
// timings in microseconds are added to metrics when it is non-nil.
func (p *Processor) Process(input []float32, metrics map[string]interface{}) ([]float32, error) {
	if err := p.Initialize(); err != nil {
		return nil, err
	}
	if len(input) == 0 {
		return nil, nil
	}

	if p.inputPlot != nil {
		p.inputPlot.AppendFloat(input)
	}

	data := input
	for _, block := range p.blocks {
		start := time.Now()
		data = block.work(data)
		if metrics != nil {
			metrics[fmt.Sprintf("%s_duration", block.Name)] = time.Since(start).Microseconds()
		}
	}
	return data, nil
}
