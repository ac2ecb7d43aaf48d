package session

import (
	"time"

	"github.com/norasector/emgstream/pkg/session/config"
	"github.com/norasector/emgstream/pkg/session/output"
)

type Options struct {
	SampleRate int
	// SendCommands issues stop, set rate and start on Start and stop on Stop.
	SendCommands  bool
	WaitForTail   bool
	StatsInterval time.Duration
	// SpectrumWindow is the number of recent samples kept for the median
	// frequency estimate.
	SpectrumWindow int
	PlotPoints     int
	Filter         config.Filter
	Outputs        []output.Output
}

// OptionsFromConfig maps a normalized config onto session options. Outputs
// are left for the caller to build.
func OptionsFromConfig(c config.Config) Options {
	return Options{
		SampleRate:     c.SampleRate,
		SendCommands:   c.SendCommands,
		WaitForTail:    c.WaitForTail,
		StatsInterval:  c.StatsInterval,
		SpectrumWindow: c.SpectrumWindow,
		PlotPoints:     c.PlotPoints,
		Filter:         c.Filter,
	}
}
