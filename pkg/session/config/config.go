package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/norasector/emgstream/pkg/protocol/command"
	"github.com/norasector/emgstream/pkg/session/device/serialport"
	"gopkg.in/yaml.v2"
)

const (
	DeviceSerial = "serial"
	DeviceFile   = "file"

	FilterNone     = "none"
	FilterHighPass = "highpass"
	FilterBandPass = "bandpass"
)

var (
	ErrNoSource      = errors.New("no byte source configured")
	ErrUnknownDevice = errors.New("unknown device")
	ErrInvalidFilter = errors.New("invalid filter")
)

type Config struct {
	Device           string                 `yaml:"device"`
	Port             string                 `yaml:"port"`
	Serial           serialport.PortOptions `yaml:"serial"`
	PlaybackLocation string                 `yaml:"playback_location"`
	PlaybackDelay    time.Duration          `yaml:"playback_delay"`
	RecordLocation   string                 `yaml:"record_location"`

	SampleRate   int  `yaml:"sample_rate"`
	SendCommands bool `yaml:"send_commands"`
	WaitForTail  bool `yaml:"wait_for_tail"`

	IdleSleep     time.Duration `yaml:"idle_sleep"`
	StatsInterval time.Duration `yaml:"stats_interval"`
	Duration      time.Duration `yaml:"duration"`

	Filter Filter `yaml:"filter"`

	CSVLocation        string              `yaml:"csv_location"`
	// RawLocation receives little endian float32 samples; "-" is stdout.
	RawLocation        string              `yaml:"raw_location"`
	OutputDestinations []OutputDestination `yaml:"output_destinations"`
	PlotPoints         int                 `yaml:"plot_points"`
	SpectrumWindow     int                 `yaml:"spectrum_window"`

	VizServer struct {
		Enabled        bool          `yaml:"enabled"`
		Port           int           `yaml:"port"`
		UpdateInterval time.Duration `yaml:"update_interval"`
	} `yaml:"viz_server"`

	InfluxDB struct {
		Host         string `yaml:"host"`
		Token        string `yaml:"token"`
		Organization string `yaml:"organization"`
		Bucket       string `yaml:"bucket"`
	} `yaml:"influxdb"`
}

type OutputDestination struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Filter describes the FIR chain applied to the reconstructed signal for
// display and envelope tracking. The raw samples are never altered.
type Filter struct {
	Type          string  `yaml:"type"`
	LowCutoff     float64 `yaml:"low_cutoff"`
	HighCutoff    float64 `yaml:"high_cutoff"`
	TransitionBW  float64 `yaml:"transition_bw"`
	EnvelopeAlpha float64 `yaml:"envelope_alpha"`
}

// Default mirrors the capture setup of the bench prototype: a 500 Hz
// stream, 30 Hz high-pass for display, a 500 point plot window.
func Default() Config {
	c := Config{
		Device:         DeviceSerial,
		Port:           serialport.AutoPort,
		SampleRate:     500,
		SendCommands:   true,
		PlaybackDelay:  10 * time.Millisecond,
		IdleSleep:      time.Millisecond,
		StatsInterval:  time.Second,
		PlotPoints:     500,
		SpectrumWindow: 1024,
		Filter: Filter{
			Type:          FilterHighPass,
			LowCutoff:     30,
			TransitionBW:  10,
			EnvelopeAlpha: 0.01,
		},
	}
	c.VizServer.Port = 8080
	c.VizServer.UpdateInterval = 500 * time.Millisecond
	return c
}

// Load reads a YAML file over Default and normalizes the result.
func Load(path string) (Config, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(contents)
}

func Parse(contents []byte) (Config, error) {
	c := Default()
	if err := yaml.Unmarshal(contents, &c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Normalize(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Normalize fills zero values with defaults and validates the result.
func (c *Config) Normalize() error {
	def := Default()

	if c.PlaybackLocation != "" {
		c.Device = DeviceFile
	}
	switch c.Device {
	case "":
		c.Device = DeviceSerial
	case DeviceSerial, DeviceFile:
	default:
		return fmt.Errorf("%w %q", ErrUnknownDevice, c.Device)
	}

	if c.Device == DeviceFile && c.PlaybackLocation == "" {
		return fmt.Errorf("%w: file device needs playback_location", ErrNoSource)
	}
	if c.Device == DeviceSerial && c.Port == "" {
		c.Port = serialport.AutoPort
	}

	serial, err := c.Serial.Normalize()
	if err != nil {
		return fmt.Errorf("serial: %w", err)
	}
	c.Serial = serial

	if c.SampleRate == 0 {
		c.SampleRate = def.SampleRate
	}
	if _, err := command.SetSampleRate(c.SampleRate); err != nil {
		return err
	}

	if c.PlaybackDelay <= 0 {
		c.PlaybackDelay = def.PlaybackDelay
	}
	if c.IdleSleep < 0 {
		c.IdleSleep = 0
	}
	if c.StatsInterval <= 0 {
		c.StatsInterval = def.StatsInterval
	}
	if c.Duration < 0 {
		return fmt.Errorf("invalid duration %s", c.Duration)
	}
	if c.PlotPoints <= 0 {
		c.PlotPoints = def.PlotPoints
	}
	if c.SpectrumWindow <= 0 {
		c.SpectrumWindow = def.SpectrumWindow
	}
	if c.VizServer.Port == 0 {
		c.VizServer.Port = def.VizServer.Port
	}
	if c.VizServer.UpdateInterval <= 0 {
		c.VizServer.UpdateInterval = def.VizServer.UpdateInterval
	}

	for _, dest := range c.OutputDestinations {
		if dest.Host == "" || dest.Port <= 0 || dest.Port > 65535 {
			return fmt.Errorf("invalid output destination %s:%d", dest.Host, dest.Port)
		}
	}

	return c.Filter.normalize(c.SampleRate)
}

func (f *Filter) normalize(sampleRate int) error {
	nyquist := float64(sampleRate) / 2

	if f.Type == "" {
		f.Type = FilterNone
	}
	if f.TransitionBW <= 0 {
		f.TransitionBW = 10
	}
	if f.EnvelopeAlpha <= 0 || f.EnvelopeAlpha > 1 {
		f.EnvelopeAlpha = 0.01
	}

	switch f.Type {
	case FilterNone:
	case FilterHighPass:
		if f.LowCutoff <= 0 || f.LowCutoff >= nyquist {
			return fmt.Errorf("%w: highpass cutoff %.1f outside (0, %.1f)", ErrInvalidFilter, f.LowCutoff, nyquist)
		}
	case FilterBandPass:
		if f.LowCutoff <= 0 || f.HighCutoff <= f.LowCutoff || f.HighCutoff >= nyquist {
			return fmt.Errorf("%w: bandpass %.1f-%.1f outside (0, %.1f)", ErrInvalidFilter, f.LowCutoff, f.HighCutoff, nyquist)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidFilter, f.Type)
	}
	return nil
}
