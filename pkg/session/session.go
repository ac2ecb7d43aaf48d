package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/norasector/emgstream/pkg/dsp/envelope"
	"github.com/norasector/emgstream/pkg/dsp/filters/fir"
	"github.com/norasector/emgstream/pkg/dsp/processor"
	"github.com/norasector/emgstream/pkg/dsp/spectrum"
	"github.com/norasector/emgstream/pkg/dsp/viz"
	"github.com/norasector/emgstream/pkg/protocol"
	"github.com/norasector/emgstream/pkg/protocol/command"
	"github.com/norasector/emgstream/pkg/protocol/frame"
	"github.com/norasector/emgstream/pkg/protocol/sample"
	"github.com/norasector/emgstream/pkg/session/config"
	"github.com/norasector/emgstream/pkg/session/device"
	"github.com/norasector/emgstream/pkg/session/output"
	"github.com/norasector/emgstream/pkg/stats"
	"github.com/norasector/emgstream/pkg/util"
	"golang.org/x/sync/errgroup"
)

const vizBucket = "emg"

// Session drives one capture: bytes from a device are assembled into
// frames, decoded, reconstructed and handed to the configured outputs.
type Session struct {
	device    device.Device
	opts      Options
	writeAPI  api.WriteAPI
	vizServer *viz.Server
	logger    zerolog.Logger

	assembler  *frame.Assembler
	throughput stats.Throughput
	counters   Counters
	history    *output.Ring // last SpectrumWindow samples, for the spectrum summary
	plot       *output.Ring // last PlotPoints samples, fed as an output
	chain      *processor.Processor
	envelope   *envelope.RMS
	rawPlot    *viz.TimeDomainPlotter
	rawFFT     *viz.FFTPlotter
	chunkChan  chan []byte
	seq        int

	mu        sync.Mutex
	exhausted atomic.Bool
	cancel    context.CancelFunc
	ctx       context.Context
}

// Counters are the session-level diagnostics not covered by throughput.
type Counters struct {
	Polls          uint64
	IdlePolls      uint64
	IgnoredFrames  uint64
	ShortFrames    uint64
	SkippedOutputs uint64
	Assembler      frame.Stats
}

// Report is what the periodic statistics line is built from.
type Report struct {
	stats.Snapshot
	Counters
	Spectrum      spectrum.Summary
	EnvelopeLevel float64
	PlotMin       float32
	PlotMax       float32
}

type SessionOption func(s *Session) error

func WithInfluxDB(writeAPI api.WriteAPI) SessionOption {
	return func(s *Session) error {
		s.writeAPI = writeAPI
		return nil
	}
}

func WithImageServer(vizServer *viz.Server) SessionOption {
	return func(s *Session) error {
		s.vizServer = vizServer
		return nil
	}
}

func WithLogger(logger zerolog.Logger) SessionOption {
	return func(s *Session) error {
		s.logger = logger
		return nil
	}
}

func NewSession(dev device.Device, options Options, opts ...SessionOption) (*Session, error) {
	s := &Session{
		device:    dev,
		opts:      options,
		writeAPI:  &util.MockWriteAPI{}, // overwritten with option
		logger:    log.Logger,
		chunkChan: make(chan []byte, 8),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if _, err := command.SetSampleRate(s.opts.SampleRate); err != nil {
		return nil, err
	}
	if s.opts.StatsInterval <= 0 {
		s.opts.StatsInterval = time.Second
	}
	if s.opts.SpectrumWindow <= 0 {
		s.opts.SpectrumWindow = 1024
	}
	if s.opts.PlotPoints <= 0 {
		s.opts.PlotPoints = 500
	}

	var assemblerOpts []frame.AssemblerOption
	if s.opts.WaitForTail {
		assemblerOpts = append(assemblerOpts, frame.WithWaitForTail())
	}
	s.assembler = frame.NewAssembler(assemblerOpts...)
	s.history = output.NewRing(s.opts.SpectrumWindow)
	s.plot = output.NewRing(s.opts.PlotPoints)

	if err := s.buildChain(); err != nil {
		return nil, err
	}

	return s, nil
}

// buildChain sets up the display filter and envelope stages. The raw
// reconstructed samples sent to outputs never pass through it.
func (s *Session) buildChain() error {
	rate := s.opts.SampleRate
	f := s.opts.Filter

	if s.vizServer != nil {
		s.rawPlot = viz.NewTimeDomainPlotter("00. Raw EMG", s.opts.PlotPoints)
		s.rawPlot.SetSampleRate(rate)
		s.vizServer.Register(vizBucket, s.rawPlot)

		s.rawFFT = viz.NewFFTPlotter("00. Raw EMG (FFT)", 512, rate)
		s.vizServer.Register(vizBucket, s.rawFFT)
	}

	var taps []float32
	var err error
	switch f.Type {
	case config.FilterHighPass:
		taps, err = fir.MakeHighPass(1.0, float64(rate), f.LowCutoff, f.TransitionBW, fir.Hamming)
	case config.FilterBandPass:
		taps, err = fir.MakeBandPass(1.0, float64(rate), f.LowCutoff, f.HighCutoff, f.TransitionBW, fir.Hamming)
	case config.FilterNone, "":
		return nil
	default:
		return fmt.Errorf("%w: unknown type %q", config.ErrInvalidFilter, f.Type)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", config.ErrInvalidFilter, err)
	}

	s.envelope = envelope.NewRMS(f.EnvelopeAlpha)

	s.chain = processor.NewProcessor(vizBucket+"-chain", "Raw EMG", s.vizServer)
	s.chain.AddBlock(processor.NewDSPWorker("filter", "Filtered EMG", rate, rate,
		fir.NewFilter(taps),
		processor.WithVizLength(s.opts.PlotPoints),
		processor.WithFFTPlot(512),
	))
	s.chain.AddBlock(processor.NewDSPWorker("envelope", "RMS Envelope", rate, rate,
		s.envelope,
		processor.WithVizLength(s.opts.PlotPoints),
	))

	s.logger.Debug().
		Str("filter", f.Type).
		Int("taps", len(taps)).
		Float64("low_cutoff", f.LowCutoff).
		Float64("high_cutoff", f.HighCutoff).
		Msg("display filter ready")

	return s.chain.Initialize()
}

// Process handles one chunk from the device and returns the reconstructed
// batch, or nil when the chunk completed no sample frames. It must not be
// called concurrently with itself.
func (s *Session) Process(chunk []byte, now time.Time) *output.Batch {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.throughput.Start(now)
	s.counters.Polls++
	if len(chunk) == 0 {
		s.counters.IdlePolls++
		return nil
	}

	frames := s.assembler.Append(chunk)
	s.counters.Assembler = s.assembler.Stats()

	var samples []float32
	for _, f := range frames {
		payload, ok := frame.Decode(f)
		if !ok {
			if f.Type() == protocol.FrameTypeSample {
				s.counters.ShortFrames++
			} else {
				s.counters.IgnoredFrames++
			}
			s.logger.Debug().
				Str("type", f.Type().String()).
				Int("length", int(f.Length())).
				Str("frame", protocol.HexString(f)).
				Msg("dropping frame")
			continue
		}

		before := len(samples)
		samples = sample.AppendReconstructed(samples, payload)
		s.throughput.Observe(len(samples)-before, now)
	}

	if len(samples) == 0 {
		return nil
	}

	s.seq++
	return &output.Batch{
		Sequence:  s.seq,
		Timestamp: now,
		Samples:   samples,
		Stats:     s.throughput.Snapshot(),
	}
}

// Snapshot is safe to call while the session is running.
func (s *Session) Snapshot() (stats.Snapshot, Counters) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.throughput.Snapshot(), s.counters
}

func (s *Session) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.vizServer != nil {
		s.vizServer.Stop(context.TODO())
	}

	var err error
	if s.opts.SendCommands {
		if sendErr := s.device.Send(command.Stop()); sendErr != nil {
			s.logger.Warn().Err(sendErr).Msg("failed to stop acquisition")
		}
	}
	if stopErr := s.device.Stop(); stopErr != nil {
		err = stopErr
	}
	return err
}

func (s *Session) Start(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	s.ctx, s.cancel = context.WithCancel(ctx)

	if s.opts.SendCommands {
		seq, err := command.StartupSequence(s.opts.SampleRate)
		if err != nil {
			return err
		}
		for _, cmd := range seq {
			if err := s.device.Send(cmd); err != nil {
				return fmt.Errorf("send %s: %w", cmd.Opcode, err)
			}
		}
	}

	eg.Go(func() error {
		err := s.device.Start(s.ctx, s.chunkChan)
		close(s.chunkChan)
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	})

	if s.vizServer != nil {
		eg.Go(func() error {
			return s.vizServer.Run(s.ctx)
		})
	}

	eg.Go(s.processChunks)
	eg.Go(s.reportStats)

	for _, out := range s.outputs() {
		thisOutput := out
		eg.Go(func() error {
			return thisOutput.Start(s.ctx)
		})
	}

	s.logger.Info().
		Str("sample_rate", protocol.HzToString(s.opts.SampleRate)).
		Bool("send_commands", s.opts.SendCommands).
		Bool("wait_for_tail", s.opts.WaitForTail).
		Int("outputs", len(s.opts.Outputs)).
		Msg("Starting")

	err := eg.Wait()
	if s.exhausted.Load() && errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Session) processChunks() error {
	for {
		select {
		case <-s.ctx.Done():
			return s.ctx.Err()
		case chunk, ok := <-s.chunkChan:
			if !ok {
				if err := s.ctx.Err(); err != nil {
					return err
				}
				s.exhausted.Store(true)
				s.logReport(s.report(), "capture finished")
				s.cancel()
				return nil
			}

			var batch *output.Batch
			dur := util.TimeOperation(func() {
				batch = s.Process(chunk, time.Now())
			})
			if batch == nil {
				continue
			}

			s.display(batch.Samples)
			skipped := s.dispatch(batch)

			go s.writeAPI.WritePoint(influxdb2.NewPoint("emg.batch.processed",
				map[string]string{
					"sample_rate": protocol.HzToString(s.opts.SampleRate),
				},
				map[string]interface{}{
					"bytes":           len(chunk),
					"samples":         len(batch.Samples),
					"skipped_outputs": skipped,
					"duration_us":     dur.Microseconds(),
				}, batch.Timestamp))
		}
	}
}

// dispatch hands batch to every output without waiting on full ones.
func (s *Session) dispatch(batch *output.Batch) int {
	skipped := 0
	for _, out := range s.outputs() {
		select {
		case out.Receive() <- batch:
		default:
			skipped++
		}
	}

	if skipped > 0 {
		s.mu.Lock()
		s.counters.SkippedOutputs += uint64(skipped)
		s.mu.Unlock()
	}
	return skipped
}

// outputs is the configured outputs followed by the plot ring.
func (s *Session) outputs() []output.Output {
	outs := make([]output.Output, 0, len(s.opts.Outputs)+1)
	outs = append(outs, s.opts.Outputs...)
	return append(outs, s.plot)
}

// Recent returns up to PlotPoints of the most recently dispatched samples,
// oldest first.
func (s *Session) Recent() []float32 {
	return s.plot.Snapshot()
}

func (s *Session) display(samples []float32) {
	s.history.Push(samples...)

	if s.rawPlot != nil {
		s.rawPlot.AppendFloat(samples)
		s.rawFFT.AppendFloat(samples)
	}

	if s.chain != nil {
		s.mu.Lock()
		_, err := s.chain.Process(samples, nil)
		s.mu.Unlock()
		if err != nil {
			s.logger.Warn().Err(err).Msg("display chain failed")
		}
	}
}

func (s *Session) report() Report {
	snap, counters := s.Snapshot()
	r := Report{Snapshot: snap, Counters: counters}

	if sum, err := spectrum.Summarize(s.history.Snapshot(), s.opts.SampleRate, spectrumNFFT(s.opts.SpectrumWindow)); err == nil {
		r.Spectrum = sum
	}
	if recent := s.Recent(); len(recent) > 0 {
		r.PlotMin, r.PlotMax = recent[0], recent[0]
		for _, v := range recent[1:] {
			if v < r.PlotMin {
				r.PlotMin = v
			}
			if v > r.PlotMax {
				r.PlotMax = v
			}
		}
	}
	if s.envelope != nil {
		s.mu.Lock()
		r.EnvelopeLevel = s.envelope.Level()
		s.mu.Unlock()
	}
	return r
}

// spectrumNFFT picks the largest power of two segment that gives Welch's
// method at least a few averages over the window.
func spectrumNFFT(window int) int {
	nfft := 16
	for nfft*8 <= window {
		nfft *= 2
	}
	return nfft
}

func (s *Session) logReport(r Report, msg string) {
	s.logger.Info().
		Dur("elapsed", r.Elapsed()).
		Uint64("frames", r.TotalFrames).
		Uint64("samples", r.TotalSamples).
		Float64("avg_samples_per_frame", r.AvgSamplesPerFrame()).
		Float64("samples_per_second", r.SamplesPerSecond).
		Uint64("resyncs", r.Assembler.ResyncEvents()).
		Uint64("ignored_frames", r.IgnoredFrames+r.ShortFrames).
		Float64("median_freq", r.Spectrum.MedianFrequency).
		Float64("envelope", r.EnvelopeLevel).
		Float32("plot_min", r.PlotMin).
		Float32("plot_max", r.PlotMax).
		Msg(msg)
}

func (s *Session) reportStats() error {
	ticker := time.NewTicker(s.opts.StatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return s.ctx.Err()
		case now := <-ticker.C:
			r := s.report()
			s.logReport(r, "stats")

			go s.writeAPI.WritePoint(influxdb2.NewPoint("emg.throughput",
				map[string]string{
					"sample_rate": protocol.HzToString(s.opts.SampleRate),
				},
				map[string]interface{}{
					"total_samples":      r.TotalSamples,
					"total_frames":       r.TotalFrames,
					"samples_per_second": r.SamplesPerSecond,
					"resync_events":      r.Assembler.ResyncEvents(),
					"skipped_bytes":      r.Assembler.SkippedBytes,
					"idle_polls":         r.IdlePolls,
					"median_frequency":   r.Spectrum.MedianFrequency,
					"mean_frequency":     r.Spectrum.MeanFrequency,
					"envelope":           r.EnvelopeLevel,
					"streaming":          util.BoolToInt(r.TotalSamples > 0),
				}, now))
		}
	}
}
