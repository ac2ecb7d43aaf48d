package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/norasector/emgstream/pkg/dsp/viz"
	"github.com/norasector/emgstream/pkg/session"
	"github.com/norasector/emgstream/pkg/session/config"
	"github.com/norasector/emgstream/pkg/session/device"
	"github.com/norasector/emgstream/pkg/session/device/file"
	"github.com/norasector/emgstream/pkg/session/device/serialport"
	"github.com/norasector/emgstream/pkg/session/output"
	"github.com/norasector/emgstream/pkg/util"
	"golang.org/x/sync/errgroup"
)

const defaultConfigFile = "emgstream.yaml"

var errCaptureDone = errors.New("capture finished")

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.InfoLevel)
	configFile := flag.String("config", defaultConfigFile, "YAML config file")
	listPorts := flag.Bool("list-ports", false, "list serial ports and exit")
	duration := flag.Duration("duration", 0, "stop after this long (0 runs until interrupted)")
	verbose := flag.Bool("verbose", false, "log decoder diagnostics")

	flag.Parse()

	if *verbose {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	}

	if *listPorts {
		if err := printPorts(); err != nil {
			log.Fatal().Err(err).Msg("error listing ports")
		}
		return
	}

	opts, err := loadConfig(*configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("error loading config")
	}
	if *duration > 0 {
		opts.Duration = *duration
	}

	dev, err := openDevice(opts)
	if err != nil {
		log.Fatal().Str("device", opts.Device).Err(err).Msg("failed to initialize device")
	}

	var writeAPI api.WriteAPI = &util.MockWriteAPI{}
	if opts.InfluxDB.Host != "" {
		client := influxdb2.NewClient(opts.InfluxDB.Host, opts.InfluxDB.Token)
		defer client.Close()
		writeAPI = client.WriteAPI(opts.InfluxDB.Organization, opts.InfluxDB.Bucket)
		defer writeAPI.Flush()
	}

	var outputs []output.Output
	if opts.CSVLocation != "" {
		csvFile, err := os.Create(opts.CSVLocation)
		if err != nil {
			log.Fatal().Str("path", opts.CSVLocation).Err(err).Msg("failed to create csv output")
		}
		defer csvFile.Close()
		outputs = append(outputs, output.NewCSVOutput(csvFile))
	}
	switch opts.RawLocation {
	case "":
	case "-":
		outputs = append(outputs, output.NewRawOutput(os.Stdout, time.Second))
	default:
		rawFile, err := os.Create(opts.RawLocation)
		if err != nil {
			log.Fatal().Str("path", opts.RawLocation).Err(err).Msg("failed to create raw output")
		}
		defer rawFile.Close()
		outputs = append(outputs, output.NewRawOutput(rawFile, time.Second))
	}
	if len(opts.OutputDestinations) > 0 {
		outputs = append(outputs, output.NewStreamOutput(opts.OutputDestinations, writeAPI))
	}

	sessionOpts := session.OptionsFromConfig(opts)
	sessionOpts.Outputs = outputs
	// playback captures cannot be commanded
	if opts.Device == config.DeviceFile {
		sessionOpts.SendCommands = false
	}

	sessionOptions := []session.SessionOption{
		session.WithInfluxDB(writeAPI),
		session.WithLogger(log.Logger),
	}
	if opts.VizServer.Enabled {
		vizServer := viz.NewServer(opts.VizServer.Port, opts.VizServer.UpdateInterval)
		sessionOptions = append(sessionOptions, session.WithImageServer(vizServer))
		log.Info().Int("port", opts.VizServer.Port).Msg("viz server enabled")
	}

	sess, err := session.NewSession(dev, sessionOpts, sessionOptions...)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create session")
	}

	ctx := context.Background()
	if opts.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
		log.Info().Dur("duration", opts.Duration).Msg("timed capture")
	}

	eg, ctx := errgroup.WithContext(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	eg.Go(func() error {
		select {
		case <-sigChan:
		case <-ctx.Done():
		}

		return sess.Stop()
	})

	eg.Go(func() error {
		if err := sess.Start(ctx); err != nil {
			return err
		}
		return errCaptureDone
	})

	err = eg.Wait()
	switch {
	case err == nil,
		errors.Is(err, errCaptureDone),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
	default:
		log.Fatal().Err(err).Msg("exited program")
	}

	snap, counters := sess.Snapshot()
	log.Info().
		Dur("duration", snap.Elapsed()).
		Uint64("frames", snap.TotalFrames).
		Uint64("samples", snap.TotalSamples).
		Float64("avg_samples_per_frame", snap.AvgSamplesPerFrame()).
		Float64("samples_per_second", snap.SamplesPerSecond).
		Uint64("resyncs", counters.Assembler.ResyncEvents()).
		Msg("capture summary")
}

// loadConfig falls back to defaults when the default config file is absent.
func loadConfig(path string) (config.Config, error) {
	opts, err := config.Load(path)
	if err != nil && path == defaultConfigFile && errors.Is(err, os.ErrNotExist) {
		log.Info().Str("path", path).Msg("no config file, using defaults")
		opts = config.Default()
		return opts, opts.Normalize()
	}
	return opts, err
}

func openDevice(opts config.Config) (device.Device, error) {
	switch opts.Device {
	case config.DeviceFile:
		log.Info().Str("device", "file").Str("path", opts.PlaybackLocation).Msg("initializing device...")
		return file.NewFileDevice(opts.PlaybackLocation, opts.Serial.ReadSize, opts.PlaybackDelay)
	default:
		log.Info().Str("device", "serial").Str("port", opts.Port).Msg("initializing device...")
		serialOpts := []serialport.Option{
			serialport.WithIdleSleep(opts.IdleSleep),
			serialport.WithLogger(log.Logger),
		}
		if opts.RecordLocation != "" {
			serialOpts = append(serialOpts, serialport.WithRecording(opts.RecordLocation))
		}
		return serialport.NewDevice(opts.Port, opts.Serial, serialOpts...)
	}
}

func printPorts() error {
	ports, err := serialport.ListPorts()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Println("no serial ports found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PORT\tUSB\tVID:PID\tSERIAL\tPRODUCT")
	for _, p := range ports {
		ids := ""
		if p.IsUSB {
			ids = p.VID + ":" + p.PID
		}
		fmt.Fprintf(w, "%s\t%t\t%s\t%s\t%s\n", p.Name, p.IsUSB, ids, p.SerialNumber, p.Product)
	}
	return w.Flush()
}

