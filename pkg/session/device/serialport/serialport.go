package serialport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/norasector/emgstream/pkg/protocol/command"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

var (
	ErrNoPorts    = errors.New("no serial ports found")
	ErrShortWrite = errors.New("short write to serial port")
)

// Port is the subset of serial.Port the device uses.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
}

// Opener opens a port by name. serial.Open satisfies it through openSerial.
type Opener func(name string, mode *serial.Mode) (Port, error)

func openSerial(name string, mode *serial.Mode) (Port, error) {
	return serial.Open(name, mode)
}

type Option func(d *Device) error

// WithRecording tees every raw chunk into a file for later playback.
func WithRecording(path string) Option {
	return func(d *Device) error {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create recording: %w", err)
		}
		d.record = f
		return nil
	}
}

// WithIdleSleep pauses after a read that returned no bytes.
func WithIdleSleep(sleep time.Duration) Option {
	return func(d *Device) error {
		d.idleSleep = sleep
		return nil
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(d *Device) error {
		d.logger = logger
		return nil
	}
}

func WithOpener(open Opener) Option {
	return func(d *Device) error {
		d.open = open
		return nil
	}
}

// Device streams raw bytes from a serial port and writes commands back to it.
type Device struct {
	name      string
	opts      PortOptions
	open      Opener
	port      Port
	record    io.WriteCloser
	idleSleep time.Duration
	logger    zerolog.Logger

	writeMu sync.Mutex
	closeMu sync.Mutex
	closed  bool
}

// NewDevice opens the named port, resolving AutoPort first.
func NewDevice(name string, opts PortOptions, options ...Option) (*Device, error) {
	normalized, err := opts.Normalize()
	if err != nil {
		return nil, err
	}

	d := &Device{
		opts:   normalized,
		open:   openSerial,
		logger: log.Logger,
	}
	for _, opt := range options {
		if err := opt(d); err != nil {
			d.closeRecording()
			return nil, err
		}
	}

	d.name, err = ResolvePort(name)
	if err != nil {
		d.closeRecording()
		return nil, err
	}
	d.logger = d.logger.With().Str("device", "serial").Str("port", d.name).Logger()

	mode, err := normalized.SerialMode()
	if err != nil {
		d.closeRecording()
		return nil, err
	}

	d.port, err = d.open(d.name, mode)
	if err != nil {
		d.closeRecording()
		return nil, fmt.Errorf("open %s: %w", d.name, err)
	}

	if err := d.port.SetReadTimeout(normalized.ReadTimeout); err != nil {
		d.port.Close()
		d.closeRecording()
		return nil, fmt.Errorf("set read timeout on %s: %w", d.name, err)
	}

	d.logger.Info().
		Int("baud", normalized.BaudRate).
		Int("data_bits", normalized.DataBits).
		Int("stop_bits", normalized.StopBits).
		Str("parity", normalized.Parity).
		Dur("read_timeout", normalized.ReadTimeout).
		Msg("serial port open")

	return d, nil
}

func (d *Device) Name() string {
	return d.name
}

func (d *Device) Start(ctx context.Context, chunks chan<- []byte) error {
	buf := make([]byte, d.opts.ReadSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := d.port.Read(buf)
		if err != nil {
			// Stop closes the port underneath a blocked read.
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read %s: %w", d.name, err)
		}

		chunk := make([]byte, n)
		copy(chunk, buf[:n])

		if n > 0 {
			if err := d.writeRecording(chunk); err != nil {
				return err
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunks <- chunk:
		}

		if n == 0 && d.idleSleep > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d.idleSleep):
			}
		}
	}
}

// Send writes cmd to the port. After a start command the input buffer is
// purged so decoding begins at the new stream.
func (d *Device) Send(cmd command.Command) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	encoded := cmd.Encode()
	n, err := d.port.Write(encoded)
	if err != nil {
		return fmt.Errorf("write %s to %s: %w", cmd.Opcode, d.name, err)
	}
	if n != len(encoded) {
		return fmt.Errorf("%w: wrote %d of %d bytes", ErrShortWrite, n, len(encoded))
	}

	d.logger.Debug().Str("command", cmd.String()).Msg("sent command")

	if cmd.Opcode == command.OpcodeStart {
		if err := d.port.ResetInputBuffer(); err != nil {
			return fmt.Errorf("purge %s: %w", d.name, err)
		}
	}
	return nil
}

func (d *Device) Stop() error {
	d.closeMu.Lock()
	defer d.closeMu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true

	err := d.port.Close()
	if recErr := d.closeRecording(); err == nil {
		err = recErr
	}
	return err
}

func (d *Device) writeRecording(chunk []byte) error {
	d.closeMu.Lock()
	defer d.closeMu.Unlock()
	if d.record == nil {
		return nil
	}
	if _, err := d.record.Write(chunk); err != nil {
		return fmt.Errorf("write recording: %w", err)
	}
	return nil
}

func (d *Device) closeRecording() error {
	if d.record == nil {
		return nil
	}
	err := d.record.Close()
	d.record = nil
	return err
}

// ResolvePort returns name unchanged unless it is AutoPort, in which case
// the first USB serial port is chosen, falling back to the first port of any
// kind.
func ResolvePort(name string) (string, error) {
	if name != AutoPort && name != "" {
		return name, nil
	}

	details, err := enumerator.GetDetailedPortsList()
	if err == nil {
		for _, p := range details {
			if p.IsUSB {
				return p.Name, nil
			}
		}
	}

	ports, err := serial.GetPortsList()
	if err != nil {
		return "", fmt.Errorf("list ports: %w", err)
	}
	if len(ports) == 0 {
		return "", ErrNoPorts
	}
	return ports[0], nil
}

// PortInfo describes one enumerated serial port.
type PortInfo struct {
	Name         string
	IsUSB        bool
	VID          string
	PID          string
	SerialNumber string
	Product      string
}

func ListPorts() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("list ports: %w", err)
	}

	ports := make([]PortInfo, 0, len(details))
	for _, p := range details {
		ports = append(ports, PortInfo{
			Name:         p.Name,
			IsUSB:        p.IsUSB,
			VID:          p.VID,
			PID:          p.PID,
			SerialNumber: p.SerialNumber,
			Product:      p.Product,
		})
	}
	return ports, nil
}
