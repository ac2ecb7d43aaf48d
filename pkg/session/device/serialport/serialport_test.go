package serialport

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/norasector/emgstream/pkg/protocol/command"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

// fakePort replays reads from a queue and records writes.
type fakePort struct {
	mu      sync.Mutex
	reads   [][]byte
	readErr error
	written bytes.Buffer
	timeout time.Duration
	purges  int
	closed  bool
}

func (p *fakePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.reads) == 0 {
		if p.readErr != nil {
			return 0, p.readErr
		}
		return 0, nil
	}
	n := copy(b, p.reads[0])
	p.reads = p.reads[1:]
	return n, nil
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.Write(b)
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePort) SetReadTimeout(t time.Duration) error {
	p.timeout = t
	return nil
}

func (p *fakePort) ResetInputBuffer() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.purges++
	return nil
}

func openerFor(p *fakePort, gotMode **serial.Mode) Opener {
	return func(name string, mode *serial.Mode) (Port, error) {
		if gotMode != nil {
			*gotMode = mode
		}
		return p, nil
	}
}

var errUnplugged = errors.New("device unplugged")

func TestDeviceOpen(t *testing.T) {
	port := &fakePort{}
	var mode *serial.Mode

	dev, err := NewDevice("/dev/ttyUSB0", PortOptions{}, WithOpener(openerFor(port, &mode)))
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyUSB0", dev.Name())
	assert.Equal(t, 50*time.Millisecond, port.timeout)
	require.NotNil(t, mode)
	assert.Equal(t, 256000, mode.BaudRate)

	require.NoError(t, dev.Stop())
	assert.True(t, port.closed)
	assert.NoError(t, dev.Stop())
}

func TestDeviceOpenError(t *testing.T) {
	open := func(name string, mode *serial.Mode) (Port, error) {
		return nil, errUnplugged
	}
	_, err := NewDevice("/dev/ttyUSB0", PortOptions{}, WithOpener(open))
	assert.ErrorIs(t, err, errUnplugged)
}

func TestDeviceStartForwardsChunks(t *testing.T) {
	port := &fakePort{
		reads:   [][]byte{{0xA5, 0x01}, {}, {0x02, 0x03}},
		readErr: errUnplugged,
	}
	recording := filepath.Join(t.TempDir(), "raw.bin")

	dev, err := NewDevice("COM3", PortOptions{}, WithOpener(openerFor(port, nil)), WithRecording(recording))
	require.NoError(t, err)

	chunks := make(chan []byte, 8)
	err = dev.Start(context.Background(), chunks)
	assert.ErrorIs(t, err, errUnplugged)
	require.NoError(t, dev.Stop())
	close(chunks)

	var got [][]byte
	for c := range chunks {
		got = append(got, c)
	}
	assert.Equal(t, [][]byte{{0xA5, 0x01}, {}, {0x02, 0x03}}, got)

	raw, err := os.ReadFile(recording)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xA5, 0x01, 0x02, 0x03}, raw)
}

func TestDeviceStartCancel(t *testing.T) {
	dev, err := NewDevice("COM3", PortOptions{}, WithOpener(openerFor(&fakePort{}, nil)), WithIdleSleep(time.Millisecond))
	require.NoError(t, err)
	defer dev.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	chunks := make(chan []byte)
	go func() {
		<-chunks
		cancel()
	}()

	err = dev.Start(ctx, chunks)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDeviceSend(t *testing.T) {
	port := &fakePort{}
	dev, err := NewDevice("COM3", PortOptions{}, WithOpener(openerFor(port, nil)))
	require.NoError(t, err)
	defer dev.Stop()

	seq, err := command.StartupSequence(1000)
	require.NoError(t, err)
	for _, cmd := range seq {
		require.NoError(t, dev.Send(cmd))
	}

	var want []byte
	for _, cmd := range seq {
		want = append(want, cmd.Encode()...)
	}
	assert.Equal(t, want, port.written.Bytes())
	assert.Equal(t, 1, port.purges)
}

func TestResolvePortExplicit(t *testing.T) {
	name, err := ResolvePort("/dev/ttyACM1")
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyACM1", name)
}
