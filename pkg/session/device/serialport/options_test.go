package serialport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

func TestPortOptionsNormalizeDefaults(t *testing.T) {
	opts, err := PortOptions{}.Normalize()
	require.NoError(t, err)

	assert.Equal(t, PortOptions{
		BaudRate:    256000,
		DataBits:    8,
		StopBits:    1,
		Parity:      "N",
		ReadTimeout: 50 * time.Millisecond,
		ReadSize:    512,
	}, opts)
}

func TestPortOptionsNormalizeErrors(t *testing.T) {
	tests := []struct {
		name string
		opts PortOptions
	}{
		{"data bits", PortOptions{DataBits: 9}},
		{"stop bits", PortOptions{StopBits: 3}},
		{"parity", PortOptions{Parity: "mark"}},
		{"read timeout", PortOptions{ReadTimeout: -time.Second}},
		{"read size", PortOptions{ReadSize: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.opts.Normalize()
			assert.Error(t, err)
		})
	}
}

func TestPortOptionsSerialMode(t *testing.T) {
	tests := []struct {
		opts PortOptions
		want serial.Mode
	}{
		{
			opts: PortOptions{},
			want: serial.Mode{BaudRate: 256000, DataBits: 8, Parity: serial.NoParity, StopBits: serial.OneStopBit},
		},
		{
			opts: PortOptions{BaudRate: 115200, DataBits: 7, StopBits: 2, Parity: "even"},
			want: serial.Mode{BaudRate: 115200, DataBits: 7, Parity: serial.EvenParity, StopBits: serial.TwoStopBits},
		},
		{
			opts: PortOptions{Parity: "o"},
			want: serial.Mode{BaudRate: 256000, DataBits: 8, Parity: serial.OddParity, StopBits: serial.OneStopBit},
		},
	}

	for _, tt := range tests {
		mode, err := tt.opts.SerialMode()
		require.NoError(t, err)
		assert.Equal(t, tt.want, *mode)
	}
}
