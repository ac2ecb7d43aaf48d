package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		want []byte
	}{
		{
			name: "stop",
			cmd:  Stop(),
			want: []byte{0xAA, 0x04, 0x80, 0x11, 0x00, 0x00, 0x95, 0xBB},
		},
		{
			name: "start",
			cmd:  Start(),
			want: []byte{0xAA, 0x04, 0x80, 0x12, 0x01, 0x00, 0x97, 0xBB},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cmd.Encode())
		})
	}
}

func TestSetSampleRate(t *testing.T) {
	tests := []struct {
		hz   int
		code byte
	}{
		{250, 0x00},
		{500, 0x01},
		{1000, 0x03},
		{1500, 0x04},
	}

	for _, tt := range tests {
		cmd, err := SetSampleRate(tt.hz)
		require.NoError(t, err)

		got := cmd.Encode()
		require.Len(t, got, 9)
		assert.Equal(t, []byte{0xAA, 0x06, 0x80, 0x10, tt.code, 0x00, 0x00}, got[:7])
		assert.Equal(t, 0x06^0x80^0x10^tt.code, got[7])
		assert.Equal(t, StopByte, got[8])
	}
}

func TestSetSampleRateUnsupported(t *testing.T) {
	for _, hz := range []int{0, 100, 750, 2000, -500} {
		_, err := SetSampleRate(hz)
		assert.ErrorIs(t, err, ErrUnsupportedRate, "rate %d", hz)
	}
}

func TestParse(t *testing.T) {
	for _, cmd := range []Command{Stop(), Start()} {
		got, err := Parse(cmd.Encode())
		require.NoError(t, err)
		assert.Equal(t, cmd, got)
	}

	_, err := Parse([]byte{0xAA, 0x04, 0x80})
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = Parse([]byte{0xAB, 0x04, 0x80, 0x11, 0x00, 0x00, 0x95, 0xBB})
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = Parse([]byte{0xAA, 0x04, 0x80, 0x11, 0x00, 0x00, 0x00, 0xBB})
	assert.ErrorIs(t, err, ErrChecksum)
}

func TestStartupSequence(t *testing.T) {
	seq, err := StartupSequence(500)
	require.NoError(t, err)
	require.Len(t, seq, 3)
	assert.Equal(t, OpcodeStop, seq[0].Opcode)
	assert.Equal(t, OpcodeSetSampleRate, seq[1].Opcode)
	assert.Equal(t, OpcodeStart, seq[2].Opcode)

	_, err = StartupSequence(123)
	assert.ErrorIs(t, err, ErrUnsupportedRate)
}

// trailerChecksum XORs everything after the start byte, including the 0xBB
// trailer, with the checksum slot zeroed.
func trailerChecksum(b []byte) byte {
	buf := append([]byte{}, b...)
	buf[len(buf)-2] = 0x00
	return Checksum(buf[1:])
}

func TestChecksumExcludesTrailer(t *testing.T) {
	rate, err := SetSampleRate(500)
	require.NoError(t, err)

	tests := []struct {
		name        string
		cmd         Command
		withTrailer []byte
	}{
		{
			name:        "stop",
			cmd:         Stop(),
			withTrailer: []byte{0xAA, 0x04, 0x80, 0x11, 0x00, 0x00, 0x2E, 0xBB},
		},
		{
			name:        "start",
			cmd:         Start(),
			withTrailer: []byte{0xAA, 0x04, 0x80, 0x12, 0x01, 0x00, 0x2C, 0xBB},
		},
		{
			name:        "set rate 500",
			cmd:         rate,
			withTrailer: []byte{0xAA, 0x06, 0x80, 0x10, 0x01, 0x00, 0x00, 0x2C, 0xBB},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.cmd.Encode()
			require.Len(t, got, len(tt.withTrailer))

			assert.Equal(t, tt.withTrailer[:len(got)-2], got[:len(got)-2])
			assert.Equal(t, tt.withTrailer[len(got)-2], trailerChecksum(got))
			assert.Equal(t, StopByte^got[len(got)-2], tt.withTrailer[len(got)-2])

			_, err := Parse(tt.withTrailer)
			assert.ErrorIs(t, err, ErrChecksum)
		})
	}
}
