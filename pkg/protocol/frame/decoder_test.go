package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildSampleFrame assembles a sample frame around payload, fixing up the
// length and header checksum.
func buildSampleFrame(payload []byte) Frame {
	length := byte(len(payload) + 2)
	f := []byte{SyncByte, length, 0x12, length ^ 0x12}
	f = append(f, payload...)
	return append(f, TrailerByte)
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name   string
		frame  Frame
		ok     bool
		base   float32
		deltas []int16
	}{
		{
			name:   "two deltas",
			frame:  Frame(sampleFrame),
			ok:     true,
			base:   1,
			deltas: []int16{10, 20},
		},
		{
			name:   "base only",
			frame:  buildSampleFrame([]byte{1, 2, 3, 4, 0x00, 0x00, 0x00, 0x40}),
			ok:     true,
			base:   2,
			deltas: []int16{},
		},
		{
			name:   "negative delta",
			frame:  buildSampleFrame([]byte{0, 0, 0, 0, 0x00, 0x00, 0x80, 0xBF, 0xFF, 0xFF}),
			ok:     true,
			base:   -1,
			deltas: []int16{-1},
		},
		{
			name:   "odd trailing byte ignored",
			frame:  buildSampleFrame([]byte{0, 0, 0, 0, 0, 0, 0, 0, 0x05, 0x00, 0x07}),
			ok:     true,
			base:   0,
			deltas: []int16{5},
		},
		{
			name:  "payload too short",
			frame: buildSampleFrame([]byte{0, 0, 0, 0, 0, 0, 0}),
			ok:    false,
		},
		{
			name:  "other frame type",
			frame: Frame{SyncByte, 0x0A, 0x20, 0x2A, 0, 0, 0, 0, 0, 0, 0, 0, TrailerByte},
			ok:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Decode(tt.frame)
			require.Equal(t, tt.ok, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.base, got.Base)
			assert.Equal(t, tt.deltas, got.Deltas)
		})
	}
}

func TestDecodeMetadataPassthrough(t *testing.T) {
	got, ok := Decode(buildSampleFrame([]byte{0xDE, 0xAD, 0xBE, 0xEF, 0, 0, 0, 0}))
	require.True(t, ok)
	assert.Equal(t, [4]byte{0xDE, 0xAD, 0xBE, 0xEF}, got.Metadata)
}

func TestDecodeAssembledFrame(t *testing.T) {
	a := NewAssembler()
	frames := a.Append(concat([]byte{0x00}, buildSampleFrame([]byte{0, 0, 0, 0, 0, 0, 0x20, 0x41, 0x01, 0x00, 0x02, 0x00, 0x03, 0x00})))
	require.Len(t, frames, 1)

	got, ok := Decode(frames[0])
	require.True(t, ok)
	assert.Equal(t, float32(10), got.Base)
	assert.Equal(t, []int16{1, 2, 3}, got.Deltas)
}
