package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sampleFrame is a 17 byte sample frame: base 1.0, deltas 10 and 20.
var sampleFrame = []byte{
	0xA5, 0x0E, 0x12, 0x1C,
	0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x80, 0x3F,
	0x0A, 0x00, 0x14, 0x00,
	0x5A,
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func TestAssemblerSingleFrame(t *testing.T) {
	a := NewAssembler()
	frames := a.Append(sampleFrame)

	require.Len(t, frames, 1)
	assert.Equal(t, Frame(sampleFrame), frames[0])
	assert.Equal(t, 0, a.Buffered())
	assert.EqualValues(t, 1, a.Stats().FramesEmitted)
	assert.EqualValues(t, len(sampleFrame), a.Stats().BytesReceived)
}

func TestAssemblerFrameAccessors(t *testing.T) {
	f := Frame(sampleFrame)
	assert.EqualValues(t, 0x0E, f.Length())
	assert.EqualValues(t, 0x12, f.Type())
	assert.EqualValues(t, 0x1C, f.Checksum())
	assert.Len(t, f.Payload(), 12)
	assert.Nil(t, Frame{0xA5, 0x00, 0x5A}.Payload())
}

func TestAssemblerChunking(t *testing.T) {
	tests := []struct {
		name   string
		chunks [][]byte
		want   int
		left   int
	}{
		{
			name:   "garbage prefix",
			chunks: [][]byte{concat([]byte{0x00, 0x11, 0x22}, sampleFrame)},
			want:   1,
		},
		{
			name:   "back to back",
			chunks: [][]byte{concat(sampleFrame, sampleFrame, sampleFrame)},
			want:   3,
		},
		{
			name:   "split at header",
			chunks: [][]byte{sampleFrame[:7], sampleFrame[7:]},
			// the first chunk holds a valid header whose tail has not arrived,
			// so the scanner slides past it
			want: 0,
			left: 6,
		},
		{
			name:   "short chunk waits",
			chunks: [][]byte{sampleFrame[:6], sampleFrame[6:]},
			want:   1,
		},
		{
			name:   "one byte at a time",
			chunks: splitEvery(sampleFrame, 1),
			want:   0,
			left:   6,
		},
		{
			name:   "trailing partial frame",
			chunks: [][]byte{concat(sampleFrame, sampleFrame[:5])},
			want:   1,
			left:   5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAssembler()
			got := 0
			for _, c := range tt.chunks {
				got += len(a.Append(c))
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.left, a.Buffered())
		})
	}
}

func splitEvery(b []byte, n int) [][]byte {
	var out [][]byte
	for len(b) > n {
		out = append(out, b[:n])
		b = b[n:]
	}
	return append(out, b)
}

func TestAssemblerResync(t *testing.T) {
	t.Run("bad header checksum", func(t *testing.T) {
		bad := append([]byte{}, sampleFrame...)
		bad[3] = 0x00
		a := NewAssembler()
		frames := a.Append(concat(bad, sampleFrame))
		require.Len(t, frames, 1)
		assert.Equal(t, Frame(sampleFrame), frames[0])
		assert.EqualValues(t, 1, a.Stats().ChecksumErrors)
	})

	t.Run("bad trailer", func(t *testing.T) {
		bad := append([]byte{}, sampleFrame...)
		bad[len(bad)-1] = 0x00
		a := NewAssembler()
		frames := a.Append(concat(bad, sampleFrame))
		require.Len(t, frames, 1)
		assert.Equal(t, Frame(sampleFrame), frames[0])
		assert.EqualValues(t, 1, a.Stats().TrailerErrors)
	})

	t.Run("sync byte inside payload", func(t *testing.T) {
		f := append([]byte{}, sampleFrame...)
		f[4] = SyncByte
		a := NewAssembler()
		frames := a.Append(f)
		require.Len(t, frames, 1)
		assert.EqualValues(t, SyncByte, frames[0][4])
	})
}

func TestAssemblerWaitForTail(t *testing.T) {
	a := NewAssembler(WithWaitForTail())

	assert.Empty(t, a.Append(sampleFrame[:7]))
	assert.Equal(t, 7, a.Buffered())

	frames := a.Append(sampleFrame[7:])
	require.Len(t, frames, 1)
	assert.Equal(t, Frame(sampleFrame), frames[0])
	assert.Equal(t, 0, a.Buffered())
	assert.EqualValues(t, 0, a.Stats().IncompleteTails)
}

func TestAssemblerWaitForTailOneByteAtATime(t *testing.T) {
	a := NewAssembler(WithWaitForTail())
	got := 0
	for _, c := range splitEvery(concat(sampleFrame, sampleFrame), 1) {
		got += len(a.Append(c))
	}
	assert.Equal(t, 2, got)
}

func TestAssemblerEmptyChunk(t *testing.T) {
	a := NewAssembler()
	assert.Empty(t, a.Append(nil))
	assert.Equal(t, Stats{}, a.Stats())
}

func TestAssemblerReset(t *testing.T) {
	a := NewAssembler()
	a.Append(sampleFrame[:5])
	require.Equal(t, 5, a.Buffered())
	a.Reset()
	assert.Equal(t, 0, a.Buffered())
	assert.EqualValues(t, 5, a.Stats().BytesReceived)
}

func TestAssemblerFalseSyncBeforeFrame(t *testing.T) {
	stream := concat([]byte{SyncByte, 0x00}, sampleFrame)

	for cut := 0; cut <= len(stream); cut++ {
		// a cut inside 9..18 leaves the real header with a short tail, which
		// the scanner slides past
		want := 1
		if cut >= 9 && cut < len(stream) {
			want = 0
		}

		a := NewAssembler()
		var frames []Frame
		frames = append(frames, a.Append(stream[:cut])...)
		frames = append(frames, a.Append(stream[cut:])...)

		require.Len(t, frames, want, "cut %d", cut)
		st := a.Stats()
		assert.EqualValues(t, 1, st.ChecksumErrors, "cut %d", cut)
		if want == 1 {
			assert.Equal(t, Frame(sampleFrame), frames[0], "cut %d", cut)
			assert.EqualValues(t, 1, st.SkippedBytes, "cut %d", cut)
			assert.EqualValues(t, 0, st.IncompleteTails, "cut %d", cut)
		} else {
			assert.EqualValues(t, 1, st.IncompleteTails, "cut %d", cut)
		}
	}
}
