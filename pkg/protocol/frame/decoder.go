package frame

import (
	"encoding/binary"
	"math"

	"github.com/norasector/emgstream/pkg/protocol"
)

const (
	metadataOffset   = 4
	baseSampleOffset = 8
	deltaOffset      = 12

	// Metadata plus the base sample. Anything shorter carries no samples.
	minSamplePayload = 8
)

// SamplePayload is the decoded content of a sample frame.
type SamplePayload struct {
	// Metadata is passed through uninterpreted.
	Metadata [4]byte
	Base     float32
	Deltas   []int16
}

// Decode interprets a sample frame. It reports false for any other frame
// type and for sample frames too short to hold metadata and a base sample.
func Decode(f Frame) (SamplePayload, bool) {
	if len(f) < HeaderLength || f.Type() != protocol.FrameTypeSample {
		return SamplePayload{}, false
	}

	payloadLen := int(f.Length()) - 2
	if payloadLen < minSamplePayload || len(f) < int(f.Length())+lengthOverhead {
		return SamplePayload{}, false
	}

	var out SamplePayload
	copy(out.Metadata[:], f[metadataOffset:baseSampleOffset])
	out.Base = math.Float32frombits(binary.LittleEndian.Uint32(f[baseSampleOffset:deltaOffset]))

	count := (payloadLen - minSamplePayload) / 2
	out.Deltas = make([]int16, count)
	for k := range out.Deltas {
		off := deltaOffset + 2*k
		out.Deltas[k] = int16(binary.LittleEndian.Uint16(f[off : off+2]))
	}

	return out, true
}
