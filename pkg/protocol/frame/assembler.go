package frame

import (
	"github.com/norasector/emgstream/pkg/protocol"
)

const (
	SyncByte    byte = 0xA5
	TrailerByte byte = 0x5A

	// HeaderLength covers sync, length, type and header checksum.
	HeaderLength = 4

	// MinFrameLength is the smallest window the scanner will inspect.
	MinFrameLength = 7

	// A frame occupies its length byte plus sync, length and trailer.
	lengthOverhead = 3
)

// Frame is one validated inbound frame including sync and trailer bytes.
type Frame []byte

func (f Frame) Length() uint8 {
	return f[1]
}

func (f Frame) Type() protocol.FrameType {
	return protocol.FrameType(f[2])
}

func (f Frame) Checksum() byte {
	return f[3]
}

// Payload returns the bytes between the header and the trailer.
func (f Frame) Payload() []byte {
	if len(f) <= HeaderLength {
		return nil
	}
	return f[HeaderLength : len(f)-1]
}

// Stats counts what the scanner has seen since the assembler was created.
type Stats struct {
	BytesReceived   uint64
	FramesEmitted   uint64
	SkippedBytes    uint64
	ChecksumErrors  uint64
	TrailerErrors   uint64
	IncompleteTails uint64
}

// ResyncEvents is the number of candidate frames rejected after a sync byte matched.
func (s Stats) ResyncEvents() uint64 {
	return s.ChecksumErrors + s.TrailerErrors + s.IncompleteTails
}

type AssemblerOption func(a *Assembler)

// WithWaitForTail stops the scan at a candidate whose header checksum is
// valid but whose declared length runs past the buffered bytes, keeping
// it for the next Append instead of sliding past its sync byte.
func WithWaitForTail() AssemblerOption {
	return func(a *Assembler) {
		a.waitForTail = true
	}
}

// Assembler accumulates raw chunks and carves validated frames out of them.
// It is not safe for concurrent use.
type Assembler struct {
	buf         []byte
	waitForTail bool
	stats       Stats
}

func NewAssembler(opts ...AssemblerOption) *Assembler {
	a := &Assembler{}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Append adds chunk to the pending buffer and returns every frame that can be
// extracted, in stream order. Bytes that were scanned past are discarded;
// the unscanned tail is retained for the next call.
func (a *Assembler) Append(chunk []byte) []Frame {
	a.buf = append(a.buf, chunk...)
	a.stats.BytesReceived += uint64(len(chunk))

	var frames []Frame
	idx := 0

	for len(a.buf)-idx >= MinFrameLength {
		if a.buf[idx] != SyncByte {
			a.stats.SkippedBytes++
			idx++
			continue
		}

		length := a.buf[idx+1]
		if length^a.buf[idx+2] != a.buf[idx+3] {
			a.stats.ChecksumErrors++
			idx++
			continue
		}

		frameLen := int(length) + lengthOverhead
		if len(a.buf)-idx < frameLen {
			if a.waitForTail {
				break
			}
			a.stats.IncompleteTails++
			idx++
			continue
		}

		if a.buf[idx+frameLen-1] != TrailerByte {
			a.stats.TrailerErrors++
			idx++
			continue
		}

		f := make(Frame, frameLen)
		copy(f, a.buf[idx:idx+frameLen])
		frames = append(frames, f)
		a.stats.FramesEmitted++
		idx += frameLen
	}

	if idx > 0 {
		a.buf = a.buf[:copy(a.buf, a.buf[idx:])]
	}

	return frames
}

// Buffered returns the number of bytes retained for the next Append.
func (a *Assembler) Buffered() int {
	return len(a.buf)
}

func (a *Assembler) Stats() Stats {
	return a.stats
}

// Reset drops any retained bytes. Counters are kept.
func (a *Assembler) Reset() {
	a.buf = a.buf[:0]
}
