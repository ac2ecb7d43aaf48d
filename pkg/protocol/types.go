package protocol

import "fmt"

// FrameType is the discriminator carried in byte 2 of every inbound frame.
type FrameType uint8

const (
	// FrameTypeSample carries one absolute sample followed by int16 deltas.
	// It is the only frame type with decodable content.
	FrameTypeSample FrameType = 0x12
)

func (t FrameType) String() string {
	switch t {
	case FrameTypeSample:
		return "sample"
	default:
		return fmt.Sprintf("0x%02X", uint8(t))
	}
}
