package command

import (
	"errors"
	"fmt"
)

const (
	StartByte byte = 0xAA
	StopByte  byte = 0xBB

	// DeviceAddress is the target address of the acquisition board.
	DeviceAddress byte = 0x80
)

type Opcode uint8

const (
	OpcodeSetSampleRate Opcode = 0x10
	OpcodeStop          Opcode = 0x11
	OpcodeStart         Opcode = 0x12
)

func (o Opcode) String() string {
	switch o {
	case OpcodeSetSampleRate:
		return "set_sample_rate"
	case OpcodeStop:
		return "stop"
	case OpcodeStart:
		return "start"
	default:
		return fmt.Sprintf("0x%02X", uint8(o))
	}
}

var (
	ErrUnsupportedRate = errors.New("unsupported sample rate")
	ErrMalformed       = errors.New("malformed command")
	ErrChecksum        = errors.New("command checksum mismatch")
)

// rateCodes maps supported sample rates in Hz to their wire code.
var rateCodes = map[int]byte{
	250:  0x00,
	500:  0x01,
	1000: 0x03,
	1500: 0x04,
}

// SupportedRates lists the accepted sample rates in ascending order.
func SupportedRates() []int {
	return []int{250, 500, 1000, 1500}
}

// Command is one outbound control envelope. Length is the value the board
// expects in byte 1, which is not derived from len(Params).
type Command struct {
	Length  uint8
	Address byte
	Opcode  Opcode
	Params  []byte
}

// Encode renders c as AA len addr opcode params... checksum BB. The checksum
// covers len through the last param. Older board firmware tools also folded
// the 0xBB trailer in, so their checksum byte differs from ours by exactly
// 0xBB; check which form a board accepts before enabling send_commands.
func (c Command) Encode() []byte {
	out := make([]byte, 0, len(c.Params)+6)
	out = append(out, StartByte, c.Length, c.Address, byte(c.Opcode))
	out = append(out, c.Params...)
	out = append(out, 0x00, StopByte)
	out[len(out)-2] = Checksum(out[1 : len(out)-2])
	return out
}

func (c Command) String() string {
	return fmt.Sprintf("%s % X", c.Opcode, c.Encode())
}

// Checksum is the XOR of b. Encode and Parse pass it the bytes between the
// start byte and the checksum slot, excluding the trailer.
func Checksum(b []byte) byte {
	var cs byte
	for _, v := range b {
		cs ^= v
	}
	return cs
}

// Parse decodes an encoded command and verifies its framing and checksum.
func Parse(b []byte) (Command, error) {
	if len(b) < 6 {
		return Command{}, fmt.Errorf("%w: %d bytes", ErrMalformed, len(b))
	}
	if b[0] != StartByte || b[len(b)-1] != StopByte {
		return Command{}, fmt.Errorf("%w: bad envelope % X", ErrMalformed, b)
	}
	if want := Checksum(b[1 : len(b)-2]); want != b[len(b)-2] {
		return Command{}, fmt.Errorf("%w: got 0x%02X want 0x%02X", ErrChecksum, b[len(b)-2], want)
	}

	c := Command{
		Length:  b[1],
		Address: b[2],
		Opcode:  Opcode(b[3]),
	}
	if params := b[4 : len(b)-2]; len(params) > 0 {
		c.Params = append([]byte{}, params...)
	}
	return c, nil
}

func Stop() Command {
	return Command{Length: 0x04, Address: DeviceAddress, Opcode: OpcodeStop, Params: []byte{0x00, 0x00}}
}

func Start() Command {
	return Command{Length: 0x04, Address: DeviceAddress, Opcode: OpcodeStart, Params: []byte{0x01, 0x00}}
}

// SetSampleRate builds the rate command for hz, which must be one of
// SupportedRates.
func SetSampleRate(hz int) (Command, error) {
	code, ok := rateCodes[hz]
	if !ok {
		return Command{}, fmt.Errorf("%w: %d Hz", ErrUnsupportedRate, hz)
	}
	return Command{
		Length:  0x06,
		Address: DeviceAddress,
		Opcode:  OpcodeSetSampleRate,
		Params:  []byte{code, 0x00, 0x00},
	}, nil
}

// StartupSequence is the order the board expects on connect: stop any
// running stream, set the rate, then start streaming.
func StartupSequence(hz int) ([]Command, error) {
	rate, err := SetSampleRate(hz)
	if err != nil {
		return nil, err
	}
	return []Command{Stop(), rate, Start()}, nil
}
