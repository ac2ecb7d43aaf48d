package output

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"net"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/norasector/emgstream/pkg/session/config"
	"github.com/rs/zerolog/log"
	"google.golang.org/protobuf/encoding/protowire"
)

const receiveChannels = 8

// Field numbers of the batch message.
const (
	fieldTimestamp    protowire.Number = 1
	fieldTotalSamples protowire.Number = 2
	fieldTotalFrames  protowire.Number = 3
	fieldSamples      protowire.Number = 4
)

// maxMessageLength is bounded by the uint16 length prefix.
const maxMessageLength = math.MaxUint16

var ErrMessageTooLarge = errors.New("batch message exceeds length prefix")

// StreamOutput sends every batch as a length-prefixed protobuf message to a
// set of UDP destinations.
type StreamOutput struct {
	dests    []config.OutputDestination
	recvChan chan *Batch
	metrics  api.WriteAPI
}

func NewStreamOutput(dests []config.OutputDestination, metrics api.WriteAPI) *StreamOutput {
	return &StreamOutput{
		dests:    dests,
		recvChan: make(chan *Batch, receiveChannels),
		metrics:  metrics,
	}
}

func (s *StreamOutput) Receive() chan<- *Batch {
	return s.recvChan
}

func (s *StreamOutput) Start(ctx context.Context) error {
	destAddrs := make([]*net.UDPAddr, 0, len(s.dests))
	for _, dest := range s.dests {
		ips, err := net.LookupIP(dest.Host)
		if err != nil {
			return err
		}
		if len(ips) == 0 {
			return fmt.Errorf("no IPs returned for %s", dest.Host)
		}

		destAddr := &net.UDPAddr{IP: ips[0], Port: dest.Port}
		destAddrs = append(destAddrs, destAddr)
		log.Info().IPAddr("dest_ip", destAddr.IP).Int("port", dest.Port).Msg("stream output starting")
	}

	conn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case b := <-s.recvChan:
			msg, err := EncodeMessage(b)
			if err != nil {
				log.Warn().Err(err).Int("samples", len(b.Samples)).Msg("dropping batch")
				continue
			}

			sent, dropped := 0, 0
			for _, destAddr := range destAddrs {
				if _, err := conn.WriteToUDP(msg, destAddr); err != nil {
					log.Error().Err(err).Str("dest", destAddr.String()).Msg("error writing")
					dropped++
					continue
				}
				sent++
			}

			go s.metrics.WritePoint(influxdb2.NewPoint("emg.stream.sent_batch",
				map[string]string{
					"destinations": strconv.Itoa(len(destAddrs)),
				},
				map[string]interface{}{
					"message_length": len(msg),
					"samples":        len(b.Samples),
					"sent":           sent,
					"dropped":        dropped,
				}, time.Now()))
		}
	}
}

// MarshalBatch encodes b as a protobuf wire message.
func MarshalBatch(b *Batch) []byte {
	var out []byte
	out = protowire.AppendTag(out, fieldTimestamp, protowire.Fixed64Type)
	out = protowire.AppendFixed64(out, uint64(b.Timestamp.UnixNano()))
	out = protowire.AppendTag(out, fieldTotalSamples, protowire.VarintType)
	out = protowire.AppendVarint(out, b.Stats.TotalSamples)
	out = protowire.AppendTag(out, fieldTotalFrames, protowire.VarintType)
	out = protowire.AppendVarint(out, b.Stats.TotalFrames)

	if len(b.Samples) > 0 {
		packed := make([]byte, 0, 4*len(b.Samples))
		for _, v := range b.Samples {
			packed = protowire.AppendFixed32(packed, math.Float32bits(v))
		}
		out = protowire.AppendTag(out, fieldSamples, protowire.BytesType)
		out = protowire.AppendBytes(out, packed)
	}
	return out
}

// EncodeMessage prefixes the marshaled batch with its uint16 little endian length.
func EncodeMessage(b *Batch) ([]byte, error) {
	body := MarshalBatch(b)
	if len(body) > maxMessageLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, len(body))
	}

	msg := make([]byte, 2, 2+len(body))
	binary.LittleEndian.PutUint16(msg, uint16(len(body)))
	return append(msg, body...), nil
}

// UnmarshalBatch decodes a message produced by MarshalBatch. Unknown fields
// are skipped.
func UnmarshalBatch(data []byte) (*Batch, error) {
	b := &Batch{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		data = data[n:]

		switch {
		case num == fieldTimestamp && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b.Timestamp = time.Unix(0, int64(v))
			data = data[n:]
		case num == fieldTotalSamples && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b.Stats.TotalSamples = v
			data = data[n:]
		case num == fieldTotalFrames && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b.Stats.TotalFrames = v
			data = data[n:]
		case num == fieldSamples && typ == protowire.BytesType:
			packed, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			for len(packed) > 0 {
				v, m := protowire.ConsumeFixed32(packed)
				if m < 0 {
					return nil, protowire.ParseError(m)
				}
				b.Samples = append(b.Samples, math.Float32frombits(v))
				packed = packed[m:]
			}
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return b, nil
}
