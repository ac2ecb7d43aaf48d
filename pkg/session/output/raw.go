package output

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"time"
)

const sampleBufferLength int = 8

// RawOutput writes samples as little endian float32 to dest, grouping up to
// sampleBufferLength batches per write. A partial group is written once
// flushInterval passes without a new batch.
type RawOutput struct {
	dest          io.Writer
	recvChan      chan *Batch
	flushInterval time.Duration
}

func NewRawOutput(dest io.Writer, flushInterval time.Duration) *RawOutput {
	if flushInterval <= 0 {
		flushInterval = time.Second
	}
	return &RawOutput{
		dest:          dest,
		recvChan:      make(chan *Batch, sampleBufferLength),
		flushInterval: flushInterval,
	}
}

func (s *RawOutput) Receive() chan<- *Batch {
	return s.recvChan
}

func (s *RawOutput) Start(ctx context.Context) error {
	var b bytes.Buffer
	bufNum := 0

	flush := func() error {
		if bufNum == 0 {
			return nil
		}
		_, err := b.WriteTo(s.dest)
		b.Reset()
		bufNum = 0
		return err
	}

	for {
		select {
		case <-ctx.Done():
			if err := flush(); err != nil {
				return err
			}
			return ctx.Err()

		case <-time.After(s.flushInterval):
			if err := flush(); err != nil {
				return err
			}

		case batch := <-s.recvChan:
			if err := binary.Write(&b, binary.LittleEndian, batch.Samples); err != nil {
				return err
			}

			bufNum++
			if bufNum == sampleBufferLength {
				if err := flush(); err != nil {
					return err
				}
			}
		}
	}
}
