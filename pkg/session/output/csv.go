package output

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

const csvBufferLength = 32

// CSVOutput writes one sample per row under a "value" header.
type CSVOutput struct {
	dest     io.Writer
	w        *csv.Writer
	recvChan chan *Batch
	rows     int
}

func NewCSVOutput(dest io.Writer) *CSVOutput {
	return &CSVOutput{
		dest:     dest,
		w:        csv.NewWriter(dest),
		recvChan: make(chan *Batch, csvBufferLength),
	}
}

func (c *CSVOutput) Receive() chan<- *Batch {
	return c.recvChan
}

// Rows is the number of sample rows written so far.
func (c *CSVOutput) Rows() int {
	return c.rows
}

func (c *CSVOutput) Start(ctx context.Context) error {
	if err := c.w.Write([]string{"value"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			// Whatever was already handed over still belongs in the file.
			for {
				select {
				case b := <-c.recvChan:
					if err := c.write(b); err != nil {
						return err
					}
				default:
					c.w.Flush()
					if err := c.w.Error(); err != nil {
						return fmt.Errorf("flush csv: %w", err)
					}
					return ctx.Err()
				}
			}
		case b := <-c.recvChan:
			if err := c.write(b); err != nil {
				return err
			}
		}
	}
}

func (c *CSVOutput) write(b *Batch) error {
	for _, v := range b.Samples {
		if err := c.w.Write([]string{strconv.FormatFloat(float64(v), 'g', -1, 32)}); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
		c.rows++
	}
	c.w.Flush()
	return c.w.Error()
}
