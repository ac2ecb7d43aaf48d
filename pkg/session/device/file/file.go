package file

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/norasector/emgstream/pkg/protocol/command"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// FileDevice replays a raw capture, one read every timeBetween.
type FileDevice struct {
	readFile    io.ReadCloser
	path        string
	readSize    int
	timeBetween time.Duration
	logger      zerolog.Logger
}

func NewFileDevice(path string, readSize int, timeBetween time.Duration) (*FileDevice, error) {
	if readSize <= 0 {
		return nil, fmt.Errorf("invalid read size %d", readSize)
	}
	if timeBetween <= 0 {
		return nil, fmt.Errorf("invalid read delay %s", timeBetween)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	return &FileDevice{
		readFile:    f,
		path:        path,
		readSize:    readSize,
		timeBetween: timeBetween,
		logger:      log.Logger.With().Str("device", "file").Str("path", path).Logger(),
	}, nil
}

func (f *FileDevice) Start(ctx context.Context, chunks chan<- []byte) error {
	tick := time.NewTicker(f.timeBetween)
	defer tick.Stop()

	buf := make([]byte, f.readSize)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
			n, err := f.readFile.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])

				select {
				case <-ctx.Done():
					return ctx.Err()
				case chunks <- chunk:
				}
			}
			if err == io.EOF {
				f.logger.Info().Msg("playback finished")
				return io.EOF
			}
			if err != nil {
				return fmt.Errorf("read %s: %w", f.path, err)
			}
		}
	}
}

// Send is a no-op; a capture cannot be commanded.
func (f *FileDevice) Send(cmd command.Command) error {
	f.logger.Debug().Str("command", cmd.String()).Msg("ignoring command during playback")
	return nil
}

func (f *FileDevice) Stop() error {
	return f.readFile.Close()
}
