package device

import (
	"context"

	"github.com/norasector/emgstream/pkg/protocol/command"
)

// Device is a source of raw protocol bytes.
type Device interface {
	// Start pushes raw chunks into chunks until ctx is done or the source
	// fails. Chunks may be empty when a read times out; an empty chunk is
	// never end of stream. Playback sources return io.EOF when exhausted.
	Start(ctx context.Context, chunks chan<- []byte) error
	Stop() error
	// Send writes an outbound command. Sources that cannot accept commands
	// ignore it.
	Send(cmd command.Command) error
}
