package output

import (
	"context"
	"time"

	"github.com/norasector/emgstream/pkg/stats"
)

// Batch is the reconstructed output of one processed chunk.
type Batch struct {
	Sequence  int
	Timestamp time.Time
	Samples   []float32
	Stats     stats.Snapshot
}

// Output consumes reconstructed sample batches.
type Output interface {
	// Start receives a context and should run in a loop, terminating upon ctx closing or on any errors.
	Start(ctx context.Context) error
	// Receive returns a channel that receives sample batches. Senders never block on it.
	Receive() chan<- *Batch
}
