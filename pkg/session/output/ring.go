package output

import (
	"context"
	"sync"
)

const ringBufferLength = 8

// Ring keeps the most recent samples for display, evicting the oldest once
// full. It is safe for concurrent use.
type Ring struct {
	mu       sync.Mutex
	data     []float32
	start    int
	count    int
	recvChan chan *Batch
}

func NewRing(size int) *Ring {
	if size <= 0 {
		size = 1
	}
	return &Ring{
		data:     make([]float32, size),
		recvChan: make(chan *Batch, ringBufferLength),
	}
}

func (r *Ring) Receive() chan<- *Batch {
	return r.recvChan
}

func (r *Ring) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case b := <-r.recvChan:
			r.Push(b.Samples...)
		}
	}
}

func (r *Ring) Push(samples ...float32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	size := len(r.data)
	if len(samples) >= size {
		copy(r.data, samples[len(samples)-size:])
		r.start = 0
		r.count = size
		return
	}

	for _, v := range samples {
		end := (r.start + r.count) % size
		r.data[end] = v
		if r.count < size {
			r.count++
		} else {
			r.start = (r.start + 1) % size
		}
	}
}

// Snapshot copies the buffered samples, oldest first.
func (r *Ring) Snapshot() []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]float32, r.count)
	for i := range out {
		out[i] = r.data[(r.start+i)%len(r.data)]
	}
	return out
}

func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

func (r *Ring) Cap() int {
	return len(r.data)
}
