package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestThroughputZeroValue(t *testing.T) {
	var tp Throughput
	snap := tp.Snapshot()
	assert.Zero(t, snap.TotalSamples)
	assert.Zero(t, snap.SamplesPerSecond)
	assert.Zero(t, snap.Elapsed())
	assert.Zero(t, snap.AvgSamplesPerFrame())
}

func TestThroughputObserve(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var tp Throughput

	tp.Observe(3, start)
	assert.Zero(t, tp.SamplesPerSecond())

	tp.Observe(5, start.Add(500*time.Millisecond))
	tp.Observe(0, start.Add(time.Second))

	snap := tp.Snapshot()
	assert.EqualValues(t, 8, snap.TotalSamples)
	assert.EqualValues(t, 2, snap.TotalFrames)
	assert.Equal(t, start, snap.CaptureStart)
	assert.Equal(t, time.Second, snap.Elapsed())
	assert.InDelta(t, 8.0, snap.SamplesPerSecond, 1e-9)
	assert.InDelta(t, 4.0, snap.AvgSamplesPerFrame(), 1e-9)
}

func TestThroughputStartIsIdempotent(t *testing.T) {
	start := time.Unix(100, 0)
	var tp Throughput

	tp.Start(start)
	tp.Start(start.Add(time.Hour))
	tp.Observe(250, start.Add(2*time.Second))

	snap := tp.Snapshot()
	assert.Equal(t, start, snap.CaptureStart)
	assert.InDelta(t, 125.0, snap.SamplesPerSecond, 1e-9)
}

func TestThroughputSingleFrame(t *testing.T) {
	now := time.Unix(0, 0)
	var tp Throughput
	tp.Observe(3, now)

	snap := tp.Snapshot()
	assert.EqualValues(t, 1, snap.TotalFrames)
	assert.EqualValues(t, 3, snap.TotalSamples)
	assert.Zero(t, snap.SamplesPerSecond)
}
