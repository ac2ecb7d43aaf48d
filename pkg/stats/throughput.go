package stats

import (
	"time"
)

// Snapshot is a point-in-time copy of the throughput counters.
type Snapshot struct {
	CaptureStart     time.Time
	LastObservation  time.Time
	TotalSamples     uint64
	TotalFrames      uint64
	SamplesPerSecond float64
}

// Elapsed is the time between capture start and the last observation.
func (s Snapshot) Elapsed() time.Duration {
	if s.CaptureStart.IsZero() {
		return 0
	}
	return s.LastObservation.Sub(s.CaptureStart)
}

// AvgSamplesPerFrame returns 0 until the first frame has been counted.
func (s Snapshot) AvgSamplesPerFrame() float64 {
	if s.TotalFrames == 0 {
		return 0
	}
	return float64(s.TotalSamples) / float64(s.TotalFrames)
}

// Throughput tracks samples and frames since the first observation. The
// zero value is ready to use. It is not safe for concurrent use.
type Throughput struct {
	started      bool
	captureStart time.Time
	last         time.Time
	totalSamples uint64
	totalFrames  uint64
}

// Start records now as the capture start if nothing has been observed yet.
func (t *Throughput) Start(now time.Time) {
	if t.started {
		return
	}
	t.started = true
	t.captureStart = now
	t.last = now
}

// Observe accounts for one reconstructed run of n samples. Runs with no
// samples move the clock but do not count as a frame.
func (t *Throughput) Observe(n int, now time.Time) {
	t.Start(now)
	if n > 0 {
		t.totalSamples += uint64(n)
		t.totalFrames++
	}
	t.last = now
}

// SamplesPerSecond is the mean rate since capture start, measured at the
// last observation. It is 0 when no time has elapsed.
func (t *Throughput) SamplesPerSecond() float64 {
	elapsed := t.last.Sub(t.captureStart).Seconds()
	if !t.started || elapsed <= 0 {
		return 0
	}
	return float64(t.totalSamples) / elapsed
}

func (t *Throughput) Snapshot() Snapshot {
	return Snapshot{
		CaptureStart:     t.captureStart,
		LastObservation:  t.last,
		TotalSamples:     t.totalSamples,
		TotalFrames:      t.totalFrames,
		SamplesPerSecond: t.SamplesPerSecond(),
	}
}
