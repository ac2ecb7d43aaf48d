package util

import "time"

func TimeOperationMicroseconds(op func()) int64 {
	return TimeOperation(op).Microseconds()
}

func TimeOperation(op func()) time.Duration {
	start := time.Now()
	op()
	return time.Since(start)
}

// BoolToInt renders a flag as an InfluxDB-friendly counter.
func BoolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
