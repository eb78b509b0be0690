package capture

import "time"

// SessionStats summarises sampling behaviour of one session run for
// instrumentation.
type SessionStats struct {
	Ticks           uint64
	SampleFailures  uint64
	FramesCaptured  uint64
	AvgSample       time.Duration
	AvgSampleMicros float64
	LastSampleAt    time.Time
}
