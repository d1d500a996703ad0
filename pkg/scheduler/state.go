package scheduler

import (
	"math"
	"time"
)

// Phase is where the scheduler is in its day-cycle.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseRunning   Phase = "running"
	PhaseSuspended Phase = "suspended"
)

// State is the day-scoped counter. It is replaced wholesale at every reset.
type State struct {
	CycleID      string
	RequestCount int
	RequestLimit int
	StartTime    time.Time
}

// Snapshot is a point-in-time view for telemetry.
type Snapshot struct {
	State
	Phase Phase
	// ResumeAt is set while suspended.
	ResumeAt time.Time
}

// Runtime returns the time elapsed since the cycle started.
func (s Snapshot) Runtime(now time.Time) time.Duration {
	return now.Sub(s.StartTime)
}

// RequestsPerHour extrapolates the cycle's request rate. Right after a reset
// the elapsed time is tiny and the rate may be very large or +Inf.
func (s Snapshot) RequestsPerHour(now time.Time) float64 {
	minutes := s.Runtime(now).Minutes()
	if minutes <= 0 {
		if s.RequestCount == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return float64(s.RequestCount) / minutes * 60
}
