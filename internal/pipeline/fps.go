package pipeline

import "time"

// Meter measures frames per second from the gap between consecutive ticks.
type Meter struct {
	last time.Time
}

// Start sets the reference time for the first Tick.
func (m *Meter) Start(now time.Time) { m.last = now }

// Tick returns 1/(now - previous tick). It returns 0 before Start or when
// no time has elapsed.
func (m *Meter) Tick(now time.Time) float64 {
	prev := m.last
	m.last = now
	if prev.IsZero() {
		return 0
	}
	elapsed := now.Sub(prev)
	if elapsed <= 0 {
		return 0
	}
	return 1 / elapsed.Seconds()
}
