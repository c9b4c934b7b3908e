package types

import (
	"errors"
	"time"
)

// ErrFrameUnavailable is wrapped by frame sources when no frame can be delivered.
var ErrFrameUnavailable = errors.New("frame unavailable")

// FrameStats summarises one processed frame. It is what sinks persist and publish.
type FrameStats struct {
	SessionID   string    `json:"session_id"`
	Index       int       `json:"index"`
	CapturedAt  time.Time `json:"captured_at"`
	Rows        int       `json:"rows"`
	Cols        int       `json:"cols"`
	Mean        float64   `json:"mean"`
	FPS         float64   `json:"fps"`
	Highlighted []int     `json:"highlighted"` // row-major box indices
}

// Boxes is the number of boxes in the frame's grid.
func (s FrameStats) Boxes() int { return s.Rows * s.Cols }

// SessionInfo describes one recorded detection session.
type SessionInfo struct {
	ID             string
	Label          string
	Source         string
	StartedAt      time.Time
	EndedAt        *time.Time
	WorkWidth      int
	WorkHeight     int
	BoxWidth       int
	BoxHeight      int
	Lower          [3]int
	Upper          [3]int
	Frames         int
	AvgFPS         float64
	AvgHighlighted float64
}
