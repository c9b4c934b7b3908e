// Package pipeline wires a frame source, the per-frame detector and a set of
// sinks into the single-threaded capture loop.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/andresmejia3/skingrid/internal/grid"
	"github.com/andresmejia3/skingrid/internal/types"
	"go.uber.org/zap"
)

// ErrQuit is returned by a sink to end the session without error.
var ErrQuit = errors.New("quit requested")

// Source delivers frames one at a time. When no frame can be delivered it
// returns an error wrapping types.ErrFrameUnavailable.
type Source interface {
	Next(ctx context.Context) (*image.RGBA, error)
	Close() error
}

// Sink receives every annotated frame with its statistics.
type Sink interface {
	Consume(ctx context.Context, frame *image.RGBA, stats types.FrameStats) error
}

// Flusher is implemented by sinks that buffer work until the session ends.
type Flusher interface {
	Flush(ctx context.Context) error
}

// Summary totals a finished session.
type Summary struct {
	Frames         int
	Skipped        int
	AvgFPS         float64
	AvgHighlighted float64
}

// Runner drives the capture loop: next frame, process, annotate, hand to
// sinks. One frame is in flight at a time.
type Runner struct {
	Source    Source
	Detector  *Detector
	Sinks     []Sink
	SessionID string
	Logger    *zap.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

// Run loops until the context is cancelled, a sink returns ErrQuit, or the
// source fails. A source failure is returned to the caller together with
// the summary so far; frames whose processing fails are skipped.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	now := r.Now
	if now == nil {
		now = time.Now
	}
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("runner")

	var (
		sum       Summary
		fpsTotal  float64
		fpsFrames int
		hlTotal   int
		meter     Meter
		index     int
	)
	finish := func(err error) (Summary, error) {
		if fpsFrames > 0 {
			sum.AvgFPS = fpsTotal / float64(fpsFrames)
		}
		if sum.Frames > 0 {
			sum.AvgHighlighted = float64(hlTotal) / float64(sum.Frames)
		}
		for _, s := range r.Sinks {
			if f, ok := s.(Flusher); ok {
				// Use Background because ctx may already be cancelled and the
				// buffered statistics still need to be written.
				if ferr := f.Flush(context.Background()); ferr != nil && err == nil {
					err = fmt.Errorf("flush sink: %w", ferr)
				}
			}
		}
		return sum, err
	}

	meter.Start(now())
	for {
		if ctx.Err() != nil {
			return finish(nil)
		}

		frame, err := r.Source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return finish(nil)
			}
			return finish(err)
		}
		index++

		res, err := r.Detector.Process(frame)
		if err != nil {
			sum.Skipped++
			logger.Warn("frame skipped", zap.Int("index", index), zap.Error(err))
			continue
		}

		fps := meter.Tick(now())
		if fps > 0 {
			fpsTotal += fps
			fpsFrames++
		}
		r.Detector.Annotate(frame, res, fps)

		stats := types.FrameStats{
			SessionID:   r.SessionID,
			Index:       index,
			CapturedAt:  now(),
			Rows:        res.Grid.Rows,
			Cols:        res.Grid.Cols,
			Mean:        res.Mean,
			FPS:         fps,
			Highlighted: cellIndices(res.Highlighted, res.Grid.Cols),
		}
		sum.Frames++
		hlTotal += len(res.Highlighted)

		for _, s := range r.Sinks {
			if err := s.Consume(ctx, frame, stats); err != nil {
				if errors.Is(err, ErrQuit) {
					return finish(nil)
				}
				return finish(fmt.Errorf("frame %d: %w", index, err))
			}
		}
	}
}

func cellIndices(cells []grid.Cell, cols int) []int {
	out := make([]int, len(cells))
	for i, c := range cells {
		out[i] = c.Row*cols + c.Col
	}
	return out
}

// IsFrameUnavailable reports whether err means the source ran out of frames.
func IsFrameUnavailable(err error) bool {
	return errors.Is(err, types.ErrFrameUnavailable)
}
