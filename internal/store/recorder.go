package store

import (
	"context"
	"fmt"
	"image"

	"github.com/andresmejia3/skingrid/internal/types"
)

// statsWriter is the part of Store the Recorder needs.
type statsWriter interface {
	InsertFrameStats(ctx context.Context, stats []types.FrameStats) (int64, error)
	FinishSession(ctx context.Context, id string) error
}

// Recorder is a pipeline sink that buffers frame statistics and writes them
// in batches.
type Recorder struct {
	db        statsWriter
	sessionID string
	batch     int
	buf       []types.FrameStats
	written   int64
}

// NewRecorder buffers up to batch frames between writes.
func NewRecorder(db *Store, sessionID string, batch int) *Recorder {
	return newRecorder(db, sessionID, batch)
}

func newRecorder(db statsWriter, sessionID string, batch int) *Recorder {
	if batch < 1 {
		batch = 1
	}
	return &Recorder{db: db, sessionID: sessionID, batch: batch, buf: make([]types.FrameStats, 0, batch)}
}

// Consume queues stats and writes the batch once it is full.
func (r *Recorder) Consume(ctx context.Context, _ *image.RGBA, stats types.FrameStats) error {
	r.buf = append(r.buf, stats)
	if len(r.buf) < r.batch {
		return nil
	}
	return r.write(ctx)
}

func (r *Recorder) write(ctx context.Context) error {
	if len(r.buf) == 0 {
		return nil
	}
	n, err := r.db.InsertFrameStats(ctx, r.buf)
	if err != nil {
		return fmt.Errorf("record %d frames: %w", len(r.buf), err)
	}
	r.written += n
	r.buf = r.buf[:0]
	return nil
}

// Flush writes what is left and closes the session.
func (r *Recorder) Flush(ctx context.Context) error {
	if err := r.write(ctx); err != nil {
		return err
	}
	return r.db.FinishSession(ctx, r.sessionID)
}

// Written is the number of frame rows stored so far.
func (r *Recorder) Written() int64 { return r.written }
