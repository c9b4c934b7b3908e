package video

import (
	"context"
	"fmt"
	"image"
	"io"

	"github.com/andresmejia3/skingrid/internal/types"
	"github.com/andresmejia3/skingrid/internal/utils"
)

// Writer encodes annotated frames to a video file through an ffmpeg pipe.
// The encoder starts on the first frame, whose size fixes the output size.
// It is a pipeline sink.
type Writer struct {
	ctx    context.Context
	output string
	fps    float64

	size image.Point
	cmd  *utils.SafeCommand
	in   io.WriteCloser
	done bool

	newCmd func(ctx context.Context, output string, fps float64, width, height int) *utils.SafeCommand
}

// NewWriter prepares an encoder writing to output at fps frames per second.
// Cancelling ctx does not stop the encoder: it runs until Flush closes its
// input, so an interrupted session still leaves a playable file.
func NewWriter(ctx context.Context, output string, fps float64) *Writer {
	if fps <= 0 {
		fps = 30
	}
	return &Writer{
		ctx:    context.WithoutCancel(ctx),
		output: output,
		fps:    fps,
		newCmd: utils.NewFFmpegEncoder,
	}
}

func (w *Writer) start(size image.Point) error {
	cmd := w.newCmd(w.ctx, w.output, w.fps, size.X, size.Y)
	in, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create encoder pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start encoder: %w", err)
	}
	w.cmd, w.in, w.size = cmd, in, size
	return nil
}

// Consume writes one frame.
func (w *Writer) Consume(_ context.Context, frame *image.RGBA, _ types.FrameStats) error {
	b := frame.Bounds()
	if w.in == nil {
		if err := w.start(b.Size()); err != nil {
			return err
		}
	}
	if b.Size() != w.size {
		return fmt.Errorf("encoder expects %dx%d frames, got %dx%d", w.size.X, w.size.Y, b.Dx(), b.Dy())
	}
	rowLen := b.Dx() * 4
	for y := b.Min.Y; y < b.Max.Y; y++ {
		off := frame.PixOffset(b.Min.X, y)
		if _, err := w.in.Write(frame.Pix[off : off+rowLen]); err != nil {
			return fmt.Errorf("write frame: %w", err)
		}
	}
	return nil
}

// Flush closes the encoder input and waits for the file to be finalised.
func (w *Writer) Flush(context.Context) error {
	if w.done || w.in == nil {
		return nil
	}
	w.done = true
	w.in.Close()
	if w.cmd == nil || w.cmd.Process == nil {
		return nil
	}
	if err := w.cmd.Wait(); err != nil {
		return fmt.Errorf("encoder: %w", err)
	}
	return nil
}

// Cmd exposes the encoder process so callers can print its logs. It is nil
// until the first frame arrives.
func (w *Writer) Cmd() *utils.SafeCommand { return w.cmd }
