// Package video moves frames in and out of the process through ffmpeg pipes
// and still image files.
package video

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"sync"

	"github.com/andresmejia3/skingrid/internal/types"
	"github.com/andresmejia3/skingrid/internal/utils"
)

// Reader decodes a video file, stream URL or capture device into RGBA
// frames through an ffmpeg raw-video pipe.
type Reader struct {
	Width  int
	Height int

	cmd  *utils.SafeCommand
	out  io.ReadCloser
	once sync.Once

	waitOnce sync.Once
	waitErr  error
}

// ReaderOptions configures NewReader.
type ReaderOptions struct {
	// InputFormat is passed to ffmpeg as -f, e.g. "v4l2".
	InputFormat string
	// Width and Height skip probing when both are set. Capture devices
	// usually need them.
	Width  int
	Height int
}

// NewReader starts ffmpeg on input. The process is killed when ctx is cancelled.
func NewReader(ctx context.Context, input string, opts ReaderOptions) (*Reader, error) {
	w, h := opts.Width, opts.Height
	if w <= 0 || h <= 0 {
		var err error
		w, h, err = utils.GetVideoDimensions(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("determine video dimensions: %w", err)
		}
	}

	cmd := utils.NewFFmpegRawDecoder(ctx, input, opts.InputFormat)
	if opts.Width > 0 && opts.Height > 0 && opts.InputFormat != "" {
		// Ask the device for the size we are going to read.
		cmd.Args = insertBefore(cmd.Args, "-i", "-video_size", fmt.Sprintf("%dx%d", w, h))
	}
	return startReader(cmd, w, h)
}

// startReader runs cmd and reads w x h RGBA frames from its stdout.
func startReader(cmd *utils.SafeCommand, w, h int) (*Reader, error) {
	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("create decoder pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start decoder: %w", err)
	}
	return &Reader{Width: w, Height: h, cmd: cmd, out: out}, nil
}

func insertBefore(args []string, marker string, extra ...string) []string {
	for i, a := range args {
		if a == marker {
			out := make([]string, 0, len(args)+len(extra))
			out = append(out, args[:i]...)
			out = append(out, extra...)
			return append(out, args[i:]...)
		}
	}
	return args
}

// Next reads exactly one frame. End of stream and read failures are
// reported as types.ErrFrameUnavailable. Only a decoder that exited cleanly
// produces end of stream, which also wraps io.EOF.
func (r *Reader) Next(ctx context.Context) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	frame := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))
	if _, err := io.ReadFull(r.out, frame.Pix); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			err = io.EOF
		}
		if !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %w", types.ErrFrameUnavailable, err)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if werr := r.wait(); werr != nil {
			return nil, fmt.Errorf("%w: decoder failed: %w", types.ErrFrameUnavailable, werr)
		}
		return nil, fmt.Errorf("%w: %w", types.ErrFrameUnavailable, io.EOF)
	}
	return frame, nil
}

// wait reaps the decoder once and reports how it exited.
func (r *Reader) wait() error {
	if r.cmd == nil || r.cmd.Process == nil {
		return nil
	}
	r.waitOnce.Do(func() { r.waitErr = r.cmd.Wait() })
	return r.waitErr
}

// Cmd exposes the decoder process so callers can print its logs.
func (r *Reader) Cmd() *utils.SafeCommand { return r.cmd }

// Close stops the decoder and waits for it to exit. Decoder failures are
// reported by Next; Close only tears the pipe down.
func (r *Reader) Close() error {
	r.once.Do(func() {
		r.out.Close()
		if r.cmd != nil && r.cmd.Process != nil {
			r.cmd.Process.Kill()
		}
		r.wait()
	})
	return nil
}
