// Package capture talks to OpenCV through gocv: camera capture, the
// preview window, and interactive rectangle selection.
package capture

import (
	"context"
	"fmt"
	"image"
	"strconv"

	"github.com/andresmejia3/skingrid/internal/imaging"
	"github.com/andresmejia3/skingrid/internal/pipeline"
	"github.com/andresmejia3/skingrid/internal/selection"
	"github.com/andresmejia3/skingrid/internal/types"
	"gocv.io/x/gocv"
)

// Camera reads frames from a capture device, video file or stream URL.
type Camera struct {
	stream *gocv.VideoCapture
	img    gocv.Mat
}

// OpenCamera opens device, which is either a device index ("0") or a path/URL.
// Non-zero width and height are requested from the device.
func OpenCamera(device string, width, height int) (*Camera, error) {
	var target interface{} = device
	if id, err := strconv.Atoi(device); err == nil {
		target = id
	}
	stream, err := gocv.OpenVideoCapture(target)
	if err != nil {
		return nil, fmt.Errorf("open camera %q: %w", device, err)
	}
	if !stream.IsOpened() {
		stream.Close()
		return nil, fmt.Errorf("camera %q could not be opened", device)
	}
	if width > 0 && height > 0 {
		stream.Set(gocv.VideoCaptureFrameWidth, float64(width))
		stream.Set(gocv.VideoCaptureFrameHeight, float64(height))
	}
	return &Camera{stream: stream, img: gocv.NewMat()}, nil
}

// Next grabs one frame and converts it from BGR to RGBA.
func (c *Camera) Next(ctx context.Context) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ok := c.stream.Read(&c.img); !ok || c.img.Empty() {
		return nil, fmt.Errorf("%w: camera did not send a frame", types.ErrFrameUnavailable)
	}
	img, err := c.img.ToImage()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrFrameUnavailable, err)
	}
	return imaging.ToRGBA(img), nil
}

func (c *Camera) Close() error {
	c.img.Close()
	return c.stream.Close()
}

// Window shows frames and reports the quit key. It is a pipeline sink and a
// region picker.
type Window struct {
	win     *gocv.Window
	quitKey int
}

// NewWindow opens a named preview window. Pressing quitKey ends the session.
func NewWindow(title string, quitKey rune) *Window {
	return &Window{win: gocv.NewWindow(title), quitKey: int(quitKey)}
}

// Consume displays the annotated frame and polls the keyboard for 1ms.
func (w *Window) Consume(_ context.Context, frame *image.RGBA, _ types.FrameStats) error {
	if err := w.show(frame); err != nil {
		return err
	}
	if key := w.win.WaitKey(1); key&0xFF == w.quitKey {
		return pipeline.ErrQuit
	}
	return nil
}

func (w *Window) show(frame *image.RGBA) error {
	mat, err := gocv.ImageToMatRGB(frame)
	if err != nil {
		return fmt.Errorf("convert frame for display: %w", err)
	}
	defer mat.Close()
	w.win.IMShow(mat)
	return nil
}

// PickRegion lets the user drag a rectangle over frame. Enter or space
// confirms; c cancels, which yields an unfinished selection.
func (w *Window) PickRegion(frame *image.RGBA) (selection.Selection, error) {
	mat, err := gocv.ImageToMatRGB(frame)
	if err != nil {
		return selection.Selection{}, fmt.Errorf("convert frame for selection: %w", err)
	}
	defer mat.Close()

	rect := w.win.SelectROI(mat)
	if rect.Empty() {
		return selection.Selection{}, nil
	}
	return selection.FromRect(rect), nil
}

func (w *Window) Close() error { return w.win.Close() }
