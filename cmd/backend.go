package cmd

import (
	"errors"

	"github.com/andresmejia3/skingrid/internal/pipeline"
)

// Window is the OpenCV preview window. It shows annotated frames, reports
// the quit key and lets the user pick the calibration rectangle.
type Window interface {
	pipeline.Sink
	pipeline.RegionPicker
	Close() error
}

// Backend holds the OpenCV constructors used by the gocv backend. main
// installs them so this package builds without cgo.
type Backend struct {
	OpenCamera func(device string, width, height int) (pipeline.Source, error)
	NewWindow  func(title string, quitKey rune) Window
}

var openCV Backend

var errNoGoCV = errors.New("the gocv backend is not available in this build; use --backend ffmpeg")

// SetBackend installs the OpenCV constructors.
func SetBackend(b Backend) { openCV = b }

func (b Backend) openCamera(device string, width, height int) (pipeline.Source, error) {
	if b.OpenCamera == nil {
		return nil, errNoGoCV
	}
	return b.OpenCamera(device, width, height)
}

func (b Backend) newWindow(title string, quitKey rune) (Window, error) {
	if b.NewWindow == nil {
		return nil, errNoGoCV
	}
	return b.NewWindow(title, quitKey), nil
}
