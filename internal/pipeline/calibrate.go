package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/andresmejia3/skingrid/internal/imaging"
	"github.com/andresmejia3/skingrid/internal/selection"
	"github.com/andresmejia3/skingrid/internal/skin"
)

// ErrNoRegion is returned when the user closes the region picker without
// drawing a rectangle.
var ErrNoRegion = errors.New("no calibration rectangle was drawn")

// RegionPicker lets a user choose the calibration rectangle on a frame.
type RegionPicker interface {
	PickRegion(frame *image.RGBA) (selection.Selection, error)
}

// FixedRegion is a RegionPicker that always returns the same selection.
type FixedRegion selection.Selection

func (f FixedRegion) PickRegion(*image.RGBA) (selection.Selection, error) {
	return selection.Selection(f), nil
}

// Calibration is the outcome of the one-time calibration step.
type Calibration struct {
	Frame  *image.RGBA
	Region image.Rectangle
	Range  skin.ColorRange
}

// Calibrate captures the first frame from src, asks picker for a rectangle
// and derives the color range from it.
func Calibrate(ctx context.Context, src Source, picker RegionPicker) (Calibration, error) {
	frame, err := src.Next(ctx)
	if err != nil {
		return Calibration{}, fmt.Errorf("capture calibration frame: %w", err)
	}

	// The picker may draw on what it is given.
	sel, err := picker.PickRegion(imaging.Clone(frame))
	if err != nil {
		return Calibration{}, err
	}
	region, ok := sel.Rect()
	if !ok {
		return Calibration{}, ErrNoRegion
	}

	rng, err := skin.Calibrate(frame, region)
	if err != nil {
		return Calibration{}, err
	}
	return Calibration{Frame: frame, Region: region, Range: rng}, nil
}
