package pipeline

import (
	"fmt"
	"image"

	"github.com/andresmejia3/skingrid/internal/grid"
	"github.com/andresmejia3/skingrid/internal/imaging"
	"github.com/andresmejia3/skingrid/internal/skin"
	"go.uber.org/zap"
)

// Config holds the per-frame processing parameters.
type Config struct {
	WorkWidth     int
	WorkHeight    int
	BoxWidth      int
	BoxHeight     int
	Interpolation imaging.Interpolation
	Thickness     int
	ShowFPS       bool
}

// DefaultConfig matches the working size and box size the detector was tuned with.
func DefaultConfig() Config {
	return Config{
		WorkWidth:     220,
		WorkHeight:    340,
		BoxWidth:      20,
		BoxHeight:     20,
		Interpolation: imaging.BiLinear,
		Thickness:     2,
		ShowFPS:       true,
	}
}

// Validate rejects settings the detector cannot run with.
func (c Config) Validate() error {
	if c.WorkWidth < 0 || c.WorkHeight < 0 {
		return fmt.Errorf("working size must not be negative, got %dx%d", c.WorkWidth, c.WorkHeight)
	}
	if c.BoxWidth <= 0 || c.BoxHeight <= 0 {
		return fmt.Errorf("%w: got %dx%d", grid.ErrInvalidBox, c.BoxWidth, c.BoxHeight)
	}
	return nil
}

// Result is the outcome of processing one frame.
type Result struct {
	Grid        grid.BoxGrid
	Mean        float64
	Highlighted []grid.Cell
	// Boxes are the highlighted cells in original-frame coordinates.
	Boxes []image.Rectangle
}

// Detector runs resize, partition, selection and mapping for one frame at
// a time. Its only state is the calibrated range, which never changes.
type Detector struct {
	cfg    Config
	rng    skin.ColorRange
	logger *zap.Logger
}

func NewDetector(cfg Config, rng skin.ColorRange, logger *zap.Logger) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{cfg: cfg, rng: rng, logger: logger.Named("detector")}
}

// Range returns the calibrated color range.
func (d *Detector) Range() skin.ColorRange { return d.rng }

// Config returns the processing parameters.
func (d *Detector) Config() Config { return d.cfg }

// Process computes the highlighted boxes of frame. frame is not modified.
func (d *Detector) Process(frame *image.RGBA) (Result, error) {
	work, err := imaging.Resize(frame, d.cfg.WorkWidth, d.cfg.WorkHeight, d.cfg.Interpolation)
	if err != nil {
		return Result{}, fmt.Errorf("resize: %w", err)
	}
	g, err := grid.Partition(work, d.cfg.BoxWidth, d.cfg.BoxHeight, d.rng)
	if err != nil {
		return Result{}, fmt.Errorf("partition: %w", err)
	}

	res := Result{
		Grid:        g,
		Mean:        grid.Mean(g),
		Highlighted: grid.SelectHighlighted(g),
	}
	if len(res.Highlighted) > 0 {
		sx, sy := grid.Scale(frame.Bounds().Size(), work.Bounds().Size())
		origin := frame.Bounds().Min
		res.Boxes = make([]image.Rectangle, len(res.Highlighted))
		for i, cell := range res.Highlighted {
			res.Boxes[i] = grid.MapToOriginal(cell, d.cfg.BoxWidth, d.cfg.BoxHeight, sx, sy).Add(origin)
		}
	}

	d.logger.Debug("frame processed",
		zap.Int("boxes", g.Len()),
		zap.Float64("mean", res.Mean),
		zap.Int("highlighted", len(res.Highlighted)))
	return res, nil
}

// Annotate draws the highlighted boxes and, when enabled, the FPS label onto frame.
func (d *Detector) Annotate(frame *image.RGBA, res Result, fps float64) {
	for _, box := range res.Boxes {
		imaging.DrawRect(frame, box, imaging.Green, d.cfg.Thickness)
	}
	if d.cfg.ShowFPS {
		imaging.DrawLabel(frame, frame.Bounds().Min.Add(image.Pt(10, 30)), fmt.Sprintf("FPS: %.2f", fps), imaging.Green)
	}
}
