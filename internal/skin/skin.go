package skin

import (
	"errors"
	"fmt"
	"image"
	"math"

	"gonum.org/v1/gonum/stat"
)

// ErrInvalidRegion is returned when a calibration rectangle is empty or
// does not lie inside the frame.
var ErrInvalidRegion = errors.New("invalid calibration region")

// roundingSlack absorbs float noise so a bound that is mathematically an
// integer is not pushed one step inward.
const roundingSlack = 1e-9

// ColorRange is an inclusive per-channel band in R, G, B order.
type ColorRange struct {
	Lower [3]uint8 `yaml:"lower" json:"lower"`
	Upper [3]uint8 `yaml:"upper" json:"upper"`
}

// Contains reports whether every channel lies inside the band.
func (r ColorRange) Contains(red, green, blue uint8) bool {
	return red >= r.Lower[0] && red <= r.Upper[0] &&
		green >= r.Lower[1] && green <= r.Upper[1] &&
		blue >= r.Lower[2] && blue <= r.Upper[2]
}

// Valid reports whether Lower <= Upper on every channel.
func (r ColorRange) Valid() bool {
	for c := 0; c < 3; c++ {
		if r.Lower[c] > r.Upper[c] {
			return false
		}
	}
	return true
}

func (r ColorRange) String() string {
	return fmt.Sprintf("R[%d..%d] G[%d..%d] B[%d..%d]",
		r.Lower[0], r.Upper[0], r.Lower[1], r.Upper[1], r.Lower[2], r.Upper[2])
}

// Calibrate derives a one-sigma color band from the pixels of region.
//
// For each channel the population mean and standard deviation are computed
// and the band is [mean-std, mean+std] clamped to [0, 255]. The real-valued
// bounds are rounded inward, which keeps integer membership identical to the
// real band. A population std is always at least the distance from the mean
// to the nearest integer, so the rounded band is never empty.
func Calibrate(frame *image.RGBA, region image.Rectangle) (ColorRange, error) {
	if region.Empty() {
		return ColorRange{}, fmt.Errorf("%w: %v is empty", ErrInvalidRegion, region)
	}
	if !region.In(frame.Bounds()) {
		return ColorRange{}, fmt.Errorf("%w: %v is outside frame %v", ErrInvalidRegion, region, frame.Bounds())
	}

	n := region.Dx() * region.Dy()
	channels := [3][]float64{
		make([]float64, 0, n),
		make([]float64, 0, n),
		make([]float64, 0, n),
	}
	for y := region.Min.Y; y < region.Max.Y; y++ {
		off := frame.PixOffset(region.Min.X, y)
		for x := 0; x < region.Dx(); x++ {
			p := frame.Pix[off : off+3 : off+3]
			channels[0] = append(channels[0], float64(p[0]))
			channels[1] = append(channels[1], float64(p[1]))
			channels[2] = append(channels[2], float64(p[2]))
			off += 4
		}
	}

	var rng ColorRange
	for c := 0; c < 3; c++ {
		mean, std := stat.PopMeanStdDev(channels[c], nil)
		rng.Lower[c] = clampChannel(math.Ceil(mean - std - roundingSlack))
		rng.Upper[c] = clampChannel(math.Floor(mean + std + roundingSlack))
	}
	return rng, nil
}

func clampChannel(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}

// CountPixels returns how many pixels of region fall inside rng.
// This runs once per box per frame, so it walks Pix directly.
func CountPixels(region *image.RGBA, rng ColorRange) int {
	b := region.Bounds()
	if b.Empty() {
		return 0
	}
	lr, lg, lb := rng.Lower[0], rng.Lower[1], rng.Lower[2]
	ur, ug, ub := rng.Upper[0], rng.Upper[1], rng.Upper[2]

	count := 0
	rowLen := b.Dx() * 4
	for y := b.Min.Y; y < b.Max.Y; y++ {
		start := region.PixOffset(b.Min.X, y)
		row := region.Pix[start : start+rowLen : start+rowLen]
		for i := 0; i < len(row); i += 4 {
			r, g, bl := row[i], row[i+1], row[i+2]
			if r >= lr && r <= ur && g >= lg && g <= ug && bl >= lb && bl <= ub {
				count++
			}
		}
	}
	return count
}
