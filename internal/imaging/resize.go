package imaging

import (
	"fmt"
	"image"
	"strings"

	"golang.org/x/image/draw"
)

// Interpolation names a resampling method for Resize.
type Interpolation string

const (
	// BiLinear averages over the whole source footprint when shrinking,
	// which behaves like area resampling for the downscales used here.
	BiLinear   Interpolation = "bilinear"
	Approx     Interpolation = "approx"
	Nearest    Interpolation = "nearest"
	CatmullRom Interpolation = "catmullrom"
)

// ParseInterpolation accepts one of the Interpolation names, case-insensitively.
func ParseInterpolation(s string) (Interpolation, error) {
	switch in := Interpolation(strings.ToLower(strings.TrimSpace(s))); in {
	case BiLinear, Approx, Nearest, CatmullRom:
		return in, nil
	case "area", "":
		return BiLinear, nil
	default:
		return "", fmt.Errorf("unknown interpolation %q (use bilinear, approx, nearest, catmullrom)", s)
	}
}

func (in Interpolation) interpolator() draw.Interpolator {
	switch in {
	case Nearest:
		return draw.NearestNeighbor
	case Approx:
		return draw.ApproxBiLinear
	case CatmullRom:
		return draw.CatmullRom
	default:
		return draw.BiLinear
	}
}

// Resize resamples src to exactly width x height. The aspect ratio is not
// preserved. A zero dimension yields an empty image.
func Resize(src *image.RGBA, width, height int, in Interpolation) (*image.RGBA, error) {
	if width < 0 || height < 0 {
		return nil, fmt.Errorf("invalid resize target %dx%d", width, height)
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	if dst.Bounds().Empty() || src.Bounds().Empty() {
		return dst, nil
	}
	in.interpolator().Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst, nil
}

// ToRGBA returns img as an *image.RGBA with its origin at (0,0), converting
// when needed.
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// Clone returns a copy of img that shares no pixel memory with it.
func Clone(img *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(img.Bounds())
	draw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, draw.Src)
	return dst
}
