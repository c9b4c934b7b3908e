// Package grid splits a frame into fixed-size boxes, counts skin pixels per
// box, selects the boxes above the frame mean, and maps them back to the
// resolution of the original frame.
package grid

import (
	"errors"
	"fmt"
	"image"
	"iter"

	"github.com/andresmejia3/skingrid/internal/skin"
)

// ErrInvalidBox is returned for non-positive box dimensions.
var ErrInvalidBox = errors.New("box dimensions must be positive")

// Cell addresses one box by row and column.
type Cell struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// BoxGrid holds one skin-pixel count per box in row-major order.
type BoxGrid struct {
	Rows   int
	Cols   int
	Counts []int
}

// Len returns the number of boxes.
func (g BoxGrid) Len() int { return len(g.Counts) }

// At returns the count of the box at (row, col).
func (g BoxGrid) At(row, col int) int { return g.Counts[row*g.Cols+col] }

// Table returns the counts as one slice per row. Rows share storage with g.
func (g BoxGrid) Table() [][]int {
	table := make([][]int, g.Rows)
	for r := range table {
		table[r] = g.Counts[r*g.Cols : (r+1)*g.Cols : (r+1)*g.Cols]
	}
	return table
}

// Dims returns the grid dimensions for a frame of the given size.
func Dims(size image.Point, boxW, boxH int) (rows, cols int) {
	if size.X <= 0 || size.Y <= 0 {
		return 0, 0
	}
	return ceilDiv(size.Y, boxH), ceilDiv(size.X, boxW)
}

func ceilDiv(a, b int) int { return (a + b - 1) / b }

// Boxes yields every box of bounds in stepping order: top to bottom, left
// to right, starting at bounds.Min. Boxes on the right and bottom edges are
// cut short when the bounds are not an exact multiple of the box size.
func Boxes(bounds image.Rectangle, boxW, boxH int) iter.Seq2[Cell, image.Rectangle] {
	return func(yield func(Cell, image.Rectangle) bool) {
		if boxW <= 0 || boxH <= 0 {
			return
		}
		for row, y := 0, bounds.Min.Y; y < bounds.Max.Y; row, y = row+1, y+boxH {
			for col, x := 0, bounds.Min.X; x < bounds.Max.X; col, x = col+1, x+boxW {
				box := image.Rect(x, y, x+boxW, y+boxH).Intersect(bounds)
				if !yield(Cell{Row: row, Col: col}, box) {
					return
				}
			}
		}
	}
}

// Partition counts the pixels of each box of frame that fall inside rng.
// Nothing is cached between calls.
func Partition(frame *image.RGBA, boxW, boxH int, rng skin.ColorRange) (BoxGrid, error) {
	if boxW <= 0 || boxH <= 0 {
		return BoxGrid{}, fmt.Errorf("%w: got %dx%d", ErrInvalidBox, boxW, boxH)
	}
	bounds := frame.Bounds()
	rows, cols := Dims(bounds.Size(), boxW, boxH)
	g := BoxGrid{Rows: rows, Cols: cols, Counts: make([]int, 0, rows*cols)}

	for _, box := range Boxes(bounds, boxW, boxH) {
		sub := frame.SubImage(box).(*image.RGBA)
		g.Counts = append(g.Counts, skin.CountPixels(sub, rng))
	}
	return g, nil
}

// Mean is the arithmetic mean of all counts, or 0 for an empty grid.
func Mean(g BoxGrid) float64 {
	if len(g.Counts) == 0 {
		return 0
	}
	sum := 0
	for _, c := range g.Counts {
		sum += c
	}
	return float64(sum) / float64(len(g.Counts))
}

// SelectHighlighted returns the cells whose count is strictly greater than
// the grid mean, in row-major order. A count equal to the mean is not
// highlighted.
func SelectHighlighted(g BoxGrid) []Cell {
	mean := Mean(g)
	var cells []Cell
	for i, c := range g.Counts {
		if float64(c) > mean {
			cells = append(cells, Cell{Row: i / g.Cols, Col: i % g.Cols})
		}
	}
	return cells
}

// Scale returns the factors mapping resized coordinates back to the
// original frame. An empty resized dimension yields a zero factor.
func Scale(original, resized image.Point) (scaleX, scaleY float64) {
	if resized.X > 0 {
		scaleX = float64(original.X) / float64(resized.X)
	}
	if resized.Y > 0 {
		scaleY = float64(original.Y) / float64(resized.Y)
	}
	return scaleX, scaleY
}

// MapToOriginal converts a cell of the resized grid into a rectangle in
// original-frame pixels. Corners are truncated toward zero.
func MapToOriginal(cell Cell, boxW, boxH int, scaleX, scaleY float64) image.Rectangle {
	return image.Rect(
		int(float64(cell.Col*boxW)*scaleX),
		int(float64(cell.Row*boxH)*scaleY),
		int(float64((cell.Col+1)*boxW)*scaleX),
		int(float64((cell.Row+1)*boxH)*scaleY),
	)
}
