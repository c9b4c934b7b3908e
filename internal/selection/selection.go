// Package selection tracks the rectangle a user drags over the calibration
// frame. The host owns a Selection value and feeds it pointer events; once
// finished, Rect yields the region handed to skin.Calibrate.
package selection

import (
	"fmt"
	"image"
	"strconv"
	"strings"
)

// Selection is the drag state: the corner where the drag began, the corner
// it currently ends at, and whether a drag is in progress.
type Selection struct {
	Anchor   image.Point
	Corner   image.Point
	Drawing  bool
	finished bool
}

// Press starts a new drag at p, discarding any previous rectangle.
func (s *Selection) Press(p image.Point) {
	s.Anchor = p
	s.Corner = p
	s.Drawing = true
	s.finished = false
}

// Release ends the drag at p.
func (s *Selection) Release(p image.Point) {
	if !s.Drawing {
		return
	}
	s.Corner = p
	s.Drawing = false
	s.finished = true
}

// Rect returns the completed rectangle with its corners ordered, whichever
// direction it was dragged in. ok is false until a drag completes.
func (s *Selection) Rect() (rect image.Rectangle, ok bool) {
	if !s.finished {
		return image.Rectangle{}, false
	}
	return image.Rectangle{Min: s.Anchor, Max: s.Corner}.Canon(), true
}

// FromRect returns a completed Selection covering r.
func FromRect(r image.Rectangle) Selection {
	var s Selection
	s.Press(r.Min)
	s.Release(r.Max)
	return s
}

// Parse reads "x1,y1,x2,y2" as two opposite corners in any order.
func Parse(s string) (Selection, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Selection{}, fmt.Errorf("region %q: want x1,y1,x2,y2", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Selection{}, fmt.Errorf("region %q: %w", s, err)
		}
		v[i] = n
	}
	var sel Selection
	sel.Press(image.Pt(v[0], v[1]))
	sel.Release(image.Pt(v[2], v[3]))
	return sel, nil
}
