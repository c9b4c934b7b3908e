package video

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	"github.com/andresmejia3/skingrid/internal/imaging"
	"github.com/andresmejia3/skingrid/internal/types"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Stills serves decoded image files as frames, in the given order.
type Stills struct {
	paths []string
	next  int
}

// NewStills returns a source over the image files at paths.
func NewStills(paths ...string) *Stills {
	return &Stills{paths: paths}
}

// Next decodes the next file. After the last file it reports
// types.ErrFrameUnavailable wrapping io.EOF.
func (s *Stills) Next(ctx context.Context) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.next >= len(s.paths) {
		return nil, fmt.Errorf("%w: %w", types.ErrFrameUnavailable, io.EOF)
	}
	path := s.paths[s.next]
	s.next++
	img, err := DecodeFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrFrameUnavailable, err)
	}
	return img, nil
}

func (s *Stills) Close() error { return nil }

// DecodeFile reads any registered image format into an RGBA frame.
func DecodeFile(path string) (*image.RGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return imaging.ToRGBA(img), nil
}
