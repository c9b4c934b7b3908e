package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"testing"
	"time"

	"github.com/andresmejia3/skingrid/internal/grid"
	"github.com/andresmejia3/skingrid/internal/imaging"
	"github.com/andresmejia3/skingrid/internal/selection"
	"github.com/andresmejia3/skingrid/internal/skin"
	"github.com/andresmejia3/skingrid/internal/types"
)

var (
	skinTone  = color.RGBA{R: 200, G: 150, B: 120, A: 255}
	skinRange = skin.ColorRange{Lower: [3]uint8{190, 140, 110}, Upper: [3]uint8{210, 160, 130}}
)

// handFrame is a black w x h frame with a skin-colored patch.
func handFrame(w, h int, patch image.Rectangle) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA{A: 255}
			if image.Pt(x, y).In(patch) {
				c = skinTone
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// MockSource replays frames and then reports end of stream.
type MockSource struct {
	Frames []*image.RGBA
	Err    error
	Closed bool
	pos    int
}

func (m *MockSource) Next(ctx context.Context) (*image.RGBA, error) {
	if m.pos >= len(m.Frames) {
		if m.Err != nil {
			return nil, m.Err
		}
		return nil, fmt.Errorf("%w: %w", types.ErrFrameUnavailable, io.EOF)
	}
	f := m.Frames[m.pos]
	m.pos++
	return f, nil
}

func (m *MockSource) Close() error {
	m.Closed = true
	return nil
}

// MockSink records everything it receives.
type MockSink struct {
	Stats   []types.FrameStats
	Flushed int
	Err     error
	// QuitAfter returns ErrQuit once this many frames were consumed.
	QuitAfter int
}

func (m *MockSink) Consume(_ context.Context, _ *image.RGBA, stats types.FrameStats) error {
	m.Stats = append(m.Stats, stats)
	if m.Err != nil {
		return m.Err
	}
	if m.QuitAfter > 0 && len(m.Stats) >= m.QuitAfter {
		return ErrQuit
	}
	return nil
}

func (m *MockSink) Flush(context.Context) error {
	m.Flushed++
	return nil
}

// steppingClock advances by step on every call.
func steppingClock(step time.Duration) func() time.Time {
	t := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(step)
		return t
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.WorkWidth, cfg.WorkHeight = 40, 40
	cfg.BoxWidth, cfg.BoxHeight = 10, 10
	cfg.ShowFPS = false
	return cfg
}

func TestDetectorProcess(t *testing.T) {
	// 80x80 frame, patch covering the top-left 20x20 original pixels, which is
	// the top-left 10x10 working box at a 2x downscale.
	frame := handFrame(80, 80, image.Rect(0, 0, 20, 20))
	d := NewDetector(testConfig(), skinRange, nil)

	res, err := d.Process(frame)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if res.Grid.Rows != 4 || res.Grid.Cols != 4 {
		t.Fatalf("grid = %dx%d, want 4x4", res.Grid.Rows, res.Grid.Cols)
	}
	if len(res.Highlighted) != 1 || res.Highlighted[0] != (grid.Cell{Row: 0, Col: 0}) {
		t.Fatalf("Highlighted = %v, want [(0,0)]", res.Highlighted)
	}
	if len(res.Boxes) != 1 || res.Boxes[0] != image.Rect(0, 0, 20, 20) {
		t.Errorf("Boxes = %v, want [(0,0)-(20,20)]", res.Boxes)
	}
}

func TestDetectorProcessDoesNotModifyFrame(t *testing.T) {
	frame := handFrame(80, 80, image.Rect(0, 0, 20, 20))
	before := imaging.Clone(frame)
	d := NewDetector(testConfig(), skinRange, nil)

	if _, err := d.Process(frame); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	for i := range frame.Pix {
		if frame.Pix[i] != before.Pix[i] {
			t.Fatalf("Process modified the frame at byte %d", i)
		}
	}
}

func TestDetectorEmptyWorkingSize(t *testing.T) {
	cfg := testConfig()
	cfg.WorkWidth, cfg.WorkHeight = 0, 0
	d := NewDetector(cfg, skinRange, nil)

	res, err := d.Process(handFrame(40, 40, image.Rect(0, 0, 40, 40)))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if res.Grid.Len() != 0 || len(res.Highlighted) != 0 || len(res.Boxes) != 0 {
		t.Errorf("result = %+v, want empty", res)
	}
}

func TestDetectorAnnotate(t *testing.T) {
	frame := handFrame(80, 80, image.Rectangle{})
	d := NewDetector(testConfig(), skinRange, nil)

	d.Annotate(frame, Result{Boxes: []image.Rectangle{image.Rect(20, 20, 40, 40)}}, 0)
	if frame.RGBAAt(20, 25) != imaging.Green || frame.RGBAAt(21, 25) != imaging.Green {
		t.Error("box outline should be two pixels wide")
	}
	if frame.RGBAAt(30, 30) == imaging.Green {
		t.Error("box interior should not be filled")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"Defaults", func(*Config) {}, false},
		{"Zero working size", func(c *Config) { c.WorkWidth, c.WorkHeight = 0, 0 }, false},
		{"Negative working size", func(c *Config) { c.WorkHeight = -1 }, true},
		{"Zero box", func(c *Config) { c.BoxWidth = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRunnerProcessesUntilEndOfStream(t *testing.T) {
	frames := []*image.RGBA{
		handFrame(80, 80, image.Rect(0, 0, 20, 20)),
		handFrame(80, 80, image.Rect(60, 60, 80, 80)),
		handFrame(80, 80, image.Rectangle{}),
	}
	src := &MockSource{Frames: frames}
	sink := &MockSink{}
	r := &Runner{
		Source:    src,
		Detector:  NewDetector(testConfig(), skinRange, nil),
		Sinks:     []Sink{sink},
		SessionID: "session-1",
		Now:       steppingClock(100 * time.Millisecond),
	}

	sum, err := r.Run(context.Background())
	if !errors.Is(err, types.ErrFrameUnavailable) || !errors.Is(err, io.EOF) {
		t.Fatalf("Run() error = %v, want end of stream", err)
	}
	if sum.Frames != 3 || sum.Skipped != 0 {
		t.Errorf("summary = %+v, want 3 frames", sum)
	}
	if sink.Flushed != 1 {
		t.Errorf("sink flushed %d times, want 1", sink.Flushed)
	}
	if len(sink.Stats) != 3 {
		t.Fatalf("sink saw %d frames, want 3", len(sink.Stats))
	}

	first, second, third := sink.Stats[0], sink.Stats[1], sink.Stats[2]
	if first.SessionID != "session-1" || first.Index != 1 || third.Index != 3 {
		t.Errorf("unexpected identity fields: %+v", first)
	}
	if len(first.Highlighted) != 1 || first.Highlighted[0] != 0 {
		t.Errorf("frame 1 highlighted = %v, want [0]", first.Highlighted)
	}
	if len(second.Highlighted) != 1 || second.Highlighted[0] != 15 {
		t.Errorf("frame 2 highlighted = %v, want [15]", second.Highlighted)
	}
	if len(third.Highlighted) != 0 {
		t.Errorf("frame 3 highlighted = %v, want none", third.Highlighted)
	}
	// The meter starts one clock step before the first frame; afterwards each
	// frame takes two clock reads, so ticks are 200ms apart.
	wantFPS := []float64{10, 5, 5}
	for i, s := range sink.Stats {
		if s.FPS < wantFPS[i]-0.01 || s.FPS > wantFPS[i]+0.01 {
			t.Errorf("frame %d FPS = %v, want %v", i+1, s.FPS, wantFPS[i])
		}
	}
	if sum.AvgHighlighted < 0.66 || sum.AvgHighlighted > 0.67 {
		t.Errorf("AvgHighlighted = %v, want 2/3", sum.AvgHighlighted)
	}
}

func TestRunnerStopsOnQuit(t *testing.T) {
	frames := make([]*image.RGBA, 10)
	for i := range frames {
		frames[i] = handFrame(40, 40, image.Rectangle{})
	}
	sink := &MockSink{QuitAfter: 4}
	r := &Runner{
		Source:   &MockSource{Frames: frames},
		Detector: NewDetector(testConfig(), skinRange, nil),
		Sinks:    []Sink{sink},
	}

	sum, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v, want nil on quit", err)
	}
	if sum.Frames != 4 {
		t.Errorf("Frames = %d, want 4", sum.Frames)
	}
	if sink.Flushed != 1 {
		t.Errorf("sink flushed %d times, want 1", sink.Flushed)
	}
}

func TestRunnerSourceFailure(t *testing.T) {
	camErr := fmt.Errorf("%w: camera did not send a frame", types.ErrFrameUnavailable)
	r := &Runner{
		Source:   &MockSource{Err: camErr},
		Detector: NewDetector(testConfig(), skinRange, nil),
	}

	sum, err := r.Run(context.Background())
	if !IsFrameUnavailable(err) {
		t.Fatalf("Run() error = %v, want frame unavailable", err)
	}
	if errors.Is(err, io.EOF) {
		t.Error("a camera failure should not look like end of stream")
	}
	if sum.Frames != 0 {
		t.Errorf("Frames = %d, want 0", sum.Frames)
	}
}

func TestRunnerSkipsFailedFrames(t *testing.T) {
	cfg := testConfig()
	cfg.BoxWidth = 0 // every partition fails
	sink := &MockSink{}
	r := &Runner{
		Source:   &MockSource{Frames: []*image.RGBA{handFrame(20, 20, image.Rectangle{}), handFrame(20, 20, image.Rectangle{})}},
		Detector: NewDetector(cfg, skinRange, nil),
		Sinks:    []Sink{sink},
	}

	sum, err := r.Run(context.Background())
	if !errors.Is(err, io.EOF) {
		t.Fatalf("Run() error = %v, want end of stream", err)
	}
	if sum.Skipped != 2 || sum.Frames != 0 || len(sink.Stats) != 0 {
		t.Errorf("summary = %+v, sink saw %d; want 2 skipped", sum, len(sink.Stats))
	}
}

func TestRunnerSinkError(t *testing.T) {
	boom := errors.New("disk full")
	r := &Runner{
		Source:   &MockSource{Frames: []*image.RGBA{handFrame(20, 20, image.Rectangle{})}},
		Detector: NewDetector(testConfig(), skinRange, nil),
		Sinks:    []Sink{&MockSink{Err: boom}},
	}

	_, err := r.Run(context.Background())
	if !errors.Is(err, boom) {
		t.Errorf("Run() error = %v, want %v", err, boom)
	}
}

func TestRunnerCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sink := &MockSink{}
	r := &Runner{
		Source:   &MockSource{Frames: []*image.RGBA{handFrame(20, 20, image.Rectangle{})}},
		Detector: NewDetector(testConfig(), skinRange, nil),
		Sinks:    []Sink{sink},
	}

	sum, err := r.Run(ctx)
	if err != nil {
		t.Fatalf("Run() error = %v, want nil on cancellation", err)
	}
	if sum.Frames != 0 || sink.Flushed != 1 {
		t.Errorf("summary = %+v, flushed %d", sum, sink.Flushed)
	}
}

func TestMeter(t *testing.T) {
	var m Meter
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	if fps := m.Tick(base); fps != 0 {
		t.Errorf("Tick before Start = %v, want 0", fps)
	}

	m.Start(base)
	if fps := m.Tick(base.Add(50 * time.Millisecond)); fps < 19.99 || fps > 20.01 {
		t.Errorf("Tick after 50ms = %v, want 20", fps)
	}
	if fps := m.Tick(base.Add(50 * time.Millisecond)); fps != 0 {
		t.Errorf("Tick with no elapsed time = %v, want 0", fps)
	}
}

func TestCalibrate(t *testing.T) {
	frame := handFrame(40, 40, image.Rect(10, 10, 30, 30))
	src := &MockSource{Frames: []*image.RGBA{frame}}
	sel, err := selection.Parse("12,12,28,28")
	if err != nil {
		t.Fatal(err)
	}

	cal, err := Calibrate(context.Background(), src, FixedRegion(sel))
	if err != nil {
		t.Fatalf("Calibrate failed: %v", err)
	}
	if cal.Region != image.Rect(12, 12, 28, 28) {
		t.Errorf("Region = %v", cal.Region)
	}
	want := skin.ColorRange{Lower: [3]uint8{200, 150, 120}, Upper: [3]uint8{200, 150, 120}}
	if cal.Range != want {
		t.Errorf("Range = %v, want %v", cal.Range, want)
	}
	if cal.Frame != frame {
		t.Error("Calibration should keep the captured frame")
	}
}

func TestCalibrateErrors(t *testing.T) {
	frame := handFrame(40, 40, image.Rectangle{})
	outside, _ := selection.Parse("30,30,50,50")

	tests := []struct {
		name   string
		src    *MockSource
		picker RegionPicker
		check  func(error) bool
	}{
		{
			name:   "No frame",
			src:    &MockSource{},
			picker: FixedRegion(outside),
			check:  IsFrameUnavailable,
		},
		{
			name:   "Unfinished selection",
			src:    &MockSource{Frames: []*image.RGBA{frame}},
			picker: FixedRegion(selection.Selection{}),
			check:  func(err error) bool { return errors.Is(err, ErrNoRegion) },
		},
		{
			name:   "Region outside frame",
			src:    &MockSource{Frames: []*image.RGBA{frame}},
			picker: FixedRegion(outside),
			check:  func(err error) bool { return errors.Is(err, skin.ErrInvalidRegion) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Calibrate(context.Background(), tt.src, tt.picker)
			if !tt.check(err) {
				t.Errorf("Calibrate() error = %v", err)
			}
		})
	}
}
