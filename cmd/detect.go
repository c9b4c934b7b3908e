package cmd

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/andresmejia3/skingrid/internal/config"
	"github.com/andresmejia3/skingrid/internal/imaging"
	"github.com/andresmejia3/skingrid/internal/pipeline"
	"github.com/andresmejia3/skingrid/internal/publish"
	"github.com/andresmejia3/skingrid/internal/selection"
	"github.com/andresmejia3/skingrid/internal/skin"
	"github.com/andresmejia3/skingrid/internal/store"
	"github.com/andresmejia3/skingrid/internal/types"
	"github.com/andresmejia3/skingrid/internal/utils"
	"github.com/andresmejia3/skingrid/internal/video"
	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	backendGoCV   = "gocv"
	backendFFmpeg = "ffmpeg"

	mainWindowTitle   = "Skin grid"
	selectWindowTitle = "Select skin region (Enter to confirm)"
)

// Options holds the configuration shared by the detect and calibrate commands.
type Options struct {
	Backend     string
	Input       string
	InputFormat string
	Region      string
	RangeFile   string
	SaveRange   string
	Output      string
	Record      bool
	Label       string
	PublishAddr string
	NoWindow    bool

	WorkWidth     int
	WorkHeight    int
	BoxWidth      int
	BoxHeight     int
	Interpolation string
}

var detectOpts Options

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Calibrate on the first frame, then highlight skin-dense boxes on every frame",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		opts := detectOpts
		applyConfig(cmd, Cfg, &opts)
		if err := validateDetectFlags(&opts); err != nil {
			return err
		}
		return runDetect(cmd.Context(), opts)
	},
}

func init() {
	addSourceFlags(detectCmd, &detectOpts)
	addGridFlags(detectCmd, &detectOpts)
	detectCmd.Flags().StringVar(&detectOpts.RangeFile, "range", "", "Load the color range from a calibration file instead of calibrating")
	detectCmd.Flags().StringVar(&detectOpts.SaveRange, "save-range", "", "Write the calibrated color range to this file")
	detectCmd.Flags().StringVarP(&detectOpts.Output, "output", "o", "", "Write the annotated video to this file")
	detectCmd.Flags().BoolVar(&detectOpts.Record, "record", false, "Record the session and per-frame statistics in PostgreSQL")
	detectCmd.Flags().StringVarP(&detectOpts.Label, "label", "l", "", "Label for the recorded session")
	detectCmd.Flags().StringVar(&detectOpts.PublishAddr, "publish", "", "Publish per-frame results to this Redis address (host:port)")
	detectCmd.Flags().BoolVar(&detectOpts.NoWindow, "no-window", false, "Do not open a preview window (gocv backend)")
	rootCmd.AddCommand(detectCmd)
}

func addSourceFlags(cmd *cobra.Command, opts *Options) {
	cmd.Flags().StringVarP(&opts.Backend, "backend", "b", backendGoCV, "Frame backend: gocv (camera + window) or ffmpeg (headless)")
	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "Camera index, video file, stream URL or device (default: camera.device from config)")
	cmd.Flags().StringVarP(&opts.InputFormat, "format", "f", "", "ffmpeg input format for devices, e.g. v4l2")
	cmd.Flags().StringVarP(&opts.Region, "region", "r", "", "Calibration rectangle x1,y1,x2,y2 (skips interactive selection)")
}

func addGridFlags(cmd *cobra.Command, opts *Options) {
	cmd.Flags().IntVar(&opts.WorkWidth, "work-width", 220, "Working width frames are resized to")
	cmd.Flags().IntVar(&opts.WorkHeight, "work-height", 340, "Working height frames are resized to")
	cmd.Flags().IntVar(&opts.BoxWidth, "box-width", 20, "Grid box width in working pixels")
	cmd.Flags().IntVar(&opts.BoxHeight, "box-height", 20, "Grid box height in working pixels")
	cmd.Flags().StringVar(&opts.Interpolation, "interpolation", "bilinear", "Resize interpolation: bilinear, approx, nearest, catmullrom")
}

// applyConfig fills options the user did not set on the command line from the config file.
func applyConfig(cmd *cobra.Command, cfg *config.Config, opts *Options) {
	if cfg == nil {
		return
	}
	unset := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && !f.Changed
	}
	if unset("work-width") {
		opts.WorkWidth = cfg.Work.Width
	}
	if unset("work-height") {
		opts.WorkHeight = cfg.Work.Height
	}
	if unset("box-width") {
		opts.BoxWidth = cfg.Box.Width
	}
	if unset("box-height") {
		opts.BoxHeight = cfg.Box.Height
	}
	if unset("interpolation") {
		opts.Interpolation = cfg.Resample
	}
	if unset("input") && opts.Input == "" {
		opts.Input = cfg.Camera.Device
	}
	if unset("format") && opts.InputFormat == "" {
		opts.InputFormat = cfg.Camera.Format
	}
	if unset("publish") && opts.PublishAddr == "" {
		opts.PublishAddr = cfg.Publish.RedisAddr
	}
}

// validateDetectFlags ensures all CLI arguments are valid before opening any device.
func validateDetectFlags(opts *Options) error {
	if err := validateSourceFlags(opts); err != nil {
		return err
	}
	if opts.WorkWidth < 0 || opts.WorkHeight < 0 {
		err := fmt.Errorf("must not be negative, got %dx%d", opts.WorkWidth, opts.WorkHeight)
		utils.ShowError("Invalid working size", err, nil)
		return err
	}
	if opts.BoxWidth <= 0 || opts.BoxHeight <= 0 {
		err := fmt.Errorf("must be positive, got %dx%d", opts.BoxWidth, opts.BoxHeight)
		utils.ShowError("Invalid box size", err, nil)
		return err
	}
	if _, err := imaging.ParseInterpolation(opts.Interpolation); err != nil {
		utils.ShowError("Configuration Error", err, nil)
		return err
	}

	if opts.RangeFile != "" {
		if _, err := os.Stat(opts.RangeFile); err != nil {
			utils.ShowError("Calibration file is not accessible", err, nil)
			return err
		}
	} else if opts.Backend == backendFFmpeg && opts.Region == "" {
		err := fmt.Errorf("the ffmpeg backend has no window to draw in; pass --region or --range")
		utils.ShowError("Configuration Error", err, nil)
		return err
	}

	if opts.Output != "" {
		// Prevent overwriting the input file, which corrupts it mid-read
		inAbs, _ := filepath.Abs(opts.Input)
		outAbs, _ := filepath.Abs(opts.Output)
		if inAbs == outAbs {
			err := fmt.Errorf("input and output paths must be different")
			utils.ShowError("Configuration Error", err, nil)
			return err
		}
	}
	return nil
}

func validateSourceFlags(opts *Options) error {
	if opts.Backend != backendGoCV && opts.Backend != backendFFmpeg {
		err := fmt.Errorf("invalid backend '%s'. Must be '%s' or '%s'", opts.Backend, backendGoCV, backendFFmpeg)
		utils.ShowError("Configuration Error", err, nil)
		return err
	}
	if opts.Input == "" {
		err := fmt.Errorf("no input given and no camera.device configured")
		utils.ShowError("Configuration Error", err, nil)
		return err
	}
	if opts.Region != "" {
		if _, err := selection.Parse(opts.Region); err != nil {
			utils.ShowError("Invalid calibration region", err, nil)
			return err
		}
	}
	return nil
}

// openSource opens the frame source for opts. For the gocv backend it also
// returns the preview window unless it was disabled.
func openSource(ctx context.Context, opts Options) (pipeline.Source, Window, error) {
	switch opts.Backend {
	case backendFFmpeg:
		r, err := video.NewReader(ctx, opts.Input, video.ReaderOptions{
			InputFormat: opts.InputFormat,
			Width:       Cfg.Camera.Width,
			Height:      Cfg.Camera.Height,
		})
		if err != nil {
			return nil, nil, err
		}
		return r, nil, nil
	default:
		cam, err := openCV.openCamera(opts.Input, Cfg.Camera.Width, Cfg.Camera.Height)
		if err != nil {
			return nil, nil, err
		}
		if opts.NoWindow {
			return cam, nil, nil
		}
		quit := []rune(Cfg.Overlay.QuitKey)[0]
		win, err := openCV.newWindow(mainWindowTitle, quit)
		if err != nil {
			cam.Close()
			return nil, nil, err
		}
		return cam, win, nil
	}
}

// regionPicker returns the fixed --region selection or, without one, an
// interactive window. The returned close func releases the window.
func regionPicker(opts Options) (pipeline.RegionPicker, func(), error) {
	if opts.Region != "" {
		sel, err := selection.Parse(opts.Region)
		if err != nil {
			return nil, nil, err
		}
		return pipeline.FixedRegion(sel), func() {}, nil
	}
	if opts.Backend != backendGoCV {
		return nil, nil, fmt.Errorf("interactive selection needs the gocv backend")
	}
	win, err := openCV.newWindow(selectWindowTitle, 0)
	if err != nil {
		return nil, nil, err
	}
	return win, func() { win.Close() }, nil
}

// calibrateSource runs the one-time calibration on the first frame of src,
// saves a snapshot of the chosen region, and optionally the range file.
func calibrateSource(ctx context.Context, src pipeline.Source, opts Options, sessionID string) (pipeline.Calibration, error) {
	picker, closePicker, err := regionPicker(opts)
	if err != nil {
		utils.ShowError("Calibration setup failed", err, nil)
		return pipeline.Calibration{}, err
	}
	fmt.Fprintln(os.Stderr, "🎯 Select the skin region on the first frame...")
	cal, err := pipeline.Calibrate(ctx, src, picker)
	closePicker()
	if err != nil {
		switch {
		case errors.Is(err, skin.ErrInvalidRegion), errors.Is(err, pipeline.ErrNoRegion):
			utils.ShowError("Calibration rectangle was not usable", err, nil)
		case pipeline.IsFrameUnavailable(err):
			utils.ShowError("Failed to capture the first frame", err, nil)
		default:
			utils.ShowError("Calibration failed", err, nil)
		}
		return cal, err
	}
	fmt.Fprintf(os.Stderr, "🎨 Skin color range: %s (region %v)\n", cal.Range, cal.Region)

	snapshot := imaging.Clone(cal.Frame)
	imaging.DrawRect(snapshot, cal.Region, imaging.Green, 2)
	snapPath := filepath.Join(Cfg.DataDir, "snapshots", sessionID+".png")
	if err := imaging.SavePNG(snapPath, snapshot); err != nil {
		fmt.Fprintf(os.Stderr, "⚠️  Failed to save calibration snapshot: %v\n", err)
	}

	if opts.SaveRange != "" {
		file := config.CalibrationFile{
			Range:     cal.Range,
			Region:    [4]int{cal.Region.Min.X, cal.Region.Min.Y, cal.Region.Max.X, cal.Region.Max.Y},
			Source:    opts.Input,
			CreatedAt: time.Now().UTC(),
		}
		if err := config.SaveCalibration(opts.SaveRange, file); err != nil {
			utils.ShowError("Failed to save calibration file", err, nil)
			return cal, err
		}
		fmt.Fprintf(os.Stderr, "💾 Calibration saved to %s\n", opts.SaveRange)
	}
	return cal, nil
}

// runDetect orchestrates a session: source, calibration, sinks, and the capture loop.
func runDetect(ctx context.Context, opts Options) error {
	sessionID := uuid.NewString()
	logger := Logger.With(zap.String("session", shortID(sessionID)))

	src, window, err := openSource(ctx, opts)
	if err != nil {
		utils.ShowError("Failed to open the frame source", err, nil)
		return err
	}
	defer src.Close()
	if window != nil {
		defer window.Close()
	}

	// 1. Color range: saved file or calibration on the first frame
	var rng skin.ColorRange
	if opts.RangeFile != "" {
		file, err := config.LoadCalibration(opts.RangeFile)
		if err != nil {
			utils.ShowError("Failed to load calibration file", err, nil)
			return err
		}
		rng = file.Range
		fmt.Fprintf(os.Stderr, "🎨 Loaded skin color range: %s\n", rng)
	} else {
		cal, err := calibrateSource(ctx, src, opts, sessionID)
		if err != nil {
			return err
		}
		rng = cal.Range
	}

	interp, _ := imaging.ParseInterpolation(opts.Interpolation)
	pcfg := pipeline.Config{
		WorkWidth:     opts.WorkWidth,
		WorkHeight:    opts.WorkHeight,
		BoxWidth:      opts.BoxWidth,
		BoxHeight:     opts.BoxHeight,
		Interpolation: interp,
		Thickness:     Cfg.Overlay.Thickness,
		ShowFPS:       Cfg.Overlay.ShowFPS,
	}
	if err := pcfg.Validate(); err != nil {
		utils.ShowError("Configuration Error", err, nil)
		return err
	}
	detector := pipeline.NewDetector(pcfg, rng, logger)
	logger.Debug("detector ready",
		zap.Stringer("range", detector.Range()),
		zap.Int("work_width", detector.Config().WorkWidth),
		zap.Int("work_height", detector.Config().WorkHeight))

	// 2. Sinks
	var sinks []pipeline.Sink
	if window != nil {
		sinks = append(sinks, window)
	}

	var writer *video.Writer
	if opts.Output != "" {
		fps := 30.0
		if opts.Backend == backendFFmpeg {
			if probed, err := utils.GetVideoFPS(ctx, opts.Input); err == nil {
				fps = probed
			}
		}
		writer = video.NewWriter(ctx, opts.Output, fps)
		sinks = append(sinks, writer)
	}

	var recorder *store.Recorder
	if opts.Record {
		db, err := openStore(ctx)
		if err != nil {
			utils.ShowError("Session recording unavailable", err, nil)
			return err
		}
		if err := db.CreateSession(ctx, sessionInfo(sessionID, opts, detector)); err != nil {
			utils.ShowError("Failed to register session", err, nil)
			return err
		}
		recorder = store.NewRecorder(db, sessionID, Cfg.Database.BatchFrames)
		sinks = append(sinks, recorder)
	}

	if opts.PublishAddr != "" {
		client, err := publish.Connect(ctx, opts.PublishAddr, Cfg.Publish.Password, Cfg.Publish.DB)
		if err != nil {
			utils.ShowError("Failed to connect to Redis", err, nil)
			return err
		}
		defer client.Close()
		sinks = append(sinks, publish.New(client, Cfg.Publish.Channel))
	}

	if window == nil {
		sinks = append(sinks, newProgressSink(ctx, opts))
	}

	// 3. Capture loop
	dcfg := detector.Config()
	fmt.Fprintf(os.Stderr, "📼 Session %s: %dx%d working size, %dx%d boxes\n",
		shortID(sessionID), dcfg.WorkWidth, dcfg.WorkHeight, dcfg.BoxWidth, dcfg.BoxHeight)
	if window != nil {
		fmt.Fprintf(os.Stderr, "⌨️  Press '%s' in the preview window to stop.\n", Cfg.Overlay.QuitKey)
	}

	runner := &pipeline.Runner{
		Source:    src,
		Detector:  detector,
		Sinks:     sinks,
		SessionID: sessionID,
		Logger:    logger,
	}
	summary, err := runner.Run(ctx)
	if err != nil {
		reader, fromFFmpeg := src.(*video.Reader)
		switch {
		case errors.Is(err, io.EOF):
			fmt.Fprintln(os.Stderr, "\n🏁 End of stream.")
		case pipeline.IsFrameUnavailable(err) && fromFFmpeg:
			utils.ShowError("Decoder failed", err, reader.Cmd())
			printSummary(sessionID, summary, recorder)
			return err
		case pipeline.IsFrameUnavailable(err):
			fmt.Fprintf(os.Stderr, "\n⚠️  %v\n", err)
		default:
			var procLogs *utils.SafeCommand
			if writer != nil {
				procLogs = writer.Cmd()
			}
			utils.ShowError("Session aborted", err, procLogs)
			return err
		}
	}

	printSummary(sessionID, summary, recorder)
	return nil
}

// sessionInfo describes the session about to be recorded.
func sessionInfo(id string, opts Options, d *pipeline.Detector) types.SessionInfo {
	cfg, rng := d.Config(), d.Range()
	info := types.SessionInfo{
		ID:         id,
		Label:      opts.Label,
		Source:     opts.Input,
		StartedAt:  time.Now(),
		WorkWidth:  cfg.WorkWidth,
		WorkHeight: cfg.WorkHeight,
		BoxWidth:   cfg.BoxWidth,
		BoxHeight:  cfg.BoxHeight,
	}
	for c := 0; c < 3; c++ {
		info.Lower[c] = int(rng.Lower[c])
		info.Upper[c] = int(rng.Upper[c])
	}
	return info
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func printSummary(sessionID string, s pipeline.Summary, recorder *store.Recorder) {
	fmt.Fprintf(os.Stderr, "\n---------------------------------------------------------\n")
	fmt.Fprintf(os.Stderr, "📊 SESSION SUMMARY (%s)\n", sessionID)
	fmt.Fprintf(os.Stderr, "---------------------------------------------------------\n")
	fmt.Fprintf(os.Stderr, "🖼️  Frames processed:        %d\n", s.Frames)
	fmt.Fprintf(os.Stderr, "⏭️  Frames skipped:          %d\n", s.Skipped)
	fmt.Fprintf(os.Stderr, "⏱️  Average FPS:             %.2f\n", s.AvgFPS)
	fmt.Fprintf(os.Stderr, "🟩 Avg highlighted boxes:   %.2f\n", s.AvgHighlighted)
	if recorder != nil {
		fmt.Fprintf(os.Stderr, "🗄️  Frames recorded:         %d\n", recorder.Written())
	}
	fmt.Fprintf(os.Stderr, "---------------------------------------------------------\n")
}

// progressSink advances a progress bar per processed frame.
type progressSink struct {
	bar *progressbar.ProgressBar
}

func newProgressSink(ctx context.Context, opts Options) *progressSink {
	var total int64 = -1 // spinner mode for live sources
	if opts.Backend == backendFFmpeg && opts.InputFormat == "" {
		if n := utils.GetTotalFrames(ctx, opts.Input); n > 0 {
			total = int64(n)
		}
	}
	bar := progressbar.NewOptions64(total,
		progressbar.OptionSetDescription("🔍 Detecting"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
	)
	return &progressSink{bar: bar}
}

func (p *progressSink) Consume(context.Context, *image.RGBA, types.FrameStats) error {
	return p.bar.Add(1)
}

func (p *progressSink) Flush(context.Context) error {
	return p.bar.Finish()
}
