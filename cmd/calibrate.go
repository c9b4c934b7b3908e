package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/andresmejia3/skingrid/internal/config"
	"github.com/andresmejia3/skingrid/internal/pipeline"
	"github.com/andresmejia3/skingrid/internal/utils"
	"github.com/andresmejia3/skingrid/internal/video"
	"github.com/spf13/cobra"
)

var (
	calibrateOpts Options
	calibrateOut  string
)

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Compute a skin color range from a region of one frame or image and save it",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		opts := calibrateOpts
		applyConfig(cmd, Cfg, &opts)
		if err := validateCalibrateFlags(&opts, calibrateOut); err != nil {
			return err
		}
		return runCalibrate(cmd.Context(), opts, calibrateOut)
	},
}

func init() {
	addSourceFlags(calibrateCmd, &calibrateOpts)
	calibrateCmd.Flags().StringVarP(&calibrateOut, "out", "o", "calibration.yaml", "Where to write the calibration file")
	rootCmd.AddCommand(calibrateCmd)
}

var stillExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".bmp": true, ".tif": true, ".tiff": true, ".webp": true,
}

func isStillImage(path string) bool {
	return stillExtensions[strings.ToLower(filepath.Ext(path))]
}

func validateCalibrateFlags(opts *Options, out string) error {
	if err := validateSourceFlags(opts); err != nil {
		return err
	}
	if out == "" {
		err := fmt.Errorf("--out must not be empty")
		utils.ShowError("Configuration Error", err, nil)
		return err
	}
	headless := opts.Backend == backendFFmpeg || isStillImage(opts.Input)
	if headless && opts.Region == "" {
		err := fmt.Errorf("no window is available for this input; pass --region")
		utils.ShowError("Configuration Error", err, nil)
		return err
	}
	return nil
}

func runCalibrate(ctx context.Context, opts Options, out string) error {
	var src pipeline.Source
	if isStillImage(opts.Input) {
		if _, err := os.Stat(opts.Input); err != nil {
			utils.ShowError("Input file does not exist", err, nil)
			return err
		}
		src = video.NewStills(opts.Input)
	} else {
		opts.NoWindow = true
		s, _, err := openSource(ctx, opts)
		if err != nil {
			utils.ShowError("Failed to open the frame source", err, nil)
			return err
		}
		src = s
	}
	defer src.Close()

	picker, closePicker, err := regionPicker(opts)
	if err != nil {
		utils.ShowError("Calibration setup failed", err, nil)
		return err
	}
	cal, err := pipeline.Calibrate(ctx, src, picker)
	closePicker()
	if err != nil {
		utils.ShowError("Calibration failed", err, nil)
		return err
	}

	file := config.CalibrationFile{
		Range:     cal.Range,
		Region:    [4]int{cal.Region.Min.X, cal.Region.Min.Y, cal.Region.Max.X, cal.Region.Max.Y},
		Source:    opts.Input,
		CreatedAt: time.Now().UTC(),
	}
	if err := config.SaveCalibration(out, file); err != nil {
		utils.ShowError("Failed to save calibration file", err, nil)
		return err
	}

	fmt.Printf("🎨 Skin color range: %s\n", cal.Range)
	fmt.Printf("💾 Saved to %s (use with: skingrid detect --range %s)\n", out, out)
	return nil
}
