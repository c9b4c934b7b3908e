package config

import (
	"fmt"

	"github.com/andresmejia3/skingrid/internal/imaging"
)

// Validate checks if the configuration is valid and fills in defaults for
// optional fields left empty.
func Validate(cfg *Config) error {
	// A zero working size is allowed: it produces an empty grid.
	if cfg.Work.Width < 0 || cfg.Work.Height < 0 {
		return fmt.Errorf("work size must not be negative, got %dx%d", cfg.Work.Width, cfg.Work.Height)
	}
	if cfg.Box.Width <= 0 || cfg.Box.Height <= 0 {
		return fmt.Errorf("box size must be positive, got %dx%d", cfg.Box.Width, cfg.Box.Height)
	}
	if _, err := imaging.ParseInterpolation(cfg.Resample); err != nil {
		return err
	}

	if cfg.Camera.Width < 0 || cfg.Camera.Height < 0 {
		return fmt.Errorf("camera size must not be negative")
	}
	if cfg.Camera.Device == "" {
		cfg.Camera.Device = "0"
	}

	if cfg.Overlay.Thickness <= 0 {
		cfg.Overlay.Thickness = 2
	}
	switch len([]rune(cfg.Overlay.QuitKey)) {
	case 0:
		cfg.Overlay.QuitKey = "q"
	case 1:
	default:
		return fmt.Errorf("overlay.quit_key must be a single character, got %q", cfg.Overlay.QuitKey)
	}

	if cfg.Database.BatchFrames <= 0 {
		cfg.Database.BatchFrames = 100
	}
	if cfg.Publish.Channel == "" {
		cfg.Publish.Channel = "skingrid:frames"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	return nil
}
