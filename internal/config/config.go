package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the complete skingrid configuration file.
type Config struct {
	Work     SizeConfig     `yaml:"work"`          // working resolution frames are resized to
	Box      SizeConfig     `yaml:"box"`           // grid box size in working pixels
	Resample string         `yaml:"interpolation"` // bilinear, approx, nearest, catmullrom
	Camera   CameraConfig   `yaml:"camera"`
	Overlay  OverlayConfig  `yaml:"overlay"`
	Database DatabaseConfig `yaml:"database"`
	Publish  PublishConfig  `yaml:"publish"`
	DataDir  string         `yaml:"data_dir"` // snapshots and calibration files
}

// SizeConfig is a width/height pair.
type SizeConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// CameraConfig selects the capture device.
type CameraConfig struct {
	Device string `yaml:"device"` // device index, file path or URL
	Format string `yaml:"format"` // ffmpeg -f for the ffmpeg backend, e.g. v4l2
	Width  int    `yaml:"width"`  // requested capture size, 0 = device default
	Height int    `yaml:"height"`
}

// OverlayConfig controls what is drawn over displayed frames.
type OverlayConfig struct {
	Thickness int    `yaml:"thickness"`
	ShowFPS   bool   `yaml:"show_fps"`
	QuitKey   string `yaml:"quit_key"`
}

// DatabaseConfig points at the PostgreSQL session store.
type DatabaseConfig struct {
	URL         string `yaml:"url"`
	BatchFrames int    `yaml:"batch_frames"` // frame stats buffered per COPY
}

// PublishConfig points at the Redis server receiving per-frame events.
type PublishConfig struct {
	RedisAddr string `yaml:"redis_addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	Channel   string `yaml:"channel"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Work:     SizeConfig{Width: 220, Height: 340},
		Box:      SizeConfig{Width: 20, Height: 20},
		Resample: "bilinear",
		Camera:   CameraConfig{Device: "0"},
		Overlay:  OverlayConfig{Thickness: 2, ShowFPS: true, QuitKey: "q"},
		Database: DatabaseConfig{BatchFrames: 100},
		Publish:  PublishConfig{Channel: "skingrid:frames"},
		DataDir:  "data",
	}
}

// Load reads and parses a YAML configuration file on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
