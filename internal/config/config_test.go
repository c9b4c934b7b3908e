package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/andresmejia3/skingrid/internal/skin"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") failed: %v", err)
	}
	if cfg.Work != (SizeConfig{Width: 220, Height: 340}) || cfg.Box != (SizeConfig{Width: 20, Height: 20}) {
		t.Errorf("unexpected default sizes: work=%v box=%v", cfg.Work, cfg.Box)
	}
	if cfg.Overlay.QuitKey != "q" || !cfg.Overlay.ShowFPS || cfg.Overlay.Thickness != 2 {
		t.Errorf("unexpected overlay defaults: %+v", cfg.Overlay)
	}
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := writeFile(t, "skingrid.yaml", `
work:
  width: 320
  height: 240
interpolation: nearest
camera:
  device: /dev/video2
  format: v4l2
overlay:
  show_fps: false
database:
  url: postgres://db:5432/skingrid
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Work.Width != 320 || cfg.Work.Height != 240 {
		t.Errorf("Work = %v", cfg.Work)
	}
	if cfg.Box.Width != 20 || cfg.Box.Height != 20 {
		t.Errorf("Box should keep its default, got %v", cfg.Box)
	}
	if cfg.Resample != "nearest" || cfg.Camera.Device != "/dev/video2" || cfg.Camera.Format != "v4l2" {
		t.Errorf("unexpected values: %+v", cfg)
	}
	if cfg.Overlay.ShowFPS {
		t.Error("show_fps: false was not applied")
	}
	if cfg.Overlay.QuitKey != "q" || cfg.Database.BatchFrames != 100 {
		t.Errorf("defaults lost: quit=%q batch=%d", cfg.Overlay.QuitKey, cfg.Database.BatchFrames)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"Bad YAML", "work: [", "failed to parse config"},
		{"Negative work", "work: {width: -1, height: 10}", "work size"},
		{"Zero box", "box: {width: 0, height: 20}", "box size"},
		{"Unknown interpolation", "interpolation: lanczos", "unknown interpolation"},
		{"Long quit key", "overlay: {quit_key: quit}", "quit_key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "cfg.yaml", tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load of a missing file should fail")
	}
}

func TestValidateFillsDefaults(t *testing.T) {
	cfg := &Config{
		Work:     SizeConfig{Width: 0, Height: 0},
		Box:      SizeConfig{Width: 10, Height: 10},
		Resample: "",
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if cfg.Camera.Device != "0" || cfg.Overlay.Thickness != 2 || cfg.Overlay.QuitKey != "q" {
		t.Errorf("defaults not filled: %+v", cfg)
	}
	if cfg.Database.BatchFrames != 100 || cfg.Publish.Channel != "skingrid:frames" || cfg.DataDir != "data" {
		t.Errorf("defaults not filled: %+v", cfg)
	}
}

func TestCalibrationFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ranges", "hand.yaml")
	in := CalibrationFile{
		Range:     skin.ColorRange{Lower: [3]uint8{120, 80, 60}, Upper: [3]uint8{220, 170, 150}},
		Region:    [4]int{10, 20, 110, 220},
		Source:    "0",
		CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := SaveCalibration(path, in); err != nil {
		t.Fatalf("SaveCalibration failed: %v", err)
	}

	out, err := LoadCalibration(path)
	if err != nil {
		t.Fatalf("LoadCalibration failed: %v", err)
	}
	if out.Range != in.Range || out.Region != in.Region || out.Source != in.Source || !out.CreatedAt.Equal(in.CreatedAt) {
		t.Errorf("LoadCalibration() = %+v, want %+v", out, in)
	}
}

func TestLoadCalibrationRejectsInvertedRange(t *testing.T) {
	path := writeFile(t, "bad.yaml", `
range:
  lower: [200, 10, 10]
  upper: [100, 20, 20]
`)
	if _, err := LoadCalibration(path); err == nil {
		t.Error("LoadCalibration should reject lower > upper")
	}
}
