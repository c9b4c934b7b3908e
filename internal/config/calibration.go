package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/andresmejia3/skingrid/internal/skin"
	"gopkg.in/yaml.v3"
)

// CalibrationFile is a saved color range, reusable across sessions.
type CalibrationFile struct {
	Range     skin.ColorRange `yaml:"range"`
	Region    [4]int          `yaml:"region"` // x1, y1, x2, y2 on the calibration frame
	Source    string          `yaml:"source,omitempty"`
	CreatedAt time.Time       `yaml:"created_at"`
}

// SaveCalibration writes c to path as YAML.
func SaveCalibration(path string, c CalibrationFile) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode calibration: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// LoadCalibration reads a file written by SaveCalibration.
func LoadCalibration(path string) (CalibrationFile, error) {
	var c CalibrationFile
	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("failed to read calibration file: %w", err)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("failed to parse calibration file: %w", err)
	}
	if !c.Range.Valid() {
		return c, fmt.Errorf("calibration file %s: lower bound exceeds upper bound (%s)", path, c.Range)
	}
	return c, nil
}
