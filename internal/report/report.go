package report

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ivlev/turntable/internal/system"
)

// Report summarises one turntable export.
type Report struct {
	Version   string `yaml:"version"`
	Model     string `yaml:"model"`
	Output    string `yaml:"output"`
	Format    string `yaml:"format"`
	Speed     int    `yaml:"speed"`
	Direction string `yaml:"direction"`

	Frames           int     `yaml:"frames"`
	Rotation         float64 `yaml:"rotation"`         // final angle, radians
	SimulatedSeconds float64 `yaml:"simulatedSeconds"` // sum of tick dt
	WallSeconds      float64 `yaml:"wallSeconds"`
	ColorsFixed      int     `yaml:"colorsFixed"`

	Error string        `yaml:"error,omitempty"`
	Stats *system.Stats `yaml:"stats,omitempty"`
}

// Write writes a report to a YAML file
func Write(r *Report, path string) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}

// Read reads a report from a YAML file
func Read(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var r Report
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, err
	}

	return &r, nil
}
