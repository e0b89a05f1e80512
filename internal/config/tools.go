package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultConfigPath is where the tools look for shared defaults when no
// -config flag is given. A missing file is not an error.
const DefaultConfigPath = "config/scenario.defaults.json"

// ToolConfig holds the knobs shared by the dataset tools. Every field is
// optional; the Get* methods fall back to built-in defaults so a partial
// JSON file is always safe. Command-line flags override these values.
type ToolConfig struct {
	// Dataset
	DatasetRoot *string `json:"dataset_root,omitempty"`

	// Mask-to-box extraction
	BoxSensor *string `json:"box_sensor,omitempty"`
	Classes   []int   `json:"classes,omitempty"`
	MinArea   *int    `json:"min_area,omitempty"`
	Workers   *int    `json:"workers,omitempty"`

	// Risk evaluation
	WindowFrames  *int     `json:"window_frames,omitempty"`
	GoThreshold   *float64 `json:"go_threshold,omitempty"`
	RiskThreshold *float64 `json:"risk_threshold,omitempty"`
	Sweep         *string  `json:"sweep,omitempty"` // "min:max:step"

	// Video
	FPS        *int    `json:"fps,omitempty"`
	VideoCodec *string `json:"video_codec,omitempty"`

	// Results database
	DBPath *string `json:"db_path,omitempty"`
}

// DefaultClasses are the semantic tags boxed when none are configured:
// pedestrian (4), the tag remapped to 20 (9) and vehicle (10).
var DefaultClasses = []int{4, 9, 10}

// LoadToolConfig loads a ToolConfig from a JSON file. The file must have a
// .json extension and be under 1MB.
func LoadToolConfig(path string) (*ToolConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &ToolConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault loads path when it is non-empty, otherwise tries
// DefaultConfigPath and falls back to an empty config if that is absent.
func LoadOrDefault(path string) (*ToolConfig, error) {
	if path != "" {
		return LoadToolConfig(path)
	}
	if _, err := os.Stat(DefaultConfigPath); err != nil {
		return &ToolConfig{}, nil
	}
	return LoadToolConfig(DefaultConfigPath)
}

// Validate checks that the configured values are usable.
func (c *ToolConfig) Validate() error {
	if c.MinArea != nil && *c.MinArea < 0 {
		return fmt.Errorf("min_area must be non-negative, got %d", *c.MinArea)
	}
	for _, cls := range c.Classes {
		if cls < 0 || cls > 255 {
			return fmt.Errorf("class id %d out of range 0-255", cls)
		}
	}
	if c.Workers != nil && *c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", *c.Workers)
	}
	if c.WindowFrames != nil && *c.WindowFrames < 1 {
		return fmt.Errorf("window_frames must be at least 1, got %d", *c.WindowFrames)
	}
	if c.GoThreshold != nil && (*c.GoThreshold < 0 || *c.GoThreshold > 1) {
		return fmt.Errorf("go_threshold must be between 0 and 1, got %f", *c.GoThreshold)
	}
	if c.RiskThreshold != nil && (*c.RiskThreshold < 0 || *c.RiskThreshold > 1) {
		return fmt.Errorf("risk_threshold must be between 0 and 1, got %f", *c.RiskThreshold)
	}
	if c.Sweep != nil && *c.Sweep != "" && len(strings.Split(*c.Sweep, ":")) != 3 {
		return fmt.Errorf("invalid sweep %q: expected min:max:step", *c.Sweep)
	}
	if c.FPS != nil && *c.FPS < 1 {
		return fmt.Errorf("fps must be at least 1, got %d", *c.FPS)
	}
	if c.VideoCodec != nil && len(*c.VideoCodec) != 4 {
		return fmt.Errorf("video_codec must be a four character code, got %q", *c.VideoCodec)
	}
	return nil
}

// GetDatasetRoot returns the dataset_root value or the default.
func (c *ToolConfig) GetDatasetRoot() string {
	if c.DatasetRoot == nil || *c.DatasetRoot == "" {
		return "data_collection"
	}
	return *c.DatasetRoot
}

// GetBoxSensor returns the box_sensor value or the default.
func (c *ToolConfig) GetBoxSensor() string {
	if c.BoxSensor == nil || *c.BoxSensor == "" {
		return "instance_segmentation"
	}
	return *c.BoxSensor
}

// GetClasses returns the configured class ids or DefaultClasses.
func (c *ToolConfig) GetClasses() []int {
	if len(c.Classes) == 0 {
		return append([]int(nil), DefaultClasses...)
	}
	return append([]int(nil), c.Classes...)
}

// GetMinArea returns the min_area value or the default.
func (c *ToolConfig) GetMinArea() int {
	if c.MinArea == nil {
		return 100
	}
	return *c.MinArea
}

// GetWorkers returns the workers value or the default.
func (c *ToolConfig) GetWorkers() int {
	if c.Workers == nil {
		return 1
	}
	return *c.Workers
}

// GetWindowFrames returns the window_frames value or the default.
func (c *ToolConfig) GetWindowFrames() int {
	if c.WindowFrames == nil {
		return 5
	}
	return *c.WindowFrames
}

// GetGoThreshold returns the go_threshold value or the default.
func (c *ToolConfig) GetGoThreshold() float64 {
	if c.GoThreshold == nil {
		return 0.5
	}
	return *c.GoThreshold
}

// GetRiskThreshold returns the risk_threshold value or the default.
func (c *ToolConfig) GetRiskThreshold() float64 {
	if c.RiskThreshold == nil {
		return 0.5
	}
	return *c.RiskThreshold
}

// GetSweep returns the sweep value or the default.
func (c *ToolConfig) GetSweep() string {
	if c.Sweep == nil {
		return "0.05:0.95:0.05"
	}
	return *c.Sweep
}

// GetFPS returns the fps value or the default.
func (c *ToolConfig) GetFPS() int {
	if c.FPS == nil {
		return 20
	}
	return *c.FPS
}

// GetVideoCodec returns the video_codec value or the default.
func (c *ToolConfig) GetVideoCodec() string {
	if c.VideoCodec == nil || *c.VideoCodec == "" {
		return "mp4v"
	}
	return *c.VideoCodec
}

// GetDBPath returns the db_path value or the default.
func (c *ToolConfig) GetDBPath() string {
	if c.DBPath == nil {
		return ""
	}
	return *c.DBPath
}

// ParseIntList parses a comma-separated list such as "4,9,10".
// Returns nil, nil for an empty string.
func ParseIntList(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid int '%s': %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}
