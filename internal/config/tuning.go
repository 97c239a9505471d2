// Package config loads and validates the JSON tuning file that drives
// the inspection pipeline. All fields are optional pointers; the Get*
// accessors supply defaults, so a partial config file is always safe.
package config

import (
	"encoding/json"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/banshee-data/catenary.report/internal/wire"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root tuning configuration. The schema
// matches the /api/wire/params endpoint so the same JSON can be used
// for both startup configuration and runtime updates.
type TuningConfig struct {
	// Ingestion params
	TargetFPS *float64 `json:"target_fps,omitempty"`
	FrameSkip *int     `json:"frame_skip,omitempty"`

	// Preprocessing params. ROI is [x, y, w, h] in full-frame pixels.
	ROI            []int    `json:"roi,omitempty"`
	CLAHEClipLimit *float64 `json:"clahe_clip_limit,omitempty"`
	CLAHETilesX    *int     `json:"clahe_tiles_x,omitempty"`
	CLAHETilesY    *int     `json:"clahe_tiles_y,omitempty"`
	BlurKernelSize *int     `json:"blur_kernel_size,omitempty"`

	// Detector params
	CannyLow           *float64 `json:"canny_low,omitempty"`
	CannyHigh          *float64 `json:"canny_high,omitempty"`
	HoughRho           *float64 `json:"hough_rho,omitempty"`
	HoughThetaDeg      *float64 `json:"hough_theta_deg,omitempty"`
	HoughThreshold     *int     `json:"hough_threshold,omitempty"`
	HoughMinLineLength *int     `json:"hough_min_line_length,omitempty"`
	HoughMaxLineGap    *int     `json:"hough_max_line_gap,omitempty"`
	MinConfidence      *float64 `json:"min_confidence,omitempty"`

	// Calibration fallback scale when no descriptor file is present.
	FallbackPxPerMm *float64 `json:"fallback_px_per_mm,omitempty"`

	// Rule thresholds (mm)
	StaggerWarningMm  *float64 `json:"stagger_warning_mm,omitempty"`
	StaggerCriticalMm *float64 `json:"stagger_critical_mm,omitempty"`
	DiameterMinWarnMm *float64 `json:"diameter_min_warning_mm,omitempty"`
	DiameterMinCritMm *float64 `json:"diameter_min_critical_mm,omitempty"`
	DiameterMaxWarnMm *float64 `json:"diameter_max_warning_mm,omitempty"`
	DiameterMaxCritMm *float64 `json:"diameter_max_critical_mm,omitempty"`

	// Logging params
	SessionDir    *string `json:"session_dir,omitempty"`
	SqliteEnabled *bool   `json:"sqlite_enabled,omitempty"`
	CsvEnabled    *bool   `json:"csv_enabled,omitempty"`
	CsvMaxRows    *int    `json:"csv_max_rows,omitempty"`
	QueueCapacity *int    `json:"queue_capacity,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil,
// i.e. every accessor returns its built-in default.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
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

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, wire.Errorf(wire.KindConfiguration, "tuning", "invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are consistent.
func (c *TuningConfig) Validate() error {
	if c.ROI != nil && len(c.ROI) != 4 {
		return fmt.Errorf("roi must have 4 elements [x, y, w, h], got %d", len(c.ROI))
	}

	if c.BlurKernelSize != nil {
		if *c.BlurKernelSize < 1 || *c.BlurKernelSize%2 == 0 {
			return fmt.Errorf("blur_kernel_size must be a positive odd number, got %d", *c.BlurKernelSize)
		}
	}

	if c.MinConfidence != nil {
		if *c.MinConfidence < 0 || *c.MinConfidence > 1 {
			return fmt.Errorf("min_confidence must be between 0 and 1, got %f", *c.MinConfidence)
		}
	}

	if c.FallbackPxPerMm != nil && *c.FallbackPxPerMm <= 0 {
		return fmt.Errorf("fallback_px_per_mm must be positive, got %f", *c.FallbackPxPerMm)
	}

	if c.CannyLow != nil && c.CannyHigh != nil && *c.CannyLow > *c.CannyHigh {
		return fmt.Errorf("canny_low (%f) must not exceed canny_high (%f)", *c.CannyLow, *c.CannyHigh)
	}

	if c.FrameSkip != nil && *c.FrameSkip < 1 {
		return fmt.Errorf("frame_skip must be at least 1, got %d", *c.FrameSkip)
	}

	if c.CsvMaxRows != nil && *c.CsvMaxRows <= 0 {
		return fmt.Errorf("csv_max_rows must be positive, got %d", *c.CsvMaxRows)
	}

	if c.QueueCapacity != nil && *c.QueueCapacity < 1 {
		return fmt.Errorf("queue_capacity must be at least 1, got %d", *c.QueueCapacity)
	}

	return nil
}

// GetTargetFPS returns the target_fps value or the default.
func (c *TuningConfig) GetTargetFPS() float64 {
	if c.TargetFPS == nil {
		return 0 // unthrottled
	}
	return *c.TargetFPS
}

// GetFrameSkip returns the frame_skip value or the default.
func (c *TuningConfig) GetFrameSkip() int {
	if c.FrameSkip == nil {
		return 1
	}
	return *c.FrameSkip
}

// GetROI returns the configured region of interest, or nil when the
// full frame is analysed.
func (c *TuningConfig) GetROI() *image.Rectangle {
	if len(c.ROI) != 4 {
		return nil
	}
	r := image.Rect(c.ROI[0], c.ROI[1], c.ROI[0]+c.ROI[2], c.ROI[1]+c.ROI[3])
	return &r
}

// GetCLAHEClipLimit returns the clahe_clip_limit value or the default.
func (c *TuningConfig) GetCLAHEClipLimit() float64 {
	if c.CLAHEClipLimit == nil {
		return 2.0
	}
	return *c.CLAHEClipLimit
}

// GetCLAHETilesX returns the clahe_tiles_x value or the default.
func (c *TuningConfig) GetCLAHETilesX() int {
	if c.CLAHETilesX == nil {
		return 8
	}
	return *c.CLAHETilesX
}

// GetCLAHETilesY returns the clahe_tiles_y value or the default.
func (c *TuningConfig) GetCLAHETilesY() int {
	if c.CLAHETilesY == nil {
		return 8
	}
	return *c.CLAHETilesY
}

// GetBlurKernelSize returns the blur_kernel_size value or the default.
func (c *TuningConfig) GetBlurKernelSize() int {
	if c.BlurKernelSize == nil {
		return 5
	}
	return *c.BlurKernelSize
}

// GetCannyLow returns the canny_low value or the default.
func (c *TuningConfig) GetCannyLow() float64 {
	if c.CannyLow == nil {
		return 50
	}
	return *c.CannyLow
}

// GetCannyHigh returns the canny_high value or the default.
func (c *TuningConfig) GetCannyHigh() float64 {
	if c.CannyHigh == nil {
		return 150
	}
	return *c.CannyHigh
}

// GetHoughRho returns the hough_rho value or the default.
func (c *TuningConfig) GetHoughRho() float64 {
	if c.HoughRho == nil {
		return 1.0
	}
	return *c.HoughRho
}

// GetHoughThetaDeg returns the hough_theta_deg value or the default.
func (c *TuningConfig) GetHoughThetaDeg() float64 {
	if c.HoughThetaDeg == nil {
		return 1.0
	}
	return *c.HoughThetaDeg
}

// GetHoughThreshold returns the hough_threshold value or the default.
func (c *TuningConfig) GetHoughThreshold() int {
	if c.HoughThreshold == nil {
		return 80
	}
	return *c.HoughThreshold
}

// GetHoughMinLineLength returns the hough_min_line_length value or the default.
func (c *TuningConfig) GetHoughMinLineLength() int {
	if c.HoughMinLineLength == nil {
		return 50
	}
	return *c.HoughMinLineLength
}

// GetHoughMaxLineGap returns the hough_max_line_gap value or the default.
func (c *TuningConfig) GetHoughMaxLineGap() int {
	if c.HoughMaxLineGap == nil {
		return 10
	}
	return *c.HoughMaxLineGap
}

// GetMinConfidence returns the min_confidence value or the default.
func (c *TuningConfig) GetMinConfidence() float64 {
	if c.MinConfidence == nil {
		return 0.5
	}
	return *c.MinConfidence
}

// GetFallbackPxPerMm returns the fallback_px_per_mm value or the default.
func (c *TuningConfig) GetFallbackPxPerMm() float64 {
	if c.FallbackPxPerMm == nil {
		return 10.0
	}
	return *c.FallbackPxPerMm
}

// GetSessionDir returns the session_dir value or the default.
func (c *TuningConfig) GetSessionDir() string {
	if c.SessionDir == nil || *c.SessionDir == "" {
		return "data/sessions"
	}
	return *c.SessionDir
}

// GetSqliteEnabled returns the sqlite_enabled value or the default.
func (c *TuningConfig) GetSqliteEnabled() bool {
	if c.SqliteEnabled == nil {
		return true
	}
	return *c.SqliteEnabled
}

// GetCsvEnabled returns the csv_enabled value or the default.
func (c *TuningConfig) GetCsvEnabled() bool {
	if c.CsvEnabled == nil {
		return true
	}
	return *c.CsvEnabled
}

// GetCsvMaxRows returns the csv_max_rows value or the default.
func (c *TuningConfig) GetCsvMaxRows() int {
	if c.CsvMaxRows == nil {
		return 100000
	}
	return *c.CsvMaxRows
}

// GetQueueCapacity returns the queue_capacity value or the default.
func (c *TuningConfig) GetQueueCapacity() int {
	if c.QueueCapacity == nil {
		return 500
	}
	return *c.QueueCapacity
}

// PipelineConfig resolves the tuning into the processing chain's
// concrete configuration.
func (c *TuningConfig) PipelineConfig() wire.PipelineConfig {
	return wire.PipelineConfig{
		PreProcessor: wire.PreProcessorConfig{
			ROI:            c.GetROI(),
			CLAHEClipLimit: c.GetCLAHEClipLimit(),
			CLAHETilesX:    c.GetCLAHETilesX(),
			CLAHETilesY:    c.GetCLAHETilesY(),
			BlurKernelSize: c.GetBlurKernelSize(),
		},
		Detector: wire.DetectorConfig{
			CannyLow:  c.GetCannyLow(),
			CannyHigh: c.GetCannyHigh(),
			Hough: wire.HoughParams{
				RhoRes:        c.GetHoughRho(),
				ThetaResDeg:   c.GetHoughThetaDeg(),
				Threshold:     c.GetHoughThreshold(),
				MinLineLength: c.GetHoughMinLineLength(),
				MaxLineGap:    c.GetHoughMaxLineGap(),
			},
		},
		MinConfidence: c.GetMinConfidence(),
	}
}

// Thresholds resolves the anomaly rule thresholds.
func (c *TuningConfig) Thresholds() wire.Thresholds {
	t := wire.Thresholds{
		Stagger: wire.StaggerThresholds{
			WarningMm:  150.0,
			CriticalMm: 200.0,
		},
		Diameter: wire.DiameterThresholds{
			MinWarningMm:  10.0,
			MinCriticalMm: 8.0,
			MaxWarningMm:  15.0,
			MaxCriticalMm: 17.0,
		},
	}
	if c.StaggerWarningMm != nil {
		t.Stagger.WarningMm = *c.StaggerWarningMm
	}
	if c.StaggerCriticalMm != nil {
		t.Stagger.CriticalMm = *c.StaggerCriticalMm
	}
	if c.DiameterMinWarnMm != nil {
		t.Diameter.MinWarningMm = *c.DiameterMinWarnMm
	}
	if c.DiameterMinCritMm != nil {
		t.Diameter.MinCriticalMm = *c.DiameterMinCritMm
	}
	if c.DiameterMaxWarnMm != nil {
		t.Diameter.MaxWarningMm = *c.DiameterMaxWarnMm
	}
	if c.DiameterMaxCritMm != nil {
		t.Diameter.MaxCriticalMm = *c.DiameterMaxCritMm
	}
	return t
}
