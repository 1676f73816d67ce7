package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical detection defaults file.
const DefaultConfigPath = "config/detection.defaults.json"

// DetectionConfig is the root configuration for the detection pipeline and
// its sensor sources. Every field is optional; the Get* accessors fall back
// to the built-in defaults, so a partial file is safe.
type DetectionConfig struct {
	// Grid partitioner / extractor
	GridRows             *int     `json:"grid_rows,omitempty"`
	GridCols             *int     `json:"grid_cols,omitempty"`
	DetectionRangeMeters *float64 `json:"detection_range_m,omitempty"`
	MinConfidence        *float64 `json:"min_confidence,omitempty"`
	PixelSaturation      *int     `json:"pixel_saturation,omitempty"`
	LargeVariationMeters *float64 `json:"large_variation_m,omitempty"`
	MediumVariationMeter *float64 `json:"medium_variation_m,omitempty"`
	HorizontalFOVDegrees *float64 `json:"horizontal_fov_deg,omitempty"`

	// Path evaluator
	LookaheadMeters *float64 `json:"lookahead_m,omitempty"`
	ClearConeDeg    *float64 `json:"clear_cone_deg,omitempty"`
	CountConeDeg    *float64 `json:"count_cone_deg,omitempty"`
	StopScore       *float64 `json:"stop_score,omitempty"`

	// Warning arbiter
	CriticalDistanceMeters *float64 `json:"critical_distance_m,omitempty"`
	WarningDistanceMeters  *float64 `json:"warning_distance_m,omitempty"`
	WarningCooldown        *string  `json:"warning_cooldown,omitempty"` // duration string like "3s"

	// Loop controller
	TickInterval *string `json:"tick_interval,omitempty"` // duration string like "500ms"

	// Sensor sources; an empty value disables that strategy.
	SerialPort         *string  `json:"serial_port,omitempty"`
	SerialBaudRate     *int     `json:"serial_baud_rate,omitempty"`
	DepthCameraUDP     *string  `json:"depth_camera_udp,omitempty"`
	DepthCameraPCAP    *string  `json:"depth_camera_pcap,omitempty"`
	CameraSnapshotURL  *string  `json:"camera_snapshot_url,omitempty"`
	CameraPollInterval *string  `json:"camera_poll_interval,omitempty"`
	CameraHeightMeters *float64 `json:"camera_height_m,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyDetectionConfig returns a DetectionConfig with all fields set to nil.
func EmptyDetectionConfig() *DetectionConfig {
	return &DetectionConfig{}
}

// DefaultDetectionConfig returns a DetectionConfig with every pipeline field
// populated from the built-in defaults. Sensor fields stay unset.
func DefaultDetectionConfig() *DetectionConfig {
	c := EmptyDetectionConfig()
	return &DetectionConfig{
		GridRows:               ptrInt(c.GetGridRows()),
		GridCols:               ptrInt(c.GetGridCols()),
		DetectionRangeMeters:   ptrFloat64(c.GetDetectionRangeMeters()),
		MinConfidence:          ptrFloat64(c.GetMinConfidence()),
		PixelSaturation:        ptrInt(c.GetPixelSaturation()),
		LargeVariationMeters:   ptrFloat64(c.GetLargeVariationMeters()),
		MediumVariationMeter:   ptrFloat64(c.GetMediumVariationMeters()),
		HorizontalFOVDegrees:   ptrFloat64(c.GetHorizontalFOVDegrees()),
		LookaheadMeters:        ptrFloat64(c.GetLookaheadMeters()),
		ClearConeDeg:           ptrFloat64(c.GetClearConeDeg()),
		CountConeDeg:           ptrFloat64(c.GetCountConeDeg()),
		StopScore:              ptrFloat64(c.GetStopScore()),
		CriticalDistanceMeters: ptrFloat64(c.GetCriticalDistanceMeters()),
		WarningDistanceMeters:  ptrFloat64(c.GetWarningDistanceMeters()),
		WarningCooldown:        ptrString(c.GetWarningCooldown().String()),
		TickInterval:           ptrString(c.GetTickInterval().String()),
	}
}

// LoadDetectionConfig loads a DetectionConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
func LoadDetectionConfig(path string) (*DetectionConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyDetectionConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath,
// searching the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *DetectionConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/<pkg>/
		"../../../" + DefaultConfigPath, // from cmd/tools/<tool>/
	}
	for _, path := range candidates {
		if cfg, err := LoadDetectionConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *DetectionConfig) Validate() error {
	if c.GridRows != nil && *c.GridRows <= 0 {
		return fmt.Errorf("grid_rows must be positive, got %d", *c.GridRows)
	}
	if c.GridCols != nil && *c.GridCols <= 0 {
		return fmt.Errorf("grid_cols must be positive, got %d", *c.GridCols)
	}
	if c.DetectionRangeMeters != nil && *c.DetectionRangeMeters <= 0 {
		return fmt.Errorf("detection_range_m must be positive, got %f", *c.DetectionRangeMeters)
	}
	if c.MinConfidence != nil && (*c.MinConfidence < 0 || *c.MinConfidence >= 1) {
		return fmt.Errorf("min_confidence must be in [0, 1), got %f", *c.MinConfidence)
	}
	if c.PixelSaturation != nil && *c.PixelSaturation <= 0 {
		return fmt.Errorf("pixel_saturation must be positive, got %d", *c.PixelSaturation)
	}
	if c.HorizontalFOVDegrees != nil && (*c.HorizontalFOVDegrees <= 0 || *c.HorizontalFOVDegrees >= 180) {
		return fmt.Errorf("horizontal_fov_deg must be in (0, 180), got %f", *c.HorizontalFOVDegrees)
	}
	if c.LookaheadMeters != nil && *c.LookaheadMeters <= 0 {
		return fmt.Errorf("lookahead_m must be positive, got %f", *c.LookaheadMeters)
	}
	if c.ClearConeDeg != nil && c.CountConeDeg != nil && *c.ClearConeDeg > *c.CountConeDeg {
		return fmt.Errorf("clear_cone_deg (%f) must not exceed count_cone_deg (%f)", *c.ClearConeDeg, *c.CountConeDeg)
	}
	if c.GetCriticalDistanceMeters() > c.GetWarningDistanceMeters() {
		return fmt.Errorf("critical_distance_m (%f) must not exceed warning_distance_m (%f)",
			c.GetCriticalDistanceMeters(), c.GetWarningDistanceMeters())
	}

	for name, v := range map[string]*string{
		"warning_cooldown":     c.WarningCooldown,
		"tick_interval":        c.TickInterval,
		"camera_poll_interval": c.CameraPollInterval,
	} {
		if v == nil || *v == "" {
			continue
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must be non-negative, got %s", name, *v)
		}
	}

	if c.TickInterval != nil && *c.TickInterval != "" && c.GetTickInterval() <= 0 {
		return fmt.Errorf("tick_interval must be positive, got %q", *c.TickInterval)
	}
	return nil
}

func parseDurationOr(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return def // default on parse error
	}
	return d
}

// GetGridRows returns the grid_rows value or the default.
func (c *DetectionConfig) GetGridRows() int {
	if c.GridRows == nil {
		return 20
	}
	return *c.GridRows
}

// GetGridCols returns the grid_cols value or the default.
func (c *DetectionConfig) GetGridCols() int {
	if c.GridCols == nil {
		return 20
	}
	return *c.GridCols
}

// GetDetectionRangeMeters returns the detection_range_m value or the default.
func (c *DetectionConfig) GetDetectionRangeMeters() float64 {
	if c.DetectionRangeMeters == nil {
		return 5.0
	}
	return *c.DetectionRangeMeters
}

// GetMinConfidence returns the min_confidence value or the default.
func (c *DetectionConfig) GetMinConfidence() float64 {
	if c.MinConfidence == nil {
		return 0.3
	}
	return *c.MinConfidence
}

// GetPixelSaturation returns the pixel_saturation value or the default.
func (c *DetectionConfig) GetPixelSaturation() int {
	if c.PixelSaturation == nil {
		return 100
	}
	return *c.PixelSaturation
}

// GetLargeVariationMeters returns the large_variation_m value or the default.
func (c *DetectionConfig) GetLargeVariationMeters() float64 {
	if c.LargeVariationMeters == nil {
		return 0.5
	}
	return *c.LargeVariationMeters
}

// GetMediumVariationMeters returns the medium_variation_m value or the default.
func (c *DetectionConfig) GetMediumVariationMeters() float64 {
	if c.MediumVariationMeter == nil {
		return 0.2
	}
	return *c.MediumVariationMeter
}

// GetHorizontalFOVDegrees returns the horizontal_fov_deg value or the default.
func (c *DetectionConfig) GetHorizontalFOVDegrees() float64 {
	if c.HorizontalFOVDegrees == nil {
		return 60.0
	}
	return *c.HorizontalFOVDegrees
}

// GetLookaheadMeters returns the lookahead_m value or the default.
func (c *DetectionConfig) GetLookaheadMeters() float64 {
	if c.LookaheadMeters == nil {
		return 3.0
	}
	return *c.LookaheadMeters
}

// GetClearConeDeg returns the clear_cone_deg value or the default.
func (c *DetectionConfig) GetClearConeDeg() float64 {
	if c.ClearConeDeg == nil {
		return 30.0
	}
	return *c.ClearConeDeg
}

// GetCountConeDeg returns the count_cone_deg value or the default.
func (c *DetectionConfig) GetCountConeDeg() float64 {
	if c.CountConeDeg == nil {
		return 45.0
	}
	return *c.CountConeDeg
}

// GetStopScore returns the stop_score value or the default.
func (c *DetectionConfig) GetStopScore() float64 {
	if c.StopScore == nil {
		return 20.0
	}
	return *c.StopScore
}

// GetCriticalDistanceMeters returns the critical_distance_m value or the default.
func (c *DetectionConfig) GetCriticalDistanceMeters() float64 {
	if c.CriticalDistanceMeters == nil {
		return 0.5
	}
	return *c.CriticalDistanceMeters
}

// GetWarningDistanceMeters returns the warning_distance_m value or the default.
func (c *DetectionConfig) GetWarningDistanceMeters() float64 {
	if c.WarningDistanceMeters == nil {
		return 2.0
	}
	return *c.WarningDistanceMeters
}

// GetWarningCooldown parses and returns the WarningCooldown as a time.Duration.
func (c *DetectionConfig) GetWarningCooldown() time.Duration {
	return parseDurationOr(c.WarningCooldown, 3*time.Second)
}

// GetTickInterval parses and returns the TickInterval as a time.Duration.
func (c *DetectionConfig) GetTickInterval() time.Duration {
	return parseDurationOr(c.TickInterval, 500*time.Millisecond)
}

// GetSerialPort returns the serial_port value; empty disables the range sensor.
func (c *DetectionConfig) GetSerialPort() string {
	if c.SerialPort == nil {
		return ""
	}
	return *c.SerialPort
}

// GetSerialBaudRate returns the serial_baud_rate value or the default.
func (c *DetectionConfig) GetSerialBaudRate() int {
	if c.SerialBaudRate == nil {
		return 115200
	}
	return *c.SerialBaudRate
}

// GetDepthCameraUDP returns the depth_camera_udp listen address; empty disables it.
func (c *DetectionConfig) GetDepthCameraUDP() string {
	if c.DepthCameraUDP == nil {
		return ""
	}
	return *c.DepthCameraUDP
}

// GetDepthCameraPCAP returns the depth_camera_pcap replay path; empty disables it.
func (c *DetectionConfig) GetDepthCameraPCAP() string {
	if c.DepthCameraPCAP == nil {
		return ""
	}
	return *c.DepthCameraPCAP
}

// GetCameraSnapshotURL returns the camera_snapshot_url value; empty disables
// the vision estimator.
func (c *DetectionConfig) GetCameraSnapshotURL() string {
	if c.CameraSnapshotURL == nil {
		return ""
	}
	return *c.CameraSnapshotURL
}

// GetCameraPollInterval parses and returns the CameraPollInterval as a time.Duration.
func (c *DetectionConfig) GetCameraPollInterval() time.Duration {
	return parseDurationOr(c.CameraPollInterval, 250*time.Millisecond)
}

// GetCameraHeightMeters returns the camera_height_m value or the default.
func (c *DetectionConfig) GetCameraHeightMeters() float64 {
	if c.CameraHeightMeters == nil {
		return 1.2
	}
	return *c.CameraHeightMeters
}
