package perception

import (
	"github.com/banshee-data/wayfinder/internal/config"
	"gonum.org/v1/gonum/spatial/r3"
)

// Size is the coarse extent estimate derived from depth variation in a cell.
type Size string

const (
	SizeSmall  Size = "small"
	SizeMedium Size = "medium"
	SizeLarge  Size = "large"
)

// Type is the heuristic obstacle category.
type Type string

const (
	TypeWall      Type = "wall"
	TypeFurniture Type = "furniture"
	TypePerson    Type = "person"
	TypeObject    Type = "object"
	TypeUnknown   Type = "unknown"
)

// GridCell aggregates the valid pixels of one rectangular frame region.
type GridCell struct {
	Row, Col    int
	X0, Y0      int // inclusive pixel bounds
	X1, Y1      int // exclusive pixel bounds
	MinDepth    float64
	AvgDepth    float64
	ValidPixels int
}

// Center returns the cell's center pixel coordinates.
func (c GridCell) Center() (u, v float64) {
	return float64(c.X0+c.X1) / 2, float64(c.Y0+c.Y1) / 2
}

// Variation is |MinDepth - AvgDepth|, the cell's depth spread proxy.
func (c GridCell) Variation() float64 {
	d := c.AvgDepth - c.MinDepth
	if d < 0 {
		return -d
	}
	return d
}

// Obstacle is a world-positioned detection for a single tick.
type Obstacle struct {
	ID         string  `json:"id"`
	Position   r3.Vec  `json:"position"`
	Distance   float64 `json:"distance_m"`
	Size       Size    `json:"size"`
	Type       Type    `json:"type"`
	Confidence float64 `json:"confidence"`
	Row        int     `json:"row"`
	Col        int     `json:"col"`
}

// Config holds the partitioner and extractor thresholds.
type Config struct {
	Rows            int
	Cols            int
	DetectionRange  float64 // meters; pixels at or beyond are ignored
	MinConfidence   float64 // obstacles at or below are discarded
	PixelSaturation int     // valid pixel count giving a full pixel term
	LargeVariation  float64 // meters
	MediumVariation float64 // meters
}

// DefaultConfig returns the built-in thresholds.
func DefaultConfig() Config {
	return ConfigFromDetection(config.EmptyDetectionConfig())
}

// ConfigFromDetection builds a Config from a loaded DetectionConfig.
func ConfigFromDetection(cfg *config.DetectionConfig) Config {
	return Config{
		Rows:            cfg.GetGridRows(),
		Cols:            cfg.GetGridCols(),
		DetectionRange:  cfg.GetDetectionRangeMeters(),
		MinConfidence:   cfg.GetMinConfidence(),
		PixelSaturation: cfg.GetPixelSaturation(),
		LargeVariation:  cfg.GetLargeVariationMeters(),
		MediumVariation: cfg.GetMediumVariationMeters(),
	}
}
