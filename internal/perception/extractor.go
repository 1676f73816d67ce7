package perception

import (
	"fmt"
	"math"

	"github.com/banshee-data/wayfinder/internal/depth"
	"github.com/google/uuid"
)

// Confidence combines a pixel-support term and a depth-consistency term:
// mean(min(1, valid/saturation), max(0.1, 1 - variation)).
func Confidence(validPixels int, variation float64, saturation int) float64 {
	pixelTerm := math.Min(1, float64(validPixels)/float64(saturation))
	depthTerm := math.Max(0.1, 1-variation)
	return (pixelTerm + depthTerm) / 2
}

// ExtractCells converts grid cells into obstacles, dropping those at or
// below cfg.MinConfidence.
func ExtractCells(f *depth.Frame, cells []GridCell, cfg Config) []Obstacle {
	if len(cells) == 0 {
		return nil
	}
	obstacles := make([]Obstacle, 0, len(cells))
	for _, c := range cells {
		variation := c.Variation()
		conf := Confidence(c.ValidPixels, variation, cfg.PixelSaturation)
		if conf <= cfg.MinConfidence {
			continue
		}
		size := EstimateSize(variation, cfg)
		u, v := c.Center()
		pos := f.ToWorld(f.Unproject(u, v, c.AvgDepth))

		obstacles = append(obstacles, Obstacle{
			ID:         fmt.Sprintf("obs_%s", uuid.NewString()),
			Position:   pos,
			Distance:   c.AvgDepth,
			Size:       size,
			Type:       Classify(c.AvgDepth, size),
			Confidence: conf,
			Row:        c.Row,
			Col:        c.Col,
		})
	}
	return obstacles
}

// Extract runs the grid partitioner and extractor over one frame. A missing
// or empty frame yields no obstacles.
func Extract(f *depth.Frame, cfg Config) []Obstacle {
	cells := Partition(f, cfg.Rows, cfg.Cols, cfg.DetectionRange)
	return ExtractCells(f, cells, cfg)
}

// Nearest returns the obstacle with the smallest distance.
func Nearest(obstacles []Obstacle) (Obstacle, bool) {
	if len(obstacles) == 0 {
		return Obstacle{}, false
	}
	best := obstacles[0]
	for _, o := range obstacles[1:] {
		if o.Distance < best.Distance {
			best = o
		}
	}
	return best, true
}

// BearingDeg is the obstacle's horizontal bearing, atan2(x, z) in degrees:
// 0 straight ahead, negative to the left. Rounded to micro-degrees so that
// cone boundary comparisons do not flip on trigonometric noise.
func BearingDeg(o Obstacle) float64 {
	deg := math.Atan2(o.Position.X, o.Position.Z) * 180 / math.Pi
	return math.Round(deg*1e6) / 1e6
}
