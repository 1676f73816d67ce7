package guidance

import (
	"fmt"
	"math"

	"github.com/banshee-data/wayfinder/internal/perception"
)

// AheadConeDeg is the bearing half-width announced as "ahead".
const AheadConeDeg = 15.0

// Relation describes where an obstacle sits relative to the user.
func Relation(o perception.Obstacle) string {
	bearing := perception.BearingDeg(o)
	switch {
	case math.Abs(bearing) <= AheadConeDeg:
		return "ahead"
	case bearing < 0:
		return "to your left"
	default:
		return "to your right"
	}
}

// FormatDistance renders meters for speech: centimeters below one meter,
// otherwise meters to one decimal.
func FormatDistance(meters float64) string {
	if meters < 1 {
		return fmt.Sprintf("%d centimeters", int(math.Round(meters*100)))
	}
	if meters == 1 {
		return "1 meter"
	}
	return fmt.Sprintf("%.1f meters", meters)
}

// DistanceCategory returns a coarse human-readable distance band.
func DistanceCategory(distance float64) string {
	switch {
	case distance <= 0:
		return "unknown"
	case distance < 0.5:
		return "very close"
	case distance < 1.0:
		return "close"
	case distance < 2.0:
		return "nearby"
	case distance < 3.0:
		return "moderate"
	default:
		return "far"
	}
}

// RenderMessage builds the spoken warning text, for example
// "Stop! wall ahead at 30 centimeters".
func RenderMessage(sev Severity, o perception.Obstacle) string {
	lead := "Caution,"
	if sev == SeverityCritical {
		lead = "Stop!"
	}
	return fmt.Sprintf("%s %s %s at %s", lead, o.Type, Relation(o), FormatDistance(o.Distance))
}

// DescribeObstacle renders an obstacle for the on-demand summary.
func DescribeObstacle(o perception.Obstacle) string {
	return fmt.Sprintf("%s %s %s, %s (%s)", o.Size, o.Type, Relation(o), FormatDistance(o.Distance), DistanceCategory(o.Distance))
}

// DescribeDirection renders a recommendation for speech.
func DescribeDirection(d Direction) string {
	switch d {
	case DirectionLeft:
		return "bear left"
	case DirectionRight:
		return "bear right"
	case DirectionForward:
		return "continue forward"
	case DirectionStop:
		return "stop, no clear path"
	default:
		return "no recommendation"
	}
}
