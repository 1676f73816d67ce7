package guidance

import (
	"math"

	"github.com/banshee-data/wayfinder/internal/config"
	"github.com/banshee-data/wayfinder/internal/perception"
)

// Direction is the recommended direction of travel.
type Direction string

const (
	DirectionLeft    Direction = "left"
	DirectionForward Direction = "forward"
	DirectionRight   Direction = "right"
	DirectionStop    Direction = "stop"
)

// Candidate headings in degrees, 0 straight ahead and negative to the left,
// listed in tie-break order.
var Headings = [3]float64{0, -45, 45}

// PathOption is one scored candidate heading.
type PathOption struct {
	HeadingDeg    float64 `json:"heading_deg"`
	IsClear       bool    `json:"is_clear"`
	ObstacleCount int     `json:"obstacle_count"`
	Score         float64 `json:"score"`
}

// Evaluation is the outcome of scoring all candidate headings.
type Evaluation struct {
	Options   [3]PathOption `json:"options"` // ordered left, forward, right
	Best      PathOption    `json:"best"`
	Direction Direction     `json:"direction"`
}

// PathConfig holds the evaluator's geometry and scoring thresholds.
type PathConfig struct {
	Lookahead    float64 // meters; only nearer obstacles block a heading
	ClearConeDeg float64 // offset below which an obstacle blocks a heading
	CountConeDeg float64 // offset below which an obstacle counts against a heading
	StopScore    float64 // winning scores below this become DirectionStop
}

// DefaultPathConfig returns the built-in evaluator thresholds.
func DefaultPathConfig() PathConfig {
	return PathConfigFromDetection(config.EmptyDetectionConfig())
}

// PathConfigFromDetection builds a PathConfig from a loaded DetectionConfig.
func PathConfigFromDetection(cfg *config.DetectionConfig) PathConfig {
	return PathConfig{
		Lookahead:    cfg.GetLookaheadMeters(),
		ClearConeDeg: cfg.GetClearConeDeg(),
		CountConeDeg: cfg.GetCountConeDeg(),
		StopScore:    cfg.GetStopScore(),
	}
}

// AngularOffset is |bearing(o) - heading| in degrees.
func AngularOffset(o perception.Obstacle, headingDeg float64) float64 {
	return math.Abs(perception.BearingDeg(o) - headingDeg)
}

// ScoreHeading evaluates one heading. The clear check uses the narrower
// cone and the lookahead; the count uses the wider cone at any distance.
func ScoreHeading(headingDeg float64, obstacles []perception.Obstacle, cfg PathConfig) PathOption {
	opt := PathOption{HeadingDeg: headingDeg, IsClear: true}
	for _, o := range obstacles {
		offset := AngularOffset(o, headingDeg)
		if offset < cfg.ClearConeDeg && o.Distance < cfg.Lookahead {
			opt.IsClear = false
		}
		if offset < cfg.CountConeDeg {
			opt.ObstacleCount++
		}
	}

	score := 100 - 0.5*math.Abs(headingDeg) - 20*float64(opt.ObstacleCount)
	if opt.IsClear {
		score += 30
	}
	opt.Score = math.Max(0, math.Min(100, score))
	return opt
}

// Evaluate scores the three candidate headings and selects the best one.
// Ties go to the heading with the smallest magnitude, then to the left.
func Evaluate(obstacles []perception.Obstacle, cfg PathConfig) Evaluation {
	var ev Evaluation
	for i, h := range Headings {
		opt := ScoreHeading(h, obstacles, cfg)
		ev.Options[optionIndex(h)] = opt
		if i == 0 || opt.Score > ev.Best.Score {
			ev.Best = opt
		}
	}

	switch {
	case ev.Best.Score < cfg.StopScore:
		ev.Direction = DirectionStop
	case ev.Best.HeadingDeg < 0:
		ev.Direction = DirectionLeft
	case ev.Best.HeadingDeg > 0:
		ev.Direction = DirectionRight
	default:
		ev.Direction = DirectionForward
	}
	return ev
}

func optionIndex(headingDeg float64) int {
	switch {
	case headingDeg < 0:
		return 0
	case headingDeg > 0:
		return 2
	default:
		return 1
	}
}

// Recommend evaluates the obstacles and returns nil when there are none, so
// callers publish "no recommendation" rather than an unconditional forward.
func Recommend(obstacles []perception.Obstacle, cfg PathConfig) *Evaluation {
	if len(obstacles) == 0 {
		return nil
	}
	ev := Evaluate(obstacles, cfg)
	return &ev
}
