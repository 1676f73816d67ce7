package diagnostics

import (
	"fmt"
	"image/color"
	"math"
	"sync"

	"github.com/banshee-data/wayfinder/internal/guidance"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Sample is one replayed tick.
type Sample struct {
	Frame   int
	Nearest float64 // meters; NaN when no obstacles
	Scores  [3]float64
	Warning *guidance.Severity
}

// Timeline accumulates per-frame samples across a replay.
type Timeline struct {
	mu      sync.Mutex
	samples []Sample
}

// Add records a sample.
func (t *Timeline) Add(s Sample) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.samples = append(t.samples, s)
}

// Len returns the number of samples.
func (t *Timeline) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.samples)
}

// Summary aggregates a timeline.
type Summary struct {
	Frames            int
	FramesWithObjects int
	MeanNearest       float64
	MinNearest        float64
	Warnings          int
	Critical          int
}

// Summarize computes aggregate statistics over the recorded samples.
func (t *Timeline) Summarize() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Summary{Frames: len(t.samples), MinNearest: math.NaN(), MeanNearest: math.NaN()}
	var nearest []float64
	for _, smp := range t.samples {
		if !math.IsNaN(smp.Nearest) {
			nearest = append(nearest, smp.Nearest)
		}
		if smp.Warning != nil {
			s.Warnings++
			if *smp.Warning == guidance.SeverityCritical {
				s.Critical++
			}
		}
	}
	s.FramesWithObjects = len(nearest)
	if len(nearest) > 0 {
		s.MeanNearest = stat.Mean(nearest, nil)
		s.MinNearest = nearest[0]
		for _, d := range nearest[1:] {
			s.MinNearest = min(s.MinNearest, d)
		}
	}
	return s
}

var seriesColors = [3]color.Color{
	color.RGBA{R: 31, G: 119, B: 180, A: 255},
	color.RGBA{R: 44, G: 160, B: 44, A: 255},
	color.RGBA{R: 255, G: 127, B: 14, A: 255},
}

// Plot draws the per-heading scores and the nearest distance against frame
// index.
func (t *Timeline) Plot() (*plot.Plot, error) {
	t.mu.Lock()
	samples := append([]Sample(nil), t.samples...)
	t.mu.Unlock()
	if len(samples) == 0 {
		return nil, fmt.Errorf("timeline has no samples")
	}

	p := plot.New()
	p.Title.Text = "Path scores by frame"
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "Score / distance (cm)"
	p.Add(plotter.NewGrid())

	names := [3]string{"left", "forward", "right"}
	for i := range names {
		pts := make(plotter.XYs, len(samples))
		for j, s := range samples {
			pts[j] = plotter.XY{X: float64(s.Frame), Y: s.Scores[i]}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("score line %s: %w", names[i], err)
		}
		line.Width = vg.Points(1)
		line.Color = seriesColors[i]
		p.Add(line)
		p.Legend.Add(names[i], line)
	}

	var dist plotter.XYs
	for _, s := range samples {
		if !math.IsNaN(s.Nearest) {
			// Centimeters share the score axis for distances up to 1m.
			dist = append(dist, plotter.XY{X: float64(s.Frame), Y: math.Min(s.Nearest*100, 100)})
		}
	}
	if len(dist) > 0 {
		sc, err := plotter.NewScatter(dist)
		if err != nil {
			return nil, fmt.Errorf("distance scatter: %w", err)
		}
		sc.GlyphStyle.Radius = vg.Points(1.5)
		p.Add(sc)
		p.Legend.Add("nearest (cm, capped)", sc)
	}
	p.Y.Min, p.Y.Max = 0, 105
	return p, nil
}

// Save writes the timeline plot to path; the extension selects the format.
func (t *Timeline) Save(path string) error {
	p, err := t.Plot()
	if err != nil {
		return err
	}
	if err := p.Save(14*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}
