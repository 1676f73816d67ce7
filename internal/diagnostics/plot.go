// Package diagnostics renders offline plots of detection output for tuning
// thresholds against recorded captures.
package diagnostics

import (
	"fmt"
	"image/color"
	"io"
	"math"

	"github.com/banshee-data/wayfinder/internal/guidance"
	"github.com/banshee-data/wayfinder/internal/perception"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

var (
	obstacleColor = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	winnerColor   = color.RGBA{R: 44, G: 160, B: 44, A: 255}
	headingColor  = color.RGBA{R: 127, G: 127, B: 127, A: 255}
)

// Snapshot is one tick's output to plot.
type Snapshot struct {
	Title      string
	Obstacles  []perception.Obstacle
	Evaluation *guidance.Evaluation
	Lookahead  float64 // heading ray length in meters; 0 means 3
}

// TopDown plots obstacles in the ground plane (x right, z forward) with a
// ray per candidate heading labelled by its score. The winning heading is
// drawn in green.
func TopDown(s Snapshot) (*plot.Plot, error) {
	lookahead := s.Lookahead
	if lookahead <= 0 {
		lookahead = 3
	}

	p := plot.New()
	p.Title.Text = s.Title
	p.X.Label.Text = "X (m)"
	p.Y.Label.Text = "Forward (m)"
	p.Add(plotter.NewGrid())

	extent := lookahead
	if len(s.Obstacles) > 0 {
		pts := make(plotter.XYs, len(s.Obstacles))
		for i, o := range s.Obstacles {
			pts[i] = plotter.XY{X: o.Position.X, Y: o.Position.Z}
			extent = max(extent, math.Abs(o.Position.X), o.Position.Z)
		}
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return nil, fmt.Errorf("obstacle scatter: %w", err)
		}
		sc.GlyphStyle.Color = obstacleColor
		sc.GlyphStyle.Shape = draw.CircleGlyph{}
		sc.GlyphStyle.Radius = vg.Points(3)
		p.Add(sc)
		p.Legend.Add("obstacles", sc)
	}

	if s.Evaluation != nil {
		rays := make(plotter.XYs, 0, len(s.Evaluation.Options))
		labels := make([]string, 0, len(s.Evaluation.Options))
		for _, opt := range s.Evaluation.Options {
			rad := opt.HeadingDeg * math.Pi / 180
			end := plotter.XY{X: lookahead * math.Sin(rad), Y: lookahead * math.Cos(rad)}
			line, err := plotter.NewLine(plotter.XYs{{X: 0, Y: 0}, end})
			if err != nil {
				return nil, fmt.Errorf("heading ray: %w", err)
			}
			line.Width = vg.Points(1)
			line.Color = headingColor
			if opt.HeadingDeg == s.Evaluation.Best.HeadingDeg && s.Evaluation.Direction != guidance.DirectionStop {
				line.Width = vg.Points(2)
				line.Color = winnerColor
			}
			p.Add(line)
			rays = append(rays, end)
			labels = append(labels, fmt.Sprintf("%+.0f°: %.1f", opt.HeadingDeg, opt.Score))
		}
		lbl, err := plotter.NewLabels(plotter.XYLabels{XYs: rays, Labels: labels})
		if err != nil {
			return nil, fmt.Errorf("heading labels: %w", err)
		}
		p.Add(lbl)
		p.Legend.Add(guidance.DescribeDirection(s.Evaluation.Direction))
	}

	extent *= 1.1
	p.X.Min, p.X.Max = -extent, extent
	p.Y.Min, p.Y.Max = 0, extent
	return p, nil
}

// WriteTopDownPNG renders TopDown(s) as a PNG to w.
func WriteTopDownPNG(w io.Writer, s Snapshot) error {
	p, err := TopDown(s)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(6*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("png writer: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return nil
}
