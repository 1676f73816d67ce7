package sensors

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"math"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/banshee-data/wayfinder/internal/depth"
	"github.com/banshee-data/wayfinder/internal/httputil"
	"github.com/banshee-data/wayfinder/internal/monitoring"
	"github.com/banshee-data/wayfinder/internal/timeutil"
	"gonum.org/v1/gonum/stat"
)

// maxSnapshotBytes bounds a single snapshot download.
const maxSnapshotBytes = 8 << 20

// GroundModel estimates depth from a single camera image by assuming a flat
// floor. Floor pixels are discarded; pixels whose intensity departs from the
// floor are treated as an upright obstacle standing on the floor at the
// first deviating row.
type GroundModel struct {
	CameraHeight       float64 // meters above the floor
	CameraPitchDeg     float64 // downward tilt of the optical axis
	HorizontalFOVDeg   float64
	Columns, Rows      int     // output frame resolution
	DeviationThreshold float64 // gray levels, 0-255
	MaxRange           float64 // meters
}

// DefaultGroundModel returns a model for a chest-mounted phone camera.
func DefaultGroundModel() GroundModel {
	return GroundModel{
		CameraHeight:       1.2,
		CameraPitchDeg:     30,
		HorizontalFOVDeg:   60,
		Columns:            32,
		Rows:               24,
		DeviationThreshold: 40,
		MaxRange:           5.0,
	}
}

// Estimate converts an image into a depth frame along the optical axis.
func (m GroundModel) Estimate(img image.Image) *depth.Frame {
	cols, rows := m.Columns, m.Rows
	in := depth.IntrinsicsFromFOV(cols, rows, m.HorizontalFOVDeg)
	f := &depth.Frame{
		Width:      cols,
		Height:     rows,
		Depth:      make([]float32, cols*rows),
		Intrinsics: in,
		Transform:  depth.Identity(),
		Source:     KindVisionEstimator.String(),
	}
	gray := downsampleGray(img, cols, rows)
	if gray == nil {
		return f
	}

	floor := stat.Mean(gray[(rows-1)*cols:], nil)
	deviates := func(x, y int) bool {
		return math.Abs(gray[y*cols+x]-floor) > m.DeviationThreshold
	}

	for x := 0; x < cols; x++ {
		for y := rows - 1; y >= 0; y-- {
			if !deviates(x, y) {
				continue
			}
			d, ok := m.groundDepth(float64(y)+0.5, in)
			if !ok || d > m.MaxRange {
				break
			}
			for yy := y; yy >= 0 && deviates(x, yy); yy-- {
				f.Depth[yy*cols+x] = float32(d)
			}
			break
		}
	}
	return f
}

// groundDepth returns the optical-axis depth of the floor point seen at
// image row v, or false when the ray does not reach the floor.
func (m GroundModel) groundDepth(v float64, in depth.Intrinsics) (float64, bool) {
	alpha := math.Atan((v - in.Cy) / in.Fy)
	theta := m.CameraPitchDeg*math.Pi/180 + alpha
	if theta <= 0 {
		return 0, false
	}
	ray := m.CameraHeight / math.Sin(theta)
	return ray * math.Cos(alpha), true
}

// downsampleGray block-averages img into cols×rows luma values.
func downsampleGray(img image.Image, cols, rows int) []float64 {
	b := img.Bounds()
	if b.Dx() < cols || b.Dy() < rows || cols <= 0 || rows <= 0 {
		return nil
	}
	out := make([]float64, cols*rows)
	for gy := 0; gy < rows; gy++ {
		y0 := b.Min.Y + gy*b.Dy()/rows
		y1 := b.Min.Y + (gy+1)*b.Dy()/rows
		for gx := 0; gx < cols; gx++ {
			x0 := b.Min.X + gx*b.Dx()/cols
			x1 := b.Min.X + (gx+1)*b.Dx()/cols
			var sum float64
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					r, g, bl, _ := img.At(x, y).RGBA()
					// Rec. 601 luma on 16-bit channels, scaled to 0-255.
					sum += (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(bl)) / 257
				}
			}
			out[gy*cols+gx] = sum / float64((x1-x0)*(y1-y0))
		}
	}
	return out
}

// VisionOptions configures a VisionEstimator.
type VisionOptions struct {
	Interval time.Duration
	Model    GroundModel
	Client   httputil.HTTPClient
	Clock    timeutil.Clock
}

// VisionEstimator polls a camera's JPEG snapshot endpoint and estimates
// depth from each image. It is the lowest fidelity strategy.
type VisionEstimator struct {
	frameSlot
	url    string
	opts   VisionOptions
	failed atomic.Uint64
}

// NewVisionEstimator validates the snapshot URL.
func NewVisionEstimator(rawURL string, opts VisionOptions) (*VisionEstimator, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("snapshot url %q: %w", rawURL, ErrUnsupportedConfiguration)
	}
	if opts.Interval <= 0 {
		opts.Interval = 250 * time.Millisecond
	}
	if opts.Model.Columns == 0 {
		opts.Model = DefaultGroundModel()
	}
	if opts.Client == nil {
		opts.Client = httputil.NewStandardClient(&http.Client{Timeout: 2 * time.Second})
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	return &VisionEstimator{url: rawURL, opts: opts}, nil
}

func (v *VisionEstimator) Kind() Kind { return KindVisionEstimator }

// Failures returns the number of snapshots that could not be fetched or decoded.
func (v *VisionEstimator) Failures() uint64 { return v.failed.Load() }

// Run polls at the configured interval until ctx is cancelled.
func (v *VisionEstimator) Run(ctx context.Context) error {
	ticker := v.opts.Clock.NewTicker(v.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
			if err := v.Poll(ctx); err != nil && ctx.Err() == nil {
				v.failed.Add(1)
				monitoring.Logf("vision estimator: %v", err)
			}
		}
	}
}

// Poll fetches one snapshot and publishes its depth estimate.
func (v *VisionEstimator) Poll(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.url, nil)
	if err != nil {
		return fmt.Errorf("build snapshot request: %w", err)
	}
	resp, err := v.opts.Client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch snapshot: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch snapshot: unexpected status %s", resp.Status)
	}

	img, err := jpeg.Decode(io.LimitReader(resp.Body, maxSnapshotBytes))
	if err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	f := v.opts.Model.Estimate(img)
	f.Timestamp = v.opts.Clock.Now()
	v.publish(f)
	return nil
}

func (v *VisionEstimator) Close() error {
	if c, ok := v.opts.Client.(interface{ CloseIdleConnections() }); ok {
		c.CloseIdleConnections()
	}
	return nil
}
