// Command frame-replay runs the detection pipeline over a recorded depth
// camera capture, one tick per frame, and writes diagnostic plots.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/banshee-data/wayfinder/internal/config"
	"github.com/banshee-data/wayfinder/internal/depth"
	"github.com/banshee-data/wayfinder/internal/detection"
	"github.com/banshee-data/wayfinder/internal/diagnostics"
	"github.com/banshee-data/wayfinder/internal/perception"
	"github.com/banshee-data/wayfinder/internal/sensors"
	"github.com/banshee-data/wayfinder/internal/timeutil"
)

// Config holds the replay options.
type Config struct {
	PCAPFile     string
	UDPPort      int
	ConfigPath   string
	OutputDir    string
	SnapshotEach int
	Verbose      bool
}

// queueSource hands the controller one frame per tick.
type queueSource struct {
	mu    sync.Mutex
	frame *depth.Frame
}

func (q *queueSource) Kind() sensors.Kind { return sensors.KindDepthCamera }

func (q *queueSource) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (q *queueSource) AcquireFrame() (*depth.Frame, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	f := q.frame
	q.frame = nil
	return f, f != nil
}

func (q *queueSource) Close() error { return nil }

func (q *queueSource) put(f *depth.Frame) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.frame = f
}

// Report summarises a replay.
type Report struct {
	Frames    int
	Timeline  *diagnostics.Timeline
	Snapshots []string
	Messages  []string
}

// replay drives a controller over every frame in r. Frame timestamps feed
// the controller clock so the warning cooldown follows capture time.
func replay(ctx context.Context, r io.Reader, cfg Config, detCfg *config.DetectionConfig, w io.Writer) (*Report, error) {
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	src := &queueSource{}
	dc := detection.ConfigFromDetection(detCfg)
	dc.TickInterval = 24 * time.Hour // ticks are driven per frame below
	controller := detection.NewController(dc, detection.SelectorFunc(func() (sensors.Source, error) {
		return src, nil
	}), detection.WithClock(clock))
	defer controller.Close()

	_, results := controller.Subscribe()
	if err := controller.Start(ctx); err != nil {
		return nil, err
	}
	<-results // started

	report := &Report{Timeline: &diagnostics.Timeline{}}
	lookahead := dc.Path.Lookahead

	n, err := sensors.ReadPCAPFrames(ctx, r, cfg.UDPPort, func(f *depth.Frame, captured time.Time) error {
		idx := report.Frames
		report.Frames++

		ts := f.Timestamp
		if ts.IsZero() {
			ts = captured
		}
		clock.Set(ts)
		src.put(f)
		controller.Tick()

		var res detection.Result
		select {
		case res = <-results:
		default:
			fmt.Fprintf(w, "frame %d: skipped, frame rejected\n", idx)
			return nil
		}

		sample := diagnostics.Sample{Frame: idx, Nearest: math.NaN()}
		if nearest, ok := perception.Nearest(res.Obstacles); ok {
			sample.Nearest = nearest.Distance
		}
		if res.Evaluation != nil {
			for i, opt := range res.Evaluation.Options {
				sample.Scores[i] = opt.Score
			}
		} else {
			sample.Scores = [3]float64{100, 100, 100}
		}
		if res.Warning != nil {
			sev := res.Warning.Severity
			sample.Warning = &sev
			msg := fmt.Sprintf("frame %d %s: %s", idx, ts.Format(time.RFC3339Nano), res.Warning.Message)
			report.Messages = append(report.Messages, msg)
			fmt.Fprintln(w, msg)
		} else if cfg.Verbose {
			fmt.Fprintf(w, "frame %d: %d obstacles\n", idx, len(res.Obstacles))
		}
		report.Timeline.Add(sample)

		if cfg.OutputDir != "" && cfg.SnapshotEach > 0 && idx%cfg.SnapshotEach == 0 {
			path := filepath.Join(cfg.OutputDir, fmt.Sprintf("frame_%06d.png", idx))
			if err := writeSnapshot(path, diagnostics.Snapshot{
				Title:      fmt.Sprintf("frame %d", idx),
				Obstacles:  res.Obstacles,
				Evaluation: res.Evaluation,
				Lookahead:  lookahead,
			}); err != nil {
				return err
			}
			report.Snapshots = append(report.Snapshots, path)
		}
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("replay stopped after %d frames: %w", n, err)
	}
	return report, nil
}

func writeSnapshot(path string, s diagnostics.Snapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := diagnostics.WriteTopDownPNG(f, s); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func main() {
	var cfg Config
	flag.StringVar(&cfg.PCAPFile, "pcap", "", "Depth camera PCAP capture (required)")
	flag.IntVar(&cfg.UDPPort, "port", 0, "UDP destination port to replay (0 accepts any)")
	flag.StringVar(&cfg.ConfigPath, "config", "", "Detection config JSON file")
	flag.StringVar(&cfg.OutputDir, "out", "", "Directory for plots (empty disables)")
	flag.IntVar(&cfg.SnapshotEach, "snapshot-every", 0, "Write a top-down PNG every N frames (0 disables)")
	flag.BoolVar(&cfg.Verbose, "v", false, "Log every frame")
	flag.Parse()

	if cfg.PCAPFile == "" {
		flag.Usage()
		os.Exit(2)
	}

	detCfg := config.EmptyDetectionConfig()
	if cfg.ConfigPath != "" {
		var err error
		if detCfg, err = config.LoadDetectionConfig(cfg.ConfigPath); err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}
	if cfg.OutputDir != "" {
		if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
			log.Fatalf("failed to create output dir: %v", err)
		}
	}

	f, err := os.Open(cfg.PCAPFile)
	if err != nil {
		log.Fatalf("failed to open capture: %v", err)
	}
	defer f.Close()

	report, err := replay(context.Background(), f, cfg, detCfg, os.Stdout)
	if err != nil {
		log.Printf("%v", err)
	}
	if report == nil {
		os.Exit(1)
	}

	s := report.Timeline.Summarize()
	fmt.Printf("frames=%d with_obstacles=%d warnings=%d critical=%d mean_nearest=%.2fm min_nearest=%.2fm\n",
		s.Frames, s.FramesWithObjects, s.Warnings, s.Critical, s.MeanNearest, s.MinNearest)

	if cfg.OutputDir != "" && report.Timeline.Len() > 0 {
		path := filepath.Join(cfg.OutputDir, "timeline.png")
		if err := report.Timeline.Save(path); err != nil {
			log.Fatalf("failed to save timeline: %v", err)
		}
		fmt.Printf("timeline written to %s\n", path)
	}
}
