package sensors

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/banshee-data/wayfinder/internal/config"
	"github.com/banshee-data/wayfinder/internal/depth"
	"github.com/banshee-data/wayfinder/internal/httputil"
	"github.com/banshee-data/wayfinder/internal/monitoring"
	"github.com/banshee-data/wayfinder/internal/serialmux"
	"github.com/banshee-data/wayfinder/internal/timeutil"
)

// Opener probes and opens one strategy.
type Opener func() (Source, error)

type candidate struct {
	kind  Kind
	name  string
	open  Opener
	order int
}

// Registry holds the strategies available to a session, in priority order.
type Registry struct {
	mu         sync.Mutex
	candidates []candidate
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a strategy. Within a kind, earlier registrations win.
func (r *Registry) Register(kind Kind, name string, open Opener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.candidates = append(r.candidates, candidate{kind: kind, name: name, open: open, order: len(r.candidates)})
}

// Select opens the highest priority strategy that succeeds. Unconfigured or
// failing strategies are logged and skipped. ErrSensorUnavailable is
// returned when none opens.
func (r *Registry) Select() (Source, error) {
	r.mu.Lock()
	cands := slices.Clone(r.candidates)
	r.mu.Unlock()

	slices.SortStableFunc(cands, func(a, b candidate) int {
		if a.kind != b.kind {
			return int(a.kind) - int(b.kind)
		}
		return a.order - b.order
	})

	var errs []error
	for _, c := range cands {
		src, err := c.open()
		if err == nil {
			monitoring.Logf("sensors: selected %s (%s)", c.kind, c.name)
			return src, nil
		}
		if errors.Is(err, ErrUnsupportedConfiguration) {
			monitoring.Debugf("sensors: %s unavailable, falling back: %v", c.name, err)
		} else {
			monitoring.Logf("sensors: failed to open %s, falling back: %v", c.name, err)
		}
		errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
	}
	if len(errs) == 0 {
		return nil, ErrSensorUnavailable
	}
	return nil, fmt.Errorf("%w: %w", ErrSensorUnavailable, errors.Join(errs...))
}

// Options carries injectable collaborators for FromConfig.
type Options struct {
	SerialFactory serialmux.SerialPortFactory
	// SerialLive, when set, tracks the range sensor's mux for admin routes.
	SerialLive  *serialmux.Live
	HTTPClient  httputil.HTTPClient
	Clock       timeutil.Clock
	Mount       depth.Transform
	ReplaySpeed float64
	ReplayLoop  bool
}

// FromConfig registers every strategy the detection config knows about.
// Strategies whose settings are empty report ErrUnsupportedConfiguration.
func FromConfig(cfg *config.DetectionConfig, opts Options) *Registry {
	if opts.SerialFactory == nil {
		opts.SerialFactory = serialmux.NewRealSerialPortFactory()
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	if opts.Mount.IsZero() {
		opts.Mount = depth.Identity()
	}
	fov := cfg.GetHorizontalFOVDegrees()

	r := NewRegistry()
	r.Register(KindRangeSensor, "serial range sensor", func() (Source, error) {
		path := cfg.GetSerialPort()
		if path == "" {
			return nil, fmt.Errorf("no serial port configured: %w", ErrUnsupportedConfiguration)
		}
		mux, err := serialmux.NewSerialMuxFromFactory(opts.SerialFactory, path, serialmux.PortOptions{BaudRate: cfg.GetSerialBaudRate()})
		if err != nil {
			return nil, fmt.Errorf("open serial port %s: %w", path, err)
		}
		s := NewRangeSensor(mux, fov, opts.Mount)
		if live := opts.SerialLive; live != nil {
			live.Set(mux)
			s.onClose = func() { live.Clear(mux) }
		}
		return s, nil
	})
	r.Register(KindDepthCamera, "udp depth camera", func() (Source, error) {
		addr := cfg.GetDepthCameraUDP()
		if addr == "" {
			return nil, fmt.Errorf("no udp address configured: %w", ErrUnsupportedConfiguration)
		}
		return ListenUDPCamera(addr)
	})
	r.Register(KindDepthCamera, "pcap replay", func() (Source, error) {
		path := cfg.GetDepthCameraPCAP()
		if path == "" {
			return nil, fmt.Errorf("no pcap file configured: %w", ErrUnsupportedConfiguration)
		}
		return OpenPCAPReplay(path, ReplayOptions{Speed: opts.ReplaySpeed, Loop: opts.ReplayLoop})
	})
	r.Register(KindVisionEstimator, "vision estimator", func() (Source, error) {
		url := cfg.GetCameraSnapshotURL()
		if url == "" {
			return nil, fmt.Errorf("no snapshot url configured: %w", ErrUnsupportedConfiguration)
		}
		model := DefaultGroundModel()
		model.CameraHeight = cfg.GetCameraHeightMeters()
		model.HorizontalFOVDeg = fov
		model.MaxRange = cfg.GetDetectionRangeMeters()
		return NewVisionEstimator(url, VisionOptions{
			Interval: cfg.GetCameraPollInterval(),
			Model:    model,
			Client:   opts.HTTPClient,
			Clock:    opts.Clock,
		})
	})
	return r
}
