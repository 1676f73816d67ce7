package sensors

import (
	"context"
	"fmt"

	"github.com/banshee-data/wayfinder/internal/depth"
	"github.com/banshee-data/wayfinder/internal/monitoring"
	"github.com/banshee-data/wayfinder/internal/serialmux"
)

// RangeSensor decodes the multi-zone range sensor's JSON line feed.
type RangeSensor struct {
	frameSlot
	mux    serialmux.SerialMuxInterface
	fovDeg float64
	mount  depth.Transform

	onClose func()

	// Status holds the most recent status report from the device.
	Status serialmux.DeviceStatus
}

// NewRangeSensor wraps an opened serial mux. mount is used for frames that
// do not carry their own pose.
func NewRangeSensor(mux serialmux.SerialMuxInterface, horizontalFOVDeg float64, mount depth.Transform) *RangeSensor {
	return &RangeSensor{mux: mux, fovDeg: horizontalFOVDeg, mount: mount}
}

func (s *RangeSensor) Kind() Kind { return KindRangeSensor }

// DeviceStatus returns the latest status values reported by the device.
func (s *RangeSensor) DeviceStatus() map[string]any { return s.Status.Snapshot() }

// Mux exposes the underlying serial mux for admin routes.
func (s *RangeSensor) Mux() serialmux.SerialMuxInterface { return s.mux }

// Run configures the sensor and decodes lines until ctx is cancelled or the
// port stops producing data.
func (s *RangeSensor) Run(ctx context.Context) error {
	if err := s.mux.Initialize(); err != nil {
		return fmt.Errorf("range sensor init: %w", err)
	}

	id, lines := s.mux.Subscribe()
	defer s.mux.Unsubscribe(id)

	monErr := make(chan error, 1)
	go func() { monErr <- s.mux.Monitor(ctx) }()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-monErr:
			s.drain(lines)
			if err != nil && ctx.Err() == nil {
				return fmt.Errorf("range sensor monitor: %w", err)
			}
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			s.handleLine(line)
		}
	}
}

func (s *RangeSensor) drain(lines chan string) {
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return
			}
			s.handleLine(line)
		default:
			return
		}
	}
}

func (s *RangeSensor) handleLine(line string) {
	switch serialmux.ClassifyLine(line) {
	case serialmux.LineTypeFrame:
		f, err := depth.DecodeRangeLine(line, s.fovDeg, s.mount)
		if err != nil {
			monitoring.Logf("range sensor: dropping frame line: %v", err)
			return
		}
		s.publish(f)
	case serialmux.LineTypeStatus:
		if err := s.Status.Update(line); err != nil {
			monitoring.Logf("range sensor: %v", err)
		}
	default:
		monitoring.Debugf("range sensor: ignoring line %q", line)
	}
}

func (s *RangeSensor) Close() error {
	if s.onClose != nil {
		s.onClose()
	}
	return s.mux.Close()
}
