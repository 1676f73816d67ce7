package sensors

import (
	"context"
	"errors"

	"github.com/banshee-data/wayfinder/internal/depth"
)

var (
	// ErrSensorUnavailable is returned when no strategy can be opened.
	ErrSensorUnavailable = errors.New("no sensing strategy available")
	// ErrUnsupportedConfiguration marks a strategy that is not configured or
	// not supported on this device. The selector falls back past it.
	ErrUnsupportedConfiguration = errors.New("sensor configuration unsupported")
)

// Kind tags a sensing strategy. Lower values take priority.
type Kind int

const (
	KindRangeSensor Kind = iota + 1
	KindDepthCamera
	KindVisionEstimator
)

func (k Kind) String() string {
	switch k {
	case KindRangeSensor:
		return "range-sensor"
	case KindDepthCamera:
		return "depth-camera"
	case KindVisionEstimator:
		return "vision-estimator"
	default:
		return "none"
	}
}

// MarshalText renders the kind by name in JSON.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Source is one opened sensing strategy.
type Source interface {
	Kind() Kind
	// Run pumps frames until ctx is cancelled or the device fails.
	Run(ctx context.Context) error
	// AcquireFrame takes the most recent frame without blocking. ok is false
	// when no new frame arrived or the holder is busy.
	AcquireFrame() (f *depth.Frame, ok bool)
	Close() error
}

// frameSlot gives a source its single-slot frame holder.
type frameSlot struct {
	latest depth.LatestFrame
}

func (s *frameSlot) AcquireFrame() (*depth.Frame, bool) {
	return s.latest.Take()
}

// FrameCounts reports frames stored and frames overwritten before a tick
// took them.
func (s *frameSlot) FrameCounts() (stored, dropped uint64) {
	return s.latest.Counts()
}

func (s *frameSlot) publish(f *depth.Frame) {
	s.latest.Store(f)
}
