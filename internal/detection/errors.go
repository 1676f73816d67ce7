package detection

import (
	"errors"

	"github.com/banshee-data/wayfinder/internal/sensors"
)

var (
	// ErrSensorUnavailable is returned by Start when no strategy opens.
	ErrSensorUnavailable = sensors.ErrSensorUnavailable
	// ErrUnsupportedConfiguration marks a strategy the selector skipped.
	ErrUnsupportedConfiguration = sensors.ErrUnsupportedConfiguration
	// ErrFrameAcquisitionMiss means a tick found no new frame. It is counted
	// in Stats and never returned to callers.
	ErrFrameAcquisitionMiss = errors.New("frame acquisition miss")
)
