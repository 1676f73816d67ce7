package sensors

import (
	"context"
	"errors"
	"testing"

	"github.com/banshee-data/wayfinder/internal/config"
	"github.com/banshee-data/wayfinder/internal/depth"
	"github.com/banshee-data/wayfinder/internal/serialmux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	frameSlot
	kind Kind
	name string
}

func (f *fakeSource) Kind() Kind                    { return f.kind }
func (f *fakeSource) Run(ctx context.Context) error { <-ctx.Done(); return ctx.Err() }
func (f *fakeSource) Close() error                  { return nil }

func opener(kind Kind, name string, err error) Opener {
	return func() (Source, error) {
		if err != nil {
			return nil, err
		}
		return &fakeSource{kind: kind, name: name}, nil
	}
}

func TestRegistry_SelectsByPriority(t *testing.T) {
	r := NewRegistry()
	r.Register(KindVisionEstimator, "vision", opener(KindVisionEstimator, "vision", nil))
	r.Register(KindDepthCamera, "camera", opener(KindDepthCamera, "camera", nil))
	r.Register(KindRangeSensor, "range", opener(KindRangeSensor, "range", nil))

	src, err := r.Select()
	require.NoError(t, err)
	assert.Equal(t, KindRangeSensor, src.Kind())
}

func TestRegistry_FallsBack(t *testing.T) {
	r := NewRegistry()
	r.Register(KindRangeSensor, "range", opener(0, "", ErrUnsupportedConfiguration))
	r.Register(KindDepthCamera, "udp", opener(0, "", errors.New("address in use")))
	r.Register(KindDepthCamera, "pcap", opener(KindDepthCamera, "pcap", nil))
	r.Register(KindVisionEstimator, "vision", opener(KindVisionEstimator, "vision", nil))

	src, err := r.Select()
	require.NoError(t, err)
	assert.Equal(t, "pcap", src.(*fakeSource).name)
}

func TestRegistry_Unavailable(t *testing.T) {
	_, err := NewRegistry().Select()
	assert.ErrorIs(t, err, ErrSensorUnavailable)

	r := NewRegistry()
	r.Register(KindRangeSensor, "range", opener(0, "", ErrUnsupportedConfiguration))
	_, err = r.Select()
	assert.ErrorIs(t, err, ErrSensorUnavailable)
	assert.ErrorIs(t, err, ErrUnsupportedConfiguration)
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "range-sensor", KindRangeSensor.String())
	assert.Equal(t, "depth-camera", KindDepthCamera.String())
	assert.Equal(t, "vision-estimator", KindVisionEstimator.String())
	assert.Equal(t, "none", Kind(0).String())
}

func TestFromConfig_Empty(t *testing.T) {
	_, err := FromConfig(config.EmptyDetectionConfig(), Options{}).Select()
	assert.ErrorIs(t, err, ErrSensorUnavailable)
}

func TestFromConfig_PrefersSerial(t *testing.T) {
	port := serialmux.NewTestableSerialPort()
	factory := serialmux.NewMockSerialPortFactory(port)
	path := "/dev/ttyRANGE0"
	udp := "127.0.0.1:0"
	cfg := config.EmptyDetectionConfig()
	cfg.SerialPort = &path
	cfg.DepthCameraUDP = &udp

	live := serialmux.NewLive()
	src, err := FromConfig(cfg, Options{SerialFactory: factory, SerialLive: live}).Select()
	require.NoError(t, err)
	assert.Equal(t, KindRangeSensor, src.Kind())
	require.NotNil(t, factory.LastCall())
	assert.Equal(t, path, factory.LastCall().Path)
	assert.Equal(t, serialmux.DefaultBaudRate, factory.LastCall().Mode.BaudRate)

	_, open := live.Current()
	assert.True(t, open, "range sensor mux not published for admin routes")
	require.NoError(t, src.Close())
	_, open = live.Current()
	assert.False(t, open, "closed range sensor still published")
}

func TestFromConfig_SerialFailureFallsBackToUDP(t *testing.T) {
	factory := serialmux.NewMockSerialPortFactory(nil)
	factory.Error = errors.New("no such device")
	path := "/dev/ttyRANGE0"
	udp := "127.0.0.1:0"
	cfg := config.EmptyDetectionConfig()
	cfg.SerialPort = &path
	cfg.DepthCameraUDP = &udp

	src, err := FromConfig(cfg, Options{SerialFactory: factory}).Select()
	require.NoError(t, err)
	defer src.Close()
	assert.Equal(t, KindDepthCamera, src.Kind())
	assert.IsType(t, &UDPCamera{}, src)
}

func TestFromConfig_VisionFallback(t *testing.T) {
	u := "http://camera.local/snapshot.jpg"
	cfg := config.EmptyDetectionConfig()
	cfg.CameraSnapshotURL = &u

	src, err := FromConfig(cfg, Options{}).Select()
	require.NoError(t, err)
	assert.Equal(t, KindVisionEstimator, src.Kind())
	v := src.(*VisionEstimator)
	assert.Equal(t, cfg.GetCameraHeightMeters(), v.opts.Model.CameraHeight)
}

func TestFrameSlot(t *testing.T) {
	var s frameSlot
	_, ok := s.AcquireFrame()
	assert.False(t, ok)

	s.publish(&depth.Frame{Width: 1})
	s.publish(&depth.Frame{Width: 2})
	f, ok := s.AcquireFrame()
	require.True(t, ok)
	assert.Equal(t, 2, f.Width)

	stored, dropped := s.FrameCounts()
	assert.Equal(t, uint64(2), stored)
	assert.Equal(t, uint64(1), dropped)
}
