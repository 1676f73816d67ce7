package sensors

import (
	"context"
	"strings"
	"testing"

	"github.com/banshee-data/wayfinder/internal/depth"
	"github.com/banshee-data/wayfinder/internal/serialmux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRangeSensor_DecodesLines(t *testing.T) {
	port := serialmux.NewTestableSerialPort()
	port.AddReadData([]byte(strings.Join([]string{
		`{"t":1760000000000,"w":2,"h":1,"mm":[800,0]}`,
		`{"temp_c":39.5}`,
		`BOOT OK`,
		`{"t":1760000000100,"w":2,"h":2,"mm":[1]}`,
		`{"t":1760000000200,"w":2,"h":1,"mm":[1500,2500]}`,
	}, "\n") + "\n"))
	s := NewRangeSensor(serialmux.NewSerialMux(port), 45, depth.Identity())

	err := s.Run(context.Background())
	require.NoError(t, err)

	f, ok := s.AcquireFrame()
	require.True(t, ok)
	assert.Equal(t, 2, f.Width)
	assert.InDelta(t, 1.5, f.At(0, 0), 1e-6)
	assert.InDelta(t, 2.5, f.At(1, 0), 1e-6)
	assert.Equal(t, int64(1760000000200), f.Timestamp.UnixMilli())

	stored, dropped := s.FrameCounts()
	assert.Equal(t, uint64(2), stored, "mismatched frame must be dropped")
	assert.Equal(t, uint64(1), dropped)

	assert.Equal(t, 39.5, s.DeviceStatus()["temp_c"])

	written := string(port.GetWrittenData())
	for _, cmd := range serialmux.StartupCommands {
		assert.Contains(t, written, cmd+"\n")
	}
	assert.Equal(t, KindRangeSensor, s.Kind())
}

func TestRangeSensor_InitFailure(t *testing.T) {
	port := serialmux.NewTestableSerialPort()
	port.Close()
	s := NewRangeSensor(serialmux.NewSerialMux(port), 45, depth.Identity())

	err := s.Run(context.Background())
	assert.ErrorContains(t, err, "range sensor init")
}

func TestRangeSensor_StopsOnCancel(t *testing.T) {
	port := serialmux.NewTestableSerialPort()
	port.BlockReads = true
	s := NewRangeSensor(serialmux.NewSerialMux(port), 45, depth.Identity())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Run(ctx), context.Canceled)
	assert.NoError(t, s.Close())
	assert.True(t, port.Closed)
}
