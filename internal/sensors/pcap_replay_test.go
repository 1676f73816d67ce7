package sensors

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/banshee-data/wayfinder/internal/depth"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedPayload struct {
	port    uint16
	payload []byte
}

// writeCapture builds an Ethernet/IPv4/UDP pcap holding the payloads.
func writeCapture(t *testing.T, payloads []capturedPayload) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := pcapgo.NewWriter(&buf)
	require.NoError(t, w.WriteFileHeader(65536, layers.LinkTypeEthernet))

	start := time.Unix(1760000000, 0)
	for i, p := range payloads {
		eth := &layers.Ethernet{
			SrcMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 1},
			DstMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 2},
			EthernetType: layers.EthernetTypeIPv4,
		}
		ip := &layers.IPv4{
			Version:  4,
			TTL:      64,
			Protocol: layers.IPProtocolUDP,
			SrcIP:    net.IPv4(192, 168, 4, 2),
			DstIP:    net.IPv4(192, 168, 4, 1),
		}
		udp := &layers.UDP{SrcPort: 40000, DstPort: layers.UDPPort(p.port)}
		require.NoError(t, udp.SetNetworkLayerForChecksum(ip))

		sb := gopacket.NewSerializeBuffer()
		opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
		require.NoError(t, gopacket.SerializeLayers(sb, opts, eth, ip, udp, gopacket.Payload(p.payload)))
		data := sb.Bytes()

		ci := gopacket.CaptureInfo{
			Timestamp:     start.Add(time.Duration(i) * 100 * time.Millisecond),
			CaptureLength: len(data),
			Length:        len(data),
		}
		require.NoError(t, w.WritePacket(ci, data))
	}
	return buf.Bytes()
}

func encode(t *testing.T, meters float32) []byte {
	t.Helper()
	b, err := depth.EncodeDatagram(testFrame(2, 2, meters))
	require.NoError(t, err)
	return b
}

func TestReadPCAPFrames(t *testing.T) {
	capture := writeCapture(t, []capturedPayload{
		{port: 7001, payload: encode(t, 1.0)},
		{port: 7001, payload: []byte("not a frame")},
		{port: 9999, payload: encode(t, 3.0)},
		{port: 7001, payload: encode(t, 2.0)},
	})

	var got []float64
	var stamps []time.Time
	n, err := ReadPCAPFrames(context.Background(), bytes.NewReader(capture), 7001, func(f *depth.Frame, at time.Time) error {
		got = append(got, f.At(0, 0))
		stamps = append(stamps, at)
		assert.Equal(t, "pcap-replay", f.Source)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, got, 2)
	assert.InDelta(t, 1.0, got[0], 1e-3)
	assert.InDelta(t, 2.0, got[1], 1e-3)
	assert.Equal(t, 300*time.Millisecond, stamps[1].Sub(stamps[0]))

	n, err = ReadPCAPFrames(context.Background(), bytes.NewReader(capture), 0, func(*depth.Frame, time.Time) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 3, n, "port 0 accepts every port")
}

func TestReadPCAPFrames_BadHeader(t *testing.T) {
	_, err := ReadPCAPFrames(context.Background(), bytes.NewReader([]byte("nope")), 0, nil)
	assert.Error(t, err)
}

func TestPCAPReplay_Run(t *testing.T) {
	path := filepath.Join(t.TempDir(), "walk.pcap")
	require.NoError(t, os.WriteFile(path, writeCapture(t, []capturedPayload{
		{port: 7001, payload: encode(t, 0.8)},
		{port: 7001, payload: encode(t, 1.6)},
	}), 0o644))

	p, err := OpenPCAPReplay(path, ReplayOptions{Port: 7001})
	require.NoError(t, err)
	assert.Equal(t, KindDepthCamera, p.Kind())
	require.NoError(t, p.Run(context.Background()))

	f, ok := p.AcquireFrame()
	require.True(t, ok)
	assert.InDelta(t, 1.6, f.At(1, 1), 1e-3)
	assert.NoError(t, p.Close())
}

func TestPCAPReplay_PacedRunHonoursCancel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "walk.pcap")
	require.NoError(t, os.WriteFile(path, writeCapture(t, []capturedPayload{
		{port: 7001, payload: encode(t, 0.8)},
		{port: 7001, payload: encode(t, 1.6)},
	}), 0o644))

	// At 0.0001x the 100ms gap becomes ~17 minutes.
	p, err := OpenPCAPReplay(path, ReplayOptions{Speed: 0.0001, Loop: true})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	f := waitForFrame(t, p)
	assert.InDelta(t, 0.8, f.At(0, 0), 1e-3)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestPCAPReplay_EmptyCapture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.pcap")
	require.NoError(t, os.WriteFile(path, writeCapture(t, nil), 0o644))
	p, err := OpenPCAPReplay(path, ReplayOptions{Loop: true})
	require.NoError(t, err)
	assert.ErrorContains(t, p.Run(context.Background()), "no depth frames")
}

func TestOpenPCAPReplay_Errors(t *testing.T) {
	_, err := OpenPCAPReplay(filepath.Join(t.TempDir(), "missing.pcap"), ReplayOptions{})
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "junk.pcap")
	require.NoError(t, os.WriteFile(path, []byte("junk junk junk junk junk junk"), 0o644))
	_, err = OpenPCAPReplay(path, ReplayOptions{})
	assert.Error(t, err)
}
