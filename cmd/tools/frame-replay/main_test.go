package main

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/banshee-data/wayfinder/internal/config"
	"github.com/banshee-data/wayfinder/internal/depth"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wallFrame(meters float32, at time.Time) *depth.Frame {
	f := &depth.Frame{Width: 40, Height: 40, Depth: make([]float32, 1600), Timestamp: at}
	for i := range f.Depth {
		f.Depth[i] = meters
	}
	return f
}

func capture(t *testing.T, frames ...*depth.Frame) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := pcapgo.NewWriter(&buf)
	require.NoError(t, w.WriteFileHeader(262144, layers.LinkTypeEthernet))

	for _, f := range frames {
		payload, err := depth.EncodeDatagram(f)
		require.NoError(t, err)

		eth := &layers.Ethernet{
			SrcMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 1},
			DstMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 2},
			EthernetType: layers.EthernetTypeIPv4,
		}
		ip := &layers.IPv4{
			Version:  4,
			TTL:      64,
			Protocol: layers.IPProtocolUDP,
			SrcIP:    net.IPv4(10, 0, 0, 2),
			DstIP:    net.IPv4(10, 0, 0, 1),
		}
		udp := &layers.UDP{SrcPort: 50000, DstPort: 7010}
		require.NoError(t, udp.SetNetworkLayerForChecksum(ip))

		sb := gopacket.NewSerializeBuffer()
		opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
		require.NoError(t, gopacket.SerializeLayers(sb, opts, eth, ip, udp, gopacket.Payload(payload)))
		data := sb.Bytes()
		require.NoError(t, w.WritePacket(gopacket.CaptureInfo{
			Timestamp:     f.Timestamp,
			CaptureLength: len(data),
			Length:        len(data),
		}, data))
	}
	return buf.Bytes()
}

func TestReplay_CooldownFollowsCaptureTime(t *testing.T) {
	start := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)
	data := capture(t,
		wallFrame(0.3, start),
		wallFrame(0.3, start.Add(time.Second)),
		wallFrame(0, start.Add(2*time.Second)),
		wallFrame(0.3, start.Add(4*time.Second)),
	)

	dir := t.TempDir()
	var out bytes.Buffer
	report, err := replay(context.Background(), bytes.NewReader(data),
		Config{UDPPort: 7010, OutputDir: dir, SnapshotEach: 2},
		config.EmptyDetectionConfig(), &out)
	require.NoError(t, err)

	assert.Equal(t, 4, report.Frames)
	require.Len(t, report.Messages, 2, out.String())
	assert.True(t, strings.HasPrefix(report.Messages[0], "frame 0 "), report.Messages[0])
	assert.True(t, strings.HasPrefix(report.Messages[1], "frame 3 "), report.Messages[1])
	assert.Contains(t, out.String(), "Stop!")

	s := report.Timeline.Summarize()
	assert.Equal(t, 4, s.Frames)
	assert.Equal(t, 3, s.FramesWithObjects)
	assert.Equal(t, 2, s.Critical)

	require.Len(t, report.Snapshots, 2)
	for _, p := range report.Snapshots {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.NotZero(t, info.Size())
	}
	assert.Equal(t, filepath.Join(dir, "frame_000000.png"), report.Snapshots[0])
}

func TestReplay_PortFilter(t *testing.T) {
	data := capture(t, wallFrame(1.0, time.Unix(1760000000, 0)))
	report, err := replay(context.Background(), bytes.NewReader(data), Config{UDPPort: 9999}, config.EmptyDetectionConfig(), &bytes.Buffer{})
	require.NoError(t, err)
	assert.Zero(t, report.Frames)
}

func TestReplay_BadCapture(t *testing.T) {
	_, err := replay(context.Background(), strings.NewReader("not a pcap"), Config{}, config.EmptyDetectionConfig(), &bytes.Buffer{})
	assert.Error(t, err)
}
