package sensors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/banshee-data/wayfinder/internal/depth"
	"github.com/banshee-data/wayfinder/internal/monitoring"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// ReplayOptions controls PCAP playback.
type ReplayOptions struct {
	// Port filters UDP packets by destination port; 0 accepts any.
	Port int
	// Speed scales capture-time gaps; 1.0 is real time and values <= 0
	// replay as fast as frames can be decoded.
	Speed float64
	// Loop restarts from the beginning at end of file.
	Loop bool
}

// PCAPReplay plays recorded depth datagrams back as a depth camera.
type PCAPReplay struct {
	frameSlot
	path string
	opts ReplayOptions
}

// OpenPCAPReplay verifies that path is a readable capture.
func OpenPCAPReplay(path string, opts ReplayOptions) (*PCAPReplay, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PCAP file %s: %w", path, err)
	}
	defer f.Close()
	if _, err := pcapgo.NewReader(f); err != nil {
		return nil, fmt.Errorf("failed to read PCAP header %s: %w", path, err)
	}
	return &PCAPReplay{path: path, opts: opts}, nil
}

func (p *PCAPReplay) Kind() Kind { return KindDepthCamera }

// Run replays the capture, pacing frames by capture timestamps.
func (p *PCAPReplay) Run(ctx context.Context) error {
	for {
		n, err := p.replayOnce(ctx)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("pcap replay: %s contains no depth frames", p.path)
		}
		if !p.opts.Loop {
			return nil
		}
		monitoring.Debugf("pcap replay: looping %s", p.path)
	}
}

func (p *PCAPReplay) replayOnce(ctx context.Context) (int, error) {
	f, err := os.Open(p.path)
	if err != nil {
		return 0, fmt.Errorf("failed to open PCAP file %s: %w", p.path, err)
	}
	defer f.Close()

	var last time.Time
	n, err := ReadPCAPFrames(ctx, f, p.opts.Port, func(frame *depth.Frame, captured time.Time) error {
		if p.opts.Speed > 0 && !last.IsZero() {
			delay := time.Duration(float64(captured.Sub(last)) / p.opts.Speed)
			if delay > 0 {
				timer := time.NewTimer(delay)
				select {
				case <-ctx.Done():
					timer.Stop()
					return ctx.Err()
				case <-timer.C:
				}
			}
		}
		last = captured
		p.publish(frame)
		return nil
	})
	monitoring.Debugf("pcap replay: %d frames from %s", n, p.path)
	return n, err
}

// Close is a no-op; each replay pass opens and closes its own file.
func (p *PCAPReplay) Close() error { return nil }

// ReadPCAPFrames decodes every depth datagram in a pcap stream and calls fn
// with the frame and its capture time. Packets that are not UDP, or whose
// payload is not a depth datagram, are skipped. It returns the number of
// frames delivered.
func ReadPCAPFrames(ctx context.Context, r io.Reader, port int, fn func(*depth.Frame, time.Time) error) (int, error) {
	reader, err := pcapgo.NewReader(r)
	if err != nil {
		return 0, fmt.Errorf("failed to read PCAP header: %w", err)
	}
	source := gopacket.NewPacketSource(reader, reader.LinkType())
	source.NoCopy = true

	frames := 0
	for {
		if err := ctx.Err(); err != nil {
			return frames, err
		}
		packet, err := source.NextPacket()
		if errors.Is(err, io.EOF) {
			return frames, nil
		}
		if err != nil {
			return frames, fmt.Errorf("failed to read packet: %w", err)
		}

		udpLayer := packet.Layer(layers.LayerTypeUDP)
		if udpLayer == nil {
			continue
		}
		udp, ok := udpLayer.(*layers.UDP)
		if !ok || len(udp.Payload) == 0 {
			continue
		}
		if port != 0 && int(udp.DstPort) != port {
			continue
		}

		frame, err := depth.DecodeDatagram(udp.Payload)
		if err != nil {
			monitoring.Debugf("pcap replay: skipping packet: %v", err)
			continue
		}
		frame.Source = "pcap-replay"
		frames++
		if err := fn(frame, packet.Metadata().Timestamp); err != nil {
			return frames, err
		}
	}
}
