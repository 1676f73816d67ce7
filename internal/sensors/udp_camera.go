package sensors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/banshee-data/wayfinder/internal/depth"
	"github.com/banshee-data/wayfinder/internal/monitoring"
)

// UDPCamera receives depth frames as single WFD1 datagrams.
type UDPCamera struct {
	frameSlot
	conn *net.UDPConn

	received atomic.Uint64
	rejected atomic.Uint64
}

// ListenUDPCamera binds the datagram socket. Binding is the capability probe:
// if the address cannot be bound the strategy is unavailable.
func ListenUDPCamera(address string) (*UDPCamera, error) {
	addr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP address: %w", err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on UDP address: %w", err)
	}
	return &UDPCamera{conn: conn}, nil
}

func (c *UDPCamera) Kind() Kind { return KindDepthCamera }

// LocalAddr returns the bound address.
func (c *UDPCamera) LocalAddr() net.Addr { return c.conn.LocalAddr() }

// Counts returns datagrams received and datagrams that failed to decode.
func (c *UDPCamera) Counts() (received, rejected uint64) {
	return c.received.Load(), c.rejected.Load()
}

// Run reads datagrams until ctx is cancelled or the socket is closed.
func (c *UDPCamera) Run(ctx context.Context) error {
	buffer := make([]byte, 65536)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		// Short deadline so cancellation is observed promptly.
		c.conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		n, addr, err := c.conn.ReadFromUDP(buffer)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			monitoring.Logf("depth camera: UDP read error: %v", err)
			continue
		}

		c.received.Add(1)
		f, err := depth.DecodeDatagram(buffer[:n])
		if err != nil {
			c.rejected.Add(1)
			monitoring.Debugf("depth camera: bad datagram from %v: %v", addr, err)
			continue
		}
		f.Source = "depth-camera"
		c.publish(f)
	}
}

func (c *UDPCamera) Close() error {
	return c.conn.Close()
}
