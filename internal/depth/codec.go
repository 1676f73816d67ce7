package depth

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Wire decoding errors.
var (
	ErrBadMagic          = errors.New("depth: bad datagram magic")
	ErrShortDatagram     = errors.New("depth: datagram too short")
	ErrDimensionMismatch = errors.New("depth: pixel count does not match dimensions")
	ErrNotFrameLine      = errors.New("depth: line is not a frame")
)

// DatagramMagic prefixes every depth camera datagram.
const DatagramMagic = "WFD1"

// DatagramHeaderSize is magic(4) + width(2) + height(2) + unix nanos(8) +
// transform(16×4) + intrinsics(4×4).
const DatagramHeaderSize = 4 + 2 + 2 + 8 + 64 + 16

// MaxDatagramPixels keeps a frame inside one UDP datagram.
const MaxDatagramPixels = (65507 - DatagramHeaderSize) / 2

// EncodeDatagram serialises f into the little-endian depth camera format.
// Depths are written as uint16 millimeters, saturating at 65.535 m.
func EncodeDatagram(f *Frame) ([]byte, error) {
	if !f.Valid() {
		return nil, ErrDimensionMismatch
	}
	if f.Width*f.Height > MaxDatagramPixels {
		return nil, fmt.Errorf("depth: %dx%d frame exceeds one datagram", f.Width, f.Height)
	}
	buf := make([]byte, DatagramHeaderSize+2*len(f.Depth))
	copy(buf, DatagramMagic)
	binary.LittleEndian.PutUint16(buf[4:], uint16(f.Width))
	binary.LittleEndian.PutUint16(buf[6:], uint16(f.Height))
	binary.LittleEndian.PutUint64(buf[8:], uint64(f.Timestamp.UnixNano()))
	off := 16
	for _, v := range f.Transform {
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(float32(v)))
		off += 4
	}
	for _, v := range []float64{f.Intrinsics.Fx, f.Intrinsics.Fy, f.Intrinsics.Cx, f.Intrinsics.Cy} {
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(float32(v)))
		off += 4
	}
	for _, d := range f.Depth {
		mm := math.Round(float64(d) * 1000)
		if mm < 0 || math.IsNaN(mm) {
			mm = 0
		}
		if mm > math.MaxUint16 {
			mm = math.MaxUint16
		}
		binary.LittleEndian.PutUint16(buf[off:], uint16(mm))
		off += 2
	}
	return buf, nil
}

// DecodeDatagram parses one depth camera datagram.
func DecodeDatagram(b []byte) (*Frame, error) {
	if len(b) < DatagramHeaderSize {
		return nil, ErrShortDatagram
	}
	if string(b[:4]) != DatagramMagic {
		return nil, ErrBadMagic
	}
	w := int(binary.LittleEndian.Uint16(b[4:]))
	h := int(binary.LittleEndian.Uint16(b[6:]))
	if w > MaxFrameDim || h > MaxFrameDim || len(b)-DatagramHeaderSize != 2*w*h {
		return nil, fmt.Errorf("%w: %dx%d with %d payload bytes", ErrDimensionMismatch, w, h, len(b)-DatagramHeaderSize)
	}

	f := &Frame{
		Width:     w,
		Height:    h,
		Depth:     make([]float32, w*h),
		Timestamp: time.Unix(0, int64(binary.LittleEndian.Uint64(b[8:]))),
		Source:    "depth-camera",
	}
	off := 16
	for i := range f.Transform {
		f.Transform[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(b[off:])))
		off += 4
	}
	var in [4]float64
	for i := range in {
		in[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(b[off:])))
		off += 4
	}
	f.Intrinsics = Intrinsics{Fx: in[0], Fy: in[1], Cx: in[2], Cy: in[3]}
	for i := range f.Depth {
		f.Depth[i] = float32(binary.LittleEndian.Uint16(b[off:])) / 1000
		off += 2
	}
	return f, nil
}

// rangeLine is the JSON line emitted by the serial range sensor.
type rangeLine struct {
	UnixMillis int64     `json:"t"`
	Width      int       `json:"w"`
	Height     int       `json:"h"`
	Millimeter []int     `json:"mm"`
	Pose       []float64 `json:"pose,omitempty"`
}

// DecodeRangeLine parses one serial range sensor line. Lines that are not
// JSON objects (banners, command acks) return ErrNotFrameLine. The mount
// transform is used when the line carries no pose.
func DecodeRangeLine(line string, horizontalFOVDeg float64, mount Transform) (*Frame, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "{") {
		return nil, ErrNotFrameLine
	}
	var rl rangeLine
	if err := json.Unmarshal([]byte(line), &rl); err != nil {
		return nil, fmt.Errorf("failed to unmarshal range line: %w", err)
	}
	if rl.Width <= 0 || rl.Width > MaxFrameDim || rl.Height <= 0 || rl.Height > MaxFrameDim ||
		len(rl.Millimeter) != rl.Width*rl.Height {
		return nil, fmt.Errorf("%w: %dx%d with %d zones", ErrDimensionMismatch, rl.Width, rl.Height, len(rl.Millimeter))
	}

	f := &Frame{
		Width:      rl.Width,
		Height:     rl.Height,
		Depth:      make([]float32, len(rl.Millimeter)),
		Intrinsics: IntrinsicsFromFOV(rl.Width, rl.Height, horizontalFOVDeg),
		Transform:  mount,
		Timestamp:  time.UnixMilli(rl.UnixMillis),
		Source:     "range-sensor",
	}
	if len(rl.Pose) == 16 {
		copy(f.Transform[:], rl.Pose)
	}
	for i, mm := range rl.Millimeter {
		if mm > 0 {
			f.Depth[i] = float32(mm) / 1000
		}
	}
	return f, nil
}
