// Package depth holds the depth frame model shared by sensor sources and the
// perception layer: per-pixel ranges, camera intrinsics, the camera-to-world
// transform, and the single-slot holder used to hand frames to the tick.
package depth

import (
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// MatrixValidationTolerance is the tolerance for checking rotation matrix validity.
const MatrixValidationTolerance = 0.01

// Transform is a 4x4 row-major rigid transform: m00,m01,m02,m03, m10,...
type Transform [16]float64

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Apply applies the transform to p.
func (t Transform) Apply(p r3.Vec) r3.Vec {
	return r3.Vec{
		X: t[0]*p.X + t[1]*p.Y + t[2]*p.Z + t[3],
		Y: t[4]*p.X + t[5]*p.Y + t[6]*p.Z + t[7],
		Z: t[8]*p.X + t[9]*p.Y + t[10]*p.Z + t[11],
	}
}

// IsZero reports whether every element is zero, which sources use to mean
// "no pose supplied".
func (t Transform) IsZero() bool {
	return t == Transform{}
}

// IsRigid checks that the rotation block has determinant ≈ 1 and the last
// row is [0 0 0 1].
func (t Transform) IsRigid() bool {
	r00, r01, r02 := t[0], t[1], t[2]
	r10, r11, r12 := t[4], t[5], t[6]
	r20, r21, r22 := t[8], t[9], t[10]

	det := r00*(r11*r22-r12*r21) - r01*(r10*r22-r12*r20) + r02*(r10*r21-r11*r20)
	if math.Abs(det-1.0) > MatrixValidationTolerance {
		return false
	}
	return t[12] == 0 && t[13] == 0 && t[14] == 0 && math.Abs(t[15]-1.0) <= 0.001
}

// Intrinsics describes a pinhole camera in pixels.
type Intrinsics struct {
	Fx, Fy float64 // focal lengths
	Cx, Cy float64 // principal point
}

// IntrinsicsFromFOV derives square-pixel intrinsics for a width×height image
// with the given horizontal field of view, principal point at the center.
func IntrinsicsFromFOV(width, height int, horizontalFOVDeg float64) Intrinsics {
	half := horizontalFOVDeg * math.Pi / 360.0
	f := float64(width) / 2 / math.Tan(half)
	return Intrinsics{
		Fx: f,
		Fy: f,
		Cx: float64(width) / 2,
		Cy: float64(height) / 2,
	}
}

// Frame is one sampling instant of per-pixel distance readings.
// Depth is row-major, len Width*Height, meters; 0 marks an invalid pixel.
type Frame struct {
	Width      int
	Height     int
	Depth      []float32
	Intrinsics Intrinsics
	Transform  Transform // camera-to-world
	Timestamp  time.Time
	Source     string
}

// MaxFrameDim bounds either frame dimension so Width*Height cannot overflow.
const MaxFrameDim = 1 << 14

// Valid reports whether the frame's dimensions agree with its pixel buffer.
func (f *Frame) Valid() bool {
	return f != nil &&
		f.Width > 0 && f.Width <= MaxFrameDim &&
		f.Height > 0 && f.Height <= MaxFrameDim &&
		len(f.Depth) == f.Width*f.Height
}

// At returns the depth at pixel (x, y).
func (f *Frame) At(x, y int) float64 {
	return float64(f.Depth[y*f.Width+x])
}

// Unproject maps pixel (u, v) at the given depth to camera coordinates
// (x right, y up, z forward). Frames without intrinsics get a 60° FOV.
func (f *Frame) Unproject(u, v, d float64) r3.Vec {
	in := f.Intrinsics
	if in.Fx == 0 || in.Fy == 0 {
		in = IntrinsicsFromFOV(f.Width, f.Height, 60)
	}
	return r3.Vec{
		X: (u - in.Cx) / in.Fx * d,
		Y: -(v - in.Cy) / in.Fy * d,
		Z: d,
	}
}

// ToWorld maps a camera-frame point through the frame's transform. A zero
// transform is treated as identity.
func (f *Frame) ToWorld(p r3.Vec) r3.Vec {
	if f.Transform.IsZero() {
		return p
	}
	return f.Transform.Apply(p)
}
