package spatialmath

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
)

// Camera frames follow the depth sensor convention: x right, y down, z forward.
var (
	axisRight   = r3.Vector{X: 1}
	axisDown    = r3.Vector{Y: 1}
	axisForward = r3.Vector{Z: 1}
)

const degenerateEpsilon = 1e-9

// Pose is a position and unit quaternion orientation.
type Pose struct {
	Position    r3.Vector
	Orientation Quaternion
}

// NewZeroPose returns a pose at the origin with no rotation.
func NewZeroPose() Pose {
	return Pose{Orientation: NewZeroOrientation()}
}

// NewLookAtPose places a camera at eye looking at target with the given world up direction.
// It never returns a degenerate orientation: a zero look vector falls back to looking along +z
// and an up vector parallel to the look vector is replaced by the world axis least aligned with it.
func NewLookAtPose(eye, target, up r3.Vector) Pose {
	forward := target.Sub(eye)
	if forward.Norm() < degenerateEpsilon {
		forward = axisForward
	}
	forward = forward.Normalize()

	if up.Norm() < degenerateEpsilon || forward.Cross(up).Norm() < degenerateEpsilon {
		up = leastAlignedAxis(forward)
	}
	right := forward.Cross(up).Normalize()
	down := forward.Cross(right).Normalize()

	return Pose{
		Position:    eye,
		Orientation: NewRotationMatrixFromColumns(right, down, forward).Quaternion(),
	}
}

func leastAlignedAxis(v r3.Vector) r3.Vector {
	candidates := []r3.Vector{{X: 1}, {Y: -1}, {Z: 1}}
	best := candidates[0]
	bestDot := 2.0
	for _, c := range candidates {
		if d := abs(v.Dot(c)); d < bestDot {
			best, bestDot = c, d
		}
	}
	return best
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// Forward returns the world direction the camera looks along.
func (p Pose) Forward() r3.Vector {
	return p.Orientation.Rotate(axisForward)
}

// Right returns the world direction of the image's +x axis.
func (p Pose) Right() r3.Vector {
	return p.Orientation.Rotate(axisRight)
}

// Up returns the world direction of the image's up, the opposite of its +y axis.
func (p Pose) Up() r3.Vector {
	return p.Orientation.Rotate(axisDown).Mul(-1)
}

// ViewMatrix returns the world to eye transform for an OpenGL style projection.
func (p Pose) ViewMatrix() mgl64.Mat4 {
	eye := toVec3(p.Position)
	center := toVec3(p.Position.Add(p.Forward()))
	return mgl64.LookAtV(eye, center, toVec3(p.Up()))
}

func (p Pose) String() string {
	return fmt.Sprintf("pos=(%.3f, %.3f, %.3f) q=(%.3f, %.3f, %.3f, %.3f)",
		p.Position.X, p.Position.Y, p.Position.Z,
		p.Orientation.Real, p.Orientation.Imag, p.Orientation.Jmag, p.Orientation.Kmag)
}

func toVec3(v r3.Vector) mgl64.Vec3 {
	return mgl64.Vec3{v.X, v.Y, v.Z}
}
