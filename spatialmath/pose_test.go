package spatialmath

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func vectorsAlmostEqual(t *testing.T, actual, expected r3.Vector) {
	t.Helper()
	test.That(t, actual.X, test.ShouldAlmostEqual, expected.X, 1e-6)
	test.That(t, actual.Y, test.ShouldAlmostEqual, expected.Y, 1e-6)
	test.That(t, actual.Z, test.ShouldAlmostEqual, expected.Z, 1e-6)
}

func TestLookAtAxes(t *testing.T) {
	pose := NewLookAtPose(r3.Vector{}, r3.Vector{Z: 5}, r3.Vector{Y: -1})
	test.That(t, pose.Orientation.IsUnit(1e-9), test.ShouldBeTrue)
	test.That(t, QuaternionAlmostEqual(pose.Orientation, NewZeroOrientation(), 1e-9), test.ShouldBeTrue)
	vectorsAlmostEqual(t, pose.Forward(), r3.Vector{Z: 1})
	vectorsAlmostEqual(t, pose.Right(), r3.Vector{X: 1})
	vectorsAlmostEqual(t, pose.Up(), r3.Vector{Y: -1})

	eye := r3.Vector{X: 2, Z: -2}
	pose = NewLookAtPose(eye, r3.Vector{}, r3.Vector{Y: -1})
	vectorsAlmostEqual(t, pose.Position, eye)
	vectorsAlmostEqual(t, pose.Forward(), r3.Vector{X: -1, Z: 1}.Normalize())
	test.That(t, pose.Right().Dot(pose.Forward()), test.ShouldAlmostEqual, 0)
	test.That(t, pose.Up().Dot(pose.Forward()), test.ShouldAlmostEqual, 0)
}

func TestLookAtDegenerate(t *testing.T) {
	// eye on the target
	pose := NewLookAtPose(r3.Vector{X: 1}, r3.Vector{X: 1}, r3.Vector{Y: -1})
	test.That(t, pose.Orientation.IsUnit(1e-9), test.ShouldBeTrue)
	vectorsAlmostEqual(t, pose.Forward(), r3.Vector{Z: 1})

	// up parallel to the look direction
	pose = NewLookAtPose(r3.Vector{}, r3.Vector{Y: -3}, r3.Vector{Y: -1})
	test.That(t, pose.Orientation.IsUnit(1e-9), test.ShouldBeTrue)
	vectorsAlmostEqual(t, pose.Forward(), r3.Vector{Y: -1})
	test.That(t, pose.Right().Norm(), test.ShouldAlmostEqual, 1)

	// zero up
	pose = NewLookAtPose(r3.Vector{}, r3.Vector{Z: 1}, r3.Vector{})
	test.That(t, pose.Orientation.IsUnit(1e-9), test.ShouldBeTrue)
	for _, c := range []float64{pose.Orientation.Real, pose.Orientation.Imag, pose.Orientation.Jmag, pose.Orientation.Kmag} {
		test.That(t, math.IsNaN(c), test.ShouldBeFalse)
	}
}

func TestQuaternionRotate(t *testing.T) {
	// 90 degrees about z
	q := Quaternion{Real: math.Cos(math.Pi / 4), Kmag: math.Sin(math.Pi / 4)}
	vectorsAlmostEqual(t, q.Rotate(r3.Vector{X: 1}), r3.Vector{Y: 1})
	vectorsAlmostEqual(t, q.RotationMatrix().Mul(r3.Vector{X: 1}), r3.Vector{Y: 1})
	test.That(t, QuaternionAlmostEqual(q.RotationMatrix().Quaternion(), q, 1e-9), test.ShouldBeTrue)

	test.That(t, Quaternion{}.Normalize(), test.ShouldResemble, NewZeroOrientation())
	test.That(t, Quaternion{Real: 2}.Normalize(), test.ShouldResemble, NewZeroOrientation())

	neg := Quaternion{Real: -q.Real, Kmag: -q.Kmag}
	test.That(t, QuaternionAlmostEqual(neg, q, 1e-9), test.ShouldBeTrue)
}

func TestViewMatrix(t *testing.T) {
	pose := NewLookAtPose(r3.Vector{Z: -2}, r3.Vector{}, r3.Vector{Y: -1})
	view := pose.ViewMatrix()

	// The target is straight ahead of the eye, 2 units down the OpenGL -z axis.
	origin := view.Mul4x1(mgl64.Vec4{0, 0, 0, 1})
	test.That(t, origin.X(), test.ShouldAlmostEqual, 0)
	test.That(t, origin.Y(), test.ShouldAlmostEqual, 0)
	test.That(t, origin.Z(), test.ShouldAlmostEqual, -2)

	// World -y is up on screen.
	above := view.Mul4x1(mgl64.Vec4{0, -1, 0, 1})
	test.That(t, above.Y(), test.ShouldBeGreaterThan, 0)
	// World +x is right on screen.
	right := view.Mul4x1(mgl64.Vec4{1, 0, 0, 1})
	test.That(t, right.X(), test.ShouldBeGreaterThan, 0)
}
