// Package spatialmath defines the rotations and poses used to place the virtual camera.
package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Quaternion is a rotation stored as a gonum quaternion. Only unit quaternions are rotations;
// constructors in this package always normalize.
type Quaternion quat.Number

// NewZeroOrientation returns the quaternion which signifies no rotation.
func NewZeroOrientation() Quaternion {
	return Quaternion{Real: 1}
}

// Number returns the underlying gonum quaternion.
func (q Quaternion) Number() quat.Number {
	return quat.Number(q)
}

// Norm returns the quaternion's magnitude. Rotations have norm 1.
func (q Quaternion) Norm() float64 {
	return quat.Abs(q.Number())
}

// Normalize scales q to unit length. The zero quaternion becomes the identity.
func (q Quaternion) Normalize() Quaternion {
	norm := q.Norm()
	if norm == 0 || math.IsNaN(norm) {
		return NewZeroOrientation()
	}
	return Quaternion(quat.Scale(1/norm, q.Number()))
}

// IsUnit returns whether the quaternion is a valid rotation within tolerance.
func (q Quaternion) IsUnit(tolerance float64) bool {
	return math.Abs(q.Norm()-1) <= tolerance
}

// Rotate applies the rotation to a vector.
func (q Quaternion) Rotate(v r3.Vector) r3.Vector {
	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	n := q.Number()
	out := quat.Mul(quat.Mul(n, p), quat.Conj(n))
	return r3.Vector{X: out.Imag, Y: out.Jmag, Z: out.Kmag}
}

// RotationMatrix returns the equivalent rotation matrix.
func (q Quaternion) RotationMatrix() *RotationMatrix {
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	return &RotationMatrix{mat: [9]float64{
		1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y),
		2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x),
		2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y),
	}}
}

// QuaternionAlmostEqual returns whether two quaternions describe the same rotation within tol.
// q and -q are the same rotation.
func QuaternionAlmostEqual(a, b Quaternion, tol float64) bool {
	same := func(s float64) bool {
		return math.Abs(a.Real-s*b.Real) < tol &&
			math.Abs(a.Imag-s*b.Imag) < tol &&
			math.Abs(a.Jmag-s*b.Jmag) < tol &&
			math.Abs(a.Kmag-s*b.Kmag) < tol
	}
	return same(1) || same(-1)
}
