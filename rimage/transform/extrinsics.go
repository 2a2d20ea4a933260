package transform

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

const rotationTolerance = 1e-3

// Extrinsics is the rigid transform from one camera's frame into another's: p' = R*p + t.
// RotationMatrix is row-major 3x3 and TranslationVector is in meters.
type Extrinsics struct {
	RotationMatrix    []float64 `json:"rotation"`
	TranslationVector []float64 `json:"translation_m"`
}

// IdentityExtrinsics returns the transform that leaves points unchanged.
func IdentityExtrinsics() Extrinsics {
	return Extrinsics{
		RotationMatrix:    []float64{1, 0, 0, 0, 1, 0, 0, 0, 1},
		TranslationVector: []float64{0, 0, 0},
	}
}

// CheckValid verifies the sizes and that the rotation is orthonormal with determinant 1.
func (ext *Extrinsics) CheckValid() error {
	if ext == nil {
		return errors.New("extrinsics do not exist")
	}
	if len(ext.RotationMatrix) != 9 {
		return errors.Errorf("rotation matrix should have 9 elements, got %d", len(ext.RotationMatrix))
	}
	if len(ext.TranslationVector) != 3 {
		return errors.Errorf("translation vector should have 3 elements, got %d", len(ext.TranslationVector))
	}
	rot := mat.NewDense(3, 3, ext.RotationMatrix)
	var rrt mat.Dense
	rrt.Mul(rot, rot.T())
	ident := mat.NewDiagDense(3, []float64{1, 1, 1})
	if !mat.EqualApprox(&rrt, ident, rotationTolerance) {
		return errors.New("rotation matrix is not orthonormal")
	}
	if det := mat.Det(rot); det < 1-rotationTolerance || det > 1+rotationTolerance {
		return errors.Errorf("rotation matrix determinant is %.4f, expected 1", det)
	}
	return nil
}

// TransformPointToPoint applies the rigid transform to (x, y, z).
func (ext *Extrinsics) TransformPointToPoint(x, y, z float64) r3.Vector {
	r := ext.RotationMatrix
	t := ext.TranslationVector
	return r3.Vector{
		X: r[0]*x + r[1]*y + r[2]*z + t[0],
		Y: r[3]*x + r[4]*y + r[5]*z + t[1],
		Z: r[6]*x + r[7]*y + r[8]*z + t[2],
	}
}
