package transform

import (
	"image"
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func testIntrinsics() PinholeCameraIntrinsics {
	return PinholeCameraIntrinsics{Width: 4, Height: 2, Fx: 2, Fy: 2, Ppx: 1, Ppy: 0.5}
}

func TestIntrinsicsCheckValid(t *testing.T) {
	var nilParams *PinholeCameraIntrinsics
	test.That(t, nilParams.CheckValid(), test.ShouldBeError)

	params := testIntrinsics()
	test.That(t, params.CheckValid(), test.ShouldBeNil)

	params.Fx = 0
	err := params.CheckValid()
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "Fx")
	test.That(t, err, test.ShouldWrap, ErrNoIntrinsics)

	params = testIntrinsics()
	params.Width = 0
	test.That(t, params.CheckValid(), test.ShouldWrap, ErrNoIntrinsics)
}

func TestPixelToPointRoundTrip(t *testing.T) {
	params := testIntrinsics()
	x, y, z := params.PixelToPoint(3, 1.5, 2)
	test.That(t, x, test.ShouldAlmostEqual, 2)
	test.That(t, y, test.ShouldAlmostEqual, 1)
	test.That(t, z, test.ShouldAlmostEqual, 2)

	u, v := params.PointToPixel(x, y, z)
	test.That(t, u, test.ShouldEqual, 3.)
	test.That(t, v, test.ShouldEqual, 2.) // rounded from 1.5

	u, v = params.PointToPixel(1, 1, 0)
	test.That(t, u, test.ShouldEqual, -1.)
	test.That(t, v, test.ShouldEqual, -1.)
	test.That(t, params.Contains(u, v), test.ShouldBeFalse)

	pt := params.ImagePointTo3DPoint(image.Pt(1, 0), 4)
	test.That(t, pt.X, test.ShouldAlmostEqual, 0)
	test.That(t, pt.Y, test.ShouldAlmostEqual, -1)
	test.That(t, pt.Z, test.ShouldAlmostEqual, 4)
}

func TestCornerRays(t *testing.T) {
	params := testIntrinsics()
	corners := params.CornerRays(2)
	test.That(t, corners[0].X, test.ShouldAlmostEqual, -1)
	test.That(t, corners[0].Y, test.ShouldAlmostEqual, -0.5)
	test.That(t, corners[2].X, test.ShouldAlmostEqual, 3)
	test.That(t, corners[2].Y, test.ShouldAlmostEqual, 1.5)
	for _, c := range corners {
		test.That(t, c.Z, test.ShouldAlmostEqual, 2)
	}
}

func TestExtrinsics(t *testing.T) {
	ext := IdentityExtrinsics()
	test.That(t, ext.CheckValid(), test.ShouldBeNil)
	test.That(t, ext.TransformPointToPoint(1, 2, 3), test.ShouldResemble, r3.Vector{X: 1, Y: 2, Z: 3})

	ext.TranslationVector = []float64{0, 0, 1}
	test.That(t, ext.TransformPointToPoint(0, 0, 1), test.ShouldResemble, r3.Vector{X: 0, Y: 0, Z: 2})

	// 90 degrees about z.
	c, s := math.Cos(math.Pi/2), math.Sin(math.Pi/2)
	ext = Extrinsics{RotationMatrix: []float64{c, -s, 0, s, c, 0, 0, 0, 1}, TranslationVector: []float64{0, 0, 0}}
	test.That(t, ext.CheckValid(), test.ShouldBeNil)
	out := ext.TransformPointToPoint(1, 0, 0)
	test.That(t, out.X, test.ShouldAlmostEqual, 0)
	test.That(t, out.Y, test.ShouldAlmostEqual, 1)

	bad := Extrinsics{RotationMatrix: []float64{2, 0, 0, 0, 1, 0, 0, 0, 1}, TranslationVector: []float64{0, 0, 0}}
	test.That(t, bad.CheckValid(), test.ShouldNotBeNil)
	mirror := Extrinsics{RotationMatrix: []float64{-1, 0, 0, 0, 1, 0, 0, 0, 1}, TranslationVector: []float64{0, 0, 0}}
	test.That(t, mirror.CheckValid().Error(), test.ShouldContainSubstring, "determinant")
	short := Extrinsics{RotationMatrix: []float64{1}, TranslationVector: []float64{0, 0, 0}}
	test.That(t, short.CheckValid(), test.ShouldNotBeNil)
}

func TestDepthColorIntrinsicsExtrinsicsFromJSONFile(t *testing.T) {
	dcie, err := NewDepthColorIntrinsicsExtrinsicsFromJSONFile("data/camera_system.json")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dcie.CheckValid(), test.ShouldBeNil)
	test.That(t, dcie.ColorCamera.Width, test.ShouldEqual, 640)
	test.That(t, dcie.DepthCamera.Fx, test.ShouldEqual, 385.)
	test.That(t, dcie.ExtrinsicD2C.RotationMatrix, test.ShouldHaveLength, 9)
	test.That(t, dcie.DepthScale, test.ShouldEqual, 0.001)

	// The principal point maps to a point near the color center.
	pt := dcie.DepthPixelToColorPoint(320, 240, 1)
	test.That(t, pt.Z, test.ShouldAlmostEqual, 1, 0.05)
	px, ok := dcie.ColorPixel(pt)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, px.X, test.ShouldAlmostEqual, 329, 10)
	test.That(t, px.Y, test.ShouldAlmostEqual, 262, 30)

	_, ok = dcie.ColorPixel(r3.Vector{X: 100, Y: 0, Z: 1})
	test.That(t, ok, test.ShouldBeFalse)

	_, err = NewDepthColorIntrinsicsExtrinsicsFromJSONFile("data/missing.json")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestDepthColorIntrinsicsExtrinsicsDefaults(t *testing.T) {
	dcie, err := NewDepthColorIntrinsicsExtrinsicsFromBytes([]byte(`{"color": {}, "depth": {}}`))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dcie.DepthScale, test.ShouldEqual, DefaultDepthScale)
	test.That(t, dcie.CheckValid(), test.ShouldWrap, ErrNoIntrinsics)

	_, err = NewDepthColorIntrinsicsExtrinsicsFromBytes([]byte(`{`))
	test.That(t, err, test.ShouldNotBeNil)
}
