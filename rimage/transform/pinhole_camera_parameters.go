// Package transform holds the camera models used to move between image pixels and 3D points.
package transform

import (
	"fmt"
	"image"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// ErrNoIntrinsics is when a camera does not have intrinsics parameters or other parameters.
var ErrNoIntrinsics = errors.New("camera intrinsic parameters are not available")

// NewNoIntrinsicsError is used when the intrinsics are not defined.
func NewNoIntrinsicsError(msg string) error {
	return errors.Wrap(ErrNoIntrinsics, msg)
}

// PinholeCameraIntrinsics holds the parameters necessary to do a perspective projection of a 3D scene to the 2D plane.
type PinholeCameraIntrinsics struct {
	Width  int     `json:"width_px"`
	Height int     `json:"height_px"`
	Fx     float64 `json:"fx"`
	Fy     float64 `json:"fy"`
	Ppx    float64 `json:"ppx"`
	Ppy    float64 `json:"ppy"`
}

// CheckValid checks if the fields for PinholeCameraIntrinsics have valid inputs.
func (params *PinholeCameraIntrinsics) CheckValid() error {
	if params == nil {
		return NewNoIntrinsicsError("Intrinsics do not exist")
	}
	if params.Width <= 0 || params.Height <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid size (%#v, %#v)", params.Width, params.Height))
	}
	if params.Fx <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid focal length Fx = %#v", params.Fx))
	}
	if params.Fy <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid focal length Fy = %#v", params.Fy))
	}
	if params.Ppx < 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid principal X point Ppx = %#v", params.Ppx))
	}
	if params.Ppy < 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid principal Y point Ppy = %#v", params.Ppy))
	}
	return nil
}

// PixelToPoint transforms a pixel with depth to a 3D point.
// The intrinsics parameters should be the ones of the sensor used to obtain the image that
// contains the pixel.
func (params *PinholeCameraIntrinsics) PixelToPoint(x, y, z float64) (float64, float64, float64) {
	if params == nil {
		return 0, 0, 0
	}
	xOverZ := (x - params.Ppx) / params.Fx
	yOverZ := (y - params.Ppy) / params.Fy
	return xOverZ * z, yOverZ * z, z
}

// PointToPixel projects a 3D point to a pixel in an image plane.
// The intrinsics parameters should be the ones of the sensor we want to project to.
func (params *PinholeCameraIntrinsics) PointToPixel(x, y, z float64) (float64, float64) {
	if z > 0 {
		xPx := math.Round((x/z)*params.Fx + params.Ppx)
		yPx := math.Round((y/z)*params.Fy + params.Ppy)
		return xPx, yPx
	}
	// Points on or behind the image plane get negative coordinates so bounds checks filter them out.
	return -1.0, -1.0
}

// ImagePointTo3DPoint takes in an image coordinate and a depth in meters and returns the 3D point.
func (params *PinholeCameraIntrinsics) ImagePointTo3DPoint(point image.Point, z float64) r3.Vector {
	px, py, pz := params.PixelToPoint(float64(point.X), float64(point.Y), z)
	return r3.Vector{X: px, Y: py, Z: pz}
}

// Contains returns whether pixel coordinates fall inside the image.
func (params *PinholeCameraIntrinsics) Contains(x, y float64) bool {
	return x >= 0 && y >= 0 && x < float64(params.Width) && y < float64(params.Height)
}

// CornerRays returns the 3D points at depth z seen through the four image corners, in the order
// top-left, top-right, bottom-right, bottom-left.
func (params *PinholeCameraIntrinsics) CornerRays(z float64) [4]r3.Vector {
	w, h := float64(params.Width), float64(params.Height)
	corner := func(u, v float64) r3.Vector {
		x, y, zz := params.PixelToPoint(u, v, z)
		return r3.Vector{X: x, Y: y, Z: zz}
	}
	return [4]r3.Vector{corner(0, 0), corner(w, 0), corner(w, h), corner(0, h)}
}
