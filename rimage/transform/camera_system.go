package transform

import (
	"encoding/json"
	"image"
	"os"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// DefaultDepthScale is the meters per raw depth unit reported by most depth sensors.
const DefaultDepthScale = 0.001

// DepthColorIntrinsicsExtrinsics is the calibration of a paired depth and color sensor.
type DepthColorIntrinsicsExtrinsics struct {
	ColorCamera  PinholeCameraIntrinsics `json:"color"`
	DepthCamera  PinholeCameraIntrinsics `json:"depth"`
	ExtrinsicD2C Extrinsics              `json:"extrinsics_depth_to_color"`
	// DepthScale converts a raw depth sample to meters.
	DepthScale float64 `json:"depth_scale"`
}

// NewDepthColorIntrinsicsExtrinsicsFromBytes reads the calibration from JSON bytes.
func NewDepthColorIntrinsicsExtrinsicsFromBytes(byteJSON []byte) (*DepthColorIntrinsicsExtrinsics, error) {
	intrinsics := &DepthColorIntrinsicsExtrinsics{}
	if err := json.Unmarshal(byteJSON, intrinsics); err != nil {
		return nil, errors.Wrap(err, "error parsing byte array")
	}
	if intrinsics.DepthScale == 0 {
		intrinsics.DepthScale = DefaultDepthScale
	}
	return intrinsics, nil
}

// NewDepthColorIntrinsicsExtrinsicsFromJSONFile reads the calibration from a JSON file.
func NewDepthColorIntrinsicsExtrinsicsFromJSONFile(jsonPath string) (*DepthColorIntrinsicsExtrinsics, error) {
	//nolint:gosec
	byteValue, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, errors.Wrap(err, "error reading JSON file")
	}
	return NewDepthColorIntrinsicsExtrinsicsFromBytes(byteValue)
}

// CheckValid checks both cameras, the extrinsics and the depth scale.
func (dcie *DepthColorIntrinsicsExtrinsics) CheckValid() error {
	if dcie == nil {
		return NewNoIntrinsicsError("camera system does not exist")
	}
	if err := dcie.ColorCamera.CheckValid(); err != nil {
		return errors.Wrap(err, "color camera")
	}
	if err := dcie.DepthCamera.CheckValid(); err != nil {
		return errors.Wrap(err, "depth camera")
	}
	if err := dcie.ExtrinsicD2C.CheckValid(); err != nil {
		return errors.Wrap(err, "depth to color extrinsics")
	}
	if dcie.DepthScale <= 0 {
		return errors.Errorf("depth scale must be positive, got %v", dcie.DepthScale)
	}
	return nil
}

// DepthPixelToColorPoint unprojects a depth pixel at z meters with the depth intrinsics and
// moves it into the color camera's frame.
func (dcie *DepthColorIntrinsicsExtrinsics) DepthPixelToColorPoint(x, y int, z float64) r3.Vector {
	pt := dcie.DepthCamera.ImagePointTo3DPoint(image.Pt(x, y), z)
	return dcie.ExtrinsicD2C.TransformPointToPoint(pt.X, pt.Y, pt.Z)
}

// ColorPixel projects a point in the color frame onto the color image. ok is false when the
// pixel falls outside the image.
func (dcie *DepthColorIntrinsicsExtrinsics) ColorPixel(pt r3.Vector) (image.Point, bool) {
	u, v := dcie.ColorCamera.PointToPixel(pt.X, pt.Y, pt.Z)
	if !dcie.ColorCamera.Contains(u, v) {
		return image.Point{}, false
	}
	return image.Pt(int(u), int(v)), true
}
