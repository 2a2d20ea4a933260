// Package camera defines the synchronized color and depth frames consumed by the flyby
// pipeline, the sources that produce them and the adapter that makes any source well behaved.
package camera

import (
	"context"
	"image"
	"time"

	"github.com/pkg/errors"

	"go.viam.com/senses/rimage"
	"go.viam.com/senses/rimage/transform"
	"go.viam.com/senses/utils"
)

var (
	// ErrSourceUnavailable is returned when the device disconnected or was never found.
	ErrSourceUnavailable = errors.New("frame source unavailable")
	// ErrFrameTimeout is returned when no frame arrived within the read timeout.
	ErrFrameTimeout = errors.New("timed out waiting for frame")
	// ErrEndOfStream is returned by finite sources once every frame has been read.
	ErrEndOfStream = errors.New("end of frame stream")
)

// NewSourceUnavailableError wraps the cause so errors.Is matches both ErrSourceUnavailable and the cause.
func NewSourceUnavailableError(cause error) error {
	return utils.NewCausedError(ErrSourceUnavailable, cause)
}

// NewFrameTimeoutError reports that no frame arrived within timeout.
func NewFrameTimeoutError(timeout time.Duration) error {
	return errors.Wrapf(ErrFrameTimeout, "no frame within %v", timeout)
}

// Frame is a time aligned color and depth pair with the calibration needed to relate them.
// A Frame is not modified after it is returned by a FrameReader.
type Frame struct {
	Seq         uint64
	Timestamp   time.Time
	Color       *image.NRGBA
	Depth       *rimage.DepthMap
	Calibration *transform.DepthColorIntrinsicsExtrinsics
}

// Validate checks the frame carries both images and that their sizes match the calibration.
func (f *Frame) Validate() error {
	if f.Color == nil || f.Depth == nil {
		return errors.New("frame is missing its color or depth image")
	}
	if f.Calibration == nil {
		return transform.NewNoIntrinsicsError("frame has no calibration")
	}
	colorCam, depthCam := f.Calibration.ColorCamera, f.Calibration.DepthCamera
	if f.Color.Rect.Dx() != colorCam.Width || f.Color.Rect.Dy() != colorCam.Height {
		return errors.Errorf("color image is %dx%d but the color camera is %dx%d",
			f.Color.Rect.Dx(), f.Color.Rect.Dy(), colorCam.Width, colorCam.Height)
	}
	if f.Depth.Width() != depthCam.Width || f.Depth.Height() != depthCam.Height {
		return errors.Errorf("depth map is %dx%d but the depth camera is %dx%d",
			f.Depth.Width(), f.Depth.Height(), depthCam.Width, depthCam.Height)
	}
	return nil
}

// FrameReader returns the next frame, blocking until one is available.
type FrameReader interface {
	NextFrame(ctx context.Context) (*Frame, error)
}

// A Source is a device driver producing frames. Drivers may attach the calibration only to
// the first frame; the Adapter caches it for the rest.
type Source interface {
	FrameReader
	Close(ctx context.Context) error
}
