// Package fake implements a synthetic depth camera looking at a room with a person walking
// back and forth in front of the back wall.
package fake

import (
	"context"
	"image"
	"image/color"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"go.viam.com/senses/components/camera"
	"go.viam.com/senses/logging"
	"go.viam.com/senses/rimage"
	"go.viam.com/senses/rimage/transform"
	"go.viam.com/senses/utils"
)

// SourceType is the registered name of the synthetic source.
const SourceType = "fake"

const (
	defaultWidth         = 320
	defaultHeight        = 240
	defaultFrameInterval = 33 * time.Millisecond

	wallDistance  = 4.0
	cameraHeight  = 1.2
	personDepth   = 2.0
	personWidth   = 0.5
	personHeight  = 1.7
	personTravel  = 1.0
	personSpeed   = 0.5 // radians of walk phase per second
	holeModulus   = 97
	horizontalFOV = 70.0
)

// PersonColor is the color the person is painted with.
var PersonColor = color.NRGBA{R: 0xD0, G: 0x30, B: 0x30, A: 0xFF}

func init() {
	camera.RegisterSource(SourceType, camera.SourceRegistration{
		Constructor: func(ctx context.Context, attrs utils.AttributeMap, logger logging.Logger) (camera.Source, error) {
			conf, err := utils.TransformAttributeMap[*Config](attrs)
			if err != nil {
				return nil, err
			}
			return NewSource(conf, clock.New(), logger)
		},
		AttributesType: &Config{},
	})
}

// Config are the attributes of the synthetic source.
type Config struct {
	Width         int           `json:"width_px,omitempty"`
	Height        int           `json:"height_px,omitempty"`
	FrameInterval time.Duration `json:"frame_interval,omitempty"`
	// DisconnectAfter simulates the device going away after that many frames. Zero never does.
	DisconnectAfter int `json:"disconnect_after,omitempty"`
}

// Validate checks that the config attributes are valid for a synthetic source.
func (conf *Config) Validate(path string) error {
	if conf.Width < 0 || conf.Height < 0 {
		return goutils.NewConfigValidationError(path, errors.New("width_px and height_px cannot be negative"))
	}
	if conf.Width%2 != 0 || conf.Height%2 != 0 {
		return goutils.NewConfigValidationError(path,
			errors.Errorf("width_px and height_px must be even, got %dx%d", conf.Width, conf.Height))
	}
	if conf.FrameInterval < 0 {
		return goutils.NewConfigValidationError(path, errors.New("frame_interval cannot be negative"))
	}
	if conf.DisconnectAfter < 0 {
		return goutils.NewConfigValidationError(path, errors.New("disconnect_after cannot be negative"))
	}
	return nil
}

// Source renders the synthetic room. Frames are paced by the clock and the scene is a function
// of the frame number only, so runs are reproducible.
type Source struct {
	calibration     *transform.DepthColorIntrinsicsExtrinsics
	interval        time.Duration
	disconnectAfter int
	clock           clock.Clock
	logger          logging.Logger

	mu       sync.Mutex
	produced int
	last     time.Time
	closed   bool
}

// NewSource returns a synthetic source.
func NewSource(conf *Config, clk clock.Clock, logger logging.Logger) (*Source, error) {
	if conf == nil {
		conf = &Config{}
	}
	if err := conf.Validate("attributes"); err != nil {
		return nil, err
	}
	width, height := conf.Width, conf.Height
	if width == 0 {
		width = defaultWidth
	}
	if height == 0 {
		height = defaultHeight
	}
	interval := conf.FrameInterval
	if interval == 0 {
		interval = defaultFrameInterval
	}
	focal := float64(width) / 2 / math.Tan(utils.DegToRad(horizontalFOV/2))
	intrinsics := transform.PinholeCameraIntrinsics{
		Width:  width,
		Height: height,
		Fx:     focal,
		Fy:     focal,
		Ppx:    float64(width) / 2,
		Ppy:    float64(height) / 2,
	}
	logger.Infow("synthetic depth camera", "width", width, "height", height, "interval", interval)
	return &Source{
		calibration: &transform.DepthColorIntrinsicsExtrinsics{
			ColorCamera:  intrinsics,
			DepthCamera:  intrinsics,
			ExtrinsicD2C: transform.IdentityExtrinsics(),
			DepthScale:   transform.DefaultDepthScale,
		},
		interval:        interval,
		disconnectAfter: conf.DisconnectAfter,
		clock:           clk,
		logger:          logger,
	}, nil
}

// NextFrame waits for the next frame interval and renders the scene. The calibration is only
// attached to the first frame, like real devices reporting it once.
func (s *Source) NextFrame(ctx context.Context) (*camera.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, camera.NewSourceUnavailableError(errors.New("fake source closed"))
	}
	if s.disconnectAfter > 0 && s.produced >= s.disconnectAfter {
		return nil, camera.NewSourceUnavailableError(errors.Errorf("fake device disconnected after %d frames", s.produced))
	}
	if !s.last.IsZero() {
		if wait := s.last.Add(s.interval).Sub(s.clock.Now()); wait > 0 {
			timer := s.clock.Timer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
	}
	s.last = s.clock.Now()

	elapsed := time.Duration(s.produced) * s.interval
	colorImg, depth := Render(s.calibration.DepthCamera, elapsed)
	frame := &camera.Frame{
		Timestamp: s.last,
		Color:     colorImg,
		Depth:     depth,
	}
	if s.produced == 0 {
		frame.Calibration = s.calibration
	}
	s.produced++
	return frame, nil
}

// Calibration returns the calibration of the synthetic camera.
func (s *Source) Calibration() *transform.DepthColorIntrinsicsExtrinsics {
	return s.calibration
}

// Close stops the source.
func (s *Source) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// PersonBounds returns the pixel rectangle covered by the person at elapsed time.
func PersonBounds(intr transform.PinholeCameraIntrinsics, elapsed time.Duration) image.Rectangle {
	center := personTravel * math.Sin(elapsed.Seconds()*personSpeed)
	left, top := intr.PointToPixel(center-personWidth/2, cameraHeight-personHeight, personDepth)
	right, bottom := intr.PointToPixel(center+personWidth/2, cameraHeight, personDepth)
	return image.Rect(int(left), int(top), int(right), int(bottom)).Intersect(image.Rect(0, 0, intr.Width, intr.Height))
}

// Render draws the room seen through intr at elapsed time. The back wall is at 4m, the floor
// is 1.2m below the camera and a sparse pattern of pixels has no depth reading.
func Render(intr transform.PinholeCameraIntrinsics, elapsed time.Duration) (*image.NRGBA, *rimage.DepthMap) {
	img := image.NewNRGBA(image.Rect(0, 0, intr.Width, intr.Height))
	depth := rimage.NewEmptyDepthMap(intr.Width, intr.Height)
	person := PersonBounds(intr, elapsed)
	for y := 0; y < intr.Height; y++ {
		// y grows downwards, so rays below the principal point hit the floor
		dy := (float64(y) - intr.Ppy) / intr.Fy
		for x := 0; x < intr.Width; x++ {
			var z float64
			var c color.NRGBA
			switch {
			case image.Pt(x, y).In(person):
				z, c = personDepth, PersonColor
			case dy > 0 && cameraHeight/dy < wallDistance:
				z = cameraHeight / dy
				fx := (float64(x) - intr.Ppx) / intr.Fx * z
				c = floorColor(fx, z)
			default:
				z = wallDistance
				shade := uint8(90 + 60*float64(y)/float64(intr.Height))
				c = color.NRGBA{R: shade / 2, G: shade / 2, B: shade, A: 0xFF}
			}
			img.SetNRGBA(x, y, c)
			if (x+y*7)%holeModulus == 0 {
				continue
			}
			depth.Set(x, y, rimage.Depth(math.Round(z/transform.DefaultDepthScale)))
		}
	}
	return img, depth
}

// floorColor is a half meter checkerboard.
func floorColor(x, z float64) color.NRGBA {
	if (int(math.Floor(x*2))+int(math.Floor(z*2)))%2 == 0 {
		return color.NRGBA{R: 0x70, G: 0x68, B: 0x50, A: 0xFF}
	}
	return color.NRGBA{R: 0x50, G: 0x4A, B: 0x38, A: 0xFF}
}
