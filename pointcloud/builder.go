package pointcloud

import (
	"image/color"
	"sort"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"go.viam.com/senses/components/camera"
	"go.viam.com/senses/vision/objectdetection"
)

// Defaults for BuilderConfig.
const (
	DefaultMinRange = 0.1
	DefaultMaxRange = 6.0
)

// FallbackColor is used for points that do not project into the color image.
var FallbackColor = color.NRGBA{R: 128, G: 128, B: 128, A: 255}

// BuilderConfig controls which depth samples become points.
type BuilderConfig struct {
	// MinRange is the sensor's minimum valid depth in meters. Shallower samples are noise.
	MinRange float64 `json:"min_range_m"`
	// MaxRange drops points farther than this many meters from the camera.
	MaxRange float64 `json:"max_range_m"`
	// Stride keeps every Stride-th pixel in both directions.
	Stride int `json:"stride,omitempty"`
	// History is how many clouds are kept for smoothing.
	History int `json:"history,omitempty"`
}

// DefaultBuilderConfig returns the builder configuration used when none is given.
func DefaultBuilderConfig() BuilderConfig {
	return BuilderConfig{
		MinRange: DefaultMinRange,
		MaxRange: DefaultMaxRange,
		Stride:   1,
		History:  1,
	}
}

// Validate ensures all parts of the config are valid.
func (cfg *BuilderConfig) Validate(path string) error {
	if cfg.MinRange < 0 {
		return goutils.NewConfigValidationError(path, errors.Errorf("min_range_m cannot be negative, got %v", cfg.MinRange))
	}
	if cfg.MaxRange <= cfg.MinRange {
		return goutils.NewConfigValidationError(path,
			errors.Errorf("max_range_m (%v) must be greater than min_range_m (%v)", cfg.MaxRange, cfg.MinRange))
	}
	if cfg.Stride < 0 {
		return goutils.NewConfigValidationError(path, errors.New("stride cannot be negative"))
	}
	if cfg.History < 0 {
		return goutils.NewConfigValidationError(path, errors.New("history cannot be negative"))
	}
	return nil
}

// Builder unprojects depth frames into point clouds.
type Builder struct {
	minRange, maxRange float64
	stride             int
}

// NewBuilder returns a Builder for cfg.
func NewBuilder(cfg BuilderConfig) (*Builder, error) {
	if err := cfg.Validate("cloud"); err != nil {
		return nil, err
	}
	b := &Builder{minRange: cfg.MinRange, maxRange: cfg.MaxRange, stride: cfg.Stride}
	if b.stride == 0 {
		b.stride = 1
	}
	return b, nil
}

// Build makes one point per valid depth sample, in row-major depth pixel order. A sample is
// valid when it is non-zero, at least MinRange deep and at most MaxRange from the camera.
// Each point is unprojected with the depth intrinsics, moved into the color frame with the
// extrinsics and colored from the color pixel it projects to. A point whose color pixel lies in
// a detection region is tagged with it; when regions overlap the highest scoring detection
// wins, and equal scores keep the earlier detection.
func (b *Builder) Build(frame *camera.Frame, dets []objectdetection.Detection) (*PointCloud, error) {
	if frame == nil {
		return nil, errors.New("no frame to build a point cloud from")
	}
	if err := frame.Validate(); err != nil {
		return nil, err
	}
	calib := frame.Calibration
	depth := frame.Depth

	order := make([]int, len(dets))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return dets[order[i]].Score() > dets[order[j]].Score()
	})

	pc := &PointCloud{
		Seq:        frame.Seq,
		Timestamp:  frame.Timestamp,
		Detections: dets,
		meta:       NewMetaData(len(dets)),
	}
	for y := 0; y < depth.Height(); y += b.stride {
		for x := 0; x < depth.Width(); x += b.stride {
			raw := depth.GetDepth(x, y)
			if raw == 0 {
				continue
			}
			z := float64(raw) * calib.DepthScale
			if z <= 0 || z < b.minRange {
				continue
			}
			pos := calib.DepthPixelToColorPoint(x, y, z)
			if pos.Norm() > b.maxRange {
				continue
			}
			pt := Point{Position: pos, Color: FallbackColor, Detection: NoDetection}
			pt.Pixel.X, pt.Pixel.Y = x, y
			if pix, ok := calib.ColorPixel(pos); ok {
				pt.Color = frame.Color.NRGBAAt(frame.Color.Rect.Min.X+pix.X, frame.Color.Rect.Min.Y+pix.Y)
				for _, idx := range order {
					if objectdetection.Contains(dets[idx], pix.X, pix.Y) {
						pt.Detection = idx
						pt.Label = dets[idx].Label()
						break
					}
				}
			}
			pc.meta.Merge(pt)
			pc.Points = append(pc.Points, pt)
		}
	}
	return pc, nil
}
