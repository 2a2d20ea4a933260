package objectdetection

import (
	"context"
	"image"
	"io"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"go.viam.com/senses/logging"
	"go.viam.com/senses/rimage"
	"go.viam.com/senses/utils"
)

// ColorDetectorType is the registered name of the color detector.
const ColorDetectorType = "color"

const (
	defaultSaturationCutoff = 0.2
	defaultValueCutoff      = 0.3
)

func init() {
	RegisterDetector(ColorDetectorType, DetectorRegistration{
		Constructor: func(ctx context.Context, attrs utils.AttributeMap, logger logging.Logger) (Detector, io.Closer, error) {
			conf, err := utils.TransformAttributeMap[*ColorDetectorConfig](attrs)
			if err != nil {
				return nil, nil, err
			}
			det, err := NewColorDetector(conf)
			return det, nil, err
		},
		AttributesType: &ColorDetectorConfig{},
	})
}

// ColorDetectorConfig specifies the fields necessary for creating a color detector.
type ColorDetectorConfig struct {
	SegmentSize       int     `json:"segment_size_px"`
	HueTolerance      float64 `json:"hue_tolerance_pct"`
	SaturationCutoff  float64 `json:"saturation_cutoff_pct,omitempty"`
	ValueCutoff       float64 `json:"value_cutoff_pct,omitempty"`
	DetectColorString string  `json:"detect_color"`
	Label             string  `json:"label,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (cfg *ColorDetectorConfig) Validate(path string) error {
	if cfg.DetectColorString == "" {
		return goutils.NewConfigValidationFieldRequiredError(path, "detect_color")
	}
	if cfg.HueTolerance <= 0 || cfg.HueTolerance > 1 {
		return goutils.NewConfigValidationError(path,
			errors.Errorf("hue_tolerance_pct must be between 0.0 and 1.0, got %v", cfg.HueTolerance))
	}
	if cfg.SaturationCutoff < 0 || cfg.SaturationCutoff > 1 {
		return goutils.NewConfigValidationError(path, errors.New("saturation_cutoff_pct must be between 0.0 and 1.0"))
	}
	if cfg.ValueCutoff < 0 || cfg.ValueCutoff > 1 {
		return goutils.NewConfigValidationError(path, errors.New("value_cutoff_pct must be between 0.0 and 1.0"))
	}
	if cfg.SegmentSize < 0 {
		return goutils.NewConfigValidationError(path, errors.New("segment_size_px cannot be negative"))
	}
	return nil
}

type colorDetector struct {
	hue       float64
	maxDist   float64
	satCutoff float64
	valCutoff float64
	minSize   int
	label     string
}

// NewColorDetector is a detector that finds connected regions whose hue is within tolerance of
// the configured color. The score of a region falls off linearly with its mean hue distance.
func NewColorDetector(cfg *ColorDetectorConfig) (Detector, error) {
	if cfg == nil {
		return nil, errors.New("color detector config cannot be nil")
	}
	if err := cfg.Validate("attributes"); err != nil {
		return nil, err
	}
	target, err := rimage.NewColorFromHex(cfg.DetectColorString)
	if err != nil {
		return nil, errors.Wrapf(err, "bad detect_color %q", cfg.DetectColorString)
	}
	cd := &colorDetector{
		hue:       target.H,
		maxDist:   cfg.HueTolerance * 180,
		satCutoff: cfg.SaturationCutoff,
		valCutoff: cfg.ValueCutoff,
		minSize:   cfg.SegmentSize,
		label:     cfg.Label,
	}
	if cd.satCutoff == 0 {
		cd.satCutoff = defaultSaturationCutoff
	}
	if cd.valCutoff == 0 {
		cd.valCutoff = defaultValueCutoff
	}
	if cd.label == "" {
		cd.label = cfg.DetectColorString
	}
	return cd.Inference, nil
}

// Inference labels connected components of matching pixels. Components are found in row-major
// order with 4-connectivity.
func (cd *colorDetector) Inference(ctx context.Context, img image.Image) ([]Detection, error) {
	nrgba := rimage.ConvertToNRGBA(img)
	width, height := nrgba.Rect.Dx(), nrgba.Rect.Dy()

	// hue distance per pixel, negative when the pixel does not match
	dist := make([]float64, width*height)
	for y := 0; y < height; y++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for x := 0; x < width; x++ {
			c := nrgba.NRGBAAt(x, y)
			h, s, v := colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}.Hsv()
			d := rimage.HueDistance(h, cd.hue)
			if s < cd.satCutoff || v < cd.valCutoff || d > cd.maxDist {
				dist[y*width+x] = -1
				continue
			}
			dist[y*width+x] = d
		}
	}

	seen := make([]bool, width*height)
	detections := []Detection{}
	var queue []image.Point
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			idx := y*width + x
			if seen[idx] || dist[idx] < 0 {
				continue
			}
			seen[idx] = true
			queue = append(queue[:0], image.Pt(x, y))
			component := []image.Point{}
			total := 0.0
			for len(queue) != 0 {
				pt := queue[0]
				queue = queue[1:]
				component = append(component, pt)
				total += dist[pt.Y*width+pt.X]
				for _, n := range [4]image.Point{{pt.X, pt.Y - 1}, {pt.X, pt.Y + 1}, {pt.X - 1, pt.Y}, {pt.X + 1, pt.Y}} {
					if n.X < 0 || n.Y < 0 || n.X >= width || n.Y >= height {
						continue
					}
					nIdx := n.Y*width + n.X
					if seen[nIdx] || dist[nIdx] < 0 {
						continue
					}
					seen[nIdx] = true
					queue = append(queue, n)
				}
			}
			if len(component) < cd.minSize {
				continue
			}
			detections = append(detections, cd.toDetection(component, total))
		}
	}
	return detections, nil
}

func (cd *colorDetector) toDetection(component []image.Point, totalDist float64) Detection {
	bounds := image.Rect(component[0].X, component[0].Y, component[0].X+1, component[0].Y+1)
	for _, pt := range component[1:] {
		bounds = bounds.Union(image.Rect(pt.X, pt.Y, pt.X+1, pt.Y+1))
	}
	mask := NewMaskRegion(bounds)
	for _, pt := range component {
		mask.Set(pt.X, pt.Y)
	}
	score := 1.0
	if cd.maxDist > 0 {
		score = utils.Clamp(1-(totalDist/float64(len(component)))/cd.maxDist, 0, 1)
	}
	return NewDetection(mask, score, cd.label)
}
