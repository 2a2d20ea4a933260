package inject

import (
	"context"
	"image"

	"go.viam.com/senses/vision/objectdetection"
)

// Detector is an injected detector.
type Detector struct {
	DetectFunc func(ctx context.Context, img image.Image) ([]objectdetection.Detection, error)
}

// Detect calls the injected Detect. Without one nothing is detected.
func (d *Detector) Detect(ctx context.Context, img image.Image) ([]objectdetection.Detection, error) {
	if d.DetectFunc == nil {
		return nil, nil
	}
	return d.DetectFunc(ctx, img)
}
