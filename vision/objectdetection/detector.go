package objectdetection

import (
	"context"
	"fmt"
	"image"

	"github.com/pkg/errors"

	"go.viam.com/senses/logging"
	"go.viam.com/senses/utils"
)

// ErrModelInference is returned when the model fails to produce detections for an image.
var ErrModelInference = errors.New("model inference failed")

// NewModelInferenceError wraps the cause so errors.Is matches both ErrModelInference and the cause.
func NewModelInferenceError(cause error) error {
	return utils.NewCausedError(ErrModelInference, cause)
}

// Detector returns detections for an image.
type Detector func(context.Context, image.Image) ([]Detection, error)

// Preprocessor will apply processing to an input image before feeding it into the detector.
type Preprocessor func(image.Image) image.Image

// Build zips up a preprocessor-detector-postprocessor stream into a detector.
func Build(prep Preprocessor, det Detector, post Postprocessor) (Detector, error) {
	if det == nil {
		return nil, errors.New("must have a Detector to build a detection pipeline")
	}
	if prep == nil {
		prep = func(img image.Image) image.Image { return img }
	}
	if post == nil {
		post = func(inp []Detection) []Detection { return inp }
	}
	return func(ctx context.Context, img image.Image) ([]Detection, error) {
		imgOut := prep(img)
		detections, err := det(ctx, imgOut)
		if err != nil {
			return nil, err
		}
		return post(detections), nil
	}, nil
}

// Adapter turns a model into a well behaved detector: failures become ModelInferenceErrors,
// confidences are checked, detections are filtered by threshold, label and area, and the rest
// come back most confident first.
type Adapter struct {
	detector  Detector
	threshold float64
	logger    logging.Logger
}

// NewAdapter wraps det with the filters of cfg.
func NewAdapter(det Detector, cfg DetectorConfig, logger logging.Logger) (*Adapter, error) {
	if det == nil {
		return nil, errors.New("must have a Detector to build an adapter")
	}
	if err := cfg.Validate("detector"); err != nil {
		return nil, err
	}
	a := &Adapter{threshold: cfg.ConfidenceThreshold, logger: logger}
	built, err := Build(nil, checked(det), Chain(
		NewScoreFilter(cfg.ConfidenceThreshold),
		NewLabelFilter(cfg.IncludeLabels),
		NewAreaFilter(cfg.MinArea),
		SortByScore,
	))
	if err != nil {
		return nil, err
	}
	a.detector = built
	return a, nil
}

// checked rejects model output the rest of the pipeline cannot use.
func checked(det Detector) Detector {
	return func(ctx context.Context, img image.Image) ([]Detection, error) {
		raw, err := det(ctx, img)
		if err != nil {
			return nil, err
		}
		for _, d := range raw {
			if d == nil || d.Region() == nil {
				return nil, errors.New("detector returned a detection without a region")
			}
			if d.Score() < 0 || d.Score() > 1 {
				return nil, errors.Errorf("detector returned confidence %v for %q", d.Score(), d.Label())
			}
		}
		return raw, nil
	}
}

// Threshold returns the minimum confidence of returned detections.
func (a *Adapter) Threshold() float64 {
	return a.threshold
}

// Detect runs the model on img. It does not mutate img. Any failure, including a panic inside
// the model or a confidence outside [0, 1], is returned as a ModelInferenceError.
func (a *Adapter) Detect(ctx context.Context, img image.Image) (dets []Detection, err error) {
	if img == nil {
		return nil, NewModelInferenceError(errors.New("no color image"))
	}
	defer func() {
		if r := recover(); r != nil {
			dets = nil
			err = NewModelInferenceError(fmt.Errorf("panic in detector: %v", r))
		}
	}()

	out, err := a.detector(ctx, img)
	if err != nil {
		return nil, NewModelInferenceError(err)
	}
	a.logger.Debugw("detections", "kept", len(out))
	return out, nil
}
