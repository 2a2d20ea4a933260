package objectdetection

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/senses/logging"
)

func TestBuildFunc(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 400, 400))
	_, err := Build(nil, nil, nil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "must have a Detector")
	// detector that creates an error
	det := func(context.Context, image.Image) ([]Detection, error) {
		return nil, errors.New("detector error")
	}
	ctx := context.Background()
	pipeline, err := Build(nil, det, nil)
	test.That(t, err, test.ShouldBeNil)
	_, err = pipeline(ctx, img)
	test.That(t, err.Error(), test.ShouldEqual, "detector error")
	// make simple detector
	det = func(context.Context, image.Image) ([]Detection, error) {
		return []Detection{NewBoxDetection(image.Rect(0, 0, 10, 10), 0.9, "person")}, nil
	}
	pipeline, err = Build(nil, det, nil)
	test.That(t, err, test.ShouldBeNil)
	res, err := pipeline(ctx, img)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res, test.ShouldHaveLength, 1)
	// make simple filter
	filt := func(d []Detection) []Detection {
		return []Detection{}
	}
	pipeline, err = Build(nil, det, filt)
	test.That(t, err, test.ShouldBeNil)
	res, err = pipeline(ctx, img)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res, test.ShouldHaveLength, 0)
	// preprocessor sees the image first
	var seen image.Image
	prep := func(in image.Image) image.Image {
		seen = in
		return in
	}
	pipeline, err = Build(prep, det, nil)
	test.That(t, err, test.ShouldBeNil)
	_, err = pipeline(ctx, img)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, seen, test.ShouldEqual, img)
}

func TestFilters(t *testing.T) {
	dets := []Detection{
		NewBoxDetection(image.Rect(0, 0, 2, 2), 0.3, "person"),
		NewBoxDetection(image.Rect(0, 0, 10, 10), 0.8, "dog"),
		NewBoxDetection(image.Rect(0, 0, 5, 5), 0.6, "person"),
	}
	test.That(t, NewScoreFilter(0.5)(dets), test.ShouldHaveLength, 2)
	test.That(t, NewScoreFilter(0.6)(dets), test.ShouldHaveLength, 2)
	test.That(t, NewAreaFilter(25)(dets), test.ShouldHaveLength, 2)
	test.That(t, NewLabelFilter([]string{"person"})(dets), test.ShouldHaveLength, 2)
	test.That(t, NewLabelFilter(nil)(dets), test.ShouldHaveLength, 3)

	chained := Chain(NewScoreFilter(0.5), NewLabelFilter([]string{"person"}), nil)(dets)
	test.That(t, chained, test.ShouldHaveLength, 1)
	test.That(t, chained[0].Score(), test.ShouldEqual, 0.6)

	sorted := SortByScore(dets)
	test.That(t, sorted[0].Label(), test.ShouldEqual, "dog")
	test.That(t, sorted[2].Score(), test.ShouldEqual, 0.3)
	// input untouched
	test.That(t, dets[0].Score(), test.ShouldEqual, 0.3)
}

func TestAdapter(t *testing.T) {
	logger := logging.NewTestLogger(t)
	ctx := context.Background()
	img := image.NewNRGBA(image.Rect(0, 0, 20, 20))
	cfg := DetectorConfig{Type: "test", ConfidenceThreshold: 0.5, IncludeLabels: []string{"person"}}

	_, err := NewAdapter(nil, cfg, logger)
	test.That(t, err, test.ShouldNotBeNil)

	raw := []Detection{
		NewBoxDetection(image.Rect(0, 0, 5, 5), 0.49, "person"),
		NewBoxDetection(image.Rect(0, 0, 5, 5), 0.5, "person"),
		NewBoxDetection(image.Rect(0, 0, 5, 5), 0.9, "chair"),
	}
	adapter, err := NewAdapter(func(context.Context, image.Image) ([]Detection, error) {
		return raw, nil
	}, cfg, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, adapter.Threshold(), test.ShouldEqual, 0.5)
	dets, err := adapter.Detect(ctx, img)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dets, test.ShouldHaveLength, 1)
	test.That(t, dets[0].Score(), test.ShouldEqual, 0.5)

	_, err = adapter.Detect(ctx, nil)
	test.That(t, err, test.ShouldWrap, ErrModelInference)

	sized := cfg
	sized.MinArea = 20
	adapter, err = NewAdapter(func(context.Context, image.Image) ([]Detection, error) {
		return []Detection{
			NewBoxDetection(image.Rect(0, 0, 5, 5), 0.6, "person"),
			NewBoxDetection(image.Rect(0, 0, 4, 4), 0.99, "person"),
			NewBoxDetection(image.Rect(5, 5, 10, 10), 0.8, "person"),
		}, nil
	}, sized, logger)
	test.That(t, err, test.ShouldBeNil)
	dets, err = adapter.Detect(ctx, img)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dets, test.ShouldHaveLength, 2)
	test.That(t, dets[0].Score(), test.ShouldEqual, 0.8)
	test.That(t, dets[1].Score(), test.ShouldEqual, 0.6)

	sized.MinArea = -1
	_, err = NewAdapter(adapter.detector, sized, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "min_area_px")

	bad := cfg
	bad.ConfidenceThreshold = 1.5
	_, err = NewAdapter(adapter.detector, bad, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "confidence_threshold")
}

func TestAdapterFailures(t *testing.T) {
	logger := logging.NewTestLogger(t)
	ctx := context.Background()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	cfg := DetectorConfig{Type: "test", ConfidenceThreshold: 0.5}

	for name, det := range map[string]Detector{
		"error": func(context.Context, image.Image) ([]Detection, error) {
			return nil, errors.New("cuda out of memory")
		},
		"panic": func(context.Context, image.Image) ([]Detection, error) {
			panic("index out of range")
		},
		"bad score": func(context.Context, image.Image) ([]Detection, error) {
			return []Detection{NewBoxDetection(image.Rect(0, 0, 1, 1), 1.2, "person")}, nil
		},
		"no region": func(context.Context, image.Image) ([]Detection, error) {
			return []Detection{NewDetection(nil, 0.9, "person")}, nil
		},
	} {
		t.Run(name, func(t *testing.T) {
			adapter, err := NewAdapter(det, cfg, logger)
			test.That(t, err, test.ShouldBeNil)
			dets, err := adapter.Detect(ctx, img)
			test.That(t, dets, test.ShouldBeNil)
			test.That(t, err, test.ShouldWrap, ErrModelInference)
		})
	}

	err := NewModelInferenceError(errors.New("boom"))
	test.That(t, err.Error(), test.ShouldContainSubstring, "boom")
	test.That(t, NewModelInferenceError(err), test.ShouldEqual, err)
	test.That(t, NewModelInferenceError(nil), test.ShouldEqual, ErrModelInference)
}

func TestOverlay(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	dets := []Detection{NewBoxDetection(image.Rect(1, 1, 3, 3), 0.9, "person")}
	out := Overlay(img, dets, color.NRGBA{255, 0, 0, 255}, 0.5)
	test.That(t, out.NRGBAAt(0, 0), test.ShouldResemble, color.NRGBA{255, 255, 255, 255})
	test.That(t, out.NRGBAAt(1, 1), test.ShouldResemble, color.NRGBA{255, 128, 128, 255})
	// source untouched
	test.That(t, img.NRGBAAt(1, 1), test.ShouldResemble, color.NRGBA{255, 255, 255, 255})
}
