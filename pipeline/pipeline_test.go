package pipeline_test

import (
	"context"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/senses/components/camera"
	"go.viam.com/senses/components/camera/fake"
	"go.viam.com/senses/flyby"
	"go.viam.com/senses/logging"
	"go.viam.com/senses/pipeline"
	"go.viam.com/senses/pointcloud"
	"go.viam.com/senses/rimage/transform"
	"go.viam.com/senses/testutils/inject"
	"go.viam.com/senses/visualizer"
	"go.viam.com/senses/vision/objectdetection"
)

const tickInterval = 100 * time.Millisecond

type harness struct {
	clock    *clock.Mock
	source   *inject.Source
	detector *inject.Detector
	display  *inject.Display
	history  *pointcloud.History
	flyby    *flyby.Controller

	reads atomic.Int64
	shows atomic.Int64

	// failAfter makes reads past that many frames return err.
	failAfter int64
	err       error
}

func testCalibration() *transform.DepthColorIntrinsicsExtrinsics {
	intr := transform.PinholeCameraIntrinsics{Width: 32, Height: 24, Fx: 23, Fy: 23, Ppx: 16, Ppy: 12}
	return &transform.DepthColorIntrinsicsExtrinsics{
		ColorCamera:  intr,
		DepthCamera:  intr,
		ExtrinsicD2C: transform.IdentityExtrinsics(),
		DepthScale:   transform.DefaultDepthScale,
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{clock: clock.NewMock(), history: pointcloud.NewHistory(3)}
	calib := testCalibration()
	h.source = &inject.Source{NextFrameFunc: func(ctx context.Context) (*camera.Frame, error) {
		n := h.reads.Add(1)
		if h.err != nil && n > h.failAfter {
			return nil, h.err
		}
		h.clock.Add(tickInterval)
		colorImg, depth := fake.Render(calib.DepthCamera, time.Duration(n)*tickInterval)
		return &camera.Frame{Seq: uint64(n), Color: colorImg, Depth: depth, Calibration: calib}, nil
	}}
	h.detector = &inject.Detector{}

	headless, err := visualizer.NewHeadlessDisplay(160, 90)
	test.That(t, err, test.ShouldBeNil)
	h.display = &inject.Display{Display: headless, ShowFunc: func(img image.Image) error {
		h.shows.Add(1)
		return headless.Show(img)
	}}

	h.flyby, err = flyby.NewController(flyby.DefaultConfig(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	return h
}

func (h *harness) loop(t *testing.T, logger logging.Logger, overlap bool) *pipeline.Loop {
	t.Helper()
	cfg := visualizer.DefaultConfig()
	cfg.Type = visualizer.DisplayHeadless
	renderer, err := visualizer.NewRenderer(cfg, pointcloud.DefaultMaxRange, h.display, logger)
	test.That(t, err, test.ShouldBeNil)
	builder, err := pointcloud.NewBuilder(pointcloud.DefaultBuilderConfig())
	test.That(t, err, test.ShouldBeNil)
	loop, err := pipeline.NewLoop(pipeline.Params{
		Frames:           h.source,
		Detector:         h.detector,
		Builder:          builder,
		Flyby:            h.flyby,
		Renderer:         renderer,
		History:          h.history,
		Clock:            h.clock,
		OverlapDetection: overlap,
	}, logger)
	test.That(t, err, test.ShouldBeNil)
	t.Cleanup(func() { test.That(t, loop.Close(), test.ShouldBeNil) })
	return loop
}

func TestNewLoopRequiresStages(t *testing.T) {
	_, err := pipeline.NewLoop(pipeline.Params{}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "frame reader")
}

func TestTick(t *testing.T) {
	h := newHarness(t)
	loop := h.loop(t, logging.NewTestLogger(t), false)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		test.That(t, loop.Tick(ctx), test.ShouldBeNil)
	}
	test.That(t, h.reads.Load(), test.ShouldEqual, int64(3))
	test.That(t, h.shows.Load(), test.ShouldEqual, int64(3))
	test.That(t, loop.Stats().Ticks, test.ShouldEqual, uint64(3))

	// the first tick starts the flyby, the next two advance it by the clock
	test.That(t, h.flyby.State(), test.ShouldEqual, flyby.StateFlying)
	test.That(t, h.flyby.Pose().Elapsed, test.ShouldEqual, 2*tickInterval)

	clouds := h.history.Clouds()
	test.That(t, len(clouds), test.ShouldEqual, 3)
	for i, pc := range clouds {
		test.That(t, pc.Seq, test.ShouldEqual, uint64(i+1))
		test.That(t, pc.Size(), test.ShouldBeGreaterThan, 0)
	}
}

func TestTickRecoversFromModelInferenceError(t *testing.T) {
	h := newHarness(t)
	var calls atomic.Int64
	h.detector.DetectFunc = func(ctx context.Context, img image.Image) ([]objectdetection.Detection, error) {
		if calls.Add(1) == 1 {
			return nil, objectdetection.NewModelInferenceError(errors.New("model exploded"))
		}
		return []objectdetection.Detection{objectdetection.NewBoxDetection(img.Bounds(), 0.9, "person")}, nil
	}
	logger, logs := logging.NewObservedTestLogger(t)
	loop := h.loop(t, logger, false)
	ctx := context.Background()

	test.That(t, loop.Tick(ctx), test.ShouldBeNil)
	test.That(t, h.history.Latest().Detections, test.ShouldBeEmpty)
	test.That(t, h.history.Latest().MetaData().Tagged, test.ShouldEqual, 0)

	failures := logs.FilterMessage("detection failed, continuing without detections").All()
	test.That(t, len(failures), test.ShouldEqual, 1)
	test.That(t, failures[0].ContextMap()["seq"], test.ShouldEqual, uint64(1))
	test.That(t, fmt.Sprint(failures[0].ContextMap()["error"]), test.ShouldContainSubstring, "model exploded")

	// the next tick reads a new frame and detects again
	test.That(t, loop.Tick(ctx), test.ShouldBeNil)
	test.That(t, h.reads.Load(), test.ShouldEqual, int64(2))
	test.That(t, h.history.Latest().Detections, test.ShouldHaveLength, 1)
	test.That(t, h.history.Latest().MetaData().Tagged, test.ShouldBeGreaterThan, 0)
	test.That(t, loop.Stats().DetectionFailures, test.ShouldEqual, uint64(1))
	test.That(t, h.shows.Load(), test.ShouldEqual, int64(2))
}

func TestRunStopsOnSourceUnavailable(t *testing.T) {
	for _, overlap := range []bool{false, true} {
		t.Run(fmt.Sprintf("overlap=%v", overlap), func(t *testing.T) {
			h := newHarness(t)
			h.failAfter = 2
			h.err = camera.NewSourceUnavailableError(errors.New("unplugged"))
			loop := h.loop(t, logging.NewTestLogger(t), overlap)

			err := loop.Run(context.Background())
			test.That(t, errors.Is(err, camera.ErrSourceUnavailable), test.ShouldBeTrue)
			// the initializing screen and one render per good frame
			test.That(t, h.shows.Load(), test.ShouldEqual, int64(3))
			test.That(t, loop.Stats().Ticks, test.ShouldEqual, uint64(2))

			test.That(t, loop.Tick(context.Background()), test.ShouldNotBeNil)
			test.That(t, h.shows.Load(), test.ShouldEqual, int64(3))
		})
	}
}

func TestRunStopsCleanly(t *testing.T) {
	t.Run("end of stream", func(t *testing.T) {
		h := newHarness(t)
		h.failAfter = 4
		h.err = camera.ErrEndOfStream
		loop := h.loop(t, logging.NewTestLogger(t), false)
		test.That(t, loop.Run(context.Background()), test.ShouldBeNil)
		test.That(t, loop.Stats().Ticks, test.ShouldEqual, uint64(4))
	})

	t.Run("display closed", func(t *testing.T) {
		h := newHarness(t)
		h.display.ClosedFunc = func() bool { return h.shows.Load() >= 5 }
		loop := h.loop(t, logging.NewTestLogger(t), false)
		test.That(t, loop.Run(context.Background()), test.ShouldBeNil)
		test.That(t, h.shows.Load(), test.ShouldEqual, int64(5))
	})

	t.Run("context canceled", func(t *testing.T) {
		h := newHarness(t)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		h.failAfter = 3
		h.err = context.Canceled
		next := h.source.NextFrameFunc
		h.source.NextFrameFunc = func(c context.Context) (*camera.Frame, error) {
			frame, err := next(c)
			if err != nil {
				cancel()
			}
			return frame, err
		}
		loop := h.loop(t, logging.NewTestLogger(t), false)
		test.That(t, loop.Run(ctx), test.ShouldBeNil)
		test.That(t, loop.Stats().Ticks, test.ShouldEqual, uint64(3))
	})
}

func TestRunFailsWhenDisplayFails(t *testing.T) {
	h := newHarness(t)
	h.display.ShowFunc = func(img image.Image) error { return errors.New("surface lost") }
	loop := h.loop(t, logging.NewTestLogger(t), false)
	err := loop.Run(context.Background())
	test.That(t, errors.Is(err, visualizer.ErrDisplayInit), test.ShouldBeTrue)
	test.That(t, h.reads.Load(), test.ShouldEqual, int64(0))
}

func TestOverlappedDetectionKeepsFramesPaired(t *testing.T) {
	h := newHarness(t)
	var mu sync.Mutex
	var seen []string
	h.detector.DetectFunc = func(ctx context.Context, img image.Image) ([]objectdetection.Detection, error) {
		// label each detection with the read that produced the image
		label := fmt.Sprint(h.reads.Load())
		mu.Lock()
		seen = append(seen, label)
		mu.Unlock()
		return []objectdetection.Detection{objectdetection.NewBoxDetection(image.Rect(0, 0, 4, 4), 0.9, label)}, nil
	}
	loop := h.loop(t, logging.NewTestLogger(t), true)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		test.That(t, loop.Tick(ctx), test.ShouldBeNil)
	}
	for _, pc := range h.history.Clouds() {
		test.That(t, pc.Detections, test.ShouldHaveLength, 1)
		test.That(t, pc.Detections[0].Label(), test.ShouldEqual, fmt.Sprint(pc.Seq))
	}
	mu.Lock()
	defer mu.Unlock()
	test.That(t, len(seen), test.ShouldBeGreaterThanOrEqualTo, 3)
}

func TestCloseStopsEverything(t *testing.T) {
	h := newHarness(t)
	loop := h.loop(t, logging.NewTestLogger(t), true)
	test.That(t, loop.Tick(context.Background()), test.ShouldBeNil)
	test.That(t, loop.Close(), test.ShouldBeNil)
	test.That(t, h.flyby.State(), test.ShouldEqual, flyby.StateStopped)
	test.That(t, h.display.Closed(), test.ShouldBeTrue)
}
