// Package pipeline runs the frame loop: read a frame, detect, build the point cloud, advance the
// flyby camera and render, until the source, the display or the caller stops it.
package pipeline

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"go.viam.com/senses/components/camera"
	"go.viam.com/senses/flyby"
	"go.viam.com/senses/logging"
	"go.viam.com/senses/pointcloud"
	"go.viam.com/senses/visualizer"
	"go.viam.com/senses/vision/objectdetection"
)

// Detector finds objects in a color image.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]objectdetection.Detection, error)
}

// Renderer draws scenes on a display the user can close.
type Renderer interface {
	Render(scene visualizer.Scene) error
	Closed() bool
	Close() error
}

// Params are the stages a Loop connects.
type Params struct {
	Frames   camera.FrameReader
	Detector Detector
	Builder  *pointcloud.Builder
	Flyby    *flyby.Controller
	Renderer Renderer
	// History keeps the clouds drawn as a trail. Defaults to the current cloud only.
	History *pointcloud.History
	Clock   clock.Clock
	// OverlapDetection detects on the next frame while the current one is built and rendered.
	OverlapDetection bool
}

// Stats count what the loop has done so far.
type Stats struct {
	Ticks             uint64
	DetectionFailures uint64
	BuildFailures     uint64
}

// Loop is the render context: it owns the flyby controller and the renderer from creation until
// Close.
type Loop struct {
	detector Detector
	builder  *pointcloud.Builder
	flyby    *flyby.Controller
	renderer Renderer
	history  *pointcloud.History
	clock    clock.Clock
	logger   logging.Logger

	frames frameDetector

	lastTick time.Time

	statsMu sync.Mutex
	stats   Stats

	closeOnce sync.Once
	closeErr  error
}

// detected pairs a frame with the detections computed on it.
type detected struct {
	frame *camera.Frame
	dets  []objectdetection.Detection
}

type frameDetector interface {
	next(ctx context.Context) (detected, error)
	close()
}

// NewLoop connects the stages in params.
func NewLoop(params Params, logger logging.Logger) (*Loop, error) {
	switch {
	case params.Frames == nil:
		return nil, errors.New("pipeline needs a frame reader")
	case params.Detector == nil:
		return nil, errors.New("pipeline needs a detector")
	case params.Builder == nil:
		return nil, errors.New("pipeline needs a point cloud builder")
	case params.Flyby == nil:
		return nil, errors.New("pipeline needs a flyby controller")
	case params.Renderer == nil:
		return nil, errors.New("pipeline needs a renderer")
	}
	l := &Loop{
		detector: params.Detector,
		builder:  params.Builder,
		flyby:    params.Flyby,
		renderer: params.Renderer,
		history:  params.History,
		clock:    params.Clock,
		logger:   logger,
	}
	if l.history == nil {
		l.history = pointcloud.NewHistory(1)
	}
	if l.clock == nil {
		l.clock = clock.New()
	}
	if params.OverlapDetection {
		l.frames = newOverlapped(params.Frames, l.detect, logger)
	} else {
		l.frames = &sequential{frames: params.Frames, detect: l.detect}
	}
	return l, nil
}

// detect runs the detector on frame. A failure is logged and counted and nothing is detected.
func (l *Loop) detect(ctx context.Context, frame *camera.Frame) []objectdetection.Detection {
	dets, err := l.detector.Detect(ctx, frame.Color)
	if err == nil {
		return dets
	}
	if ctx.Err() == nil {
		l.logger.Warnw("detection failed, continuing without detections", "seq", frame.Seq, "error", err)
		l.statsMu.Lock()
		l.stats.DetectionFailures++
		l.statsMu.Unlock()
	}
	return nil
}

// Tick runs the stages once. Only fatal errors are returned: the source going away, the context
// ending or the display failing. The flyby camera advances by the clock time since the previous
// tick.
func (l *Loop) Tick(ctx context.Context) error {
	in, err := l.frames.next(ctx)
	if err != nil {
		return err
	}

	pc, err := l.builder.Build(in.frame, in.dets)
	if err != nil {
		l.logger.Warnw("cannot build point cloud, rendering an empty one", "seq", in.frame.Seq, "error", err)
		l.statsMu.Lock()
		l.stats.BuildFailures++
		l.statsMu.Unlock()
		pc = &pointcloud.PointCloud{Seq: in.frame.Seq, Timestamp: in.frame.Timestamp, Detections: in.dets}
	}
	l.history.Add(pc)

	now := l.clock.Now()
	var dt time.Duration
	if !l.lastTick.IsZero() {
		dt = now.Sub(l.lastTick)
	}
	l.lastTick = now
	pose := l.flyby.Advance(dt)

	clouds := l.history.Clouds()
	scene := visualizer.Scene{
		Frame: in.frame,
		Cloud: pc,
		Trail: clouds[:len(clouds)-1],
		Pose:  pose,
	}
	if err := l.renderer.Render(scene); err != nil {
		return visualizer.NewDisplayInitError(err)
	}

	l.statsMu.Lock()
	l.stats.Ticks++
	l.statsMu.Unlock()
	l.logger.Debugw("tick", "seq", in.frame.Seq, "points", pc.Size(), "detections", len(in.dets), "dt", dt)
	return nil
}

// Run draws the initializing screen and then ticks until ctx ends, the display is closed or
// the source reaches the end of its stream, which all return nil. A fatal error is returned
// without rendering again.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.renderer.Render(visualizer.Scene{Pose: l.flyby.Pose()}); err != nil {
		return visualizer.NewDisplayInitError(err)
	}
	for {
		if l.renderer.Closed() {
			l.logger.Info("display closed, stopping")
			return nil
		}
		err := l.Tick(ctx)
		switch {
		case err == nil:
		case ctx.Err() != nil:
			l.logger.Infow("stopping", "reason", ctx.Err())
			return nil
		case errors.Is(err, camera.ErrEndOfStream):
			l.logger.Info("source reached the end of its stream, stopping")
			return nil
		default:
			return err
		}
	}
}

// Stats returns what the loop has done so far.
func (l *Loop) Stats() Stats {
	l.statsMu.Lock()
	defer l.statsMu.Unlock()
	return l.stats
}

// Close stops the flyby camera, any background detection and releases the renderer.
func (l *Loop) Close() error {
	l.closeOnce.Do(func() {
		l.frames.close()
		l.flyby.Stop()
		l.closeErr = l.renderer.Close()
		st := l.Stats()
		l.logger.Infow("pipeline stopped", "ticks", st.Ticks, "detection_failures", st.DetectionFailures)
	})
	return l.closeErr
}
