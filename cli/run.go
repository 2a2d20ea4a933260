package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"go.viam.com/senses/components/camera"
	"go.viam.com/senses/components/camera/replay"
	"go.viam.com/senses/config"
	"go.viam.com/senses/flyby"
	"go.viam.com/senses/logging"
	"go.viam.com/senses/pipeline"
	"go.viam.com/senses/pointcloud"
	"go.viam.com/senses/rimage/transform"
	"go.viam.com/senses/visualizer"
	"go.viam.com/senses/visualizer/window"
	"go.viam.com/senses/vision/objectdetection"
)

// calibrated is implemented by sources that know their calibration before the first frame.
type calibrated interface {
	Calibration() *transform.DepthColorIntrinsicsExtrinsics
}

// openFrames opens the configured source behind an Adapter.
func openFrames(ctx context.Context, cfg *config.Config, logger logging.Logger) (*camera.Adapter, error) {
	calib, err := cfg.Source.LoadCalibration()
	if err != nil {
		return nil, err
	}
	src, err := camera.NewSourceFromConfig(ctx, cfg.Source, logger)
	if err != nil {
		return nil, err
	}
	if c, ok := src.(calibrated); ok && c.Calibration() != nil {
		depth := c.Calibration().DepthCamera
		logger.Infow("device", "type", cfg.Source.Type, "width", depth.Width, "height", depth.Height,
			"fx", depth.Fx, "fy", depth.Fy)
	}
	return camera.NewAdapter(src, camera.AdapterOptions{
		FrameTimeout: cfg.Loop.FrameTimeout,
		MaxRetries:   cfg.Loop.MaxRetries,
		Calibration:  calib,
	}, logger), nil
}

// Run builds the pipeline described by cfg and runs it until ctx ends, the display is closed,
// the source ends or a fatal error happens. Everything opened is released before returning.
func Run(ctx context.Context, cfg *config.Config, logger logging.Logger) error {
	display, err := window.NewDisplay(cfg.Display, logger.Sublogger("display"))
	if err != nil {
		return visualizer.NewDisplayInitError(err)
	}
	return RunOn(ctx, cfg, display, logger)
}

// RunOn is Run presenting on display, which it closes before returning.
func RunOn(ctx context.Context, cfg *config.Config, display visualizer.Display, logger logging.Logger) (err error) {
	renderer, err := visualizer.NewRenderer(cfg.Display, cfg.Cloud.MaxRange, display, logger.Sublogger("renderer"))
	if err != nil {
		return multierr.Combine(visualizer.NewDisplayInitError(err), display.Close())
	}
	fly, err := flyby.NewController(cfg.Flyby, logger.Sublogger("flyby"))
	if err != nil {
		return multierr.Combine(err, renderer.Close())
	}

	adapter, err := openFrames(ctx, cfg, logger.Sublogger("camera"))
	if err != nil {
		return multierr.Combine(err, renderer.Close())
	}
	defer func() {
		err = multierr.Combine(err, adapter.Close(context.Background()))
	}()
	var frames camera.FrameReader = adapter
	if cfg.Loop.LatestFrame {
		latest := camera.NewLatest(adapter, logger.Sublogger("camera"))
		defer func() {
			latest.Close()
			st := latest.Stats()
			logger.Infow("frame handoff", "produced", st.Produced, "consumed", st.Consumed, "dropped", st.Dropped)
		}()
		frames = latest
	}

	detector, closer, err := objectdetection.NewAdapterFromConfig(ctx, cfg.Detector, logger.Sublogger("detector"))
	if err != nil {
		return multierr.Combine(err, renderer.Close())
	}
	if closer != nil {
		defer func() {
			err = multierr.Combine(err, closer.Close())
		}()
	}

	builder, err := pointcloud.NewBuilder(cfg.Cloud)
	if err != nil {
		return multierr.Combine(err, renderer.Close())
	}
	loop, err := pipeline.NewLoop(pipeline.Params{
		Frames:           frames,
		Detector:         detector,
		Builder:          builder,
		Flyby:            fly,
		Renderer:         renderer,
		History:          pointcloud.NewHistory(cfg.Cloud.History),
		OverlapDetection: cfg.Loop.OverlapDetection,
	}, logger.Sublogger("pipeline"))
	if err != nil {
		return multierr.Combine(err, renderer.Close())
	}
	defer func() {
		err = multierr.Combine(err, loop.Close())
	}()
	return loop.Run(ctx)
}

// RecordAction saves frames of the configured source into the replay format.
func RecordAction(c *cli.Context) (err error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger, closeLogger := newLogger(c, cfg)
	defer closeLogger()
	dir := c.String(outFlag)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return errors.Wrapf(err, "cannot create %q", dir)
	}
	adapter, err := openFrames(c.Context, cfg, logger.Sublogger("camera"))
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, adapter.Close(context.Background()))
	}()
	n, err := Record(c.Context, adapter, dir, c.Int(framesFlag))
	logger.Infow("recorded frames", "dir", dir, "frames", n)
	if errors.Is(err, camera.ErrEndOfStream) {
		return nil
	}
	return err
}

// Record writes up to n frames read from frames into dir and returns how many were written.
func Record(ctx context.Context, frames camera.FrameReader, dir string, n int) (int, error) {
	for i := 0; i < n; i++ {
		frame, err := frames.NextFrame(ctx)
		if err != nil {
			return i, err
		}
		data, err := replay.EncodeFrame(frame)
		if err != nil {
			return i, err
		}
		path := filepath.Join(dir, fmt.Sprintf("frame_%06d%s", i, replay.FileExt))
		if err := os.WriteFile(path, data, 0o600); err != nil {
			return i, errors.Wrapf(err, "cannot write %q", path)
		}
	}
	return n, nil
}
