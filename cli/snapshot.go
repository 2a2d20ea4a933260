package cli

import (
	"context"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.viam.com/senses/config"
	"go.viam.com/senses/logging"
	"go.viam.com/senses/visualizer"
)

// SnapshotAction renders frames of the configured source off screen and saves the last one.
func SnapshotAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger, closeLogger := newLogger(c, cfg)
	defer closeLogger()
	out := c.String(outFlag)
	if err := Snapshot(c.Context, cfg, out, c.Int(framesFlag), logger); err != nil {
		return err
	}
	logger.Infow("saved snapshot", "path", out)
	return nil
}

// Snapshot runs the pipeline on a headless display of the configured size for n frames and
// writes the last composed image to path.
func Snapshot(ctx context.Context, cfg *config.Config, path string, n int, logger logging.Logger) error {
	if n <= 0 {
		return errors.Errorf("need at least one frame, got %d", n)
	}
	headless, err := visualizer.NewHeadlessDisplay(cfg.Display.Width, cfg.Display.Height)
	if err != nil {
		return err
	}
	// the first image shown is the initializing screen
	err = RunOn(ctx, cfg, visualizer.NewFrameLimit(headless, n+1), logger)
	if err != nil && ExitCodeFor(err) != ExitOK {
		return err
	}
	img, shown := headless.Last()
	if shown < 2 {
		return errors.New("no frame was rendered")
	}
	return visualizer.SaveImage(path, img)
}
