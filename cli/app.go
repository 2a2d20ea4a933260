// Package cli contains the senses command line application.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"runtime/debug"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.viam.com/senses/components/camera"
	"go.viam.com/senses/config"
	"go.viam.com/senses/logging"
	"go.viam.com/senses/visualizer"

	// registers the replay source and the DNN detector.
	_ "go.viam.com/senses/components/camera/replay"
	_ "go.viam.com/senses/vision/objectdetection/yolo/cvnet"
)

const (
	configFlag    = "config"
	thresholdFlag = "confidence-threshold"
	maxRangeFlag  = "max-range"
	debugFlag     = "debug"
	outFlag       = "out"
	framesFlag    = "frames"
)

// Exit codes of the senses command.
const (
	ExitOK                = 0
	ExitFailure           = 1
	ExitSourceUnavailable = 2
	ExitDisplayInit       = 3
)

// Version is replaced by LD flags.
var Version = ""

// NewApp returns the senses application writing to out and errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	return &cli.App{
		Name:            "senses",
		Usage:           "fly a virtual camera around the live point cloud of a depth camera",
		HideHelpCommand: true,
		Writer:          out,
		ErrWriter:       errOut,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    configFlag,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`",
			},
			&cli.Float64Flag{
				Name:  thresholdFlag,
				Usage: "minimum confidence of kept detections, between 0.0 and 1.0",
			},
			&cli.Float64Flag{
				Name:  maxRangeFlag,
				Usage: "drop points farther than this many `METERS`",
			},
			&cli.BoolFlag{
				Name:    debugFlag,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Action: RunAction,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "run the flyby visualization (default)",
				Action: RunAction,
			},
			{
				Name:  "record",
				Usage: "save frames from the configured source for the replay source",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     outFlag,
						Usage:    "write recordings into `DIR`",
						Required: true,
					},
					&cli.IntFlag{
						Name:  framesFlag,
						Usage: "number of frames to record",
						Value: 100,
					},
				},
				Action: RecordAction,
			},
			{
				Name:  "snapshot",
				Usage: "render frames off screen and save the last one as an image",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     outFlag,
						Usage:    "write the image to `FILE`; png, jpg, ppm and qoi are supported",
						Required: true,
					},
					&cli.IntFlag{
						Name:  framesFlag,
						Usage: "number of frames to render",
						Value: 30,
					},
				},
				Action: SnapshotAction,
			},
			{
				Name:   "schema",
				Usage:  "print the JSON schema of the configuration file",
				Action: SchemaAction,
			},
			{
				Name:   "types",
				Usage:  "list the registered source and detector types",
				Action: TypesAction,
			},
			{
				Name:   "version",
				Usage:  "print version info for this program",
				Action: VersionAction,
			},
		},
	}
}

// Main runs the application with args and returns the process exit code.
func Main(ctx context.Context, args []string, out, errOut io.Writer) int {
	err := NewApp(out, errOut).RunContext(ctx, args)
	code := ExitCodeFor(err)
	if code != ExitOK {
		printf(errOut, "senses: %v", err)
	}
	return code
}

// ExitCodeFor maps the error ending the program to its exit code. Interrupts are a clean
// shutdown.
func ExitCodeFor(err error) int {
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return ExitOK
	case errors.Is(err, camera.ErrSourceUnavailable):
		return ExitSourceUnavailable
	case errors.Is(err, visualizer.ErrDisplayInit):
		return ExitDisplayInit
	default:
		return ExitFailure
	}
}

// loadConfig reads the config file and applies the command line overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Read(c.String(configFlag))
	if err != nil {
		return nil, err
	}
	if c.IsSet(thresholdFlag) {
		if err := cfg.OverrideConfidenceThreshold(c.Float64(thresholdFlag)); err != nil {
			return nil, err
		}
	}
	if c.IsSet(maxRangeFlag) {
		if err := cfg.OverrideMaxRange(c.Float64(maxRangeFlag)); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// newLogger returns the console logger, teeing into the configured log file. The returned
// function flushes and closes both.
func newLogger(c *cli.Context, cfg *config.Config) (logging.Logger, func()) {
	logger := logging.NewLogger("senses")
	logger.SetLevel(cfg.Level())
	if c.Bool(debugFlag) {
		logger.SetLevel(logging.DEBUG)
	}
	var file io.Closer
	if cfg.LogFile != "" {
		var appender logging.Appender
		appender, file = logging.NewFileAppender(cfg.LogFile, cfg.LogFileMaxMB)
		logger.AddAppender(appender)
	}
	return logger, func() {
		//nolint:errcheck
		logger.Sync()
		if file != nil {
			//nolint:errcheck
			file.Close()
		}
	}
}

// RunAction runs the flyby until interrupted, the window is closed or the source is gone.
func RunAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger, closeLogger := newLogger(c, cfg)
	defer closeLogger()
	logger.Infow("Artificial Senses flyby",
		"version", version(),
		"source", cfg.Source.Type,
		"detector", cfg.Detector.Type,
		"confidence_threshold", cfg.Detector.ConfidenceThreshold,
		"include_labels", cfg.Detector.IncludeLabels,
		"max_range_m", cfg.Cloud.MaxRange,
		"display", cfg.Display.Type,
	)
	err = Run(c.Context, cfg, logger)
	if err != nil && ExitCodeFor(err) != ExitOK {
		logger.Errorw("stopped", "error", err)
	}
	return err
}

// SchemaAction prints the configuration schema.
func SchemaAction(c *cli.Context) error {
	out, err := json.MarshalIndent(config.NewSchema(), "", "  ")
	if err != nil {
		return err
	}
	printf(c.App.Writer, "%s", out)
	return nil
}

// VersionAction prints the version of the program.
func VersionAction(c *cli.Context) error {
	if c.Bool(debugFlag) {
		if info, ok := debug.ReadBuildInfo(); ok {
			printf(c.App.Writer, "%s", info.String())
		}
	}
	printf(c.App.Writer, "Version %s", version())
	return nil
}

func version() string {
	appVersion := Version
	if appVersion == "" {
		appVersion = "(dev)"
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return appVersion
	}
	settings := make(map[string]string, len(info.Settings))
	for _, setting := range info.Settings {
		settings[setting.Key] = setting.Value
	}
	if rev, ok := settings["vcs.revision"]; ok && len(rev) >= 8 {
		appVersion += " Git=" + rev[:8]
		if settings["vcs.modified"] == "true" {
			appVersion += "+"
		}
	}
	return appVersion
}

// printf prints a message with a newline.
func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, format+"\n", a...)
}
