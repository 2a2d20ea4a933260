// Package replay implements a frame source reading a directory of recorded RGBD frames, one
// CBOR file per frame, in file name order.
package replay

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"go.viam.com/senses/components/camera"
	"go.viam.com/senses/logging"
	"go.viam.com/senses/rimage"
	"go.viam.com/senses/utils"
)

// SourceType is the registered name of the replay source.
const SourceType = "replay"

// FileExt is the extension of recorded frame files.
const FileExt = ".cbor"

func init() {
	camera.RegisterSource(SourceType, camera.SourceRegistration{
		Constructor: func(ctx context.Context, attrs utils.AttributeMap, logger logging.Logger) (camera.Source, error) {
			conf, err := utils.TransformAttributeMap[*Config](attrs)
			if err != nil {
				return nil, err
			}
			return NewSource(conf, clock.New(), logger)
		},
		AttributesType: &Config{},
	})
}

// Config are the attributes of the replay source.
type Config struct {
	Dir string `json:"dir"`
	// Loop restarts from the first file instead of ending the stream.
	Loop          bool          `json:"loop,omitempty"`
	FrameInterval time.Duration `json:"frame_interval,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (conf *Config) Validate(path string) error {
	if conf.Dir == "" {
		return goutils.NewConfigValidationFieldRequiredError(path, "dir")
	}
	if conf.FrameInterval < 0 {
		return goutils.NewConfigValidationError(path, errors.New("frame_interval cannot be negative"))
	}
	return nil
}

// Source replays recorded frames.
type Source struct {
	files    []string
	loop     bool
	interval time.Duration
	clock    clock.Clock
	logger   logging.Logger

	mu     sync.Mutex
	next   int
	last   time.Time
	closed bool
}

// NewSource lists the recorded frames in conf.Dir. A missing or empty directory means there is
// no device to read from.
func NewSource(conf *Config, clk clock.Clock, logger logging.Logger) (*Source, error) {
	if conf == nil {
		return nil, errors.New("replay config cannot be nil")
	}
	if err := conf.Validate("attributes"); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(conf.Dir)
	if err != nil {
		return nil, camera.NewSourceUnavailableError(errors.Wrap(err, "cannot read replay directory"))
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), FileExt) {
			continue
		}
		files = append(files, filepath.Join(conf.Dir, entry.Name()))
	}
	if len(files) == 0 {
		return nil, camera.NewSourceUnavailableError(errors.Errorf("no %s files in %q", FileExt, conf.Dir))
	}
	sort.Strings(files)
	logger.Infow("replaying recorded frames", "dir", conf.Dir, "frames", len(files), "loop", conf.Loop)
	return &Source{
		files:    files,
		loop:     conf.Loop,
		interval: conf.FrameInterval,
		clock:    clk,
		logger:   logger,
	}, nil
}

// NextFrame decodes the next recorded frame, waiting out the frame interval if one is set.
// The color image is resized when it does not match the recorded color camera.
func (s *Source) NextFrame(ctx context.Context) (*camera.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, camera.NewSourceUnavailableError(errors.New("replay source closed"))
	}
	if s.next >= len(s.files) {
		if !s.loop {
			return nil, camera.ErrEndOfStream
		}
		s.next = 0
	}
	if s.interval > 0 && !s.last.IsZero() {
		if wait := s.last.Add(s.interval).Sub(s.clock.Now()); wait > 0 {
			timer := s.clock.Timer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
	}
	s.last = s.clock.Now()

	path := s.files[s.next]
	s.next++
	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, camera.NewSourceUnavailableError(errors.Wrapf(err, "cannot read %q", path))
	}
	frame, err := DecodeFrame(data)
	if err != nil {
		return nil, camera.NewInvalidFrameError(errors.Wrapf(err, "bad recording %q", filepath.Base(path)))
	}
	if calib := frame.Calibration; calib != nil {
		w, h := calib.ColorCamera.Width, calib.ColorCamera.Height
		if w > 0 && h > 0 && (frame.Color.Rect.Dx() != w || frame.Color.Rect.Dy() != h) {
			s.logger.Debugw("resizing recorded color image", "file", filepath.Base(path),
				"from", frame.Color.Rect.Size(), "to_width", w, "to_height", h)
			frame.Color = rimage.ResizeExact(frame.Color, w, h)
		}
	}
	return frame, nil
}

// Len returns the number of recorded frames.
func (s *Source) Len() int {
	return len(s.files)
}

// Close stops the source.
func (s *Source) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
