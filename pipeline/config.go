package pipeline

import (
	"time"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"go.viam.com/senses/components/camera"
)

// Config controls frame acquisition and how the stages of a tick are scheduled.
type Config struct {
	// FrameTimeout bounds a single frame read.
	FrameTimeout time.Duration `json:"frame_timeout,omitempty"`
	// MaxRetries is how many failed reads in a row are retried before the source is given up.
	MaxRetries int `json:"max_retries,omitempty"`
	// LatestFrame reads frames on a background goroutine and always processes the newest one.
	LatestFrame bool `json:"latest_frame,omitempty"`
	// OverlapDetection runs detection on the next frame while the current one is rendered.
	OverlapDetection bool `json:"overlap_detection,omitempty"`
}

// DefaultConfig returns the sequential loop with the default read timeout.
func DefaultConfig() Config {
	return Config{
		FrameTimeout: camera.DefaultFrameTimeout,
		MaxRetries:   camera.DefaultMaxRetries,
	}
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if cfg.FrameTimeout < 0 {
		return goutils.NewConfigValidationError(path, errors.New("frame_timeout cannot be negative"))
	}
	if cfg.MaxRetries < 0 {
		return goutils.NewConfigValidationError(path, errors.New("max_retries cannot be negative"))
	}
	return nil
}
