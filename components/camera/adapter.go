package camera

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"go.viam.com/senses/logging"
	"go.viam.com/senses/rimage/transform"
)

const (
	// DefaultFrameTimeout is how long a single read may block.
	DefaultFrameTimeout = 2 * time.Second
	// DefaultMaxRetries is how many consecutive timeouts are retried before giving up.
	DefaultMaxRetries = 3
)

// AdapterOptions tune how an Adapter reads from its source.
type AdapterOptions struct {
	FrameTimeout time.Duration
	MaxRetries   int
	// Calibration is used until the source reports its own.
	Calibration *transform.DepthColorIntrinsicsExtrinsics
	Clock       clock.Clock
}

// Adapter wraps a Source with per read timeouts, bounded retries, calibration caching and
// frame validation. It also numbers frames and stamps the ones missing a timestamp.
type Adapter struct {
	src    Source
	logger logging.Logger
	clock  clock.Clock

	timeout    time.Duration
	maxRetries int

	mu          sync.Mutex
	calibration *transform.DepthColorIntrinsicsExtrinsics
	validated   *transform.DepthColorIntrinsicsExtrinsics
	seq         uint64
	closed      bool
}

// NewAdapter returns an Adapter reading from src.
func NewAdapter(src Source, opts AdapterOptions, logger logging.Logger) *Adapter {
	a := &Adapter{
		src:         src,
		logger:      logger,
		clock:       opts.Clock,
		timeout:     opts.FrameTimeout,
		maxRetries:  opts.MaxRetries,
		calibration: opts.Calibration,
	}
	if a.clock == nil {
		a.clock = clock.New()
	}
	if a.timeout <= 0 {
		a.timeout = DefaultFrameTimeout
	}
	if a.maxRetries < 0 {
		a.maxRetries = 0
	}
	return a
}

// NextFrame blocks until the source produces a valid frame. Timeouts and invalid frames are
// logged and retried; after MaxRetries consecutive failures the source is reported
// unavailable. Any other source error is fatal.
func (a *Adapter) NextFrame(ctx context.Context) (*Frame, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil, NewSourceUnavailableError(errors.New("source is closed"))
	}

	var lastErr error
	for attempt := 0; attempt <= a.maxRetries; attempt++ {
		if attempt > 0 {
			a.logger.Warnw("retrying frame read", "attempt", attempt, "max_retries", a.maxRetries, "error", lastErr)
		}
		frame, err := a.read(ctx)
		if err == nil {
			if frame, err = a.finish(frame); err == nil {
				return frame, nil
			}
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, ErrSourceUnavailable) || errors.Is(err, ErrEndOfStream) {
			return nil, err
		}
		var invalid *invalidFrameError
		if !errors.Is(err, ErrFrameTimeout) && !errors.As(err, &invalid) {
			return nil, NewSourceUnavailableError(err)
		}
		lastErr = err
	}
	return nil, NewSourceUnavailableError(errors.Wrapf(lastErr, "%d consecutive failed reads", a.maxRetries+1))
}

func (a *Adapter) read(ctx context.Context) (*Frame, error) {
	readCtx, cancel := a.clock.WithTimeout(ctx, a.timeout)
	defer cancel()
	frame, err := a.src.NextFrame(readCtx)
	if err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return nil, NewFrameTimeoutError(a.timeout)
		}
		return nil, err
	}
	if frame == nil {
		return nil, &invalidFrameError{errors.New("source returned no frame")}
	}
	return frame, nil
}

// finish attaches the cached calibration and validates the frame. The source's frame is
// copied so the caller's value is never shared with the driver.
func (a *Adapter) finish(raw *Frame) (*Frame, error) {
	frame := *raw
	if frame.Calibration != nil {
		a.calibration = frame.Calibration
	}
	if a.calibration == nil {
		return nil, NewSourceUnavailableError(transform.NewNoIntrinsicsError("source never reported a calibration"))
	}
	if a.calibration != a.validated {
		if err := a.calibration.CheckValid(); err != nil {
			a.calibration = nil
			return nil, NewSourceUnavailableError(errors.Wrap(err, "invalid calibration"))
		}
		a.validated = a.calibration
		a.logger.Debugw("using calibration",
			"color", a.calibration.ColorCamera.Width, "depth", a.calibration.DepthCamera.Width,
			"depth_scale", a.calibration.DepthScale)
	}
	frame.Calibration = a.calibration
	if err := frame.Validate(); err != nil {
		return nil, &invalidFrameError{err}
	}
	a.seq++
	frame.Seq = a.seq
	if frame.Timestamp.IsZero() {
		frame.Timestamp = a.clock.Now()
	}
	return &frame, nil
}

// Calibration returns the cached calibration, or nil if none was seen yet.
func (a *Adapter) Calibration() *transform.DepthColorIntrinsicsExtrinsics {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calibration
}

// Close closes the underlying source. Later reads fail with ErrSourceUnavailable.
func (a *Adapter) Close(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	return a.src.Close(ctx)
}

// NewInvalidFrameError marks err as a bad frame. The Adapter logs and retries such reads
// instead of treating them as a device failure.
func NewInvalidFrameError(err error) error {
	return &invalidFrameError{err}
}

type invalidFrameError struct {
	err error
}

func (e *invalidFrameError) Error() string {
	return "invalid frame: " + e.err.Error()
}

func (e *invalidFrameError) Unwrap() error {
	return e.err
}
