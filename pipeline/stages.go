package pipeline

import (
	"context"

	"go.viam.com/senses/components/camera"
	"go.viam.com/senses/logging"
	"go.viam.com/senses/utils"
	"go.viam.com/senses/vision/objectdetection"
)

type detectFunc func(ctx context.Context, frame *camera.Frame) []objectdetection.Detection

// sequential reads and detects on the caller's goroutine.
type sequential struct {
	frames camera.FrameReader
	detect detectFunc
}

func (s *sequential) next(ctx context.Context) (detected, error) {
	frame, err := s.frames.NextFrame(ctx)
	if err != nil {
		return detected{}, err
	}
	return detected{frame: frame, dets: s.detect(ctx, frame)}, nil
}

func (s *sequential) close() {}

type result struct {
	detected
	err error
}

// overlapped reads and detects on a worker goroutine, one frame ahead of the consumer. Each
// frame travels together with its own detections.
type overlapped struct {
	workers utils.StoppableWorkers
	results chan result
	err     error
}

func newOverlapped(frames camera.FrameReader, detect detectFunc, logger logging.Logger) *overlapped {
	o := &overlapped{results: make(chan result, 1)}
	o.workers = utils.NewStoppableWorkers(func(ctx context.Context) {
		for {
			frame, err := frames.NextFrame(ctx)
			var res result
			if err != nil {
				res.err = err
			} else {
				res.detected = detected{frame: frame, dets: detect(ctx, frame)}
			}
			select {
			case o.results <- res:
			case <-ctx.Done():
				return
			}
			if err != nil {
				logger.Debugw("detection worker stopping", "error", err)
				return
			}
		}
	})
	return o
}

func (o *overlapped) next(ctx context.Context) (detected, error) {
	if o.err != nil {
		return detected{}, o.err
	}
	select {
	case <-ctx.Done():
		return detected{}, ctx.Err()
	case res := <-o.results:
		if res.err != nil {
			o.err = res.err
		}
		return res.detected, res.err
	}
}

func (o *overlapped) close() {
	o.workers.Stop()
}
