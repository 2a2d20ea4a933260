package camera

import (
	"context"
	"sync"

	"go.viam.com/senses/logging"
	"go.viam.com/senses/utils"
)

// LatestStats counts frames passing through a Latest.
type LatestStats struct {
	Produced uint64
	Consumed uint64
	// Dropped frames were overwritten before anyone read them.
	Dropped uint64
}

// Latest reads frames on a background goroutine and hands the most recent one to the consumer.
// A frame arriving before the previous one was read replaces it. The first error from the
// reader stops acquisition and is returned to the consumer once the pending frame, if any, has
// been read.
type Latest struct {
	reader  FrameReader
	workers utils.StoppableWorkers
	logger  logging.Logger

	ready chan struct{}

	mu    sync.Mutex
	frame *Frame
	err   error
	stats LatestStats
}

// NewLatest starts reading from reader in the background.
func NewLatest(reader FrameReader, logger logging.Logger) *Latest {
	l := &Latest{
		reader: reader,
		logger: logger,
		ready:  make(chan struct{}, 1),
	}
	l.workers = utils.NewStoppableWorkers(l.acquire)
	return l
}

func (l *Latest) acquire(ctx context.Context) {
	for {
		frame, err := l.reader.NextFrame(ctx)
		if ctx.Err() != nil {
			return
		}
		l.mu.Lock()
		if err != nil {
			l.err = err
			l.mu.Unlock()
			l.signal()
			return
		}
		if l.frame != nil {
			l.stats.Dropped++
			l.logger.Debugw("replacing unread frame", "seq", l.frame.Seq, "by", frame.Seq)
		}
		l.frame = frame
		l.stats.Produced++
		l.mu.Unlock()
		l.signal()
	}
}

func (l *Latest) signal() {
	select {
	case l.ready <- struct{}{}:
	default:
	}
}

// NextFrame returns the most recent unread frame, waiting for one if needed.
func (l *Latest) NextFrame(ctx context.Context) (*Frame, error) {
	for {
		l.mu.Lock()
		if frame := l.frame; frame != nil {
			l.frame = nil
			l.stats.Consumed++
			l.mu.Unlock()
			return frame, nil
		}
		if err := l.err; err != nil {
			l.mu.Unlock()
			return nil, err
		}
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-l.ready:
		}
	}
}

// Stats returns the frame counters so far.
func (l *Latest) Stats() LatestStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}

// Close stops background acquisition and waits for it to finish.
func (l *Latest) Close() {
	l.workers.Stop()
}
