// Package inject provides fakes whose behavior is set through function fields.
package inject

import (
	"context"

	"go.viam.com/senses/components/camera"
)

// Source is an injected frame source.
type Source struct {
	camera.Source
	NextFrameFunc func(ctx context.Context) (*camera.Frame, error)
	CloseFunc     func(ctx context.Context) error
}

// NextFrame calls the injected NextFrame or the real version.
func (s *Source) NextFrame(ctx context.Context) (*camera.Frame, error) {
	if s.NextFrameFunc == nil {
		return s.Source.NextFrame(ctx)
	}
	return s.NextFrameFunc(ctx)
}

// Close calls the injected Close or the real version.
func (s *Source) Close(ctx context.Context) error {
	if s.CloseFunc == nil {
		if s.Source == nil {
			return nil
		}
		return s.Source.Close(ctx)
	}
	return s.CloseFunc(ctx)
}
