// Package visualizer draws the flyby view of the point cloud together with the color, depth
// and segmentation panels of the frame it was built from.
package visualizer

import (
	"image"
	"sync"

	"github.com/pkg/errors"

	"go.viam.com/senses/utils"
)

// ErrDisplayInit is returned when no drawing surface can be acquired.
var ErrDisplayInit = errors.New("cannot open display")

// NewDisplayInitError wraps the cause so errors.Is matches both ErrDisplayInit and the cause.
func NewDisplayInitError(cause error) error {
	return utils.NewCausedError(ErrDisplayInit, cause)
}

// Display is a drawing surface the renderer presents composed images on.
type Display interface {
	// Size returns the size of the surface in pixels.
	Size() (width, height int)
	// Show presents img, which has the display's size.
	Show(img image.Image) error
	// Closed reports whether the user closed the surface.
	Closed() bool
	Close() error
}

// HeadlessDisplay keeps the last shown image in memory instead of drawing it on screen.
type HeadlessDisplay struct {
	width, height int

	mu     sync.Mutex
	last   image.Image
	shown  int
	closed bool
}

// NewHeadlessDisplay returns an in-memory display of the given size.
func NewHeadlessDisplay(width, height int) (*HeadlessDisplay, error) {
	if width <= 0 || height <= 0 {
		return nil, NewDisplayInitError(errors.Errorf("invalid display size %dx%d", width, height))
	}
	return &HeadlessDisplay{width: width, height: height}, nil
}

// Size returns the size of the surface in pixels.
func (d *HeadlessDisplay) Size() (int, int) {
	return d.width, d.height
}

// Show stores img.
func (d *HeadlessDisplay) Show(img image.Image) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errors.New("display is closed")
	}
	d.last = img
	d.shown++
	return nil
}

// Last returns the last shown image and how many images were shown.
func (d *HeadlessDisplay) Last() (image.Image, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last, d.shown
}

// Closed reports whether Close was called.
func (d *HeadlessDisplay) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Close marks the display closed.
func (d *HeadlessDisplay) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}
