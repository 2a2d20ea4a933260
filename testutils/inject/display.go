package inject

import (
	"image"

	"go.viam.com/senses/visualizer"
)

// Display is an injected drawing surface.
type Display struct {
	visualizer.Display
	SizeFunc   func() (int, int)
	ShowFunc   func(img image.Image) error
	ClosedFunc func() bool
	CloseFunc  func() error
}

// Size calls the injected Size or the real version.
func (d *Display) Size() (int, int) {
	if d.SizeFunc == nil {
		return d.Display.Size()
	}
	return d.SizeFunc()
}

// Show calls the injected Show or the real version.
func (d *Display) Show(img image.Image) error {
	if d.ShowFunc == nil {
		return d.Display.Show(img)
	}
	return d.ShowFunc(img)
}

// Closed calls the injected Closed or the real version.
func (d *Display) Closed() bool {
	if d.ClosedFunc == nil {
		return d.Display.Closed()
	}
	return d.ClosedFunc()
}

// Close calls the injected Close or the real version.
func (d *Display) Close() error {
	if d.CloseFunc == nil {
		if d.Display == nil {
			return nil
		}
		return d.Display.Close()
	}
	return d.CloseFunc()
}
