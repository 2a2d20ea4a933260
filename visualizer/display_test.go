package visualizer_test

import (
	"image"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/senses/logging"
	"go.viam.com/senses/testutils/inject"
	"go.viam.com/senses/visualizer"
)

func TestHeadlessDisplay(t *testing.T) {
	d, err := visualizer.NewHeadlessDisplay(4, 3)
	test.That(t, err, test.ShouldBeNil)
	w, h := d.Size()
	test.That(t, w, test.ShouldEqual, 4)
	test.That(t, h, test.ShouldEqual, 3)

	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	test.That(t, d.Show(img), test.ShouldBeNil)
	last, n := d.Last()
	test.That(t, last, test.ShouldEqual, img)
	test.That(t, n, test.ShouldEqual, 1)

	test.That(t, d.Close(), test.ShouldBeNil)
	test.That(t, d.Closed(), test.ShouldBeTrue)
	test.That(t, d.Show(img), test.ShouldNotBeNil)
}

func TestRendererDisplayErrors(t *testing.T) {
	logger := logging.NewTestLogger(t)
	cfg := visualizer.DefaultConfig()

	broken := &inject.Display{SizeFunc: func() (int, int) { return 0, 0 }}
	_, err := visualizer.NewRenderer(cfg, 6, broken, logger)
	test.That(t, errors.Is(err, visualizer.ErrDisplayInit), test.ShouldBeTrue)

	var closed bool
	failing := &inject.Display{
		SizeFunc:   func() (int, int) { return 64, 48 },
		ShowFunc:   func(image.Image) error { return errors.New("lost surface") },
		ClosedFunc: func() bool { return closed },
		CloseFunc:  func() error { closed = true; return nil },
	}
	r, err := visualizer.NewRenderer(cfg, 6, failing, logger)
	test.That(t, err, test.ShouldBeNil)
	err = r.Render(visualizer.Scene{})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "lost surface")
	test.That(t, r.Rendered(), test.ShouldEqual, uint64(0))
	test.That(t, r.Close(), test.ShouldBeNil)
	test.That(t, r.Closed(), test.ShouldBeTrue)

	test.That(t, visualizer.NewDisplayInitError(nil), test.ShouldEqual, visualizer.ErrDisplayInit)
	wrapped := visualizer.NewDisplayInitError(errors.New("no X server"))
	test.That(t, errors.Is(wrapped, visualizer.ErrDisplayInit), test.ShouldBeTrue)
	test.That(t, visualizer.NewDisplayInitError(wrapped), test.ShouldEqual, wrapped)
}
