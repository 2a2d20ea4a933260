// Package window presents rendered scenes in an OpenCV highgui window.
package window

import (
	"image"
	"os"
	"runtime"
	"sync"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"go.viam.com/senses/logging"
	"go.viam.com/senses/visualizer"
)

const (
	keyEscape = 27
	waitKeyMS = 1
)

// Window is a visualizer.Display backed by a highgui window. All calls must come from the
// goroutine that created it.
type Window struct {
	title         string
	width, height int
	logger        logging.Logger

	mu     sync.Mutex
	win    *gocv.Window
	closed bool
}

// New opens a window of the given size. Missing display servers are reported as
// visualizer.ErrDisplayInit instead of letting the GUI toolkit abort the process.
func New(cfg visualizer.Config, logger logging.Logger) (*Window, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, visualizer.NewDisplayInitError(errors.Errorf("invalid window size %dx%d", cfg.Width, cfg.Height))
	}
	if err := checkDisplayServer(runtime.GOOS, os.Getenv); err != nil {
		return nil, visualizer.NewDisplayInitError(err)
	}
	title := cfg.Title
	if title == "" {
		title = visualizer.DefaultConfig().Title
	}
	win := gocv.NewWindow(title)
	if win == nil || !win.IsOpen() {
		return nil, visualizer.NewDisplayInitError(errors.Errorf("cannot create window %q", title))
	}
	if cfg.Fullscreen {
		win.SetWindowProperty(gocv.WindowPropertyFullscreen, gocv.WindowFullscreen)
	} else {
		win.ResizeWindow(cfg.Width, cfg.Height)
	}
	logger.Infow("opened window", "title", title, "width", cfg.Width, "height", cfg.Height, "fullscreen", cfg.Fullscreen)
	return &Window{title: title, width: cfg.Width, height: cfg.Height, logger: logger, win: win}, nil
}

// checkDisplayServer fails when no X11 or Wayland server is reachable on Linux.
func checkDisplayServer(goos string, getenv func(string) string) error {
	if goos != "linux" {
		return nil
	}
	if getenv("DISPLAY") == "" && getenv("WAYLAND_DISPLAY") == "" {
		return errors.New("neither DISPLAY nor WAYLAND_DISPLAY is set")
	}
	return nil
}

// Size returns the size of the window in pixels.
func (w *Window) Size() (int, int) {
	return w.width, w.height
}

// Show draws img and polls the window for key presses. Escape or q closes the window.
func (w *Window) Show(img image.Image) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errors.New("window is closed")
	}
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return errors.Wrap(err, "cannot convert frame for display")
	}
	defer func() {
		if err := mat.Close(); err != nil {
			w.logger.Debugw("cannot release frame buffer", "error", err)
		}
	}()
	w.win.IMShow(mat)
	key := w.win.WaitKey(waitKeyMS)
	if isCloseKey(key) {
		w.logger.Infow("window closed by key press", "key", key)
		w.closed = true
	} else if w.win.GetWindowProperty(gocv.WindowPropertyVisible) < 1 {
		w.logger.Info("window closed by the user")
		w.closed = true
	}
	return nil
}

func isCloseKey(key int) bool {
	return key == keyEscape || key == 'q' || key == 'Q'
}

// Closed reports whether the user closed the window.
func (w *Window) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// Close destroys the window.
func (w *Window) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	if w.win == nil {
		return nil
	}
	err := w.win.Close()
	w.win = nil
	return err
}

// NewDisplay opens the display cfg names.
func NewDisplay(cfg visualizer.Config, logger logging.Logger) (visualizer.Display, error) {
	if cfg.Type == visualizer.DisplayHeadless {
		return visualizer.NewHeadlessDisplay(cfg.Width, cfg.Height)
	}
	return New(cfg, logger)
}
