package visualizer

import (
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/lmittmann/ppm"
	"github.com/pkg/errors"
	"github.com/xfmoulet/qoi"
	"go.uber.org/multierr"
)

// SaveImage writes img to path in the format named by its extension: any format imaging
// knows (png, jpg, gif, tif, bmp), ppm or qoi.
func SaveImage(path string, img image.Image) (err error) {
	var encode func(f *os.File) error
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".ppm":
		encode = func(f *os.File) error { return ppm.Encode(f, img) }
	case ".qoi":
		encode = func(f *os.File) error { return qoi.Encode(f, img) }
	default:
		if _, err := imaging.FormatFromExtension(ext); err != nil {
			return errors.Wrapf(err, "cannot save %q", path)
		}
		return imaging.Save(img, path)
	}
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	return encode(f)
}

// FrameLimit wraps a display so it reports itself closed once n images were shown.
type FrameLimit struct {
	Display
	n     int
	shown int
}

// NewFrameLimit returns display limited to n shown images.
func NewFrameLimit(display Display, n int) *FrameLimit {
	return &FrameLimit{Display: display, n: n}
}

// Show presents img and counts it.
func (d *FrameLimit) Show(img image.Image) error {
	if err := d.Display.Show(img); err != nil {
		return err
	}
	d.shown++
	return nil
}

// Closed reports whether the limit was reached or the wrapped display was closed.
func (d *FrameLimit) Closed() bool {
	return d.shown >= d.n || d.Display.Closed()
}
