package rimage

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// ConvertToNRGBA returns img as an *image.NRGBA with origin (0, 0), copying only when needed.
func ConvertToNRGBA(img image.Image) *image.NRGBA {
	if nrgba, ok := img.(*image.NRGBA); ok && nrgba.Rect.Min == (image.Point{}) {
		return nrgba
	}
	return imaging.Clone(img)
}

// FitInto scales img up or down to the largest size within width x height that keeps its
// aspect ratio.
func FitInto(img image.Image, width, height int) *image.NRGBA {
	bounds := img.Bounds()
	if width <= 0 || height <= 0 || bounds.Empty() {
		return image.NewNRGBA(image.Rect(0, 0, 0, 0))
	}
	scale := math.Min(float64(width)/float64(bounds.Dx()), float64(height)/float64(bounds.Dy()))
	w := max(1, int(math.Round(float64(bounds.Dx())*scale)))
	h := max(1, int(math.Round(float64(bounds.Dy())*scale)))
	return imaging.Resize(img, w, h, imaging.Linear)
}

// ResizeExact scales img to exactly width x height.
func ResizeExact(img image.Image, width, height int) *image.NRGBA {
	return imaging.Resize(img, width, height, imaging.Linear)
}
