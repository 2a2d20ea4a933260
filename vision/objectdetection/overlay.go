package objectdetection

import (
	"image"
	"image/color"

	"go.viam.com/senses/rimage"
)

// Overlay returns a copy of img with every detection's region blended with c at the given weight.
func Overlay(img image.Image, dets []Detection, c color.NRGBA, weight float64) *image.NRGBA {
	src := rimage.ConvertToNRGBA(img)
	out := image.NewNRGBA(src.Rect)
	copy(out.Pix, src.Pix)
	for _, d := range dets {
		region := d.Region()
		if region == nil {
			continue
		}
		bounds := region.Bounds().Intersect(out.Rect)
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				if region.Contains(x, y) {
					out.SetNRGBA(x, y, rimage.Blend(out.NRGBAAt(x, y), c, weight))
				}
			}
		}
	}
	return out
}
