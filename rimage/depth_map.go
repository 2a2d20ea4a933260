package rimage

import (
	"image"
	"image/color"
	"math"

	"github.com/pkg/errors"
)

// Depth is the raw value of a depth sample in device units. Zero means no reading.
type Depth uint16

// MaxDepth is the largest representable Depth.
const MaxDepth = Depth(math.MaxUint16)

// DepthMap is a row-major grid of depth samples.
type DepthMap struct {
	width  int
	height int

	data []Depth
}

// NewEmptyDepthMap returns a zeroed depth map of the given size.
func NewEmptyDepthMap(width, height int) *DepthMap {
	return &DepthMap{
		width:  width,
		height: height,
		data:   make([]Depth, width*height),
	}
}

// NewDepthMapFromData wraps a row-major slice of samples. The slice is not copied.
func NewDepthMapFromData(width, height int, data []Depth) (*DepthMap, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("bad width or height for depth map %v %v", width, height)
	}
	if len(data) != width*height {
		return nil, errors.Errorf("depth map %dx%d needs %d samples, got %d", width, height, width*height, len(data))
	}
	return &DepthMap{width: width, height: height, data: data}, nil
}

// ConvertImageToDepthMap reads a 16-bit gray image (the usual depth encoding) into a DepthMap.
func ConvertImageToDepthMap(img image.Image) (*DepthMap, error) {
	switch ii := img.(type) {
	case *DepthMap:
		return ii, nil
	case *image.Gray16:
		bounds := ii.Bounds()
		dm := NewEmptyDepthMap(bounds.Dx(), bounds.Dy())
		for y := 0; y < dm.height; y++ {
			for x := 0; x < dm.width; x++ {
				dm.Set(x, y, Depth(ii.Gray16At(bounds.Min.X+x, bounds.Min.Y+y).Y))
			}
		}
		return dm, nil
	default:
		return nil, errors.Errorf("don't know how to convert %T to a depth map", img)
	}
}

// HasData returns whether the map has any samples.
func (dm *DepthMap) HasData() bool {
	return dm.width > 0 && len(dm.data) > 0
}

// Width returns the horizontal size in pixels.
func (dm *DepthMap) Width() int {
	return dm.width
}

// Height returns the vertical size in pixels.
func (dm *DepthMap) Height() int {
	return dm.height
}

// Bounds returns the rectangle (0, 0, width, height).
func (dm *DepthMap) Bounds() image.Rectangle {
	return image.Rect(0, 0, dm.width, dm.height)
}

// ColorModel is Gray16 so a DepthMap can be handed to anything taking an image.Image.
func (dm *DepthMap) ColorModel() color.Model {
	return color.Gray16Model
}

// At returns the sample as a 16-bit gray color.
func (dm *DepthMap) At(x, y int) color.Color {
	return color.Gray16{uint16(dm.GetDepth(x, y))}
}

// Contains returns whether (x, y) is inside the map.
func (dm *DepthMap) Contains(x, y int) bool {
	return x >= 0 && y >= 0 && x < dm.width && y < dm.height
}

// Get returns the depth at the point.
func (dm *DepthMap) Get(p image.Point) Depth {
	return dm.GetDepth(p.X, p.Y)
}

// GetDepth returns the depth at (x, y).
func (dm *DepthMap) GetDepth(x, y int) Depth {
	return dm.data[(y*dm.width)+x]
}

// Set sets the depth at (x, y).
func (dm *DepthMap) Set(x, y int, val Depth) {
	dm.data[(y*dm.width)+x] = val
}

// Clone returns a deep copy.
func (dm *DepthMap) Clone() *DepthMap {
	data := make([]Depth, len(dm.data))
	copy(data, dm.data)
	return &DepthMap{width: dm.width, height: dm.height, data: data}
}

// MinMax returns the smallest and largest non-zero depth. Both are zero if there are no readings.
func (dm *DepthMap) MinMax() (Depth, Depth) {
	lo, hi := MaxDepth, Depth(0)
	for _, z := range dm.data {
		if z == 0 {
			continue
		}
		lo = min(lo, z)
		hi = max(hi, z)
	}
	if hi == 0 {
		return 0, 0
	}
	return lo, hi
}

// ToGray16Picture converts the map into a 16-bit gray image.
func (dm *DepthMap) ToGray16Picture() *image.Gray16 {
	img := image.NewGray16(dm.Bounds())
	for y := 0; y < dm.height; y++ {
		for x := 0; x < dm.width; x++ {
			img.SetGray16(x, y, color.Gray16{uint16(dm.GetDepth(x, y))})
		}
	}
	return img
}

// ToPrettyPicture colorizes the depth map. Depths in [hardMin, hardMax] sweep the hue wheel from
// near to far; missing readings and out of range samples are black. A zero bound is replaced by
// the map's own extreme.
func (dm *DepthMap) ToPrettyPicture(hardMin, hardMax Depth) *image.NRGBA {
	img := image.NewNRGBA(dm.Bounds())

	lo, hi := dm.MinMax()
	if hardMin > 0 {
		lo = hardMin
	}
	if hardMax > 0 {
		hi = hardMax
	}
	span := float64(hi) - float64(lo)

	for y := 0; y < dm.height; y++ {
		for x := 0; x < dm.width; x++ {
			z := dm.GetDepth(x, y)
			if z == 0 || z < lo || z > hi {
				img.SetNRGBA(x, y, color.NRGBA{0, 0, 0, 255})
				continue
			}
			ratio := 0.0
			if span > 0 {
				ratio = (float64(z) - float64(lo)) / span
			}
			img.SetNRGBA(x, y, DepthRampColor(ratio).NRGBA())
		}
	}
	return img
}

// DepthRampColor maps a normalized depth in [0, 1] onto the colorization hue ramp.
func DepthRampColor(ratio float64) Color {
	if ratio < 0 {
		ratio = 0
	} else if ratio > 1 {
		ratio = 1
	}
	return NewColorFromHSV(30+200*ratio, 0.8, 1)
}
