package rimage

import (
	"fmt"
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// Colors shared by the renderer panels.
var (
	Background   = NewColorFromHexOrPanic("#262626")
	Mask         = NewColorFromHexOrPanic("#BBC392")
	FrustumGray  = NewColorFromHexOrPanic("#7F7F7F")
	Highlight    = NewColorFromHexOrPanic("#FF2020")
	White        = NewColor(255, 255, 255)
	FallbackGray = NewColor(128, 128, 128)
)

// Color is an opaque RGB color that also caches its HSV representation.
type Color struct {
	R, G, B uint8
	H, S, V float64
}

func (c Color) String() string {
	return fmt.Sprintf("%s (%3d,%4.2f,%4.2f)", c.Hex(), int(c.H), c.S, c.V)
}

// Hex returns the #rrggbb form.
func (c Color) Hex() string {
	return fmt.Sprintf("#%.2x%.2x%.2x", c.R, c.G, c.B)
}

// RGBA implements color.Color.
func (c Color) RGBA() (r, g, b, a uint32) {
	return c.NRGBA().RGBA()
}

// NRGBA returns the color with full alpha.
func (c Color) NRGBA() color.NRGBA {
	return color.NRGBA{c.R, c.G, c.B, 255}
}

// WithAlpha returns the color with the given alpha.
func (c Color) WithAlpha(a uint8) color.NRGBA {
	return color.NRGBA{c.R, c.G, c.B, a}
}

// HueDistance returns the angular distance in degrees between two hues, in [0, 180].
func HueDistance(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 360)
	if d > 180 {
		return 360 - d
	}
	return d
}

// DistanceLab is the perceptual distance between two colors.
func (c Color) DistanceLab(b Color) float64 {
	return c.toColorful().DistanceLab(b.toColorful())
}

func (c Color) toColorful() colorful.Color {
	return colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}
}

// NewColor returns the color with its HSV values filled in.
func NewColor(r, g, b uint8) Color {
	c := Color{R: r, G: g, B: b}
	c.H, c.S, c.V = c.toColorful().Hsv()
	return c
}

// NewColorFromHexOrPanic is NewColorFromHex for package level constants.
func NewColorFromHexOrPanic(hex string) Color {
	c, err := NewColorFromHex(hex)
	if err != nil {
		panic(err)
	}
	return c
}

// NewColorFromHex parses a #rrggbb string.
func NewColorFromHex(hex string) (Color, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return Color{}, err
	}
	return NewColorFromColor(c), nil
}

// NewColorFromHSV builds a color from hue in degrees and saturation/value in [0, 1].
func NewColorFromHSV(h, s, v float64) Color {
	return NewColorFromColor(colorful.Hsv(h, s, v))
}

// NewColorFromColor converts any color, ignoring alpha.
func NewColorFromColor(c color.Color) Color {
	switch cc := c.(type) {
	case Color:
		return cc
	case colorful.Color:
		r, g, b := cc.Clamped().RGB255()
		return NewColor(r, g, b)
	case color.NRGBA:
		return NewColor(cc.R, cc.G, cc.B)
	default:
		cf, ok := colorful.MakeColor(c)
		if !ok {
			// fully transparent
			return NewColor(0, 0, 0)
		}
		r, g, b := cf.RGB255()
		return NewColor(r, g, b)
	}
}

// Blend mixes src over dst with the given weight of src in [0, 1].
func Blend(dst, src color.NRGBA, weight float64) color.NRGBA {
	mix := func(a, b uint8) uint8 {
		return uint8(math.Round(float64(a)*(1-weight) + float64(b)*weight))
	}
	return color.NRGBA{mix(dst.R, src.R), mix(dst.G, src.G), mix(dst.B, src.B), 255}
}
