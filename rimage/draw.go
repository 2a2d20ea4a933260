package rimage

import (
	"image"
	"image/color"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

var regularFont *truetype.Font

// init sets up the fonts we want to use.
func init() {
	var err error
	regularFont, err = truetype.Parse(goregular.TTF)
	if err != nil {
		panic(err)
	}
}

// Font returns the font we use for drawing.
func Font() *truetype.Font {
	return regularFont
}

// FontFace returns a face of Font at size points.
func FontFace(size float64) font.Face {
	return truetype.NewFace(Font(), &truetype.Options{Size: size})
}

// DrawString writes text into the context with its anchor point at p. ax and ay place the
// anchor as in gg.DrawStringAnchored: 0 is left/top, 0.5 the middle and 1 right/bottom.
func DrawString(dc *gg.Context, text string, p image.Point, c color.Color, face font.Face, ax, ay float64) {
	dc.SetFontFace(face)
	dc.SetColor(c)
	dc.DrawStringAnchored(text, float64(p.X), float64(p.Y), ax, ay)
}

// DrawCursor draws a ring with a cross hair centered at p.
func DrawCursor(dc *gg.Context, p image.Point, radius float64, c color.Color, width float64) {
	x, y := float64(p.X), float64(p.Y)
	dc.SetColor(c)
	dc.SetLineWidth(width)
	dc.DrawCircle(x, y, radius)
	dc.Stroke()
	dc.DrawLine(x-radius*1.5, y, x-radius/2, y)
	dc.DrawLine(x+radius/2, y, x+radius*1.5, y)
	dc.DrawLine(x, y-radius*1.5, x, y-radius/2)
	dc.DrawLine(x, y+radius/2, x, y+radius*1.5)
	dc.Stroke()
}

// DrawRectangleEmpty draws the outline of r into the context.
func DrawRectangleEmpty(dc *gg.Context, r image.Rectangle, c color.Color, width float64) {
	dc.SetColor(c)
	dc.SetLineWidth(width)
	dc.DrawRectangle(float64(r.Min.X), float64(r.Min.Y), float64(r.Dx()), float64(r.Dy()))
	dc.Stroke()
}
