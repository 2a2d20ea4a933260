package objectdetection

import (
	"image"
	"math"
)

// Region is a set of pixels in color image space.
type Region interface {
	// Contains reports whether the pixel (x, y) is in the region.
	Contains(x, y int) bool
	// Bounds is the smallest rectangle containing every pixel of the region.
	Bounds() image.Rectangle
	// Centroid is the center of mass of the region, from its image moments.
	Centroid() image.Point
	// Area is the number of pixels in the region.
	Area() int
}

// BoxRegion is an axis aligned rectangle of pixels.
type BoxRegion image.Rectangle

// Contains reports whether (x, y) is inside the box.
func (b BoxRegion) Contains(x, y int) bool {
	return image.Pt(x, y).In(image.Rectangle(b))
}

// Bounds returns the box.
func (b BoxRegion) Bounds() image.Rectangle {
	return image.Rectangle(b)
}

// Centroid returns the center of the box.
func (b BoxRegion) Centroid() image.Point {
	r := image.Rectangle(b)
	return image.Pt((r.Min.X+r.Max.X)/2, (r.Min.Y+r.Max.Y)/2)
}

// Area returns the number of pixels in the box.
func (b BoxRegion) Area() int {
	r := image.Rectangle(b)
	return r.Dx() * r.Dy()
}

// MaskRegion is a binary mask placed over a rectangle of the image.
type MaskRegion struct {
	rect image.Rectangle
	bits []bool
}

// NewMaskRegion creates an empty mask covering rect.
func NewMaskRegion(rect image.Rectangle) *MaskRegion {
	rect = rect.Canon()
	return &MaskRegion{rect: rect, bits: make([]bool, rect.Dx()*rect.Dy())}
}

// Set marks the pixel as part of the region. Pixels outside the mask's rectangle are ignored.
func (m *MaskRegion) Set(x, y int) {
	if !image.Pt(x, y).In(m.rect) {
		return
	}
	m.bits[(y-m.rect.Min.Y)*m.rect.Dx()+(x-m.rect.Min.X)] = true
}

// Contains reports whether the pixel is set.
func (m *MaskRegion) Contains(x, y int) bool {
	if !image.Pt(x, y).In(m.rect) {
		return false
	}
	return m.bits[(y-m.rect.Min.Y)*m.rect.Dx()+(x-m.rect.Min.X)]
}

// Bounds returns the tight bounding box of the set pixels.
func (m *MaskRegion) Bounds() image.Rectangle {
	bounds := image.Rectangle{}
	first := true
	m.each(func(x, y int) {
		px := image.Rect(x, y, x+1, y+1)
		if first {
			bounds = px
			first = false
			return
		}
		bounds = bounds.Union(px)
	})
	return bounds
}

// Centroid returns (m10/m00, m01/m00) over the set pixels, or the rectangle center when empty.
func (m *MaskRegion) Centroid() image.Point {
	var m00, m10, m01 float64
	m.each(func(x, y int) {
		m00++
		m10 += float64(x)
		m01 += float64(y)
	})
	if m00 == 0 {
		return BoxRegion(m.rect).Centroid()
	}
	return image.Pt(int(math.Round(m10/m00)), int(math.Round(m01/m00)))
}

// Area returns the number of set pixels.
func (m *MaskRegion) Area() int {
	n := 0
	for _, b := range m.bits {
		if b {
			n++
		}
	}
	return n
}

func (m *MaskRegion) each(fn func(x, y int)) {
	w := m.rect.Dx()
	for i, b := range m.bits {
		if b {
			fn(m.rect.Min.X+i%w, m.rect.Min.Y+i/w)
		}
	}
}

// PolygonRegion is a closed polygon in pixel coordinates. A pixel is inside when its center is.
type PolygonRegion []image.Point

// Contains uses the even-odd rule on the pixel center.
func (p PolygonRegion) Contains(x, y int) bool {
	if len(p) < 3 {
		return false
	}
	px, py := float64(x)+0.5, float64(y)+0.5
	inside := false
	for i, j := 0, len(p)-1; i < len(p); j, i = i, i+1 {
		xi, yi := float64(p[i].X), float64(p[i].Y)
		xj, yj := float64(p[j].X), float64(p[j].Y)
		if (yi > py) != (yj > py) && px < (xj-xi)*(py-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

// Bounds returns the bounding box of the vertices.
func (p PolygonRegion) Bounds() image.Rectangle {
	if len(p) == 0 {
		return image.Rectangle{}
	}
	r := image.Rectangle{Min: p[0], Max: p[0]}
	for _, pt := range p[1:] {
		r.Min.X = min(r.Min.X, pt.X)
		r.Min.Y = min(r.Min.Y, pt.Y)
		r.Max.X = max(r.Max.X, pt.X)
		r.Max.Y = max(r.Max.Y, pt.Y)
	}
	return r
}

// Centroid returns the area centroid of the polygon, or the vertex mean when the area is zero.
func (p PolygonRegion) Centroid() image.Point {
	if len(p) == 0 {
		return image.Point{}
	}
	var a, cx, cy float64
	for i := range p {
		j := (i + 1) % len(p)
		cross := float64(p[i].X*p[j].Y - p[j].X*p[i].Y)
		a += cross
		cx += float64(p[i].X+p[j].X) * cross
		cy += float64(p[i].Y+p[j].Y) * cross
	}
	if a == 0 {
		var sx, sy int
		for _, pt := range p {
			sx += pt.X
			sy += pt.Y
		}
		return image.Pt(sx/len(p), sy/len(p))
	}
	a /= 2
	return image.Pt(int(math.Round(cx/(6*a))), int(math.Round(cy/(6*a))))
}

// Area counts the pixels whose centers are inside the polygon.
func (p PolygonRegion) Area() int {
	bounds := p.Bounds()
	n := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if p.Contains(x, y) {
				n++
			}
		}
	}
	return n
}
