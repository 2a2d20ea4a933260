// Package objectdetection defines detections, the regions they cover and the detectors
// that produce them.
package objectdetection

import (
	"fmt"
	"image"
)

// Detection is a labeled region of a color image with a confidence in [0, 1].
type Detection interface {
	BoundingBox() image.Rectangle
	Score() float64
	Label() string
	Region() Region
}

type detection2D struct {
	region Region
	score  float64
	label  string
}

// NewDetection creates a detection over the given region.
func NewDetection(region Region, score float64, label string) Detection {
	return &detection2D{region: region, score: score, label: label}
}

// NewBoxDetection creates a detection whose region is its bounding box.
func NewBoxDetection(box image.Rectangle, score float64, label string) Detection {
	return NewDetection(BoxRegion(box.Canon()), score, label)
}

// BoundingBox returns the smallest rectangle containing the region.
func (d *detection2D) BoundingBox() image.Rectangle {
	if d.region == nil {
		return image.Rectangle{}
	}
	return d.region.Bounds()
}

// Score returns the confidence of the detection.
func (d *detection2D) Score() float64 {
	return d.score
}

// Label returns the class label.
func (d *detection2D) Label() string {
	return d.label
}

// Region returns the covered pixels.
func (d *detection2D) Region() Region {
	return d.region
}

func (d *detection2D) String() string {
	return fmt.Sprintf("Label: %s, Score: %.2f, Box: %v", d.label, d.score, d.BoundingBox())
}

// Contains reports whether the pixel is inside the detection's region.
func Contains(d Detection, x, y int) bool {
	region := d.Region()
	return region != nil && region.Contains(x, y)
}
