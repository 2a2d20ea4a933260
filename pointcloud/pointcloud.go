// Package pointcloud turns depth frames into ordered, colored points tagged with the detection
// they fall in.
package pointcloud

import (
	"image"
	"image/color"
	"math"
	"time"

	"github.com/golang/geo/r3"

	"go.viam.com/senses/vision/objectdetection"
)

// NoDetection is the Detection index of an untagged point.
const NoDetection = -1

// Point is a 3D point in the color camera's frame, in meters.
type Point struct {
	Position r3.Vector
	Color    color.NRGBA
	// Pixel is the depth pixel the point was unprojected from.
	Pixel image.Point
	// Detection indexes the cloud's Detections, or is NoDetection.
	Detection int
	Label     string
}

// HasTag returns whether the point lies in a detection region.
func (p Point) HasTag() bool {
	return p.Detection != NoDetection
}

// MetaData is data about what's stored in the point cloud.
type MetaData struct {
	MinX, MaxX float64
	MinY, MaxY float64
	MinZ, MaxZ float64

	Tagged int
	// PerDetection counts the points tagged with each detection.
	PerDetection []int
}

// NewMetaData returns empty metadata for a cloud with numDetections detections.
func NewMetaData(numDetections int) MetaData {
	return MetaData{
		MinX:         math.MaxFloat64,
		MinY:         math.MaxFloat64,
		MinZ:         math.MaxFloat64,
		MaxX:         -math.MaxFloat64,
		MaxY:         -math.MaxFloat64,
		MaxZ:         -math.MaxFloat64,
		PerDetection: make([]int, numDetections),
	}
}

// Merge updates the bounds and counts with p.
func (meta *MetaData) Merge(p Point) {
	v := p.Position
	meta.MinX = math.Min(meta.MinX, v.X)
	meta.MinY = math.Min(meta.MinY, v.Y)
	meta.MinZ = math.Min(meta.MinZ, v.Z)
	meta.MaxX = math.Max(meta.MaxX, v.X)
	meta.MaxY = math.Max(meta.MaxY, v.Y)
	meta.MaxZ = math.Max(meta.MaxZ, v.Z)
	if p.HasTag() {
		meta.Tagged++
		if p.Detection < len(meta.PerDetection) {
			meta.PerDetection[p.Detection]++
		}
	}
}

// Center returns the middle of the bounding box, or the origin for an empty cloud.
func (meta MetaData) Center() r3.Vector {
	if meta.MinX > meta.MaxX {
		return r3.Vector{}
	}
	return r3.Vector{X: (meta.MinX + meta.MaxX) / 2, Y: (meta.MinY + meta.MaxY) / 2, Z: (meta.MinZ + meta.MaxZ) / 2}
}

// PointCloud is the ordered set of points built from one frame, together with the detections
// computed on that same frame.
type PointCloud struct {
	Seq        uint64
	Timestamp  time.Time
	Points     []Point
	Detections []objectdetection.Detection
	meta       MetaData
}

// Size returns the number of points in the cloud.
func (pc *PointCloud) Size() int {
	return len(pc.Points)
}

// MetaData returns the cloud's bounds and tag counts.
func (pc *PointCloud) MetaData() MetaData {
	return pc.meta
}

// DetectionDepths returns the depth in meters of every point tagged with detection idx, in
// point order.
func (pc *PointCloud) DetectionDepths(idx int) []float64 {
	var depths []float64
	for _, p := range pc.Points {
		if p.Detection == idx {
			depths = append(depths, p.Position.Z)
		}
	}
	return depths
}
