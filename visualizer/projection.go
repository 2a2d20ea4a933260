package visualizer

import (
	"image"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"

	"go.viam.com/senses/spatialmath"
	"go.viam.com/senses/utils"
)

// Projector maps world points through a camera pose onto a viewport.
type Projector struct {
	viewProj mgl64.Mat4
	viewport image.Rectangle
}

// NewProjector builds an OpenGL style perspective projection for pose. fov is the vertical
// field of view in degrees.
func NewProjector(pose spatialmath.Pose, viewport image.Rectangle, fov, near, far float64) Projector {
	aspect := 1.0
	if viewport.Dy() > 0 {
		aspect = float64(viewport.Dx()) / float64(viewport.Dy())
	}
	proj := mgl64.Perspective(utils.DegToRad(fov), aspect, near, far)
	return Projector{viewProj: proj.Mul4(pose.ViewMatrix()), viewport: viewport}
}

// Project returns the screen position of p and its normalized depth in [-1, 1]. ok is false
// for points behind the camera, outside the field of view or clipped by the near and far
// planes.
func (pr Projector) Project(p r3.Vector) (x, y, depth float64, ok bool) {
	clip := pr.viewProj.Mul4x1(mgl64.Vec4{p.X, p.Y, p.Z, 1})
	w := clip.W()
	if w <= 0 {
		return 0, 0, 0, false
	}
	ndcX, ndcY, ndcZ := clip.X()/w, clip.Y()/w, clip.Z()/w
	if ndcX < -1 || ndcX > 1 || ndcY < -1 || ndcY > 1 || ndcZ < -1 || ndcZ > 1 {
		return 0, 0, 0, false
	}
	vp := pr.viewport
	x = float64(vp.Min.X) + (ndcX+1)/2*float64(vp.Dx())
	y = float64(vp.Min.Y) + (1-ndcY)/2*float64(vp.Dy())
	return x, y, ndcZ, true
}

// projectLine returns the screen endpoints of the segment a-b, or false when either end is
// behind the camera. Endpoints may fall outside the viewport.
func (pr Projector) projectLine(a, b r3.Vector) (ax, ay, bx, by float64, ok bool) {
	ax, ay, okA := pr.toScreen(a)
	bx, by, okB := pr.toScreen(b)
	return ax, ay, bx, by, okA && okB
}

func (pr Projector) toScreen(p r3.Vector) (float64, float64, bool) {
	clip := pr.viewProj.Mul4x1(mgl64.Vec4{p.X, p.Y, p.Z, 1})
	w := clip.W()
	if w <= 0 {
		return 0, 0, false
	}
	vp := pr.viewport
	return float64(vp.Min.X) + (clip.X()/w+1)/2*float64(vp.Dx()),
		float64(vp.Min.Y) + (1-clip.Y()/w)/2*float64(vp.Dy()), true
}
