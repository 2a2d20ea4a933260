package visualizer

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/geo/r3"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"golang.org/x/image/font"

	"go.viam.com/senses/components/camera"
	"go.viam.com/senses/flyby"
	"go.viam.com/senses/logging"
	"go.viam.com/senses/pointcloud"
	"go.viam.com/senses/rimage"
	"go.viam.com/senses/rimage/transform"
	"go.viam.com/senses/vision/objectdetection"
)

// InitializingText is shown until the first frame arrives.
const InitializingText = "Initializing RGB/depth stream"

const (
	// frustum slices of the depth camera, in meters
	frustumNear = 1
	frustumStep = 2
	frustumFar  = 5

	frustumAlpha   = 0x30
	overlayWeight  = 0.5
	cursorRadius   = 8
	labelGap       = 2
	separatorWidth = 1
)

// SegmentationColor is blended over detection regions in the segmentation panel.
var SegmentationColor = color.NRGBA{R: 0xFF, A: 0xFF}

// Scene is everything drawn in one render call. Cloud and its detections must come from Frame.
type Scene struct {
	// Frame is nil until the source delivered one.
	Frame *camera.Frame
	Cloud *pointcloud.PointCloud
	// Trail holds older clouds drawn under Cloud, oldest first.
	Trail []*pointcloud.PointCloud
	Pose  flyby.Pose
}

// Renderer composes scenes and presents them on a Display. The Renderer owns the display
// from creation until Close.
type Renderer struct {
	cfg       Config
	display   Display
	logger    logging.Logger
	maxRange  float64
	highlight color.NRGBA

	width, height int
	titleFace     font.Face
	labelFace     font.Face
	statsFace     font.Face

	mu       sync.Mutex
	rendered uint64
	closed   bool
}

// NewRenderer validates cfg and takes ownership of display. maxRange is the farthest point
// distance, used to colorize depth. A missing or unusable display is an ErrDisplayInit.
func NewRenderer(cfg Config, maxRange float64, display Display, logger logging.Logger) (*Renderer, error) {
	if err := cfg.Validate("display"); err != nil {
		return nil, err
	}
	if display == nil {
		return nil, NewDisplayInitError(errors.New("no display"))
	}
	width, height := display.Size()
	if width <= 0 || height <= 0 {
		return nil, NewDisplayInitError(errors.Errorf("display reports size %dx%d", width, height))
	}
	highlight, err := rimage.NewColorFromHex(cfg.HighlightColor)
	if err != nil {
		return nil, err
	}
	if maxRange <= 0 {
		maxRange = pointcloud.DefaultMaxRange
	}
	// text sizes follow the 1080 line reference layout
	scale := float64(height) / 1080
	r := &Renderer{
		cfg:       cfg,
		display:   display,
		logger:    logger,
		maxRange:  maxRange,
		highlight: highlight.NRGBA(),
		width:     width,
		height:    height,
		titleFace: rimage.FontFace(math.Max(8, 24*scale)),
		labelFace: rimage.FontFace(math.Max(8, 18*scale)),
		statsFace: rimage.FontFace(math.Max(8, 14*scale)),
	}
	logger.Infow("renderer ready", "width", width, "height", height, "fov", cfg.FOV, "point_colors", cfg.PointColors)
	return r, nil
}

// Layout is where each part of the screen goes.
type Layout struct {
	// Panels are the color, depth and segmentation slots, left to right.
	Panels   [3]image.Rectangle
	Viewport image.Rectangle
}

// ComputeLayout splits a width x height screen into a row of three panels keeping the
// aspect of a frameWidth x frameHeight image, and the flyby viewport below them. The panel row
// never takes more than half the screen.
func ComputeLayout(width, height, frameWidth, frameHeight int, hidePanels bool) Layout {
	if hidePanels || frameWidth <= 0 || frameHeight <= 0 {
		return Layout{Viewport: image.Rect(0, 0, width, height)}
	}
	panelW := width / 3
	panelH := panelW * frameHeight / frameWidth
	if panelH > height/2 {
		panelH = height / 2
	}
	var l Layout
	for i := range l.Panels {
		l.Panels[i] = image.Rect(i*panelW, 0, (i+1)*panelW, panelH)
	}
	l.Viewport = image.Rect(0, panelH, width, height)
	return l
}

// Render composes the scene and presents it.
func (r *Renderer) Render(scene Scene) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return errors.New("renderer is closed")
	}
	img := r.compose(scene)
	if err := r.display.Show(img); err != nil {
		return errors.Wrap(err, "cannot present frame")
	}
	r.rendered++
	return nil
}

// Compose draws the scene into a new image without presenting it.
func (r *Renderer) Compose(scene Scene) *image.RGBA {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.compose(scene)
}

func (r *Renderer) compose(scene Scene) *image.RGBA {
	dc := gg.NewContext(r.width, r.height)
	dc.SetColor(rimage.Background.NRGBA())
	dc.Clear()

	if scene.Frame == nil {
		rimage.DrawString(dc, InitializingText, image.Pt(r.width/2, r.height/2), rimage.White.NRGBA(), r.titleFace, 0.5, 0.5)
		return toRGBA(dc)
	}

	colorBounds := scene.Frame.Color.Bounds()
	layout := ComputeLayout(r.width, r.height, colorBounds.Dx(), colorBounds.Dy(), r.cfg.HidePanels)
	proj := NewProjector(scene.Pose.Pose, layout.Viewport, r.cfg.FOV, r.cfg.Near, r.cfg.Far)

	if !r.cfg.HideFrustum {
		r.drawFrustum(dc, proj, scene.Frame, layout.Viewport)
	}
	img := toRGBA(dc)
	r.drawPoints(img, proj, layout.Viewport, scene)

	dc = gg.NewContextForRGBA(img)
	if !r.cfg.HidePanels {
		r.drawPanels(dc, layout, scene)
	}
	if r.cfg.ShowStats {
		r.drawStats(dc, layout.Viewport, scene)
	}
	return toRGBA(dc)
}

func toRGBA(dc *gg.Context) *image.RGBA {
	if img, ok := dc.Image().(*image.RGBA); ok {
		return img
	}
	img := image.NewRGBA(image.Rect(0, 0, dc.Width(), dc.Height()))
	gc := gg.NewContextForRGBA(img)
	gc.DrawImage(dc.Image(), 0, 0)
	return img
}

// drawPoints rasterizes the clouds with a depth buffer. Tagged points use the highlight color
// and marker size.
func (r *Renderer) drawPoints(img *image.RGBA, proj Projector, viewport image.Rectangle, scene Scene) {
	zbuf := make([]float64, viewport.Dx()*viewport.Dy())
	for i := range zbuf {
		zbuf[i] = math.Inf(1)
	}
	plot := func(cx, cy, size int, depth float64, c color.RGBA) {
		half := size / 2
		for y := cy - half; y < cy-half+size; y++ {
			for x := cx - half; x < cx-half+size; x++ {
				if !image.Pt(x, y).In(viewport) {
					continue
				}
				idx := (y-viewport.Min.Y)*viewport.Dx() + (x - viewport.Min.X)
				if depth >= zbuf[idx] {
					continue
				}
				zbuf[idx] = depth
				img.SetRGBA(x, y, c)
			}
		}
	}

	clouds := append(append([]*pointcloud.PointCloud(nil), scene.Trail...), scene.Cloud)
	for _, pc := range clouds {
		if pc == nil {
			continue
		}
		for _, p := range pc.Points {
			sx, sy, depth, ok := proj.Project(p.Position)
			if !ok {
				continue
			}
			size, c := r.cfg.PointSize, r.pointColor(p)
			if p.HasTag() {
				size, c = r.cfg.HighlightSize, r.highlight
			}
			plot(int(sx), int(sy), size, depth, color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xFF})
		}
	}
}

func (r *Renderer) pointColor(p pointcloud.Point) color.NRGBA {
	if r.cfg.PointColors == PointColorsDepth {
		return rimage.DepthRampColor(p.Position.Norm() / r.maxRange).NRGBA()
	}
	return p.Color
}

// drawFrustum outlines the depth camera's field of view at 1, 3 and 5 meters, with edges
// from the sensor to each corner.
func (r *Renderer) drawFrustum(dc *gg.Context, proj Projector, frame *camera.Frame, viewport image.Rectangle) {
	calib := frame.Calibration
	if calib == nil {
		return
	}
	origin := calib.ExtrinsicD2C.TransformPointToPoint(0, 0, 0)
	dc.Push()
	defer dc.Pop()
	dc.DrawRectangle(float64(viewport.Min.X), float64(viewport.Min.Y), float64(viewport.Dx()), float64(viewport.Dy()))
	dc.Clip()
	dc.SetColor(rimage.FrustumGray.WithAlpha(frustumAlpha))
	dc.SetLineWidth(1)
	line := func(a, b r3.Vector) {
		if ax, ay, bx, by, ok := proj.projectLine(a, b); ok {
			dc.DrawLine(ax, ay, bx, by)
		}
	}
	for d := frustumNear; d <= frustumFar; d += frustumStep {
		rays := calib.DepthCamera.CornerRays(float64(d))
		var corners [4]r3.Vector
		for i, ray := range rays {
			corners[i] = calib.ExtrinsicD2C.TransformPointToPoint(ray.X, ray.Y, ray.Z)
			line(origin, corners[i])
		}
		for i := range corners {
			line(corners[i], corners[(i+1)%len(corners)])
		}
	}
	dc.Stroke()
}

// drawPanels draws the color image, colorized depth and segmentation overlay above the
// viewport, the separators between them and a cursor with a distance label per detection.
func (r *Renderer) drawPanels(dc *gg.Context, layout Layout, scene Scene) {
	frame := scene.Frame
	var dets []objectdetection.Detection
	if scene.Cloud != nil {
		dets = scene.Cloud.Detections
	}
	depthScale := transform.DefaultDepthScale
	if frame.Calibration != nil && frame.Calibration.DepthScale > 0 {
		depthScale = frame.Calibration.DepthScale
	}
	maxDepth := rimage.Depth(math.Min(float64(rimage.MaxDepth), r.maxRange/depthScale))
	images := [3]image.Image{
		frame.Color,
		frame.Depth.ToPrettyPicture(0, maxDepth),
		objectdetection.Overlay(frame.Color, dets, SegmentationColor, overlayWeight),
	}
	var offsets [3]image.Point
	var scales [3]float64
	for i, img := range images {
		slot := layout.Panels[i]
		fitted := rimage.FitInto(img, slot.Dx(), slot.Dy())
		offsets[i] = image.Pt(slot.Min.X+(slot.Dx()-fitted.Rect.Dx())/2, slot.Min.Y+(slot.Dy()-fitted.Rect.Dy())/2)
		if w := img.Bounds().Dx(); w > 0 {
			scales[i] = float64(fitted.Rect.Dx()) / float64(w)
		}
		dc.DrawImage(fitted, offsets[i].X, offsets[i].Y)
	}

	dc.SetColor(rimage.Mask.NRGBA())
	dc.SetLineWidth(separatorWidth)
	panelBottom := float64(layout.Viewport.Min.Y)
	dc.DrawLine(0, panelBottom, float64(r.width), panelBottom)
	dc.DrawLine(float64(layout.Panels[1].Min.X), 0, float64(layout.Panels[1].Min.X), panelBottom)
	dc.DrawLine(float64(layout.Panels[2].Min.X), 0, float64(layout.Panels[2].Min.X), panelBottom)
	dc.Stroke()

	seg, scale := offsets[2], scales[2]
	for i, det := range dets {
		toPanel := func(p image.Point) image.Point {
			return image.Pt(seg.X+int(float64(p.X)*scale), seg.Y+int(float64(p.Y)*scale))
		}
		box := det.BoundingBox()
		rimage.DrawRectangleEmpty(dc, image.Rectangle{toPanel(box.Min), toPanel(box.Max)}, r.highlight, 1)

		center := toPanel(det.Region().Centroid())
		rimage.DrawCursor(dc, center, cursorRadius, rimage.White.NRGBA(), 2)
		label, ok := DistanceLabel(scene.Cloud, i)
		if !ok {
			continue
		}
		dc.SetFontFace(r.labelFace)
		textW, _ := dc.MeasureString(label)
		anchor := image.Pt(center.X+cursorRadius+labelGap, center.Y+labelGap)
		ax := 0.0
		if float64(center.X)+textW > float64(r.width) {
			anchor.X = center.X - cursorRadius - labelGap
			ax = 1
		}
		rimage.DrawString(dc, label, anchor, rimage.White.NRGBA(), r.labelFace, ax, 0.5)
	}
}

// DistanceLabel formats the median depth of the points tagged with detection idx in
// millimeters. ok is false when no point carries that tag.
func DistanceLabel(pc *pointcloud.PointCloud, idx int) (string, bool) {
	if pc == nil {
		return "", false
	}
	depths := pc.DetectionDepths(idx)
	if len(depths) == 0 {
		return "", false
	}
	median, err := stats.Median(depths)
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("%dmm", int(math.Round(median*1000))), true
}

func (r *Renderer) drawStats(dc *gg.Context, viewport image.Rectangle, scene Scene) {
	points, tagged := 0, 0
	var seq uint64
	if scene.Cloud != nil {
		points, tagged, seq = scene.Cloud.Size(), scene.Cloud.MetaData().Tagged, scene.Cloud.Seq
	}
	text := fmt.Sprintf("frame %d  points %d  tagged %d  t=%.1fs", seq, points, tagged, scene.Pose.Elapsed.Seconds())
	rimage.DrawString(dc, text, image.Pt(viewport.Min.X+8, viewport.Max.Y-8), rimage.White.NRGBA(), r.statsFace, 0, 0)
}

// Rendered returns how many scenes were presented.
func (r *Renderer) Rendered() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rendered
}

// Closed reports whether the user closed the display.
func (r *Renderer) Closed() bool {
	return r.display.Closed()
}

// Close releases the display.
func (r *Renderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.display.Close()
}
