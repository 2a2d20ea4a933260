package yolo

// Letterbox holds the scale and padding used to fit a source image into the model input
// while keeping its aspect ratio.
type Letterbox struct {
	SrcWidth, SrcHeight int
	DstWidth, DstHeight int
	// ResizeWidth and ResizeHeight are the size of the scaled image inside the padding.
	ResizeWidth, ResizeHeight int
	XPad, YPad                int
	Scale                     float64
}

// NewLetterbox precalculates the scaling from a src sized image to a dst sized input.
func NewLetterbox(srcWidth, srcHeight, dstWidth, dstHeight int) Letterbox {
	lb := Letterbox{
		SrcWidth:     srcWidth,
		SrcHeight:    srcHeight,
		DstWidth:     dstWidth,
		DstHeight:    dstHeight,
		ResizeWidth:  dstWidth,
		ResizeHeight: dstHeight,
	}
	scaleW := float64(dstWidth) / float64(srcWidth)
	scaleH := float64(dstHeight) / float64(srcHeight)
	lb.Scale = scaleH
	if scaleW < scaleH {
		lb.Scale = scaleW
		lb.ResizeHeight = int(float64(srcHeight) * lb.Scale)
	} else {
		lb.ResizeWidth = int(float64(srcWidth) * lb.Scale)
	}
	lb.YPad = (dstHeight - lb.ResizeHeight) / 2
	lb.XPad = (dstWidth - lb.ResizeWidth) / 2
	return lb
}

// ToSource maps model input coordinates back to the source image.
func (lb Letterbox) ToSource(x, y float64) (float64, float64) {
	return (x - float64(lb.XPad)) / lb.Scale, (y - float64(lb.YPad)) / lb.Scale
}

// ToInput maps source image coordinates into the model input.
func (lb Letterbox) ToInput(x, y float64) (float64, float64) {
	return x*lb.Scale + float64(lb.XPad), y*lb.Scale + float64(lb.YPad)
}
