package yolo

import (
	"image"
	"math"
	"sort"

	"github.com/pkg/errors"

	"go.viam.com/senses/utils"
	"go.viam.com/senses/vision/objectdetection"
)

// box is a candidate in model input coordinates.
type box struct {
	x1, y1, x2, y2 float64
	score          float64
	class          int
	coeffs         []float32
}

// Decode turns the two YOLOv8-seg outputs into detections in source image coordinates.
//
// output is the [4+classes+protoChannels, anchors] prediction tensor, channel major.
// protos is the [protoChannels, protoHeight, protoWidth] mask prototype tensor.
func Decode(output []float32, anchors int, protos []float32, labels []string, params Params, lb Letterbox,
) ([]objectdetection.Detection, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if anchors <= 0 || len(output)%anchors != 0 {
		return nil, errors.Errorf("output of %d values is not a multiple of %d anchors", len(output), anchors)
	}
	channels := len(output) / anchors
	numClasses := channels - 4 - params.ProtoChannels
	if numClasses <= 0 {
		return nil, errors.Errorf("output has %d channels, too few for %d mask coefficients", channels, params.ProtoChannels)
	}
	protoSize := params.ProtoChannels * params.ProtoWidth * params.ProtoHeight
	if len(protos) != protoSize {
		return nil, errors.Errorf("prototype tensor has %d values, expected %d", len(protos), protoSize)
	}

	candidates := decodeBoxes(output, anchors, numClasses, params)
	kept := nms(candidates, params.NMSThreshold)
	if params.MaxDetections > 0 && len(kept) > params.MaxDetections {
		kept = kept[:params.MaxDetections]
	}

	dets := make([]objectdetection.Detection, 0, len(kept))
	for _, b := range kept {
		label := ""
		if b.class < len(labels) {
			label = labels[b.class]
		}
		mask := buildMask(b, protos, params, lb)
		if mask.Area() == 0 {
			continue
		}
		dets = append(dets, objectdetection.NewDetection(mask, b.score, label))
	}
	return dets, nil
}

func decodeBoxes(output []float32, anchors, numClasses int, params Params) []box {
	at := func(channel, anchor int) float32 {
		return output[channel*anchors+anchor]
	}
	var candidates []box
	for a := 0; a < anchors; a++ {
		bestClass, bestScore := -1, float32(0)
		for c := 0; c < numClasses; c++ {
			if s := at(4+c, a); s > bestScore {
				bestClass, bestScore = c, s
			}
		}
		if bestClass < 0 || float64(bestScore) < params.BoxThreshold {
			continue
		}
		cx, cy, w, h := float64(at(0, a)), float64(at(1, a)), float64(at(2, a)), float64(at(3, a))
		coeffs := make([]float32, params.ProtoChannels)
		for k := range coeffs {
			coeffs[k] = at(4+numClasses+k, a)
		}
		candidates = append(candidates, box{
			x1: cx - w/2, y1: cy - h/2, x2: cx + w/2, y2: cy + h/2,
			score:  float64(bestScore),
			class:  bestClass,
			coeffs: coeffs,
		})
	}
	return candidates
}

// nms keeps, per class, the highest scoring boxes that overlap no stronger box by more than
// threshold. The result is ordered by score.
func nms(candidates []box, threshold float64) []box {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	suppressed := make([]bool, len(candidates))
	var kept []box
	for i := range candidates {
		if suppressed[i] {
			continue
		}
		kept = append(kept, candidates[i])
		for j := i + 1; j < len(candidates); j++ {
			if suppressed[j] || candidates[j].class != candidates[i].class {
				continue
			}
			if iou(candidates[i], candidates[j]) > threshold {
				suppressed[j] = true
			}
		}
	}
	return kept
}

func iou(a, b box) float64 {
	w := math.Max(0, math.Min(a.x2, b.x2)-math.Max(a.x1, b.x1))
	h := math.Max(0, math.Min(a.y2, b.y2)-math.Max(a.y1, b.y1))
	inter := w * h
	union := (a.x2-a.x1)*(a.y2-a.y1) + (b.x2-b.x1)*(b.y2-b.y1) - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// buildMask evaluates sigmoid(coeffs . protos) for every source pixel inside the box, sampling
// the prototype at the pixel's position in model input space.
func buildMask(b box, protos []float32, params Params, lb Letterbox) *objectdetection.MaskRegion {
	sx1, sy1 := lb.ToSource(b.x1, b.y1)
	sx2, sy2 := lb.ToSource(b.x2, b.y2)
	rect := image.Rect(
		utils.ClampInt(int(math.Floor(sx1)), 0, lb.SrcWidth),
		utils.ClampInt(int(math.Floor(sy1)), 0, lb.SrcHeight),
		utils.ClampInt(int(math.Ceil(sx2)), 0, lb.SrcWidth),
		utils.ClampInt(int(math.Ceil(sy2)), 0, lb.SrcHeight),
	)
	mask := objectdetection.NewMaskRegion(rect)

	plane := params.ProtoWidth * params.ProtoHeight
	scaleX := float64(params.ProtoWidth) / float64(params.InputWidth)
	scaleY := float64(params.ProtoHeight) / float64(params.InputHeight)
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			ix, iy := lb.ToInput(float64(x)+0.5, float64(y)+0.5)
			px := utils.ClampInt(int(ix*scaleX), 0, params.ProtoWidth-1)
			py := utils.ClampInt(int(iy*scaleY), 0, params.ProtoHeight-1)
			offset := py*params.ProtoWidth + px
			sum := 0.0
			for k, c := range b.coeffs {
				sum += float64(c) * float64(protos[k*plane+offset])
			}
			if sigmoid(sum) > params.MaskThreshold {
				mask.Set(x, y)
			}
		}
	}
	return mask
}
