// Package yolo decodes the raw output tensors of a YOLOv8 instance segmentation model into
// detections with pixel masks.
package yolo

import (
	"github.com/pkg/errors"
)

// Params defines the struct containing the YOLOv8-seg parameters to use for post processing.
type Params struct {
	// InputWidth and InputHeight are the model's input tensor size.
	InputWidth  int `json:"input_width_px"`
	InputHeight int `json:"input_height_px"`
	// BoxThreshold is the minimum class probability for a candidate box.
	BoxThreshold float64 `json:"box_threshold"`
	// NMSThreshold is the IoU above which the weaker of two same-class boxes is dropped.
	NMSThreshold float64 `json:"nms_threshold"`
	// MaskThreshold is the minimum sigmoid activation for a pixel to belong to a mask.
	MaskThreshold float64 `json:"mask_threshold"`
	// MaxDetections caps the number of boxes kept after NMS.
	MaxDetections int `json:"max_detections"`
	// ProtoChannels, ProtoWidth and ProtoHeight describe the mask prototype tensor.
	ProtoChannels int `json:"proto_channels"`
	ProtoWidth    int `json:"proto_width"`
	ProtoHeight   int `json:"proto_height"`
}

// COCOParams returns the parameters of the stock COCO trained YOLOv8-seg export:
// - 640x640 input
// - Box Threshold: 0.25
// - NMS Threshold: 0.45
// - 32 mask prototypes of 160x160.
func COCOParams() Params {
	return Params{
		InputWidth:    640,
		InputHeight:   640,
		BoxThreshold:  0.25,
		NMSThreshold:  0.45,
		MaskThreshold: 0.5,
		MaxDetections: 100,
		ProtoChannels: 32,
		ProtoWidth:    160,
		ProtoHeight:   160,
	}
}

// Validate checks the parameters are usable.
func (p Params) Validate() error {
	if p.InputWidth <= 0 || p.InputHeight <= 0 {
		return errors.Errorf("input size must be positive, got %dx%d", p.InputWidth, p.InputHeight)
	}
	if p.ProtoChannels <= 0 || p.ProtoWidth <= 0 || p.ProtoHeight <= 0 {
		return errors.Errorf("prototype shape must be positive, got %dx%dx%d", p.ProtoChannels, p.ProtoHeight, p.ProtoWidth)
	}
	if p.BoxThreshold < 0 || p.BoxThreshold > 1 || p.NMSThreshold < 0 || p.NMSThreshold > 1 {
		return errors.New("box and nms thresholds must be between 0.0 and 1.0")
	}
	return nil
}

// COCOLabels are the 80 class names of the COCO dataset in model output order.
var COCOLabels = []string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat", "dog",
	"horse", "sheep", "cow", "elephant", "bear", "zebra", "giraffe", "backpack", "umbrella",
	"handbag", "tie", "suitcase", "frisbee", "skis", "snowboard", "sports ball", "kite",
	"baseball bat", "baseball glove", "skateboard", "surfboard", "tennis racket", "bottle",
	"wine glass", "cup", "fork", "knife", "spoon", "bowl", "banana", "apple", "sandwich", "orange",
	"broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair", "couch", "potted plant",
	"bed", "dining table", "toilet", "tv", "laptop", "mouse", "remote", "keyboard", "cell phone",
	"microwave", "oven", "toaster", "sink", "refrigerator", "book", "clock", "vase", "scissors",
	"teddy bear", "hair drier", "toothbrush",
}
