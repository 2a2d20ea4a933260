// Package cvnet runs a YOLOv8-seg ONNX export through the OpenCV DNN module and registers it
// as the "yolov8_seg" detector type.
package cvnet

import (
	"bufio"
	"context"
	"image"
	"image/color"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"
	"gocv.io/x/gocv"

	"go.viam.com/senses/logging"
	"go.viam.com/senses/utils"
	"go.viam.com/senses/vision/objectdetection"
	"go.viam.com/senses/vision/objectdetection/yolo"
)

// DetectorType is the registered name of the YOLOv8-seg detector.
const DetectorType = "yolov8_seg"

var (
	defaultOutputNames = []string{"output0", "output1"}
	padColor           = color.RGBA{R: 114, G: 114, B: 114, A: 255}
)

func init() {
	objectdetection.RegisterDetector(DetectorType, objectdetection.DetectorRegistration{
		Constructor: func(ctx context.Context, attrs utils.AttributeMap, logger logging.Logger) (
			objectdetection.Detector, io.Closer, error,
		) {
			conf, err := utils.TransformAttributeMap[*Config](attrs)
			if err != nil {
				return nil, nil, err
			}
			runner, err := NewRunner(conf, logger)
			if err != nil {
				return nil, nil, err
			}
			return runner.Detect, runner, nil
		},
		AttributesType: &Config{},
	})
}

// Config is the set of attributes of a yolov8_seg detector.
type Config struct {
	ModelPath  string `json:"model_path"`
	LabelsPath string `json:"labels_path,omitempty"`
	// Backend and Target are OpenCV DNN backend and target ids. Zero selects the defaults.
	Backend     int          `json:"backend,omitempty"`
	Target      int          `json:"target,omitempty"`
	OutputNames []string     `json:"output_names,omitempty"`
	Params      *yolo.Params `json:"params,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if cfg.ModelPath == "" {
		return goutils.NewConfigValidationFieldRequiredError(path, "model_path")
	}
	if len(cfg.OutputNames) != 0 && len(cfg.OutputNames) != 2 {
		return goutils.NewConfigValidationError(path,
			errors.Errorf("output_names must name the prediction and prototype outputs, got %v", cfg.OutputNames))
	}
	if cfg.Params != nil {
		if err := cfg.Params.Validate(); err != nil {
			return goutils.NewConfigValidationError(path, err)
		}
	}
	return nil
}

// Runner holds a loaded network. A gocv.Net is not safe for concurrent use so inference is
// serialized.
type Runner struct {
	mu          sync.Mutex
	net         gocv.Net
	labels      []string
	params      yolo.Params
	outputNames []string
	logger      logging.Logger
}

// NewRunner loads the model and labels described by cfg.
func NewRunner(cfg *Config, logger logging.Logger) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New("yolov8_seg config cannot be nil")
	}
	if err := cfg.Validate("attributes"); err != nil {
		return nil, err
	}
	labels := yolo.COCOLabels
	if cfg.LabelsPath != "" {
		var err error
		if labels, err = ReadLabels(cfg.LabelsPath); err != nil {
			return nil, err
		}
	}
	params := yolo.COCOParams()
	if cfg.Params != nil {
		params = *cfg.Params
	}
	outputNames := defaultOutputNames
	if len(cfg.OutputNames) != 0 {
		outputNames = cfg.OutputNames
	}

	net := gocv.ReadNet(cfg.ModelPath, "")
	if net.Empty() {
		return nil, errors.Errorf("unable to load model %q", cfg.ModelPath)
	}
	if err := net.SetPreferableBackend(gocv.NetBackendType(cfg.Backend)); err != nil {
		return nil, multiCloseErr(errors.Wrap(err, "cannot set backend"), &net)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetType(cfg.Target)); err != nil {
		return nil, multiCloseErr(errors.Wrap(err, "cannot set target"), &net)
	}
	logger.Infow("loaded model", "path", cfg.ModelPath, "labels", len(labels), "input", image.Pt(params.InputWidth, params.InputHeight))
	return &Runner{
		net:         net,
		labels:      labels,
		params:      params,
		outputNames: outputNames,
		logger:      logger,
	}, nil
}

func multiCloseErr(err error, net *gocv.Net) error {
	if cerr := net.Close(); cerr != nil {
		return errors.Wrapf(err, "also failed to close net: %v", cerr)
	}
	return err
}

// Detect letterboxes img to the model input, runs the network and decodes its outputs.
func (r *Runner) Detect(ctx context.Context, img image.Image) ([]objectdetection.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, errors.Wrap(err, "cannot convert image to mat")
	}
	defer src.Close()

	bounds := img.Bounds()
	lb := yolo.NewLetterbox(bounds.Dx(), bounds.Dy(), r.params.InputWidth, r.params.InputHeight)
	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(src, &resized, image.Pt(lb.ResizeWidth, lb.ResizeHeight), 0, 0, gocv.InterpolationArea)
	input := gocv.NewMat()
	defer input.Close()
	gocv.CopyMakeBorder(resized, &input, lb.YPad, lb.DstHeight-lb.ResizeHeight-lb.YPad,
		lb.XPad, lb.DstWidth-lb.ResizeWidth-lb.XPad, gocv.BorderConstant, padColor)

	// ImageToMatRGB produces BGR ordered channels, the model expects RGB
	blob := gocv.BlobFromImage(input, 1.0/255.0, image.Pt(lb.DstWidth, lb.DstHeight), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	r.mu.Lock()
	r.net.SetInput(blob, "")
	outs := r.net.ForwardLayers(r.outputNames)
	r.mu.Unlock()
	defer func() {
		for _, m := range outs {
			m.Close()
		}
	}()
	if len(outs) != 2 {
		return nil, errors.Errorf("expected 2 model outputs, got %d", len(outs))
	}

	preds, err := outs[0].DataPtrFloat32()
	if err != nil {
		return nil, errors.Wrap(err, "cannot read prediction output")
	}
	protos, err := outs[1].DataPtrFloat32()
	if err != nil {
		return nil, errors.Wrap(err, "cannot read prototype output")
	}
	shape := outs[0].Size()
	if len(shape) == 0 {
		return nil, errors.New("prediction output has no shape")
	}
	anchors := shape[len(shape)-1]
	return yolo.Decode(preds, anchors, protos, r.labels, r.params, lb)
}

// Close releases the network.
func (r *Runner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.net.Close()
}

// ReadLabels reads one label per line, skipping blank lines.
func ReadLabels(path string) ([]string, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "cannot open labels file")
	}
	defer goutils.UncheckedErrorFunc(f.Close)
	var labels []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			labels = append(labels, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "cannot read labels file")
	}
	if len(labels) == 0 {
		return nil, errors.Errorf("labels file %q is empty", path)
	}
	return labels, nil
}
