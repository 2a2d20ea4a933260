package cvnet

import (
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"

	"go.viam.com/senses/vision/objectdetection"
	"go.viam.com/senses/vision/objectdetection/yolo"
)

func TestConfigValidate(t *testing.T) {
	cfg := &Config{}
	err := cfg.Validate("detector.attributes")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "model_path")

	cfg = &Config{ModelPath: "yolov8n-seg.onnx", OutputNames: []string{"only"}}
	test.That(t, cfg.Validate("detector.attributes"), test.ShouldNotBeNil)

	bad := yolo.COCOParams()
	bad.NMSThreshold = 2
	cfg = &Config{ModelPath: "yolov8n-seg.onnx", Params: &bad}
	test.That(t, cfg.Validate("detector.attributes"), test.ShouldNotBeNil)

	cfg = &Config{ModelPath: "yolov8n-seg.onnx"}
	test.That(t, cfg.Validate("detector.attributes"), test.ShouldBeNil)
}

func TestRegistered(t *testing.T) {
	_, ok := objectdetection.LookupDetector(DetectorType)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, objectdetection.AttributeSchemas(), test.ShouldContainKey, DetectorType)
}

func TestReadLabels(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "labels.txt")
	test.That(t, os.WriteFile(path, []byte("person\n\n  dog \ncat\n"), 0o600), test.ShouldBeNil)
	labels, err := ReadLabels(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, labels, test.ShouldResemble, []string{"person", "dog", "cat"})

	empty := filepath.Join(dir, "empty.txt")
	test.That(t, os.WriteFile(empty, []byte("\n"), 0o600), test.ShouldBeNil)
	_, err = ReadLabels(empty)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = ReadLabels(filepath.Join(dir, "missing.txt"))
	test.That(t, err, test.ShouldNotBeNil)
}
