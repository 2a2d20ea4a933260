// Package config defines the file that configures the flyby pipeline and how it is read.
package config

import (
	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"go.viam.com/senses/components/camera"
	"go.viam.com/senses/components/camera/fake"
	"go.viam.com/senses/flyby"
	"go.viam.com/senses/logging"
	"go.viam.com/senses/pipeline"
	"go.viam.com/senses/pointcloud"
	"go.viam.com/senses/rimage"
	"go.viam.com/senses/utils"
	"go.viam.com/senses/visualizer"
	"go.viam.com/senses/vision/objectdetection"
)

// DefaultLabels are the only labels kept unless configured otherwise.
var DefaultLabels = []string{"person"}

// Config is the whole pipeline configuration.
type Config struct {
	Source   camera.SourceConfig            `json:"source"`
	Detector objectdetection.DetectorConfig `json:"detector"`
	Cloud    pointcloud.BuilderConfig       `json:"cloud"`
	Flyby    flyby.Config                   `json:"flyby"`
	Display  visualizer.Config              `json:"display"`
	Loop     pipeline.Config                `json:"loop"`
	LogLevel string                         `json:"log_level,omitempty"`
	// LogFile additionally writes logs to a rotated file when set.
	LogFile      string `json:"log_file,omitempty"`
	LogFileMaxMB int    `json:"log_file_max_mb,omitempty"`
}

// Default returns the configuration used when no file is given: the synthetic camera with a
// color detector looking for the figure walking through it.
func Default() *Config {
	return &Config{
		Source: camera.SourceConfig{Type: fake.SourceType},
		Detector: objectdetection.DetectorConfig{
			Type:                objectdetection.ColorDetectorType,
			ConfidenceThreshold: objectdetection.DefaultConfidenceThreshold,
			IncludeLabels:       append([]string(nil), DefaultLabels...),
			Attributes: utils.AttributeMap{
				"detect_color":      rimage.NewColorFromColor(fake.PersonColor).Hex(),
				"hue_tolerance_pct": 0.05,
				"segment_size_px":   100,
				"label":             "person",
			},
		},
		Cloud:    pointcloud.DefaultBuilderConfig(),
		Flyby:    flyby.DefaultConfig(),
		Display:  visualizer.DefaultConfig(),
		Loop:     pipeline.DefaultConfig(),
		LogLevel: "info",
	}
}

// Validate ensures all parts of the config are valid.
func (c *Config) Validate() error {
	if err := c.Source.Validate("source"); err != nil {
		return err
	}
	if err := c.Detector.Validate("detector"); err != nil {
		return err
	}
	if err := c.Cloud.Validate("cloud"); err != nil {
		return err
	}
	if err := c.Flyby.Validate("flyby"); err != nil {
		return err
	}
	if err := c.Display.Validate("display"); err != nil {
		return err
	}
	if err := c.Loop.Validate("loop"); err != nil {
		return err
	}
	if c.LogLevel != "" {
		if _, err := logging.LevelFromString(c.LogLevel); err != nil {
			return goutils.NewConfigValidationError("log_level", err)
		}
	}
	if c.LogFileMaxMB < 0 {
		return goutils.NewConfigValidationError("log_file_max_mb", errors.New("cannot be negative"))
	}
	if _, ok := camera.LookupSource(c.Source.Type); !ok {
		return goutils.NewConfigValidationError("source",
			utils.NewTypeNotRegisteredError("source", c.Source.Type, camera.RegisteredSourceTypes()))
	}
	if _, ok := objectdetection.LookupDetector(c.Detector.Type); !ok {
		return goutils.NewConfigValidationError("detector",
			utils.NewTypeNotRegisteredError("detector", c.Detector.Type, objectdetection.RegisteredDetectorTypes()))
	}
	return nil
}

// Level returns the configured log level, INFO when unset.
func (c *Config) Level() logging.Level {
	level, err := logging.LevelFromString(c.LogLevel)
	if err != nil {
		return logging.INFO
	}
	return level
}

// Schema describes the configuration file and the attributes of every registered source and
// detector type.
type Schema struct {
	Config    *jsonschema.Schema            `json:"config"`
	Sources   map[string]*jsonschema.Schema `json:"sources"`
	Detectors map[string]*jsonschema.Schema `json:"detectors"`
}

// NewSchema reflects the configuration types.
func NewSchema() *Schema {
	return &Schema{
		Config:    jsonschema.Reflect(&Config{}),
		Sources:   camera.AttributeSchemas(),
		Detectors: objectdetection.AttributeSchemas(),
	}
}

// OverrideConfidenceThreshold replaces the minimum confidence of kept detections.
func (c *Config) OverrideConfidenceThreshold(threshold float64) error {
	if threshold < 0 || threshold > 1 {
		return errors.Errorf("confidence threshold must be between 0.0 and 1.0, got %v", threshold)
	}
	c.Detector.ConfidenceThreshold = threshold
	return nil
}

// OverrideMaxRange replaces the farthest distance a point may have.
func (c *Config) OverrideMaxRange(maxRange float64) error {
	if maxRange <= c.Cloud.MinRange {
		return errors.Errorf("max range must be greater than the minimum range %vm, got %vm", c.Cloud.MinRange, maxRange)
	}
	c.Cloud.MaxRange = maxRange
	return nil
}
