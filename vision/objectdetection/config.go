package objectdetection

import (
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"go.viam.com/senses/utils"
)

// DefaultConfidenceThreshold is the minimum confidence kept when none is configured.
const DefaultConfidenceThreshold = 0.5

// DetectorConfig selects a registered detector type and how its output is filtered.
type DetectorConfig struct {
	Type                string             `json:"type"`
	ConfidenceThreshold float64            `json:"confidence_threshold"`
	IncludeLabels       []string           `json:"include_labels,omitempty"`
	// MinArea drops detections whose box covers fewer pixels.
	MinArea             int                `json:"min_area_px,omitempty"`
	Attributes          utils.AttributeMap `json:"attributes,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (cfg *DetectorConfig) Validate(path string) error {
	if cfg.Type == "" {
		return goutils.NewConfigValidationFieldRequiredError(path, "type")
	}
	if cfg.ConfidenceThreshold < 0 || cfg.ConfidenceThreshold > 1 {
		return goutils.NewConfigValidationError(path,
			errors.Errorf("confidence_threshold must be between 0.0 and 1.0, got %v", cfg.ConfidenceThreshold))
	}
	if cfg.MinArea < 0 {
		return goutils.NewConfigValidationError(path, errors.Errorf("min_area_px cannot be negative, got %d", cfg.MinArea))
	}
	return nil
}
