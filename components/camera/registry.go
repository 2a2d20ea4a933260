package camera

import (
	"context"
	"sort"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	goutils "go.viam.com/utils"

	"go.viam.com/senses/logging"
	"go.viam.com/senses/rimage/transform"
	"go.viam.com/senses/utils"
)

// SourceConstructor builds a source from its decoded attributes.
type SourceConstructor func(ctx context.Context, attrs utils.AttributeMap, logger logging.Logger) (Source, error)

// SourceRegistration describes how to build a source type.
type SourceRegistration struct {
	Constructor SourceConstructor
	// AttributesType is a pointer to the attribute struct, used for the JSON schema.
	AttributesType interface{}
}

var (
	registryMu     sync.RWMutex
	sourceRegistry = map[string]SourceRegistration{}
)

// RegisterSource registers a source type. Registering a name twice panics.
func RegisterSource(name string, reg SourceRegistration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, old := sourceRegistry[name]; old {
		panic(errors.Errorf("trying to register two sources with same type %q", name))
	}
	if reg.Constructor == nil {
		panic(errors.Errorf("cannot register a nil constructor for source %q", name))
	}
	sourceRegistry[name] = reg
}

// LookupSource returns the registration for a source type.
func LookupSource(name string) (SourceRegistration, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	reg, ok := sourceRegistry[name]
	return reg, ok
}

// RegisteredSourceTypes returns the sorted names of all registered source types.
func RegisteredSourceTypes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := lo.Keys(sourceRegistry)
	sort.Strings(names)
	return names
}

// AttributeSchemas maps each source type to the JSON schema of its attributes.
func AttributeSchemas() map[string]*jsonschema.Schema {
	registryMu.RLock()
	defer registryMu.RUnlock()
	schemas := make(map[string]*jsonschema.Schema, len(sourceRegistry))
	for name, reg := range sourceRegistry {
		if reg.AttributesType != nil {
			schemas[name] = jsonschema.Reflect(reg.AttributesType)
		}
	}
	return schemas
}

// SourceConfig selects a registered source type.
type SourceConfig struct {
	Type string `json:"type"`
	// CalibrationPath is a camera system JSON file used when the device reports no calibration.
	CalibrationPath string             `json:"calibration_path,omitempty"`
	Attributes      utils.AttributeMap `json:"attributes,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (cfg *SourceConfig) Validate(path string) error {
	if cfg.Type == "" {
		return goutils.NewConfigValidationFieldRequiredError(path, "type")
	}
	return nil
}

// LoadCalibration reads the configured calibration file, returning nil when none is set.
func (cfg *SourceConfig) LoadCalibration() (*transform.DepthColorIntrinsicsExtrinsics, error) {
	if cfg.CalibrationPath == "" {
		return nil, nil
	}
	calib, err := transform.NewDepthColorIntrinsicsExtrinsicsFromJSONFile(cfg.CalibrationPath)
	if err != nil {
		return nil, err
	}
	if err := calib.CheckValid(); err != nil {
		return nil, errors.Wrapf(err, "calibration %q", cfg.CalibrationPath)
	}
	return calib, nil
}

// NewSourceFromConfig builds the configured source type. A source that cannot be opened is
// reported as ErrSourceUnavailable.
func NewSourceFromConfig(ctx context.Context, cfg SourceConfig, logger logging.Logger) (Source, error) {
	if err := cfg.Validate("source"); err != nil {
		return nil, err
	}
	reg, ok := LookupSource(cfg.Type)
	if !ok {
		return nil, utils.NewTypeNotRegisteredError("source", cfg.Type, RegisteredSourceTypes())
	}
	src, err := reg.Constructor(ctx, cfg.Attributes, logger)
	if err != nil {
		return nil, NewSourceUnavailableError(errors.Wrapf(err, "cannot open source of type %q", cfg.Type))
	}
	return src, nil
}
