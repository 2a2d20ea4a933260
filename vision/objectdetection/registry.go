package objectdetection

import (
	"context"
	"io"
	"sort"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/multierr"

	"go.viam.com/senses/logging"
	"go.viam.com/senses/utils"
)

// DetectorConstructor builds a detector from its decoded attributes. The returned closer
// releases model resources and may be nil.
type DetectorConstructor func(ctx context.Context, attrs utils.AttributeMap, logger logging.Logger) (Detector, io.Closer, error)

// DetectorRegistration describes how to build a detector type.
type DetectorRegistration struct {
	Constructor DetectorConstructor
	// AttributesType is a pointer to the attribute struct, used for the JSON schema.
	AttributesType interface{}
}

var (
	registryMu       sync.RWMutex
	detectorRegistry = map[string]DetectorRegistration{}
)

// RegisterDetector registers a detector type. Registering a name twice panics.
func RegisterDetector(name string, reg DetectorRegistration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, old := detectorRegistry[name]; old {
		panic(errors.Errorf("trying to register two detectors with same type %q", name))
	}
	if reg.Constructor == nil {
		panic(errors.Errorf("cannot register a nil constructor for detector %q", name))
	}
	detectorRegistry[name] = reg
}

// LookupDetector returns the registration for a detector type.
func LookupDetector(name string) (DetectorRegistration, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	reg, ok := detectorRegistry[name]
	return reg, ok
}

// RegisteredDetectorTypes returns the sorted names of all registered detector types.
func RegisteredDetectorTypes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := lo.Keys(detectorRegistry)
	sort.Strings(names)
	return names
}

// AttributeSchemas maps each detector type to the JSON schema of its attributes.
func AttributeSchemas() map[string]*jsonschema.Schema {
	registryMu.RLock()
	defer registryMu.RUnlock()
	schemas := make(map[string]*jsonschema.Schema, len(detectorRegistry))
	for name, reg := range detectorRegistry {
		if reg.AttributesType != nil {
			schemas[name] = jsonschema.Reflect(reg.AttributesType)
		}
	}
	return schemas
}

// newDetectorTypeNotImplemented is used when the detector type is not registered.
func newDetectorTypeNotImplemented(name string) error {
	return utils.NewTypeNotRegisteredError("detector", name, RegisteredDetectorTypes())
}

// NewAdapterFromConfig builds the configured detector type and wraps it in an Adapter.
func NewAdapterFromConfig(ctx context.Context, cfg DetectorConfig, logger logging.Logger) (*Adapter, io.Closer, error) {
	if err := cfg.Validate("detector"); err != nil {
		return nil, nil, err
	}
	reg, ok := LookupDetector(cfg.Type)
	if !ok {
		return nil, nil, newDetectorTypeNotImplemented(cfg.Type)
	}
	det, closer, err := reg.Constructor(ctx, cfg.Attributes, logger)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "cannot build detector of type %q", cfg.Type)
	}
	adapter, err := NewAdapter(det, cfg, logger)
	if err != nil {
		if closer != nil {
			err = multierr.Combine(err, closer.Close())
		}
		return nil, nil, err
	}
	return adapter, closer, nil
}
