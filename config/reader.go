package config

import (
	"bytes"
	"io"

	"github.com/a8m/envsubst"
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"github.com/yosuke-furukawa/json5/encoding/json5"
)

// Read reads the config file at path over the defaults. ${VAR} references in the file are
// replaced by environment variables. An empty path returns the defaults.
func Read(path string) (*Config, error) {
	if path == "" {
		cfg := Default()
		return cfg, cfg.Validate()
	}
	buf, err := envsubst.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read config %q", path)
	}
	cfg, err := FromReader(bytes.NewReader(buf))
	if err != nil {
		return nil, errors.Wrapf(err, "config %q", path)
	}
	return cfg, nil
}

// FromReader decodes a JSON5 config over the defaults and validates it, so comments and
// trailing commas are allowed. Sections and keys absent from the file keep their default values;
// lists and attribute maps that are present replace the defaults entirely. Durations are
// strings such as "2s".
func FromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "cannot read config")
	}
	var raw map[string]interface{}
	if err := json5.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "failed to decode config from json")
	}
	cfg := Default()
	// another type's attributes never mix with the default type's
	if sectionHasKey(raw, "source", "type") {
		cfg.Source.Attributes = nil
	}
	if sectionHasKey(raw, "detector", "type") {
		cfg.Detector.Attributes = nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           cfg,
		ErrorUnused:      true,
		ZeroFields:       true,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func sectionHasKey(raw map[string]interface{}, section, key string) bool {
	m, ok := raw[section].(map[string]interface{})
	if !ok {
		return false
	}
	_, ok = m[key]
	return ok
}
