package config

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/a8m/envsubst"
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
)

// Read reads a config from the given file, substituting environment variables first. Options
// missing from the file keep their defaults.
func Read(filePath string) (*Config, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read config %q", filePath)
	}
	return FromReader(filePath, bytes.NewReader(buf))
}

// FromReader reads a config from the given reader and specifies where, if applicable, the file
// the reader originated from.
func FromReader(originalPath string, r io.Reader) (*Config, error) {
	var attributes map[string]interface{}
	if err := json.NewDecoder(r).Decode(&attributes); err != nil {
		return nil, errors.Wrapf(err, "cannot parse config %q", originalPath)
	}

	cfg := Default()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:     "json",
		Result:      cfg,
		ErrorUnused: true,
		DecodeHook:  mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(attributes); err != nil {
		return nil, errors.Wrapf(err, "cannot decode config %q", originalPath)
	}

	if err := cfg.Validate("config"); err != nil {
		return nil, err
	}
	return cfg, nil
}
