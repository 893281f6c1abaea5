package config

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"sort"

	"github.com/a8m/envsubst"
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"

	"github.com/sodistec/sodistec/logging"
)

// Read reads a config from the given file, expanding environment variables first.
func Read(
	ctx context.Context,
	filePath string,
	logger logging.Logger,
) (*Config, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, NewConfigError(filePath, err)
	}

	return FromReader(ctx, filePath, bytes.NewReader(buf), logger)
}

// FromReader reads a config from the given reader and specifies
// where, if applicable, the file the reader originated from.
func FromReader(
	ctx context.Context,
	originalPath string,
	r io.Reader,
	logger logging.Logger,
) (*Config, error) {
	var raw map[string]interface{}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, NewConfigError(originalPath, errors.Wrap(err, "cannot parse config"))
	}

	cfg := NewDefault()
	unused, err := decode(raw, cfg)
	if err != nil {
		return nil, NewConfigError(originalPath, err)
	}
	if len(unused) > 0 {
		logger.Warnw("ignoring unknown config fields", "path", originalPath, "fields", unused)
	}
	cfg.ConfigFilePath = originalPath
	cfg.ApplyDefaults()

	if err := cfg.Ensure(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decode copies a generic JSON value into the typed result, leaving fields that are absent from
// the input untouched. It returns the input keys nothing was decoded into.
func decode(input, result interface{}) ([]string, error) {
	var md mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:    "json",
		Result:     result,
		Metadata:   &md,
		DecodeHook: mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(input); err != nil {
		return nil, err
	}
	sort.Strings(md.Unused)
	return md.Unused, nil
}
