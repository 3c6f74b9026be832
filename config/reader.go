package config

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"reflect"
	"time"

	"github.com/a8m/envsubst"
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"github.com/spf13/cast"

	"go.viam.com/gridnav/logging"
)

// Read reads a config from the given file. Environment variables in the file are expanded.
func Read(ctx context.Context, filePath string, logger logging.Logger) (*Config, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	return FromReader(ctx, filePath, bytes.NewReader(buf), logger)
}

// FromReader reads a config from the given reader and specifies
// where, if applicable, the file the reader originated from.
func FromReader(ctx context.Context, originalPath string, r io.Reader, logger logging.Logger) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var sections map[string]interface{}
	if err := json.NewDecoder(r).Decode(&sections); err != nil {
		return nil, errors.Wrapf(err, "failed to decode Config from json")
	}

	cfg := Default()
	if err := DecodeAttributes(sections, cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to process Config")
	}
	cfg.ConfigFilePath = originalPath

	if err := cfg.Ensure(); err != nil {
		return nil, err
	}
	logger.CDebugw(ctx, "read config", "path", originalPath, "map", cfg.MapPath())
	return cfg, nil
}

// DecodeAttributes decodes a generic attribute map into the struct pointed to by to. Keys follow
// json tags, embedded structs are flattened, and unknown keys are an error. Fields absent from
// attrs keep their current values.
func DecodeAttributes(attrs map[string]interface{}, to interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:     "json",
		Squash:      true,
		ErrorUnused: true,
		DecodeHook:  mapstructure.ComposeDecodeHookFunc(durationHook),
		Result:      to,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(attrs)
}

var durationType = reflect.TypeOf(time.Duration(0))

// durationHook accepts Go duration strings ("250ms") or plain numbers of seconds.
func durationHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if to != durationType {
		return data, nil
	}
	if from.Kind() == reflect.String {
		return cast.ToDurationE(data)
	}
	seconds, err := cast.ToFloat64E(data)
	if err != nil {
		return nil, errors.Wrap(err, "invalid duration")
	}
	return time.Duration(seconds * float64(time.Second)), nil
}
