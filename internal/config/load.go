package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Load reads the file at path on fs over Default() and validates the
// result. Settings missing from the file keep their defaults.
func Load(fs afero.Fs, path string) (*Config, error) {
	cfg := Default()

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := Decode(cfg, path, data); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode decodes data into cfg, choosing the format from the extension of
// name.
func Decode(cfg *Config, name string, data []byte) error {
	format := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))

	var err error
	switch format {
	case "yaml", "yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(cfg)
	case "toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(cfg)
	case "json", "jsonc":
		dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
		dec.DisallowUnknownFields()
		err = dec.Decode(cfg)
	default:
		return fmt.Errorf("%s: %w %q", name, ErrUnsupportedFormat, format)
	}

	// An empty file leaves the defaults in place.
	if err != nil && !errors.Is(err, io.EOF) {
		return &ParseError{Path: name, Format: format, Err: err}
	}
	return nil
}
