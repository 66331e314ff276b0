package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

// Errors for scenario files.
var (
	// ErrInvalidScenario is returned for a scenario that fails validation.
	ErrInvalidScenario = errors.New("invalid scenario")

	// ErrUnsupportedFormat is returned for an unknown file extension.
	ErrUnsupportedFormat = errors.New("unsupported scenario format")
)

// File is a decoded scenario.
type File struct {
	Name      string         `yaml:"name" toml:"name"`
	Models    []ModelSpec    `yaml:"models" toml:"models"`
	Observers []ObserverSpec `yaml:"observers" toml:"observers"`
	Steps     []Step         `yaml:"steps" toml:"steps"`
}

// ModelSpec declares a model. Without a script the model is an empty table.
type ModelSpec struct {
	ID     string `yaml:"id" toml:"id"`
	Script string `yaml:"script" toml:"script"`
}

// ObserverSpec attaches every script matching a glob to a model.
type ObserverSpec struct {
	Name    string `yaml:"name" toml:"name"`
	Model   string `yaml:"model" toml:"model"`
	Scripts string `yaml:"scripts" toml:"scripts"`
	Prefix  string `yaml:"prefix" toml:"prefix"`
}

// Step is one scenario action. Exactly one of Publish, Broadcast, Dispose
// and Unregister is set.
type Step struct {
	Publish    string `yaml:"publish" toml:"publish"`
	Broadcast  string `yaml:"broadcast" toml:"broadcast"`
	Dispose    string `yaml:"dispose" toml:"dispose"`
	Unregister string `yaml:"unregister" toml:"unregister"`

	Model       string `yaml:"model" toml:"model"`
	Payload     any    `yaml:"payload" toml:"payload"`
	PayloadJSON string `yaml:"payload_json" toml:"payload_json"`
}

// Kind returns the name of the step's action.
func (s Step) Kind() string {
	switch {
	case s.Publish != "":
		return "publish"
	case s.Broadcast != "":
		return "broadcast"
	case s.Dispose != "":
		return "dispose"
	case s.Unregister != "":
		return "unregister"
	default:
		return ""
	}
}

// Value decodes the step payload. payload_json takes precedence over
// payload.
func (s Step) Value() (any, error) {
	if s.PayloadJSON == "" {
		return s.Payload, nil
	}
	if !gjson.Valid(s.PayloadJSON) {
		return nil, fmt.Errorf("%w: payload_json is not valid JSON", ErrInvalidScenario)
	}
	return gjson.Parse(s.PayloadJSON).Value(), nil
}

// LoadFile reads and validates the scenario at path on fs.
func LoadFile(fs afero.Fs, path string) (*File, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario %s: %w", path, err)
	}
	f, err := Decode(path, data)
	if err != nil {
		return nil, err
	}
	if f.Name == "" {
		f.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return f, nil
}

// Decode decodes and validates scenario data, choosing the format from
// the extension of name.
func Decode(name string, data []byte) (*File, error) {
	var f File
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", name, err)
		}
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&f); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", name, err)
		}
	default:
		return nil, fmt.Errorf("%s: %w %q", name, ErrUnsupportedFormat, ext)
	}

	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks references between models, observers and steps.
func (f *File) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidScenario}, args...)...))
	}

	models := make(map[string]bool)
	for i, m := range f.Models {
		switch {
		case m.ID == "":
			invalid("model %d has no id", i)
		case models[m.ID]:
			invalid("model %s declared twice", m.ID)
		}
		models[m.ID] = true
	}

	observers := make(map[string]bool)
	for i, o := range f.Observers {
		if o.Name == "" {
			invalid("observer %d has no name", i)
		} else if observers[o.Name] {
			invalid("observer %s declared twice", o.Name)
		}
		observers[o.Name] = true
		if o.Scripts == "" {
			invalid("observer %s has no scripts", o.Name)
		}
		if !models[o.Model] {
			invalid("observer %s references unknown model %q", o.Name, o.Model)
		}
	}

	for i, s := range f.Steps {
		set := 0
		for _, v := range []string{s.Publish, s.Broadcast, s.Dispose, s.Unregister} {
			if v != "" {
				set++
			}
		}
		if set != 1 {
			invalid("step %d must set exactly one of publish, broadcast, dispose, unregister", i)
			continue
		}
		if s.Dispose != "" && !observers[s.Dispose] {
			invalid("step %d disposes unknown observer %q", i, s.Dispose)
		}
		if s.Publish != "" && s.Model == "" {
			invalid("step %d publishes without a model", i)
		}
		if s.Unregister != "" && s.Model != "" {
			invalid("step %d: unregister takes the model id as its value", i)
		}
		if _, err := s.Value(); err != nil {
			invalid("step %d: %v", i, err)
		}
	}

	return errors.Join(errs...)
}
