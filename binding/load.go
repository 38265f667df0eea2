package binding

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/objbridge/errors"
)

// Format of a binding document.
type Format string

const (
	FormatAuto Format = ""
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

//go:embed schema.json
var schemaJSON []byte

const schemaURL = "binding.schema.json"

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = err
			return
		}
		schema, schemaErr = c.Compile(schemaURL)
	})
	return schema, schemaErr
}

// FormatOf picks the format from a file extension.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML
	case ".yaml", ".yml":
		return FormatYAML
	case ".json":
		return FormatJSON
	}
	return FormatAuto
}

// Load reads, validates and decodes a binding file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Load("read "+path, err)
	}
	f, err := Parse(data, FormatOf(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse validates data against the binding schema and decodes it.
// FormatAuto tries TOML, then JSON, then YAML.
func Parse(data []byte, format Format) (*File, error) {
	if format == FormatAuto {
		var err error
		if format, err = detect(data); err != nil {
			return nil, err
		}
	}

	var raw map[string]any
	if err := decode(data, format, &raw); err != nil {
		return nil, err
	}
	if err := Validate(raw); err != nil {
		return nil, err
	}

	f := &File{}
	if err := decode(data, format, f); err != nil {
		return nil, err
	}
	return f, nil
}

func detect(data []byte) (Format, error) {
	var probe map[string]any
	for _, format := range []Format{FormatTOML, FormatJSON, FormatYAML} {
		if decode(data, format, &probe) == nil && probe != nil {
			return format, nil
		}
		probe = nil
	}
	return FormatAuto, errors.Load("unable to parse binding (tried TOML, JSON, YAML)", nil)
}

func decode(data []byte, format Format, v any) error {
	var err error
	switch format {
	case FormatTOML:
		_, err = toml.Decode(string(data), v)
	case FormatJSON:
		err = json.Unmarshal(data, v)
	case FormatYAML:
		err = yaml.Unmarshal(data, v)
	default:
		return errors.Load(fmt.Sprintf("unknown format %q", format), nil)
	}
	if err != nil {
		return errors.Load("decode "+string(format), err)
	}
	return nil
}

// Validate checks a generic document against the binding schema.
func Validate(doc map[string]any) error {
	s, err := compiledSchema()
	if err != nil {
		return errors.Wrap(errors.PhaseValidate, errors.KindNotInitialized, err, "compile binding schema")
	}
	// the validator only understands JSON shaped values; TOML decodes
	// arrays of tables as []map[string]any
	normalized, err := normalize(doc)
	if err != nil {
		return err
	}
	if err := s.Validate(normalized); err != nil {
		return errors.New(errors.PhaseValidate, errors.KindInvalidData).
			Detail("binding does not match schema").
			Cause(err).
			Build()
	}
	return nil
}

func normalize(doc map[string]any) (any, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseValidate, errors.KindInvalidData, err, "normalize document")
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, errors.Wrap(errors.PhaseValidate, errors.KindInvalidData, err, "normalize document")
	}
	return out, nil
}
