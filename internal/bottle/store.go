package bottle

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dchest/safefile"
	"gopkg.in/yaml.v3"
)

// ReadDocument reads a YAML file without applying the schema.
func ReadDocument(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, err
	}

	doc, err := parseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, path, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: %s", ErrNilConfig, path)
	}
	return doc, nil
}

// Decode converts a raw document into a Config.
func Decode(doc Document) (*Config, error) {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &c, nil
}

// Marshal encodes v as an indented YAML document.
func Marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(4)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFile atomically replaces path with the YAML encoding of v.
func WriteFile(path string, v interface{}) error {
	data, err := Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return safefile.WriteFile(path, data, 0644)
}

// Load reads and decodes path without migrating it.
func Load(path string) (*Config, error) {
	doc, err := ReadDocument(path)
	if err != nil {
		return nil, err
	}
	return Decode(doc)
}

// Save writes c to bottle.yml inside dir.
func Save(dir string, c *Config) error {
	return WriteFile(filepath.Join(dir, ConfigFile), c)
}

// Placeholder is stored at the canonical location of a bottle whose data
// lives at a custom path.
type Placeholder struct {
	Path string `yaml:"Path"`
}

// ReadPlaceholder parses dir/placeholder.yml. A file without Path is malformed.
func ReadPlaceholder(dir string) (*Placeholder, error) {
	path := filepath.Join(dir, PlaceholderFile)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, err
	}

	var p Placeholder
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, path, err)
	}
	if p.Path == "" {
		return nil, fmt.Errorf("%w: missing Path in %s", ErrMalformed, path)
	}
	return &p, nil
}

// WritePlaceholder creates dir and a placeholder inside it pointing at target.
func WritePlaceholder(dir, target string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return WriteFile(filepath.Join(dir, PlaceholderFile), Placeholder{Path: target})
}

// Encode converts c into a raw document keyed by the YAML names.
func Encode(c *Config) (Document, error) {
	doc, err := toDocument(c)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return doc, nil
}
