// Package dependency installs the redistributables, fonts and libraries
// offered by the dependencies repository into bottles.
package dependency

import (
	"context"
	"fmt"
	"path"

	"gopkg.in/yaml.v3"
)

// IndexFile is the dependency index at the repository root.
const IndexFile = "index.yml"

// Source is the remote repository. *repository.Client implements it.
type Source interface {
	GetYAML(ctx context.Context, path string, out interface{}) error
	Download(ctx context.Context, url, dest string) (int64, error)
}

// Entry is one dependency as listed by the index.
type Entry struct {
	Name        string `yaml:"-"`
	Description string `yaml:"Description"`
	Category    string `yaml:"Category"`
}

func (e Entry) manifestPath() string {
	return path.Join(e.Category, e.Name+".yml")
}

// Catalog is the ordered dependency index.
type Catalog struct {
	entries []Entry
	byName  map[string]int
}

// NewCatalog builds a catalog from entries in order.
func NewCatalog(entries []Entry) *Catalog {
	c := &Catalog{byName: make(map[string]int, len(entries))}
	for _, e := range entries {
		c.byName[e.Name] = len(c.entries)
		c.entries = append(c.entries, e)
	}
	return c
}

// Entries returns all entries in index order.
func (c *Catalog) Entries() []Entry {
	if c == nil {
		return nil
	}
	return c.entries
}

// Lookup finds a dependency by name.
func (c *Catalog) Lookup(name string) (Entry, bool) {
	if c == nil {
		return Entry{}, false
	}
	i, ok := c.byName[name]
	if !ok {
		return Entry{}, false
	}
	return c.entries[i], true
}

// FetchCatalog downloads the index, keeping its order.
func FetchCatalog(ctx context.Context, src Source) (*Catalog, error) {
	var doc yaml.Node
	if err := src.GetYAML(ctx, IndexFile, &doc); err != nil {
		return nil, err
	}
	root := &doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	if root.Kind == 0 {
		return NewCatalog(nil), nil
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%s: expected a mapping", IndexFile)
	}

	var entries []Entry
	for i := 0; i+1 < len(root.Content); i += 2 {
		var e Entry
		if err := root.Content[i+1].Decode(&e); err != nil {
			return nil, fmt.Errorf("%s: entry %s: %w", IndexFile, root.Content[i].Value, err)
		}
		e.Name = root.Content[i].Value
		entries = append(entries, e)
	}
	return NewCatalog(entries), nil
}
