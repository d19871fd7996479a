package component

import (
	"context"
	"fmt"
	"path"

	"gopkg.in/yaml.v3"
)

// IndexFile is the catalog index at the repository root.
const IndexFile = "index.yml"

// Entry is one installable component as declared by the remote index.
type Entry struct {
	Name        string `yaml:"-"`
	Category    string `yaml:"Category"`
	SubCategory string `yaml:"Sub-category,omitempty"`
	Channel     string `yaml:"Channel"`
	Files       []File `yaml:"-"`
}

// File is one downloadable artifact of an entry.
type File struct {
	FileName string `yaml:"file_name"`
	URL      string `yaml:"url"`
	Checksum string `yaml:"file_checksum"`
	Size     int64  `yaml:"file_size"`
	Rename   string `yaml:"rename,omitempty"`
}

// manifestPath is where the entry's file list lives in the repository.
func (e Entry) manifestPath() string {
	if e.SubCategory != "" {
		return path.Join(e.Category, e.SubCategory, e.Name+".yml")
	}
	return path.Join(e.Category, e.Name+".yml")
}

// Prerelease reports whether the entry is on the rc or unstable channel.
func (e Entry) Prerelease() bool {
	return e.Channel == "rc" || e.Channel == "unstable"
}

// Catalog holds the remote entries per kind in declaration order.
type Catalog struct {
	entries map[Kind][]Entry
}

// NewCatalog builds a catalog from entries already grouped by kind.
func NewCatalog(entries map[Kind][]Entry) *Catalog {
	c := &Catalog{entries: make(map[Kind][]Entry, len(entries))}
	for k, es := range entries {
		c.entries[k] = append([]Entry(nil), es...)
	}
	return c
}

// Entries returns the entries of kind k. The slice must not be modified.
func (c *Catalog) Entries(k Kind) []Entry {
	if c == nil {
		return nil
	}
	return c.entries[k]
}

// Lookup finds name among the entries of kind k.
func (c *Catalog) Lookup(k Kind, name string) (Entry, bool) {
	for _, e := range c.Entries(k) {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// Len returns the number of entries across all kinds.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	n := 0
	for _, es := range c.entries {
		n += len(es)
	}
	return n
}

// ParseIndex decodes an index document. Mapping order is preserved, which
// is why the document is walked as a yaml.Node rather than a Go map.
// Entries of unknown categories are ignored.
func ParseIndex(data []byte) (*Catalog, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", IndexFile, err)
	}
	return catalogFromNode(&doc)
}

func catalogFromNode(doc *yaml.Node) (*Catalog, error) {
	c := &Catalog{entries: map[Kind][]Entry{}}
	root := doc
	if root.Kind == 0 {
		return c, nil
	}
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			return c, nil
		}
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%s: expected a mapping", IndexFile)
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		name := root.Content[i].Value
		var e Entry
		if err := root.Content[i+1].Decode(&e); err != nil {
			return nil, fmt.Errorf("%s: entry %s: %w", IndexFile, name, err)
		}
		e.Name = name
		k, ok := kindForCategory(e.Category)
		if !ok {
			continue
		}
		c.entries[k] = append(c.entries[k], e)
	}
	return c, nil
}

// FetchCatalog downloads and parses the remote index.
func FetchCatalog(ctx context.Context, src Source) (*Catalog, error) {
	var doc yaml.Node
	if err := src.GetYAML(ctx, IndexFile, &doc); err != nil {
		return nil, err
	}
	return catalogFromNode(&doc)
}
