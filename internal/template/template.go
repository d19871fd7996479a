// Package template caches freshly built bottles per environment so that
// the next bottle of the same environment starts from a copy instead of a
// new prefix.
package template

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dchest/safefile"
	"github.com/flo-mic/bottlectl/internal/archive"
	"github.com/flo-mic/bottlectl/internal/bottle"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/hashstructure/v2"
	"gopkg.in/yaml.v3"
)

// IndexFile lists the cached templates.
const IndexFile = "templates.yml"

// excluded never end up in a template.
var excluded = []string{
	"**dosdevices**",
	bottle.ConfigFile,
	bottle.PlaceholderFile,
	".git/",
	"states/",
}

// Template is one cached bottle.
type Template struct {
	UUID        string         `yaml:"uuid"`
	Environment string         `yaml:"env"`
	Config      *bottle.Config `yaml:"config"`
	Created     string         `yaml:"created"`
	Fingerprint uint64         `yaml:"fingerprint"`
}

// footprint is what a template's content depends on.
type footprint struct {
	Arch         string
	Runner       string
	DXVK         string
	VKD3D        string
	NVAPI        string
	LatencyFleX  string
	Dependencies []string `hash:"set"`
}

// Fingerprint hashes the component versions and dependencies of cfg.
func Fingerprint(cfg *bottle.Config) (uint64, error) {
	return hashstructure.Hash(footprint{
		Arch:         cfg.Arch,
		Runner:       cfg.Runner,
		DXVK:         cfg.DXVK,
		VKD3D:        cfg.VKD3D,
		NVAPI:        cfg.NVAPI,
		LatencyFleX:  cfg.LatencyFleX,
		Dependencies: cfg.InstalledDependencies,
	}, hashstructure.FormatV2, nil)
}

// Matches reports whether t was built from the same components as cfg.
func (t *Template) Matches(cfg *bottle.Config) bool {
	f, err := Fingerprint(cfg)
	return err == nil && f == t.Fingerprint
}

// Cache stores templates in a directory.
type Cache struct {
	dir string
	log hclog.Logger
	mu  sync.Mutex
}

// NewCache returns a cache rooted at dir.
func NewCache(dir string, log hclog.Logger) *Cache {
	return &Cache{dir: dir, log: log.Named("templates")}
}

func (c *Cache) archivePath(id string) string {
	return filepath.Join(c.dir, id+".tar.gz")
}

func (c *Cache) readIndex() ([]Template, error) {
	data, err := os.ReadFile(filepath.Join(c.dir, IndexFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ts []Template
	if err := yaml.Unmarshal(data, &ts); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", IndexFile, err)
	}
	return ts, nil
}

func (c *Cache) writeIndex(ts []Template) error {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return err
	}
	data, err := bottle.Marshal(ts)
	if err != nil {
		return err
	}
	return safefile.WriteFile(filepath.Join(c.dir, IndexFile), data, 0644)
}

// List returns every template whose archive is present, newest first.
func (c *Cache) List() ([]Template, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ts, err := c.readIndex()
	if err != nil {
		return nil, err
	}
	var out []Template
	for _, t := range ts {
		if _, err := os.Stat(c.archivePath(t.UUID)); err != nil {
			c.log.Warn("template archive missing, ignoring", "uuid", t.UUID)
			continue
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Created > out[j].Created })
	return out, nil
}

// Lookup returns the newest template for env, or nil when there is none.
func (c *Cache) Lookup(env bottle.Environment) (*Template, error) {
	ts, err := c.List()
	if err != nil {
		return nil, err
	}
	for _, t := range ts {
		if strings.EqualFold(t.Environment, string(env)) {
			return &t, nil
		}
	}
	return nil, nil
}

// Unpack copies the template content into the bottle directory.
func (c *Cache) Unpack(t *Template, bottlePath string) error {
	c.log.Info("unpacking template", "uuid", t.UUID, "dest", bottlePath)
	if err := archive.ExtractFile(c.archivePath(t.UUID), bottlePath, ""); err != nil {
		return fmt.Errorf("unpacking template %s: %w", t.UUID, err)
	}
	return nil
}

// Store caches the bottle at bottlePath as the template for env,
// replacing older templates of the same environment.
func (c *Cache) Store(env bottle.Environment, cfg *bottle.Config, bottlePath string) (*Template, error) {
	ex, err := archive.NewExcluder(excluded...)
	if err != nil {
		return nil, err
	}
	fp, err := Fingerprint(cfg)
	if err != nil {
		return nil, err
	}

	t := Template{
		UUID:        uuid.NewString(),
		Environment: string(env),
		Config:      cfg,
		Created:     bottle.FormatTime(time.Now()),
		Fingerprint: fp,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return nil, err
	}
	if err := archive.WriteDir(c.archivePath(t.UUID), bottlePath, "", ex); err != nil {
		return nil, fmt.Errorf("archiving template: %w", err)
	}

	old, err := c.readIndex()
	if err != nil {
		return nil, err
	}
	keep := []Template{t}
	for _, o := range old {
		if strings.EqualFold(o.Environment, string(env)) {
			os.Remove(c.archivePath(o.UUID))
			continue
		}
		keep = append(keep, o)
	}
	if err := c.writeIndex(keep); err != nil {
		return nil, err
	}
	c.log.Info("template cached", "uuid", t.UUID, "env", string(env))
	return &t, nil
}

// Delete removes a template.
func (c *Cache) Delete(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	ts, err := c.readIndex()
	if err != nil {
		return err
	}
	var keep []Template
	found := false
	for _, t := range ts {
		if t.UUID == id {
			found = true
			continue
		}
		keep = append(keep, t)
	}
	if !found {
		return fmt.Errorf("template %s: %w", id, fs.ErrNotExist)
	}
	os.Remove(c.archivePath(id))
	return c.writeIndex(keep)
}
