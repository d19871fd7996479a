// Package backup exports bottles to files, imports them back and
// duplicates them.
package backup

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/flo-mic/bottlectl/internal/archive"
	"github.com/flo-mic/bottlectl/internal/bottle"
	"github.com/flo-mic/bottlectl/internal/fsutil"
	"github.com/hashicorp/go-hclog"
	"github.com/mohae/deepcopy"
)

// Scope selects what a backup contains.
type Scope string

const (
	// Config backs up bottle.yml only.
	Config Scope = "config"
	// Full backs up the whole bottle directory.
	Full Scope = "full"
)

// ParseScope validates s.
func ParseScope(s string) (Scope, error) {
	switch Scope(strings.ToLower(s)) {
	case Config:
		return Config, nil
	case Full:
		return Full, nil
	}
	return "", fmt.Errorf("unknown backup scope %q", s)
}

// fullExcludes are never part of a full backup.
var fullExcludes = []string{"**dosdevices**"}

// Bottles is the part of the bottle manager backups need.
type Bottles interface {
	PrefixPath(c *bottle.Config) string
	BottlesDir() string
	CreateBottleFromConfig(ctx context.Context, c *bottle.Config) (*bottle.Config, error)
	CheckBottles(silent bool) (map[string]*bottle.Config, error)
}

// Manager runs backup operations against a set of bottles.
type Manager struct {
	bottles Bottles
	log     hclog.Logger
}

// New returns a backup manager.
func New(b Bottles, log hclog.Logger) *Manager {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Manager{bottles: b, log: log.Named("backup")}
}

// Export writes a backup of c to dest.
func (m *Manager) Export(c *bottle.Config, scope Scope, dest string) error {
	log := m.log.With("bottle", c.Name, "scope", string(scope), "dest", dest)
	switch scope {
	case Config:
		if err := bottle.WriteFile(dest, c); err != nil {
			return fmt.Errorf("exporting config: %w", err)
		}
	case Full:
		src := m.bottles.PrefixPath(c)
		ex, err := archive.NewExcluder(fullExcludes...)
		if err != nil {
			return err
		}
		if err := archive.WriteDir(dest, src, filepath.Base(src), ex); err != nil {
			return fmt.Errorf("exporting bottle: %w", err)
		}
	default:
		return fmt.Errorf("unknown backup scope %q", scope)
	}

	if info, err := os.Stat(dest); err == nil {
		log = log.With("size", humanize.Bytes(uint64(info.Size())))
	}
	log.Info("backup exported")
	return nil
}

var backupPrefix = regexp.MustCompile(`(?i)^backup_`)

// DisplayName is the bottle name shown for a backup file.
func DisplayName(scope Scope, path string) string {
	name := filepath.Base(path)
	if scope == Config {
		return strings.TrimSuffix(name, ".yml")
	}
	name = strings.TrimSuffix(name, ".tar.gz")
	return backupPrefix.ReplaceAllString(name, "")
}

// Import restores the backup at path. A config backup is rebuilt as a new
// bottle; a full backup is unpacked into the bottles directory.
func (m *Manager) Import(ctx context.Context, scope Scope, path string) error {
	log := m.log.With("backup", DisplayName(scope, path), "scope", string(scope))
	switch scope {
	case Config:
		c, err := bottle.Load(path)
		if err != nil {
			return fmt.Errorf("reading backup: %w", err)
		}
		if _, err := m.bottles.CreateBottleFromConfig(ctx, c); err != nil {
			return fmt.Errorf("importing backup: %w", err)
		}
	case Full:
		if err := archive.ExtractFile(path, m.bottles.BottlesDir(), ""); err != nil {
			return fmt.Errorf("importing backup: %w", err)
		}
		if _, err := m.bottles.CheckBottles(true); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown backup scope %q", scope)
	}
	log.Info("backup imported")
	return nil
}

// Duplicate copies the registry hives, the configuration and drive_c of c
// into a new bottle called name.
func (m *Manager) Duplicate(c *bottle.Config, name string) (*bottle.Config, error) {
	src := m.bottles.PrefixPath(c)
	dirName := bottle.DirName(name)
	dst := filepath.Join(m.bottles.BottlesDir(), dirName)
	if fsutil.Exists(dst) {
		return nil, fmt.Errorf("bottle %q: %w", dirName, fs.ErrExist)
	}
	log := m.log.With("bottle", c.Name, "copy", name)
	log.Info("duplicating bottle")

	if err := os.MkdirAll(dst, 0755); err != nil {
		return nil, err
	}
	hives, err := filepath.Glob(filepath.Join(src, "*.reg"))
	if err != nil {
		return nil, err
	}
	for _, h := range hives {
		if err := fsutil.PlaceFile(h, filepath.Join(dst, filepath.Base(h)), 0); err != nil {
			return nil, err
		}
	}

	if drive := filepath.Join(src, "drive_c"); fsutil.Exists(drive) {
		skipDot := func(rel string, _ fs.DirEntry) bool {
			return strings.HasPrefix(filepath.Base(rel), ".")
		}
		if err := fsutil.CopyTree(drive, filepath.Join(dst, "drive_c"), skipDot); err != nil {
			return nil, fmt.Errorf("copying drive_c: %w", err)
		}
	}

	nc := deepcopy.Copy(*c).(bottle.Config)
	nc.Name = name
	nc.Path = dirName
	nc.CustomPath = false
	nc.UpdateDate = bottle.Now()
	if err := bottle.Save(dst, &nc); err != nil {
		return nil, err
	}
	if _, err := m.bottles.CheckBottles(true); err != nil {
		return nil, err
	}
	log.Info("bottle duplicated", "path", dst)
	return &nc, nil
}
