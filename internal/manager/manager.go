// Package manager owns the in-memory catalog of bottles and every
// operation that builds, changes or removes one.
package manager

import (
	"context"
	"errors"
	"math/rand/v2"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/flo-mic/bottlectl/internal/bottle"
	"github.com/flo-mic/bottlectl/internal/component"
	"github.com/flo-mic/bottlectl/internal/config"
	"github.com/flo-mic/bottlectl/internal/dependency"
	"github.com/flo-mic/bottlectl/internal/keylock"
	"github.com/flo-mic/bottlectl/internal/steam"
	"github.com/flo-mic/bottlectl/internal/template"
	"github.com/flo-mic/bottlectl/internal/versioning"
	"github.com/flo-mic/bottlectl/internal/wait"
	"github.com/flo-mic/bottlectl/internal/wine"
	"github.com/hashicorp/go-hclog"
)

var (
	// ErrComponentsMissing is returned when no runner or no translation
	// layer could be found or installed.
	ErrComponentsMissing = errors.New("essential components missing")
	// ErrEmptyPath is returned when deleting a bottle without a path.
	ErrEmptyPath = errors.New("bottle has no path")
	// ErrSteamManaged is returned for operations Steam owns.
	ErrSteamManaged = errors.New("bottle is managed by steam")
)

// Wine groups the collaborators that act on a prefix.
type Wine struct {
	Boot        wine.Boot
	Reg         wine.Registry
	Keys        wine.RegKeys
	Server      wine.Server
	Uninstaller wine.Uninstaller
}

// WineFromExecutor returns collaborators running the runner binaries.
func WineFromExecutor(x *wine.Executor) Wine {
	return Wine{
		Boot:        x.Wineboot(),
		Reg:         x.Reg(),
		Keys:        x.Keys(),
		Server:      x.Wineserver(),
		Uninstaller: x.Uninstaller(),
	}
}

// Options configures a Manager. Templates, Versioning, Steam and
// DependencySource may be nil.
type Options struct {
	Settings         *config.Settings
	Paths            config.Paths
	Components       *component.Registry
	Dependencies     *dependency.Installer
	DependencySource dependency.Source
	Templates        *template.Cache
	Versioning       *versioning.Manager
	Steam            *steam.Synchronizer
	Wine             Wine
	Log              hclog.Logger
}

// Manager is the entry point for bottle operations.
type Manager struct {
	settings   *config.Settings
	paths      config.Paths
	comps      *component.Registry
	deps       *dependency.Installer
	depSrc     dependency.Source
	templates  *template.Cache
	versioning *versioning.Manager
	steam      *steam.Synchronizer
	wine       Wine
	log        hclog.Logger

	locks keylock.Map

	mu      sync.Mutex
	bottles map[string]*bottle.Config

	// interval is the polling interval of every construction wait.
	interval time.Duration
	// suffix picks the collision suffix of a bottle directory.
	suffix func() int
}

// New returns a manager with an empty bottle catalog. Call Checks or
// CheckBottles to populate it.
func New(o Options) *Manager {
	log := o.Log
	if log == nil {
		log = hclog.NewNullLogger()
	}
	settings := o.Settings
	if settings == nil {
		settings = &config.Settings{}
	}
	return &Manager{
		settings:   settings,
		paths:      o.Paths,
		comps:      o.Components,
		deps:       o.Dependencies,
		depSrc:     o.DependencySource,
		templates:  o.Templates,
		versioning: o.Versioning,
		steam:      o.Steam,
		wine:       o.Wine,
		log:        log.Named("manager"),
		bottles:    map[string]*bottle.Config{},
		interval:   wait.DefaultInterval,
		suffix:     func() int { return 100 + rand.IntN(101) },
	}
}

// Components returns the component registry.
func (m *Manager) Components() *component.Registry { return m.comps }

// Paths returns the data directory layout.
func (m *Manager) Paths() config.Paths { return m.paths }

// BottlesDir returns the directory holding the bottles.
func (m *Manager) BottlesDir() string { return m.paths.Bottles }

// Steam returns the Steam synchronizer, nil when integration is off.
func (m *Manager) Steam() *steam.Synchronizer { return m.steam }

// Bottles returns a snapshot of the catalog keyed by directory name.
func (m *Manager) Bottles() map[string]*bottle.Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]*bottle.Config, len(m.bottles))
	for k, v := range m.bottles {
		out[k] = v
	}
	return out
}

// Bottle looks up a bottle by directory name, falling back to its
// display name.
func (m *Manager) Bottle(name string) (*bottle.Config, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.bottles[name]; ok {
		return c, true
	}
	for _, c := range m.bottles {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// Names lists the catalog keys, sorted.
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.bottles))
	for k := range m.bottles {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (m *Manager) put(key string, c *bottle.Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bottles[key] = c
}

// PrefixPath returns the wine prefix directory of c.
func (m *Manager) PrefixPath(c *bottle.Config) string {
	if c.CustomPath || c.Environment == bottle.Steam || filepath.IsAbs(c.Path) {
		return c.Path
	}
	return filepath.Join(m.paths.Bottles, c.Path)
}

// configDir is where bottle.yml of c lives. Steam bottles keep theirs
// outside the Steam prefix.
func (m *Manager) configDir(c *bottle.Config) string {
	if c.Environment == bottle.Steam && c.CompatData != "" {
		return filepath.Join(m.paths.Steam, c.CompatData)
	}
	return m.PrefixPath(c)
}

func (m *Manager) prefix(c *bottle.Config) wine.Prefix {
	return wine.Prefix{
		Path:   m.PrefixPath(c),
		Runner: c.Runner,
		Arch:   c.Arch,
		Env:    c.EnvironmentVariables,
	}
}

// save writes c without taking its lock.
func (m *Manager) save(c *bottle.Config) error {
	return bottle.Save(m.configDir(c), c)
}

// Checks prepares the data directory, refreshes the catalogs, makes sure
// the essential components are installed and scans the bottles.
func (m *Manager) Checks(ctx context.Context) error {
	if err := m.paths.EnsureDirs(m.settings.SteamIntegration, m.log); err != nil {
		return err
	}
	if m.settings.CleanTemp {
		if err := m.paths.CleanTemp(); err != nil {
			m.log.Warn("cannot clean temp directory", "error", err)
		}
	}
	if err := m.comps.RefreshCatalog(ctx); err != nil {
		m.log.Warn("component catalog not refreshed", "error", err)
	}
	if err := m.RefreshDependencies(ctx); err != nil {
		m.log.Warn("dependency catalog not refreshed", "error", err)
	}
	if err := m.comps.CheckAll(ctx, true); err != nil {
		m.log.Warn("component check incomplete", "error", err)
	}
	_, err := m.CheckBottles(false)
	return err
}

// RefreshDependencies fetches the dependency index.
func (m *Manager) RefreshDependencies(ctx context.Context) error {
	if m.depSrc == nil || m.deps == nil {
		return nil
	}
	c, err := dependency.FetchCatalog(ctx, m.depSrc)
	if err != nil {
		return err
	}
	m.deps.SetCatalog(c)
	return nil
}

func (m *Manager) timeout() time.Duration {
	return m.settings.ConstructionTimeout
}

// waitRegistry blocks until wineboot has written the registry hives.
func (m *Manager) waitRegistry(ctx context.Context, path string) error {
	return wait.ForFiles(ctx, m.timeout(), m.interval,
		filepath.Join(path, "system.reg"),
		filepath.Join(path, "user.reg"))
}

// waitStopped blocks until no wineserver serves p.
func (m *Manager) waitStopped(ctx context.Context, p wine.Prefix) error {
	return wait.Until(ctx, m.timeout(), m.interval, func() (bool, error) {
		alive, err := m.wine.Server.IsAlive(ctx, p)
		return !alive, err
	})
}
