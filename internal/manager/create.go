package manager

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/flo-mic/bottlectl/internal/bottle"
	"github.com/flo-mic/bottlectl/internal/component"
	"github.com/flo-mic/bottlectl/internal/dependency"
	"github.com/flo-mic/bottlectl/internal/recipe"
	"github.com/flo-mic/bottlectl/internal/template"
	"github.com/flo-mic/bottlectl/internal/wine"
	"github.com/hashicorp/go-hclog"
)

const (
	essentialAttempts = 3
	suffixAttempts    = 100
)

// CreateOptions describes a new bottle. Empty component versions fall
// back to the newest available.
type CreateOptions struct {
	Name        string
	Environment bottle.Environment
	Arch        string
	Runner      string
	DXVK        string
	VKD3D       string
	NVAPI       string
	LatencyFleX string
	Versioning  bool
	Sandbox     bool
	// CustomPath is a parent directory outside the bottles root.
	CustomPath string
	// RecipePath is a recipe file, used instead of the built-in one.
	RecipePath string
}

// dllLayers are installed into a new bottle when their parameter is set.
var dllLayers = []struct {
	kind  component.Kind
	param string
}{
	{component.DXVK, "dxvk"},
	{component.VKD3D, "vkd3d"},
	{component.NVAPI, "dxvk_nvapi"},
}

// CreateBottle builds a new bottle. It is not idempotent: a second call
// with the same name creates a second, suffixed bottle. A failure after the
// directory was created leaves it on disk.
func (m *Manager) CreateBottle(ctx context.Context, o CreateOptions) (*bottle.Config, error) {
	if strings.TrimSpace(o.Name) == "" {
		return nil, errors.New("bottle name is empty")
	}
	if o.Environment == "" {
		o.Environment = bottle.Custom
	}
	log := m.log.With("bottle", o.Name)

	log.Info("checking essential components")
	if err := m.ensureEssentials(ctx, log); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c := m.newConfig(o)
	dirName, path, err := m.allocatePath(c, o.CustomPath)
	if err != nil {
		return nil, err
	}
	log.Info("created bottle directory", "path", path)

	unlock := m.locks.Lock(c.Name)
	defer unlock()
	if c.CustomPath {
		if err := bottle.WritePlaceholder(filepath.Join(m.paths.Bottles, dirName), path); err != nil {
			return nil, fmt.Errorf("writing placeholder: %w", err)
		}
	}
	tmpl := m.applyTemplate(o, path, log)
	p := m.prefix(c)

	log.Info("generating bottle configuration")
	if err := m.bootPrefix(ctx, p, o, tmpl == nil, log); err != nil {
		return nil, err
	}

	log.Info("applying environment", "environment", string(c.Environment))
	rcp := m.recipeFor(o, log)
	if o.RecipePath != "" {
		if err := m.wine.Server.Kill(ctx, p); err != nil {
			log.Warn("cannot stop wineserver", "error", err)
		}
	}
	if err := m.waitStopped(ctx, p); err != nil {
		return nil, err
	}
	if set := rcp.Apply(c.Parameters); len(set) > 0 {
		log.Debug("recipe parameters applied", "keys", set)
	}

	updated, err := m.installRecipe(ctx, c, rcp, tmpl, log)
	if err != nil {
		return nil, err
	}

	if c.Environment == bottle.Layered {
		c.Layers = &bottle.LayerSet{}
	}

	log.Info("finalizing")
	if err := m.save(c); err != nil {
		return nil, fmt.Errorf("writing bottle config: %w", err)
	}
	if c.Versioning && m.versioning != nil {
		st, err := m.versioning.CreateState(path, "First boot")
		if err != nil {
			log.Warn("first state not created", "error", err)
		} else {
			c.State = st.Index
			if err := m.save(c); err != nil {
				return nil, fmt.Errorf("writing bottle config: %w", err)
			}
		}
	}
	if err := m.waitRegistry(ctx, path); err != nil {
		return nil, err
	}
	if err := m.wine.Boot.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("updating prefix: %w", err)
	}

	if m.cacheable(o) && (tmpl == nil || updated) {
		if _, err := m.templates.Store(c.Environment, c, path); err != nil {
			log.Warn("template not cached", "error", err)
		}
	}

	m.put(dirName, c)
	log.Info("bottle created", "path", path)
	return c, nil
}

// ensureEssentials makes sure a runner and every translation layer is
// available, installing the latest ones when needed.
func (m *Manager) ensureEssentials(ctx context.Context, log hclog.Logger) error {
	if m.comps.HasEssentials() {
		return nil
	}
	for attempt := 1; attempt <= essentialAttempts; attempt++ {
		log.Warn("essential components missing, installing", "attempt", attempt)
		if err := m.comps.CheckAll(ctx, true); err != nil {
			log.Debug("component check failed", "error", err)
		}
		if err := m.comps.RefreshCatalog(ctx); err != nil {
			log.Debug("catalog refresh failed", "error", err)
		}
		if m.comps.HasEssentials() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return ErrComponentsMissing
}

func (m *Manager) newConfig(o CreateOptions) *bottle.Config {
	c := bottle.Default()
	c.Name = o.Name
	c.Environment = o.Environment
	if o.Arch != "" {
		c.Arch = o.Arch
	}
	c.Versioning = o.Versioning
	c.Parameters["sandbox"] = o.Sandbox

	c.Runner = first(o.Runner, m.comps.LatestRunner("wine"))
	c.DXVK = first(o.DXVK, head(m.comps.Available(component.DXVK)))
	c.VKD3D = first(o.VKD3D, head(m.comps.Available(component.VKD3D)))
	c.NVAPI = first(o.NVAPI, head(m.comps.Available(component.NVAPI)))
	c.LatencyFleX = first(o.LatencyFleX, head(m.comps.Available(component.LatencyFleX)))

	c.CreationDate = bottle.Now()
	c.UpdateDate = c.CreationDate
	return c
}

// allocatePath creates the bottle directory for c, appending "__<n>" to
// the name when the directory is taken, and sets Path and Custom_Path.
func (m *Manager) allocatePath(c *bottle.Config, customParent string) (dirName, path string, err error) {
	if err := os.MkdirAll(m.paths.Bottles, 0755); err != nil {
		return "", "", fmt.Errorf("creating bottles directory: %w", err)
	}
	if customParent != "" {
		if err := os.MkdirAll(customParent, 0755); err != nil {
			return "", "", fmt.Errorf("creating bottles directory: %w", err)
		}
	}

	name := c.Name
	for i := 0; i <= suffixAttempts; i++ {
		candidate := name
		if i > 0 {
			candidate = name + "__" + strconv.Itoa(m.suffix())
		}
		dirName = bottle.DirName(candidate)
		err := m.claim(dirName, customParent)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", "", fmt.Errorf("creating bottle directory: %w", err)
		}

		c.Name = candidate
		if customParent == "" {
			c.Path = dirName
			c.CustomPath = false
			return dirName, filepath.Join(m.paths.Bottles, dirName), nil
		}
		c.Path = filepath.Join(customParent, dirName)
		c.CustomPath = true
		return dirName, c.Path, nil
	}
	return "", "", fmt.Errorf("no free directory for bottle %q", name)
}

// claim creates the directory dirName in the bottles root and, for a
// custom bottle, in customParent too. It fails with fs.ErrExist when
// either is taken.
func (m *Manager) claim(dirName, customParent string) error {
	root := filepath.Join(m.paths.Bottles, dirName)
	if err := os.Mkdir(root, 0755); err != nil {
		return err
	}
	if customParent == "" {
		return nil
	}
	if err := os.Mkdir(filepath.Join(customParent, dirName), 0755); err != nil {
		_ = os.Remove(root)
		return err
	}
	return nil
}

// cacheable reports whether bottles created with o share a template.
func (m *Manager) cacheable(o CreateOptions) bool {
	if m.templates == nil || o.RecipePath != "" {
		return false
	}
	return o.Environment != bottle.Custom && o.Environment != bottle.Layered
}

func (m *Manager) applyTemplate(o CreateOptions, path string, log hclog.Logger) *template.Template {
	if !m.cacheable(o) {
		return nil
	}
	t, err := m.templates.Lookup(o.Environment)
	if err != nil {
		log.Warn("cannot read templates", "error", err)
		return nil
	}
	if t == nil {
		return nil
	}
	if err := m.templates.Unpack(t, path); err != nil {
		log.Warn("template not applied", "error", err)
		return nil
	}
	log.Info("template applied", "uuid", t.UUID)
	return t
}

// bootPrefix initializes the prefix. Windows version and console defaults
// are only written when the prefix is built from scratch.
func (m *Manager) bootPrefix(ctx context.Context, p wine.Prefix, o CreateOptions, fresh bool, log hclog.Logger) error {
	if err := m.wine.Boot.Init(ctx, p); err != nil {
		return fmt.Errorf("wineboot: %w", err)
	}
	if o.Sandbox {
		if err := unlinkUserDirs(p.Path); err != nil {
			log.Warn("user directories not unlinked", "error", err)
		}
	}
	if err := m.waitRegistry(ctx, p.Path); err != nil {
		return err
	}

	if fresh && o.RecipePath == "" {
		log.Info("setting windows version")
		if err := m.wine.Keys.SetWindows(ctx, p, bottle.Default().Windows); err != nil {
			return err
		}
		if err := m.update(ctx, p); err != nil {
			return err
		}
		log.Info("applying cmd default settings")
		if err := m.wine.Keys.ApplyCMDSettings(ctx, p); err != nil {
			return err
		}
		if err := m.update(ctx, p); err != nil {
			return err
		}
	}

	return m.wine.Reg.Add(ctx, p, wine.RegEntry{
		Key:   wine.DLLOverridesKey,
		Value: "winemenubuilder.exe",
	})
}

// update runs wineboot -u and waits for its wineserver to stop.
func (m *Manager) update(ctx context.Context, p wine.Prefix) error {
	if err := m.wine.Boot.Update(ctx, p); err != nil {
		return fmt.Errorf("updating prefix: %w", err)
	}
	return m.waitStopped(ctx, p)
}

func (m *Manager) recipeFor(o CreateOptions, log hclog.Logger) *recipe.Recipe {
	if o.RecipePath != "" {
		r, err := recipe.Load(o.RecipePath)
		if err != nil {
			log.Error("recipe not loaded, continuing without", "error", err)
			return &recipe.Recipe{}
		}
		return r
	}
	if r, ok := recipe.Builtin(o.Environment); ok {
		return r
	}
	return &recipe.Recipe{}
}

// installRecipe installs the translation layers and dependencies the
// bottle needs on top of tmpl. It reports whether tmpl is outdated.
func (m *Manager) installRecipe(ctx context.Context, c *bottle.Config, rcp *recipe.Recipe, tmpl *template.Template, log hclog.Logger) (bool, error) {
	updated := false
	if tmpl != nil {
		c.InstalledDependencies = append([]string{}, tmpl.Config.InstalledDependencies...)
		for k, v := range tmpl.Config.DLLOverrides {
			c.DLLOverrides[k] = v
		}
		if !tmpl.Matches(c) {
			log.Info("template built from other components, refreshing", "uuid", tmpl.UUID)
			updated = true
		}
	}

	for _, l := range dllLayers {
		version := *versionField(c, l.kind)
		var need bool
		if tmpl == nil {
			need = c.Parameters.Bool(l.param)
		} else {
			need = *versionField(tmpl.Config, l.kind) != version
		}
		if !need || version == "" {
			continue
		}
		log.Info("installing "+l.kind.String(), "version", version)
		if err := m.installDLLs(ctx, c, l.kind, false, version); err != nil {
			return updated, err
		}
		updated = tmpl != nil
	}

	for _, dep := range dependency.Missing(rcp.InstalledDependencies, c.InstalledDependencies) {
		if err := ctx.Err(); err != nil {
			return updated, err
		}
		if m.deps == nil {
			return updated, fmt.Errorf("installing dependency %s: no dependency installer", dep)
		}
		log.Info("installing dependency", "name", dep)
		if err := m.deps.Install(ctx, m.prefix(c), c, dep); err != nil {
			return updated, fmt.Errorf("installing dependency %s: %w", dep, err)
		}
		updated = tmpl != nil
	}
	return updated, nil
}

// unlinkUserDirs replaces the symlinks wineboot creates from the prefix
// user folders into the home directory with empty directories.
func unlinkUserDirs(prefix string) error {
	users, err := filepath.Glob(filepath.Join(prefix, "drive_c", "users", "*", "*"))
	if err != nil {
		return err
	}
	for _, p := range users {
		info, err := os.Lstat(p)
		if err != nil || info.Mode()&os.ModeSymlink == 0 {
			continue
		}
		if err := os.Remove(p); err != nil {
			return err
		}
		if err := os.MkdirAll(p, 0755); err != nil {
			return err
		}
	}
	return nil
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func head(ss []string) string {
	if len(ss) == 0 {
		return ""
	}
	return ss[0]
}
