package manager

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/flo-mic/bottlectl/internal/bottle"
	"github.com/flo-mic/bottlectl/internal/component"
	"github.com/flo-mic/bottlectl/internal/dependency"
)

// UpdateConfig sets key to value, or removes it, and persists the bottle.
// scope names a nested mapping such as "Parameters"; empty means top
// level. Changing "sync" stops the wineserver so the next start picks it up.
func (m *Manager) UpdateConfig(ctx context.Context, c *bottle.Config, key string, value interface{}, scope string, remove bool) (*bottle.Config, error) {
	unlock := m.locks.Lock(c.Name)
	defer unlock()

	doc, err := bottle.Encode(c)
	if err != nil {
		return nil, err
	}
	target := map[string]interface{}(doc)
	if scope != "" {
		sub, ok := bottle.Mapping(doc[scope])
		if !ok {
			if doc[scope] != nil {
				return nil, fmt.Errorf("%w: %s is not a mapping", bottle.ErrMalformed, scope)
			}
			sub = map[string]interface{}{}
			doc[scope] = sub
		}
		target = sub
	}
	if remove {
		delete(target, key)
	} else {
		target[key] = value
	}

	if key == "sync" {
		if err := m.wine.Server.Kill(ctx, m.prefix(c)); err != nil {
			m.log.Warn("cannot stop wineserver", "bottle", c.Name, "error", err)
		}
	}
	doc["Update_Date"] = bottle.Now()

	updated, err := bottle.Decode(doc)
	if err != nil {
		return nil, fmt.Errorf("setting %s: %w", key, err)
	}
	if err := m.save(updated); err != nil {
		return nil, fmt.Errorf("writing bottle config: %w", err)
	}
	*c = *updated

	if c.Environment == bottle.Steam && m.steam != nil {
		if err := m.steam.UpdateBottle(c); err != nil {
			m.log.Warn("steam launch options not updated", "bottle", c.Name, "error", err)
		}
	}
	return c, nil
}

// CreateBottleFromConfig recreates a bottle from a saved configuration,
// replacing component versions that are not available with the newest
// ones, then installs its DLL components and dependencies.
func (m *Manager) CreateBottleFromConfig(ctx context.Context, c *bottle.Config) (*bottle.Config, error) {
	doc, err := bottle.Encode(c)
	if err != nil {
		return nil, err
	}
	if _, err := bottle.Migrate(doc, c.Name, nil, m.log); err != nil {
		return nil, err
	}
	nc, err := bottle.Decode(doc)
	if err != nil {
		return nil, err
	}
	log := m.log.With("bottle", nc.Name)

	if !contains(m.comps.Available(component.Runner), nc.Runner) {
		nc.Runner = m.comps.LatestRunner("wine")
		log.Warn("runner not available, using latest", "runner", nc.Runner)
	}
	for _, k := range []component.Kind{component.DXVK, component.VKD3D, component.NVAPI, component.LatencyFleX} {
		field := versionField(nc, k)
		available := m.comps.Available(k)
		if *field != "" && !contains(available, *field) {
			*field = head(available)
			log.Warn(k.String()+" not available, using latest", "version", *field)
		}
	}

	dirName, _, err := m.allocatePath(nc, "")
	if err != nil {
		return nil, err
	}
	nc.UpdateDate = bottle.Now()
	if err := m.save(nc); err != nil {
		return nil, err
	}

	for k, param := range layerParams {
		if !nc.Parameters.Bool(param) || *versionField(nc, k) == "" {
			continue
		}
		if err := m.installDLLs(ctx, nc, k, false, ""); err != nil {
			log.Warn(k.String()+" not installed", "error", err)
		}
	}
	if m.deps != nil && len(nc.InstalledDependencies) > 0 {
		deps := nc.InstalledDependencies
		nc.InstalledDependencies = []string{}
		for _, dep := range deps {
			if err := m.deps.Install(ctx, m.prefix(nc), nc, dep); err != nil {
				log.Warn("dependency not installed", "name", dep, "error", err)
			}
		}
		// failed ones stay listed, the config keeps what the bottle asked for
		nc.InstalledDependencies = mergeDeps(deps, nc.InstalledDependencies)
	}
	if err := m.save(nc); err != nil {
		return nil, err
	}

	m.put(dirName, nc)
	if _, err := m.CheckBottles(true); err != nil {
		return nil, err
	}
	return nc, nil
}

// DeleteBottle stops the bottle, removes its desktop entries, its
// placeholder and its directory, and drops it from the catalog.
func (m *Manager) DeleteBottle(ctx context.Context, c *bottle.Config) error {
	if c.Path == "" {
		return ErrEmptyPath
	}
	if c.Environment == bottle.Steam {
		return ErrSteamManaged
	}
	unlock := m.locks.Lock(c.Name)
	defer unlock()

	log := m.log.With("bottle", c.Name)
	if err := m.wine.Server.Kill(ctx, m.prefix(c)); err != nil {
		log.Debug("wineserver not stopped", "error", err)
	}

	entries, _ := filepath.Glob(filepath.Join(m.paths.Applications, c.Name+"--*"))
	for _, e := range entries {
		if err := os.Remove(e); err != nil {
			log.Warn("desktop entry not removed", "path", e, "error", err)
		}
	}

	dirName := filepath.Base(c.Path)
	if c.CustomPath {
		if err := os.RemoveAll(filepath.Join(m.paths.Bottles, dirName)); err != nil {
			return fmt.Errorf("removing placeholder: %w", err)
		}
	}
	if err := os.RemoveAll(m.PrefixPath(c)); err != nil {
		return fmt.Errorf("removing bottle: %w", err)
	}

	m.mu.Lock()
	for k, v := range m.bottles {
		if k == dirName || v == c {
			delete(m.bottles, k)
		}
	}
	m.mu.Unlock()
	log.Info("bottle deleted")
	return nil
}

// RepairBottle replaces the configuration of a broken bottle with a fresh
// Custom one using the latest runner and re-initializes the prefix.
func (m *Manager) RepairBottle(ctx context.Context, c *bottle.Config) (*bottle.Config, error) {
	if c.Environment == bottle.Steam {
		return nil, ErrSteamManaged
	}
	unlock := m.locks.Lock(c.Name)
	defer unlock()

	nc := bottle.Default()
	nc.Name = c.Name
	nc.Path = c.Path
	nc.CustomPath = c.CustomPath
	nc.Environment = bottle.Custom
	nc.Runner = m.comps.LatestRunner("wine")
	nc.CreationDate = bottle.Now()
	nc.UpdateDate = nc.CreationDate

	if err := m.save(nc); err != nil {
		return nil, fmt.Errorf("writing bottle config: %w", err)
	}
	if err := m.wine.Boot.Init(ctx, m.prefix(nc)); err != nil {
		return nil, fmt.Errorf("wineboot: %w", err)
	}
	if _, err := m.CheckBottles(true); err != nil {
		return nil, err
	}
	m.log.Info("bottle repaired", "bottle", nc.Name, "runner", nc.Runner)
	return nc, nil
}

// InstallDependency installs name into the bottle and persists it.
func (m *Manager) InstallDependency(ctx context.Context, c *bottle.Config, name string) error {
	if m.deps == nil {
		return fmt.Errorf("%w: %s", dependency.ErrUnknown, name)
	}
	unlock := m.locks.Lock(c.Name)
	defer unlock()
	if err := m.deps.Install(ctx, m.prefix(c), c, name); err != nil {
		return err
	}
	c.UpdateDate = bottle.Now()
	return m.save(c)
}

// RemoveDependency runs the recorded uninstaller of dep, if any, and
// drops it from the bottle.
func (m *Manager) RemoveDependency(ctx context.Context, c *bottle.Config, dep string) error {
	unlock := m.locks.Lock(c.Name)
	defer unlock()
	if err := dependency.Remove(ctx, m.wine.Uninstaller, m.prefix(c), c, dep); err != nil {
		return err
	}
	c.UpdateDate = bottle.Now()
	return m.save(c)
}

// ListPrograms returns the programs added to the bottle, sorted by name.
func (m *Manager) ListPrograms(c *bottle.Config) []bottle.Program {
	var out []bottle.Program
	for id, p := range c.ExternalPrograms {
		if p.Removed {
			continue
		}
		if p.ID == "" {
			p.ID = id
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// mergeDeps returns want followed by the entries of installed not in want.
func mergeDeps(want, installed []string) []string {
	out := append([]string{}, want...)
	for _, d := range installed {
		if !contains(out, d) {
			out = append(out, d)
		}
	}
	return out
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
