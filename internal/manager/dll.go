package manager

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/flo-mic/bottlectl/internal/bottle"
	"github.com/flo-mic/bottlectl/internal/component"
	"github.com/flo-mic/bottlectl/internal/fsutil"
	"github.com/flo-mic/bottlectl/internal/wine"
)

const nativeBuiltin = "native,builtin"

// versionField returns the config field holding the version of a DLL
// component kind, nil for other kinds.
func versionField(c *bottle.Config, k component.Kind) *string {
	switch k {
	case component.DXVK:
		return &c.DXVK
	case component.VKD3D:
		return &c.VKD3D
	case component.NVAPI:
		return &c.NVAPI
	case component.LatencyFleX:
		return &c.LatencyFleX
	}
	return nil
}

var layerParams = map[component.Kind]string{
	component.DXVK:        "dxvk",
	component.VKD3D:       "vkd3d",
	component.NVAPI:       "dxvk_nvapi",
	component.LatencyFleX: "latencyflex",
}

// InstallDLLComponent copies the libraries of a DXVK, VKD3D, NVAPI or
// LatencyFleX version into the bottle, or removes them, and records the
// matching DLL overrides. An empty version means the one in the config.
func (m *Manager) InstallDLLComponent(ctx context.Context, c *bottle.Config, k component.Kind, remove bool, version string) error {
	unlock := m.locks.Lock(c.Name)
	defer unlock()
	if err := m.installDLLs(ctx, c, k, remove, version); err != nil {
		return err
	}
	c.UpdateDate = bottle.Now()
	return m.save(c)
}

func (m *Manager) installDLLs(ctx context.Context, c *bottle.Config, k component.Kind, remove bool, version string) error {
	field := versionField(c, k)
	if field == nil {
		return fmt.Errorf("%s is not a dll component", k)
	}
	if version == "" {
		version = *field
	}
	if version == "" {
		return fmt.Errorf("no %s version selected", k)
	}

	plan, err := component.PlanDLLs(filepath.Join(k.Dir(m.paths), version), c.Arch)
	if err != nil {
		return fmt.Errorf("reading %s %s: %w", k, version, err)
	}
	if c.DLLOverrides == nil {
		c.DLLOverrides = map[string]string{}
	}
	if c.Parameters == nil {
		c.Parameters = bottle.Parameters{}
	}

	p := m.prefix(c)
	system := filepath.Join(p.Path, "drive_c", "windows")
	for _, d := range plan {
		target := filepath.Join(system, d.Target)
		if remove {
			if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			if err := m.wine.Reg.Delete(ctx, p, wine.DLLOverridesKey, d.Name); err != nil {
				m.log.Warn("dll override not removed", "dll", d.Name, "error", err)
			}
			delete(c.DLLOverrides, d.Name)
			continue
		}
		if err := fsutil.PlaceFile(d.Src, target, 0644); err != nil {
			return err
		}
		if err := m.wine.Reg.Add(ctx, p, wine.RegEntry{
			Key:   wine.DLLOverridesKey,
			Value: d.Name,
			Data:  nativeBuiltin,
		}); err != nil {
			return fmt.Errorf("overriding %s: %w", d.Name, err)
		}
		c.DLLOverrides[d.Name] = nativeBuiltin
	}

	c.Parameters[layerParams[k]] = !remove
	if !remove {
		*field = version
	}
	m.log.Debug("dll component applied", "kind", k.String(), "version", version, "dlls", len(plan), "removed", remove)
	return nil
}
