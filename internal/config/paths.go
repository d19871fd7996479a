package config

import (
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
)

// Paths is the on-disk layout below the data directory.
type Paths struct {
	Base         string
	Bottles      string
	Runners      string
	Runtimes     string
	WineBridge   string
	DXVK         string
	VKD3D        string
	NVAPI        string
	LatencyFleX  string
	Templates    string
	Layers       string
	Steam        string
	Temp         string
	Applications string // .desktop entries created for bottle programs
}

// NewPaths derives the layout from base.
func NewPaths(base string) Paths {
	home, _ := os.UserHomeDir()
	return Paths{
		Base:         base,
		Bottles:      filepath.Join(base, "bottles"),
		Runners:      filepath.Join(base, "runners"),
		Runtimes:     filepath.Join(base, "runtimes"),
		WineBridge:   filepath.Join(base, "winebridge"),
		DXVK:         filepath.Join(base, "dxvk"),
		VKD3D:        filepath.Join(base, "vkd3d"),
		NVAPI:        filepath.Join(base, "nvapi"),
		LatencyFleX:  filepath.Join(base, "latencyflex"),
		Templates:    filepath.Join(base, "templates"),
		Layers:       filepath.Join(base, "layers"),
		Steam:        filepath.Join(base, "steam"),
		Temp:         filepath.Join(base, "temp"),
		Applications: filepath.Join(home, ".local", "share", "applications"),
	}
}

// EnsureDirs creates every missing directory of the layout. The Steam
// directory is only created when withSteam is set.
func (p Paths) EnsureDirs(withSteam bool, log hclog.Logger) error {
	dirs := []struct {
		name string
		path string
	}{
		{"runners", p.Runners},
		{"runtimes", p.Runtimes},
		{"winebridge", p.WineBridge},
		{"bottles", p.Bottles},
		{"layers", p.Layers},
		{"dxvk", p.DXVK},
		{"vkd3d", p.VKD3D},
		{"nvapi", p.NVAPI},
		{"latencyflex", p.LatencyFleX},
		{"templates", p.Templates},
		{"temp", p.Temp},
	}
	if withSteam {
		dirs = append(dirs, struct {
			name string
			path string
		}{"steam", p.Steam})
	}

	for _, d := range dirs {
		if info, err := os.Stat(d.path); err == nil && info.IsDir() {
			continue
		}
		log.Info("path doesn't exist, creating now", "dir", d.name, "path", d.path)
		if err := os.MkdirAll(d.path, 0755); err != nil {
			return err
		}
	}
	return nil
}

// CleanTemp empties the temp directory.
func (p Paths) CleanTemp() error {
	if err := os.RemoveAll(p.Temp); err != nil {
		return err
	}
	return os.MkdirAll(p.Temp, 0755)
}
