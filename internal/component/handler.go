package component

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"
	"gopkg.in/yaml.v3"
)

// Handler implements scanning, installing and removing for one kind.
type Handler interface {
	Scan(ctx context.Context) ([]string, error)
	Install(ctx context.Context, e Entry) error
	Uninstall(name string) error
}

// SystemWineFunc reports the version string of a wine found on PATH, or ""
// when there is none.
type SystemWineFunc func(ctx context.Context) (string, error)

// SystemPrefix marks the system wine in the runner list.
const SystemPrefix = "sys-"

// menuBuilderPaths are the winemenubuilder.exe locations inside a runner.
// The tool is locked so that bottles do not create desktop entries.
var menuBuilderPaths = []string{
	"lib64/wine/x86_64-windows/winemenubuilder.exe",
	"lib/wine/x86_64-windows/winemenubuilder.exe",
	"lib32/wine/i386-windows/winemenubuilder.exe",
	"lib/wine/i386-windows/winemenubuilder.exe",
}

// dirHandler treats every subdirectory of dir as one installed version.
type dirHandler struct {
	kind Kind
	dir  string
	inst *Installer
}

func (h *dirHandler) Scan(context.Context) ([]string, error) {
	return subdirs(h.dir)
}

func (h *dirHandler) Install(ctx context.Context, e Entry) error {
	return h.inst.Fetch(ctx, e, h.dir)
}

func (h *dirHandler) Uninstall(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("invalid %s name %q", h.kind, name)
	}
	path := filepath.Join(h.dir, name)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%s %s: %w", h.kind, name, err)
	}
	return os.RemoveAll(path)
}

type runnerHandler struct {
	dirHandler
	systemWine SystemWineFunc
	log        hclog.Logger
}

func (h *runnerHandler) Scan(ctx context.Context) ([]string, error) {
	runners, err := subdirs(h.dir)
	if err != nil {
		return nil, err
	}

	for _, r := range runners {
		if strings.Contains(strings.ToLower(r), "proton") {
			continue
		}
		for _, rel := range menuBuilderPaths {
			p := filepath.Join(h.dir, r, rel)
			if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
				if err := os.Rename(p, p+".lock"); err != nil {
					h.log.Warn("cannot lock winemenubuilder", "path", p, "error", err)
				}
			}
		}
	}

	var found []string
	if h.systemWine != nil {
		v, err := h.systemWine(ctx)
		if err != nil {
			h.log.Debug("system wine probe failed", "error", err)
		} else if v != "" {
			found = append(found, SystemPrefix+v)
		}
	}
	return append(found, runners...), nil
}

func (h *runnerHandler) Uninstall(name string) error {
	if strings.HasPrefix(name, SystemPrefix) {
		return fmt.Errorf("%w: %s", ErrSystemRunner, name)
	}
	return h.dirHandler.Uninstall(name)
}

// runtimeHandler reads the version of the single installed runtime from
// its manifest.yml.
type runtimeHandler struct {
	dirHandler
}

func (h *runtimeHandler) Scan(context.Context) ([]string, error) {
	dirs, err := subdirs(h.dir)
	if err != nil || len(dirs) == 0 {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(h.dir, dirs[0], "manifest.yml"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var m struct {
		Version string `yaml:"version"`
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("runtime manifest: %w", err)
	}
	if m.Version == "" {
		return nil, nil
	}
	return []string{"runtime-" + m.Version}, nil
}

func (h *runtimeHandler) Uninstall(string) error {
	return clearDir(h.dir)
}

// wineBridgeHandler reads the installed version from a VERSION file. The
// archive is unpacked straight into the directory.
type wineBridgeHandler struct {
	dirHandler
}

func (h *wineBridgeHandler) Scan(context.Context) ([]string, error) {
	data, err := os.ReadFile(filepath.Join(h.dir, "VERSION"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	v := strings.TrimSpace(string(data))
	if v == "" {
		return nil, nil
	}
	return []string{"winebridge-" + v}, nil
}

func (h *wineBridgeHandler) Uninstall(string) error {
	return clearDir(h.dir)
}

func subdirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func clearDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

// ProbeSystemWine runs "wine --version" when wine is on PATH.
func ProbeSystemWine(ctx context.Context) (string, error) {
	bin, err := exec.LookPath("wine")
	if err != nil {
		return "", nil
	}
	out, err := exec.CommandContext(ctx, bin, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("wine --version: %w", err)
	}
	line, _, _ := strings.Cut(string(out), "\n")
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], nil
}
