package dependency

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/flo-mic/bottlectl/internal/archive"
	"github.com/flo-mic/bottlectl/internal/bottle"
	"github.com/flo-mic/bottlectl/internal/checksum"
	"github.com/flo-mic/bottlectl/internal/fsutil"
	"github.com/flo-mic/bottlectl/internal/wine"
	"github.com/gobwas/glob"
	"github.com/hashicorp/go-hclog"
)

var (
	// ErrUnknown is returned for a dependency the catalog does not list.
	ErrUnknown = errors.New("unknown dependency")
	// ErrUnsupportedStep is returned for manifest steps that would run
	// Windows programs.
	ErrUnsupportedStep = errors.New("unsupported dependency step")
)

// Manifest describes how to install one dependency.
type Manifest struct {
	Name         string   `yaml:"Name"`
	Description  string   `yaml:"Description"`
	Provider     string   `yaml:"Provider"`
	Dependencies []string `yaml:"Dependencies"`
	Steps        []Step   `yaml:"Steps"`
	Uninstaller  string   `yaml:"Uninstaller"`
}

// Step is one manifest action. Which fields are used depends on Action.
type Step struct {
	Action   string `yaml:"action"`
	FileName string `yaml:"file_name"`
	URL      string `yaml:"url"`
	Checksum string `yaml:"file_checksum"`
	Rename   string `yaml:"rename"`
	FilePath string `yaml:"file_path"`
	Dest     string `yaml:"dest"`
	DLL      string `yaml:"dll"`
	Type     string `yaml:"type"`
	Key      string `yaml:"key"`
	Value    string `yaml:"value"`
	Data     string `yaml:"data"`
	KeyType  string `yaml:"key_type"`
	Font     string `yaml:"font"`
}

// Installer applies dependency manifests to bottles.
type Installer struct {
	src     Source
	catalog *Catalog
	temp    string
	reg     wine.Registry
	log     hclog.Logger
}

// NewInstaller returns an installer downloading into temp.
func NewInstaller(src Source, catalog *Catalog, temp string, reg wine.Registry, log hclog.Logger) *Installer {
	return &Installer{src: src, catalog: catalog, temp: temp, reg: reg, log: log.Named("dependencies")}
}

// SetCatalog replaces the catalog used to resolve names.
func (i *Installer) SetCatalog(c *Catalog) { i.catalog = c }

// Catalog returns the catalog in use.
func (i *Installer) Catalog() *Catalog { return i.catalog }

// Manifest fetches the manifest of name.
func (i *Installer) Manifest(ctx context.Context, name string) (*Manifest, error) {
	e, ok := i.catalog.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknown, name)
	}
	var m Manifest
	if err := i.src.GetYAML(ctx, e.manifestPath(), &m); err != nil {
		return nil, fmt.Errorf("manifest for %s: %w", name, err)
	}
	return &m, nil
}

// Install installs name and the dependencies it declares into the bottle
// at p, recording them in cfg. The caller persists cfg.
func (i *Installer) Install(ctx context.Context, p wine.Prefix, cfg *bottle.Config, name string) error {
	return i.install(ctx, p, cfg, name, map[string]bool{})
}

func (i *Installer) install(ctx context.Context, p wine.Prefix, cfg *bottle.Config, name string, visiting map[string]bool) error {
	if contains(cfg.InstalledDependencies, name) {
		return nil
	}
	if visiting[name] {
		return fmt.Errorf("dependency cycle at %s", name)
	}
	visiting[name] = true

	m, err := i.Manifest(ctx, name)
	if err != nil {
		return err
	}
	for _, dep := range Missing(m.Dependencies, cfg.InstalledDependencies) {
		if err := i.install(ctx, p, cfg, dep, visiting); err != nil {
			return fmt.Errorf("%s requires %s: %w", name, dep, err)
		}
	}

	i.log.Info("installing dependency", "name", name, "bottle", cfg.Name)
	for n, step := range m.Steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := i.step(ctx, p, cfg, step); err != nil {
			return fmt.Errorf("%s step %d (%s): %w", name, n+1, step.Action, err)
		}
	}

	cfg.InstalledDependencies = append(cfg.InstalledDependencies, name)
	if m.Uninstaller != "" {
		if cfg.Uninstallers == nil {
			cfg.Uninstallers = map[string]string{}
		}
		cfg.Uninstallers[name] = m.Uninstaller
	}
	return nil
}

func (i *Installer) step(ctx context.Context, p wine.Prefix, cfg *bottle.Config, s Step) error {
	switch s.Action {
	case "download_archive":
		_, err := i.download(ctx, s)
		return err
	case "archive_extract":
		return i.extract(s)
	case "copy_dll", "copy_file":
		return i.copy(p, s)
	case "override_dll":
		return i.override(ctx, p, cfg, s)
	case "set_register_key":
		return i.reg.Add(ctx, p, wine.RegEntry{Key: s.Key, Value: s.Value, Data: s.Data, Type: s.KeyType})
	case "register_font":
		return i.reg.Add(ctx, p, wine.RegEntry{
			Key:   `HKEY_LOCAL_MACHINE\Software\Microsoft\Windows NT\CurrentVersion\Fonts`,
			Value: s.Font,
			Data:  s.FileName,
		})
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedStep, s.Action)
}

func (i *Installer) download(ctx context.Context, s Step) (string, error) {
	name := s.FileName
	if s.Rename != "" {
		name = s.Rename
	}
	if name == "" || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	local := filepath.Join(i.temp, name)
	if _, err := os.Stat(local); err == nil && checksum.Verify(local, s.Checksum) == nil {
		return local, nil
	}
	if _, err := i.src.Download(ctx, s.URL, local); err != nil {
		return "", err
	}
	if err := checksum.Verify(local, s.Checksum); err != nil {
		os.Remove(local)
		return "", err
	}
	return local, nil
}

// extract unpacks a downloaded archive into temp/<archive stem>.
func (i *Installer) extract(s Step) error {
	src := filepath.Join(i.temp, s.FileName)
	dest := filepath.Join(i.temp, strings.TrimSuffix(strings.TrimSuffix(s.FileName, filepath.Ext(s.FileName)), ".tar"))
	return archive.ExtractFile(src, dest, "")
}

// copy copies the files matching file_name from temp/file_path into dest.
// dest "win32" and "win64" name the system directories of the prefix,
// anything else is relative to the prefix.
func (i *Installer) copy(p wine.Prefix, s Step) error {
	srcDir := filepath.Join(i.temp, filepath.Clean("/"+s.FilePath))
	dest, err := prefixDir(p, s.Dest)
	if err != nil {
		return err
	}

	g, err := glob.Compile(s.FileName)
	if err != nil {
		return fmt.Errorf("file pattern %q: %w", s.FileName, err)
	}
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return err
	}
	copied := 0
	for _, e := range entries {
		if e.IsDir() || !g.Match(e.Name()) {
			continue
		}
		if err := fsutil.PlaceFile(filepath.Join(srcDir, e.Name()), filepath.Join(dest, e.Name()), 0644); err != nil {
			return err
		}
		copied++
	}
	if copied == 0 {
		return fmt.Errorf("no file matching %q in %s", s.FileName, s.FilePath)
	}
	return nil
}

func (i *Installer) override(ctx context.Context, p wine.Prefix, cfg *bottle.Config, s Step) error {
	typ := s.Type
	if typ == "" {
		typ = "native,builtin"
	}
	if err := i.reg.Add(ctx, p, wine.RegEntry{Key: wine.DLLOverridesKey, Value: s.DLL, Data: typ}); err != nil {
		return err
	}
	if cfg.DLLOverrides == nil {
		cfg.DLLOverrides = map[string]string{}
	}
	cfg.DLLOverrides[s.DLL] = typ
	return nil
}

func prefixDir(p wine.Prefix, dest string) (string, error) {
	windows := filepath.Join(p.Path, "drive_c", "windows")
	switch dest {
	case "win64":
		return filepath.Join(windows, "system32"), nil
	case "win32":
		if p.Arch == "win32" {
			return filepath.Join(windows, "system32"), nil
		}
		return filepath.Join(windows, "syswow64"), nil
	case "":
		return "", errors.New("copy step without dest")
	}
	return filepath.Join(p.Path, filepath.Clean("/"+dest)), nil
}

// Remove runs the recorded uninstaller of name, if any, and drops it from
// cfg. The caller persists cfg.
func Remove(ctx context.Context, u wine.Uninstaller, p wine.Prefix, cfg *bottle.Config, name string) error {
	if program, ok := cfg.Uninstallers[name]; ok && u != nil {
		if err := u.Remove(ctx, p, program); err != nil {
			return fmt.Errorf("uninstalling %s: %w", name, err)
		}
		delete(cfg.Uninstallers, name)
	}
	cfg.InstalledDependencies = Without(cfg.InstalledDependencies, name)
	return nil
}
