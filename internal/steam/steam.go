// Package steam mirrors Proton prefixes of a local Steam installation as
// bottles and edits their launch options in localconfig.vdf.
package steam

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dchest/safefile"
	"github.com/flo-mic/bottlectl/internal/fsutil"
	"github.com/hashicorp/go-hclog"
)

// ErrNoSteam is returned when no Steam installation was found.
var ErrNoSteam = errors.New("steam: installation not found")

// FindRoot returns the first Steam data directory below home, checking the
// native layout before the Flatpak one. It returns "" when neither exists.
func FindRoot(home string) string {
	for _, p := range []string{
		filepath.Join(home, ".local", "share", "Steam"),
		filepath.Join(home, ".var", "app", "com.valvesoftware.Steam", "data", "Steam"),
	} {
		if isDir(p) {
			return p
		}
	}
	return ""
}

// Synchronizer reads and writes one Steam installation.
type Synchronizer struct {
	root       string
	bottlesDir string
	log        hclog.Logger

	mu sync.Mutex

	// Open hands a steam:// URL to the desktop. Replaced in tests.
	Open func(ctx context.Context, url string) error
	// Now stamps localconfig.vdf backups.
	Now func() time.Time
}

// NewSynchronizer returns a synchronizer for the installation at root that
// mirrors prefixes into bottlesDir.
func NewSynchronizer(root, bottlesDir string, log hclog.Logger) *Synchronizer {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Synchronizer{
		root:       root,
		bottlesDir: bottlesDir,
		log:        log.Named("steam"),
		Open:       xdgOpen,
		Now:        time.Now,
	}
}

// Root returns the Steam data directory.
func (s *Synchronizer) Root() string { return s.root }

// Supported reports whether the installation has a user localconfig.vdf.
func (s *Synchronizer) Supported() bool {
	_, err := s.LocalConfigPath()
	return err == nil
}

// LocalConfigPath returns the localconfig.vdf of the first Steam user.
func (s *Synchronizer) LocalConfigPath() (string, error) {
	if s.root == "" {
		return "", ErrNoSteam
	}
	matches, err := filepath.Glob(filepath.Join(s.root, "userdata", "*", "config", "localconfig.vdf"))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%w: no localconfig.vdf below %s", ErrNoSteam, s.root)
	}
	sort.Strings(matches)
	return matches[0], nil
}

// LocalConfig parses localconfig.vdf.
func (s *Synchronizer) LocalConfig() (map[string]interface{}, error) {
	path, err := s.LocalConfigPath()
	if err != nil {
		return nil, err
	}
	return readVDF(path)
}

// SaveLocalConfig backs up localconfig.vdf next to itself and writes conf
// in its place.
func (s *Synchronizer) SaveLocalConfig(conf map[string]interface{}) error {
	path, err := s.LocalConfigPath()
	if err != nil {
		return err
	}
	backup := path + ".bck." + s.Now().Format("2006-01-02_15-04-05")
	if err := fsutil.PlaceFile(path, backup, 0); err != nil {
		return fmt.Errorf("backing up %s: %w", path, err)
	}

	f, err := safefile.Create(path, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := writeVDF(f, conf); err != nil {
		return err
	}
	return f.Commit()
}

// library is one entry of libraryfolders.vdf.
type library struct {
	path string
	apps map[string]interface{}
}

// libraryFolders lists Steam library folders holding at least one app.
func (s *Synchronizer) libraryFolders() ([]library, error) {
	path := filepath.Join(s.root, "steamapps", "libraryfolders.vdf")
	m, err := readVDF(path)
	if err != nil {
		return nil, err
	}
	folders := child(m, "libraryfolders")
	if folders == nil {
		return nil, nil
	}

	keys := make([]string, 0, len(folders))
	for k := range folders {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var libs []library
	for _, k := range keys {
		f, ok := folders[k].(map[string]interface{})
		if !ok {
			continue
		}
		p := str(f, "path")
		apps := child(f, "apps")
		if p == "" || apps == nil {
			continue
		}
		libs = append(libs, library{path: p, apps: apps})
	}
	return libs, nil
}

// appLibraryPath returns the library folder that holds appID.
func (s *Synchronizer) appLibraryPath(appID string) (string, bool) {
	libs, err := s.libraryFolders()
	if err != nil {
		s.log.Warn("cannot read library folders", "error", err)
		return "", false
	}
	for _, l := range libs {
		if _, ok := l.apps[appID]; ok {
			return l.path, true
		}
	}
	return "", false
}

// appState reads steamapps/appmanifest_<id>.acf of the library holding appID.
func (s *Synchronizer) appState(appID string) (map[string]interface{}, error) {
	lib, ok := s.appLibraryPath(appID)
	if !ok {
		return nil, fmt.Errorf("app %s is in no library folder", appID)
	}
	path := filepath.Join(lib, "steamapps", "appmanifest_"+appID+".acf")
	m, err := readVDF(path)
	if err != nil {
		return nil, err
	}
	state := child(m, "AppState")
	if state == nil {
		return nil, fmt.Errorf("%s has no AppState", path)
	}
	return state, nil
}

// LaunchApp asks the Steam client to run appID.
func (s *Synchronizer) LaunchApp(ctx context.Context, appID string) error {
	return s.Open(ctx, "steam://rungameid/"+appID)
}

func xdgOpen(ctx context.Context, url string) error {
	return exec.CommandContext(ctx, "xdg-open", url).Start()
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}

func trimLines(data []byte) []string {
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}
