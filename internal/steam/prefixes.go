package steam

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/flo-mic/bottlectl/internal/bottle"
)

const launchOptionsKey = "LaunchOptions"

// defaultPrefixApp is the shared Proton prefix Steam keeps for itself.
const defaultPrefixApp = "Proton Experimental"

// apps returns the per-app mapping of localconfig.vdf.
func apps(conf map[string]interface{}) map[string]interface{} {
	steam := child(conf, "UserLocalConfigStore", "Software", "Valve", "Steam")
	if steam == nil {
		return nil
	}
	if a := child(steam, "apps"); len(a) > 0 {
		return a
	}
	return child(steam, "Apps")
}

// runnerPath reads compatdata/<id>/config_info and returns the Proton
// name and directory it was created with.
func (s *Synchronizer) runnerPath(compat string) (name, path string, ok bool) {
	data, err := os.ReadFile(filepath.Join(compat, "config_info"))
	if err != nil {
		return "", "", false
	}
	lines := trimLines(data)
	if len(lines) < 10 {
		s.log.Error("invalid config_info file", "path", compat)
		return "", "", false
	}
	line := strings.TrimSpace(lines[2])
	if len(line) <= 5 {
		return "", "", false
	}
	path = line[:len(line)-5]
	if !isDir(path) {
		s.log.Error("is not a valid Steam Proton path", "path", path)
		return "", "", false
	}
	return filepath.Base(filepath.Dir(path)), path, true
}

// ListPrefixes builds a bottle configuration for every Steam app that owns
// a Proton prefix, keyed by app id.
func (s *Synchronizer) ListPrefixes() (map[string]*bottle.Config, error) {
	conf, err := s.LocalConfig()
	if err != nil {
		return nil, err
	}

	prefixes := map[string]*bottle.Config{}
	for id, raw := range apps(conf) {
		appdata, _ := raw.(map[string]interface{})

		lib, ok := s.appLibraryPath(id)
		if !ok {
			continue
		}
		compat := filepath.Join(lib, "steamapps", "compatdata", id)
		if !isDir(filepath.Join(compat, "pfx")) {
			s.log.Warn("app does not contain a prefix", "app", id)
			continue
		}

		state, err := s.appState(id)
		if err != nil {
			s.log.Warn("steam prefix found without ACF, skipping", "app", id, "error", err)
			continue
		}
		if str(state, "name") == defaultPrefixApp {
			continue
		}
		runner, runnerPath, ok := s.runnerPath(compat)
		if !ok {
			s.log.Warn("steam prefix found without Proton, skipping", "app", id)
			continue
		}

		opts, err := ParseLaunchOptions(str(appdata, launchOptionsKey))
		if err != nil {
			s.log.Warn("cannot parse launch options", "app", id, "error", err)
		}

		c := bottle.Default()
		c.Name = str(state, "name")
		c.Environment = bottle.Steam
		c.CompatData = id
		c.Path = filepath.Join(compat, "pfx")
		c.Runner = runner
		c.RunnerPath = runnerPath
		c.WorkingDir = filepath.Join(c.Path, "drive_c")
		if info, err := os.Stat(compat); err == nil {
			c.CreationDate = bottle.FormatTime(info.ModTime())
		}
		if ts, err := strconv.ParseInt(str(state, "LastUpdated"), 10, 64); err == nil {
			c.UpdateDate = bottle.FormatTime(time.Unix(ts, 0))
		}
		c.Parameters["mangohud"] = strings.Contains(opts.Command, "mangohud")
		c.Parameters["gamemode"] = strings.Contains(opts.Command, "gamemode")
		c.EnvironmentVariables = opts.Env.Map()

		prefixes[id] = c
	}
	return prefixes, nil
}

// UpdateBottles regenerates the mirrored bottles from scratch and returns
// the prefixes it wrote.
func (s *Synchronizer) UpdateBottles() (map[string]*bottle.Config, error) {
	prefixes, err := s.ListPrefixes()
	if err != nil {
		return nil, err
	}
	if err := os.RemoveAll(s.bottlesDir); err != nil {
		return nil, err
	}
	for _, id := range sortedIDs(prefixes) {
		dir := filepath.Join(s.bottlesDir, id)
		s.log.Info("creating bottle for steam prefix", "app", id)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
		if err := bottle.Save(dir, prefixes[id]); err != nil {
			return nil, err
		}
	}
	return prefixes, nil
}

// GetLaunchOptions returns the parsed launch options of appID.
func (s *Synchronizer) GetLaunchOptions(appID string) (LaunchOptions, error) {
	conf, err := s.LocalConfig()
	if err != nil {
		return LaunchOptions{}, err
	}
	appdata := child(apps(conf), appID)
	return ParseLaunchOptions(str(appdata, launchOptionsKey))
}

// SetLaunchOptions merges env into the launch options of appID, replaces
// the command and writes localconfig.vdf. Existing variables not in env
// are kept, as are existing arguments when args is empty.
func (s *Synchronizer) SetLaunchOptions(appID string, opts LaunchOptions) error {
	return s.editLaunchOptions(appID, func(o *LaunchOptions) {
		o.Merge(opts.Command, opts.Env)
		if a := strings.TrimSpace(opts.Args); a != "" {
			o.Args = a
		}
	})
}

// DelLaunchOption removes one environment variable (kind "env_vars") or
// every occurrence of key in the command (kind "command") from the launch
// options of appID.
func (s *Synchronizer) DelLaunchOption(appID, kind, key string) error {
	switch kind {
	case "env_vars":
		return s.editLaunchOptions(appID, func(o *LaunchOptions) { o.Env.Delete(key) })
	case "command":
		return s.editLaunchOptions(appID, func(o *LaunchOptions) { o.RemoveCommand(key) })
	default:
		return fmt.Errorf("unknown launch option kind %q", kind)
	}
}

func (s *Synchronizer) editLaunchOptions(appID string, edit func(*LaunchOptions)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conf, err := s.LocalConfig()
	if err != nil {
		return err
	}
	all := apps(conf)
	if all == nil {
		return fmt.Errorf("localconfig.vdf has no apps section")
	}
	appdata := child(all, appID)
	if appdata == nil {
		appdata = map[string]interface{}{}
		all[appID] = appdata
	}

	opts, err := ParseLaunchOptions(str(appdata, launchOptionsKey))
	if err != nil {
		return fmt.Errorf("parsing launch options of %s: %w", appID, err)
	}
	edit(&opts)
	appdata[launchOptionsKey] = opts.String()
	return s.SaveLocalConfig(conf)
}

// steamParams maps bottle parameters to the environment Proton reads.
var steamParams = []struct {
	param string
	env   func(p bottle.Parameters) (string, string, bool)
}{
	{"dxvk_hud", flag("DXVK_HUD", "devinfo,memory,drawcalls,fps,version,api,compiler")},
	{"obsvkc", flag("OBS_VKCAPTURE", "1")},
	{"vkbasalt", flag("ENABLE_VKBASALT", "1")},
	{"latencyflex", flag("PROTON_ENABLE_LATENCYFLEX", "1")},
	{"fsr", flag("WINE_FULLSCREEN_FSR", "1")},
	{"fsr_level", func(p bottle.Parameters) (string, string, bool) {
		if !p.Bool("fsr") {
			return "", "", false
		}
		return "WINE_FULLSCREEN_FSR_STRENGTH", fmt.Sprint(p["fsr_level"]), true
	}},
	{"discrete_gpu", flag("DRI_PRIME", "1")},
	{"pulseaudio_latency", flag("PULSE_LATENCY_MSEC", "60")},
}

func flag(key, value string) func(bottle.Parameters) (string, string, bool) {
	return func(p bottle.Parameters) (string, string, bool) { return key, value, true }
}

// UpdateBottle pushes the settings of a mirrored bottle back into the
// launch options of its app.
func (s *Synchronizer) UpdateBottle(c *bottle.Config) error {
	if c.CompatData == "" {
		return fmt.Errorf("bottle %q is not a steam prefix", c.Name)
	}

	var env EnvList
	for _, k := range sortedKeys(c.EnvironmentVariables) {
		env.Set(k, c.EnvironmentVariables[k])
	}
	for _, sp := range steamParams {
		if sp.param != "fsr_level" && !c.Parameters.Bool(sp.param) {
			continue
		}
		if k, v, ok := sp.env(c.Parameters); ok {
			env.Set(k, v)
		}
	}

	var command []string
	if c.Parameters.Bool("gamemode") {
		command = append(command, "gamemoderun")
	}
	if c.Parameters.Bool("mangohud") {
		command = append(command, "mangohud")
	}

	return s.editLaunchOptions(c.CompatData, func(o *LaunchOptions) {
		o.Merge(strings.Join(command, " "), env)
	})
}

func sortedIDs(m map[string]*bottle.Config) []string {
	ids := make([]string, 0, len(m))
	for k := range m {
		ids = append(ids, k)
	}
	sort.Strings(ids)
	return ids
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
