package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultRepositoryURL       = "https://raw.githubusercontent.com/bottlesdevs/components/main"
	defaultDependenciesURL     = "https://raw.githubusercontent.com/bottlesdevs/dependencies/main"
	defaultConstructionTimeout = 5 * time.Minute
)

// Settings holds user-editable application settings.
// Stored in ~/.config/bottlectl/settings.yaml.
type Settings struct {
	DataDir          string `yaml:"data_dir"`
	RepositoryURL    string `yaml:"repository_url"`
	DependenciesURL  string `yaml:"dependencies_url"`
	ReleaseCandidate bool   `yaml:"release_candidate"` // allow rc/unstable runners on auto-install
	SteamIntegration bool   `yaml:"steam_integration"`
	CleanTemp        bool   `yaml:"clean_temp"`
	// ConstructionTimeout bounds every wait performed while a bottle is built.
	ConstructionTimeout time.Duration `yaml:"construction_timeout"`
}

func settingsDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "bottlectl"), nil
}

// SettingsPath returns the default location of settings.yaml.
func SettingsPath() (string, error) {
	dir, err := settingsDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "settings.yaml"), nil
}

// LoadSettings reads the settings file at path. A missing file yields the
// defaults. Environment variables override file values.
func LoadSettings(path string) (*Settings, error) {
	var s Settings

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("reading settings: %w", err)
	default:
		if err := yaml.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	if v := os.Getenv("BOTTLECTL_DATA_DIR"); v != "" {
		s.DataDir = v
	}
	if v := os.Getenv("BOTTLECTL_REPO_URL"); v != "" {
		s.RepositoryURL = v
	}

	if err := applyDefaults(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

// SaveSettings writes s to path, creating the parent directory.
func SaveSettings(path string, s *Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

func applyDefaults(s *Settings) error {
	if s.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		s.DataDir = filepath.Join(home, ".local", "share", "bottles")
	}
	if s.RepositoryURL == "" {
		s.RepositoryURL = defaultRepositoryURL
	}
	if s.DependenciesURL == "" {
		s.DependenciesURL = defaultDependenciesURL
	}
	if s.ConstructionTimeout <= 0 {
		s.ConstructionTimeout = defaultConstructionTimeout
	}
	return nil
}
