package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeSettings(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "settings.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadSettings_Valid(t *testing.T) {
	t.Setenv("BOTTLECTL_DATA_DIR", "")
	t.Setenv("BOTTLECTL_REPO_URL", "")
	dir := t.TempDir()
	path := writeSettings(t, dir, `
data_dir: /srv/bottles
release_candidate: true
steam_integration: true
construction_timeout: 30s
`)
	s, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.DataDir != "/srv/bottles" {
		t.Errorf("DataDir = %q", s.DataDir)
	}
	if !s.ReleaseCandidate || !s.SteamIntegration {
		t.Errorf("booleans not parsed: %+v", s)
	}
	if s.ConstructionTimeout != 30*time.Second {
		t.Errorf("ConstructionTimeout = %v", s.ConstructionTimeout)
	}
}

func TestLoadSettings_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("BOTTLECTL_DATA_DIR", "")
	t.Setenv("BOTTLECTL_REPO_URL", "")
	s, err := LoadSettings(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if s.RepositoryURL != defaultRepositoryURL {
		t.Errorf("RepositoryURL = %q", s.RepositoryURL)
	}
	if s.ConstructionTimeout != defaultConstructionTimeout {
		t.Errorf("ConstructionTimeout = %v", s.ConstructionTimeout)
	}
	if s.DataDir == "" {
		t.Error("DataDir should default to a home-relative path")
	}
}

func TestLoadSettings_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := writeSettings(t, dir, "data_dir: /from/file\n")
	t.Setenv("BOTTLECTL_DATA_DIR", "/from/env")
	t.Setenv("BOTTLECTL_REPO_URL", "http://mirror.local")

	s, err := LoadSettings(path)
	if err != nil {
		t.Fatal(err)
	}
	if s.DataDir != "/from/env" {
		t.Errorf("env should override file, got %q", s.DataDir)
	}
	if s.RepositoryURL != "http://mirror.local" {
		t.Errorf("RepositoryURL = %q", s.RepositoryURL)
	}
}

func TestLoadSettings_Malformed(t *testing.T) {
	path := writeSettings(t, t.TempDir(), "data_dir: [unclosed\n")
	if _, err := LoadSettings(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestSaveSettingsRoundTrip(t *testing.T) {
	t.Setenv("BOTTLECTL_DATA_DIR", "")
	t.Setenv("BOTTLECTL_REPO_URL", "")
	path := filepath.Join(t.TempDir(), "nested", "settings.yaml")
	in := &Settings{DataDir: "/data", CleanTemp: true, ConstructionTimeout: time.Minute}
	if err := SaveSettings(path, in); err != nil {
		t.Fatal(err)
	}
	out, err := LoadSettings(path)
	if err != nil {
		t.Fatal(err)
	}
	if out.DataDir != "/data" || !out.CleanTemp || out.ConstructionTimeout != time.Minute {
		t.Errorf("round trip mismatch: %+v", out)
	}
}

func TestEnsureDirs(t *testing.T) {
	p := NewPaths(t.TempDir())
	if err := p.EnsureDirs(false, nullLogger()); err != nil {
		t.Fatal(err)
	}
	for _, d := range []string{p.Bottles, p.Runners, p.DXVK, p.Templates, p.Temp} {
		if info, err := os.Stat(d); err != nil || !info.IsDir() {
			t.Errorf("%s should exist", d)
		}
	}
	if _, err := os.Stat(p.Steam); err == nil {
		t.Error("steam dir should not be created without steam integration")
	}
}
