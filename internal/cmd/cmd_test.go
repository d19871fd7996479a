package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/flo-mic/bottlectl/internal/backup"
	"github.com/flo-mic/bottlectl/internal/bottle"
)

func run(t *testing.T, dataDir string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := NewRootCommand(&out, &errOut)
	settings := filepath.Join(t.TempDir(), "settings.yaml")
	root.SetArgs(append(args, "--settings", settings, "--data-dir", dataDir, "--log-level", "error"))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func seedBottle(t *testing.T, dataDir, name, content string) string {
	t.Helper()
	dir := filepath.Join(dataDir, "bottles", name)
	if err := os.MkdirAll(filepath.Join(dir, "drive_c", "users"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, bottle.ConfigFile), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "system.reg"), []byte("WINE REGISTRY Version 2\n"), 0644); err != nil {
		t.Fatal(err)
	}
	return dir
}

const gamesBottle = "Name: Games\nPath: Games\nEnvironment: Gaming\nRunner: caffe-7.20\n"

func TestListEmpty(t *testing.T) {
	data := t.TempDir()
	out, err := run(t, data, "list")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(out, "NAME") {
		t.Errorf("expected table header, got:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(data, "bottles")); err != nil {
		t.Errorf("bottles dir should be created: %v", err)
	}
}

func TestListShowsBottles(t *testing.T) {
	data := t.TempDir()
	seedBottle(t, data, "Games", gamesBottle)

	out, err := run(t, data, "ls")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"Games", "Gaming", "caffe-7.20", filepath.Join(data, "bottles", "Games")} {
		if !strings.Contains(out, want) {
			t.Errorf("output should contain %q, got:\n%s", want, out)
		}
	}
}

func TestSet(t *testing.T) {
	data := t.TempDir()
	dir := seedBottle(t, data, "Games", gamesBottle)

	if _, err := run(t, data, "set", "Games", "Windows", "win7"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := run(t, data, "set", "Games", "dxvk_hud", "true", "--scope", "Parameters"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c, err := bottle.Load(filepath.Join(dir, bottle.ConfigFile))
	if err != nil {
		t.Fatal(err)
	}
	if c.Windows != "win7" {
		t.Errorf("Windows = %q, want win7", c.Windows)
	}
	if c.Parameters["dxvk_hud"] != true {
		t.Errorf("dxvk_hud = %#v, want true", c.Parameters["dxvk_hud"])
	}
}

func TestSetMissingValue(t *testing.T) {
	data := t.TempDir()
	seedBottle(t, data, "Games", gamesBottle)

	_, err := run(t, data, "set", "Games", "Windows")
	if err == nil || !strings.Contains(err.Error(), "missing value") {
		t.Fatalf("expected missing value error, got %v", err)
	}
}

func TestBottleNotFound(t *testing.T) {
	_, err := run(t, t.TempDir(), "delete", "nope", "--yes")
	if err == nil || !strings.Contains(err.Error(), `"nope" not found`) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestDuplicate(t *testing.T) {
	data := t.TempDir()
	seedBottle(t, data, "Games", gamesBottle)

	out, err := run(t, data, "duplicate", "Games", "Games Copy")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, `"Games Copy"`) {
		t.Errorf("unexpected output:\n%s", out)
	}
	dup := filepath.Join(data, "bottles", "Games-Copy")
	for _, f := range []string{bottle.ConfigFile, "system.reg", "drive_c/users"} {
		if _, err := os.Stat(filepath.Join(dup, f)); err != nil {
			t.Errorf("%s missing in duplicate: %v", f, err)
		}
	}

	out, err = run(t, data, "list")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Games Copy") {
		t.Errorf("duplicate should be listed, got:\n%s", out)
	}
}

func TestBackupExportConfig(t *testing.T) {
	data := t.TempDir()
	seedBottle(t, data, "Games", gamesBottle)
	dest := filepath.Join(t.TempDir(), "games.yml")

	if _, err := run(t, data, "backup", "export", "Games", dest); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c, err := bottle.Load(dest)
	if err != nil {
		t.Fatal(err)
	}
	if c.Name != "Games" || c.Environment != bottle.Gaming {
		t.Errorf("unexpected backup content: %s %s", c.Name, c.Environment)
	}
}

func TestBackupUnknownScope(t *testing.T) {
	data := t.TempDir()
	seedBottle(t, data, "Games", gamesBottle)

	if _, err := run(t, data, "backup", "export", "Games", "--scope", "partial"); err == nil {
		t.Fatal("expected error for unknown scope")
	}
}

func TestNewRejectsEnvironment(t *testing.T) {
	for _, env := range []string{"nope", "steam"} {
		_, err := run(t, t.TempDir(), "new", "X", "--env", env)
		if err == nil || !strings.Contains(err.Error(), "unknown environment") {
			t.Errorf("--env %s: expected unknown environment error, got %v", env, err)
		}
	}
}

func TestStatesRequireVersioning(t *testing.T) {
	data := t.TempDir()
	seedBottle(t, data, "Games", gamesBottle)

	_, err := run(t, data, "states", "create", "Games")
	if err == nil || !strings.Contains(err.Error(), "versioning is disabled") {
		t.Fatalf("expected versioning error, got %v", err)
	}
}

func TestStatesCreateAndList(t *testing.T) {
	data := t.TempDir()
	dir := seedBottle(t, data, "Games", gamesBottle+"Versioning: true\n")

	if _, err := run(t, data, "states", "create", "Games", "Before mods"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out, err := run(t, data, "states", "list", "Games")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Before mods") || !strings.Contains(out, "1 *") {
		t.Errorf("state should be listed as current, got:\n%s", out)
	}
	c, err := bottle.Load(filepath.Join(dir, bottle.ConfigFile))
	if err != nil {
		t.Fatal(err)
	}
	if c.State != 1 {
		t.Errorf("State = %d, want 1", c.State)
	}
}

func TestTemplatesListEmpty(t *testing.T) {
	out, err := run(t, t.TempDir(), "templates", "list")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out) != "UUID  ENVIRONMENT  RUNNER  CREATED" {
		t.Errorf("unexpected output:\n%q", out)
	}
}

func TestSteamDisabled(t *testing.T) {
	_, err := run(t, t.TempDir(), "steam", "list")
	if !errors.Is(err, errNoSteamIntegration) {
		t.Fatalf("expected %v, got %v", errNoSteamIntegration, err)
	}
}

func TestDefaultBackupName(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	if got := defaultBackupName(backup.Config, "My Games", now); got != "My-Games_2024-03-01_12-30-00.yml" {
		t.Errorf("config name = %q", got)
	}
	if got := defaultBackupName(backup.Full, "My Games", now); got != "backup_My-Games_2024-03-01_12-30-00.tar.gz" {
		t.Errorf("full name = %q", got)
	}
}

func TestSortNumeric(t *testing.T) {
	ids := []string{"1493710", "570", "440", "10"}
	sortNumeric(ids)
	want := []string{"10", "440", "570", "1493710"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("got %v, want %v", ids, want)
		}
	}
}
