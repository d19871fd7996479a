package wine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hashicorp/go-hclog"
)

const fakeBinary = `#!/bin/sh
printf '%s %s %s\n' "$(basename "$0")" "$WINEPREFIX" "$*" >> "$CALLS"
if [ "$1" = "uninstaller" ] && [ "$2" = "--list" ]; then
	printf '{6E0E2DEB}|||Microsoft Visual C++ 2019\n'
fi
`

// fakeRunner creates a runner whose wine and wineserver record their
// invocations in a calls file.
func fakeRunner(t *testing.T, layout string) (runners string, calls string) {
	t.Helper()
	runners = t.TempDir()
	bin := filepath.Join(runners, "caffe-7.20", layout)
	if err := os.MkdirAll(bin, 0755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"wine", "wineserver"} {
		if err := os.WriteFile(filepath.Join(bin, name), []byte(fakeBinary), 0755); err != nil {
			t.Fatal(err)
		}
	}
	return runners, filepath.Join(t.TempDir(), "calls")
}

func readCalls(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestWineboot(t *testing.T) {
	runners, calls := fakeRunner(t, "bin")
	x := NewExecutor(runners, hclog.NewNullLogger())
	prefix := t.TempDir()
	p := Prefix{Path: prefix, Runner: "caffe-7.20", Arch: "win64", Env: map[string]string{"CALLS": calls}}

	ctx := context.Background()
	boot := x.Wineboot()
	for _, f := range []func(context.Context, Prefix) error{boot.Init, boot.Update, boot.Kill, boot.Force} {
		if err := f(ctx, p); err != nil {
			t.Fatal(err)
		}
	}

	got := readCalls(t, calls)
	want := []string{
		"wine " + prefix + " wineboot --init",
		"wine " + prefix + " wineboot -u",
		"wine " + prefix + " wineboot -k",
		"wine " + prefix + " wineboot -f",
	}
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("calls = %q, want %q", got, want)
	}
}

func TestProtonLayoutAndWineserverKill(t *testing.T) {
	runners, calls := fakeRunner(t, "files/bin")
	x := NewExecutor(runners, hclog.NewNullLogger())
	p := Prefix{Path: t.TempDir(), Runner: "caffe-7.20", Env: map[string]string{"CALLS": calls}}

	if err := x.Wineserver().Kill(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	got := readCalls(t, calls)
	if len(got) != 1 || !strings.HasPrefix(got[0], "wineserver ") || !strings.HasSuffix(got[0], " -k") {
		t.Errorf("calls = %q", got)
	}
}

func TestRegAddAndKeys(t *testing.T) {
	runners, calls := fakeRunner(t, "bin")
	x := NewExecutor(runners, hclog.NewNullLogger())
	p := Prefix{Path: t.TempDir(), Runner: "caffe-7.20", Env: map[string]string{"CALLS": calls}}
	ctx := context.Background()

	if err := x.Reg().Add(ctx, p, RegEntry{Key: DLLOverridesKey, Value: "winemenubuilder.exe"}); err != nil {
		t.Fatal(err)
	}
	got := readCalls(t, calls)
	want := "reg add " + DLLOverridesKey + " /v winemenubuilder.exe /t REG_SZ /d  /f"
	if !strings.HasSuffix(got[0], want) {
		t.Errorf("call = %q, want suffix %q", got[0], want)
	}

	if err := x.Keys().SetWindows(ctx, p, "win7"); err != nil {
		t.Fatal(err)
	}
	if err := x.Keys().ApplyCMDSettings(ctx, p); err != nil {
		t.Fatal(err)
	}
	got = readCalls(t, calls)
	if len(got) != 1+6+len(cmdSettings) {
		t.Errorf("got %d calls, want %d", len(got), 1+6+len(cmdSettings))
	}
	if !strings.Contains(strings.Join(got, "\n"), "/v CurrentBuild /t REG_SZ /d 7601 /f") {
		t.Errorf("win7 build not written: %q", got)
	}

	if err := x.Keys().SetWindows(ctx, p, "win95"); err == nil {
		t.Error("expected error for unknown windows version")
	}
}

func TestMissingRunner(t *testing.T) {
	x := NewExecutor(t.TempDir(), hclog.NewNullLogger())
	err := x.Wineboot().Init(context.Background(), Prefix{Path: t.TempDir(), Runner: "caffe-7.20"})
	if err == nil || !strings.Contains(err.Error(), "not found in runner") {
		t.Errorf("expected missing runner error, got %v", err)
	}
}

func TestIsAlive_NoServer(t *testing.T) {
	x := NewExecutor(t.TempDir(), hclog.NewNullLogger())
	alive, err := x.Wineserver().IsAlive(context.Background(), Prefix{Path: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	if alive {
		t.Error("no wineserver should serve a fresh prefix")
	}
}

func TestUninstallerRemove(t *testing.T) {
	runners, calls := fakeRunner(t, "bin")
	x := NewExecutor(runners, hclog.NewNullLogger())
	p := Prefix{Path: t.TempDir(), Runner: "caffe-7.20", Env: map[string]string{"CALLS": calls}}
	ctx := context.Background()

	if err := x.Uninstaller().Remove(ctx, p, "Microsoft Visual C++ 2019"); err != nil {
		t.Fatal(err)
	}
	got := readCalls(t, calls)
	if len(got) != 2 || !strings.HasSuffix(got[1], "uninstaller --remove {6E0E2DEB}") {
		t.Errorf("calls = %q", got)
	}

	if err := x.Uninstaller().Remove(ctx, p, "Not Installed"); err == nil {
		t.Error("expected error for unknown program")
	}
}
