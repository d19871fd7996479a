package component

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/flo-mic/bottlectl/internal/archive"
	"github.com/flo-mic/bottlectl/internal/checksum"
	"github.com/flo-mic/bottlectl/internal/config"
	"github.com/flo-mic/bottlectl/internal/netcheck"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// fakeSource serves YAML documents and files from memory and disk.
type fakeSource struct {
	docs      map[string]string
	files     map[string]string // url -> local path
	downloads int
}

func (f *fakeSource) GetYAML(_ context.Context, path string, out interface{}) error {
	doc, ok := f.docs[path]
	if !ok {
		return fmt.Errorf("GET %s: HTTP 404", path)
	}
	return yaml.Unmarshal([]byte(doc), out)
}

func (f *fakeSource) Download(_ context.Context, url, dest string) (int64, error) {
	src, ok := f.files[url]
	if !ok {
		return 0, fmt.Errorf("GET %s: HTTP 404", url)
	}
	f.downloads++
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		return 0, err
	}
	defer out.Close()
	return io.Copy(out, in)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// packComponent builds <name>.tar.gz with a single top-level directory
// holding files.
func packComponent(t *testing.T, name string, files map[string]string) string {
	t.Helper()
	src := filepath.Join(t.TempDir(), name)
	for rel, content := range files {
		writeFile(t, filepath.Join(src, rel), content)
	}
	dest := filepath.Join(t.TempDir(), name+".tar.gz")
	require.NoError(t, archive.WriteDir(dest, src, name, nil))
	return dest
}

func newTestRegistry(t *testing.T, src *fakeSource, online bool) (*Registry, config.Paths) {
	t.Helper()
	paths := config.NewPaths(t.TempDir())
	require.NoError(t, paths.EnsureDirs(false, hclog.NewNullLogger()))
	r := NewRegistry(Options{
		Paths:  paths,
		Source: src,
		Net:    netcheck.Static(online),
		Log:    hclog.NewNullLogger(),
	})
	return r, paths
}

func TestCheck_SortsInstalled(t *testing.T) {
	r, paths := newTestRegistry(t, &fakeSource{}, false)
	for _, v := range []string{"dxvk-1.10", "dxvk-2.0", "dxvk-1.9"} {
		require.NoError(t, os.MkdirAll(filepath.Join(paths.DXVK, v), 0755))
	}
	writeFile(t, filepath.Join(paths.DXVK, "stray-file"), "x")

	got, err := r.Check(context.Background(), DXVK, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"dxvk-2.0", "dxvk-1.10", "dxvk-1.9"}, got)
	assert.Equal(t, got, r.Available(DXVK))
}

func TestCheck_OfflineWithNothingInstalled(t *testing.T) {
	r, _ := newTestRegistry(t, &fakeSource{}, false)

	got, err := r.Check(context.Background(), Runner, true)
	assert.ErrorIs(t, err, ErrOffline)
	assert.Empty(t, got)

	// Without installLatest an empty result is not an error.
	got, err = r.Check(context.Background(), Runner, false)
	assert.NoError(t, err)
	assert.Empty(t, got)
}

func TestCheck_EmptyCatalogIsExhausted(t *testing.T) {
	r, _ := newTestRegistry(t, &fakeSource{}, true)
	_, err := r.Check(context.Background(), VKD3D, true)
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestCheck_InstallsFirstStableRunner(t *testing.T) {
	archivePath := packComponent(t, "caffe-7.20", map[string]string{
		"bin/wine": "#!/bin/sh\n",
		"lib/wine/x86_64-windows/winemenubuilder.exe": "MZ",
	})
	sum, err := checksum.File(archivePath)
	require.NoError(t, err)

	src := &fakeSource{
		docs: map[string]string{
			"runners/wine/caffe-7.20.yml": fmt.Sprintf(
				"Name: caffe-7.20\nFile:\n  - file_name: caffe-7.20.tar.gz\n    url: https://example.invalid/caffe-7.20.tar.gz\n    file_checksum: %s\n", sum),
		},
		files: map[string]string{"https://example.invalid/caffe-7.20.tar.gz": archivePath},
	}
	r, paths := newTestRegistry(t, src, true)
	r.SetCatalog(NewCatalog(map[Kind][]Entry{
		Runner: {
			{Name: "caffe-8.0-rc1", Category: "runners", SubCategory: "wine", Channel: "rc"},
			{Name: "proton-ge-8-25", Category: "runners", SubCategory: "proton", Channel: "stable"},
			{Name: "caffe-7.20", Category: "runners", SubCategory: "wine", Channel: "stable"},
		},
	}))

	got, err := r.Check(context.Background(), Runner, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"caffe-7.20"}, got)
	assert.FileExists(t, filepath.Join(paths.Runners, "caffe-7.20", "bin", "wine"))

	// The rescan after install locks winemenubuilder.
	mb := filepath.Join(paths.Runners, "caffe-7.20", "lib/wine/x86_64-windows/winemenubuilder.exe")
	assert.NoFileExists(t, mb)
	assert.FileExists(t, mb+".lock")
	assert.Equal(t, 1, src.downloads)
}

func TestInstall_ChecksumMismatch(t *testing.T) {
	archivePath := packComponent(t, "dxvk-2.3", map[string]string{"x64/d3d11.dll": "MZ"})
	src := &fakeSource{
		docs: map[string]string{
			"dxvk/dxvk-2.3.yml": "File:\n  - file_name: dxvk-2.3.tar.gz\n    url: https://example.invalid/dxvk.tar.gz\n    file_checksum: sha256:0000\n",
		},
		files: map[string]string{"https://example.invalid/dxvk.tar.gz": archivePath},
	}
	r, paths := newTestRegistry(t, src, true)
	r.SetCatalog(NewCatalog(map[Kind][]Entry{DXVK: {{Name: "dxvk-2.3", Category: "dxvk", Channel: "stable"}}}))

	err := r.Install(context.Background(), DXVK, "dxvk-2.3")
	assert.Error(t, err)
	assert.NoDirExists(t, filepath.Join(paths.DXVK, "dxvk-2.3"))
	assert.NoFileExists(t, filepath.Join(paths.Temp, "dxvk-2.3.tar.gz"))
}

func TestInstall_NotInCatalog(t *testing.T) {
	r, _ := newTestRegistry(t, &fakeSource{}, true)
	err := r.Install(context.Background(), NVAPI, "dxvk-nvapi-v0.6")
	assert.ErrorIs(t, err, ErrNotInCatalog)
}

func TestInstall_Rename(t *testing.T) {
	archivePath := packComponent(t, "latencyflex-v0.1.1", map[string]string{"layer.so": "ELF"})
	src := &fakeSource{
		docs: map[string]string{
			"latencyflex/latencyflex-0.1.1.yml": "File:\n  - file_name: latencyflex-v0.1.1.tar.gz\n    url: u\n    rename: latencyflex-0.1.1\n",
		},
		files: map[string]string{"u": archivePath},
	}
	r, paths := newTestRegistry(t, src, true)
	r.SetCatalog(NewCatalog(map[Kind][]Entry{LatencyFleX: {{Name: "latencyflex-0.1.1", Category: "latencyflex"}}}))

	require.NoError(t, r.Install(context.Background(), LatencyFleX, "latencyflex-0.1.1"))
	assert.FileExists(t, filepath.Join(paths.LatencyFleX, "latencyflex-0.1.1", "layer.so"))
	assert.Equal(t, []string{"latencyflex-0.1.1"}, r.Available(LatencyFleX))
}

func TestRunnerScan_SystemWine(t *testing.T) {
	paths := config.NewPaths(t.TempDir())
	require.NoError(t, paths.EnsureDirs(false, hclog.NewNullLogger()))
	require.NoError(t, os.MkdirAll(filepath.Join(paths.Runners, "GE-Proton8-25"), 0755))
	protonMB := filepath.Join(paths.Runners, "GE-Proton8-25", "lib64/wine/x86_64-windows/winemenubuilder.exe")
	writeFile(t, protonMB, "MZ")

	r := NewRegistry(Options{
		Paths:      paths,
		SystemWine: func(context.Context) (string, error) { return "wine-9.0", nil },
	})

	got, err := r.Check(context.Background(), Runner, true)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"sys-wine-9.0", "GE-Proton8-25"}, got)
	assert.FileExists(t, protonMB, "proton runners are not locked")

	err = r.Uninstall(context.Background(), Runner, "sys-wine-9.0")
	assert.ErrorIs(t, err, ErrSystemRunner)
}

func TestRunnerCheck_SystemWineDoesNotCount(t *testing.T) {
	paths := config.NewPaths(t.TempDir())
	require.NoError(t, paths.EnsureDirs(false, hclog.NewNullLogger()))
	r := NewRegistry(Options{
		Paths:      paths,
		Net:        netcheck.Static(false),
		SystemWine: func(context.Context) (string, error) { return "wine-9.0", nil },
	})

	got, err := r.Check(context.Background(), Runner, true)
	assert.ErrorIs(t, err, ErrOffline)
	assert.Equal(t, []string{"sys-wine-9.0"}, got)
}

func TestRuntimeAndWineBridgeScan(t *testing.T) {
	r, paths := newTestRegistry(t, &fakeSource{}, false)
	writeFile(t, filepath.Join(paths.Runtimes, "runtime", "manifest.yml"), "version: 0.4.1\n")
	writeFile(t, filepath.Join(paths.WineBridge, "VERSION"), "1.3.0\n")

	rt, err := r.Check(context.Background(), Runtime, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"runtime-0.4.1"}, rt)

	wb, err := r.Check(context.Background(), WineBridge, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"winebridge-1.3.0"}, wb)

	require.NoError(t, r.Uninstall(context.Background(), WineBridge, "winebridge-1.3.0"))
	assert.Empty(t, r.Available(WineBridge))
}

func TestCheckAll_CollectsErrors(t *testing.T) {
	r, paths := newTestRegistry(t, &fakeSource{}, false)
	require.NoError(t, os.MkdirAll(filepath.Join(paths.DXVK, "dxvk-2.3"), 0755))

	err := r.CheckAll(context.Background(), true)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOffline))
	assert.Equal(t, []string{"dxvk-2.3"}, r.Available(DXVK))
	assert.False(t, r.HasEssentials())
}

func TestLatestRunner(t *testing.T) {
	r, paths := newTestRegistry(t, &fakeSource{}, false)
	for _, v := range []string{"caffe-7.9", "caffe-7.20", "proton-ge-8-25", "proton-ge-9-1", "lutris-7.2"} {
		require.NoError(t, os.MkdirAll(filepath.Join(paths.Runners, v), 0755))
	}
	_, err := r.Check(context.Background(), Runner, false)
	require.NoError(t, err)

	assert.Equal(t, "caffe-7.20", r.LatestRunner("wine"))
	assert.Equal(t, "caffe-7.20", r.LatestRunner(""))
	assert.Equal(t, "proton-ge-9-1", r.LatestRunner("proton"))
}

func TestLatestRunner_Fallback(t *testing.T) {
	r, paths := newTestRegistry(t, &fakeSource{}, false)
	assert.Equal(t, "", r.LatestRunner("wine"))

	require.NoError(t, os.MkdirAll(filepath.Join(paths.Runners, "lutris-7.2"), 0755))
	_, err := r.Check(context.Background(), Runner, false)
	require.NoError(t, err)
	assert.Equal(t, "lutris-7.2", r.LatestRunner("wine"))
}

func TestPlanDLLs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "x64", "d3d11.dll"), "MZ")
	writeFile(t, filepath.Join(dir, "x32", "d3d11.dll"), "MZ")
	writeFile(t, filepath.Join(dir, "x32", "README"), "")

	plan, err := PlanDLLs(dir, "win64")
	require.NoError(t, err)
	require.Len(t, plan, 2)
	assert.Equal(t, filepath.Join("system32", "d3d11.dll"), plan[0].Target)
	assert.Equal(t, filepath.Join("syswow64", "d3d11.dll"), plan[1].Target)
	assert.Equal(t, "d3d11", plan[0].Name)

	plan, err = PlanDLLs(dir, "win32")
	require.NoError(t, err)
	require.Len(t, plan, 1)
	assert.Equal(t, filepath.Join("system32", "d3d11.dll"), plan[0].Target)
}
