package component

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/flo-mic/bottlectl/internal/archive"
	"github.com/flo-mic/bottlectl/internal/checksum"
	"github.com/hashicorp/go-hclog"
)

// Source is the remote repository components are fetched from.
// *repository.Client implements it.
type Source interface {
	GetYAML(ctx context.Context, path string, out interface{}) error
	Download(ctx context.Context, url, dest string) (int64, error)
}

// Installer downloads catalog entries and unpacks them into place.
type Installer struct {
	src  Source
	temp string
	log  hclog.Logger
}

// NewInstaller returns an installer caching downloads in temp.
func NewInstaller(src Source, temp string, log hclog.Logger) *Installer {
	return &Installer{src: src, temp: temp, log: log}
}

// manifest is the per-entry file list.
type manifest struct {
	Files []File `yaml:"File"`
}

// Files returns the artifacts of e, fetching its manifest when the
// entry does not carry them already.
func (i *Installer) Files(ctx context.Context, e Entry) ([]File, error) {
	if len(e.Files) > 0 {
		return e.Files, nil
	}
	var m manifest
	if err := i.src.GetYAML(ctx, e.manifestPath(), &m); err != nil {
		return nil, fmt.Errorf("manifest for %s: %w", e.Name, err)
	}
	if len(m.Files) == 0 {
		return nil, fmt.Errorf("manifest for %s lists no files", e.Name)
	}
	return m.Files, nil
}

// Fetch installs every file of e into dest.
func (i *Installer) Fetch(ctx context.Context, e Entry, dest string) error {
	files, err := i.Files(ctx, e)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dest, 0755); err != nil {
		return err
	}

	for _, f := range files {
		local, err := i.download(ctx, f)
		if err != nil {
			return err
		}
		i.log.Debug("extracting", "file", f.FileName, "dest", dest)
		if err := archive.ExtractFile(local, dest, ""); err != nil {
			return fmt.Errorf("extracting %s: %w", f.FileName, err)
		}
		if f.Rename != "" {
			from := filepath.Join(dest, archiveStem(f.FileName))
			to := filepath.Join(dest, f.Rename)
			if err := os.Rename(from, to); err != nil {
				return fmt.Errorf("renaming %s: %w", f.FileName, err)
			}
		}
	}
	return nil
}

// download returns a verified local copy of f, reusing a cached one.
func (i *Installer) download(ctx context.Context, f File) (string, error) {
	if f.FileName == "" || strings.ContainsAny(f.FileName, `/\`) {
		return "", fmt.Errorf("invalid file name %q", f.FileName)
	}
	local := filepath.Join(i.temp, f.FileName)

	if _, err := os.Stat(local); err == nil {
		if err := checksum.Verify(local, f.Checksum); err == nil {
			i.log.Debug("using cached download", "file", f.FileName)
			return local, nil
		}
		os.Remove(local)
	}

	if _, err := i.src.Download(ctx, f.URL, local); err != nil {
		return "", err
	}
	if err := checksum.Verify(local, f.Checksum); err != nil {
		os.Remove(local)
		return "", err
	}
	return local, nil
}

// archiveStem strips the archive extension from a file name.
func archiveStem(name string) string {
	for _, ext := range []string{".tar.gz", ".tar.xz", ".tgz", ".tar"} {
		if strings.HasSuffix(name, ext) {
			return strings.TrimSuffix(name, ext)
		}
	}
	return name
}
