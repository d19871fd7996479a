package archive

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
	"github.com/ulikunitz/xz"
)

// Excluder decides which relative paths are left out of an archive.
// Patterns ending with "/" match a directory and everything below it,
// other patterns are globs ("**" crosses path separators) matched against
// the base name and the full relative path.
type Excluder struct {
	dirs  []string
	globs []glob.Glob
}

// NewExcluder compiles patterns.
func NewExcluder(patterns ...string) (*Excluder, error) {
	e := &Excluder{}
	for _, p := range patterns {
		if strings.HasSuffix(p, "/") {
			e.dirs = append(e.dirs, strings.TrimSuffix(p, "/"))
			continue
		}
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("exclude pattern %q: %w", p, err)
		}
		e.globs = append(e.globs, g)
	}
	return e, nil
}

// Match returns true if rel should be excluded. A nil Excluder matches nothing.
func (e *Excluder) Match(rel string, isDir bool) bool {
	if e == nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, d := range e.dirs {
		if (isDir && rel == d) || strings.HasPrefix(rel, d+"/") {
			return true
		}
	}
	base := filepath.Base(rel)
	for _, g := range e.globs {
		if g.Match(base) || g.Match(rel) {
			return true
		}
	}
	return false
}

// AddFile adds a single file to a tar writer under the given archive path.
func AddFile(tw *tar.Writer, srcPath, archivePath string, mode int64) error {
	f, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	hdr := &tar.Header{
		Name:     filepath.ToSlash(archivePath),
		Mode:     mode,
		Size:     info.Size(),
		ModTime:  info.ModTime(),
		Typeflag: tar.TypeReg,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err = io.Copy(tw, f)
	return err
}

// AddDir recursively adds srcDir to the tar writer under archivePrefix,
// keeping file modes and symlinks. Paths matched by ex are skipped.
func AddDir(tw *tar.Writer, srcDir, archivePrefix string, ex *Excluder) error {
	return filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			if archivePrefix == "" {
				return nil
			}
			return tw.WriteHeader(&tar.Header{
				Name:     filepath.ToSlash(archivePrefix) + "/",
				Mode:     int64(info.Mode().Perm()),
				Typeflag: tar.TypeDir,
				ModTime:  info.ModTime(),
			})
		}

		if ex.Match(rel, info.IsDir()) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		archivePath := filepath.ToSlash(filepath.Join(archivePrefix, rel))

		switch {
		case info.IsDir():
			return tw.WriteHeader(&tar.Header{
				Name:     archivePath + "/",
				Mode:     int64(info.Mode().Perm()),
				Typeflag: tar.TypeDir,
				ModTime:  info.ModTime(),
			})
		case info.Mode()&os.ModeSymlink != 0:
			target, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return tw.WriteHeader(&tar.Header{
				Name:     archivePath,
				Linkname: target,
				Mode:     int64(info.Mode().Perm()),
				Typeflag: tar.TypeSymlink,
				ModTime:  info.ModTime(),
			})
		case info.Mode().IsRegular():
			return AddFile(tw, path, archivePath, int64(info.Mode().Perm()))
		}
		// sockets, devices and fifos have no place in a bottle archive
		return nil
	})
}

// NewWriter returns a gzip+tar writer wrapping w.
// The caller must close both the returned *tar.Writer and *gzip.Writer.
func NewWriter(w io.Writer) (*tar.Writer, *gzip.Writer) {
	gw := gzip.NewWriter(w)
	tw := tar.NewWriter(gw)
	return tw, gw
}

// WriteDir archives srcDir into a new tar.gz file at dest.
func WriteDir(dest, srcDir, archivePrefix string, ex *Excluder) error {
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	tw, gw := NewWriter(f)

	err = AddDir(tw, srcDir, archivePrefix, ex)
	if cerr := tw.Close(); err == nil {
		err = cerr
	}
	if cerr := gw.Close(); err == nil {
		err = cerr
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dest)
		return err
	}
	return nil
}

// ExtractFile unpacks the archive at path into destDir. The compression
// is chosen from the extension: .tar.xz, .tar or gzip otherwise.
func ExtractFile(path, destDir, allowedPrefix string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	switch {
	case strings.HasSuffix(path, ".tar.xz"):
		xr, err := xz.NewReader(f)
		if err != nil {
			return fmt.Errorf("xz: %w", err)
		}
		return ExtractTar(xr, destDir, allowedPrefix)
	case strings.HasSuffix(path, ".tar"):
		return ExtractTar(f, destDir, allowedPrefix)
	}
	return Extract(f, destDir, allowedPrefix)
}

// Extract unpacks a tar.gz from r into destDir.
func Extract(r io.Reader, destDir, allowedPrefix string) error {
	gr, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("gzip: %w", err)
	}
	defer gr.Close()
	return ExtractTar(gr, destDir, allowedPrefix)
}

// ExtractTar unpacks an uncompressed tar stream into destDir.
// Only entries whose name starts with allowedPrefix are extracted.
// Archive entry names are never used as destination paths directly.
func ExtractTar(r io.Reader, destDir, allowedPrefix string) error {
	root := filepath.Clean(destDir)
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("tar: %w", err)
		}

		if !strings.HasPrefix(hdr.Name, allowedPrefix) {
			continue
		}

		target := filepath.Join(root, filepath.Clean("/"+hdr.Name))
		if !strings.HasPrefix(target, root+string(filepath.Separator)) && target != root {
			continue
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(hdr.Mode)|0700); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return err
			}
			if err := writeEntry(target, tr, os.FileMode(hdr.Mode)); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return err
			}
			os.Remove(target)
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeEntry(target string, r io.Reader, mode os.FileMode) error {
	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
