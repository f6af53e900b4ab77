package specio

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"
)

// ErrUnsafeArchive is returned for archive entries that would land outside
// the staging directory.
var ErrUnsafeArchive = errors.New("archive entry escapes staging directory")

// extract unpacks the archive at path into dir and returns the number of
// regular files written.
func extract(path, dir string) (int, error) {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".zip") {
		return extractZip(path, dir)
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	switch {
	case strings.HasSuffix(lower, ".gz"), strings.HasSuffix(lower, ".tgz"):
		gz, err := gzip.NewReader(f)
		if err != nil {
			return 0, fmt.Errorf("open gzip stream %s: %w", path, err)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	case strings.HasSuffix(lower, ".xz"), strings.HasSuffix(lower, ".txz"):
		xr, err := xz.NewReader(f)
		if err != nil {
			return 0, fmt.Errorf("open xz stream %s: %w", path, err)
		}
		r = xr
	}
	return extractTar(r, dir)
}

func extractZip(path, dir string) (int, error) {
	zr, err := zip.OpenReader(path)
	if errors.Is(err, zip.ErrInsecurePath) {
		if zr != nil {
			_ = zr.Close()
		}
		return 0, fmt.Errorf("%w: %s", ErrUnsafeArchive, path)
	}
	if err != nil {
		return 0, fmt.Errorf("open zip %s: %w", path, err)
	}
	defer func() { _ = zr.Close() }()

	n := 0
	for _, zf := range zr.File {
		dest, err := stagedPath(dir, zf.Name)
		if err != nil {
			return n, err
		}
		if zf.FileInfo().IsDir() {
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return n, err
			}
			continue
		}
		if !zf.Mode().IsRegular() {
			continue
		}
		rc, err := zf.Open()
		if err != nil {
			return n, fmt.Errorf("open zip entry %s: %w", zf.Name, err)
		}
		err = writeStaged(dest, rc)
		_ = rc.Close()
		if err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func extractTar(r io.Reader, dir string) (int, error) {
	tr := tar.NewReader(r)
	n := 0
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return n, nil
		}
		if errors.Is(err, tar.ErrInsecurePath) {
			return n, fmt.Errorf("%w: %q", ErrUnsafeArchive, hdr.Name)
		}
		if err != nil {
			return n, fmt.Errorf("read tar header: %w", err)
		}
		dest, err := stagedPath(dir, hdr.Name)
		if err != nil {
			return n, err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return n, err
			}
		case tar.TypeReg:
			if err := writeStaged(dest, tr); err != nil {
				return n, err
			}
			n++
		}
	}
}

// stagedPath resolves an entry name inside dir, refusing absolute names
// and names that climb out of it.
func stagedPath(dir, name string) (string, error) {
	clean := filepath.FromSlash(strings.TrimSuffix(name, "/"))
	if clean == "" || !filepath.IsLocal(clean) {
		return "", fmt.Errorf("%w: %q", ErrUnsafeArchive, name)
	}
	return filepath.Join(dir, clean), nil
}

func writeStaged(dest string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		return fmt.Errorf("write %s: %w", dest, err)
	}
	return out.Close()
}
