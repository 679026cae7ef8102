package fetcher

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"
)

// Extract decompresses a tar archive into a directory named after the
// archive (minus extension) inside the archive's own directory, and returns
// that directory. Gzip (.tgz, .tar.gz) and xz (.txz, .tar.xz) streams are
// supported.
func Extract(archivePath, destDir string) (string, error) {
	in, err := os.Open(archivePath)
	if err != nil {
		return "", &ExtractError{Archive: archivePath, Err: err}
	}
	defer in.Close()

	decompressed, err := decompressReader(in, archivePath)
	if err != nil {
		return "", &ExtractError{Archive: archivePath, Err: err}
	}

	root := filepath.Join(destDir, stripArchiveExt(filepath.Base(archivePath)))
	if err := os.MkdirAll(root, 0755); err != nil {
		return "", &ExtractError{Archive: archivePath, Err: err}
	}

	if err := untar(decompressed, root); err != nil {
		return "", &ExtractError{Archive: archivePath, Err: err}
	}
	return root, nil
}

func decompressReader(in io.Reader, name string) (io.Reader, error) {
	switch {
	case strings.HasSuffix(name, ".tgz"), strings.HasSuffix(name, ".gz"):
		gz, err := gzip.NewReader(in)
		if err != nil {
			return nil, fmt.Errorf("opening gzip stream: %w", err)
		}
		return gz, nil
	case strings.HasSuffix(name, ".txz"), strings.HasSuffix(name, ".xz"):
		x, err := xz.NewReader(in)
		if err != nil {
			return nil, fmt.Errorf("opening xz stream: %w", err)
		}
		return x, nil
	default:
		return nil, fmt.Errorf("unsupported archive extension on %s", name)
	}
}

func untar(r io.Reader, root string) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading tar stream: %w", err)
		}

		target, err := safeJoin(root, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode)&0777)
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return fmt.Errorf("writing %s: %w", target, err)
			}
			if err := out.Close(); err != nil {
				return err
			}
		default:
			// symlinks, devices and the like have no bearing on file
			// hash comparison
		}
	}
}

// safeJoin rejects entries that would escape root.
func safeJoin(root, name string) (string, error) {
	target := filepath.Join(root, filepath.FromSlash(name))
	if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
		return "", fmt.Errorf("archive entry %q escapes extraction root", name)
	}
	return target, nil
}

// stripArchiveExt drops the archive extension: foo.tgz and foo.tar.gz both
// become foo.
func stripArchiveExt(name string) string {
	for _, suffix := range []string{".tar.gz", ".tar.xz", ".tgz", ".txz", ".gz", ".xz"} {
		if strings.HasSuffix(name, suffix) {
			return strings.TrimSuffix(name, suffix)
		}
	}
	return name
}
