package download

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"

	"proxyctl/internal/shared/logger"
	"proxyctl/internal/shared/types"
)

// ArchiveKind selects how Extract unpacks an archive.
type ArchiveKind string

const (
	// KindGz decompresses a single gzip stream into the destination file.
	KindGz ArchiveKind = "gz"
	// KindZip extracts the only entry of a zip archive into the destination file.
	KindZip ArchiveKind = "zip"
	// KindZipTree extracts every entry of a zip archive under the destination directory.
	KindZipTree ArchiveKind = "ziptree"
)

// Extract unpacks archivePath into dest according to kind.
func Extract(archivePath, dest string, kind ArchiveKind) error {
	l := logger.WithComponent("Download")

	var err error
	switch kind {
	case KindGz:
		l.Info().Msg("Decompressing gz...")
		err = decompressGz(archivePath, dest)
	case KindZip:
		l.Info().Msg("Decompressing zip...")
		err = decompressSingleZip(archivePath, dest)
	case KindZipTree:
		l.Info().Msg("Unzipping...")
		err = unzipTree(archivePath, dest)
	default:
		err = fmt.Errorf("unsupported archive kind %q", kind)
	}
	if err != nil {
		return types.NewError(types.KindExtract, "extract "+archivePath, err)
	}
	l.Info().Str("path", dest).Msgf("Extracted to %s", dest)
	return nil
}

func decompressGz(archivePath, dest string) error {
	in, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer in.Close()

	gz, err := gzip.NewReader(in)
	if err != nil {
		return err
	}
	defer gz.Close()

	return writeFileAtomic(dest, gz, 0644)
}

func decompressSingleZip(archivePath, dest string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return err
	}
	defer zr.Close()

	switch n := len(zr.File); n {
	case 0:
		return errors.New("zip file is empty")
	case 1:
	default:
		return fmt.Errorf("zip file contains multiple files (%d)", n)
	}

	rc, err := zr.File[0].Open()
	if err != nil {
		return fmt.Errorf("failed to open zip entry: %w", err)
	}
	defer rc.Close()
	return writeFileAtomic(dest, rc, 0644)
}

func unzipTree(archivePath, destDir string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return err
	}
	defer zr.Close()

	for _, f := range zr.File {
		name := filepath.FromSlash(strings.TrimSuffix(f.Name, "/"))
		// entries escaping destDir are skipped
		if name == "" || !filepath.IsLocal(name) {
			continue
		}
		target := filepath.Join(destDir, name)

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		if err := extractEntry(f, target); err != nil {
			return fmt.Errorf("%s: %w", f.Name, err)
		}
	}
	return nil
}

func extractEntry(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	mode := f.Mode().Perm()
	if mode == 0 {
		mode = 0644
	}
	return writeFile(target, rc, mode)
}

func writeFile(path string, r io.Reader, mode os.FileMode) error {
	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// writeFileAtomic writes to a temporary file next to path and renames it into
// place, so a failed extraction never leaves a truncated path behind.
func writeFileAtomic(path string, r io.Reader, mode os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.part")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	_, err = io.Copy(tmp, r)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Chmod(tmpPath, mode)
	}
	if err == nil {
		err = os.Rename(tmpPath, path)
	}
	if err != nil {
		os.Remove(tmpPath)
	}
	return err
}
