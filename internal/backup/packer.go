package backup

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// ExtractLimits bounds what an archive may unpack to
type ExtractLimits struct {
	MaxFiles    int
	MaxFileSize int64
	MaxSize     int64
}

// DefaultExtractLimits are generous enough for course structure archives
var DefaultExtractLimits = ExtractLimits{
	MaxFiles:    10000,
	MaxFileSize: 512 << 20,
	MaxSize:     2 << 30,
}

// ErrUnsafePath is returned when an archive entry would escape the target directory
var ErrUnsafePath = errors.New("archive entry escapes target directory")

// Pack writes every regular file below srcDir into w as a gzip compressed tar
func Pack(ctx context.Context, srcDir string, w io.Writer) error {
	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)

	walkErr := filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return fmt.Errorf("failed to get relative path for %s: %w", path, err)
		}
		if rel == "." {
			return nil
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return fmt.Errorf("failed to build header for %s: %w", rel, err)
		}
		hdr.Name = filepath.ToSlash(rel)
		if info.IsDir() {
			hdr.Name += "/"
		}

		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("failed to write header for %s: %w", rel, err)
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		if _, err := io.Copy(tw, f); err != nil {
			return fmt.Errorf("failed to write %s: %w", rel, err)
		}
		return nil
	})
	if walkErr != nil {
		return walkErr
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("failed to finish tar stream: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("failed to finish gzip stream: %w", err)
	}
	return nil
}

// Extract unpacks a gzip compressed tar from r into destDir, which must exist.
// Entries that would land outside destDir and non-regular files are rejected.
func Extract(ctx context.Context, r io.Reader, destDir string, limits ExtractLimits) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("failed to open gzip stream: %w", err)
	}
	defer gz.Close()

	root, err := filepath.Abs(destDir)
	if err != nil {
		return err
	}

	tr := tar.NewReader(gz)
	var files int
	var total int64

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read archive entry: %w", err)
		}

		target := filepath.Join(root, filepath.FromSlash(hdr.Name))
		if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			return fmt.Errorf("%s: %w", hdr.Name, ErrUnsafePath)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", hdr.Name, err)
			}
		case tar.TypeReg:
			files++
			if limits.MaxFiles > 0 && files > limits.MaxFiles {
				return fmt.Errorf("archive has more than %d files", limits.MaxFiles)
			}
			if limits.MaxFileSize > 0 && hdr.Size > limits.MaxFileSize {
				return fmt.Errorf("archive entry %s exceeds %d bytes", hdr.Name, limits.MaxFileSize)
			}
			total += hdr.Size
			if limits.MaxSize > 0 && total > limits.MaxSize {
				return fmt.Errorf("archive exceeds %d bytes", limits.MaxSize)
			}

			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("failed to create directory for %s: %w", hdr.Name, err)
			}
			if err := writeEntry(target, tr, hdr.Size); err != nil {
				return fmt.Errorf("failed to extract %s: %w", hdr.Name, err)
			}
		default:
			return fmt.Errorf("unsupported archive entry type %q for %s", hdr.Typeflag, hdr.Name)
		}
	}

	return nil
}

func writeEntry(target string, r io.Reader, size int64) error {
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.CopyN(f, r, size); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
