package sfx

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	defaultDirMode  os.FileMode = 0o755
	defaultFileMode os.FileMode = 0o644
)

// stagedFile is a regular file of the staged tree.
type stagedFile struct {
	// path is the file location on disk.
	path string
	// name is the slash-separated archive entry name.
	name string
}

// collectFiles lists regular files under root. Entry names are relative to the
// parent of root, so they start with the base name of root.
func collectFiles(root string) ([]stagedFile, error) {
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", root, ErrStagedTreeMissing)
		}

		return nil, fmt.Errorf("stat staged tree: %w", err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory: %w", root, ErrStagedTreeMissing)
	}

	base := filepath.Dir(filepath.Clean(root))

	var files []stagedFile

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}

		files = append(files, stagedFile{
			path: path,
			name: filepath.ToSlash(rel),
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk staged tree: %w", err)
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("%s: %w", root, ErrStagedTreeEmpty)
	}

	return files, nil
}

// writeZip deflates files into w, keeping their mode bits and modification times.
func writeZip(ctx context.Context, w io.Writer, files []stagedFile) error {
	zw := zip.NewWriter(w)

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			_ = zw.Close()
			return err
		}

		if err := addZipEntry(zw, f); err != nil {
			_ = zw.Close()
			return fmt.Errorf("add %s: %w", f.name, err)
		}
	}

	return zw.Close()
}

func addZipEntry(zw *zip.Writer, f stagedFile) error {
	src, err := os.Open(f.path)
	if err != nil {
		return err
	}

	defer func() {
		_ = src.Close()
	}()

	info, err := src.Stat()
	if err != nil {
		return err
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}

	header.Name = f.name
	header.Method = zip.Deflate

	dst, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}

	_, err = io.Copy(dst, src)

	return err
}

// extractZip unpacks the archive at path into dest and returns the extracted
// file paths, relative to dest and slash-separated.
func extractZip(ctx context.Context, path, dest string) ([]string, error) {
	zr, err := zip.OpenReader(path)
	if errors.Is(err, zip.ErrInsecurePath) {
		_ = zr.Close()
		return nil, fmt.Errorf("%w: %w", ErrUnsafePath, err)
	}

	if err != nil {
		return nil, fmt.Errorf("open payload archive: %w", err)
	}

	defer func() {
		_ = zr.Close()
	}()

	// Validate every name before writing anything.
	for _, f := range zr.File {
		if !filepath.IsLocal(filepath.FromSlash(f.Name)) {
			return nil, fmt.Errorf("%q: %w", f.Name, ErrUnsafePath)
		}
	}

	extracted := make([]string, 0, len(zr.File))

	for _, f := range zr.File {
		if err = ctx.Err(); err != nil {
			return extracted, err
		}

		target := filepath.Join(dest, filepath.FromSlash(f.Name))

		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
			if err = os.MkdirAll(target, defaultDirMode); err != nil {
				return extracted, err
			}

			continue
		}

		if err = extractEntry(f, target); err != nil {
			return extracted, fmt.Errorf("extract %s: %w", f.Name, err)
		}

		extracted = append(extracted, f.Name)
	}

	return extracted, nil
}

func extractEntry(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), defaultDirMode); err != nil {
		return err
	}

	mode := f.Mode().Perm()
	if mode == 0 {
		mode = defaultFileMode
	}

	src, err := f.Open()
	if err != nil {
		return err
	}

	defer func() {
		_ = src.Close()
	}()

	dst, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return err
	}

	if _, err = io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return err
	}

	if err = dst.Close(); err != nil {
		return err
	}

	// OpenFile honours umask; restore the archived bits.
	return os.Chmod(target, mode)
}
