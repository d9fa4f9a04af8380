//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"crypto"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	// Ensure SHA512 available for checksum calculation.
	_ "crypto/sha512"
)

const (
	// ChecksumFunction is used to fingerprint staged files.
	ChecksumFunction crypto.Hash = crypto.SHA512

	// ExecutableMode is applied to executables and generated scripts.
	ExecutableMode os.FileMode = 0o755

	// DirMode is applied to created directories.
	DirMode os.FileMode = 0o755
)

var errHashUnavailable = errors.New("hash function unavailable")

// FileChecksum returns the checksum bytes of a file.
func FileChecksum(path string) ([]byte, error) {
	if !ChecksumFunction.Available() {
		return nil, fmt.Errorf("checksum calculation not possible: %w", errHashUnavailable)
	}

	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = f.Close()
	}()

	hasher := ChecksumFunction.New()
	if _, err = io.Copy(hasher, f); err != nil {
		return nil, fmt.Errorf("calculate checksum: %w", err)
	}

	return hasher.Sum(nil), nil
}

// EncodeChecksum renders checksum bytes the way manifests store them.
func EncodeChecksum(sum []byte) string {
	return base64.StdEncoding.EncodeToString(sum)
}

// DecodeChecksum parses a manifest checksum.
func DecodeChecksum(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}

// CopyFile copies src to dst, keeping the permission bits of src.
func CopyFile(src, dst string) error {
	in, err := os.Open(filepath.Clean(src))
	if err != nil {
		return err
	}

	defer func() {
		_ = in.Close()
	}()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(filepath.Clean(dst), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err = io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}

	return out.Close()
}

// CopyTree replaces dst with a copy of the directory src.
// When src is a file it is copied like CopyFile.
func CopyTree(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}

	if !info.IsDir() {
		return CopyFile(src, dst)
	}

	if err = os.RemoveAll(dst); err != nil {
		return err
	}

	return filepath.WalkDir(src, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}

		target := filepath.Join(dst, rel)

		switch {
		case d.IsDir():
			return os.MkdirAll(target, DirMode)
		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}

			return os.Symlink(link, target)
		default:
			return CopyFile(path, target)
		}
	})
}

// CopyWithSubstitution copies the text file src to dst replacing every
// occurrence of placeholder with value. The result is executable.
func CopyWithSubstitution(src, dst, placeholder, value string) error {
	contents, err := os.ReadFile(filepath.Clean(src))
	if err != nil {
		return err
	}

	text := strings.ReplaceAll(string(contents), placeholder, value)

	if err = os.WriteFile(filepath.Clean(dst), []byte(text), ExecutableMode); err != nil {
		return err
	}

	return os.Chmod(dst, ExecutableMode)
}

// ReplaceSymlink points link at target, removing whatever link was before.
func ReplaceSymlink(target, link string) error {
	if _, err := os.Lstat(link); err == nil {
		if err = os.Remove(link); err != nil {
			return err
		}
	}

	return os.Symlink(target, link)
}
