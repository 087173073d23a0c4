// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package artifact

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/zeebo/blake3"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644

	// tempPrefix marks in-flight files. A crash between create and
	// rename can leave one behind; it is never listed as a reference
	// because it lives inside an artifact directory or fails the
	// reference pattern at the root.
	tempPrefix = ".docshuttle-tmp-"

	// digestPrefix labels digests recorded in upload manifests.
	digestPrefix = "blake3:"
)

// cleanRelative normalizes a relative path taken from an archive entry
// name or a request URL. Backslashes are treated as separators because
// zip tools on Windows emit them. Returns "" for a path that names the
// root itself (".", "./", "a/..").
//
// The result is slash-separated, contains no "." or ".." elements, and
// is guaranteed to stay inside whatever directory it is joined to.
func cleanRelative(name string) (string, error) {
	if strings.IndexByte(name, 0) >= 0 {
		return "", fmt.Errorf("path %q contains a NUL byte", name)
	}
	normalized := strings.ReplaceAll(name, `\`, "/")
	if strings.HasPrefix(normalized, "/") {
		return "", fmt.Errorf("path %q is absolute", name)
	}
	if hasDriveLetter(normalized) {
		return "", fmt.Errorf("path %q has a drive letter", name)
	}

	cleaned := path.Clean(normalized)
	if cleaned == "." {
		return "", nil
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("path %q escapes the destination directory", name)
	}
	return cleaned, nil
}

func hasDriveLetter(name string) bool {
	if len(name) < 2 || name[1] != ':' {
		return false
	}
	c := name[0]
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// writeFile writes content to rel (a cleanRelative result) inside root,
// creating parent directories. The content goes to a temporary file in
// the target directory first and is renamed into place, so a concurrent
// reader sees either the old file or the new one. Returns the number of
// bytes written and the BLAKE3 digest of the content.
//
// Writes go through os.Root so that a symlink planted inside the
// artifact directory cannot redirect them outside it.
func writeFile(root *os.Root, rel string, content io.Reader) (int64, string, error) {
	nativePath := filepath.FromSlash(rel)
	if dir := filepath.Dir(nativePath); dir != "." {
		if err := root.MkdirAll(dir, dirPerm); err != nil {
			return 0, "", fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	suffix, err := randomSuffix()
	if err != nil {
		return 0, "", err
	}
	tmpPath := filepath.Join(filepath.Dir(nativePath), tempPrefix+suffix)

	tmpFile, err := root.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
	if err != nil {
		return 0, "", fmt.Errorf("creating temp file for %s: %w", rel, err)
	}

	success := false
	defer func() {
		if !success {
			root.Remove(tmpPath)
		}
	}()

	hasher := blake3.New()
	written, err := io.Copy(io.MultiWriter(tmpFile, hasher), content)
	if err != nil {
		tmpFile.Close()
		return 0, "", fmt.Errorf("writing %s: %w", rel, err)
	}
	if err := tmpFile.Close(); err != nil {
		return 0, "", fmt.Errorf("closing temp file for %s: %w", rel, err)
	}
	if err := root.Rename(tmpPath, nativePath); err != nil {
		return 0, "", fmt.Errorf("renaming into %s: %w", rel, err)
	}

	success = true
	return written, digestPrefix + hex.EncodeToString(hasher.Sum(nil)), nil
}

// storageError wraps err with ErrIO unless it already carries one of
// the more specific classifications produced while writing.
func storageError(format string, err error, args ...any) error {
	message := fmt.Sprintf(format, args...)
	if errors.Is(err, ErrArchiveTooLarge) || errors.Is(err, ErrInvalidArchive) {
		return fmt.Errorf("%s: %w", message, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrIO, message, err)
}

func randomSuffix() (string, error) {
	var buffer [8]byte
	if _, err := rand.Read(buffer[:]); err != nil {
		return "", fmt.Errorf("generating temp file name: %w", err)
	}
	return hex.EncodeToString(buffer[:]), nil
}
