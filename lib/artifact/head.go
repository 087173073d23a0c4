// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package artifact

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bureau-foundation/docshuttle/lib/gitref"
)

// HeadFileName is the name of the head pointer file in the store root.
const HeadFileName = "head.txt"

// HeadPointer is the single mutable reference naming the latest
// upload. It is persisted as plain text in <root>/head.txt.
//
// Set replaces the file with a temp-file-and-rename, serialized by a
// mutex. Get takes no lock: rename is atomic, so a reader concurrent
// with Set observes either the previous reference or the new one,
// never a truncated value.
type HeadPointer struct {
	path string
	mu   sync.Mutex
}

// NewHeadPointer returns the head pointer stored in root.
func NewHeadPointer(root string) *HeadPointer {
	return &HeadPointer{path: filepath.Join(root, HeadFileName)}
}

// Get returns the current head reference, or ErrHeadUnset if no upload
// has set it. Content written by older deployments (upper case,
// trailing newline) is canonicalized.
func (h *HeadPointer) Get() (gitref.Ref, error) {
	data, err := os.ReadFile(h.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrHeadUnset
		}
		return "", fmt.Errorf("%w: reading head pointer: %w", ErrIO, err)
	}
	value := strings.TrimSpace(string(data))
	if value == "" {
		return "", ErrHeadUnset
	}
	ref, err := gitref.Parse(value)
	if err != nil {
		return "", fmt.Errorf("%w: head pointer holds %q: %w", ErrIO, value, err)
	}
	return ref, nil
}

// Set atomically replaces the head reference.
func (h *HeadPointer) Set(ref gitref.Ref) error {
	if _, err := gitref.Parse(string(ref)); err != nil {
		return fmt.Errorf("setting head pointer: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	tmpFile, err := os.CreateTemp(filepath.Dir(h.path), tempPrefix+"head-*")
	if err != nil {
		return fmt.Errorf("%w: creating temp head file: %w", ErrIO, err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.WriteString(string(ref)); err != nil {
		tmpFile.Close()
		return fmt.Errorf("%w: writing head pointer: %w", ErrIO, err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("%w: syncing head pointer: %w", ErrIO, err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("%w: closing temp head file: %w", ErrIO, err)
	}
	if err := os.Chmod(tmpPath, filePerm); err != nil {
		return fmt.Errorf("%w: setting head pointer mode: %w", ErrIO, err)
	}
	if err := os.Rename(tmpPath, h.path); err != nil {
		return fmt.Errorf("%w: renaming head pointer into place: %w", ErrIO, err)
	}

	success = true
	return nil
}
