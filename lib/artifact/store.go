// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package artifact

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bureau-foundation/docshuttle/lib/gitref"
)

const (
	// BuildLogName is the file whose presence marks an artifact as
	// having a build log.
	BuildLogName = "build.txt"

	// IndexName is served when a request names a directory.
	IndexName = "index.html"
)

// Artifact describes one stored reference as seen by a listing.
type Artifact struct {
	Ref         gitref.Ref `json:"ref"`
	ModTime     time.Time  `json:"modified"`
	HasBuildLog bool       `json:"has_build_log"`
}

// Entry is one file to write with [Store.Put]. Path is relative to the
// artifact directory and slash-separated.
type Entry struct {
	Path    string
	Content []byte
}

// Store manages the root directory holding one subdirectory per
// reference. It holds no in-memory state: every call reflects the
// filesystem, so directories added by another process (or an older
// deployment) show up immediately.
//
// Store is safe for concurrent use. Concurrent writes to the same
// reference race per file (last rename wins); writes to different
// references are independent.
type Store struct {
	root string
}

// NewStore creates a Store rooted at the given directory, creating the
// directory if it does not exist.
func NewStore(root string) (*Store, error) {
	if root == "" {
		return nil, errors.New("artifact store root is empty")
	}
	if err := os.MkdirAll(root, dirPerm); err != nil {
		return nil, fmt.Errorf("%w: creating store directory %s: %w", ErrIO, root, err)
	}
	return &Store{root: root}, nil
}

// Root returns the store's root directory.
func (s *Store) Root() string {
	return s.root
}

// Dir returns the directory holding ref. For a reference first written
// by an older deployment under a non-canonical (upper- or mixed-case)
// name, that existing directory is returned so reads and re-uploads
// address the same tree. Otherwise the canonical path is returned,
// whether or not it exists yet.
func (s *Store) Dir(ref gitref.Ref) string {
	canonical := filepath.Join(s.root, string(ref))
	if _, err := os.Stat(canonical); err == nil {
		return canonical
	}
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return canonical
	}
	for _, entry := range entries {
		if entry.IsDir() && strings.EqualFold(entry.Name(), string(ref)) {
			return filepath.Join(s.root, entry.Name())
		}
	}
	return canonical
}

// Put writes entries into the artifact directory for ref, creating it
// and any parent directories as needed. Existing files at the same
// path are replaced. Every entry path is validated before anything is
// written; an unsafe path fails the whole call with ErrUnsafeEntry.
// A storage failure partway through leaves earlier entries in place.
func (s *Store) Put(ref gitref.Ref, entries []Entry) error {
	cleaned := make([]string, len(entries))
	for i, entry := range entries {
		rel, err := cleanRelative(entry.Path)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrUnsafeEntry, err)
		}
		if rel == "" {
			return fmt.Errorf("%w: entry %d has an empty path", ErrUnsafeEntry, i)
		}
		cleaned[i] = rel
	}

	dir := s.Dir(ref)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("%w: creating artifact directory for %s: %w", ErrIO, ref, err)
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return fmt.Errorf("%w: opening artifact directory for %s: %w", ErrIO, ref, err)
	}
	defer root.Close()

	for i, entry := range entries {
		if _, _, err := writeFile(root, cleaned[i], bytes.NewReader(entry.Content)); err != nil {
			return storageError("storing %s in %s", err, cleaned[i], ref)
		}
	}
	return nil
}

// List returns every stored reference with its directory modification
// time and build-log flag, newest first (ties broken by reference).
// Names in the root that are not 40-character hex directories (the
// head file, the manifest directory, stray files) are ignored.
func (s *Store) List() ([]Artifact, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("%w: listing %s: %w", ErrIO, s.root, err)
	}

	byRef := make(map[gitref.Ref]Artifact, len(entries))
	canonicalSeen := make(map[gitref.Ref]bool, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		ref, err := gitref.Parse(name)
		if err != nil {
			continue
		}
		fullPath := filepath.Join(s.root, name)
		info, err := os.Stat(fullPath)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				// Removed between ReadDir and Stat.
				continue
			}
			return nil, fmt.Errorf("%w: stat %s: %w", ErrIO, fullPath, err)
		}
		if !info.IsDir() {
			continue
		}
		// When both a legacy and a canonical directory exist, the
		// canonical one is what Dir returns, so it wins here too.
		isCanonical := name == string(ref)
		if _, exists := byRef[ref]; exists && (canonicalSeen[ref] || !isCanonical) {
			continue
		}
		byRef[ref] = Artifact{
			Ref:         ref,
			ModTime:     info.ModTime().UTC(),
			HasBuildLog: isRegularFile(filepath.Join(fullPath, BuildLogName)),
		}
		canonicalSeen[ref] = isCanonical
	}

	artifacts := make([]Artifact, 0, len(byRef))
	for _, artifact := range byRef {
		artifacts = append(artifacts, artifact)
	}
	sort.Slice(artifacts, func(i, j int) bool {
		if !artifacts[i].ModTime.Equal(artifacts[j].ModTime) {
			return artifacts[i].ModTime.After(artifacts[j].ModTime)
		}
		return artifacts[i].Ref < artifacts[j].Ref
	})
	return artifacts, nil
}

// References returns the stored references in ascending order. It
// implements [Lister] directly against the filesystem.
func (s *Store) References() ([]gitref.Ref, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("%w: listing %s: %w", ErrIO, s.root, err)
	}
	seen := make(map[gitref.Ref]bool, len(entries))
	refs := make([]gitref.Ref, 0, len(entries))
	for _, entry := range entries {
		ref, err := gitref.Parse(entry.Name())
		if err != nil || seen[ref] {
			continue
		}
		if !isDirectory(filepath.Join(s.root, entry.Name())) {
			continue
		}
		seen[ref] = true
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i] < refs[j] })
	return refs, nil
}

// Exists reports whether an artifact directory exists for ref.
func (s *Store) Exists(ref gitref.Ref) bool {
	return isDirectory(s.Dir(ref))
}

// ResolvePath returns the filesystem path to serve for relPath inside
// the artifact for ref. An empty relPath, or one ending in a slash,
// names the directory's index.html. Returns ErrNotFound if the artifact
// does not exist and ErrUnsafePath if relPath would leave the artifact
// directory. The file itself is not required to exist.
func (s *Store) ResolvePath(ref gitref.Ref, relPath string) (string, error) {
	rel, err := s.cleanRequestPath(relPath)
	if err != nil {
		return "", err
	}
	dir := s.Dir(ref)
	if !isDirectory(dir) {
		return "", fmt.Errorf("%w: artifact %s", ErrNotFound, ref)
	}
	return filepath.Join(dir, filepath.FromSlash(rel)), nil
}

// Open opens relPath inside the artifact for ref for serving. Unlike
// ResolvePath it requires the file to exist and be a regular file, and
// it opens through os.Root so a symlink inside the artifact cannot
// point the read outside it. The caller closes the returned file.
func (s *Store) Open(ref gitref.Ref, relPath string) (*os.File, fs.FileInfo, error) {
	rel, err := s.cleanRequestPath(relPath)
	if err != nil {
		return nil, nil, err
	}
	dir := s.Dir(ref)
	root, err := os.OpenRoot(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: artifact %s", ErrNotFound, ref)
		}
		return nil, nil, fmt.Errorf("%w: opening artifact %s: %w", ErrIO, ref, err)
	}
	defer root.Close()

	file, err := root.Open(filepath.FromSlash(rel))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrInvalid) {
			return nil, nil, fmt.Errorf("%w: %s in %s", ErrNotFound, rel, ref)
		}
		// rel is already lexically inside the artifact, so any other
		// refusal from the root (a symlink leading out, an unreadable
		// entry) means the file cannot be served from it.
		return nil, nil, fmt.Errorf("%w: %s in %s: %w", ErrUnsafePath, rel, ref, err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, nil, fmt.Errorf("%w: stat %s in %s: %w", ErrIO, rel, ref, err)
	}
	if !info.Mode().IsRegular() {
		file.Close()
		return nil, nil, fmt.Errorf("%w: %s in %s is not a file", ErrNotFound, rel, ref)
	}
	return file, info, nil
}

// cleanRequestPath maps a request path to a slash-separated path
// relative to the artifact directory, defaulting directories to
// index.html.
func (s *Store) cleanRequestPath(relPath string) (string, error) {
	rel, err := cleanRelative(relPath)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnsafePath, err)
	}
	if rel == "" {
		return IndexName, nil
	}
	if strings.HasSuffix(relPath, "/") {
		return rel + "/" + IndexName, nil
	}
	return rel, nil
}

func isDirectory(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
