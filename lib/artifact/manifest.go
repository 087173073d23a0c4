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
	"time"

	"github.com/bureau-foundation/docshuttle/lib/codec"
	"github.com/bureau-foundation/docshuttle/lib/gitref"
)

// ManifestDirName is the directory under the store root holding upload
// manifests. The leading dot keeps it out of reference listings.
const ManifestDirName = ".manifests"

// Manifest records the most recent upload of one reference. It is
// informational: serving never consults it, and an artifact without a
// manifest (written by an older deployment) is fully usable.
type Manifest struct {
	Ref           gitref.Ref      `cbor:"ref"            json:"ref"`
	UploadedAt    time.Time       `cbor:"uploaded_at"    json:"uploaded_at"`
	ArchiveSize   int64           `cbor:"archive_size"   json:"archive_size"`
	ArchiveDigest string          `cbor:"archive_digest" json:"archive_digest"`
	TotalBytes    int64           `cbor:"total_bytes"    json:"total_bytes"`
	Directories   int             `cbor:"directories"    json:"directories"`
	Files         []ExtractedFile `cbor:"files"          json:"files"`
	HasBuildLog   bool            `cbor:"has_build_log"  json:"has_build_log"`
}

// ManifestStore persists manifests as CBOR files, one per reference.
type ManifestStore struct {
	dir string
}

// NewManifestStore returns the manifest store under the given store
// root. The directory is created on first write.
func NewManifestStore(root string) *ManifestStore {
	return &ManifestStore{dir: filepath.Join(root, ManifestDirName)}
}

// Write stores manifest, replacing any earlier manifest for the same
// reference.
func (m *ManifestStore) Write(manifest *Manifest) error {
	if _, err := gitref.Parse(string(manifest.Ref)); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	data, err := codec.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("encoding manifest for %s: %w", manifest.Ref, err)
	}
	if err := os.MkdirAll(m.dir, dirPerm); err != nil {
		return fmt.Errorf("%w: creating manifest directory: %w", ErrIO, err)
	}
	root, err := os.OpenRoot(m.dir)
	if err != nil {
		return fmt.Errorf("%w: opening manifest directory: %w", ErrIO, err)
	}
	defer root.Close()

	if _, _, err := writeFile(root, string(manifest.Ref)+".cbor", bytes.NewReader(data)); err != nil {
		return storageError("writing manifest for %s", err, manifest.Ref)
	}
	return nil
}

// Read returns the manifest for ref, or ErrNotFound if none was
// recorded.
func (m *ManifestStore) Read(ref gitref.Ref) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(m.dir, string(ref)+".cbor"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: no manifest for %s", ErrNotFound, ref)
		}
		return nil, fmt.Errorf("%w: reading manifest for %s: %w", ErrIO, ref, err)
	}
	var manifest Manifest
	if err := codec.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("%w: decoding manifest for %s: %w", ErrIO, ref, err)
	}
	return &manifest, nil
}
