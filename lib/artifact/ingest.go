// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package artifact

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/docshuttle/lib/clock"
	"github.com/bureau-foundation/docshuttle/lib/gitref"
)

// IngesterConfig holds the collaborators of an Ingester. Store,
// Extractor, and Head are required.
type IngesterConfig struct {
	Store     *Store
	Extractor *Extractor
	Head      *HeadPointer

	// Index, when set, learns each newly stored reference so prefix
	// resolution sees it immediately.
	Index *Index

	// Manifests, when set, receives a record of every upload.
	Manifests *ManifestStore

	// Clock stamps manifests. Defaults to the wall clock.
	Clock clock.Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Ingester runs the upload pipeline: extract the archive into the
// reference's directory, record it, and move the head pointer. The head
// pointer moves only after extraction succeeds.
type Ingester struct {
	store     *Store
	extractor *Extractor
	head      *HeadPointer
	index     *Index
	manifests *ManifestStore
	clock     clock.Clock
	logger    *slog.Logger
}

// NewIngester creates an Ingester.
func NewIngester(config IngesterConfig) (*Ingester, error) {
	if config.Store == nil {
		return nil, errors.New("ingester requires a store")
	}
	if config.Extractor == nil {
		return nil, errors.New("ingester requires an extractor")
	}
	if config.Head == nil {
		return nil, errors.New("ingester requires a head pointer")
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Ingester{
		store:     config.Store,
		extractor: config.Extractor,
		head:      config.Head,
		index:     config.Index,
		manifests: config.Manifests,
		clock:     config.Clock,
		logger:    config.Logger,
	}, nil
}

// IngestBytes ingests an in-memory archive.
func (in *Ingester) IngestBytes(ref gitref.Ref, archive []byte) (*Manifest, error) {
	return in.Ingest(ref, bytes.NewReader(archive), int64(len(archive)))
}

// Ingest stores the archive read from archive (size bytes long) as the
// artifact for ref and makes ref the head. The archive is read in place,
// never buffered whole. Re-uploading an existing reference overwrites
// files that appear in the new archive and leaves the others in place.
func (in *Ingester) Ingest(ref gitref.Ref, archive io.ReaderAt, size int64) (*Manifest, error) {
	ref, err := gitref.Parse(string(ref))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	start := in.clock.Now()
	hasher := blake3.New()
	if _, err := io.Copy(hasher, io.NewSectionReader(archive, 0, size)); err != nil {
		return nil, fmt.Errorf("%w: reading archive: %w", ErrIO, err)
	}

	dir := in.store.Dir(ref)
	result, err := in.extractor.Extract(archive, size, dir)
	if err != nil {
		in.logger.Warn("archive extraction failed",
			"ref", ref,
			"archive_size", size,
			"error", err,
		)
		// Extraction may fail after creating the directory, and a
		// directory on disk is a stored reference whether or not any
		// file made it in.
		if in.index != nil && in.store.Exists(ref) {
			in.index.Add(ref)
		}
		return nil, err
	}

	if in.index != nil {
		in.index.Add(ref)
	}

	manifest := &Manifest{
		Ref:           ref,
		UploadedAt:    start.UTC(),
		ArchiveSize:   size,
		ArchiveDigest: digestPrefix + hex.EncodeToString(hasher.Sum(nil)),
		TotalBytes:    result.TotalBytes,
		Directories:   result.Directories,
		Files:         result.Files,
		HasBuildLog:   isRegularFile(filepath.Join(dir, BuildLogName)),
	}
	if in.manifests != nil {
		if err := in.manifests.Write(manifest); err != nil {
			in.logger.Error("writing upload manifest failed", "ref", ref, "error", err)
		}
	}

	if err := in.head.Set(ref); err != nil {
		return nil, fmt.Errorf("updating head to %s: %w", ref, err)
	}

	in.logger.Info("artifact stored",
		"ref", ref,
		"files", len(result.Files),
		"bytes", result.TotalBytes,
		"archive_size", size,
		"duration", in.clock.Now().Sub(start),
	)
	return manifest, nil
}
