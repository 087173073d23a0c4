// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package artifact

import "errors"

// Sentinel errors. Callers classify failures with errors.Is; the
// returned errors wrap these with the reference or path involved.
var (
	// ErrNotFound is returned for unknown or malformed references and
	// for missing files inside an artifact.
	ErrNotFound = errors.New("artifact: not found")

	// ErrAmbiguous is returned by a strict Resolver when a prefix
	// matches more than one stored reference.
	ErrAmbiguous = errors.New("artifact: ambiguous reference")

	// ErrIO is returned when the store root cannot be read or written.
	ErrIO = errors.New("artifact: storage failure")

	// ErrUnsafeEntry is returned when an archive entry or Put entry
	// path would resolve outside the artifact directory.
	ErrUnsafeEntry = errors.New("artifact: unsafe archive entry")

	// ErrUnsafePath is returned when a requested file path would
	// resolve outside the artifact directory.
	ErrUnsafePath = errors.New("artifact: path escapes artifact directory")

	// ErrInvalidArchive is returned when an upload is not a readable
	// zip archive.
	ErrInvalidArchive = errors.New("artifact: invalid archive")

	// ErrArchiveTooLarge is returned when an archive expands beyond the
	// extractor's configured limit.
	ErrArchiveTooLarge = errors.New("artifact: archive exceeds size limit")

	// ErrHeadUnset is returned by HeadPointer.Get before the first
	// successful upload.
	ErrHeadUnset = errors.New("artifact: head is not set")
)
