// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package artifact implements the documentation artifact store: one
// directory per commit reference under a single root, a mutable head
// pointer naming the latest upload, resolution of abbreviated
// references, and safe extraction of uploaded zip archives.
//
// On-disk layout:
//
//	<root>/head.txt                  current head reference (plain text)
//	<root>/<ref>/...                 served file tree for one reference
//	<root>/<ref>/build.txt           optional build log marker
//	<root>/.manifests/<ref>.cbor     record of the last upload of <ref>
//
// References are canonical lower-case 40-character hashes (see
// lib/gitref). Directories created by older deployments with upper-case
// names are listed and served under their canonical reference.
//
// The layers are usable independently:
//
//   - [Store]: Put, List, Exists, ResolvePath, Open over the root.
//   - [HeadPointer]: Get and atomic Set of head.txt.
//   - [Resolver]: token ("head", full ref, or prefix) to full reference,
//     backed by any [Lister] (the Store itself, or an [Index]).
//   - [Extractor]: zip archive to directory tree, rejecting entries that
//     would escape the destination.
//   - [Ingester]: the upload pipeline tying the above together.
//
// Uploads are not transactional. An extraction that fails partway leaves
// the files written so far in place; the failure is reported to the
// caller and the head pointer is not moved.
package artifact
