// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds test helpers shared across docshuttle
// packages.
//
// [BuildArchive] assembles an in-memory zip archive the way an upload
// client would, including directory entries, zstd-compressed entries,
// and hostile names. [UniqueRef] hands out distinct commit references.
// [Receive] and [WaitClosed] bound channel waits in tests that run a
// real listener; everything else runs on lib/clock's fake clock.
//
// Helpers call t.Fatalf on failure rather than returning errors.
package testutil
