// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package artifact

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bureau-foundation/docshuttle/lib/gitref"
	"github.com/bureau-foundation/docshuttle/lib/testutil"
)

const (
	refA = gitref.Ref("abc1234000000000000000000000000000000001")
	refB = gitref.Ref("abc1234000000000000000000000000000000002")
	refC = gitref.Ref("def5678000000000000000000000000000000003")
)

// archiveEntry is one entry for buildArchive. A name ending in "/" is
// written as a directory entry.
type archiveEntry struct {
	name    string
	content string
	method  uint16
	stored  bool
}

func buildArchive(t *testing.T, entries ...archiveEntry) []byte {
	t.Helper()
	converted := make([]testutil.ArchiveEntry, len(entries))
	for i, entry := range entries {
		converted[i] = testutil.ArchiveEntry{Name: entry.name, Content: entry.content, Method: entry.method, Stored: entry.stored}
	}
	return testutil.BuildArchive(t, converted...)
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return string(data)
}

func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return store
}
