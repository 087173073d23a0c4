// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"bytes"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
)

// ArchiveEntry is one entry for BuildArchive. A Name ending in "/" is
// written as a directory entry. Entries are deflated unless Stored is
// set or Method names another compressor (zstd.ZipMethodWinZip).
type ArchiveEntry struct {
	Name    string
	Content string
	Method  uint16

	// Stored writes the entry uncompressed. zip.Store is zero, so it
	// cannot be requested through Method.
	Stored bool
}

// BuildArchive returns a zip archive holding entries in order. Names
// are written verbatim, so tests can build archives with hostile paths.
//
//	archive := testutil.BuildArchive(t, testutil.ArchiveEntry{Name: "index.html", Content: "<h1>docs</h1>"})
func BuildArchive(t interface {
	Helper()
	Fatalf(format string, args ...any)
}, entries ...ArchiveEntry) []byte {
	t.Helper()
	var buffer bytes.Buffer
	writer := zip.NewWriter(&buffer)
	writer.RegisterCompressor(zstd.ZipMethodWinZip, zstd.ZipCompressor())
	for _, entry := range entries {
		header := &zip.FileHeader{Name: entry.Name, Method: entry.Method}
		if strings.HasSuffix(entry.Name, "/") || entry.Stored {
			header.Method = zip.Store
		} else if header.Method == zip.Store {
			header.Method = zip.Deflate
		}
		w, err := writer.CreateHeader(header)
		if err != nil {
			t.Fatalf("creating archive entry %q: %v", entry.Name, err)
		}
		if _, err := w.Write([]byte(entry.Content)); err != nil {
			t.Fatalf("writing archive entry %q: %v", entry.Name, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("closing archive: %v", err)
	}
	return buffer.Bytes()
}
