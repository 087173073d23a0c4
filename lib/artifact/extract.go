// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package artifact

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
)

// DefaultMaxUncompressed bounds the total expanded size of one archive.
const DefaultMaxUncompressed int64 = 4 << 30

// ExtractedFile records one file written by the Extractor.
type ExtractedFile struct {
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	Digest string `json:"digest"`
}

// ExtractResult summarizes an extraction.
type ExtractResult struct {
	Files       []ExtractedFile
	Directories int
	TotalBytes  int64
}

// Extractor unpacks zip archives into a directory tree.
//
// Every entry name is checked before anything is written: an entry
// whose normalized path is absolute or climbs above the destination
// fails the whole archive with ErrUnsafeEntry and leaves the
// destination untouched. After validation, entries are written in
// archive order, each one atomically (temp file and rename). A failure
// while writing stops extraction and is returned; files already written
// stay in place.
//
// Extractor is safe for concurrent use.
type Extractor struct {
	maxUncompressed int64
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithMaxUncompressed sets the limit on the total uncompressed size of
// an archive. Zero or negative disables the limit.
func WithMaxUncompressed(n int64) ExtractorOption {
	return func(e *Extractor) {
		e.maxUncompressed = n
	}
}

// NewExtractor creates an Extractor. The default uncompressed limit is
// DefaultMaxUncompressed.
func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{maxUncompressed: DefaultMaxUncompressed}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExtractBytes extracts an in-memory archive into destination.
func (e *Extractor) ExtractBytes(archive []byte, destination string) (*ExtractResult, error) {
	return e.Extract(bytes.NewReader(archive), int64(len(archive)), destination)
}

// Extract unpacks the zip archive read from archive (size bytes long)
// into destination, creating destination and intermediate directories
// as needed and overwriting existing files.
func (e *Extractor) Extract(archive io.ReaderAt, size int64, destination string) (*ExtractResult, error) {
	reader, err := zip.NewReader(archive, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArchive, err)
	}
	// Archives built with zstd (method 93, as written by 7-Zip and
	// WinZip) decode transparently alongside store and deflate.
	reader.RegisterDecompressor(zstd.ZipMethodWinZip, zstd.ZipDecompressor())

	type plannedEntry struct {
		file *zip.File
		rel  string
	}
	plan := make([]plannedEntry, 0, len(reader.File))
	var declared uint64
	for _, file := range reader.File {
		rel, err := cleanRelative(file.Name)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnsafeEntry, err)
		}
		if rel == "" {
			// "./" or similar: the destination itself.
			continue
		}
		declared += file.UncompressedSize64
		plan = append(plan, plannedEntry{file: file, rel: rel})
	}
	if e.maxUncompressed > 0 && declared > uint64(e.maxUncompressed) {
		return nil, fmt.Errorf("%w: archive declares %d bytes, limit is %d",
			ErrArchiveTooLarge, declared, e.maxUncompressed)
	}

	if err := os.MkdirAll(destination, dirPerm); err != nil {
		return nil, fmt.Errorf("%w: creating %s: %w", ErrIO, destination, err)
	}
	root, err := os.OpenRoot(destination)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %w", ErrIO, destination, err)
	}
	defer root.Close()

	result := &ExtractResult{}
	remaining := e.maxUncompressed
	for _, entry := range plan {
		if isDirectoryEntry(entry.file) {
			if err := root.MkdirAll(filepath.FromSlash(entry.rel), dirPerm); err != nil {
				return result, fmt.Errorf("%w: creating directory %s: %w", ErrIO, entry.rel, err)
			}
			result.Directories++
			continue
		}

		written, digest, err := e.extractFile(root, entry.file, entry.rel, remaining)
		if err != nil {
			return result, err
		}
		if e.maxUncompressed > 0 {
			remaining -= written
		}
		result.TotalBytes += written
		result.Files = append(result.Files, ExtractedFile{
			Path:   entry.rel,
			Size:   written,
			Digest: digest,
		})
	}
	return result, nil
}

func (e *Extractor) extractFile(root *os.Root, file *zip.File, rel string, remaining int64) (int64, string, error) {
	content, err := file.Open()
	if err != nil {
		if errors.Is(err, zip.ErrAlgorithm) {
			return 0, "", fmt.Errorf("%w: %s uses unsupported compression method %d",
				ErrInvalidArchive, file.Name, file.Method)
		}
		return 0, "", fmt.Errorf("%w: opening %s: %w", ErrInvalidArchive, file.Name, err)
	}
	defer content.Close()

	var source io.Reader = &archiveReader{reader: content, name: file.Name}
	if e.maxUncompressed > 0 {
		source = &limitedReader{reader: source, remaining: remaining}
	}

	written, digest, err := writeFile(root, rel, source)
	if err != nil {
		return 0, "", storageError("extracting %s", err, rel)
	}
	return written, digest, nil
}

// isDirectoryEntry reports whether a zip entry is a directory. Tools
// mark directories with a trailing slash, the directory mode bit, or
// both.
func isDirectoryEntry(file *zip.File) bool {
	return strings.HasSuffix(strings.ReplaceAll(file.Name, `\`, "/"), "/") || file.FileInfo().IsDir()
}

// archiveReader tags read errors from the decompressor as archive
// corruption rather than storage failures.
type archiveReader struct {
	reader io.Reader
	name   string
}

func (r *archiveReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	if err != nil && err != io.EOF {
		return n, fmt.Errorf("%w: reading %s: %w", ErrInvalidArchive, r.name, err)
	}
	return n, err
}

// limitedReader fails with ErrArchiveTooLarge once more than remaining
// bytes have been read. Declared sizes in the central directory are
// checked up front, but they are attacker-controlled, so the actual
// decompressed byte count is enforced as well.
type limitedReader struct {
	reader    io.Reader
	remaining int64
}

func (r *limitedReader) Read(p []byte) (int, error) {
	if r.remaining <= 0 {
		// Probe for one more byte to distinguish "exactly at the limit"
		// from "over the limit".
		var probe [1]byte
		n, err := r.reader.Read(probe[:])
		if n > 0 {
			return 0, fmt.Errorf("%w: expanded content exceeds the limit", ErrArchiveTooLarge)
		}
		return 0, err
	}
	if int64(len(p)) > r.remaining {
		p = p[:r.remaining]
	}
	n, err := r.reader.Read(p)
	r.remaining -= int64(n)
	return n, err
}
