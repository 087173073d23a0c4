// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"

	"github.com/bureau-foundation/docshuttle/lib/gitref"
	"github.com/bureau-foundation/docshuttle/lib/netutil"
)

// archiveStats summarizes an archive written by archiveDirectory.
type archiveStats struct {
	Files int
	Bytes int64
}

// archiveDirectory writes every regular file under dir to w as a zip
// archive, with slash-separated names relative to dir. Symlinks and
// other special files are skipped. With useZstd entries are compressed
// with zstd instead of deflate.
func archiveDirectory(w io.Writer, dir string, useZstd bool) (archiveStats, error) {
	var stats archiveStats
	info, err := os.Stat(dir)
	if err != nil {
		return stats, err
	}
	if !info.IsDir() {
		return stats, fmt.Errorf("%s is not a directory", dir)
	}

	writer := zip.NewWriter(w)
	method := zip.Deflate
	if useZstd {
		writer.RegisterCompressor(zstd.ZipMethodWinZip, zstd.ZipCompressor())
		method = zstd.ZipMethodWinZip
	}

	err = filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		fileInfo, err := entry.Info()
		if err != nil {
			return err
		}
		header, err := zip.FileInfoHeader(fileInfo)
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(rel)
		header.Method = method

		target, err := writer.CreateHeader(header)
		if err != nil {
			return fmt.Errorf("adding %s: %w", header.Name, err)
		}
		source, err := os.Open(path)
		if err != nil {
			return err
		}
		written, err := io.Copy(target, source)
		source.Close()
		if err != nil {
			return fmt.Errorf("compressing %s: %w", header.Name, err)
		}
		stats.Files++
		stats.Bytes += written
		return nil
	})
	if err != nil {
		return stats, err
	}
	if err := writer.Close(); err != nil {
		return stats, fmt.Errorf("finishing archive: %w", err)
	}
	return stats, nil
}

// pushRequest describes one upload.
type pushRequest struct {
	// Server is the docshuttle base URL.
	Server string
	Commit gitref.Ref
	// Token is sent as a bearer token when non-empty.
	Token   string
	Archive []byte
}

// push uploads an archive and waits for the server to accept it.
func push(ctx context.Context, client *http.Client, request pushRequest) error {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	if err := form.WriteField("commit", request.Commit.String()); err != nil {
		return err
	}
	part, err := form.CreateFormFile("file", request.Commit.String()+".zip")
	if err != nil {
		return err
	}
	if _, err := part.Write(request.Archive); err != nil {
		return err
	}
	if err := form.Close(); err != nil {
		return err
	}

	endpoint := strings.TrimRight(request.Server, "/") + "/"
	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return fmt.Errorf("building upload request: %w", err)
	}
	httpRequest.Header.Set("Content-Type", form.FormDataContentType())
	if request.Token != "" {
		httpRequest.Header.Set("Authorization", "Bearer "+request.Token)
	}

	response, err := client.Do(httpRequest)
	if err != nil {
		return fmt.Errorf("uploading to %s: %w", endpoint, err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusAccepted {
		return fmt.Errorf("upload rejected: %s: %s", response.Status, netutil.ErrorBody(response.Body))
	}
	var accepted bool
	if err := netutil.DecodeResponse(response.Body, &accepted); err != nil {
		return fmt.Errorf("reading upload response: %w", err)
	}
	if !accepted {
		return fmt.Errorf("server did not accept the upload")
	}
	return nil
}
