// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/bureau-foundation/docshuttle/lib/artifact"
	"github.com/bureau-foundation/docshuttle/lib/authcache"
	"github.com/bureau-foundation/docshuttle/lib/gitref"
	"github.com/bureau-foundation/docshuttle/lib/netutil"
	"github.com/bureau-foundation/docshuttle/lib/service"
)

// multipartMemory is how much of an upload is buffered in memory before
// the multipart parser spills to temporary files.
const multipartMemory = 32 << 20

// handleListing renders every stored artifact, newest first.
func (s *server) handleListing(w http.ResponseWriter, r *http.Request) {
	if !s.admit(w, r) {
		return
	}

	head, err := s.currentHead()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	artifacts, err := s.store.List()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	page := listingPage
	if head == "" && len(artifacts) == 0 {
		page = emptyPage
	}
	s.renderPage(w, page, newListingData(head, artifacts, s.gate != nil))
}

// handleArtifactRoot sends /{ref} to /{ref}/ so relative links in the
// served index.html resolve inside the artifact.
func (s *server) handleArtifactRoot(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("ref")
	if !s.servable(token) {
		http.NotFound(w, r)
		return
	}
	target := "/" + token + "/"
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}
	http.Redirect(w, r, target, http.StatusMovedPermanently)
}

// handleArtifact serves one file from an artifact.
func (s *server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("ref")
	if !s.servable(token) {
		http.NotFound(w, r)
		return
	}
	if !s.admit(w, r) {
		return
	}

	ref, err := s.resolve(token)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	rel := r.PathValue("path")
	if !gitref.IsHead(token) && token != ref.String() {
		http.Redirect(w, r, canonicalLocation(r, token, ref), http.StatusFound)
		return
	}

	file, info, err := s.store.Open(ref, rel)
	if err != nil {
		if errors.Is(err, artifact.ErrNotFound) && s.isDirectory(ref, rel) {
			http.Redirect(w, r, r.URL.Path+"/", http.StatusMovedPermanently)
			return
		}
		s.writeError(w, r, err)
		return
	}
	defer file.Close()
	http.ServeContent(w, r, info.Name(), info.ModTime(), file)
}

// handleUpload stores an archive for a commit and moves head to it.
func (s *server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.upload.Token != "" {
		presented, _ := netutil.BearerToken(r)
		if !service.TokensEqual(s.upload.Token, presented) {
			s.metrics.IncUpload("unauthorized")
			w.Header().Set("WWW-Authenticate", `Bearer realm="docshuttle"`)
			http.Error(w, "upload token required", http.StatusUnauthorized)
			return
		}
	}

	if r.ContentLength > s.upload.MaxBytes {
		s.rejectUpload(w, "too_large", "upload exceeds the size limit", http.StatusRequestEntityTooLarge)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.upload.MaxBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.rejectUpload(w, "too_large", "upload exceeds the size limit", http.StatusRequestEntityTooLarge)
			return
		}
		s.rejectUpload(w, "bad_request", "expected a multipart form with commit and file", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	ref, err := gitref.Parse(r.FormValue("commit"))
	if err != nil {
		s.rejectUpload(w, "bad_request", "commit must be a 40 character hexadecimal hash", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.rejectUpload(w, "bad_request", "missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	// Large parts are spooled to disk by ParseMultipartForm; the archive
	// is read from there in place.
	if _, err := s.ingester.Ingest(ref, file, header.Size); err != nil {
		s.metrics.IncUpload(uploadResult(err))
		s.writeError(w, r, err)
		return
	}
	s.metrics.IncUpload("stored")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	w.Write([]byte("true"))
}

func (s *server) rejectUpload(w http.ResponseWriter, result, message string, status int) {
	s.metrics.IncUpload(result)
	http.Error(w, message, status)
}

// refListing is the JSON form of the listing page.
type refListing struct {
	Head      gitref.Ref          `json:"head,omitempty"`
	Artifacts []artifact.Artifact `json:"artifacts"`
}

func (s *server) handleAPIListing(w http.ResponseWriter, r *http.Request) {
	if !s.admit(w, r) {
		return
	}
	head, err := s.currentHead()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	artifacts, err := s.store.List()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if artifacts == nil {
		artifacts = []artifact.Artifact{}
	}
	s.writeJSON(w, refListing{Head: head, Artifacts: artifacts})
}

// handleAPIManifest returns the upload manifest for one artifact.
func (s *server) handleAPIManifest(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("ref")
	if !s.servable(token) {
		http.NotFound(w, r)
		return
	}
	if !s.admit(w, r) {
		return
	}
	ref, err := s.resolve(token)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	manifest, err := s.manifests.Read(ref)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, manifest)
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok\n"))
}

// servable reports whether token can name an artifact at all. Requests
// failing it get 404 without a login: "head" before the first upload,
// and anything that is neither a full reference nor a prefix.
func (s *server) servable(token string) bool {
	switch {
	case gitref.IsHead(token):
		_, err := s.head.Get()
		return !errors.Is(err, artifact.ErrHeadUnset)
	case len(token) == gitref.FullLength:
		return gitref.Valid(token)
	default:
		_, err := gitref.ParsePrefix(token)
		return err == nil
	}
}

// resolve maps a path token to a reference and records the outcome.
func (s *server) resolve(token string) (gitref.Ref, error) {
	ref, err := s.resolver.Resolve(token)
	switch {
	case errors.Is(err, artifact.ErrAmbiguous):
		s.metrics.IncResolve("ambiguous")
	case errors.Is(err, artifact.ErrNotFound):
		s.metrics.IncResolve("not_found")
	case err != nil:
		s.metrics.IncResolve("error")
	case gitref.IsHead(token):
		s.metrics.IncResolve("head")
	case len(token) == gitref.FullLength:
		s.metrics.IncResolve("full")
	default:
		s.metrics.IncResolve("prefix")
	}
	return ref, err
}

// currentHead returns the head reference, or "" before the first
// upload.
func (s *server) currentHead() (gitref.Ref, error) {
	head, err := s.head.Get()
	if errors.Is(err, artifact.ErrHeadUnset) {
		return "", nil
	}
	return head, err
}

// isDirectory reports whether rel names a directory inside the artifact,
// for requests that omit the trailing slash.
func (s *server) isDirectory(ref gitref.Ref, rel string) bool {
	if rel == "" || strings.HasSuffix(rel, "/") {
		return false
	}
	path, err := s.store.ResolvePath(ref, rel)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// canonicalLocation rewrites the request URL to name ref in full,
// keeping the rest of the path and the query.
func canonicalLocation(r *http.Request, token string, ref gitref.Ref) string {
	rest := strings.TrimPrefix(r.URL.EscapedPath(), "/"+token)
	location := "/" + ref.String() + rest
	if r.URL.RawQuery != "" {
		location += "?" + r.URL.RawQuery
	}
	return location
}

// statusFor maps an error from the artifact layer or the gate to an
// HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, artifact.ErrNotFound),
		errors.Is(err, artifact.ErrHeadUnset),
		errors.Is(err, artifact.ErrUnsafePath):
		return http.StatusNotFound
	case errors.Is(err, artifact.ErrAmbiguous):
		return http.StatusConflict
	case errors.Is(err, artifact.ErrUnsafeEntry):
		return http.StatusUnprocessableEntity
	case errors.Is(err, artifact.ErrInvalidArchive):
		return http.StatusBadRequest
	case errors.Is(err, artifact.ErrArchiveTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, authcache.ErrProbeFailed):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// uploadResult is the metrics label for a failed ingest.
func uploadResult(err error) string {
	switch statusFor(err) {
	case http.StatusUnprocessableEntity:
		return "unsafe_entry"
	case http.StatusBadRequest:
		return "invalid_archive"
	case http.StatusRequestEntityTooLarge:
		return "too_large"
	default:
		return "error"
	}
}

// writeError writes the status for err. Client errors carry the error
// text; server errors are logged and answered generically.
func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		http.Error(w, "internal error", status)
		return
	}
	if status == http.StatusNotFound {
		http.NotFound(w, r)
		return
	}
	http.Error(w, err.Error(), status)
}

func (s *server) writeJSON(w http.ResponseWriter, value any) {
	body, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		s.logger.Error("encoding response", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(append(body, '\n'))
}

func (s *server) renderPage(w http.ResponseWriter, page *template.Template, data any) {
	var buffer strings.Builder
	if err := page.Execute(&buffer, data); err != nil {
		s.logger.Error("rendering page", "page", page.Name(), "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, buffer.String())
}
