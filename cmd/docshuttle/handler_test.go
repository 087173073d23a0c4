// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bureau-foundation/docshuttle/lib/artifact"
	"github.com/bureau-foundation/docshuttle/lib/authcache"
	"github.com/bureau-foundation/docshuttle/lib/config"
	"github.com/bureau-foundation/docshuttle/lib/testutil"
)

func TestUploadThenBrowse(t *testing.T) {
	h := newHarness(t, nil)

	recorder := h.upload(refA,
		testutil.ArchiveEntry{Name: "index.html", Content: "<h1>release notes</h1>"},
		testutil.ArchiveEntry{Name: "build.txt", Content: "sphinx ok"},
		testutil.ArchiveEntry{Name: "guide/", Content: ""},
		testutil.ArchiveEntry{Name: "guide/index.html", Content: "guide"},
	)
	if recorder.Code != http.StatusAccepted {
		t.Fatalf("upload: status = %d, want 202 (body %q)", recorder.Code, recorder.Body.String())
	}
	if got := recorder.Body.String(); got != "true" {
		t.Errorf("upload body = %q, want %q", got, "true")
	}
	if got := recorder.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("upload Content-Type = %q, want application/json", got)
	}

	cookie := h.login("/")

	prefix := h.get("/abc1234/", cookie)
	if prefix.Code != http.StatusFound {
		t.Fatalf("GET /abc1234/: status = %d, want 302", prefix.Code)
	}
	if got, want := prefix.Header().Get("Location"), "/"+refA+"/"; got != want {
		t.Errorf("prefix redirect = %q, want %q", got, want)
	}

	tests := []struct {
		path string
		want string
	}{
		{"/" + refA + "/", "<h1>release notes</h1>"},
		{"/" + refA + "/index.html", "<h1>release notes</h1>"},
		{"/" + refA + "/guide/", "guide"},
		{"/head/", "<h1>release notes</h1>"},
		{"/head/build.txt", "sphinx ok"},
	}
	for _, test := range tests {
		t.Run(test.path, func(t *testing.T) {
			recorder := h.get(test.path, cookie)
			if recorder.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", recorder.Code)
			}
			if got := recorder.Body.String(); got != test.want {
				t.Errorf("body = %q, want %q", got, test.want)
			}
		})
	}
}

func TestHeadFollowsLatestUpload(t *testing.T) {
	h := newHarness(t, func(c *config.Config) { c.Auth.Disabled = true })

	for _, step := range []struct {
		ref   string
		label string
	}{
		{refA, "a"},
		{refC, "c"},
		{refA, "a again"},
	} {
		h.mustUpload(step.ref, step.label)
		recorder := h.get("/head/", nil)
		if recorder.Code != http.StatusOK {
			t.Fatalf("GET /head/ after %s: status = %d, want 200", step.label, recorder.Code)
		}
		if got, want := recorder.Body.String(), "docs "+step.label; got != want {
			t.Errorf("GET /head/ after %s = %q, want %q", step.label, got, want)
		}
	}
}

func TestUploadCanonicalizesCommit(t *testing.T) {
	h := newHarness(t, func(c *config.Config) { c.Auth.Disabled = true })
	h.mustUpload(strings.ToUpper(refC), "c")

	recorder := h.get("/"+refC+"/", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("GET lower-case ref: status = %d, want 200", recorder.Code)
	}

	upper := h.get("/"+strings.ToUpper(refC)+"/index.html?x=1", nil)
	if upper.Code != http.StatusFound {
		t.Fatalf("GET upper-case ref: status = %d, want 302", upper.Code)
	}
	if got, want := upper.Header().Get("Location"), "/"+refC+"/index.html?x=1"; got != want {
		t.Errorf("Location = %q, want %q", got, want)
	}
}

func TestEmptyStore(t *testing.T) {
	h := newHarness(t, nil)

	// Nothing can be served before the first upload, so no login is
	// demanded for head.
	if got := h.get("/head/", nil).Code; got != http.StatusNotFound {
		t.Errorf("GET /head/ on empty store: status = %d, want 404", got)
	}

	cookie := h.login("/")
	recorder := h.get("/", cookie)
	if recorder.Code != http.StatusOK {
		t.Fatalf("GET /: status = %d, want 200", recorder.Code)
	}
	if body := recorder.Body.String(); !strings.Contains(body, "Nothing has been uploaded yet") {
		t.Errorf("GET / on empty store did not render the empty page:\n%s", body)
	}

	api := h.get("/_api/refs", cookie)
	var listing refListing
	if err := json.Unmarshal(api.Body.Bytes(), &listing); err != nil {
		t.Fatalf("decoding /_api/refs: %v", err)
	}
	if listing.Head != "" || len(listing.Artifacts) != 0 {
		t.Errorf("/_api/refs on empty store = %+v, want empty", listing)
	}
}

func TestListing(t *testing.T) {
	h := newHarness(t, func(c *config.Config) { c.Auth.Disabled = true })
	h.mustUpload(refA, "a", testutil.ArchiveEntry{Name: "build.txt", Content: "log"})
	h.mustUpload(refC, "c")

	recorder := h.get("/", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("GET /: status = %d, want 200", recorder.Code)
	}
	if got := recorder.Header().Get("Content-Type"); got != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q", got)
	}
	body := recorder.Body.String()
	for _, want := range []string{
		`href="/` + refA + `/"`,
		`href="/` + refC + `/"`,
		`href="/` + refA + `/build.txt"`,
		`href="/head/"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("listing missing %s", want)
		}
	}
	if strings.Contains(body, refC+`/build.txt`) {
		t.Errorf("listing links a build log for %s, which has none", refC)
	}

	api := h.get("/_api/refs", nil)
	if got := api.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("/_api/refs Content-Type = %q", got)
	}
	var listing refListing
	if err := json.Unmarshal(api.Body.Bytes(), &listing); err != nil {
		t.Fatalf("decoding /_api/refs: %v", err)
	}
	if listing.Head != refC {
		t.Errorf("head = %q, want %q", listing.Head, refC)
	}
	if len(listing.Artifacts) != 2 {
		t.Fatalf("artifacts = %d, want 2", len(listing.Artifacts))
	}
}

func TestListingTimeFormat(t *testing.T) {
	data := newListingData(refA, []artifact.Artifact{{Ref: refA}}, false)
	if got, want := data.Rows[0].Modified, "0001-01-01T00:00:00Z"; got != want {
		t.Errorf("Modified = %q, want %q", got, want)
	}
	if !data.Rows[0].IsHead {
		t.Error("row for head not marked")
	}
}

func TestArtifactRootRedirect(t *testing.T) {
	h := newHarness(t, func(c *config.Config) { c.Auth.Disabled = true })
	h.mustUpload(refA, "a")

	recorder := h.get("/head", nil)
	if recorder.Code != http.StatusMovedPermanently {
		t.Fatalf("GET /head: status = %d, want 301", recorder.Code)
	}
	if got := recorder.Header().Get("Location"); got != "/head/" {
		t.Errorf("Location = %q, want /head/", got)
	}

	if got := h.get("/favicon.ico", nil).Code; got != http.StatusNotFound {
		t.Errorf("GET /favicon.ico: status = %d, want 404", got)
	}
}

func TestArtifactNotFound(t *testing.T) {
	h := newHarness(t, func(c *config.Config) { c.Auth.Disabled = true })
	h.mustUpload(refA, "a", testutil.ArchiveEntry{Name: "guide/index.html", Content: "guide"})

	tests := []struct {
		name string
		path string
		want int
	}{
		{"missing file", "/" + refA + "/missing.html", http.StatusNotFound},
		{"unknown full ref", "/" + refC + "/", http.StatusNotFound},
		{"unknown prefix", "/fedcba9/", http.StatusNotFound},
		{"short token", "/abc/", http.StatusNotFound},
		{"non-hex token", "/zzzzzzz/", http.StatusNotFound},
		{"upper-case head", "/HEAD/", http.StatusNotFound},
		{"directory without slash", "/" + refA + "/guide", http.StatusMovedPermanently},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := h.get(test.path, nil).Code; got != test.want {
				t.Errorf("GET %s: status = %d, want %d", test.path, got, test.want)
			}
		})
	}
}

func TestArtifactTraversal(t *testing.T) {
	h := newHarness(t, func(c *config.Config) { c.Auth.Disabled = true })
	h.mustUpload(refA, "a")

	recorder := h.get("/"+refA+"/..%2f..%2fhead.txt", nil)
	if recorder.Code == http.StatusOK {
		t.Fatalf("traversal request served %q", recorder.Body.String())
	}
	if strings.Contains(recorder.Body.String(), refA) {
		t.Errorf("traversal response leaked head.txt: %q", recorder.Body.String())
	}
}

func TestPrefixSelection(t *testing.T) {
	t.Run("smallest match", func(t *testing.T) {
		h := newHarness(t, func(c *config.Config) { c.Auth.Disabled = true })
		h.mustUpload(refB, "b")
		h.mustUpload(refA, "a")

		recorder := h.get("/abc1234/", nil)
		if recorder.Code != http.StatusFound {
			t.Fatalf("status = %d, want 302", recorder.Code)
		}
		if got, want := recorder.Header().Get("Location"), "/"+refA+"/"; got != want {
			t.Errorf("Location = %q, want %q", got, want)
		}
	})

	t.Run("strict", func(t *testing.T) {
		h := newHarness(t, func(c *config.Config) {
			c.Auth.Disabled = true
			c.StrictPrefixes = true
		})
		h.mustUpload(refA, "a")
		h.mustUpload(refB, "b")

		recorder := h.get("/abc1234/", nil)
		if recorder.Code != http.StatusConflict {
			t.Fatalf("status = %d, want 409", recorder.Code)
		}
		if body := recorder.Body.String(); !strings.Contains(body, refA) || !strings.Contains(body, refB) {
			t.Errorf("conflict body %q does not name both candidates", body)
		}
	})
}

func TestUploadErrors(t *testing.T) {
	traversal := testutil.BuildArchive(t,
		testutil.ArchiveEntry{Name: "index.html", Content: "ok"},
		testutil.ArchiveEntry{Name: "../escape.txt", Content: "bad"},
	)
	valid := testutil.BuildArchive(t, testutil.ArchiveEntry{Name: "index.html", Content: "ok"})

	tests := []struct {
		name    string
		request func(t *testing.T) *http.Request
		want    int
	}{
		{
			name:    "malformed commit",
			request: func(t *testing.T) *http.Request { return uploadRequest(t, "not-a-commit", valid) },
			want:    http.StatusBadRequest,
		},
		{
			name:    "prefix commit",
			request: func(t *testing.T) *http.Request { return uploadRequest(t, refA[:12], valid) },
			want:    http.StatusBadRequest,
		},
		{
			name:    "missing file",
			request: func(t *testing.T) *http.Request { return uploadRequest(t, refA, nil) },
			want:    http.StatusBadRequest,
		},
		{
			name: "not multipart",
			request: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/", strings.NewReader("commit="+refA))
			},
			want: http.StatusBadRequest,
		},
		{
			name:    "not a zip",
			request: func(t *testing.T) *http.Request { return uploadRequest(t, refA, []byte("plain text")) },
			want:    http.StatusBadRequest,
		},
		{
			name:    "unsafe entry",
			request: func(t *testing.T) *http.Request { return uploadRequest(t, refA, traversal) },
			want:    http.StatusUnprocessableEntity,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			h := newHarness(t, nil)
			recorder := h.do(test.request(t))
			if recorder.Code != test.want {
				t.Fatalf("status = %d, want %d (body %q)", recorder.Code, test.want, recorder.Body.String())
			}
			if _, err := h.server.head.Get(); !errors.Is(err, artifact.ErrHeadUnset) {
				t.Errorf("head after failed upload: err = %v, want ErrHeadUnset", err)
			}
		})
	}
}

func TestUploadFailureKeepsHead(t *testing.T) {
	h := newHarness(t, func(c *config.Config) { c.Auth.Disabled = true })
	h.mustUpload(refA, "a")

	recorder := h.upload(refC,
		testutil.ArchiveEntry{Name: "index.html", Content: "c"},
		testutil.ArchiveEntry{Name: "/etc/passwd", Content: "bad"},
	)
	if recorder.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", recorder.Code)
	}
	head, err := h.server.head.Get()
	if err != nil {
		t.Fatalf("head.Get: %v", err)
	}
	if head != refA {
		t.Errorf("head = %s, want %s", head, refA)
	}
	if !strings.Contains(h.scrape(), `docshuttle_uploads_total{result="unsafe_entry"} 1`) {
		t.Error("unsafe upload not counted")
	}
}

func TestUploadSizeLimits(t *testing.T) {
	t.Run("request body", func(t *testing.T) {
		h := newHarness(t, func(c *config.Config) { c.Upload.MaxBytes = 256 })
		archive := testutil.BuildArchive(t, testutil.ArchiveEntry{
			Name:    "index.html",
			Content: strings.Repeat("x", 4096),
		})
		recorder := h.do(uploadRequest(t, refA, archive))
		if recorder.Code != http.StatusRequestEntityTooLarge {
			t.Fatalf("status = %d, want 413", recorder.Code)
		}
	})

	t.Run("expanded archive", func(t *testing.T) {
		h := newHarness(t, func(c *config.Config) { c.Upload.MaxUncompressedBytes = 1024 })
		recorder := h.upload(refA, testutil.ArchiveEntry{
			Name:    "index.html",
			Content: strings.Repeat("y", 8192),
		})
		if recorder.Code != http.StatusRequestEntityTooLarge {
			t.Fatalf("status = %d, want 413", recorder.Code)
		}
	})
}

func TestUploadToken(t *testing.T) {
	h := newHarness(t, func(c *config.Config) { c.Upload.Token = "ci-token" })
	archive := testutil.BuildArchive(t, testutil.ArchiveEntry{Name: "index.html", Content: "ok"})

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong", "Bearer other", http.StatusUnauthorized},
		{"wrong scheme", "Basic ci-token", http.StatusUnauthorized},
		{"correct", "Bearer ci-token", http.StatusAccepted},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			request := uploadRequest(t, refA, archive)
			if test.header != "" {
				request.Header.Set("Authorization", test.header)
			}
			if got := h.do(request).Code; got != test.want {
				t.Errorf("status = %d, want %d", got, test.want)
			}
		})
	}
}

func TestManifestAPI(t *testing.T) {
	h := newHarness(t, func(c *config.Config) { c.Auth.Disabled = true })
	h.mustUpload(refA, "a", testutil.ArchiveEntry{Name: "build.txt", Content: "log"})

	recorder := h.get("/_api/refs/abc1234", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %q)", recorder.Code, recorder.Body.String())
	}
	var manifest artifact.Manifest
	if err := json.Unmarshal(recorder.Body.Bytes(), &manifest); err != nil {
		t.Fatalf("decoding manifest: %v", err)
	}
	if manifest.Ref != refA {
		t.Errorf("Ref = %s, want %s", manifest.Ref, refA)
	}
	if !manifest.HasBuildLog {
		t.Error("HasBuildLog = false, want true")
	}
	if len(manifest.Files) != 2 {
		t.Errorf("Files = %d, want 2", len(manifest.Files))
	}
	if !strings.HasPrefix(manifest.ArchiveDigest, "blake3:") {
		t.Errorf("ArchiveDigest = %q, want blake3: prefix", manifest.ArchiveDigest)
	}

	if got := h.get("/_api/refs/"+refC, nil).Code; got != http.StatusNotFound {
		t.Errorf("manifest for unknown ref: status = %d, want 404", got)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{artifact.ErrNotFound, http.StatusNotFound},
		{artifact.ErrHeadUnset, http.StatusNotFound},
		{artifact.ErrUnsafePath, http.StatusNotFound},
		{artifact.ErrAmbiguous, http.StatusConflict},
		{artifact.ErrUnsafeEntry, http.StatusUnprocessableEntity},
		{artifact.ErrInvalidArchive, http.StatusBadRequest},
		{artifact.ErrArchiveTooLarge, http.StatusRequestEntityTooLarge},
		{authcache.ErrProbeFailed, http.StatusUnauthorized},
		{artifact.ErrIO, http.StatusInternalServerError},
		{errors.New("anything else"), http.StatusInternalServerError},
	}
	for _, test := range tests {
		t.Run(test.err.Error(), func(t *testing.T) {
			wrapped := fmt.Errorf("context: %w", test.err)
			if got := statusFor(wrapped); got != test.want {
				t.Errorf("statusFor(%v) = %d, want %d", wrapped, got, test.want)
			}
		})
	}
}

func TestCanonicalLocation(t *testing.T) {
	request := httptest.NewRequest(http.MethodGet, "/abc1234/a%20b/page.html?q=1", nil)
	got := canonicalLocation(request, "abc1234", refA)
	if want := "/" + refA + "/a%20b/page.html?q=1"; got != want {
		t.Errorf("canonicalLocation = %q, want %q", got, want)
	}
}

func TestRenderPageEscapes(t *testing.T) {
	h := newHarness(t, nil)
	recorder := httptest.NewRecorder()
	h.server.renderPage(recorder, listingPage, listingData{Title: "<script>"})
	if body := recorder.Body.String(); strings.Contains(body, "<title><script>") {
		t.Errorf("title not escaped:\n%s", body)
	}
}
