// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports what docshuttle binary is running.
//
// Release builds inject [Version], [GitCommit], [GitDirty], and
// [BuildTime] with -ldflags -X, for example:
//
//	go build -ldflags "-X github.com/bureau-foundation/docshuttle/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// Anything not injected is taken from the VCS stamp in the binary's
// build info, so a plain "go build" in a checkout still reports its
// commit.
package version
