// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package gitref parses the commit references that identify
// documentation artifacts.
//
// A full reference is a 40-character hexadecimal commit hash. A prefix
// is 7 to 39 hexadecimal characters. Both are case-insensitive on input
// and canonicalized to lower case: every value this package returns is
// lower case, so two spellings of the same commit always compare equal.
//
// The literal token "head" is not a reference; it names whichever
// reference the store currently designates as latest. [IsHead] reports
// whether a URL path segment is that token.
package gitref
