// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package service provides the process scaffolding for docshuttle
// binaries: the standard logger, an HTTP server with graceful
// shutdown, request logging middleware, and constant-time token
// comparison for shared-secret endpoints.
//
// Commands compose these in their own main() rather than subclassing a
// framework. The package provides building blocks, not a runtime.
package service
