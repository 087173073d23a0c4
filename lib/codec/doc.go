// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the CBOR configuration used for records persisted
// next to the artifact tree (upload manifests).
//
// Encoding uses Core Deterministic Encoding (RFC 8949 §4.2) so that the
// same record always produces the same bytes. Struct types use json
// tags: fxamacker/cbor falls back to them, so one type serves both the
// on-disk CBOR form and the JSON API form.
package codec
