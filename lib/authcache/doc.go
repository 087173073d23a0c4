// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package authcache remembers authorization verdicts for a short time
// so that every page request does not trigger a round trip to the
// identity provider.
//
// A verdict (allowed or denied) is cached per identity for a TTL,
// DefaultTTL unless configured. Probe failures are never cached: the
// next request probes again. Concurrent checks for the same identity
// may each run the probe; the last result wins.
package authcache
