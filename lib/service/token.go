// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"crypto/sha256"
	"crypto/subtle"
)

// TokensEqual compares a presented shared secret against the expected
// one in constant time. Both are hashed first so the comparison does
// not leak the expected length. An empty expected token never matches.
func TokensEqual(expected, presented string) bool {
	if expected == "" {
		return false
	}
	expectedSum := sha256.Sum256([]byte(expected))
	presentedSum := sha256.Sum256([]byte(presented))
	return subtle.ConstantTimeCompare(expectedSum[:], presentedSum[:]) == 1
}
