// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"sync/atomic"
)

var refCounter atomic.Uint64

// UniqueRef returns a distinct, valid 40-character lower-case hex
// commit reference on every call within the test binary.
//
//	ref := gitref.MustParse(testutil.UniqueRef())
func UniqueRef() string {
	return fmt.Sprintf("%040x", refCounter.Add(1))
}
