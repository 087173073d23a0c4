// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable source of the current time.
//
// Components with time-to-live logic take a [Clock] so tests can use
// [Fake] and step time forward deterministically instead of sleeping.
package clock
