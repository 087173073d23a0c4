// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import "time"

// Fataler is the subset of testing.TB the helpers need.
type Fataler interface {
	Helper()
	Fatalf(format string, args ...any)
}

// Receive returns the next value from ch, failing the test if none
// arrives within timeout or ch is closed first. what names the wait in
// the failure message.
//
//	err := testutil.Receive(t, serveDone, 5*time.Second, "Serve to return")
func Receive[T any](t Fataler, ch <-chan T, timeout time.Duration, what string) T {
	t.Helper()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case value, ok := <-ch:
		if !ok {
			t.Fatalf("channel closed while waiting for %s", what)
		}
		return value
	case <-timer.C:
		t.Fatalf("timed out after %v waiting for %s", timeout, what)
	}
	panic("unreachable")
}

// WaitClosed fails the test unless ch is closed (or delivers a value)
// within timeout. Readiness channels signal by closing.
//
//	testutil.WaitClosed(t, server.Ready(), 5*time.Second, "server ready")
func WaitClosed(t Fataler, ch <-chan struct{}, timeout time.Duration, what string) {
	t.Helper()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ch:
	case <-timer.C:
		t.Fatalf("timed out after %v waiting for %s", timeout, what)
	}
}
