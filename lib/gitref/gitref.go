// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gitref

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// FullLength is the length of a full reference in hex characters.
	FullLength = 40

	// MinPrefixLength is the shortest accepted abbreviated reference.
	MinPrefixLength = 7

	// HeadToken is the path segment that names the current head.
	HeadToken = "head"
)

var (
	// ErrMalformed is returned for values outside the accepted length
	// window or containing non-hex characters.
	ErrMalformed = errors.New("gitref: malformed reference")
)

// Ref is a canonical (lower-case) 40-character commit hash. The zero
// value is not a valid reference; use [Parse] to construct one.
type Ref string

// Prefix is a canonical (lower-case) abbreviated reference of
// MinPrefixLength to FullLength-1 characters.
type Prefix string

// Parse validates a full reference and returns its canonical form.
func Parse(value string) (Ref, error) {
	if len(value) != FullLength {
		return "", fmt.Errorf("%w: %q is %d characters, want %d", ErrMalformed, value, len(value), FullLength)
	}
	if !isHex(value) {
		return "", fmt.Errorf("%w: %q is not hexadecimal", ErrMalformed, value)
	}
	return Ref(strings.ToLower(value)), nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// package-level constants.
func MustParse(value string) Ref {
	ref, err := Parse(value)
	if err != nil {
		panic(err)
	}
	return ref
}

// ParsePrefix validates an abbreviated reference and returns its
// canonical form. Full-length values are rejected: callers that accept
// both should check the length first and use Parse for 40 characters.
func ParsePrefix(value string) (Prefix, error) {
	if len(value) < MinPrefixLength || len(value) >= FullLength {
		return "", fmt.Errorf("%w: prefix %q must be %d to %d characters",
			ErrMalformed, value, MinPrefixLength, FullLength-1)
	}
	if !isHex(value) {
		return "", fmt.Errorf("%w: %q is not hexadecimal", ErrMalformed, value)
	}
	return Prefix(strings.ToLower(value)), nil
}

// Valid reports whether value is a full reference in any case.
func Valid(value string) bool {
	return len(value) == FullLength && isHex(value)
}

// IsHead reports whether a path segment is the head token. The match is
// exact: "HEAD" is not the head token (and not a valid reference either).
func IsHead(value string) bool {
	return value == HeadToken
}

// String returns the reference as a string.
func (r Ref) String() string { return string(r) }

// Short returns the first MinPrefixLength characters, the form used in
// log lines and listings.
func (r Ref) Short() string {
	if len(r) < MinPrefixLength {
		return string(r)
	}
	return string(r[:MinPrefixLength])
}

// HasPrefix reports whether the reference starts with prefix.
func (r Ref) HasPrefix(prefix Prefix) bool {
	return strings.HasPrefix(string(r), string(prefix))
}

// String returns the prefix as a string.
func (p Prefix) String() string { return string(p) }

func isHex(value string) bool {
	for i := 0; i < len(value); i++ {
		c := value[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
