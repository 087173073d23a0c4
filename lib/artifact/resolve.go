// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package artifact

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/bureau-foundation/docshuttle/lib/gitref"
)

// Lister enumerates stored references. [Store] implements it by
// reading the root directory; [Index] implements it from memory.
type Lister interface {
	References() ([]gitref.Ref, error)
}

// prefixMatcher is implemented by listers that can answer prefix
// queries without a full enumeration.
type prefixMatcher interface {
	Matches(prefix gitref.Prefix) []gitref.Ref
}

// HeadReader reads the current head reference.
type HeadReader interface {
	Get() (gitref.Ref, error)
}

// Resolver maps a request token to exactly one full reference.
//
// Accepted tokens:
//
//   - "head": the current head pointer.
//   - 40 hex characters: returned in canonical form without an
//     existence check (the store reports missing artifacts when the
//     file is opened).
//   - 7 to 39 hex characters: the stored reference with that prefix.
//
// Anything else is ErrNotFound without touching storage. When a prefix
// matches several references the lexicographically smallest one is
// returned, so the answer depends only on the set of stored references
// and never on directory iteration order. A resolver built with
// [WithStrictPrefixes] reports ErrAmbiguous instead.
type Resolver struct {
	refs   Lister
	head   HeadReader
	strict bool
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithStrictPrefixes makes prefixes that match more than one reference
// fail with ErrAmbiguous instead of resolving to the smallest match.
func WithStrictPrefixes() ResolverOption {
	return func(r *Resolver) {
		r.strict = true
	}
}

// NewResolver creates a Resolver over the given reference source and
// head pointer.
func NewResolver(refs Lister, head HeadReader, opts ...ResolverOption) *Resolver {
	r := &Resolver{refs: refs, head: head}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the full reference named by token.
func (r *Resolver) Resolve(token string) (gitref.Ref, error) {
	if gitref.IsHead(token) {
		ref, err := r.head.Get()
		if errors.Is(err, ErrHeadUnset) {
			return "", fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return ref, err
	}

	if len(token) == gitref.FullLength {
		ref, err := gitref.Parse(token)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return ref, nil
	}

	prefix, err := gitref.ParsePrefix(token)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	matches, err := r.Matches(prefix)
	if err != nil {
		return "", err
	}
	switch {
	case len(matches) == 0:
		return "", fmt.Errorf("%w: no artifact matches %s", ErrNotFound, prefix)
	case len(matches) > 1 && r.strict:
		candidates := make([]string, len(matches))
		for i, match := range matches {
			candidates[i] = string(match)
		}
		return "", fmt.Errorf("%w: %s matches %d artifacts, use the full reference: %s",
			ErrAmbiguous, prefix, len(matches), strings.Join(candidates, ", "))
	}
	return matches[0], nil
}

// Matches returns every stored reference starting with prefix, in
// ascending order.
func (r *Resolver) Matches(prefix gitref.Prefix) ([]gitref.Ref, error) {
	if matcher, ok := r.refs.(prefixMatcher); ok {
		return matcher.Matches(prefix), nil
	}

	refs, err := r.refs.References()
	if err != nil {
		return nil, err
	}
	var matches []gitref.Ref
	for _, ref := range refs {
		if ref.HasPrefix(prefix) {
			matches = append(matches, ref)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i] < matches[j] })
	return matches, nil
}
