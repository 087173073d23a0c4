// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package artifact

import (
	"sort"
	"strings"
	"sync"

	"github.com/bureau-foundation/docshuttle/lib/gitref"
)

// Index is an in-memory sorted set of stored references. It answers
// prefix lookups with a binary search instead of re-reading the store
// root on every request.
//
// The index is built once from [Store.References] at startup and
// updated by the [Ingester] after each upload. References are never
// removed (the store never deletes artifacts), so the only staleness is
// a directory created by another process after startup, which appears
// after the next restart.
//
// Index is safe for concurrent use.
type Index struct {
	mu   sync.RWMutex
	refs []gitref.Ref // sorted ascending, unique
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{}
}

// BuildIndex creates an index populated from a Lister (normally the
// Store).
func BuildIndex(source Lister) (*Index, error) {
	refs, err := source.References()
	if err != nil {
		return nil, err
	}
	idx := NewIndex()
	idx.Build(refs)
	return idx, nil
}

// Build replaces the index contents with refs.
func (idx *Index) Build(refs []gitref.Ref) {
	sorted := make([]gitref.Ref, len(refs))
	copy(sorted, refs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	unique := sorted[:0]
	for i, ref := range sorted {
		if i > 0 && ref == sorted[i-1] {
			continue
		}
		unique = append(unique, ref)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.refs = unique
}

// Add registers ref. Adding a reference that is already present is a
// no-op.
func (idx *Index) Add(ref gitref.Ref) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	position := sort.Search(len(idx.refs), func(i int) bool { return idx.refs[i] >= ref })
	if position < len(idx.refs) && idx.refs[position] == ref {
		return
	}
	idx.refs = append(idx.refs, "")
	copy(idx.refs[position+1:], idx.refs[position:])
	idx.refs[position] = ref
}

// References returns a copy of all indexed references in ascending
// order.
func (idx *Index) References() ([]gitref.Ref, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	result := make([]gitref.Ref, len(idx.refs))
	copy(result, idx.refs)
	return result, nil
}

// Matches returns the indexed references starting with prefix, in
// ascending order.
func (idx *Index) Matches(prefix gitref.Prefix) []gitref.Ref {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	start := sort.Search(len(idx.refs), func(i int) bool { return string(idx.refs[i]) >= string(prefix) })
	var matches []gitref.Ref
	for i := start; i < len(idx.refs) && strings.HasPrefix(string(idx.refs[i]), string(prefix)); i++ {
		matches = append(matches, idx.refs[i])
	}
	return matches
}

// Len returns the number of indexed references.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.refs)
}
