// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package authcache

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bureau-foundation/docshuttle/lib/clock"
)

const (
	// DefaultTTL is how long a verdict stays fresh.
	DefaultTTL = 5 * time.Minute

	// DefaultMaxEntries bounds the number of identities remembered.
	DefaultMaxEntries = 10000
)

// ErrProbeFailed wraps errors returned by a Probe. The caller should
// treat the request as unauthenticated; nothing was cached.
var ErrProbeFailed = errors.New("authcache: authorization probe failed")

// Probe asks the identity provider whether the caller may read the
// protected resource.
type Probe func(ctx context.Context) (bool, error)

// Outcome classifies one Check call for observers.
type Outcome string

const (
	OutcomeHit        Outcome = "hit"
	OutcomeMiss       Outcome = "miss"
	OutcomeProbeError Outcome = "probe_error"
)

// Observer is notified after each Check.
type Observer func(Outcome)

type entry struct {
	identity  string
	allowed   bool
	checkedAt time.Time
}

// Cache is a TTL cache of authorization verdicts with an LRU bound on
// the number of identities. Safe for concurrent use.
type Cache struct {
	clock      clock.Clock
	ttl        time.Duration
	maxEntries int
	observer   Observer

	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front = most recently used
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL sets how long a verdict stays fresh. Non-positive values are
// ignored.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock sets the time source.
func WithClock(source clock.Clock) Option {
	return func(c *Cache) {
		c.clock = source
	}
}

// WithMaxEntries bounds the number of cached identities. When full,
// the least recently used identity is evicted. Non-positive values are
// ignored.
func WithMaxEntries(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

// WithObserver registers a callback invoked with the outcome of every
// Check.
func WithObserver(observer Observer) Option {
	return func(c *Cache) {
		c.observer = observer
	}
}

// New creates a Cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		clock:      clock.Real(),
		ttl:        DefaultTTL,
		maxEntries: DefaultMaxEntries,
		entries:    make(map[string]*list.Element),
		order:      list.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the configured verdict lifetime.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Check returns the verdict for identity. A verdict younger than the
// TTL is returned without calling probe. Otherwise probe runs without
// the cache lock held; its verdict is stored and returned. A probe
// error is returned wrapped in ErrProbeFailed and leaves the cache
// unchanged.
func (c *Cache) Check(ctx context.Context, identity string, probe Probe) (bool, error) {
	if allowed, ok := c.lookup(identity); ok {
		c.observe(OutcomeHit)
		return allowed, nil
	}

	allowed, err := probe(ctx)
	if err != nil {
		c.observe(OutcomeProbeError)
		return false, fmt.Errorf("%w: %w", ErrProbeFailed, err)
	}

	c.store(identity, allowed)
	c.observe(OutcomeMiss)
	return allowed, nil
}

// Invalidate forgets the verdict for identity.
func (c *Cache) Invalidate(identity string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if element, ok := c.entries[identity]; ok {
		c.removeLocked(element)
	}
}

// Len returns the number of cached identities, fresh or stale.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *Cache) lookup(identity string) (bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	element, ok := c.entries[identity]
	if !ok {
		return false, false
	}
	cached := element.Value.(*entry)
	if c.clock.Now().Sub(cached.checkedAt) >= c.ttl {
		// Stale entries stay until replaced or evicted; they are never
		// returned.
		return false, false
	}
	c.order.MoveToFront(element)
	return cached.allowed, true
}

func (c *Cache) store(identity string, allowed bool) {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if element, ok := c.entries[identity]; ok {
		cached := element.Value.(*entry)
		cached.allowed = allowed
		cached.checkedAt = now
		c.order.MoveToFront(element)
		return
	}

	for c.order.Len() >= c.maxEntries {
		c.removeLocked(c.order.Back())
	}
	c.entries[identity] = c.order.PushFront(&entry{
		identity:  identity,
		allowed:   allowed,
		checkedAt: now,
	})
}

// removeLocked drops element from the list and index. Caller holds mu.
func (c *Cache) removeLocked(element *list.Element) {
	c.order.Remove(element)
	delete(c.entries, element.Value.(*entry).identity)
}

func (c *Cache) observe(outcome Outcome) {
	if c.observer != nil {
		c.observer(outcome)
	}
}
