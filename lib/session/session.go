// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package session keeps browser login sessions for the access gate.
//
// Sessions live in memory, keyed by a random 128-bit ID. The browser
// holds only the ID in a cookie of the form "<id>.<signature>", where
// the signature is HMAC-SHA256 over the ID with a key derived from the
// configured secret. A restart logs everyone out.
//
// The store also tracks pending logins: the OAuth state value handed to
// the provider and the page to return to afterwards. A state is valid
// once and expires after StateLifetime.
package session

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/oauth2"

	"github.com/bureau-foundation/docshuttle/lib/clock"
)

const (
	// CookieName is the session cookie.
	CookieName = "docshuttle_session"

	// DefaultMaxAge is the default session lifetime.
	DefaultMaxAge = 24 * time.Hour

	// StateLifetime bounds how long a login may take between the
	// redirect to the provider and the callback.
	StateLifetime = 10 * time.Minute
)

var (
	// ErrNoSession is returned when the request carries no valid,
	// unexpired session.
	ErrNoSession = errors.New("session: no session")

	// ErrInvalidState is returned by FinishLogin for an unknown,
	// reused, or expired OAuth state.
	ErrInvalidState = errors.New("session: invalid login state")
)

var hkdfInfoCookie = []byte("docshuttle.session.cookie.v1")

// Session is one logged-in browser.
type Session struct {
	ID        string
	Token     *oauth2.Token
	CreatedAt time.Time
}

type pendingLogin struct {
	next    string
	expires time.Time
}

// Store holds sessions and pending logins. Safe for concurrent use.
type Store struct {
	key    []byte
	clock  clock.Clock
	maxAge time.Duration
	secure bool

	mu       sync.Mutex
	sessions map[string]*Session
	pending  map[string]pendingLogin
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the time source.
func WithClock(source clock.Clock) Option {
	return func(s *Store) {
		s.clock = source
	}
}

// WithMaxAge sets the session lifetime. Non-positive values are
// ignored.
func WithMaxAge(maxAge time.Duration) Option {
	return func(s *Store) {
		if maxAge > 0 {
			s.maxAge = maxAge
		}
	}
}

// WithSecureCookies marks cookies Secure (HTTPS only).
func WithSecureCookies(secure bool) Option {
	return func(s *Store) {
		s.secure = secure
	}
}

// NewStore creates a Store whose cookies are signed with a key derived
// from secret.
func NewStore(secret string, opts ...Option) (*Store, error) {
	if secret == "" {
		return nil, errors.New("session secret is empty")
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, hkdfInfoCookie), key); err != nil {
		return nil, fmt.Errorf("deriving session key: %w", err)
	}

	s := &Store{
		key:      key,
		clock:    clock.Real(),
		maxAge:   DefaultMaxAge,
		sessions: make(map[string]*Session),
		pending:  make(map[string]pendingLogin),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Create starts a session holding token and sets its cookie on w.
func (s *Store) Create(w http.ResponseWriter, token *oauth2.Token) (*Session, error) {
	id, err := randomID()
	if err != nil {
		return nil, err
	}
	session := &Session{ID: id, Token: token, CreatedAt: s.clock.Now()}

	s.mu.Lock()
	s.sweepLocked()
	s.sessions[id] = session
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    id + "." + s.sign(id),
		Path:     "/",
		MaxAge:   int(s.maxAge / time.Second),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return session, nil
}

// Get returns the session named by the request's cookie.
func (s *Store) Get(r *http.Request) (*Session, error) {
	id, ok := s.cookieID(r)
	if !ok {
		return nil, ErrNoSession
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrNoSession
	}
	if s.expiredLocked(session) {
		delete(s.sessions, id)
		return nil, ErrNoSession
	}
	return session, nil
}

// UpdateToken replaces the OAuth token of session id, typically with a
// refreshed one. The stored Session is replaced, not mutated, so values
// returned by earlier Get calls stay unchanged. Reports whether the
// session still exists.
func (s *Store) UpdateToken(id string, token *oauth2.Token) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.sessions[id]
	if !ok || s.expiredLocked(existing) {
		return false
	}
	updated := *existing
	updated.Token = token
	s.sessions[id] = &updated
	return true
}

// Destroy ends the request's session, if any, and clears the cookie.
// Returns the ended session's ID.
func (s *Store) Destroy(w http.ResponseWriter, r *http.Request) (string, bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})

	id, ok := s.cookieID(r)
	if !ok {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[id]; !exists {
		return "", false
	}
	delete(s.sessions, id)
	return id, true
}

// BeginLogin records a pending login returning to next and returns the
// OAuth state value to send to the provider.
func (s *Store) BeginLogin(next string) (string, error) {
	state, err := randomID()
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	s.pending[state] = pendingLogin{next: next, expires: s.clock.Now().Add(StateLifetime)}
	return state, nil
}

// FinishLogin consumes state and returns the page recorded by
// BeginLogin.
func (s *Store) FinishLogin(state string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	login, ok := s.pending[state]
	if !ok {
		return "", ErrInvalidState
	}
	delete(s.pending, state)
	if !s.clock.Now().Before(login.expires) {
		return "", ErrInvalidState
	}
	return login.next, nil
}

// Len returns the number of live sessions and pending logins, for
// tests and metrics.
func (s *Store) Len() (sessions, pending int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions), len(s.pending)
}

// cookieID extracts and verifies the session ID from the request.
func (s *Store) cookieID(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return "", false
	}
	id, signature, ok := strings.Cut(cookie.Value, ".")
	if !ok || id == "" {
		return "", false
	}
	if subtle.ConstantTimeCompare([]byte(signature), []byte(s.sign(id))) != 1 {
		return "", false
	}
	return id, true
}

func (s *Store) sign(id string) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(id))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *Store) expiredLocked(session *Session) bool {
	return s.clock.Now().Sub(session.CreatedAt) >= s.maxAge
}

// sweepLocked drops expired sessions and pending logins. Caller holds
// mu.
func (s *Store) sweepLocked() {
	now := s.clock.Now()
	for id, session := range s.sessions {
		if s.expiredLocked(session) {
			delete(s.sessions, id)
		}
	}
	for state, login := range s.pending {
		if !now.Before(login.expires) {
			delete(s.pending, state)
		}
	}
}

func randomID() (string, error) {
	var buffer [16]byte
	if _, err := rand.Read(buffer[:]); err != nil {
		return "", fmt.Errorf("generating session identifier: %w", err)
	}
	return hex.EncodeToString(buffer[:]), nil
}
