// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/bureau-foundation/docshuttle/lib/authcache"
	"github.com/bureau-foundation/docshuttle/lib/identity"
	"github.com/bureau-foundation/docshuttle/lib/session"
)

const finalizePath = "/auth/finalize"

// gate admits readers who are logged in and allowed to read the
// configured repository. The repository check runs through the
// authorization cache, keyed by session ID, so the provider is asked at
// most once per session per TTL.
type gate struct {
	sessions     *session.Store
	provider     identity.Provider
	cache        *authcache.Cache
	probeTimeout time.Duration

	// limiter paces provider calls. Nil is unlimited.
	limiter *rate.Limiter

	// redirectURL is the configured callback URL. Empty derives it
	// from the request.
	redirectURL string

	logger *slog.Logger
}

// admit reports whether the request may proceed. When it returns false
// the response has been written: a redirect to the provider for
// anonymous requests, 401 when the check could not be made, 403 when the
// reader lacks access.
func (g *gate) admit(w http.ResponseWriter, r *http.Request) bool {
	current, err := g.sessions.Get(r)
	if err != nil {
		g.beginLogin(w, r)
		return false
	}

	allowed, err := g.cache.Check(r.Context(), current.ID, g.probe(current))
	if err != nil {
		g.logger.Warn("authorization check failed",
			"session", shortID(current.ID),
			"error", err,
		)
		if errors.Is(err, identity.ErrTokenRejected) {
			// The provider no longer accepts the token; the next
			// request starts a fresh login.
			if id, ok := g.sessions.Destroy(w, r); ok {
				g.cache.Invalidate(id)
			}
		}
		http.Error(w, "authorization check failed", http.StatusUnauthorized)
		return false
	}
	if !allowed {
		http.Error(w, "you do not have access to this repository", http.StatusForbidden)
		return false
	}
	return true
}

// probe returns the authorization probe for a session, bounded by the
// configured timeout. The wait for a rate limit slot counts against
// that timeout. A token the provider refreshed during the check is
// stored back on the session.
func (g *gate) probe(current *session.Session) authcache.Probe {
	return func(ctx context.Context) (bool, error) {
		ctx, cancel := context.WithTimeout(ctx, g.probeTimeout)
		defer cancel()
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return false, fmt.Errorf("waiting for provider rate limit: %w", err)
			}
		}
		allowed, token, err := g.provider.Authorized(ctx, current.Token)
		if err != nil {
			return false, err
		}
		if token != nil && (current.Token == nil || token.AccessToken != current.Token.AccessToken) {
			g.sessions.UpdateToken(current.ID, token)
		}
		return allowed, nil
	}
}

func (g *gate) beginLogin(w http.ResponseWriter, r *http.Request) {
	state, err := g.sessions.BeginLogin(r.URL.RequestURI())
	if err != nil {
		g.logger.Error("starting login", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, g.provider.AuthCodeURL(state, g.callbackURL(r)), http.StatusFound)
}

// handleFinalize completes the OAuth code flow and returns the reader to
// the page that started it.
func (g *gate) handleFinalize(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	next, err := g.sessions.FinishLogin(query.Get("state"))
	if err != nil {
		http.Error(w, "login expired or invalid, try again", http.StatusUnauthorized)
		return
	}
	code := query.Get("code")
	if code == "" {
		http.Error(w, "login was not completed", http.StatusUnauthorized)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), g.probeTimeout)
	defer cancel()
	token, err := g.provider.Exchange(ctx, code, g.callbackURL(r))
	if err != nil {
		g.logger.Warn("oauth code exchange failed", "error", err)
		http.Error(w, "login failed", http.StatusUnauthorized)
		return
	}

	created, err := g.sessions.Create(w, token)
	if err != nil {
		g.logger.Error("creating session", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	g.logger.Info("login completed", "session", shortID(created.ID))
	http.Redirect(w, r, safeNext(next), http.StatusFound)
}

func (g *gate) handleLogout(w http.ResponseWriter, r *http.Request) {
	if id, ok := g.sessions.Destroy(w, r); ok {
		g.cache.Invalidate(id)
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("logged out\n"))
}

// callbackURL is the redirect URL registered with the provider.
func (g *gate) callbackURL(r *http.Request) string {
	if g.redirectURL != "" {
		return g.redirectURL
	}
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host + finalizePath
}

// safeNext returns next when it is a path on this server, and "/"
// otherwise.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	if strings.HasPrefix(next, finalizePath) {
		return "/"
	}
	return next
}

// shortID trims a session ID for logging.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// newProbeLimiter returns a limiter allowing perMinute provider calls a
// minute with bursts of the same size, or nil when perMinute is zero.
func newProbeLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute)
}
