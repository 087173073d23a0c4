// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bureau-foundation/docshuttle/lib/artifact"
	"github.com/bureau-foundation/docshuttle/lib/authcache"
	"github.com/bureau-foundation/docshuttle/lib/clock"
	"github.com/bureau-foundation/docshuttle/lib/config"
	"github.com/bureau-foundation/docshuttle/lib/identity"
	"github.com/bureau-foundation/docshuttle/lib/metrics"
	"github.com/bureau-foundation/docshuttle/lib/service"
	"github.com/bureau-foundation/docshuttle/lib/session"
)

// serverConfig holds what newServer needs beyond the configuration file.
type serverConfig struct {
	Config *config.Config

	// Provider answers login and repository-access questions. Required
	// unless Config.Auth.Disabled.
	Provider identity.Provider

	// Metrics defaults to metrics.Noop.
	Metrics metrics.Metrics

	// Scrape is served at /metrics when non-nil.
	Scrape http.Handler

	// Clock drives session and authorization-cache expiry. Defaults to
	// the real clock.
	Clock clock.Clock

	Logger *slog.Logger
}

// server is the docshuttle HTTP surface over the artifact store.
type server struct {
	store     *artifact.Store
	head      *artifact.HeadPointer
	index     *artifact.Index
	resolver  *artifact.Resolver
	ingester  *artifact.Ingester
	manifests *artifact.ManifestStore

	// gate is nil when authentication is disabled.
	gate *gate

	upload  config.UploadConfig
	metrics metrics.Metrics
	scrape  http.Handler
	logger  *slog.Logger
}

// newServer opens the store under Config.SaveDirectory, indexes the
// artifacts already there, and assembles the request handlers.
func newServer(cfg serverConfig) (*server, error) {
	if cfg.Config == nil {
		return nil, errors.New("server config is required")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Noop{}
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	settings := cfg.Config

	store, err := artifact.NewStore(settings.SaveDirectory)
	if err != nil {
		return nil, err
	}
	head := artifact.NewHeadPointer(settings.SaveDirectory)
	index, err := artifact.BuildIndex(store)
	if err != nil {
		return nil, fmt.Errorf("indexing %s: %w", settings.SaveDirectory, err)
	}

	var resolverOptions []artifact.ResolverOption
	if settings.StrictPrefixes {
		resolverOptions = append(resolverOptions, artifact.WithStrictPrefixes())
	}
	manifests := artifact.NewManifestStore(settings.SaveDirectory)
	ingester, err := artifact.NewIngester(artifact.IngesterConfig{
		Store:     store,
		Extractor: artifact.NewExtractor(artifact.WithMaxUncompressed(settings.Upload.MaxUncompressedBytes)),
		Head:      head,
		Index:     index,
		Manifests: manifests,
		Clock:     cfg.Clock,
		Logger:    cfg.Logger,
	})
	if err != nil {
		return nil, err
	}

	s := &server{
		store:     store,
		head:      head,
		index:     index,
		resolver:  artifact.NewResolver(index, head, resolverOptions...),
		ingester:  ingester,
		manifests: manifests,
		upload:    settings.Upload,
		metrics:   cfg.Metrics,
		scrape:    cfg.Scrape,
		logger:    cfg.Logger,
	}

	if !settings.Auth.Disabled {
		if cfg.Provider == nil {
			return nil, errors.New("an identity provider is required unless auth.disabled is set")
		}
		sessions, err := session.NewStore(settings.SecretKey,
			session.WithClock(cfg.Clock),
			session.WithMaxAge(settings.Auth.SessionMaxAge.Std()),
			session.WithSecureCookies(strings.HasPrefix(settings.OAuth.RedirectURL, "https://")),
		)
		if err != nil {
			return nil, err
		}
		observe := cfg.Metrics.IncAuth
		s.gate = &gate{
			sessions: sessions,
			provider: cfg.Provider,
			cache: authcache.New(
				authcache.WithTTL(settings.Auth.TTL.Std()),
				authcache.WithMaxEntries(settings.Auth.MaxEntries),
				authcache.WithClock(cfg.Clock),
				authcache.WithObserver(func(outcome authcache.Outcome) { observe(string(outcome)) }),
			),
			probeTimeout: settings.Auth.ProbeTimeout.Std(),
			limiter:      newProbeLimiter(settings.Auth.ProbesPerMinute),
			redirectURL:  settings.OAuth.RedirectURL,
			logger:       cfg.Logger,
		}
	}

	cfg.Logger.Info("artifact store opened",
		"save_directory", settings.SaveDirectory,
		"artifacts", index.Len(),
		"auth", s.gate != nil,
	)
	return s, nil
}

// Handler returns the routed, request-logging handler.
func (s *server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleListing)
	mux.HandleFunc("POST /{$}", s.handleUpload)
	mux.HandleFunc("GET /{ref}", s.handleArtifactRoot)
	mux.HandleFunc("GET /{ref}/{path...}", s.handleArtifact)
	mux.HandleFunc("GET /_api/refs", s.handleAPIListing)
	mux.HandleFunc("GET /_api/refs/{ref}", s.handleAPIManifest)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.gate != nil {
		mux.HandleFunc("GET "+finalizePath, s.gate.handleFinalize)
		mux.HandleFunc("GET /auth/logout", s.gate.handleLogout)
	}
	if s.scrape != nil {
		mux.Handle("GET /metrics", s.scrape)
	}

	return service.LogRequests(mux, s.logger, func(method, route, status string, duration time.Duration) {
		s.metrics.ObserveRequest(method, route, status, duration.Seconds())
	})
}

// admit runs the access gate, admitting everything when authentication
// is disabled.
func (s *server) admit(w http.ResponseWriter, r *http.Request) bool {
	if s.gate == nil {
		return true
	}
	return s.gate.admit(w, r)
}
