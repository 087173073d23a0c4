// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// HTTPServer runs an http.Handler on a TCP address until its context
// is cancelled, then drains in-flight requests.
type HTTPServer struct {
	config HTTPServerConfig
	logger *slog.Logger

	// ready is closed once the listener is bound; addr is valid from
	// then on.
	ready chan struct{}
	addr  net.Addr
}

// HTTPServerConfig configures an HTTPServer. Zero durations take the
// defaults noted on each field.
type HTTPServerConfig struct {
	// Address is the TCP listen address (":8080", "127.0.0.1:0").
	// Required.
	Address string

	// Handler serves every request. Required.
	Handler http.Handler

	// ReadHeaderTimeout bounds reading request headers. Default 10s.
	ReadHeaderTimeout time.Duration

	// ReadTimeout bounds reading a whole request, body included.
	// Archive uploads can be hundreds of megabytes. Default 10m.
	ReadTimeout time.Duration

	// WriteTimeout bounds writing a response. Default 5m.
	WriteTimeout time.Duration

	// IdleTimeout bounds keep-alive connections. Default 60s.
	IdleTimeout time.Duration

	// ShutdownTimeout bounds the drain after cancellation. Requests
	// still running when it expires are cut off. Default 10s.
	ShutdownTimeout time.Duration

	// Logger receives lifecycle events and net/http's own error log.
	// Required.
	Logger *slog.Logger
}

// NewHTTPServer validates config and returns an unstarted server.
// Missing required fields are programming errors and panic.
func NewHTTPServer(config HTTPServerConfig) *HTTPServer {
	switch {
	case config.Address == "":
		panic("service.HTTPServer: Address is required")
	case config.Handler == nil:
		panic("service.HTTPServer: Handler is required")
	case config.Logger == nil:
		panic("service.HTTPServer: Logger is required")
	}
	config.ReadHeaderTimeout = orDefault(config.ReadHeaderTimeout, 10*time.Second)
	config.ReadTimeout = orDefault(config.ReadTimeout, 10*time.Minute)
	config.WriteTimeout = orDefault(config.WriteTimeout, 5*time.Minute)
	config.IdleTimeout = orDefault(config.IdleTimeout, 60*time.Second)
	config.ShutdownTimeout = orDefault(config.ShutdownTimeout, 10*time.Second)

	return &HTTPServer{
		config: config,
		logger: config.Logger,
		ready:  make(chan struct{}),
	}
}

func orDefault(value, fallback time.Duration) time.Duration {
	if value <= 0 {
		return fallback
	}
	return value
}

// Ready is closed once the server is accepting connections.
func (s *HTTPServer) Ready() <-chan struct{} {
	return s.ready
}

// Addr is the bound address, resolving port 0. Valid after Ready.
func (s *HTTPServer) Addr() net.Addr {
	return s.addr
}

// Serve binds the listener and serves until ctx is cancelled. A bind
// failure is returned before Ready closes. After cancellation new
// connections are refused and Serve waits up to ShutdownTimeout for
// active requests; it returns nil on a clean drain.
func (s *HTTPServer) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.config.Address, err)
	}
	s.addr = listener.Addr()

	server := &http.Server{
		Handler:           s.config.Handler,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
		ReadTimeout:       s.config.ReadTimeout,
		WriteTimeout:      s.config.WriteTimeout,
		IdleTimeout:       s.config.IdleTimeout,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(listener)
	}()
	close(s.ready)
	s.logger.Info("http server listening", "address", s.addr.String())

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving http: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("http server draining", "timeout", s.config.ShutdownTimeout)
	started := time.Now()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		server.Close()
		return fmt.Errorf("http server shutdown: %w", err)
	}
	s.logger.Info("http server stopped", "drained_in", time.Since(started))
	return nil
}
