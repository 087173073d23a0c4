// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// RequestObserver receives one call per completed request.
type RequestObserver func(method, route, status string, duration time.Duration)

// LogRequests wraps next so every request is logged at Info with its
// method, matched route pattern, status, and duration, and reported to
// observe when non-nil. The route is the http.ServeMux pattern that
// matched ("GET /{ref}/{path...}"), or "unmatched", which keeps metric
// label cardinality bounded.
func LogRequests(next http.Handler, logger *slog.Logger, observe RequestObserver) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		duration := time.Since(start)
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		logger.Info("http request",
			"method", r.Method,
			"route", route,
			"path", r.URL.Path,
			"status", recorder.status,
			"bytes", recorder.bytes,
			"duration", duration,
		)
		if observe != nil {
			observe(r.Method, route, strconv.Itoa(recorder.status), duration)
		}
	})
}

// statusRecorder captures the status code and body size written by a
// handler.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	bytes       int64
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(status int) {
	if !r.wroteHeader {
		r.status = status
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(data []byte) (int, error) {
	r.wroteHeader = true
	n, err := r.ResponseWriter.Write(data)
	r.bytes += int64(n)
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
