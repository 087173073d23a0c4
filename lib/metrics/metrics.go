// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package metrics exposes docshuttle's Prometheus counters: HTTP
// requests by route and status, uploads by result, reference
// resolutions by result, and authorization cache outcomes.
//
// Components depend on the [Metrics] interface; [Noop] discards
// everything and [Prom] records into its own registry, served by
// [Prom.Handler].
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics records server activity.
type Metrics interface {
	ObserveRequest(method, route, status string, durationSeconds float64)
	IncUpload(result string)
	IncResolve(result string)
	IncAuth(outcome string)
}

// Noop implements Metrics without emitting anything.
type Noop struct{}

func (Noop) ObserveRequest(string, string, string, float64) {}
func (Noop) IncUpload(string)                               {}
func (Noop) IncResolve(string)                              {}
func (Noop) IncAuth(string)                                 {}

// Prom implements Metrics backed by Prometheus collectors registered
// on a private registry, so several instances (tests) never collide on
// the global one.
type Prom struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	uploads  *prometheus.CounterVec
	resolves *prometheus.CounterVec
	auth     *prometheus.CounterVec
}

// NewProm creates a Prom whose metric names start with namespace. The
// registry also carries the Go runtime and process collectors.
func NewProm(namespace string) *Prom {
	p := &Prom{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method/route/status",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method/route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Archive uploads by result",
		}, []string{"result"}),
		resolves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ref_resolutions_total",
			Help:      "Reference resolutions by result",
		}, []string{"result"}),
		auth: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_cache_checks_total",
			Help:      "Authorization cache checks by outcome",
		}, []string{"outcome"}),
	}
	p.registry.MustRegister(
		p.requests, p.latency, p.uploads, p.resolves, p.auth,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p
}

func (p *Prom) ObserveRequest(method, route, status string, durationSeconds float64) {
	p.requests.WithLabelValues(method, route, status).Inc()
	p.latency.WithLabelValues(method, route).Observe(durationSeconds)
}

func (p *Prom) IncUpload(result string) {
	p.uploads.WithLabelValues(result).Inc()
}

func (p *Prom) IncResolve(result string) {
	p.resolves.WithLabelValues(result).Inc()
}

func (p *Prom) IncAuth(outcome string) {
	p.auth.WithLabelValues(outcome).Inc()
}

// Registry returns the registry holding p's collectors.
func (p *Prom) Registry() *prometheus.Registry {
	return p.registry
}

// Handler returns an HTTP handler for /metrics.
func (p *Prom) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}
