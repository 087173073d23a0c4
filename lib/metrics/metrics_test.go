// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
)

func scrape(t *testing.T, p *Prom) string {
	t.Helper()
	recorder := httptest.NewRecorder()
	p.Handler().ServeHTTP(recorder, httptest.NewRequest("GET", "/metrics", nil))
	if recorder.Code != 200 {
		t.Fatalf("scrape status = %d, want 200", recorder.Code)
	}
	body, err := io.ReadAll(recorder.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(body)
}

func TestPromRecordsCounters(t *testing.T) {
	p := NewProm("docshuttle")
	p.ObserveRequest("GET", "/{ref}/{path...}", "200", 0.01)
	p.IncUpload("ok")
	p.IncUpload("ok")
	p.IncUpload("unsafe_entry")
	p.IncResolve("prefix")
	p.IncAuth("hit")

	body := scrape(t, p)
	for _, want := range []string{
		`docshuttle_http_requests_total{method="GET",route="/{ref}/{path...}",status="200"} 1`,
		`docshuttle_uploads_total{result="ok"} 2`,
		`docshuttle_uploads_total{result="unsafe_entry"} 1`,
		`docshuttle_ref_resolutions_total{result="prefix"} 1`,
		`docshuttle_auth_cache_checks_total{outcome="hit"} 1`,
		`docshuttle_http_request_duration_seconds_count{method="GET",route="/{ref}/{path...}"} 1`,
		`go_goroutines`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("scrape output missing %q", want)
		}
	}
}

func TestPromInstancesAreIndependent(t *testing.T) {
	first := NewProm("docshuttle")
	second := NewProm("docshuttle")
	first.IncUpload("ok")

	if strings.Contains(scrape(t, second), `docshuttle_uploads_total{result="ok"}`) {
		t.Error("second registry saw the first instance's upload")
	}
}

func TestNoopSatisfiesMetrics(t *testing.T) {
	var m Metrics = Noop{}
	m.ObserveRequest("GET", "/", "200", 1)
	m.IncUpload("ok")
	m.IncResolve("full")
	m.IncAuth("miss")
}
