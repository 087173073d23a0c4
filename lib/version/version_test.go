// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"runtime/debug"
	"testing"
)

func setVariables(t *testing.T, version, commit, dirty, buildTime string) {
	t.Helper()
	saved := [4]string{Version, GitCommit, GitDirty, BuildTime}
	t.Cleanup(func() {
		Version, GitCommit, GitDirty, BuildTime = saved[0], saved[1], saved[2], saved[3]
	})
	Version, GitCommit, GitDirty, BuildTime = version, commit, dirty, buildTime
}

func stamped(revision, modified, vcsTime string) *debug.BuildInfo {
	return &debug.BuildInfo{
		GoVersion: "go1.25.6",
		Settings: []debug.BuildSetting{
			{Key: "vcs", Value: "git"},
			{Key: "vcs.revision", Value: revision},
			{Key: "vcs.modified", Value: modified},
			{Key: "vcs.time", Value: vcsTime},
		},
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name      string
		variables [4]string
		info      *debug.BuildInfo
		want      string
	}{
		{
			name:      "injected values win",
			variables: [4]string{"1.2.3", "abc1234", "true", "2026-05-01T00:00:00Z"},
			info:      stamped("def5678000000000000000000000000000000000", "false", "2026-01-01T00:00:00Z"),
			want:      "1.2.3 (abc1234-dirty, 2026-05-01T00:00:00Z)",
		},
		{
			name:      "build info fallback",
			variables: [4]string{"0.1.0-dev", "", "", ""},
			info:      stamped("def5678000000000000000000000000000000000", "true", "2026-01-01T00:00:00Z"),
			want:      "0.1.0-dev (def5678-dirty, 2026-01-01T00:00:00Z)",
		},
		{
			name:      "injected clean overrides modified stamp",
			variables: [4]string{"0.1.0-dev", "", "false", ""},
			info:      stamped("def5678000000000000000000000000000000000", "true", "2026-01-01T00:00:00Z"),
			want:      "0.1.0-dev (def5678, 2026-01-01T00:00:00Z)",
		},
		{
			name:      "nothing known",
			variables: [4]string{"0.1.0-dev", "", "", ""},
			info:      nil,
			want:      "0.1.0-dev (unknown, unknown)",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			setVariables(t, test.variables[0], test.variables[1], test.variables[2], test.variables[3])
			if got := resolve(test.info).String(); got != test.want {
				t.Errorf("resolve() = %q, want %q", got, test.want)
			}
		})
	}
}

func TestResolveRecordsGoVersion(t *testing.T) {
	build := resolve(stamped("def5678000000000000000000000000000000000", "false", ""))
	if build.GoVersion != "go1.25.6" {
		t.Errorf("GoVersion = %q, want go1.25.6", build.GoVersion)
	}
}

func TestShortAndCommit(t *testing.T) {
	setVariables(t, "2.0.0", "feedbee", "", "")
	if got := Short(); got != "2.0.0" {
		t.Errorf("Short() = %q, want 2.0.0", got)
	}
	if got := Commit(); got != "feedbee" {
		t.Errorf("Commit() = %q, want feedbee", got)
	}
}
