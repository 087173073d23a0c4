// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"runtime/debug"
)

// Set with -ldflags -X at release time. Empty values fall back to the
// VCS stamp the Go toolchain records in the binary.
var (
	Version   = "0.1.0-dev"
	GitCommit = ""
	GitDirty  = ""
	BuildTime = ""
)

const unknown = "unknown"

// Build describes the running binary.
type Build struct {
	Version   string
	Commit    string
	Dirty     bool
	Time      string
	GoVersion string
}

// String formats b for --version output:
// "0.1.0-dev (abc1234-dirty, 2026-05-01T00:00:00Z)".
func (b Build) String() string {
	dirty := ""
	if b.Dirty {
		dirty = "-dirty"
	}
	return fmt.Sprintf("%s (%s%s, %s)", b.Version, b.Commit, dirty, b.Time)
}

// Current returns the build description of this binary.
func Current() Build {
	info, _ := debug.ReadBuildInfo()
	return resolve(info)
}

// resolve merges the ldflags variables over the build info stamp.
func resolve(info *debug.BuildInfo) Build {
	build := Build{Version: Version, Commit: GitCommit, Dirty: GitDirty == "true", Time: BuildTime}
	if info != nil {
		build.GoVersion = info.GoVersion
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				if build.Commit == "" && len(setting.Value) >= 7 {
					build.Commit = setting.Value[:7]
				}
			case "vcs.modified":
				if GitDirty == "" {
					build.Dirty = setting.Value == "true"
				}
			case "vcs.time":
				if build.Time == "" {
					build.Time = setting.Value
				}
			}
		}
	}
	if build.Commit == "" {
		build.Commit = unknown
	}
	if build.Time == "" {
		build.Time = unknown
	}
	return build
}

// Info returns the --version string of this binary.
func Info() string {
	return Current().String()
}

// Short returns just the version number.
func Short() string {
	return Version
}

// Commit returns the short git SHA of this binary, or "unknown".
func Commit() string {
	return Current().Commit
}
