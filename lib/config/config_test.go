// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnvironment blanks every variable Load consults so the host
// environment cannot leak into a test.
func clearEnvironment(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		EnvConfigPath, "SAVE_DIRECTORY", "REPOSITORY", "SECRET_KEY",
		"OAUTH_CLIENT_ID", "OAUTH_CLIENT_SECRET", "DOCSHUTTLE_LISTEN",
		"DOCSHUTTLE_UPLOAD_TOKEN",
	} {
		t.Setenv(name, "")
	}
}

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Listen != ":8080" {
		t.Errorf("listen = %q, want %q", cfg.Listen, ":8080")
	}
	if cfg.Auth.TTL.Std() != 5*time.Minute {
		t.Errorf("auth.ttl = %v, want 5m", cfg.Auth.TTL.Std())
	}
	if cfg.Auth.ProbeTimeout.Std() != 10*time.Second {
		t.Errorf("auth.probe_timeout = %v, want 10s", cfg.Auth.ProbeTimeout.Std())
	}
	if cfg.Auth.SessionMaxAge.Std() != 24*time.Hour {
		t.Errorf("auth.session_max_age = %v, want 24h", cfg.Auth.SessionMaxAge.Std())
	}
	if cfg.Auth.MaxEntries != 10000 {
		t.Errorf("auth.max_entries = %d, want 10000", cfg.Auth.MaxEntries)
	}
	if cfg.StrictPrefixes {
		t.Error("strict_prefixes defaults to true, want false")
	}
}

func TestLoadYAML(t *testing.T) {
	clearEnvironment(t)
	path := writeConfig(t, "docshuttle.yaml", `
save_directory: /srv/docs
listen: 127.0.0.1:9000
repository: acme/widgets
secret_key: hunter2
oauth:
  client_id: id
  client_secret: secret
  redirect_url: https://docs.example.com/auth/finalize
auth:
  ttl: 90s
  probe_timeout: 3s
upload:
  token: ci-token
  max_bytes: 1048576
strict_prefixes: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.SaveDirectory != "/srv/docs" {
		t.Errorf("save_directory = %q", cfg.SaveDirectory)
	}
	if cfg.Listen != "127.0.0.1:9000" {
		t.Errorf("listen = %q", cfg.Listen)
	}
	if cfg.OAuth.RedirectURL != "https://docs.example.com/auth/finalize" {
		t.Errorf("oauth.redirect_url = %q", cfg.OAuth.RedirectURL)
	}
	if cfg.Auth.TTL.Std() != 90*time.Second {
		t.Errorf("auth.ttl = %v, want 90s", cfg.Auth.TTL.Std())
	}
	if cfg.Auth.ProbeTimeout.Std() != 3*time.Second {
		t.Errorf("auth.probe_timeout = %v, want 3s", cfg.Auth.ProbeTimeout.Std())
	}
	// Unset in the file: keeps the default.
	if cfg.Auth.SessionMaxAge.Std() != 24*time.Hour {
		t.Errorf("auth.session_max_age = %v, want default 24h", cfg.Auth.SessionMaxAge.Std())
	}
	if cfg.Upload.Token != "ci-token" || cfg.Upload.MaxBytes != 1<<20 {
		t.Errorf("upload = %+v", cfg.Upload)
	}
	if !cfg.StrictPrefixes {
		t.Error("strict_prefixes = false, want true")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadJSONWithComments(t *testing.T) {
	clearEnvironment(t)
	path := writeConfig(t, "docshuttle.jsonc", `{
  // Where uploads land.
  "save_directory": "/srv/docs",
  "auth": {
    "disabled": true,
    "ttl": "1m", /* shorter for staging */
  },
}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SaveDirectory != "/srv/docs" {
		t.Errorf("save_directory = %q", cfg.SaveDirectory)
	}
	if !cfg.Auth.Disabled {
		t.Error("auth.disabled = false, want true")
	}
	if cfg.Auth.TTL.Std() != time.Minute {
		t.Errorf("auth.ttl = %v, want 1m", cfg.Auth.TTL.Std())
	}
}

func TestLoadFromEnvironmentVariablePath(t *testing.T) {
	clearEnvironment(t)
	path := writeConfig(t, "docshuttle.yml", "save_directory: /from/env/path\n")
	t.Setenv(EnvConfigPath, path)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SaveDirectory != "/from/env/path" {
		t.Errorf("save_directory = %q, want %q", cfg.SaveDirectory, "/from/env/path")
	}
}

func TestLoadWithoutFileUsesEnvironment(t *testing.T) {
	clearEnvironment(t)
	t.Setenv("SAVE_DIRECTORY", "/data/docs")
	t.Setenv("REPOSITORY", "acme/widgets")
	t.Setenv("SECRET_KEY", "k")
	t.Setenv("OAUTH_CLIENT_ID", "id")
	t.Setenv("OAUTH_CLIENT_SECRET", "secret")
	t.Setenv("DOCSHUTTLE_LISTEN", ":9999")
	t.Setenv("DOCSHUTTLE_UPLOAD_TOKEN", "tok")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	checks := map[string][2]string{
		"save_directory":      {cfg.SaveDirectory, "/data/docs"},
		"repository":          {cfg.Repository, "acme/widgets"},
		"secret_key":          {cfg.SecretKey, "k"},
		"oauth.client_id":     {cfg.OAuth.ClientID, "id"},
		"oauth.client_secret": {cfg.OAuth.ClientSecret, "secret"},
		"listen":              {cfg.Listen, ":9999"},
		"upload.token":        {cfg.Upload.Token, "tok"},
	}
	for field, pair := range checks {
		if pair[0] != pair[1] {
			t.Errorf("%s = %q, want %q", field, pair[0], pair[1])
		}
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	clearEnvironment(t)
	path := writeConfig(t, "docshuttle.yaml", "save_directory: /from/file\nrepository: a/b\n")
	t.Setenv("SAVE_DIRECTORY", "/from/env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SaveDirectory != "/from/env" {
		t.Errorf("save_directory = %q, want environment value", cfg.SaveDirectory)
	}
	if cfg.Repository != "a/b" {
		t.Errorf("repository = %q, want file value", cfg.Repository)
	}
}

func TestLoadErrors(t *testing.T) {
	clearEnvironment(t)

	tests := []struct {
		name    string
		path    string
		wantMsg string
	}{
		{"missing file", filepath.Join(t.TempDir(), "nope.yaml"), "reading config"},
		{"bad extension", writeConfig(t, "docshuttle.toml", "x = 1"), "unsupported extension"},
		{"bad yaml", writeConfig(t, "bad.yaml", "auth: [unclosed"), "parsing"},
		{"bad duration", writeConfig(t, "dur.yaml", "auth:\n  ttl: soon\n"), "invalid duration"},
		{"bad json", writeConfig(t, "bad.json", `{"listen": }`), "parsing"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Load(test.path)
			if err == nil {
				t.Fatal("Load succeeded, want error")
			}
			if !strings.Contains(err.Error(), test.wantMsg) {
				t.Errorf("error = %q, want it to mention %q", err, test.wantMsg)
			}
		})
	}
}

func TestExpandVars(t *testing.T) {
	clearEnvironment(t)
	t.Setenv("DOCS_ROOT", "/mnt/docs")
	path := writeConfig(t, "docshuttle.yaml", "save_directory: ${DOCS_ROOT}/store\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.SaveDirectory != "/mnt/docs/store" {
		t.Errorf("save_directory = %q, want %q", cfg.SaveDirectory, "/mnt/docs/store")
	}

	if got := expandVars("${DOCSHUTTLE_UNSET_VARIABLE:-/fallback}"); got != "/fallback" {
		t.Errorf("expandVars default = %q, want %q", got, "/fallback")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.SaveDirectory = "/srv/docs"
		cfg.Repository = "acme/widgets"
		cfg.SecretKey = "k"
		cfg.OAuth.ClientID = "id"
		cfg.OAuth.ClientSecret = "secret"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing save directory", func(c *Config) { c.SaveDirectory = "" }, "save_directory"},
		{"missing listen", func(c *Config) { c.Listen = "" }, "listen"},
		{"bad repository", func(c *Config) { c.Repository = "widgets" }, "owner/slug"},
		{"nested repository", func(c *Config) { c.Repository = "a/b/c" }, "owner/slug"},
		{"missing secret", func(c *Config) { c.SecretKey = "" }, "secret_key"},
		{"missing client id", func(c *Config) { c.OAuth.ClientID = "" }, "client_id"},
		{"zero ttl", func(c *Config) { c.Auth.TTL = 0 }, "auth.ttl"},
		{"zero probe timeout", func(c *Config) { c.Auth.ProbeTimeout = 0 }, "probe_timeout"},
		{"negative probe rate", func(c *Config) { c.Auth.ProbesPerMinute = -1 }, "probes_per_minute"},
		{"zero max bytes", func(c *Config) { c.Upload.MaxBytes = 0 }, "max_bytes"},
		{"negative uncompressed", func(c *Config) { c.Upload.MaxUncompressedBytes = -1 }, "max_uncompressed_bytes"},
		{"auth disabled needs no oauth", func(c *Config) {
			c.Auth.Disabled = true
			c.Repository = ""
			c.SecretKey = ""
			c.OAuth = OAuthConfig{}
		}, ""},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := valid()
			test.mutate(cfg)
			err := cfg.Validate()
			if test.wantErr == "" {
				if err != nil {
					t.Errorf("Validate: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate succeeded, want error mentioning %q", test.wantErr)
			}
			if !strings.Contains(err.Error(), test.wantErr) {
				t.Errorf("error = %q, want it to mention %q", err, test.wantErr)
			}
		})
	}
}

func TestRepositoryParts(t *testing.T) {
	cfg := &Config{Repository: "acme/widgets"}
	owner, slug, err := cfg.RepositoryParts()
	if err != nil {
		t.Fatal(err)
	}
	if owner != "acme" || slug != "widgets" {
		t.Errorf("RepositoryParts = %q, %q, want acme, widgets", owner, slug)
	}
}
