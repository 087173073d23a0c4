// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable holding the config file
// path when no --config flag is given.
const EnvConfigPath = "DOCSHUTTLE_CONFIG"

// Config is the docshuttle server configuration.
type Config struct {
	// SaveDirectory is the artifact store root.
	SaveDirectory string `yaml:"save_directory" json:"save_directory"`

	// Listen is the HTTP listen address.
	// Default: :8080
	Listen string `yaml:"listen" json:"listen"`

	// Repository is the "owner/slug" Bitbucket repository whose
	// readers may browse the documentation.
	Repository string `yaml:"repository" json:"repository"`

	// SecretKey signs session cookies.
	SecretKey string `yaml:"secret_key" json:"secret_key"`

	OAuth  OAuthConfig  `yaml:"oauth" json:"oauth"`
	Auth   AuthConfig   `yaml:"auth" json:"auth"`
	Upload UploadConfig `yaml:"upload" json:"upload"`

	// StrictPrefixes rejects abbreviated references matching more than
	// one artifact instead of picking the smallest.
	StrictPrefixes bool `yaml:"strict_prefixes" json:"strict_prefixes"`
}

// OAuthConfig holds the OAuth client registration.
type OAuthConfig struct {
	ClientID     string `yaml:"client_id" json:"client_id"`
	ClientSecret string `yaml:"client_secret" json:"client_secret"`

	// RedirectURL is the absolute /auth/finalize URL registered with the
	// provider. When empty it is derived from each request's host.
	RedirectURL string `yaml:"redirect_url" json:"redirect_url"`
}

// AuthConfig tunes the access gate.
type AuthConfig struct {
	// Disabled serves everything without authentication. Local use only.
	Disabled bool `yaml:"disabled" json:"disabled"`

	// TTL is how long an authorization verdict is cached.
	// Default: 5m
	TTL Duration `yaml:"ttl" json:"ttl"`

	// MaxEntries bounds the verdict cache.
	// Default: 10000
	MaxEntries int `yaml:"max_entries" json:"max_entries"`

	// ProbeTimeout bounds one authorization call to the provider.
	// Default: 10s
	ProbeTimeout Duration `yaml:"probe_timeout" json:"probe_timeout"`

	// SessionMaxAge is the lifetime of a login session.
	// Default: 24h
	SessionMaxAge Duration `yaml:"session_max_age" json:"session_max_age"`

	// ProbesPerMinute caps authorization calls to the provider across
	// all sessions. Checks over the cap wait, within ProbeTimeout, for
	// a slot. Zero is unlimited.
	// Default: 0
	ProbesPerMinute int `yaml:"probes_per_minute" json:"probes_per_minute"`
}

// UploadConfig limits and protects POST /.
type UploadConfig struct {
	// Token, when set, must be presented as a bearer token on uploads.
	Token string `yaml:"token" json:"token"`

	// MaxBytes caps the request body.
	// Default: 512 MiB
	MaxBytes int64 `yaml:"max_bytes" json:"max_bytes"`

	// MaxUncompressedBytes caps the expanded size of one archive. Zero
	// disables the cap.
	// Default: 4 GiB
	MaxUncompressedBytes int64 `yaml:"max_uncompressed_bytes" json:"max_uncompressed_bytes"`
}

// Duration is a time.Duration written as a Go duration string ("5m",
// "90s") in config files.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

// Default returns the default configuration. SaveDirectory and the
// authentication settings have no usable defaults and must come from
// the file or the environment.
func Default() *Config {
	return &Config{
		Listen: ":8080",
		Auth: AuthConfig{
			TTL:           Duration(5 * time.Minute),
			MaxEntries:    10000,
			ProbeTimeout:  Duration(10 * time.Second),
			SessionMaxAge: Duration(24 * time.Hour),
		},
		Upload: UploadConfig{
			MaxBytes:             512 << 20,
			MaxUncompressedBytes: 4 << 30,
		},
	}
}

// Load builds the configuration: defaults, then the file at path (or
// at $DOCSHUTTLE_CONFIG when path is empty; no file when both are
// empty), then environment overrides, then variable expansion. The
// result is not validated; call [Config.Validate].
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.ApplyEnvironment(os.Getenv)
	cfg.expandVariables()
	return cfg, nil
}

// loadFile merges the file at path into c.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
	case ".json", ".jsonc":
		if err := json.Unmarshal(jsonc.ToJSON(data), c); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
	default:
		return fmt.Errorf("config file %s: unsupported extension (want .yaml, .yml, .json, or .jsonc)", path)
	}
	return nil
}

// ApplyEnvironment overrides fields from environment variables. Empty
// values leave the field unchanged.
func (c *Config) ApplyEnvironment(getenv func(string) string) {
	overrides := []struct {
		name  string
		field *string
	}{
		{"SAVE_DIRECTORY", &c.SaveDirectory},
		{"REPOSITORY", &c.Repository},
		{"SECRET_KEY", &c.SecretKey},
		{"OAUTH_CLIENT_ID", &c.OAuth.ClientID},
		{"OAUTH_CLIENT_SECRET", &c.OAuth.ClientSecret},
		{"DOCSHUTTLE_LISTEN", &c.Listen},
		{"DOCSHUTTLE_UPLOAD_TOKEN", &c.Upload.Token},
	}
	for _, override := range overrides {
		if value := getenv(override.name); value != "" {
			*override.field = value
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in path
// fields.
func (c *Config) expandVariables() {
	c.SaveDirectory = expandVars(c.SaveDirectory)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

// RepositoryParts splits Repository into owner and slug.
func (c *Config) RepositoryParts() (string, string, error) {
	owner, slug, ok := strings.Cut(c.Repository, "/")
	if !ok || owner == "" || slug == "" || strings.Contains(slug, "/") {
		return "", "", fmt.Errorf("repository %q must have the form owner/slug", c.Repository)
	}
	return owner, slug, nil
}

// Validate checks the configuration for errors. Authentication
// settings are only required while authentication is enabled.
func (c *Config) Validate() error {
	var errs []error

	if c.SaveDirectory == "" {
		errs = append(errs, errors.New("save_directory is required (or set SAVE_DIRECTORY)"))
	}
	if c.Listen == "" {
		errs = append(errs, errors.New("listen is required"))
	}

	if !c.Auth.Disabled {
		if _, _, err := c.RepositoryParts(); err != nil {
			errs = append(errs, err)
		}
		if c.SecretKey == "" {
			errs = append(errs, errors.New("secret_key is required (or set SECRET_KEY)"))
		}
		if c.OAuth.ClientID == "" {
			errs = append(errs, errors.New("oauth.client_id is required (or set OAUTH_CLIENT_ID)"))
		}
		if c.OAuth.ClientSecret == "" {
			errs = append(errs, errors.New("oauth.client_secret is required (or set OAUTH_CLIENT_SECRET)"))
		}
		if c.Auth.TTL <= 0 {
			errs = append(errs, errors.New("auth.ttl must be positive"))
		}
		if c.Auth.MaxEntries <= 0 {
			errs = append(errs, errors.New("auth.max_entries must be positive"))
		}
		if c.Auth.ProbeTimeout <= 0 {
			errs = append(errs, errors.New("auth.probe_timeout must be positive"))
		}
		if c.Auth.SessionMaxAge <= 0 {
			errs = append(errs, errors.New("auth.session_max_age must be positive"))
		}
		if c.Auth.ProbesPerMinute < 0 {
			errs = append(errs, errors.New("auth.probes_per_minute must not be negative"))
		}
	}

	if c.Upload.MaxBytes <= 0 {
		errs = append(errs, errors.New("upload.max_bytes must be positive"))
	}
	if c.Upload.MaxUncompressedBytes < 0 {
		errs = append(errs, errors.New("upload.max_uncompressed_bytes must not be negative"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
