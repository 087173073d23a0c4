// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for the docshuttle
// server.
//
// A Config starts from [Default], is optionally merged with a single
// file named by the --config flag or the DOCSHUTTLE_CONFIG environment
// variable, and is then overridden by a fixed set of environment
// variables (SAVE_DIRECTORY, REPOSITORY, SECRET_KEY, OAUTH_CLIENT_ID,
// OAUTH_CLIENT_SECRET, DOCSHUTTLE_LISTEN, DOCSHUTTLE_UPLOAD_TOKEN).
// Without a file the server runs purely from the environment.
//
// Files ending in .yaml or .yml are parsed as YAML. Files ending in
// .json or .jsonc are parsed as JSON and may carry comments and
// trailing commas.
//
// Path fields support ${VAR} and ${VAR:-default} expansion after
// loading.
//
// This package depends on no other docshuttle packages.
package config
