// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Docshuttle serves versioned documentation builds over HTTP.
//
// CI uploads a zip archive of a documentation build for a git commit
// (POST / with multipart fields "commit" and "file"). The archive is
// extracted into {save_directory}/{commit}/ and the head pointer moves to
// that commit. Readers browse:
//
//   - /                 listing of every stored build, newest first
//   - /head/...         the most recently uploaded build
//   - /{commit}/...     a build by full commit hash
//   - /{prefix}/...     a build by abbreviated hash (7 or more characters),
//     redirected to the full hash
//
// Read access requires a login with the configured Bitbucket repository:
// readers are sent through OAuth and the repository permission check is
// cached per session for auth.ttl. auth.probes_per_minute caps how often
// the provider is asked.
//
// Additional endpoints:
//
//   - /_api/refs        JSON listing and head
//   - /_api/refs/{ref}  JSON upload manifest for one build
//   - /metrics          Prometheus metrics
//   - /healthz          liveness
//
// Configuration comes from --config (YAML or JSON with comments), the
// DOCSHUTTLE_CONFIG environment variable, and the SAVE_DIRECTORY,
// REPOSITORY, SECRET_KEY, OAUTH_CLIENT_ID, OAUTH_CLIENT_SECRET,
// DOCSHUTTLE_LISTEN, and DOCSHUTTLE_UPLOAD_TOKEN overrides.
package main
