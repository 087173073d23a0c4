// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil provides HTTP I/O helpers shared by the docshuttle
// server, its identity provider client, and the push CLI.
//
// Response helpers (ReadResponse, DecodeResponse, ErrorBody) bound body
// reads so a misbehaving upstream cannot exhaust memory. They are for
// small API responses (the identity provider's JSON, the server's
// upload acknowledgement), not for file downloads.
package netutil

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode"
)

// MaxResponseSize bounds API response body reads: 8 MiB.
const MaxResponseSize int64 = 8 << 20

// maxErrorBody bounds the part of an error response quoted in an error
// message.
const maxErrorBody = 512

// ReadResponse reads an API response body up to MaxResponseSize bytes.
func ReadResponse(body io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, MaxResponseSize))
}

// DecodeResponse reads an API response body (up to MaxResponseSize
// bytes) and JSON-decodes it into v.
func DecodeResponse(body io.Reader, v any) error {
	data, err := io.ReadAll(io.LimitReader(body, MaxResponseSize))
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	return json.Unmarshal(data, v)
}

// ErrorBody reads an HTTP error response body for a diagnostic
// message, trimmed and truncated to maxErrorBody bytes with a "..."
// marker. Leading whitespace does not count against the limit. Read
// errors are ignored: a partial or empty body is still useful.
func ErrorBody(body io.Reader) string {
	reader := bufio.NewReader(io.LimitReader(body, MaxResponseSize))
	for {
		r, _, err := reader.ReadRune()
		if err != nil {
			return ""
		}
		if !unicode.IsSpace(r) {
			reader.UnreadRune()
			break
		}
	}

	data, _ := io.ReadAll(io.LimitReader(reader, maxErrorBody))
	text := strings.TrimRightFunc(string(data), unicode.IsSpace)
	rest, _ := io.ReadAll(io.LimitReader(reader, maxErrorBody))
	if len(strings.TrimSpace(string(rest))) > 0 {
		text += "..."
	}
	return text
}

// BearerToken extracts the token from an "Authorization: Bearer ..."
// header. The scheme is matched case-insensitively.
func BearerToken(request *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(request.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
