// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"html/template"
	"time"

	"github.com/bureau-foundation/docshuttle/lib/artifact"
	"github.com/bureau-foundation/docshuttle/lib/gitref"
)

// listingTimeFormat renders artifact times in UTC with a literal Z.
const listingTimeFormat = "2006-01-02T15:04:05Z"

const pageHeader = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; max-width: 60rem; margin: 2rem auto; padding: 0 1rem; }
table { border-collapse: collapse; width: 100%; }
td, th { text-align: left; padding: 0.25rem 0.75rem 0.25rem 0; }
code { font-size: 0.95em; }
.muted { color: #666; }
</style>
</head>
<body>
`

const pageFooter = `{{if .ShowLogout}}<p class="muted"><a href="/auth/logout">log out</a></p>
{{end}}</body>
</html>
`

var listingPage = template.Must(template.New("listing").Parse(pageHeader + `<h1>Documentation builds</h1>
{{if .Head}}<p>Latest upload: <a href="/head/">head</a> &rarr; <a href="/{{.Head}}/"><code>{{.Head}}</code></a></p>
{{else}}<p class="muted">No head set.</p>
{{end}}<table>
<thead><tr><th>Commit</th><th>Uploaded</th><th></th></tr></thead>
<tbody>
{{range .Rows}}<tr>
<td><a href="/{{.Ref}}/"><code>{{.Ref}}</code></a>{{if .IsHead}} <strong>head</strong>{{end}}</td>
<td>{{.Modified}}</td>
<td>{{if .HasBuildLog}}<a href="/{{.Ref}}/build.txt">build log</a>{{end}}</td>
</tr>
{{end}}</tbody>
</table>
` + pageFooter))

var emptyPage = template.Must(template.New("empty").Parse(pageHeader + `<h1>Documentation builds</h1>
<p>Nothing has been uploaded yet.</p>
<p class="muted">CI uploads a build with <code>docshuttle-push --commit &lt;sha&gt; &lt;dir&gt;</code>.</p>
` + pageFooter))

type listingRow struct {
	Ref         gitref.Ref
	Modified    string
	HasBuildLog bool
	IsHead      bool
}

type listingData struct {
	Title string
	Head  gitref.Ref
	Rows  []listingRow

	// ShowLogout links /auth/logout, which exists only behind the gate.
	ShowLogout bool
}

func newListingData(head gitref.Ref, artifacts []artifact.Artifact, showLogout bool) listingData {
	data := listingData{Title: "Documentation builds", Head: head, ShowLogout: showLogout}
	for _, stored := range artifacts {
		data.Rows = append(data.Rows, listingRow{
			Ref:         stored.Ref,
			Modified:    formatListingTime(stored.ModTime),
			HasBuildLog: stored.HasBuildLog,
			IsHead:      stored.Ref == head,
		})
	}
	return data
}

func formatListingTime(t time.Time) string {
	return t.UTC().Format(listingTimeFormat)
}
