// Package query builds search backend query strings.
package query

import (
	"strings"
	"time"
)

// Parts are the fragments of a file search.
type Parts struct {
	Text      string
	Types     string
	Exclusion string
	Include   string
}

// Build joins the non-empty fragments with single spaces in the order
// text, types, exclusion, include.
func Build(p Parts) string {
	frags := make([]string, 0, 4)
	for _, f := range []string{p.Text, p.Types, p.Exclusion, p.Include} {
		if f = strings.TrimSpace(f); f != "" {
			frags = append(frags, f)
		}
	}
	return strings.Join(frags, " ")
}

// Include restricts a search to the given paths: `<p1> | <p2>`.
func Include(paths []string) string {
	if len(paths) == 0 {
		return ""
	}
	terms := make([]string, len(paths))
	for i, p := range paths {
		terms[i] = "<" + p + ">"
	}
	return strings.Join(terms, " | ")
}

// ByID looks a record up by its backend record number.
func ByID(id string) string {
	return `frn:"` + id + `"`
}

// backendOffset is the fixed offset the backend stores creation dates in.
const backendOffset = 3 * time.Hour

const backendLayout = "2006-01-02T15:04:05"

// ByCreatedDate looks a record up by creation timestamp. created is
// RFC 3339 (a zone-less timestamp is read as UTC). It returns false when
// created does not parse.
func ByCreatedDate(created string) (string, bool) {
	ts, ok := parseTimestamp(created)
	if !ok {
		return "", false
	}
	return `dc:"` + ts.UTC().Add(backendOffset).Format(backendLayout) + `"`, true
}

func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, backendLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
