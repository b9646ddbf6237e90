// Package repository implements the activity catalog, participant directory
// and registration ledger on top of PostgreSQL (pgx) and SQLite (database/sql).
//
// The registration relation lives in a single join table. An activity's
// roster and a participant's activities are both read from it, so each
// transition is exactly one INSERT or DELETE and the two directions cannot
// drift apart.
package repository

import (
	"strings"

	"github.com/gosimple/slug"
)

// Both stores resolve an activity by exact name first, then by slug.
const (
	activityLookupSQLPostgres = `
		SELECT id, name, slug, description, schedule, max_participants
		FROM activities
		WHERE name = $1 OR slug = $1
		ORDER BY (name = $1) DESC
		LIMIT 1`

	activityLookupSQLSQLite = `
		SELECT id, name, slug, description, schedule, max_participants
		FROM activities
		WHERE name = ? OR slug = ?
		ORDER BY (name = ?) DESC
		LIMIT 1`
)

// Slugify derives the URL-friendly key stored alongside an activity name.
func Slugify(name string) string {
	return slug.Make(strings.TrimSpace(name))
}

// dedupe keeps the first occurrence of each trimmed, non-empty email.
func dedupe(emails []string) []string {
	seen := make(map[string]struct{}, len(emails))
	out := make([]string, 0, len(emails))
	for _, e := range emails {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	return out
}
