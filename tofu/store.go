/*
Copyright 2026 The gemlib Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package tofu is an optional, sqlite-backed reference implementation
// of a Trust-On-First-Use fingerprint store: "have I seen this host
// present this certificate before, and was it the same certificate."
// It is a caller-side collaborator, not part of the protocol core -
// package client and package gemini never import it, and a caller is
// free to implement the same narrow interface (Verify/Remember/Forget) against
// any other storage.
package tofu

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrMismatch is returned by Verify when host presents a different
// fingerprint than the one on record - the caller's cue to warn the
// user rather than silently trust the new certificate.
var ErrMismatch = errors.New("tofu: certificate fingerprint changed since last visit")

const schema = `
CREATE TABLE IF NOT EXISTS known_hosts (
	host        TEXT PRIMARY KEY,
	fingerprint TEXT NOT NULL,
	first_seen  INTEGER NOT NULL,
	last_seen   INTEGER NOT NULL
);
`

// Store is a sqlite-backed fingerprint table, one row per host.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) a sqlite database at path and
// ensures its schema exists.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Verify checks fingerprint against any fingerprint already on record
// for host. A host seen for the first time is recorded and considered
// trusted (the "trust" part of Trust-On-First-Use); a host whose
// fingerprint changed returns ErrMismatch without updating the record,
// leaving the decision to overwrite to the caller via Remember.
func (s *Store) Verify(ctx context.Context, host, fingerprint string) error {
	var existing string
	err := s.db.QueryRowContext(ctx, `SELECT fingerprint FROM known_hosts WHERE host = ?`, host).Scan(&existing)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return s.Remember(ctx, host, fingerprint)
	case err != nil:
		return err
	case existing != fingerprint:
		return ErrMismatch
	default:
		_, err := s.db.ExecContext(ctx, `UPDATE known_hosts SET last_seen = ? WHERE host = ?`, time.Now().Unix(), host)
		return err
	}
}

// Remember (re-)records host's fingerprint unconditionally, the
// operation a caller performs after a user explicitly accepts a changed
// certificate.
func (s *Store) Remember(ctx context.Context, host, fingerprint string) error {
	now := time.Now().Unix()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO known_hosts (host, fingerprint, first_seen, last_seen)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(host) DO UPDATE SET fingerprint = excluded.fingerprint, last_seen = excluded.last_seen
	`, host, fingerprint, now, now)
	return err
}

// Forget removes any record for host.
func (s *Store) Forget(ctx context.Context, host string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM known_hosts WHERE host = ?`, host)
	return err
}
