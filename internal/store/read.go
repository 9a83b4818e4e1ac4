package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// Latest returns the most recently written entry under path whose validity
// interval contains at. Returns ErrNotFound when nothing matches.
//
// IDs are UUIDv7, so ORDER BY id DESC is newest first.
func (s *SQLiteArchive) Latest(ctx context.Context, path string, at int64) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, path, valid_from, valid_until, metadata, payload
		FROM objects
		WHERE path = ? AND valid_from <= ? AND valid_until >= ?
		ORDER BY id COLLATE BINARY DESC
		LIMIT 1
	`, path, at, at)

	var (
		e    Entry
		meta string
	)
	err := row.Scan(&e.ID, &e.Path, &e.ValidFrom, &e.ValidUntil, &meta, &e.Payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest %s: %w", path, err)
	}
	if e.Metadata, err = unmarshalMetadata(meta); err != nil {
		return nil, err
	}
	return &e, nil
}

// List returns every entry under path ordered by valid_from, then id.
// Payloads are not loaded.
//
// Returns an empty slice (not nil) when the path has no entries.
func (s *SQLiteArchive) List(ctx context.Context, path string) ([]Entry, error) {
	return s.list(ctx, `
		SELECT id, path, valid_from, valid_until, metadata
		FROM objects
		WHERE path = ?
		ORDER BY valid_from ASC, id COLLATE BINARY ASC
	`, path)
}

// ListRun returns every entry recorded for a run across all paths.
func (s *SQLiteArchive) ListRun(ctx context.Context, run uint32) ([]Entry, error) {
	return s.list(ctx, `
		SELECT id, path, valid_from, valid_until, metadata
		FROM objects
		WHERE run_number = ?
		ORDER BY path ASC, id COLLATE BINARY ASC
	`, run)
}

func (s *SQLiteArchive) list(ctx context.Context, query string, arg any) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query objects: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e    Entry
			meta string
		)
		if err := rows.Scan(&e.ID, &e.Path, &e.ValidFrom, &e.ValidUntil, &meta); err != nil {
			return nil, fmt.Errorf("scan object: %w", err)
		}
		if e.Metadata, err = unmarshalMetadata(meta); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate objects: %w", err)
	}
	return entries, nil
}

func unmarshalMetadata(s string) (map[string]string, error) {
	m := map[string]string{}
	if s == "" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return m, nil
}
