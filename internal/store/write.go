package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// Put inserts an entry. Uses ON CONFLICT(id) DO NOTHING so retrying a
// write with the same ID is harmless.
func (s *SQLiteArchive) Put(ctx context.Context, e Entry) (string, error) {
	if err := prepare(&e); err != nil {
		return "", fmt.Errorf("put: %w", err)
	}

	meta, err := marshalMetadata(e.Metadata)
	if err != nil {
		return "", fmt.Errorf("put: %w", err)
	}
	payload := e.Payload
	if payload == nil {
		payload = []byte{}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO objects
		(id, path, run_number, valid_from, valid_until, metadata, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		e.ID,
		e.Path,
		e.RunNumber(),
		e.ValidFrom,
		e.ValidUntil,
		meta,
		payload,
	)
	if err != nil {
		return "", fmt.Errorf("put: %w", err)
	}

	slog.Debug("archive entry stored", "path", e.Path, "id", e.ID, "run", e.RunNumber())
	return e.ID, nil
}

// marshalMetadata encodes metadata as JSON. Map keys are emitted sorted.
func marshalMetadata(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}
	return string(b), nil
}
