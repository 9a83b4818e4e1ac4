package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// MetaRunNumber is the metadata key holding the run number.
const MetaRunNumber = "runNumber"

// ErrNotFound is returned when no entry matches a lookup.
var ErrNotFound = errors.New("archive entry not found")

// Entry is one archived object.
type Entry struct {
	ID         string            `json:"id"`
	Path       string            `json:"path"`
	ValidFrom  int64             `json:"valid_from"`
	ValidUntil int64             `json:"valid_until"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Payload    []byte            `json:"-"`
}

// RunNumber returns the run number recorded in metadata, or 0.
func (e Entry) RunNumber() uint32 {
	n, err := strconv.ParseUint(e.Metadata[MetaRunNumber], 10, 32)
	if err != nil {
		return 0
	}
	return uint32(n)
}

// Writer stores entries. Put returns the stored entry's ID.
type Writer interface {
	Put(ctx context.Context, e Entry) (string, error)
}

// Reader looks entries up.
type Reader interface {
	// Latest returns the newest entry under path valid at time at (ms).
	Latest(ctx context.Context, path string, at int64) (*Entry, error)
	// List returns every entry under path, oldest validity first, without
	// payloads.
	List(ctx context.Context, path string) ([]Entry, error)
}

// Archive is a readable and writable store.
type Archive interface {
	Writer
	Reader
	Close() error
}

// prepare validates e and assigns an ID when it has none.
func prepare(e *Entry) error {
	e.Path = strings.Trim(strings.TrimSpace(e.Path), "/")
	if e.Path == "" {
		return fmt.Errorf("path is required")
	}
	if e.ValidUntil < e.ValidFrom {
		return fmt.Errorf("validity [%d,%d] is inverted", e.ValidFrom, e.ValidUntil)
	}
	if e.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generate id: %w", err)
		}
		e.ID = id.String()
	}
	return nil
}

// Nop discards every entry. It is used when archiving is disabled.
type Nop struct{}

func (Nop) Put(_ context.Context, e Entry) (string, error) {
	if err := prepare(&e); err != nil {
		return "", err
	}
	slog.Debug("archive disabled, entry dropped", "path", e.Path, "run", e.RunNumber())
	return e.ID, nil
}

func (Nop) Latest(context.Context, string, int64) (*Entry, error) { return nil, ErrNotFound }
func (Nop) List(context.Context, string) ([]Entry, error)         { return nil, nil }
func (Nop) Close() error                                          { return nil }

var (
	_ Archive = Nop{}
	_ Archive = (*SQLiteArchive)(nil)
	_ Archive = (*S3Archive)(nil)
)
