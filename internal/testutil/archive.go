package testutil

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/ctprun/internal/store"
)

// ErrArchiveDown is returned by FailingArchive.
var ErrArchiveDown = errors.New("archive unavailable")

// RecordingArchive is an in-memory store.Archive that keeps every Put in
// order.
type RecordingArchive struct {
	mu      sync.Mutex
	entries []store.Entry
}

// NewRecordingArchive returns an empty archive.
func NewRecordingArchive() *RecordingArchive {
	return &RecordingArchive{}
}

func (a *RecordingArchive) Put(_ context.Context, e store.Entry) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if e.ID == "" {
		e.ID = fmt.Sprintf("rec-%04d", len(a.entries)+1)
	}
	e.Payload = slices.Clone(e.Payload)
	a.entries = append(a.entries, e)
	return e.ID, nil
}

// Latest returns the last Put under path whose validity contains at.
func (a *RecordingArchive) Latest(_ context.Context, path string, at int64) (*store.Entry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := len(a.entries) - 1; i >= 0; i-- {
		e := a.entries[i]
		if e.Path == path && e.ValidFrom <= at && at <= e.ValidUntil {
			return &e, nil
		}
	}
	return nil, store.ErrNotFound
}

// List returns entries under path in Put order.
func (a *RecordingArchive) List(_ context.Context, path string) ([]store.Entry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := []store.Entry{}
	for _, e := range a.entries {
		if e.Path == path {
			out = append(out, e)
		}
	}
	return out, nil
}

func (a *RecordingArchive) Close() error { return nil }

// Entries returns a copy of everything written so far.
func (a *RecordingArchive) Entries() []store.Entry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.entries)
}

// FailingArchive rejects every write with ErrArchiveDown and counts the
// attempts.
type FailingArchive struct {
	mu       sync.Mutex
	attempts int
}

func (a *FailingArchive) Put(context.Context, store.Entry) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.attempts++
	return "", ErrArchiveDown
}

func (a *FailingArchive) Latest(context.Context, string, int64) (*store.Entry, error) {
	return nil, ErrArchiveDown
}

func (a *FailingArchive) List(context.Context, string) ([]store.Entry, error) {
	return nil, ErrArchiveDown
}

func (a *FailingArchive) Close() error { return nil }

// Attempts reports how many writes were tried.
func (a *FailingArchive) Attempts() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.attempts
}

var (
	_ store.Archive = (*RecordingArchive)(nil)
	_ store.Archive = (*FailingArchive)(nil)
)
