package testutil

import (
	"context"
	"testing"

	"github.com/roach88/ctprun/internal/detector"
	"github.com/roach88/ctprun/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeRegistry(t *testing.T) {
	reg := NewFakeRegistry().Add("detA", 3, 0x30).Add("detB", 4, 0x100)

	id, mask, ok := reg.Resolve("DETA")
	require.True(t, ok)
	assert.Equal(t, detector.ID(3), id)
	assert.Equal(t, uint64(0x30), mask)

	_, _, ok = reg.Resolve("detC")
	assert.False(t, ok)

	assert.Equal(t, "DETB", reg.Name(4))
	assert.Equal(t, "?", reg.Name(9))
	assert.Equal(t, 2, reg.Lookups())
}

func TestRecordingArchive(t *testing.T) {
	a := NewRecordingArchive()
	ctx := context.Background()

	id, err := a.Put(ctx, store.Entry{Path: "p", ValidFrom: 0, ValidUntil: 10, Payload: []byte("one")})
	require.NoError(t, err)
	assert.Equal(t, "rec-0001", id)
	_, err = a.Put(ctx, store.Entry{Path: "p", ValidFrom: 5, ValidUntil: 20, Payload: []byte("two")})
	require.NoError(t, err)

	got, err := a.Latest(ctx, "p", 7)
	require.NoError(t, err)
	assert.Equal(t, "two", string(got.Payload))

	got, err = a.Latest(ctx, "p", 2)
	require.NoError(t, err)
	assert.Equal(t, "one", string(got.Payload))

	_, err = a.Latest(ctx, "q", 2)
	assert.ErrorIs(t, err, store.ErrNotFound)

	list, err := a.List(ctx, "p")
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Len(t, a.Entries(), 2)
}

func TestFailingArchive(t *testing.T) {
	a := &FailingArchive{}

	_, err := a.Put(context.Background(), store.Entry{})
	assert.ErrorIs(t, err, ErrArchiveDown)
	_, err = a.Put(context.Background(), store.Entry{})
	assert.ErrorIs(t, err, ErrArchiveDown)
	assert.Equal(t, 2, a.Attempts())
}
