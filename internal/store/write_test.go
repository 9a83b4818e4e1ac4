package store

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPut_AssignsUUIDv7(t *testing.T) {
	s := createTestStore(t)

	id, err := s.Put(context.Background(), createTestEntry("CTP/Config/Config", 42, 100, 200, "{}"))
	require.NoError(t, err)

	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestPut_KeepsExplicitID(t *testing.T) {
	s := createTestStore(t)

	e := createTestEntry("CTP/Config/Config", 42, 100, 200, "{}")
	e.ID = "fixed-id"
	id, err := s.Put(context.Background(), e)
	require.NoError(t, err)
	assert.Equal(t, "fixed-id", id)
}

func TestPut_DuplicateIDIgnored(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	first := createTestEntry("CTP/Config/Config", 42, 100, 200, "first")
	first.ID = "same"
	second := createTestEntry("CTP/Config/Config", 42, 100, 200, "second")
	second.ID = "same"

	_, err := s.Put(ctx, first)
	require.NoError(t, err)
	_, err = s.Put(ctx, second)
	require.NoError(t, err)

	got, err := s.Latest(ctx, "CTP/Config/Config", 150)
	require.NoError(t, err)
	assert.Equal(t, "first", string(got.Payload))
}

func TestPut_StoresRunNumber(t *testing.T) {
	s := createTestStore(t)

	_, err := s.Put(context.Background(), createTestEntry("CTP/Calib/Scalers", 523456, 1, 2, "{}"))
	require.NoError(t, err)

	var run int64
	require.NoError(t, s.db.QueryRow("SELECT run_number FROM objects").Scan(&run))
	assert.Equal(t, int64(523456), run)
}

func TestPut_Validation(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.Put(ctx, createTestEntry("  ", 1, 0, 1, ""))
	assert.ErrorContains(t, err, "path is required")

	_, err = s.Put(ctx, createTestEntry("CTP/Config/Config", 1, 10, 5, ""))
	assert.ErrorContains(t, err, "inverted")
}

func TestPut_NormalizesPath(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.Put(ctx, createTestEntry("/CTP/Config/Config/", 1, 0, 10, "x"))
	require.NoError(t, err)

	got, err := s.Latest(ctx, "CTP/Config/Config", 5)
	require.NoError(t, err)
	assert.Equal(t, "CTP/Config/Config", got.Path)
}

func TestPut_CanceledContext(t *testing.T) {
	s := createTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Put(ctx, createTestEntry("CTP/Config/Config", 1, 0, 1, ""))
	assert.Error(t, err)
}

func TestNop_Put(t *testing.T) {
	id, err := Nop{}.Put(context.Background(), createTestEntry("CTP/Config/Config", 1, 0, 1, ""))
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	_, err = Nop{}.Latest(context.Background(), "CTP/Config/Config", 0)
	assert.ErrorIs(t, err, ErrNotFound)
}
