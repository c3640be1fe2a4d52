package boltlocator

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chn0318/schemastore/locator"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "locator.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateReadUpdate(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.Create("/schemas/a", []byte("v0")).Await(ctx)
	require.NoError(t, err)

	n, err := s.Read("/schemas/a").Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("v0"), n.Bytes)
	assert.Equal(t, int64(0), n.NodeVersion)

	_, err = s.Update("/schemas/a", []byte("v1"), n.NodeVersion).Await(ctx)
	require.NoError(t, err)

	n2, err := s.Read("/schemas/a").Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), n2.Bytes)
	assert.Equal(t, int64(1), n2.NodeVersion)
}

func TestReadIsServedFromCacheAfterFirstRead(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.Create("/schemas/a", []byte("v0")).Await(ctx)
	require.NoError(t, err)

	_, err = s.Read("/schemas/a").Await(ctx)
	require.NoError(t, err)

	_, ok := s.cache.Get("/schemas/a")
	assert.True(t, ok)
}

func TestUpdateInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.Create("/schemas/a", []byte("v0")).Await(ctx)
	require.NoError(t, err)
	_, err = s.Read("/schemas/a").Await(ctx)
	require.NoError(t, err)

	_, err = s.Update("/schemas/a", []byte("v1"), 0).Await(ctx)
	require.NoError(t, err)

	n, err := s.Read("/schemas/a").Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), n.Bytes)
}

func TestCreate_AlreadyExists(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.Create("/schemas/a", []byte("v0")).Await(ctx)
	require.NoError(t, err)

	_, err = s.Create("/schemas/a", []byte("v0")).Await(ctx)
	assert.ErrorIs(t, err, locator.ErrAlreadyExists)
}

func TestUpdate_StaleVersionReturnsVersionMismatch(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.Create("/schemas/a", []byte("v0")).Await(ctx)
	require.NoError(t, err)

	_, err = s.Update("/schemas/a", []byte("v1"), 7).Await(ctx)
	assert.ErrorIs(t, err, locator.ErrVersionMismatch)
}

func TestEnsureRoot_TwiceIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.EnsureRoot("/schemas").Await(ctx)
	require.NoError(t, err)
	_, err = s.EnsureRoot("/schemas").Await(ctx)
	require.NoError(t, err)
}
