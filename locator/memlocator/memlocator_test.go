package memlocator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chn0318/schemastore/locator"
)

func TestCreateThenRead(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.Create("/schemas/a", []byte("v0")).Await(ctx)
	require.NoError(t, err)

	n, err := s.Read("/schemas/a").Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("v0"), n.Bytes)
	assert.Equal(t, int64(0), n.NodeVersion)
}

func TestCreate_TwiceReturnsAlreadyExists(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.Create("/schemas/a", []byte("v0")).Await(ctx)
	require.NoError(t, err)

	_, err = s.Create("/schemas/a", []byte("v0-again")).Await(ctx)
	assert.ErrorIs(t, err, locator.ErrAlreadyExists)
}

func TestUpdate_WithStaleVersionReturnsVersionMismatch(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.Create("/schemas/a", []byte("v0")).Await(ctx)
	require.NoError(t, err)

	_, err = s.Update("/schemas/a", []byte("v1"), 5).Await(ctx)
	assert.ErrorIs(t, err, locator.ErrVersionMismatch)
}

func TestUpdate_WithCurrentVersionSucceedsAndBumpsVersion(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.Create("/schemas/a", []byte("v0")).Await(ctx)
	require.NoError(t, err)

	_, err = s.Update("/schemas/a", []byte("v1"), 0).Await(ctx)
	require.NoError(t, err)

	n, err := s.Read("/schemas/a").Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), n.Bytes)
	assert.Equal(t, int64(1), n.NodeVersion)
}

func TestRead_UnknownPathReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.Read("/schemas/missing").Await(ctx)
	assert.ErrorIs(t, err, locator.ErrNotFound)
}
