package schemastore

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chn0318/schemastore/ledger/memledger"
	"github.com/chn0318/schemastore/locator/memlocator"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e := New(DefaultConfig(), WithLedgerClient(memledger.New()), WithLocatorStore(memlocator.New()))
	require.NoError(t, e.Init(context.Background()))
	return e
}

func TestPut_FirstRegistrationStartsAtVersionZero(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	v, err := e.Put(ctx, "s1", []byte("schema-v0"), []byte("hash0")).Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), v)
}

func TestPut_AdvancingVersionIncrementsByOne(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	_, err := e.Put(ctx, "s1", []byte("schema-v0"), []byte("hash0")).Await(ctx)
	require.NoError(t, err)

	v, err := e.Put(ctx, "s1", []byte("schema-v1"), []byte("hash1")).Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v)
}

func TestPut_ReregistrationWithSameHashIsIdempotent(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	v0, err := e.Put(ctx, "s1", []byte("schema-v0"), []byte("hash0")).Await(ctx)
	require.NoError(t, err)

	v1, err := e.Put(ctx, "s1", []byte("schema-v0"), []byte("hash0")).Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, v0, v1)

	latest, err := e.Get(ctx, "s1", Latest()).Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("schema-v0"), latest.Data)
}

func TestGet_LatestReturnsMostRecentVersion(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	_, err := e.Put(ctx, "s1", []byte("v0"), []byte("h0")).Await(ctx)
	require.NoError(t, err)
	_, err = e.Put(ctx, "s1", []byte("v1"), []byte("h1")).Await(ctx)
	require.NoError(t, err)

	got, err := e.Get(ctx, "s1", Latest()).Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got.Data)
	assert.Equal(t, uint64(1), got.Version)
}

func TestGet_ByVersionReturnsHistoricalVersion(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	_, err := e.Put(ctx, "s1", []byte("v0"), []byte("h0")).Await(ctx)
	require.NoError(t, err)
	_, err = e.Put(ctx, "s1", []byte("v1"), []byte("h1")).Await(ctx)
	require.NoError(t, err)

	got, err := e.Get(ctx, "s1", AtVersion(0)).Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("v0"), got.Data)
}

func TestGet_UnknownSchemaIDReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	_, err := e.Get(ctx, "missing", Latest()).Await(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGet_UnknownVersionReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	_, err := e.Put(ctx, "s1", []byte("v0"), []byte("h0")).Await(ctx)
	require.NoError(t, err)

	_, err = e.Get(ctx, "s1", AtVersion(99)).Await(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetAll_ReturnsOneFuturePerVersionOldestFirst(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	_, err := e.Put(ctx, "s1", []byte("v0"), []byte("h0")).Await(ctx)
	require.NoError(t, err)
	_, err = e.Put(ctx, "s1", []byte("v1"), []byte("h1")).Await(ctx)
	require.NoError(t, err)
	_, err = e.Put(ctx, "s1", []byte("v2"), []byte("h2")).Await(ctx)
	require.NoError(t, err)

	futures, err := e.GetAll(ctx, "s1").Await(ctx)
	require.NoError(t, err)
	require.Len(t, futures, 3)

	for i, f := range futures {
		got, err := f.Await(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(i), got.Version)
	}
}

func TestGetAll_UnknownSchemaIDReturnsEmptySliceNotError(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	futures, err := e.GetAll(ctx, "missing").Await(ctx)
	require.NoError(t, err)
	assert.Empty(t, futures)
}

func TestDelete_UnknownSchemaIDReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	_, err := e.Delete(ctx, "missing").Await(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete_WritesTombstoneVersionThatGetLatestSurfaces(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	_, err := e.Put(ctx, "s1", []byte("v0"), []byte("h0")).Await(ctx)
	require.NoError(t, err)

	v, err := e.Delete(ctx, "s1").Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v)

	got, err := e.Get(ctx, "s1", Latest()).Await(ctx)
	require.NoError(t, err)
	assert.Empty(t, got.Data)
}

func TestDelete_ThenPutSameDataIsNotIdempotentAgainstEmptyHash(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	_, err := e.Put(ctx, "s1", []byte("v0"), []byte{}).Await(ctx)
	require.NoError(t, err)

	_, err = e.Delete(ctx, "s1").Await(ctx)
	require.NoError(t, err)

	v, err := e.Put(ctx, "s1", []byte("v0"), []byte{}).Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), v)
}

func TestConcurrentGetLatest_EveryCallerSeesLatest(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	_, err := e.Put(ctx, "s1", []byte("v0"), []byte("h0")).Await(ctx)
	require.NoError(t, err)

	const n = 20
	var wg sync.WaitGroup
	results := make([]StoredSchema, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = e.Get(ctx, "s1", Latest()).Await(ctx)
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, []byte("v0"), results[i].Data)
	}
}

func TestConcurrentPut_OnlyOneWinsEachRace(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	const n = 10
	var wg sync.WaitGroup
	versions := make([]uint64, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			versions[i], errs[i] = e.Put(ctx, "s1", []byte("same-data"), []byte("same-hash")).Await(ctx)
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
	}

	got, err := e.Get(ctx, "s1", Latest()).Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("same-data"), got.Data)
	assert.Equal(t, uint64(0), got.Version)
}

func TestConcurrentPut_DistinctHashesYieldDistinctVersions(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	startV, err := e.Put(ctx, "s1", []byte("v0"), []byte("h0")).Await(ctx)
	require.NoError(t, err)

	const k = 8
	var wg sync.WaitGroup
	versions := make([]uint64, k)
	errs := make([]error, k)
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			data := []byte(fmt.Sprintf("data-%d", i))
			hash := []byte(fmt.Sprintf("hash-%d", i))
			versions[i], errs[i] = e.Put(ctx, "s1", data, hash).Await(ctx)
		}(i)
	}
	wg.Wait()

	seen := make(map[uint64]bool, k)
	for i := 0; i < k; i++ {
		require.NoError(t, errs[i])
		assert.False(t, seen[versions[i]], "version %d returned to more than one caller", versions[i])
		seen[versions[i]] = true
		assert.GreaterOrEqual(t, versions[i], startV+1)
		assert.LessOrEqual(t, versions[i], startV+uint64(k))
	}
	assert.Len(t, seen, k)

	for i := 0; i < k; i++ {
		got, err := e.Get(ctx, "s1", AtVersion(versions[i])).Await(ctx)
		require.NoError(t, err)
		assert.Equal(t, []byte(fmt.Sprintf("data-%d", i)), got.Data)
	}
}

func TestMultipleSchemaIDsAreIndependent(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	_, err := e.Put(ctx, "s1", []byte("s1-v0"), []byte("h1")).Await(ctx)
	require.NoError(t, err)
	_, err = e.Put(ctx, "s2", []byte("s2-v0"), []byte("h2")).Await(ctx)
	require.NoError(t, err)

	got1, err := e.Get(ctx, "s1", Latest()).Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("s1-v0"), got1.Data)

	got2, err := e.Get(ctx, "s2", Latest()).Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("s2-v0"), got2.Data)
}

func TestClose_DoesNotCloseInjectedBackends(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Start(context.Background()))
	assert.NoError(t, e.Close(context.Background()))
}
