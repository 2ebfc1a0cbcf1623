package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PortfolioTracker/internal/collector"
	"PortfolioTracker/internal/metrics"
	"PortfolioTracker/internal/model"
	"PortfolioTracker/internal/recorder"
)

var symbols = []string{"AAPL", "MSFT", "GOOGL"}

type stubFetcher struct {
	name   string
	prices map[string]float64
	fail   map[string]bool
	err    error
	onCall func()

	mu    sync.Mutex
	calls int
}

func (f *stubFetcher) Name() string { return f.name }

func (f *stubFetcher) Fetch(_ context.Context, syms []string) (map[string]float64, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.onCall != nil {
		f.onCall()
	}
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]float64)
	for _, s := range syms {
		if f.fail[s] {
			if len(syms) == 1 {
				return nil, errors.New("upstream error")
			}
			continue
		}
		out[s] = f.prices[s]
	}
	return out, nil
}

func (f *stubFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func flatPrices() map[string]float64 {
	return map[string]float64{"AAPL": 100, "MSFT": 200, "GOOGL": 150}
}

type failingStore struct {
	recorder.MemoryStore
}

func (*failingStore) Append(context.Context, []model.Quote) error {
	return &recorder.StoreError{Op: "append", Path: "test", Err: errors.New("disk full")}
}

func newTestRotator(t *testing.T, store recorder.Store, descs ...collector.Descriptor) *Rotator {
	t.Helper()
	r, err := NewRotator(descs, collector.NewCollector(symbols, 0, time.Second), store, metrics.New())
	require.NoError(t, err)
	r.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 600, time.UTC) }
	return r
}

func TestNewRotator_NoProviders(t *testing.T) {
	_, err := NewRotator(nil, collector.NewCollector(symbols, 0, 0), recorder.NewMemoryStore(), nil)
	var cfgErr *collector.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestRunCycle_RoundRobinFairness(t *testing.T) {
	fetchers := []*stubFetcher{
		{name: "a", prices: flatPrices()},
		{name: "b", prices: flatPrices()},
		{name: "c", prices: flatPrices()},
	}
	var descs []collector.Descriptor
	for _, f := range fetchers {
		descs = append(descs, collector.Descriptor{ID: f.name, Fetcher: f, Batch: true})
	}
	r := newTestRotator(t, recorder.NewMemoryStore(), descs...)

	const k = 4
	seen := map[string]int{}
	for i := 0; i < k*len(descs); i++ {
		rep, err := r.RunCycle(context.Background())
		require.NoError(t, err)
		assert.Equal(t, descs[i%len(descs)].ID, rep.Provider, "cycle %d", i+1)
		seen[rep.Provider]++
	}
	for _, d := range descs {
		assert.Equal(t, k, seen[d.ID])
	}
	for _, f := range fetchers {
		assert.Equal(t, k, f.Calls())
	}
	assert.Equal(t, uint64(k*len(descs)), r.Cycles())
	assert.Equal(t, 0, r.Index())
	assert.Equal(t, StateIdle, r.State())
}

func TestRunCycle_PartialFailureKeepsOtherSymbols(t *testing.T) {
	for _, batch := range []bool{true, false} {
		store := recorder.NewMemoryStore()
		f := &stubFetcher{name: "fmp", prices: flatPrices(), fail: map[string]bool{"GOOGL": true}}
		other := &stubFetcher{name: "yahoo", prices: flatPrices()}
		r := newTestRotator(t, store,
			collector.Descriptor{ID: "fmp", Fetcher: f, Batch: batch},
			collector.Descriptor{ID: "yahoo", Fetcher: other, Batch: batch},
		)

		rep, err := r.RunCycle(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, rep.Fetched)
		assert.Equal(t, 1, rep.Failed)
		assert.Equal(t, 2, rep.Appended)
		assert.Equal(t, 1, r.Index())

		got, err := store.ReadAll(context.Background())
		require.NoError(t, err)
		require.Len(t, got, 2)
		want := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
		for _, q := range got {
			assert.NotEqual(t, "GOOGL", q.Symbol)
			assert.Equal(t, "fmp", q.Source)
			assert.True(t, q.Timestamp.Equal(want), "shared cycle timestamp, got %s", q.Timestamp)
		}
	}
}

func TestRunCycle_TotalFailureStillAdvances(t *testing.T) {
	store := recorder.NewMemoryStore()
	down := &stubFetcher{name: "down", err: errors.New("503")}
	up := &stubFetcher{name: "up", prices: flatPrices()}
	r := newTestRotator(t, store,
		collector.Descriptor{ID: "down", Fetcher: down, Batch: true},
		collector.Descriptor{ID: "up", Fetcher: up, Batch: true},
	)

	rep, err := r.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Fetched)
	assert.Equal(t, len(symbols), rep.Failed)
	assert.Equal(t, 1, r.Index())

	got, _ := store.ReadAll(context.Background())
	assert.Empty(t, got)

	rep, err = r.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "up", rep.Provider)
	assert.Equal(t, len(symbols), rep.Appended)
}

func TestRunCycle_StoreErrorIsReturned(t *testing.T) {
	f := &stubFetcher{name: "a", prices: flatPrices()}
	r := newTestRotator(t, &failingStore{},
		collector.Descriptor{ID: "a", Fetcher: f, Batch: true},
		collector.Descriptor{ID: "b", Fetcher: f, Batch: true},
	)

	rep, err := r.RunCycle(context.Background())
	var se *recorder.StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 0, rep.Appended)
	assert.Equal(t, 1, r.Index(), "index advances even when the append fails")
}

func TestRunCycle_CancelMidCycle(t *testing.T) {
	store := recorder.NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := &stubFetcher{name: "yahoo", prices: flatPrices()}
	f.onCall = func() {
		if f.Calls() == 1 {
			cancel()
		}
	}
	r := newTestRotator(t, store,
		collector.Descriptor{ID: "yahoo", Fetcher: f},
		collector.Descriptor{ID: "av", Fetcher: f},
	)

	rep, err := r.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, f.Calls(), "no fetch after cancellation")
	assert.Equal(t, 1, rep.Fetched)
	assert.Equal(t, 2, rep.Failed)
	assert.Equal(t, 1, r.Index())

	got, err := store.ReadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "AAPL", got[0].Symbol)
}

func TestRunCycle_StopDuringSlowFetchPersistsIt(t *testing.T) {
	store := recorder.NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := &stubFetcher{name: "slow", prices: flatPrices()}
	f.onCall = func() {
		cancel()
		time.Sleep(100 * time.Millisecond)
	}
	r := newTestRotator(t, store, collector.Descriptor{ID: "slow", Fetcher: f, Batch: true})

	rep, err := r.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(symbols), rep.Fetched)
	assert.Zero(t, rep.Failed)

	got, err := store.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, len(symbols))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "IDLE", StateIdle.String())
	assert.Equal(t, "FETCHING", StateFetching.String())
	assert.Equal(t, "PERSISTING", StatePersisting.String())
}
