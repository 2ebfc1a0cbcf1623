package collector

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"PortfolioTracker/internal/model"
)

// MockFetcher returns a bounded random walk per symbol for development and testing.
type MockFetcher struct {
	Base float64

	mu     sync.Mutex
	rng    *rand.Rand
	prices map[string]float64
}

// NewMockFetcher creates a MockFetcher starting every symbol at base.
func NewMockFetcher(base float64, seed int64) *MockFetcher {
	if base <= 0 {
		base = 100
	}
	return &MockFetcher{Base: base, rng: rand.New(rand.NewSource(seed)), prices: make(map[string]float64)}
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) Fetch(ctx context.Context, symbols []string) (map[string]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]float64, len(symbols))
	for _, s := range symbols {
		p, ok := m.prices[s]
		if !ok {
			p = m.Base
		} else {
			p *= 1 + (m.rng.Float64()-0.5)*0.01
		}
		m.prices[s] = p
		out[s] = p
	}
	return out, nil
}

// Collector runs one provider over the configured symbols.
type Collector struct {
	Symbols []string
	// Delay separates consecutive calls to a per-symbol provider.
	Delay time.Duration
	// Timeout bounds every individual Fetch call.
	Timeout time.Duration
}

// NewCollector creates a new Collector.
func NewCollector(symbols []string, delay, timeout time.Duration) *Collector {
	return &Collector{Symbols: symbols, Delay: delay, Timeout: timeout}
}

// Collect fetches every symbol from d and returns one result per symbol, in
// symbol order. Failures are reported in the results, never as a returned error.
// Once ctx is cancelled no further calls are issued and the remaining symbols
// report the context error; a call already running is allowed to finish.
func (c *Collector) Collect(ctx context.Context, d Descriptor) []model.FetchResult {
	if d.Batch {
		return c.collectBatch(ctx, d)
	}
	return c.collectEach(ctx, d)
}

func (c *Collector) collectBatch(ctx context.Context, d Descriptor) []model.FetchResult {
	results := make([]model.FetchResult, 0, len(c.Symbols))
	prices, err := c.call(ctx, d, c.Symbols)
	for _, s := range c.Symbols {
		if err != nil {
			results = append(results, model.FetchResult{Symbol: s, Err: &FetchError{Provider: d.ID, Symbol: s, Err: err}})
			continue
		}
		results = append(results, pick(d.ID, s, prices))
	}
	return results
}

func (c *Collector) collectEach(ctx context.Context, d Descriptor) []model.FetchResult {
	limit := rate.Inf
	if c.Delay > 0 {
		limit = rate.Every(c.Delay)
	}
	limiter := rate.NewLimiter(limit, 1)

	results := make([]model.FetchResult, 0, len(c.Symbols))
	for _, s := range c.Symbols {
		if err := limiter.Wait(ctx); err != nil {
			results = append(results, model.FetchResult{Symbol: s, Err: &FetchError{Provider: d.ID, Symbol: s, Err: err}})
			continue
		}
		prices, err := c.call(ctx, d, []string{s})
		if err != nil {
			results = append(results, model.FetchResult{Symbol: s, Err: &FetchError{Provider: d.ID, Symbol: s, Err: err}})
			continue
		}
		results = append(results, pick(d.ID, s, prices))
	}
	return results
}

// call issues one Fetch. A call that has started is not aborted by ctx; only
// the timeout bounds it, so a stop signal never discards an answer in flight.
func (c *Collector) call(ctx context.Context, d Descriptor, symbols []string) (prices map[string]float64, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ctx = context.WithoutCancel(ctx)
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			prices, err = nil, fmt.Errorf("fetcher panic: %v", r)
		}
	}()
	return d.Fetcher.Fetch(ctx, symbols)
}

func pick(provider, symbol string, prices map[string]float64) model.FetchResult {
	p, ok := prices[symbol]
	if !ok {
		return model.FetchResult{Symbol: symbol, Err: &FetchError{Provider: provider, Symbol: symbol, Err: ErrSymbolMissing}}
	}
	if !model.ValidPrice(p) {
		return model.FetchResult{Symbol: symbol, Err: &FetchError{Provider: provider, Symbol: symbol, Err: fmt.Errorf("%w: %v", ErrInvalidPrice, p)}}
	}
	return model.FetchResult{Symbol: symbol, Price: p}
}
