package recorder

import (
	"context"
	"sync"

	"PortfolioTracker/internal/model"
)

// MemoryStore keeps records in process memory. Used for tests and dry runs.
type MemoryStore struct {
	mu      sync.RWMutex
	records []model.Quote
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Append(_ context.Context, batch []model.Quote) error {
	if len(batch) == 0 {
		return nil
	}
	if err := validateBatch(batch); err != nil {
		return &StoreError{Op: "append", Path: "memory", Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, batch...)
	return nil
}

func (m *MemoryStore) ReadAll(_ context.Context) ([]model.Quote, error) {
	m.mu.RLock()
	out := make([]model.Quote, len(m.records))
	copy(out, m.records)
	m.mu.RUnlock()
	sortQuotes(out)
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }
