package recorder

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"PortfolioTracker/internal/model"
)

// Store is the append-only quote log shared by the rotation and aggregation loops.
// Append is atomic with respect to readers: a batch is either fully visible or not at all.
type Store interface {
	Append(ctx context.Context, batch []model.Quote) error
	ReadAll(ctx context.Context) ([]model.Quote, error)
	Close() error
}

// StartPolicy decides what happens to existing records when a store is opened.
type StartPolicy int

const (
	// Preserve keeps records from earlier runs.
	Preserve StartPolicy = iota
	// Clear empties the store on open.
	Clear
)

func (p StartPolicy) String() string {
	if p == Clear {
		return "clear"
	}
	return "preserve"
}

// StoreError wraps an I/O failure of the record store.
type StoreError struct {
	Op   string
	Path string
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Open creates the store for the given backend ("csv", "sqlite" or "memory").
func Open(backend, path string, policy StartPolicy) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", "csv":
		return NewCSVStore(path, policy)
	case "sqlite":
		return NewSQLiteStore(path, policy)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

func validateBatch(batch []model.Quote) error {
	for _, q := range batch {
		if !q.Valid() {
			return fmt.Errorf("invalid quote %s=%v", q.Symbol, q.Price)
		}
	}
	return nil
}

// sortQuotes orders by (symbol, timestamp), keeping append order for ties.
func sortQuotes(qs []model.Quote) {
	sort.SliceStable(qs, func(i, j int) bool {
		if qs[i].Symbol != qs[j].Symbol {
			return qs[i].Symbol < qs[j].Symbol
		}
		return qs[i].Timestamp.Before(qs[j].Timestamp)
	})
}
